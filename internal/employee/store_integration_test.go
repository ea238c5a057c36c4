//go:build integration
// +build integration

package employee_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medevs/hr-agent/internal/employee"
	"github.com/medevs/hr-agent/internal/testutil"
)

func newTestStore(t *testing.T) (*employee.Store, *testutil.FakeEmbedder) {
	t.Helper()

	dbContainer, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	embedder := testutil.NewFakeEmbedder(int(employee.VectorDimension))
	store, err := employee.NewStore(dbContainer.Pool, embedder, slog.Default())
	require.NoError(t, err, "NewStore should not fail")

	return store, embedder
}

func testRecord(id string) employee.Record {
	return employee.Record{
		EmployeeID:  id,
		FirstName:   "Jane",
		LastName:    "Doe",
		DateOfBirth: time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC),
		Email:       "jane.doe@example.com",
		Phone:       "+49 30 1234567",
		JobTitle:    "Engineer",
		Department:  "R&D",
		Salary:      85000,
		Skills:      []string{"Go", "SQL"},
		Reviews: []employee.Review{
			{Date: time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC), Rating: 4, Comments: "Solid work"},
		},
		OfficeLocation: "Berlin",
		Remote:         false,
		Notes:          "Mentors two junior colleagues",
	}
}

func TestStore_UpsertAndGet_Integration(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec := testRecord("EMP-0001")
	require.NoError(t, store.Upsert(ctx, rec), "Upsert should succeed")

	got, err := store.Get(ctx, "EMP-0001")
	require.NoError(t, err, "Get should succeed")
	assert.Equal(t, rec.EmployeeID, got.EmployeeID)
	assert.Equal(t, rec.FirstName, got.FirstName)
	assert.Equal(t, rec.LastName, got.LastName)
	assert.True(t, rec.DateOfBirth.Equal(got.DateOfBirth), "DateOfBirth should round-trip")
	assert.Equal(t, rec.Email, got.Email)
	assert.Equal(t, rec.Salary, got.Salary)
	assert.Equal(t, rec.Skills, got.Skills)
	require.Len(t, got.Reviews, 1)
	assert.Equal(t, 4, got.Reviews[0].Rating)
	assert.Equal(t, "Solid work", got.Reviews[0].Comments)
	assert.Equal(t, rec.OfficeLocation, got.OfficeLocation)
	assert.Equal(t, rec.Notes, got.Notes)
}

func TestStore_Upsert_Idempotent_Integration(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec := testRecord("EMP-0001")
	require.NoError(t, store.Upsert(ctx, rec))

	// Second upsert with changed fields replaces the row instead of adding one.
	rec.JobTitle = "Senior Engineer"
	rec.Salary = 95000
	require.NoError(t, store.Upsert(ctx, rec))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "upsert should not duplicate rows")

	got, err := store.Get(ctx, "EMP-0001")
	require.NoError(t, err)
	assert.Equal(t, "Senior Engineer", got.JobTitle)
	assert.Equal(t, 95000, got.Salary)
}

func TestStore_Upsert_RejectsInvalid_Integration(t *testing.T) {
	store, embedder := newTestStore(t)
	ctx := context.Background()

	rec := testRecord("")
	err := store.Upsert(ctx, rec)
	require.Error(t, err, "Upsert should reject a record without an ID")
	assert.Zero(t, embedder.Calls, "validation failures must not reach the embedder")
}

func TestStore_Search_Integration(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	records := employee.Generate(20, 42)
	for _, rec := range records {
		require.NoError(t, store.Upsert(ctx, rec), "seeding %s", rec.EmployeeID)
	}

	// Searching with a record's own summary must rank that record first:
	// identical text embeds to an identical vector.
	target := records[3]
	matches, err := store.Search(ctx, target.Summary(), 5)
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	assert.Equal(t, target.EmployeeID, matches[0].Record.EmployeeID,
		"exact summary query should rank its own record first")
	assert.InDelta(t, 1.0, matches[0].Score, 0.01, "self-similarity should be ~1")

	// Scores are ordered descending.
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score,
			"matches must be ordered by similarity descending")
	}
	assert.LessOrEqual(t, len(matches), 5)
}

func TestStore_Search_EdgeCases_Integration(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	// Empty store yields an empty slice, not an error.
	matches, err := store.Search(ctx, "engineers in Berlin", 10)
	require.NoError(t, err)
	assert.NotNil(t, matches)
	assert.Empty(t, matches)

	// Blank query short-circuits.
	matches, err = store.Search(ctx, "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, matches)

	// topK is clamped: seed more rows than the cap and ask for too many.
	for _, rec := range employee.Generate(employee.MaxTopK+10, 7) {
		require.NoError(t, store.Upsert(ctx, rec))
	}
	matches, err = store.Search(ctx, "engineer", employee.MaxTopK+100)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(matches), employee.MaxTopK)
}

func TestStore_Get_NotFound_Integration(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "EMP-9999")
	assert.True(t, errors.Is(err, employee.ErrNotFound), "want ErrNotFound, got %v", err)
}

func TestStore_EmbedderFailure_Integration(t *testing.T) {
	store, embedder := newTestStore(t)
	ctx := context.Background()

	embedder.EmbedErr = errors.New("quota exceeded")
	err := store.Upsert(ctx, testRecord("EMP-0001"))
	require.Error(t, err, "Upsert should surface embedder failures")

	count, err2 := store.Count(ctx)
	require.NoError(t, err2)
	assert.Zero(t, count, "failed upsert must not write a row")
}
