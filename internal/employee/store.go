package employee

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"
)

// ErrNotFound indicates the requested employee does not exist.
var ErrNotFound = errors.New("employee not found")

// recordCols is the standard SELECT column list for scanRecord.
const recordCols = `employee_id, first_name, last_name, date_of_birth, email, phone,
	job_title, department, salary, skills, reviews, office_location, remote, notes`

// Store manages employee records backed by PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool     *pgxpool.Pool
	embedder ai.Embedder
	logger   *slog.Logger
}

// NewStore creates an employee Store.
func NewStore(pool *pgxpool.Pool, embedder ai.Embedder, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, embedder: embedder, logger: logger}, nil
}

// embed generates a vector embedding for the given text.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dim := VectorDimension
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding response")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// embedWithRetry embeds text with a per-attempt timeout and a single retry
// on failure. The embedding API is the external call most likely to hit a
// transient network error during bulk seeding.
func (s *Store) embedWithRetry(ctx context.Context, text string) (pgvector.Vector, error) {
	attempt := func() (pgvector.Vector, error) {
		embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
		defer cancel()
		return s.embed(embedCtx, text)
	}

	vec, err := attempt()
	if err == nil {
		return vec, nil
	}
	if ctx.Err() != nil {
		return pgvector.Vector{}, err
	}

	s.logger.Warn("embedding failed, retrying once", "error", err)
	select {
	case <-ctx.Done():
		return pgvector.Vector{}, ctx.Err()
	case <-time.After(500 * time.Millisecond):
	}

	vec, retryErr := attempt()
	if retryErr != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding failed after retry: %w", retryErr)
	}
	return vec, nil
}

// Upsert stores a record together with its derived summary and embedding.
// The three values are written in a single statement, so a queryable row is
// never missing its embedding.
func (s *Store) Upsert(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validating record: %w", err)
	}

	summary := rec.Summary()
	vec, err := s.embedWithRetry(ctx, summary)
	if err != nil {
		return fmt.Errorf("embedding summary for %s: %w", rec.EmployeeID, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO employees (employee_id, first_name, last_name, date_of_birth, email, phone,
		        job_title, department, salary, skills, reviews, office_location, remote, notes,
		        summary, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 ON CONFLICT (employee_id) DO UPDATE
		 SET first_name = EXCLUDED.first_name,
		     last_name = EXCLUDED.last_name,
		     date_of_birth = EXCLUDED.date_of_birth,
		     email = EXCLUDED.email,
		     phone = EXCLUDED.phone,
		     job_title = EXCLUDED.job_title,
		     department = EXCLUDED.department,
		     salary = EXCLUDED.salary,
		     skills = EXCLUDED.skills,
		     reviews = EXCLUDED.reviews,
		     office_location = EXCLUDED.office_location,
		     remote = EXCLUDED.remote,
		     notes = EXCLUDED.notes,
		     summary = EXCLUDED.summary,
		     embedding = EXCLUDED.embedding,
		     updated_at = now()`,
		rec.EmployeeID, rec.FirstName, rec.LastName, rec.DateOfBirth, rec.Email, rec.Phone,
		rec.JobTitle, rec.Department, rec.Salary, rec.Skills, rec.Reviews, rec.OfficeLocation,
		rec.Remote, rec.Notes, summary, vec,
	)
	if err != nil {
		return fmt.Errorf("upserting employee %s: %w", rec.EmployeeID, err)
	}

	return nil
}

// Search finds the topK employees most similar to the query.
// Returns matches ordered by cosine similarity descending. An empty store
// yields an empty slice, not an error.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]Match, error) {
	if strings.TrimSpace(query) == "" {
		return []Match{}, nil
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	if len(query) > MaxQueryLen {
		query = query[:MaxQueryLen]
	}
	if strings.ContainsRune(query, 0) {
		return []Match{}, nil
	}

	vec, err := s.embedWithRetry(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, SearchTimeout)
	defer cancel()

	rows, err := s.pool.Query(searchCtx,
		`SELECT `+recordCols+`, 1 - (embedding <=> $1) AS similarity
		 FROM employees
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		vec, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("searching employees: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := scanRecord(rows, &m.Record, &m.Score); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating employees: %w", err)
	}
	if matches == nil {
		matches = []Match{}
	}
	return matches, nil
}

// Get returns a single employee by ID. Returns ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, employeeID string) (Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+recordCols+` FROM employees WHERE employee_id = $1`,
		employeeID,
	)

	var rec Record
	err := row.Scan(
		&rec.EmployeeID, &rec.FirstName, &rec.LastName, &rec.DateOfBirth,
		&rec.Email, &rec.Phone, &rec.JobTitle, &rec.Department, &rec.Salary,
		&rec.Skills, &rec.Reviews, &rec.OfficeLocation, &rec.Remote, &rec.Notes,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("getting employee %s: %w", employeeID, err)
	}
	return rec, nil
}

// Count returns the number of stored employee records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM employees`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting employees: %w", err)
	}
	return count, nil
}

// scanRecord reads a Record plus its similarity score from a joined row.
func scanRecord(row pgx.Row, rec *Record, score *float64) error {
	if err := row.Scan(
		&rec.EmployeeID, &rec.FirstName, &rec.LastName, &rec.DateOfBirth,
		&rec.Email, &rec.Phone, &rec.JobTitle, &rec.Department, &rec.Salary,
		&rec.Skills, &rec.Reviews, &rec.OfficeLocation, &rec.Remote, &rec.Notes,
		score,
	); err != nil {
		return fmt.Errorf("scanning employee: %w", err)
	}
	return nil
}
