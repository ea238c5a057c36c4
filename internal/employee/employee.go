// Package employee manages the HR record store: structured employee records,
// their deterministic natural-language summaries, and the pgvector-backed
// similarity index the lookup tool searches against.
package employee

import (
	"fmt"
	"strings"
	"time"
)

// VectorDimension is the embedding dimensionality stored in pgvector.
// gemini-embedding-001 supports truncation to 768 dimensions via
// OutputDimensionality; the employees.embedding column is vector(768).
const VectorDimension int32 = 768

const (
	// EmbedTimeout bounds a single embedding API call.
	EmbedTimeout = 10 * time.Second

	// SearchTimeout bounds a similarity search query.
	SearchTimeout = 10 * time.Second

	// DefaultTopK is the result count when the caller does not specify one.
	DefaultTopK = 10

	// MaxTopK caps similarity search results regardless of the requested k.
	MaxTopK = 50

	// MaxQueryLen truncates absurdly long search queries before embedding.
	MaxQueryLen = 2000
)

// dateLayout is the fixed date format used in summaries (dates of birth,
// review dates). Changing it changes every stored summary and embedding.
const dateLayout = "2006-01-02"

// Review is one performance review entry on an employee record.
type Review struct {
	Date     time.Time `json:"date"`
	Rating   int       `json:"rating"` // 1-5
	Comments string    `json:"comments"`
}

// Record is a structured employee record. Summary and embedding are derived
// from the other fields and recomputed on every upsert, so a queryable row is
// always consistent with its field values.
type Record struct {
	EmployeeID     string    `json:"employee_id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	DateOfBirth    time.Time `json:"date_of_birth"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	JobTitle       string    `json:"job_title"`
	Department     string    `json:"department"`
	Salary         int       `json:"salary"`
	Skills         []string  `json:"skills"`
	Reviews        []Review  `json:"reviews"`
	OfficeLocation string    `json:"office_location"`
	Remote         bool      `json:"remote"`
	Notes          string    `json:"notes"`
}

// Match pairs a record with its cosine similarity to a search query.
type Match struct {
	Record Record  `json:"record"`
	Score  float64 `json:"score"`
}

// Summary renders the record as a deterministic natural-language projection.
// Field order and formatting are fixed: the stored embedding is computed from
// this text, so the projection must be stable across runs.
//
// Example:
//
//	Jane Doe, born on 1990-01-01. Job: Engineer in R&D. Skills: Go, SQL.
//	Reviews: Rated 4 on 2023-06-01: Solid work. Office: Berlin (remote: false).
//	Notes: none.
func (r Record) Summary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s, born on %s.", r.FirstName, r.LastName, r.DateOfBirth.Format(dateLayout))
	fmt.Fprintf(&b, " Job: %s in %s.", r.JobTitle, r.Department)

	if len(r.Skills) > 0 {
		fmt.Fprintf(&b, " Skills: %s.", strings.Join(r.Skills, ", "))
	}

	if len(r.Reviews) > 0 {
		parts := make([]string, len(r.Reviews))
		for i, rv := range r.Reviews {
			parts[i] = fmt.Sprintf("Rated %d on %s: %s", rv.Rating, rv.Date.Format(dateLayout), rv.Comments)
		}
		fmt.Fprintf(&b, " Reviews: %s", strings.Join(parts, " "))
	}

	fmt.Fprintf(&b, " Office: %s (remote: %t).", r.OfficeLocation, r.Remote)

	notes := r.Notes
	if notes == "" {
		notes = "none"
	}
	fmt.Fprintf(&b, " Notes: %s.", notes)

	return b.String()
}

// Validate checks the fields required before a record can be stored.
func (r Record) Validate() error {
	if r.EmployeeID == "" {
		return fmt.Errorf("employee ID is required")
	}
	if r.FirstName == "" || r.LastName == "" {
		return fmt.Errorf("employee name is required")
	}
	if r.DateOfBirth.IsZero() {
		return fmt.Errorf("date of birth is required")
	}
	if r.JobTitle == "" || r.Department == "" {
		return fmt.Errorf("job title and department are required")
	}
	for i, rv := range r.Reviews {
		if rv.Rating < 1 || rv.Rating > 5 {
			return fmt.Errorf("review %d: rating must be between 1 and 5, got %d", i, rv.Rating)
		}
	}
	return nil
}
