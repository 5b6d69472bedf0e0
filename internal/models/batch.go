package models

import "time"

// Batch is an admitted cohort sharing a curriculum and credit-load policy.
// A nil DepartmentID marks a pre-specialization cohort.
type Batch struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	DepartmentID *string   `db:"department_id" json:"department_id,omitempty"`
	CurriculumID string    `db:"curriculum_id" json:"curriculum_id"`
	EntryYear    int       `db:"entry_year" json:"entry_year"`
	MinCredits   int       `db:"min_credits" json:"min_credits"`
	MaxCredits   int       `db:"max_credits" json:"max_credits"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// BatchFilter captures filters for listing batches.
type BatchFilter struct {
	DepartmentID string
	EntryYear    int
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
