package models

import "time"

// TermStatus represents the lifecycle of an academic term.
type TermStatus string

const (
	TermStatusActive    TermStatus = "ACTIVE"
	TermStatusInactive  TermStatus = "INACTIVE"
	TermStatusCompleted TermStatus = "COMPLETED"
)

// Valid returns true when the status is a supported value.
func (s TermStatus) Valid() bool {
	switch s {
	case TermStatusActive, TermStatusInactive, TermStatusCompleted:
		return true
	default:
		return false
	}
}

// AcademicTerm models one registration period for a batch. Sections and
// enrollments hang off a term, and the registration window gates enrollment.
type AcademicTerm struct {
	ID                string     `db:"id" json:"id"`
	BatchID           string     `db:"batch_id" json:"batch_id"`
	Name              string     `db:"name" json:"name"`
	StartDate         time.Time  `db:"start_date" json:"start_date"`
	EndDate           time.Time  `db:"end_date" json:"end_date"`
	RegistrationStart time.Time  `db:"registration_start" json:"registration_start"`
	RegistrationEnd   time.Time  `db:"registration_end" json:"registration_end"`
	Status            TermStatus `db:"status" json:"status"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// RegistrationOpen reports whether the given instant falls inside the term's
// registration window.
func (t AcademicTerm) RegistrationOpen(at time.Time) bool {
	return !at.Before(t.RegistrationStart) && !at.After(t.RegistrationEnd)
}

// TermFilter defines filters supported by list endpoints.
type TermFilter struct {
	BatchID   string
	Status    TermStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
