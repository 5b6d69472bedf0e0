package models

import "time"

// Faculty represents an instructor record.
type Faculty struct {
	ID           string    `db:"id" json:"id"`
	StaffNo      *string   `db:"staff_no" json:"staff_no,omitempty"`
	Email        string    `db:"email" json:"email"`
	FullName     string    `db:"full_name" json:"full_name"`
	DepartmentID *string   `db:"department_id" json:"department_id,omitempty"`
	Title        *string   `db:"title" json:"title,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// FacultyFilter captures filtering options for listing faculty.
type FacultyFilter struct {
	Search       string
	DepartmentID string
	Active       *bool
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
