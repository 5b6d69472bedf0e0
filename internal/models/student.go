package models

import "time"

// StudentStatus represents the lifecycle of a student record.
type StudentStatus string

const (
	StudentStatusActive    StudentStatus = "ACTIVE"
	StudentStatusInactive  StudentStatus = "INACTIVE"
	StudentStatusGraduated StudentStatus = "GRADUATED"
	StudentStatusSuspended StudentStatus = "SUSPENDED"
)

// Student represents a learner registered in the institution. DepartmentID
// stays nil until the department-selection workflow assigns one.
type Student struct {
	ID           string        `db:"id" json:"id"`
	StudentNo    string        `db:"student_no" json:"student_no"`
	FullName     string        `db:"full_name" json:"full_name"`
	Email        string        `db:"email" json:"email"`
	BatchID      string        `db:"batch_id" json:"batch_id"`
	DepartmentID *string       `db:"department_id" json:"department_id,omitempty"`
	Status       StudentStatus `db:"status" json:"status"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// StudentDetail contains student information with batch context.
type StudentDetail struct {
	Student
	BatchName      string  `db:"batch_name" json:"batch_name"`
	DepartmentName *string `db:"department_name" json:"department_name,omitempty"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search       string
	BatchID      string
	DepartmentID string
	Status       StudentStatus
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
