package models

import "time"

// ApplicationStatus represents the lifecycle of a department application.
type ApplicationStatus string

const (
	ApplicationStatusPending   ApplicationStatus = "PENDING"
	ApplicationStatusApproved  ApplicationStatus = "APPROVED"
	ApplicationStatusRejected  ApplicationStatus = "REJECTED"
	ApplicationStatusWithdrawn ApplicationStatus = "WITHDRAWN"
)

// DepartmentApplication is a student's one-time request to join a
// department. GPASnapshot freezes the cumulative GPA at submission time.
type DepartmentApplication struct {
	ID              string            `db:"id" json:"id"`
	StudentID       string            `db:"student_id" json:"student_id"`
	DepartmentID    string            `db:"department_id" json:"department_id"`
	GPASnapshot     float64           `db:"gpa_snapshot" json:"gpa_snapshot"`
	Status          ApplicationStatus `db:"status" json:"status"`
	RejectionReason *string           `db:"rejection_reason" json:"rejection_reason,omitempty"`
	DecidedAt       *time.Time        `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

// ApplicationDetail enriches an application with student and department info.
type ApplicationDetail struct {
	DepartmentApplication
	StudentName    string `db:"student_name" json:"student_name"`
	DepartmentCode string `db:"department_code" json:"department_code"`
	DepartmentName string `db:"department_name" json:"department_name"`
}

// ApplicationFilter captures filters for listing applications.
type ApplicationFilter struct {
	StudentID    string
	DepartmentID string
	Status       ApplicationStatus
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
