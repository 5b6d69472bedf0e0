package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin     UserRole = "ADMIN"
	RoleRegistrar UserRole = "REGISTRAR"
	RoleFaculty   UserRole = "FACULTY"
	RoleStudent   UserRole = "STUDENT"
)

// Permission names one guarded action in the API.
type Permission string

// Permissions guarding core operations.
const (
	PermManageReferenceData Permission = "reference_data:manage"
	PermManageTerms         Permission = "terms:manage"
	PermManageSections      Permission = "sections:manage"
	PermEnrollStudents      Permission = "enrollments:create"
	PermOverrideEnrollment  Permission = "enrollments:override"
	PermViewEnrollments     Permission = "enrollments:view"
	PermRecordGrades        Permission = "grades:record"
	PermPublishGrades       Permission = "grades:publish"
	PermViewTranscripts     Permission = "transcripts:view"
	PermRecordAttendance    Permission = "attendance:record"
	PermDecideApplications  Permission = "applications:decide"
	PermApplyDepartment     Permission = "applications:create"
	PermManageUsers         Permission = "users:manage"
	PermManagePolicies      Permission = "policies:manage"
)

// RolePermissions is the static role to permission mapping. It is built once
// at process start and never mutated.
type RolePermissions map[UserRole]map[Permission]struct{}

// DefaultRolePermissions returns the canonical permission table.
func DefaultRolePermissions() RolePermissions {
	grants := map[UserRole][]Permission{
		RoleAdmin: {
			PermManageReferenceData, PermManageTerms, PermManageSections,
			PermEnrollStudents, PermOverrideEnrollment, PermViewEnrollments,
			PermRecordGrades, PermPublishGrades, PermViewTranscripts,
			PermRecordAttendance, PermDecideApplications, PermManageUsers,
			PermManagePolicies,
		},
		RoleRegistrar: {
			PermManageReferenceData, PermManageTerms, PermManageSections,
			PermEnrollStudents, PermOverrideEnrollment, PermViewEnrollments,
			PermPublishGrades, PermViewTranscripts, PermDecideApplications,
			PermManagePolicies,
		},
		RoleFaculty: {
			PermViewEnrollments, PermRecordGrades, PermRecordAttendance,
			PermViewTranscripts,
		},
		RoleStudent: {
			PermEnrollStudents, PermViewEnrollments, PermViewTranscripts,
			PermApplyDepartment,
		},
	}
	table := make(RolePermissions, len(grants))
	for role, perms := range grants {
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		table[role] = set
	}
	return table
}

// Allows reports whether the role carries the permission.
func (r RolePermissions) Allows(role UserRole, perm Permission) bool {
	perms, ok := r[role]
	if !ok {
		return false
	}
	_, ok = perms[perm]
	return ok
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	StudentID    *string    `db:"student_id" json:"student_id,omitempty"`
	FacultyID    *string    `db:"faculty_id" json:"faculty_id,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
