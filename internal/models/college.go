package models

import "time"

// College represents a top-level academic division.
type College struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Department belongs to a college and owns courses, curricula and seats.
type Department struct {
	ID           string    `db:"id" json:"id"`
	CollegeID    string    `db:"college_id" json:"college_id"`
	Code         string    `db:"code" json:"code"`
	Name         string    `db:"name" json:"name"`
	SeatCapacity int       `db:"seat_capacity" json:"seat_capacity"`
	MinGPA       *float64  `db:"min_gpa" json:"min_gpa,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// DepartmentDetail enriches Department with college info.
type DepartmentDetail struct {
	Department
	CollegeCode string `db:"college_code" json:"college_code"`
	CollegeName string `db:"college_name" json:"college_name"`
}

// CollegeFilter captures filters for listing colleges.
type CollegeFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// DepartmentFilter captures filters for listing departments.
type DepartmentFilter struct {
	CollegeID string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
