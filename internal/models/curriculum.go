package models

import "time"

// Curriculum declares the course plan a batch follows.
type Curriculum struct {
	ID           string    `db:"id" json:"id"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	Name         string    `db:"name" json:"name"`
	TotalCredits int       `db:"total_credits" json:"total_credits"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// CurriculumCourse places a course at a (year, semester) slot in a curriculum.
type CurriculumCourse struct {
	ID           string    `db:"id" json:"id"`
	CurriculumID string    `db:"curriculum_id" json:"curriculum_id"`
	CourseID     string    `db:"course_id" json:"course_id"`
	Year         int       `db:"year" json:"year"`
	Semester     int       `db:"semester" json:"semester"`
	Required     bool      `db:"required" json:"required"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Ordinal maps the placement to a strictly increasing sequence number so
// prerequisite ordering can be compared across years.
func (c CurriculumCourse) Ordinal() int {
	return c.Year*2 + c.Semester - 2
}

// CurriculumCourseDetail adds course info to a placement.
type CurriculumCourseDetail struct {
	CurriculumCourse
	CourseCode  string `db:"course_code" json:"course_code"`
	CourseTitle string `db:"course_title" json:"course_title"`
	Credits     int    `db:"credits" json:"credits"`
}

// CurriculumDetail bundles a curriculum with its placements.
type CurriculumDetail struct {
	Curriculum
	Courses []CurriculumCourseDetail `json:"courses,omitempty"`
}

// CurriculumFilter captures filters for listing curricula.
type CurriculumFilter struct {
	DepartmentID string
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
