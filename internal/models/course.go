package models

import "time"

// CourseCategory classifies courses within a curriculum.
type CourseCategory string

const (
	CourseCategoryCore     CourseCategory = "CORE"
	CourseCategoryElective CourseCategory = "ELECTIVE"
	CourseCategoryGeneral  CourseCategory = "GENERAL"
)

// Valid returns true when the category is a supported value.
func (c CourseCategory) Valid() bool {
	switch c {
	case CourseCategoryCore, CourseCategoryElective, CourseCategoryGeneral:
		return true
	default:
		return false
	}
}

// PrerequisiteType distinguishes hard prerequisites from corequisites.
type PrerequisiteType string

const (
	PrerequisiteTypePrerequisite PrerequisiteType = "PREREQUISITE"
	PrerequisiteTypeCorequisite  PrerequisiteType = "COREQUISITE"
)

// Course represents an academic course in the catalog.
// A nil DepartmentID means the course is open to all departments.
type Course struct {
	ID           string         `db:"id" json:"id"`
	Code         string         `db:"code" json:"code"`
	Title        string         `db:"title" json:"title"`
	Credits      int            `db:"credits" json:"credits"`
	Category     CourseCategory `db:"category" json:"category"`
	DepartmentID *string        `db:"department_id" json:"department_id,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// Prerequisite is a directed edge between two courses.
type Prerequisite struct {
	ID             string           `db:"id" json:"id"`
	CourseID       string           `db:"course_id" json:"course_id"`
	PrerequisiteID string           `db:"prerequisite_id" json:"prerequisite_id"`
	Type           PrerequisiteType `db:"type" json:"type"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
}

// PrerequisiteDetail adds the prerequisite course's code and title.
type PrerequisiteDetail struct {
	Prerequisite
	PrerequisiteCode  string `db:"prerequisite_code" json:"prerequisite_code"`
	PrerequisiteTitle string `db:"prerequisite_title" json:"prerequisite_title"`
}

// CourseDetail enriches Course with its prerequisite edges.
type CourseDetail struct {
	Course
	Prerequisites []PrerequisiteDetail `json:"prerequisites,omitempty"`
}

// CourseFilter captures supported filters for listing courses.
type CourseFilter struct {
	DepartmentID string
	Category     CourseCategory
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
