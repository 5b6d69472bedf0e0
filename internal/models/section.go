package models

import "time"

// Section is one offering of a course within a term with its own
// capacity, faculty owner and weekly schedule slots.
type Section struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	TermID    string    `db:"term_id" json:"term_id"`
	FacultyID string    `db:"faculty_id" json:"faculty_id"`
	Capacity  int       `db:"capacity" json:"capacity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ScheduleSlot is one weekly meeting of a section. Day of week runs 0-6
// (0 = Sunday); start and end are zero-padded "HH:MM" strings compared
// lexically.
type ScheduleSlot struct {
	ID        string    `db:"id" json:"id"`
	SectionID string    `db:"section_id" json:"section_id"`
	DayOfWeek int       `db:"day_of_week" json:"day_of_week"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	Room      string    `db:"room" json:"room"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Overlaps reports whether two slots collide: same day and intersecting
// half-open [start, end) intervals.
func (s ScheduleSlot) Overlaps(other ScheduleSlot) bool {
	if s.DayOfWeek != other.DayOfWeek {
		return false
	}
	return s.StartTime < other.EndTime && s.EndTime > other.StartTime
}

// SectionDetail enriches Section with course, faculty and term info.
type SectionDetail struct {
	Section
	CourseCode    string         `db:"course_code" json:"course_code"`
	CourseTitle   string         `db:"course_title" json:"course_title"`
	Credits       int            `db:"credits" json:"credits"`
	FacultyName   string         `db:"faculty_name" json:"faculty_name"`
	TermName      string         `db:"term_name" json:"term_name"`
	EnrolledCount int            `db:"enrolled_count" json:"enrolled_count"`
	Slots         []ScheduleSlot `json:"slots,omitempty"`
}

// SlotConflict describes an existing slot that clashes with a new one.
type SlotConflict struct {
	SlotID     string `json:"slot_id"`
	SectionID  string `json:"section_id"`
	CourseCode string `json:"course_code"`
	DayOfWeek  int    `json:"day_of_week"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Room       string `json:"room"`
	Dimension  string `json:"dimension"`
}

// SectionFilter describes query params for listing sections.
type SectionFilter struct {
	TermID    string
	CourseID  string
	FacultyID string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentScheduleEntry is one row of a student's weekly schedule.
type StudentScheduleEntry struct {
	EnrollmentID string         `json:"enrollment_id"`
	SectionID    string         `json:"section_id"`
	CourseCode   string         `json:"course_code"`
	CourseTitle  string         `json:"course_title"`
	Credits      int            `json:"credits"`
	FacultyName  string         `json:"faculty_name"`
	Slots        []ScheduleSlot `json:"slots"`
}
