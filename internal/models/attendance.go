package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "PRESENT"
	AttendanceStatusAbsent  AttendanceStatus = "ABSENT"
	AttendanceStatusExcused AttendanceStatus = "EXCUSED"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// Attendance is one presence record per (enrollment, session date).
type Attendance struct {
	ID           string           `db:"id" json:"id"`
	EnrollmentID string           `db:"enrollment_id" json:"enrollment_id"`
	SessionDate  time.Time        `db:"session_date" json:"session_date"`
	Status       AttendanceStatus `db:"status" json:"status"`
	Notes        *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceRecord extends attendance with student context.
type AttendanceRecord struct {
	Attendance
	StudentID   string `db:"student_id" json:"student_id"`
	StudentName string `db:"student_name" json:"student_name"`
	SectionID   string `db:"section_id" json:"section_id"`
}

// AttendanceSummary aggregates one enrollment's attendance history.
type AttendanceSummary struct {
	EnrollmentID string  `db:"enrollment_id" json:"enrollment_id"`
	Present      int     `db:"present" json:"present"`
	Absent       int     `db:"absent" json:"absent"`
	Excused      int     `db:"excused" json:"excused"`
	Total        int     `db:"total" json:"total"`
	PresenceRate float64 `json:"presence_rate"`
}

// AttendanceFilter defines query filters for attendance listings.
type AttendanceFilter struct {
	EnrollmentID string
	SectionID    string
	Status       *AttendanceStatus
	DateFrom     *time.Time
	DateTo       *time.Time
	Page         int
	PageSize     int
}
