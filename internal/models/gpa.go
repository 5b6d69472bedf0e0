package models

import "time"

// AcademicStanding classifies a cumulative GPA into coarse bands.
type AcademicStanding string

const (
	StandingGood      AcademicStanding = "GOOD_STANDING"
	StandingWarning   AcademicStanding = "ACADEMIC_WARNING"
	StandingProbation AcademicStanding = "ACADEMIC_PROBATION"
)

// StandingPolicy is the single configurable source of truth for academic
// standing thresholds, consulted by both the GPA engine and the department
// selection workflow.
type StandingPolicy struct {
	ID                 string    `db:"id" json:"id"`
	ProbationThreshold float64   `db:"probation_threshold" json:"probation_threshold"`
	WarningThreshold   float64   `db:"warning_threshold" json:"warning_threshold"`
	ApplicationMinGPA  float64   `db:"application_min_gpa" json:"application_min_gpa"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// Standing maps a cumulative GPA onto a standing band.
func (p StandingPolicy) Standing(cgpa float64) AcademicStanding {
	switch {
	case cgpa < p.ProbationThreshold:
		return StandingProbation
	case cgpa < p.WarningThreshold:
		return StandingWarning
	default:
		return StandingGood
	}
}

// TermGPA is a derived aggregate over one student's completed enrollments
// in a single term. It is recomputed from scratch, never patched.
type TermGPA struct {
	ID               string    `db:"id" json:"id"`
	StudentID        string    `db:"student_id" json:"student_id"`
	TermID           string    `db:"term_id" json:"term_id"`
	GPA              float64   `db:"gpa" json:"gpa"`
	CreditsEarned    int       `db:"credits_earned" json:"credits_earned"`
	CreditsAttempted int       `db:"credits_attempted" json:"credits_attempted"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// CumulativeGPA aggregates a student's entire completed history.
type CumulativeGPA struct {
	ID           string           `db:"id" json:"id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	CGPA         float64          `db:"cgpa" json:"cgpa"`
	TotalCredits int              `db:"total_credits" json:"total_credits"`
	Standing     AcademicStanding `db:"standing" json:"standing"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// CompletedCourse is one completed enrollment row used for GPA aggregation
// and transcripts.
type CompletedCourse struct {
	EnrollmentID    string  `db:"enrollment_id" json:"enrollment_id"`
	TermID          string  `db:"term_id" json:"term_id"`
	TermName        string  `db:"term_name" json:"term_name"`
	CourseID        string  `db:"course_id" json:"course_id"`
	CourseCode      string  `db:"course_code" json:"course_code"`
	CourseTitle     string  `db:"course_title" json:"course_title"`
	Credits         int     `db:"credits" json:"credits"`
	LetterGrade     string  `db:"letter_grade" json:"letter_grade"`
	GradePoint      float64 `db:"grade_point" json:"grade_point"`
	TotalPercentage float64 `db:"total_percentage" json:"total_percentage"`
}

// TranscriptTerm groups completed courses under one term with its GPA.
type TranscriptTerm struct {
	TermID           string            `json:"term_id"`
	TermName         string            `json:"term_name"`
	GPA              float64           `json:"gpa"`
	CreditsEarned    int               `json:"credits_earned"`
	CreditsAttempted int               `json:"credits_attempted"`
	Courses          []CompletedCourse `json:"courses"`
}

// Transcript is the full academic history of one student.
type Transcript struct {
	StudentID    string           `json:"student_id"`
	StudentName  string           `json:"student_name"`
	Terms        []TranscriptTerm `json:"terms"`
	CGPA         float64          `json:"cgpa"`
	TotalCredits int              `json:"total_credits"`
	Standing     AcademicStanding `json:"standing"`
}
