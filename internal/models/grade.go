package models

import "time"

// GradeComponent is one weighted, scored piece of a section's grading
// scheme (e.g. "Midterm", weight 30, max score 30). Weights are percentage
// points and conventionally sum to 100 across a section.
type GradeComponent struct {
	ID        string    `db:"id" json:"id"`
	SectionID string    `db:"section_id" json:"section_id"`
	Name      string    `db:"name" json:"name"`
	Weight    float64   `db:"weight" json:"weight"`
	MaxScore  float64   `db:"max_score" json:"max_score"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Grade is one recorded score for an (enrollment, component) pair.
type Grade struct {
	ID           string    `db:"id" json:"id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	ComponentID  string    `db:"component_id" json:"component_id"`
	Score        float64   `db:"score" json:"score"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// FinalGradeStatus tracks publication of a final grade.
type FinalGradeStatus string

const (
	FinalGradeStatusDraft     FinalGradeStatus = "DRAFT"
	FinalGradeStatusPublished FinalGradeStatus = "PUBLISHED"
)

// FinalGrade is the derived letter grade for one enrollment. It is never
// authored directly; publication computes it from the recorded components.
type FinalGrade struct {
	ID              string           `db:"id" json:"id"`
	EnrollmentID    string           `db:"enrollment_id" json:"enrollment_id"`
	LetterGrade     string           `db:"letter_grade" json:"letter_grade"`
	GradePoint      float64          `db:"grade_point" json:"grade_point"`
	TotalPercentage float64          `db:"total_percentage" json:"total_percentage"`
	Status          FinalGradeStatus `db:"status" json:"status"`
	PublishedAt     *time.Time       `db:"published_at" json:"published_at,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// GradeScaleBand is one row of the configurable percentage-to-letter scale.
// Bands are consulted in descending MinPercentage order, first match wins.
type GradeScaleBand struct {
	ID            string    `db:"id" json:"id"`
	MinPercentage float64   `db:"min_percentage" json:"min_percentage"`
	LetterGrade   string    `db:"letter_grade" json:"letter_grade"`
	GradePoint    float64   `db:"grade_point" json:"grade_point"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// DefaultGradeScale returns the seed bands used when no scale has been
// configured.
func DefaultGradeScale() []GradeScaleBand {
	return []GradeScaleBand{
		{MinPercentage: 95, LetterGrade: "A+", GradePoint: 4.0},
		{MinPercentage: 90, LetterGrade: "A", GradePoint: 4.0},
		{MinPercentage: 85, LetterGrade: "B+", GradePoint: 3.5},
		{MinPercentage: 80, LetterGrade: "B", GradePoint: 3.0},
		{MinPercentage: 75, LetterGrade: "C+", GradePoint: 2.5},
		{MinPercentage: 70, LetterGrade: "C", GradePoint: 2.0},
		{MinPercentage: 65, LetterGrade: "D+", GradePoint: 1.5},
		{MinPercentage: 60, LetterGrade: "D", GradePoint: 1.0},
		{MinPercentage: 0, LetterGrade: "F", GradePoint: 0.0},
	}
}

// ComponentScore is one row of an in-progress grade sheet. Score is nil
// when the component has not been graded yet, which is distinct from a
// recorded zero.
type ComponentScore struct {
	ComponentID  string   `json:"component_id"`
	Name         string   `json:"name"`
	Weight       float64  `json:"weight"`
	MaxScore     float64  `json:"max_score"`
	Score        *float64 `json:"score"`
	Contribution *float64 `json:"contribution"`
}

// GradeSheet is the in-progress grade view for one enrollment.
type GradeSheet struct {
	EnrollmentID  string           `json:"enrollment_id"`
	CourseCode    string           `json:"course_code"`
	Components    []ComponentScore `json:"components"`
	WeightedTotal float64          `json:"weighted_total"`
}

// PublishFailure records one enrollment whose publish step failed.
type PublishFailure struct {
	EnrollmentID string `json:"enrollment_id"`
	Reason       string `json:"reason"`
}

// PublishResult summarises a section-wide final grade publication.
type PublishResult struct {
	SectionID string           `json:"section_id"`
	Published int              `json:"published"`
	Skipped   int              `json:"skipped"`
	Failures  []PublishFailure `json:"failures,omitempty"`
}

// GradeFilter allows querying of grade entries.
type GradeFilter struct {
	EnrollmentID string
	ComponentID  string
}
