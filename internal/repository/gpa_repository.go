package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-sis-api/internal/models"
)

// GPARepository handles persistence of derived GPA aggregates and the
// completed-course queries they are computed from.
type GPARepository struct {
	db *sqlx.DB
}

// NewGPARepository creates a new GPA repository.
func NewGPARepository(db *sqlx.DB) *GPARepository {
	return &GPARepository{db: db}
}

const completedCourseQuery = `SELECT e.id AS enrollment_id,
        t.id AS term_id, t.name AS term_name,
        c.id AS course_id, c.code AS course_code, c.title AS course_title, c.credits,
        f.letter_grade, f.grade_point, f.total_percentage
    FROM enrollments e
    JOIN final_grades f ON f.enrollment_id = e.id AND f.status = 'PUBLISHED'
    JOIN sections s ON s.id = e.section_id
    JOIN courses c ON c.id = s.course_id
    JOIN academic_terms t ON t.id = s.term_id
    WHERE e.student_id = $1 AND e.status = 'COMPLETED'`

// ListCompletedCourses returns all completed enrollments of a student with
// their published final grades, ordered by term start then course code.
func (r *GPARepository) ListCompletedCourses(ctx context.Context, studentID string) ([]models.CompletedCourse, error) {
	query := completedCourseQuery + ` ORDER BY t.start_date, c.code`
	var courses []models.CompletedCourse
	if err := r.db.SelectContext(ctx, &courses, query, studentID); err != nil {
		return nil, fmt.Errorf("list completed courses: %w", err)
	}
	return courses, nil
}

// ListCompletedCoursesByTerm restricts the completed history to one term.
func (r *GPARepository) ListCompletedCoursesByTerm(ctx context.Context, studentID, termID string) ([]models.CompletedCourse, error) {
	query := completedCourseQuery + ` AND t.id = $2 ORDER BY c.code`
	var courses []models.CompletedCourse
	if err := r.db.SelectContext(ctx, &courses, query, studentID, termID); err != nil {
		return nil, fmt.Errorf("list completed courses by term: %w", err)
	}
	return courses, nil
}

// UpsertTermGPA stores a term aggregate keyed by (student, term).
func (r *GPARepository) UpsertTermGPA(ctx context.Context, gpa *models.TermGPA) error {
	if gpa.ID == "" {
		gpa.ID = uuid.NewString()
	}
	gpa.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO term_gpas (id, student_id, term_id, gpa, credits_earned, credits_attempted, updated_at)
        VALUES (:id, :student_id, :term_id, :gpa, :credits_earned, :credits_attempted, :updated_at)
        ON CONFLICT (student_id, term_id)
        DO UPDATE SET gpa = EXCLUDED.gpa,
            credits_earned = EXCLUDED.credits_earned,
            credits_attempted = EXCLUDED.credits_attempted,
            updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, gpa); err != nil {
		return fmt.Errorf("upsert term gpa: %w", err)
	}
	return nil
}

// UpsertCumulativeGPA stores the cumulative aggregate keyed by student.
func (r *GPARepository) UpsertCumulativeGPA(ctx context.Context, gpa *models.CumulativeGPA) error {
	if gpa.ID == "" {
		gpa.ID = uuid.NewString()
	}
	gpa.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO cumulative_gpas (id, student_id, cgpa, total_credits, standing, updated_at)
        VALUES (:id, :student_id, :cgpa, :total_credits, :standing, :updated_at)
        ON CONFLICT (student_id)
        DO UPDATE SET cgpa = EXCLUDED.cgpa,
            total_credits = EXCLUDED.total_credits,
            standing = EXCLUDED.standing,
            updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, gpa); err != nil {
		return fmt.Errorf("upsert cumulative gpa: %w", err)
	}
	return nil
}

// FindTermGPA returns a stored term aggregate, if any.
func (r *GPARepository) FindTermGPA(ctx context.Context, studentID, termID string) (*models.TermGPA, error) {
	const query = `SELECT id, student_id, term_id, gpa, credits_earned, credits_attempted, updated_at
        FROM term_gpas WHERE student_id = $1 AND term_id = $2`
	var gpa models.TermGPA
	if err := r.db.GetContext(ctx, &gpa, query, studentID, termID); err != nil {
		return nil, err
	}
	return &gpa, nil
}

// FindCumulativeGPA returns the stored cumulative aggregate, if any.
func (r *GPARepository) FindCumulativeGPA(ctx context.Context, studentID string) (*models.CumulativeGPA, error) {
	const query = `SELECT id, student_id, cgpa, total_credits, standing, updated_at
        FROM cumulative_gpas WHERE student_id = $1`
	var gpa models.CumulativeGPA
	if err := r.db.GetContext(ctx, &gpa, query, studentID); err != nil {
		return nil, err
	}
	return &gpa, nil
}
