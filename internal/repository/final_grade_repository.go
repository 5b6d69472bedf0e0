package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-sis-api/internal/models"
)

// ErrEnrollmentNotEnrolled is returned by PublishOne when the locked
// enrollment row is no longer ENROLLED.
var ErrEnrollmentNotEnrolled = fmt.Errorf("enrollment is not enrolled")

// FinalGradeRepository handles persistence of derived final grades.
type FinalGradeRepository struct {
	db *sqlx.DB
}

// NewFinalGradeRepository creates a new final grade repository.
func NewFinalGradeRepository(db *sqlx.DB) *FinalGradeRepository {
	return &FinalGradeRepository{db: db}
}

// FindByEnrollment returns the final grade for an enrollment, if any.
func (r *FinalGradeRepository) FindByEnrollment(ctx context.Context, enrollmentID string) (*models.FinalGrade, error) {
	const query = `SELECT id, enrollment_id, letter_grade, grade_point, total_percentage, status, published_at, created_at, updated_at
        FROM final_grades WHERE enrollment_id = $1`
	var grade models.FinalGrade
	if err := r.db.GetContext(ctx, &grade, query, enrollmentID); err != nil {
		return nil, err
	}
	return &grade, nil
}

// PublishOne publishes the final grade for one enrollment. The enrollment
// row is locked, the grade rows are re-read under that lock and handed to
// derive, and the final grade upsert commits together with the COMPLETED
// transition, so a score recorded concurrently cannot be lost between the
// weighted-sum read and the publish, and a failed status update rolls the
// published grade back with it.
func (r *FinalGradeRepository) PublishOne(ctx context.Context, enrollmentID string, derive func(scores map[string]float64) models.FinalGrade) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin publish tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var status models.EnrollmentStatus
	if err := tx.GetContext(ctx, &status, `SELECT status FROM enrollments WHERE id = $1 FOR UPDATE`, enrollmentID); err != nil {
		return fmt.Errorf("lock enrollment: %w", err)
	}
	if status != models.EnrollmentStatusEnrolled {
		return ErrEnrollmentNotEnrolled
	}

	rows, err := tx.QueryxContext(ctx, `SELECT component_id, score FROM grades WHERE enrollment_id = $1`, enrollmentID)
	if err != nil {
		return fmt.Errorf("read grades: %w", err)
	}
	scores := make(map[string]float64)
	for rows.Next() {
		var componentID string
		var score float64
		if err := rows.Scan(&componentID, &score); err != nil {
			rows.Close()
			return fmt.Errorf("scan grade: %w", err)
		}
		scores[componentID] = score
	}
	rows.Close()

	final := derive(scores)
	final.EnrollmentID = enrollmentID
	if final.ID == "" {
		final.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	final.CreatedAt = now
	final.UpdatedAt = now

	const upsert = `INSERT INTO final_grades (id, enrollment_id, letter_grade, grade_point, total_percentage, status, published_at, created_at, updated_at)
        VALUES (:id, :enrollment_id, :letter_grade, :grade_point, :total_percentage, :status, :published_at, :created_at, :updated_at)
        ON CONFLICT (enrollment_id)
        DO UPDATE SET letter_grade = EXCLUDED.letter_grade,
            grade_point = EXCLUDED.grade_point,
            total_percentage = EXCLUDED.total_percentage,
            status = EXCLUDED.status,
            published_at = EXCLUDED.published_at,
            updated_at = EXCLUDED.updated_at`
	if _, err := tx.NamedExecContext(ctx, upsert, final); err != nil {
		return fmt.Errorf("store final grade: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1`,
		enrollmentID, models.EnrollmentStatusCompleted, now); err != nil {
		return fmt.Errorf("complete enrollment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit publish: %w", err)
	}
	return nil
}

// ListBySection returns final grades for every enrollment of a section,
// keyed by enrollment ID.
func (r *FinalGradeRepository) ListBySection(ctx context.Context, sectionID string) (map[string]models.FinalGrade, error) {
	const query = `SELECT f.id, f.enrollment_id, f.letter_grade, f.grade_point, f.total_percentage, f.status, f.published_at, f.created_at, f.updated_at
        FROM final_grades f
        JOIN enrollments e ON e.id = f.enrollment_id
        WHERE e.section_id = $1`
	var grades []models.FinalGrade
	if err := r.db.SelectContext(ctx, &grades, query, sectionID); err != nil {
		return nil, fmt.Errorf("list final grades by section: %w", err)
	}
	out := make(map[string]models.FinalGrade, len(grades))
	for _, g := range grades {
		out[g.EnrollmentID] = g
	}
	return out, nil
}
