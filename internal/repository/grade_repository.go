package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-sis-api/internal/models"
)

// GradeRepository handles persistence of per-component scores.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// Upsert records a score for an enrollment and component, replacing any
// previous score for the same pair.
func (r *GradeRepository) Upsert(ctx context.Context, grade *models.Grade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	grade.CreatedAt = now
	grade.UpdatedAt = now
	const query = `INSERT INTO grades (id, enrollment_id, component_id, score, created_at, updated_at)
        VALUES (:id, :enrollment_id, :component_id, :score, :created_at, :updated_at)
        ON CONFLICT (enrollment_id, component_id)
        DO UPDATE SET score = EXCLUDED.score, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, grade); err != nil {
		return fmt.Errorf("upsert grade: %w", err)
	}
	return nil
}

// ListByEnrollment returns all recorded scores for an enrollment.
func (r *GradeRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Grade, error) {
	const query = `SELECT id, enrollment_id, component_id, score, created_at, updated_at
        FROM grades WHERE enrollment_id = $1`
	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list grades by enrollment: %w", err)
	}
	return grades, nil
}

// ListBySection returns all recorded scores for every enrollment of a section.
func (r *GradeRepository) ListBySection(ctx context.Context, sectionID string) ([]models.Grade, error) {
	const query = `SELECT g.id, g.enrollment_id, g.component_id, g.score, g.created_at, g.updated_at
        FROM grades g
        JOIN enrollments e ON e.id = g.enrollment_id
        WHERE e.section_id = $1`
	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query, sectionID); err != nil {
		return nil, fmt.Errorf("list grades by section: %w", err)
	}
	return grades, nil
}
