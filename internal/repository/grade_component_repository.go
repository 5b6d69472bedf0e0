package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-sis-api/internal/models"
)

// GradeComponentRepository handles persistence of section grading schemes.
type GradeComponentRepository struct {
	db *sqlx.DB
}

// NewGradeComponentRepository creates a new component repository.
func NewGradeComponentRepository(db *sqlx.DB) *GradeComponentRepository {
	return &GradeComponentRepository{db: db}
}

// FindByID returns a component by its ID.
func (r *GradeComponentRepository) FindByID(ctx context.Context, id string) (*models.GradeComponent, error) {
	const query = `SELECT id, section_id, name, weight, max_score, created_at, updated_at FROM grade_components WHERE id = $1`
	var component models.GradeComponent
	if err := r.db.GetContext(ctx, &component, query, id); err != nil {
		return nil, err
	}
	return &component, nil
}

// ListBySection returns the grading scheme of a section.
func (r *GradeComponentRepository) ListBySection(ctx context.Context, sectionID string) ([]models.GradeComponent, error) {
	const query = `SELECT id, section_id, name, weight, max_score, created_at, updated_at FROM grade_components WHERE section_id = $1 ORDER BY created_at`
	var components []models.GradeComponent
	if err := r.db.SelectContext(ctx, &components, query, sectionID); err != nil {
		return nil, fmt.Errorf("list grade components: %w", err)
	}
	return components, nil
}

// Create persists a new grade component.
func (r *GradeComponentRepository) Create(ctx context.Context, component *models.GradeComponent) error {
	if component.ID == "" {
		component.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	component.CreatedAt = now
	component.UpdatedAt = now
	const query = `INSERT INTO grade_components (id, section_id, name, weight, max_score, created_at, updated_at)
        VALUES (:id, :section_id, :name, :weight, :max_score, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, component); err != nil {
		return fmt.Errorf("create grade component: %w", err)
	}
	return nil
}

// Update updates mutable fields of a component.
func (r *GradeComponentRepository) Update(ctx context.Context, component *models.GradeComponent) error {
	component.UpdatedAt = time.Now().UTC()
	const query = `UPDATE grade_components SET name = :name, weight = :weight, max_score = :max_score, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, component); err != nil {
		return fmt.Errorf("update grade component: %w", err)
	}
	return nil
}

// Delete removes a component and its recorded grades.
func (r *GradeComponentRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin component delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	if _, err := tx.ExecContext(ctx, `DELETE FROM grades WHERE component_id = $1`, id); err != nil {
		return fmt.Errorf("delete component grades: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM grade_components WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete grade component: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit component delete: %w", err)
	}
	return nil
}
