package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-sis-api/internal/models"
)

// CollegeRepository handles persistence of colleges.
type CollegeRepository struct {
	db *sqlx.DB
}

// NewCollegeRepository creates a new college repository.
func NewCollegeRepository(db *sqlx.DB) *CollegeRepository {
	return &CollegeRepository{db: db}
}

// List returns colleges matching the filter with pagination.
func (r *CollegeRepository) List(ctx context.Context, filter models.CollegeFilter) ([]models.College, int, error) {
	baseQuery := ` FROM colleges WHERE 1=1`
	args := []interface{}{}
	argID := 1

	if filter.Search != "" {
		baseQuery += fmt.Sprintf(" AND (name ILIKE $%d OR code ILIKE $%d)", argID, argID)
		args = append(args, "%"+filter.Search+"%")
		argID++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count colleges: %w", err)
	}

	query := `SELECT id, code, name, created_at, updated_at` + baseQuery + " ORDER BY code"
	if filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argID, argID+1)
		args = append(args, filter.PageSize, offset)
	}

	var colleges []models.College
	if err := r.db.SelectContext(ctx, &colleges, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list colleges: %w", err)
	}
	return colleges, total, nil
}

// FindByID returns a college by its ID.
func (r *CollegeRepository) FindByID(ctx context.Context, id string) (*models.College, error) {
	const query = `SELECT id, code, name, created_at, updated_at FROM colleges WHERE id = $1`
	var college models.College
	if err := r.db.GetContext(ctx, &college, query, id); err != nil {
		return nil, err
	}
	return &college, nil
}

// FindByCode returns a college by its unique code.
func (r *CollegeRepository) FindByCode(ctx context.Context, code string) (*models.College, error) {
	const query = `SELECT id, code, name, created_at, updated_at FROM colleges WHERE code = $1`
	var college models.College
	if err := r.db.GetContext(ctx, &college, query, code); err != nil {
		return nil, err
	}
	return &college, nil
}

// Create persists a new college.
func (r *CollegeRepository) Create(ctx context.Context, college *models.College) error {
	if college.ID == "" {
		college.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	college.CreatedAt = now
	college.UpdatedAt = now
	const query = `INSERT INTO colleges (id, code, name, created_at, updated_at)
        VALUES (:id, :code, :name, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, college); err != nil {
		return fmt.Errorf("create college: %w", err)
	}
	return nil
}

// Update updates mutable fields of a college.
func (r *CollegeRepository) Update(ctx context.Context, college *models.College) error {
	college.UpdatedAt = time.Now().UTC()
	const query = `UPDATE colleges SET code = :code, name = :name, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, college); err != nil {
		return fmt.Errorf("update college: %w", err)
	}
	return nil
}

// Delete removes a college.
func (r *CollegeRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM colleges WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete college: %w", err)
	}
	return nil
}
