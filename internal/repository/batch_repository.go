package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-sis-api/internal/models"
)

// BatchRepository handles persistence of admitted cohorts.
type BatchRepository struct {
	db *sqlx.DB
}

// NewBatchRepository creates a new batch repository.
func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

const batchColumns = `id, name, department_id, curriculum_id, entry_year, min_credits, max_credits, created_at, updated_at`

// List returns batches matching the filter with pagination.
func (r *BatchRepository) List(ctx context.Context, filter models.BatchFilter) ([]models.Batch, int, error) {
	baseQuery := ` FROM batches WHERE 1=1`
	args := []interface{}{}
	argID := 1

	if filter.DepartmentID != "" {
		baseQuery += fmt.Sprintf(" AND department_id = $%d", argID)
		args = append(args, filter.DepartmentID)
		argID++
	}
	if filter.EntryYear != 0 {
		baseQuery += fmt.Sprintf(" AND entry_year = $%d", argID)
		args = append(args, filter.EntryYear)
		argID++
	}
	if filter.Search != "" {
		baseQuery += fmt.Sprintf(" AND name ILIKE $%d", argID)
		args = append(args, "%"+filter.Search+"%")
		argID++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count batches: %w", err)
	}

	sortBy := "entry_year"
	switch filter.SortBy {
	case "name", "entry_year", "created_at":
		sortBy = filter.SortBy
	}
	sortOrder := "DESC"
	if filter.SortOrder == "asc" {
		sortOrder = "ASC"
	}

	query := `SELECT ` + batchColumns + baseQuery + fmt.Sprintf(" ORDER BY %s %s", sortBy, sortOrder)
	if filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argID, argID+1)
		args = append(args, filter.PageSize, offset)
	}

	var batches []models.Batch
	if err := r.db.SelectContext(ctx, &batches, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list batches: %w", err)
	}
	return batches, total, nil
}

// FindByID returns a batch by its ID.
func (r *BatchRepository) FindByID(ctx context.Context, id string) (*models.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE id = $1`
	var batch models.Batch
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		return nil, err
	}
	return &batch, nil
}

// Create persists a new batch.
func (r *BatchRepository) Create(ctx context.Context, batch *models.Batch) error {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	batch.CreatedAt = now
	batch.UpdatedAt = now
	const query = `INSERT INTO batches (id, name, department_id, curriculum_id, entry_year, min_credits, max_credits, created_at, updated_at)
        VALUES (:id, :name, :department_id, :curriculum_id, :entry_year, :min_credits, :max_credits, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, batch); err != nil {
		return fmt.Errorf("create batch: %w", err)
	}
	return nil
}

// Update updates mutable fields of a batch.
func (r *BatchRepository) Update(ctx context.Context, batch *models.Batch) error {
	batch.UpdatedAt = time.Now().UTC()
	const query = `UPDATE batches SET name = :name, department_id = :department_id, curriculum_id = :curriculum_id,
        entry_year = :entry_year, min_credits = :min_credits, max_credits = :max_credits,
        updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, batch); err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	return nil
}

// Delete removes a batch.
func (r *BatchRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM batches WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	return nil
}
