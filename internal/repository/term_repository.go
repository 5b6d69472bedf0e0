package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-sis-api/internal/models"
)

// TermRepository handles persistence of academic terms.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository creates a new term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

const termColumns = `id, batch_id, name, start_date, end_date, registration_start, registration_end, status, created_at, updated_at`

// List returns terms matching the filter.
func (r *TermRepository) List(ctx context.Context, filter models.TermFilter) ([]models.AcademicTerm, error) {
	query := `SELECT ` + termColumns + ` FROM academic_terms WHERE 1=1`
	args := []interface{}{}
	argID := 1

	if filter.BatchID != "" {
		query += fmt.Sprintf(" AND batch_id = $%d", argID)
		args = append(args, filter.BatchID)
		argID++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, filter.Status)
		argID++
	}
	query += " ORDER BY start_date DESC"

	var terms []models.AcademicTerm
	if err := r.db.SelectContext(ctx, &terms, query, args...); err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}
	return terms, nil
}

// FindByID returns a term by its ID.
func (r *TermRepository) FindByID(ctx context.Context, id string) (*models.AcademicTerm, error) {
	query := `SELECT ` + termColumns + ` FROM academic_terms WHERE id = $1`
	var term models.AcademicTerm
	if err := r.db.GetContext(ctx, &term, query, id); err != nil {
		return nil, err
	}
	return &term, nil
}

// ListByBatch returns every term of a batch, used for overlap checks.
func (r *TermRepository) ListByBatch(ctx context.Context, batchID string) ([]models.AcademicTerm, error) {
	query := `SELECT ` + termColumns + ` FROM academic_terms WHERE batch_id = $1 ORDER BY start_date`
	var terms []models.AcademicTerm
	if err := r.db.SelectContext(ctx, &terms, query, batchID); err != nil {
		return nil, fmt.Errorf("list terms by batch: %w", err)
	}
	return terms, nil
}

// FindActiveByBatch returns the batch's ACTIVE term, if any.
func (r *TermRepository) FindActiveByBatch(ctx context.Context, batchID string) (*models.AcademicTerm, error) {
	query := `SELECT ` + termColumns + ` FROM academic_terms WHERE batch_id = $1 AND status = 'ACTIVE'`
	var term models.AcademicTerm
	if err := r.db.GetContext(ctx, &term, query, batchID); err != nil {
		return nil, err
	}
	return &term, nil
}

// Create persists a new term.
func (r *TermRepository) Create(ctx context.Context, term *models.AcademicTerm) error {
	if term.ID == "" {
		term.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	term.CreatedAt = now
	term.UpdatedAt = now
	const query = `INSERT INTO academic_terms (id, batch_id, name, start_date, end_date, registration_start, registration_end, status, created_at, updated_at)
        VALUES (:id, :batch_id, :name, :start_date, :end_date, :registration_start, :registration_end, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, term); err != nil {
		return fmt.Errorf("create term: %w", err)
	}
	return nil
}

// Update updates mutable fields of a term.
func (r *TermRepository) Update(ctx context.Context, term *models.AcademicTerm) error {
	term.UpdatedAt = time.Now().UTC()
	const query = `UPDATE academic_terms SET name = :name, start_date = :start_date, end_date = :end_date,
        registration_start = :registration_start, registration_end = :registration_end,
        status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, term); err != nil {
		return fmt.Errorf("update term: %w", err)
	}
	return nil
}

// Activate marks a term ACTIVE and demotes any other ACTIVE term of the
// same batch to INACTIVE in the same transaction.
func (r *TermRepository) Activate(ctx context.Context, id, batchID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin term activation: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE academic_terms SET status = 'INACTIVE', updated_at = $1 WHERE batch_id = $2 AND status = 'ACTIVE' AND id <> $3`,
		now, batchID, id); err != nil {
		return fmt.Errorf("deactivate sibling terms: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE academic_terms SET status = 'ACTIVE', updated_at = $1 WHERE id = $2`,
		now, id); err != nil {
		return fmt.Errorf("activate term: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit term activation: %w", err)
	}
	return nil
}
