package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-sis-api/internal/models"
)

// PolicyRepository handles the standing policy row and the grade scale.
type PolicyRepository struct {
	db *sqlx.DB
}

// NewPolicyRepository creates a new policy repository.
func NewPolicyRepository(db *sqlx.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// FindStandingPolicy returns the single standing policy row, or nil when
// none has been configured yet.
func (r *PolicyRepository) FindStandingPolicy(ctx context.Context) (*models.StandingPolicy, error) {
	const query = `SELECT id, probation_threshold, warning_threshold, application_min_gpa, updated_at
        FROM standing_policies LIMIT 1`
	var policy models.StandingPolicy
	if err := r.db.GetContext(ctx, &policy, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find standing policy: %w", err)
	}
	return &policy, nil
}

// UpsertStandingPolicy stores the standing policy. Only one row ever exists.
func (r *PolicyRepository) UpsertStandingPolicy(ctx context.Context, policy *models.StandingPolicy) error {
	if policy.ID == "" {
		policy.ID = uuid.NewString()
	}
	policy.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin policy upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var existingID string
	err = tx.GetContext(ctx, &existingID, `SELECT id FROM standing_policies LIMIT 1 FOR UPDATE`)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		const insert = `INSERT INTO standing_policies (id, probation_threshold, warning_threshold, application_min_gpa, updated_at)
            VALUES (:id, :probation_threshold, :warning_threshold, :application_min_gpa, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, insert, policy); err != nil {
			return fmt.Errorf("insert standing policy: %w", err)
		}
	case err != nil:
		return fmt.Errorf("lock standing policy: %w", err)
	default:
		policy.ID = existingID
		const update = `UPDATE standing_policies SET probation_threshold = :probation_threshold,
            warning_threshold = :warning_threshold, application_min_gpa = :application_min_gpa,
            updated_at = :updated_at WHERE id = :id`
		if _, err := tx.NamedExecContext(ctx, update, policy); err != nil {
			return fmt.Errorf("update standing policy: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit policy upsert: %w", err)
	}
	return nil
}

// ListGradeScale returns the configured scale bands in descending
// min-percentage order, or an empty slice when none are configured.
func (r *PolicyRepository) ListGradeScale(ctx context.Context) ([]models.GradeScaleBand, error) {
	const query = `SELECT id, min_percentage, letter_grade, grade_point, created_at
        FROM grade_scale_bands ORDER BY min_percentage DESC`
	var bands []models.GradeScaleBand
	if err := r.db.SelectContext(ctx, &bands, query); err != nil {
		return nil, fmt.Errorf("list grade scale: %w", err)
	}
	return bands, nil
}

// ReplaceGradeScale atomically swaps the configured scale for a new one.
func (r *PolicyRepository) ReplaceGradeScale(ctx context.Context, bands []models.GradeScaleBand) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin scale replace: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM grade_scale_bands`); err != nil {
		return fmt.Errorf("clear grade scale: %w", err)
	}

	now := time.Now().UTC()
	const insert = `INSERT INTO grade_scale_bands (id, min_percentage, letter_grade, grade_point, created_at)
        VALUES (:id, :min_percentage, :letter_grade, :grade_point, :created_at)`
	for i := range bands {
		if bands[i].ID == "" {
			bands[i].ID = uuid.NewString()
		}
		bands[i].CreatedAt = now
		if _, err := tx.NamedExecContext(ctx, insert, bands[i]); err != nil {
			return fmt.Errorf("insert scale band: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit scale replace: %w", err)
	}
	return nil
}
