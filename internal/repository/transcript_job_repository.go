package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-sis-api/internal/models"
)

// TranscriptJobRepository persists transcript export job metadata.
type TranscriptJobRepository struct {
	db *sqlx.DB
}

// NewTranscriptJobRepository constructs the repository.
func NewTranscriptJobRepository(db *sqlx.DB) *TranscriptJobRepository {
	return &TranscriptJobRepository{db: db}
}

// Create inserts a new export job row with generated defaults.
func (r *TranscriptJobRepository) Create(ctx context.Context, job *models.TranscriptJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.TranscriptJobQueued
	}
	const query = `INSERT INTO transcript_jobs (id, params, status, result_url, created_by, created_at, finished_at, error_message)
VALUES (:id, :params, :status, :result_url, :created_by, :created_at, :finished_at, :error_message)`
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create transcript job: %w", err)
	}
	return nil
}

// GetByID returns a job row by its identifier.
func (r *TranscriptJobRepository) GetByID(ctx context.Context, id string) (*models.TranscriptJob, error) {
	const query = `SELECT id, params, status, result_url, created_by, created_at, finished_at, error_message
FROM transcript_jobs WHERE id = $1`
	var job models.TranscriptJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, fmt.Errorf("get transcript job: %w", err)
	}
	return &job, nil
}

// UpdateTranscriptJobParams defines the mutable fields.
type UpdateTranscriptJobParams struct {
	Status       *models.TranscriptJobStatus
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

// Update persists the provided changes for a job row.
func (r *TranscriptJobRepository) Update(ctx context.Context, id string, params UpdateTranscriptJobParams) error {
	set := make([]string, 0, 4)
	args := make([]interface{}, 0, 5)
	argPos := 1

	if params.Status != nil {
		set = append(set, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *params.Status)
		argPos++
	}
	if params.ResultURL != nil {
		set = append(set, fmt.Sprintf("result_url = $%d", argPos))
		args = append(args, *params.ResultURL)
		argPos++
	}
	if params.ErrorMessage != nil {
		set = append(set, fmt.Sprintf("error_message = $%d", argPos))
		args = append(args, *params.ErrorMessage)
		argPos++
	}
	if params.FinishedAt != nil {
		set = append(set, fmt.Sprintf("finished_at = $%d", argPos))
		args = append(args, *params.FinishedAt)
		argPos++
	}

	if len(set) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE transcript_jobs SET %s WHERE id = $%d", strings.Join(set, ", "), argPos)
	args = append(args, id)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update transcript job: %w", err)
	}
	return nil
}

// ListQueued fetches queued jobs (used for cold start recovery).
func (r *TranscriptJobRepository) ListQueued(ctx context.Context, limit int) ([]models.TranscriptJob, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT id, params, status, result_url, created_by, created_at, finished_at, error_message
FROM transcript_jobs WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT $1`
	var jobs []models.TranscriptJob
	if err := r.db.SelectContext(ctx, &jobs, query, limit); err != nil {
		return nil, fmt.Errorf("list queued transcript jobs: %w", err)
	}
	return jobs, nil
}

// ListFinishedBefore retrieves completed jobs prior to cutoff for cleanup.
func (r *TranscriptJobRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.TranscriptJob, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id, params, status, result_url, created_by, created_at, finished_at, error_message
FROM transcript_jobs WHERE status = 'FINISHED' AND finished_at IS NOT NULL AND finished_at < $1 ORDER BY finished_at ASC LIMIT $2`
	var jobs []models.TranscriptJob
	if err := r.db.SelectContext(ctx, &jobs, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("list finished transcript jobs: %w", err)
	}
	return jobs, nil
}
