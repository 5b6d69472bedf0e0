package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-sis-api/internal/models"
	"github.com/noah-isme/uni-sis-api/internal/repository"
	appErrors "github.com/noah-isme/uni-sis-api/pkg/errors"
	"github.com/noah-isme/uni-sis-api/pkg/jobs"
)

type transcriptJobStore interface {
	Create(ctx context.Context, job *models.TranscriptJob) error
	GetByID(ctx context.Context, id string) (*models.TranscriptJob, error)
	Update(ctx context.Context, id string, params repository.UpdateTranscriptJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.TranscriptJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.TranscriptJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type exportGenerator interface {
	Generate(ctx context.Context, job *models.TranscriptJob) (*ExportResult, error)
}

// TranscriptExportRequest asks for an asynchronous transcript export.
type TranscriptExportRequest struct {
	StudentID string                  `json:"student_id" validate:"required"`
	Format    models.TranscriptFormat `json:"format" validate:"required"`
}

// TranscriptJobResponse reports a freshly queued job.
type TranscriptJobResponse struct {
	ID     string                     `json:"id"`
	Status models.TranscriptJobStatus `json:"status"`
}

// TranscriptStatusResponse reports job progress to clients.
type TranscriptStatusResponse struct {
	ID        string                     `json:"id"`
	Status    models.TranscriptJobStatus `json:"status"`
	ResultURL *string                    `json:"result_url,omitempty"`
	Error     *string                    `json:"error,omitempty"`
}

// TranscriptDownload aggregates resolved download data.
type TranscriptDownload struct {
	File      *os.File
	Filename  string
	Format    models.TranscriptFormat
	ExpiresAt time.Time
}

// TranscriptServiceConfig governs queue recovery and cleanup.
type TranscriptServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	MaxRetries      int
}

// TranscriptService orchestrates asynchronous transcript export jobs.
type TranscriptService struct {
	repo     transcriptJobStore
	students studentReader
	queue    jobDispatcher
	exporter *TranscriptExportService
	logger   *zap.Logger
	cfg      TranscriptServiceConfig
}

// NewTranscriptService constructs the transcript job service.
func NewTranscriptService(repo transcriptJobStore, students studentReader, queue jobDispatcher, exporter *TranscriptExportService, logger *zap.Logger, cfg TranscriptServiceConfig) *TranscriptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &TranscriptService{
		repo:     repo,
		students: students,
		queue:    queue,
		exporter: exporter,
		logger:   logger,
		cfg:      cfg,
	}
}

// CreateJob validates the request, persists the job, and enqueues processing.
// Students may only export their own transcript.
func (s *TranscriptService) CreateJob(ctx context.Context, req TranscriptExportRequest, actorID string, role models.UserRole, actorStudentID *string) (*TranscriptJobResponse, error) {
	if req.StudentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentId is required")
	}
	if req.Format != models.TranscriptFormatCSV && req.Format != models.TranscriptFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	if role == models.RoleStudent {
		if actorStudentID == nil || *actorStudentID != req.StudentID {
			return nil, appErrors.ErrForbidden
		}
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	job := &models.TranscriptJob{
		Params:    models.TranscriptJobParams{StudentID: req.StudentID, Format: req.Format},
		Status:    models.TranscriptJobQueued,
		CreatedBy: actorID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create transcript job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "transcript"}); err != nil {
		status := models.TranscriptJobFailed
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		_ = s.repo.Update(ctx, job.ID, repository.UpdateTranscriptJobParams{
			Status:       &status,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue transcript job")
	}
	return &TranscriptJobResponse{ID: job.ID, Status: job.Status}, nil
}

// GetStatus exposes job metadata, enforcing ownership for non-staff callers.
func (s *TranscriptService) GetStatus(ctx context.Context, id, actorID string, role models.UserRole) (*TranscriptStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load transcript job")
	}
	if role == models.RoleStudent && job.CreatedBy != actorID {
		return nil, appErrors.ErrForbidden
	}
	resp := &TranscriptStatusResponse{
		ID:     job.ID,
		Status: job.Status,
	}
	if job.ResultURL != nil {
		resp.ResultURL = job.ResultURL
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ResolveDownload validates the token and opens the stored export file.
func (s *TranscriptService) ResolveDownload(ctx context.Context, token string) (*TranscriptDownload, error) {
	jobID, relPath, expiresAt, err := s.exporter.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load transcript job")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.TranscriptJobFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "transcript not ready")
	}
	file, err := s.exporter.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &TranscriptDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		Format:    job.Params.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// RecoverPendingJobs replays queued jobs after a process restart.
func (s *TranscriptService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover queued transcript jobs", "error", err)
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "transcript"}); err != nil {
			s.logger.Sugar().Warnw("failed to requeue pending job", "job_id", job.ID, "error", err)
		}
	}
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *TranscriptService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *TranscriptService) cleanupExpired(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.ResultTTL)
	for {
		stale, err := s.repo.ListFinishedBefore(ctx, cutoff, 100)
		if err != nil {
			s.logger.Sugar().Warnw("cleanup list failed", "error", err)
			return
		}
		if len(stale) == 0 {
			break
		}
		for _, job := range stale {
			if job.ResultURL == nil {
				continue
			}
			token := extractToken(*job.ResultURL)
			if token == "" {
				continue
			}
			_, relPath, _, err := s.exporter.ParseToken(token, true)
			if err != nil {
				continue
			}
			if err := s.exporter.Delete(relPath); err != nil {
				s.logger.Sugar().Warnw("cleanup delete failed", "job_id", job.ID, "error", err)
			}
		}
		if len(stale) < 100 {
			break
		}
	}
	if _, err := s.exporter.Cleanup(s.cfg.ResultTTL); err != nil {
		s.logger.Sugar().Warnw("filesystem cleanup failed", "error", err)
	}
}

func extractToken(url string) string {
	if url == "" {
		return ""
	}
	parts := strings.Split(url, "/")
	return parts[len(parts)-1]
}

// TranscriptWorker bridges queue jobs to the export generator.
type TranscriptWorker struct {
	repo       transcriptJobStore
	exporter   exportGenerator
	logger     *zap.Logger
	maxRetries int
}

// NewTranscriptWorker constructs a worker.
func NewTranscriptWorker(repo transcriptJobStore, exporter exportGenerator, maxRetries int, logger *zap.Logger) *TranscriptWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &TranscriptWorker{
		repo:       repo,
		exporter:   exporter,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Handle processes one queue job.
func (w *TranscriptWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	processing := models.TranscriptJobProcessing
	if err := w.repo.Update(ctx, job.ID, repository.UpdateTranscriptJobParams{Status: &processing}); err != nil {
		return err
	}
	result, err := w.exporter.Generate(ctx, record)
	if err != nil {
		msg := err.Error()
		if job.Attempt >= w.maxRetries {
			failed := models.TranscriptJobFailed
			now := time.Now().UTC()
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateTranscriptJobParams{
				Status:       &failed,
				ErrorMessage: &msg,
				FinishedAt:   &now,
			}); updateErr != nil {
				w.logger.Sugar().Warnw("failed to mark job failed", "job_id", job.ID, "error", updateErr)
			}
		} else {
			queued := models.TranscriptJobQueued
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateTranscriptJobParams{
				Status:       &queued,
				ErrorMessage: &msg,
			}); updateErr != nil {
				w.logger.Sugar().Warnw("failed to mark job queued", "job_id", job.ID, "error", updateErr)
			}
		}
		return err
	}
	finished := models.TranscriptJobFinished
	now := time.Now().UTC()
	url := result.URL
	clear := ""
	if err := w.repo.Update(ctx, job.ID, repository.UpdateTranscriptJobParams{
		Status:       &finished,
		ResultURL:    &url,
		ErrorMessage: &clear,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Sugar().Warnw("failed to mark job finished", "job_id", job.ID, "error", err)
		return err
	}
	return nil
}
