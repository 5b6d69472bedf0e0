package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-sis-api/internal/models"
	appErrors "github.com/noah-isme/uni-sis-api/pkg/errors"
)

type batchRepository interface {
	List(ctx context.Context, filter models.BatchFilter) ([]models.Batch, int, error)
	FindByID(ctx context.Context, id string) (*models.Batch, error)
	Create(ctx context.Context, batch *models.Batch) error
	Update(ctx context.Context, batch *models.Batch) error
	Delete(ctx context.Context, id string) error
}

type curriculumReader interface {
	FindByID(ctx context.Context, id string) (*models.Curriculum, error)
}

// BatchRequest describes a cohort create/update payload.
type BatchRequest struct {
	Name         string  `json:"name" validate:"required"`
	DepartmentID *string `json:"department_id"`
	CurriculumID string  `json:"curriculum_id" validate:"required"`
	EntryYear    int     `json:"entry_year" validate:"gte=1990"`
	MinCredits   int     `json:"min_credits" validate:"gte=0"`
	MaxCredits   int     `json:"max_credits" validate:"gt=0"`
}

// BatchService manages admitted cohorts and their credit-load policy.
type BatchService struct {
	repo        batchRepository
	curricula   curriculumReader
	departments departmentReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewBatchService constructs BatchService.
func NewBatchService(repo batchRepository, curricula curriculumReader, departments departmentReader, validate *validator.Validate, logger *zap.Logger) *BatchService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchService{repo: repo, curricula: curricula, departments: departments, validator: validate, logger: logger}
}

// List returns batches with pagination metadata.
func (s *BatchService) List(ctx context.Context, filter models.BatchFilter) ([]models.Batch, *models.Pagination, error) {
	batches, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list batches")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return batches, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one batch.
func (s *BatchService) Get(ctx context.Context, id string) (*models.Batch, error) {
	batch, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	return batch, nil
}

// Create registers a cohort.
func (s *BatchService) Create(ctx context.Context, req BatchRequest) (*models.Batch, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}
	if err := s.checkReferences(ctx, req); err != nil {
		return nil, err
	}
	batch := &models.Batch{
		Name:         req.Name,
		DepartmentID: req.DepartmentID,
		CurriculumID: req.CurriculumID,
		EntryYear:    req.EntryYear,
		MinCredits:   req.MinCredits,
		MaxCredits:   req.MaxCredits,
	}
	if err := s.repo.Create(ctx, batch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create batch")
	}
	s.logger.Info("batch created", zap.String("batch_id", batch.ID), zap.Int("entry_year", batch.EntryYear))
	return batch, nil
}

// Update changes a batch's mutable fields.
func (s *BatchService) Update(ctx context.Context, id string, req BatchRequest) (*models.Batch, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}
	batch, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	if err := s.checkReferences(ctx, req); err != nil {
		return nil, err
	}
	batch.Name = req.Name
	batch.DepartmentID = req.DepartmentID
	batch.CurriculumID = req.CurriculumID
	batch.EntryYear = req.EntryYear
	batch.MinCredits = req.MinCredits
	batch.MaxCredits = req.MaxCredits
	if err := s.repo.Update(ctx, batch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update batch")
	}
	return batch, nil
}

// Delete removes a batch.
func (s *BatchService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete batch")
	}
	return nil
}

func (s *BatchService) checkReferences(ctx context.Context, req BatchRequest) error {
	if req.MinCredits > req.MaxCredits {
		return appErrors.Clone(appErrors.ErrValidation, "min credits cannot exceed max credits")
	}
	if _, err := s.curricula.FindByID(ctx, req.CurriculumID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "curriculum not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum")
	}
	if req.DepartmentID != nil {
		if _, err := s.departments.FindByID(ctx, *req.DepartmentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "department not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
		}
	}
	return nil
}
