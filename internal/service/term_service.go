package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-sis-api/internal/models"
	appErrors "github.com/noah-isme/uni-sis-api/pkg/errors"
)

type termRepository interface {
	List(ctx context.Context, filter models.TermFilter) ([]models.AcademicTerm, error)
	FindByID(ctx context.Context, id string) (*models.AcademicTerm, error)
	ListByBatch(ctx context.Context, batchID string) ([]models.AcademicTerm, error)
	Create(ctx context.Context, term *models.AcademicTerm) error
	Update(ctx context.Context, term *models.AcademicTerm) error
	Activate(ctx context.Context, id, batchID string) error
}

// TermRequest describes a term create/update payload.
type TermRequest struct {
	BatchID           string    `json:"batch_id" validate:"required"`
	Name              string    `json:"name" validate:"required"`
	StartDate         time.Time `json:"start_date" validate:"required"`
	EndDate           time.Time `json:"end_date" validate:"required"`
	RegistrationStart time.Time `json:"registration_start" validate:"required"`
	RegistrationEnd   time.Time `json:"registration_end" validate:"required"`
}

// TermService manages academic terms and their registration windows.
type TermService struct {
	repo      termRepository
	batches   batchReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTermService constructs TermService.
func NewTermService(repo termRepository, batches batchReader, validate *validator.Validate, logger *zap.Logger) *TermService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TermService{repo: repo, batches: batches, validator: validate, logger: logger}
}

// List returns terms matching the filter.
func (s *TermService) List(ctx context.Context, filter models.TermFilter) ([]models.AcademicTerm, error) {
	terms, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list terms")
	}
	return terms, nil
}

// Get returns one term.
func (s *TermService) Get(ctx context.Context, id string) (*models.AcademicTerm, error) {
	term, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	return term, nil
}

// Create adds a term after checking window sanity and that it does not
// overlap any sibling term of the same batch.
func (s *TermService) Create(ctx context.Context, req TermRequest) (*models.AcademicTerm, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}
	if _, err := s.batches.FindByID(ctx, req.BatchID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	if err := checkTermWindows(req); err != nil {
		return nil, err
	}
	if err := s.checkOverlap(ctx, req, ""); err != nil {
		return nil, err
	}

	term := &models.AcademicTerm{
		BatchID:           req.BatchID,
		Name:              req.Name,
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
		RegistrationStart: req.RegistrationStart,
		RegistrationEnd:   req.RegistrationEnd,
		Status:            models.TermStatusInactive,
	}
	if err := s.repo.Create(ctx, term); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create term")
	}
	return term, nil
}

// Update changes a term's dates or name under the same overlap rules.
func (s *TermService) Update(ctx context.Context, id string, req TermRequest) (*models.AcademicTerm, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}
	term, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	if err := checkTermWindows(req); err != nil {
		return nil, err
	}
	if err := s.checkOverlap(ctx, req, id); err != nil {
		return nil, err
	}

	term.Name = req.Name
	term.StartDate = req.StartDate
	term.EndDate = req.EndDate
	term.RegistrationStart = req.RegistrationStart
	term.RegistrationEnd = req.RegistrationEnd
	if err := s.repo.Update(ctx, term); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update term")
	}
	return term, nil
}

// Activate marks a term ACTIVE; any other ACTIVE term of the batch is
// demoted in the same transaction.
func (s *TermService) Activate(ctx context.Context, id string) (*models.AcademicTerm, error) {
	term, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	if term.Status == models.TermStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "completed terms cannot be reactivated")
	}
	if err := s.repo.Activate(ctx, id, term.BatchID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate term")
	}
	s.logger.Info("term activated", zap.String("term_id", id), zap.String("batch_id", term.BatchID))
	return s.repo.FindByID(ctx, id)
}

// Complete marks a term COMPLETED.
func (s *TermService) Complete(ctx context.Context, id string) (*models.AcademicTerm, error) {
	term, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	term.Status = models.TermStatusCompleted
	if err := s.repo.Update(ctx, term); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update term")
	}
	return term, nil
}

func (s *TermService) checkOverlap(ctx context.Context, req TermRequest, excludeID string) error {
	siblings, err := s.repo.ListByBatch(ctx, req.BatchID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list batch terms")
	}
	for _, sibling := range siblings {
		if sibling.ID == excludeID {
			continue
		}
		if req.StartDate.Before(sibling.EndDate) && req.EndDate.After(sibling.StartDate) {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("term dates overlap %s", sibling.Name))
		}
	}
	return nil
}

func checkTermWindows(req TermRequest) error {
	if !req.StartDate.Before(req.EndDate) {
		return appErrors.Clone(appErrors.ErrValidation, "start date must precede end date")
	}
	if !req.RegistrationStart.Before(req.RegistrationEnd) {
		return appErrors.Clone(appErrors.ErrValidation, "registration start must precede registration end")
	}
	if req.RegistrationEnd.After(req.EndDate) {
		return appErrors.Clone(appErrors.ErrValidation, "registration window must close before the term ends")
	}
	return nil
}
