package service

import (
	"context"
	"sort"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-sis-api/internal/models"
	appErrors "github.com/noah-isme/uni-sis-api/pkg/errors"
)

type policyRepository interface {
	FindStandingPolicy(ctx context.Context) (*models.StandingPolicy, error)
	UpsertStandingPolicy(ctx context.Context, policy *models.StandingPolicy) error
	ListGradeScale(ctx context.Context) ([]models.GradeScaleBand, error)
	ReplaceGradeScale(ctx context.Context, bands []models.GradeScaleBand) error
}

// StandingPolicyRequest updates the standing thresholds.
type StandingPolicyRequest struct {
	ProbationThreshold float64 `json:"probation_threshold" validate:"gte=0,lte=4"`
	WarningThreshold   float64 `json:"warning_threshold" validate:"gte=0,lte=4"`
	ApplicationMinGPA  float64 `json:"application_min_gpa" validate:"gte=0,lte=4"`
}

// GradeScaleBandRequest is one band of a replacement scale.
type GradeScaleBandRequest struct {
	MinPercentage float64 `json:"min_percentage" validate:"gte=0,lte=100"`
	LetterGrade   string  `json:"letter_grade" validate:"required"`
	GradePoint    float64 `json:"grade_point" validate:"gte=0,lte=4"`
}

// GradeScaleRequest replaces the whole scale at once.
type GradeScaleRequest struct {
	Bands []GradeScaleBandRequest `json:"bands" validate:"required,min=1,dive"`
}

// PolicyService manages the academic standing policy and the grade scale.
type PolicyService struct {
	repo          policyRepository
	defaultPolicy models.StandingPolicy
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewPolicyService constructs PolicyService. defaultPolicy is served until
// an explicit policy is stored.
func NewPolicyService(repo policyRepository, defaultPolicy models.StandingPolicy, validate *validator.Validate, logger *zap.Logger) *PolicyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicyService{repo: repo, defaultPolicy: defaultPolicy, validator: validate, logger: logger}
}

// GetStandingPolicy returns the effective policy, falling back to the
// configured defaults when none has been stored.
func (s *PolicyService) GetStandingPolicy(ctx context.Context) (*models.StandingPolicy, error) {
	policy, err := s.repo.FindStandingPolicy(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load standing policy")
	}
	if policy == nil {
		fallback := s.defaultPolicy
		return &fallback, nil
	}
	return policy, nil
}

// UpdateStandingPolicy stores new standing thresholds.
func (s *PolicyService) UpdateStandingPolicy(ctx context.Context, req StandingPolicyRequest) (*models.StandingPolicy, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid policy payload")
	}
	if req.ProbationThreshold > req.WarningThreshold {
		return nil, appErrors.Clone(appErrors.ErrValidation, "probation threshold cannot exceed warning threshold")
	}
	policy := &models.StandingPolicy{
		ProbationThreshold: req.ProbationThreshold,
		WarningThreshold:   req.WarningThreshold,
		ApplicationMinGPA:  req.ApplicationMinGPA,
	}
	if err := s.repo.UpsertStandingPolicy(ctx, policy); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store standing policy")
	}
	s.logger.Info("standing policy updated",
		zap.Float64("probation", policy.ProbationThreshold),
		zap.Float64("warning", policy.WarningThreshold),
		zap.Float64("application_min_gpa", policy.ApplicationMinGPA))
	return policy, nil
}

// GetGradeScale returns the effective scale in descending min-percentage
// order, seeded with the default bands when none are configured.
func (s *PolicyService) GetGradeScale(ctx context.Context) ([]models.GradeScaleBand, error) {
	bands, err := s.repo.ListGradeScale(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade scale")
	}
	if len(bands) == 0 {
		return models.DefaultGradeScale(), nil
	}
	return bands, nil
}

// ReplaceGradeScale swaps the whole scale. The replacement must carry
// distinct thresholds and a zero-percentage floor band so every percentage
// maps to a letter.
func (s *PolicyService) ReplaceGradeScale(ctx context.Context, req GradeScaleRequest) ([]models.GradeScaleBand, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade scale payload")
	}

	bands := make([]models.GradeScaleBand, 0, len(req.Bands))
	for _, b := range req.Bands {
		bands = append(bands, models.GradeScaleBand{
			MinPercentage: b.MinPercentage,
			LetterGrade:   b.LetterGrade,
			GradePoint:    b.GradePoint,
		})
	}
	sort.Slice(bands, func(i, j int) bool { return bands[i].MinPercentage > bands[j].MinPercentage })

	for i := 1; i < len(bands); i++ {
		if bands[i].MinPercentage == bands[i-1].MinPercentage {
			return nil, appErrors.Clone(appErrors.ErrValidation, "scale bands must have distinct thresholds")
		}
	}
	if bands[len(bands)-1].MinPercentage != 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "scale must include a band starting at zero")
	}

	if err := s.repo.ReplaceGradeScale(ctx, bands); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace grade scale")
	}
	s.logger.Info("grade scale replaced", zap.Int("bands", len(bands)))
	return bands, nil
}
