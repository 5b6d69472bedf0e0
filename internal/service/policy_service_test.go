package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-sis-api/internal/models"
	appErrors "github.com/noah-isme/uni-sis-api/pkg/errors"
)

type fakePolicyRepo struct {
	policy       *models.StandingPolicy
	bands        []models.GradeScaleBand
	storedPolicy *models.StandingPolicy
	replaced     []models.GradeScaleBand
}

func (f *fakePolicyRepo) FindStandingPolicy(ctx context.Context) (*models.StandingPolicy, error) {
	return f.policy, nil
}

func (f *fakePolicyRepo) UpsertStandingPolicy(ctx context.Context, policy *models.StandingPolicy) error {
	f.storedPolicy = policy
	return nil
}

func (f *fakePolicyRepo) ListGradeScale(ctx context.Context) ([]models.GradeScaleBand, error) {
	return f.bands, nil
}

func (f *fakePolicyRepo) ReplaceGradeScale(ctx context.Context, bands []models.GradeScaleBand) error {
	f.replaced = bands
	return nil
}

func policyFixture(repo *fakePolicyRepo) *PolicyService {
	return NewPolicyService(repo, defaultStandingPolicy(), validator.New(), zap.NewNop())
}

func TestPolicyServiceStandingFallsBackToDefaults(t *testing.T) {
	svc := policyFixture(&fakePolicyRepo{})

	policy, err := svc.GetStandingPolicy(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2.0, policy.ProbationThreshold)
	assert.Equal(t, 2.5, policy.WarningThreshold)
}

func TestPolicyServiceUpdateStanding(t *testing.T) {
	repo := &fakePolicyRepo{}
	svc := policyFixture(repo)

	policy, err := svc.UpdateStandingPolicy(context.Background(), StandingPolicyRequest{
		ProbationThreshold: 1.75, WarningThreshold: 2.25, ApplicationMinGPA: 2.5,
	})
	require.NoError(t, err)
	assert.Equal(t, 1.75, policy.ProbationThreshold)
	require.NotNil(t, repo.storedPolicy)
}

func TestPolicyServiceUpdateStandingOrdering(t *testing.T) {
	svc := policyFixture(&fakePolicyRepo{})

	_, err := svc.UpdateStandingPolicy(context.Background(), StandingPolicyRequest{
		ProbationThreshold: 3.0, WarningThreshold: 2.0,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPolicyServiceGradeScaleDefaultsWhenEmpty(t *testing.T) {
	svc := policyFixture(&fakePolicyRepo{})

	bands, err := svc.GetGradeScale(context.Background())
	require.NoError(t, err)
	assert.Len(t, bands, len(models.DefaultGradeScale()))
}

func TestPolicyServiceReplaceGradeScale(t *testing.T) {
	repo := &fakePolicyRepo{}
	svc := policyFixture(repo)

	bands, err := svc.ReplaceGradeScale(context.Background(), GradeScaleRequest{Bands: []GradeScaleBandRequest{
		{MinPercentage: 50, LetterGrade: "P", GradePoint: 2},
		{MinPercentage: 0, LetterGrade: "F", GradePoint: 0},
		{MinPercentage: 85, LetterGrade: "H", GradePoint: 4},
	}})
	require.NoError(t, err)
	require.Len(t, bands, 3)
	// Stored in descending threshold order.
	assert.Equal(t, "H", bands[0].LetterGrade)
	assert.Equal(t, "F", bands[2].LetterGrade)
	assert.Len(t, repo.replaced, 3)
}

func TestPolicyServiceReplaceGradeScaleRequiresZeroFloor(t *testing.T) {
	svc := policyFixture(&fakePolicyRepo{})

	_, err := svc.ReplaceGradeScale(context.Background(), GradeScaleRequest{Bands: []GradeScaleBandRequest{
		{MinPercentage: 50, LetterGrade: "P", GradePoint: 2},
		{MinPercentage: 85, LetterGrade: "H", GradePoint: 4},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "band starting at zero")
}

func TestPolicyServiceReplaceGradeScaleRejectsDuplicateThresholds(t *testing.T) {
	svc := policyFixture(&fakePolicyRepo{})

	_, err := svc.ReplaceGradeScale(context.Background(), GradeScaleRequest{Bands: []GradeScaleBandRequest{
		{MinPercentage: 0, LetterGrade: "F", GradePoint: 0},
		{MinPercentage: 50, LetterGrade: "P", GradePoint: 2},
		{MinPercentage: 50, LetterGrade: "Q", GradePoint: 3},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "distinct thresholds")
}
