package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-sis-api/internal/models"
	appErrors "github.com/noah-isme/uni-sis-api/pkg/errors"
)

type fakeTermRepo struct {
	terms     map[string]*models.AcademicTerm
	byBatch   map[string][]models.AcademicTerm
	created   *models.AcademicTerm
	activated []string
}

func (f *fakeTermRepo) List(ctx context.Context, filter models.TermFilter) ([]models.AcademicTerm, error) {
	var out []models.AcademicTerm
	for _, t := range f.terms {
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeTermRepo) FindByID(ctx context.Context, id string) (*models.AcademicTerm, error) {
	if t, ok := f.terms[id]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeTermRepo) ListByBatch(ctx context.Context, batchID string) ([]models.AcademicTerm, error) {
	return f.byBatch[batchID], nil
}

func (f *fakeTermRepo) Create(ctx context.Context, term *models.AcademicTerm) error {
	if term.ID == "" {
		term.ID = "new-term"
	}
	f.created = term
	return nil
}

func (f *fakeTermRepo) Update(ctx context.Context, term *models.AcademicTerm) error {
	f.terms[term.ID] = term
	return nil
}

func (f *fakeTermRepo) Activate(ctx context.Context, id, batchID string) error {
	f.activated = append(f.activated, id)
	for tid, t := range f.terms {
		if t.BatchID != batchID {
			continue
		}
		if tid == id {
			t.Status = models.TermStatusActive
		} else if t.Status == models.TermStatusActive {
			t.Status = models.TermStatusInactive
		}
	}
	return nil
}

func day(month, d int) time.Time {
	return time.Date(2026, time.Month(month), d, 0, 0, 0, 0, time.UTC)
}

func termFixture(repo *fakeTermRepo) *TermService {
	batches := &fakeBatches{batches: map[string]*models.Batch{"b1": {ID: "b1"}}}
	return NewTermService(repo, batches, validator.New(), zap.NewNop())
}

func validTermRequest() TermRequest {
	return TermRequest{
		BatchID:           "b1",
		Name:              "Fall 2026",
		StartDate:         day(9, 1),
		EndDate:           day(12, 20),
		RegistrationStart: day(8, 1),
		RegistrationEnd:   day(9, 15),
	}
}

func TestTermServiceCreate(t *testing.T) {
	repo := &fakeTermRepo{terms: map[string]*models.AcademicTerm{}, byBatch: map[string][]models.AcademicTerm{}}
	svc := termFixture(repo)

	term, err := svc.Create(context.Background(), validTermRequest())
	require.NoError(t, err)
	assert.Equal(t, models.TermStatusInactive, term.Status)
	require.NotNil(t, repo.created)
}

func TestTermServiceCreateWindowChecks(t *testing.T) {
	svc := termFixture(&fakeTermRepo{byBatch: map[string][]models.AcademicTerm{}})

	req := validTermRequest()
	req.EndDate = day(8, 1)
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start date must precede end date")

	req = validTermRequest()
	req.RegistrationEnd = day(7, 1)
	_, err = svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registration start must precede registration end")

	req = validTermRequest()
	req.RegistrationEnd = day(12, 25)
	_, err = svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close before the term ends")
}

func TestTermServiceCreateRejectsOverlap(t *testing.T) {
	repo := &fakeTermRepo{byBatch: map[string][]models.AcademicTerm{
		"b1": {{ID: "t0", Name: "Summer 2026", StartDate: day(6, 1), EndDate: day(9, 10)}},
	}}
	svc := termFixture(repo)

	_, err := svc.Create(context.Background(), validTermRequest())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "Summer 2026")
}

func TestTermServiceUpdateExcludesSelfFromOverlap(t *testing.T) {
	existing := &models.AcademicTerm{ID: "t1", BatchID: "b1", Name: "Fall 2026", StartDate: day(9, 1), EndDate: day(12, 20)}
	repo := &fakeTermRepo{
		terms:   map[string]*models.AcademicTerm{"t1": existing},
		byBatch: map[string][]models.AcademicTerm{"b1": {*existing}},
	}
	svc := termFixture(repo)

	req := validTermRequest()
	req.Name = "Fall 2026 (revised)"
	term, err := svc.Update(context.Background(), "t1", req)
	require.NoError(t, err)
	assert.Equal(t, "Fall 2026 (revised)", term.Name)
}

func TestTermServiceActivateDemotesSibling(t *testing.T) {
	repo := &fakeTermRepo{terms: map[string]*models.AcademicTerm{
		"t1": {ID: "t1", BatchID: "b1", Status: models.TermStatusActive},
		"t2": {ID: "t2", BatchID: "b1", Status: models.TermStatusInactive},
	}}
	svc := termFixture(repo)

	term, err := svc.Activate(context.Background(), "t2")
	require.NoError(t, err)
	assert.Equal(t, models.TermStatusActive, term.Status)
	assert.Equal(t, models.TermStatusInactive, repo.terms["t1"].Status)
}

func TestTermServiceActivateRejectsCompleted(t *testing.T) {
	repo := &fakeTermRepo{terms: map[string]*models.AcademicTerm{
		"t1": {ID: "t1", BatchID: "b1", Status: models.TermStatusCompleted},
	}}
	svc := termFixture(repo)

	_, err := svc.Activate(context.Background(), "t1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestTermServiceComplete(t *testing.T) {
	repo := &fakeTermRepo{terms: map[string]*models.AcademicTerm{
		"t1": {ID: "t1", BatchID: "b1", Status: models.TermStatusActive},
	}}
	svc := termFixture(repo)

	term, err := svc.Complete(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TermStatusCompleted, term.Status)
}
