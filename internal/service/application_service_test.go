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
	"github.com/noah-isme/uni-sis-api/internal/repository"
	appErrors "github.com/noah-isme/uni-sis-api/pkg/errors"
)

type fakeApplicationRepo struct {
	applications map[string]models.DepartmentApplication
	open         map[string]bool
	created      *models.DepartmentApplication
	approveErr   error
	approved     []string
	status       map[string]models.ApplicationStatus
	reasons      map[string]*string
}

func (f *fakeApplicationRepo) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error) {
	return nil, 0, nil
}

func (f *fakeApplicationRepo) FindByID(ctx context.Context, id string) (*models.DepartmentApplication, error) {
	if a, ok := f.applications[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeApplicationRepo) FindDetailByID(ctx context.Context, id string) (*models.ApplicationDetail, error) {
	if a, ok := f.applications[id]; ok {
		return &models.ApplicationDetail{DepartmentApplication: a}, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeApplicationRepo) HasOpenOrApproved(ctx context.Context, studentID string) (bool, error) {
	return f.open[studentID], nil
}

func (f *fakeApplicationRepo) Create(ctx context.Context, application *models.DepartmentApplication) error {
	if application.ID == "" {
		application.ID = "new-application"
	}
	f.created = application
	return nil
}

func (f *fakeApplicationRepo) UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus, rejectionReason *string, decidedAt *time.Time) error {
	if f.status == nil {
		f.status = make(map[string]models.ApplicationStatus)
	}
	if f.reasons == nil {
		f.reasons = make(map[string]*string)
	}
	f.status[id] = status
	f.reasons[id] = rejectionReason
	return nil
}

func (f *fakeApplicationRepo) ApproveWithSeatLimit(ctx context.Context, application *models.DepartmentApplication) error {
	if f.approveErr != nil {
		return f.approveErr
	}
	f.approved = append(f.approved, application.ID)
	return nil
}

type fakeDepartments struct {
	departments map[string]*models.Department
}

func (f *fakeDepartments) FindByID(ctx context.Context, id string) (*models.Department, error) {
	if d, ok := f.departments[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

type fakeCGPAProvider struct {
	cumulative *models.CumulativeGPA
}

func (f *fakeCGPAProvider) GetCumulativeGPA(ctx context.Context, studentID string) (*models.CumulativeGPA, error) {
	return f.cumulative, nil
}

func applicationFixture() (*ApplicationService, *fakeApplicationRepo) {
	repo := &fakeApplicationRepo{applications: map[string]models.DepartmentApplication{}, open: map[string]bool{}}
	students := &fakeStudents{students: map[string]*models.Student{
		"s1": {ID: "s1", BatchID: "b1", Status: models.StudentStatusActive},
	}}
	departments := &fakeDepartments{departments: map[string]*models.Department{
		"d1": {ID: "d1", Code: "CS", Name: "Computer Science", SeatCapacity: 40},
	}}
	gpa := &fakeCGPAProvider{cumulative: &models.CumulativeGPA{StudentID: "s1", CGPA: 3.1, Standing: models.StandingGood}}
	policies := &fakePolicies{policy: &models.StandingPolicy{ProbationThreshold: 2.0, WarningThreshold: 2.5, ApplicationMinGPA: 2.0}}

	return NewApplicationService(repo, students, departments, gpa, policies, validator.New(), zap.NewNop()), repo
}

func TestApplicationServiceApply(t *testing.T) {
	svc, repo := applicationFixture()

	application, err := svc.Apply(context.Background(), ApplyRequest{StudentID: "s1", DepartmentID: "d1"})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusPending, application.Status)
	assert.Equal(t, 3.1, application.GPASnapshot)
	require.NotNil(t, repo.created)
}

func TestApplicationServiceApplyRejectsLowGPA(t *testing.T) {
	svc, _ := applicationFixture()
	svc.gpa = &fakeCGPAProvider{cumulative: &models.CumulativeGPA{CGPA: 1.8, Standing: models.StandingProbation}}

	_, err := svc.Apply(context.Background(), ApplyRequest{StudentID: "s1", DepartmentID: "d1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestApplicationServiceApplyDepartmentFloorWins(t *testing.T) {
	svc, _ := applicationFixture()
	floor := 3.5
	svc.departments = &fakeDepartments{departments: map[string]*models.Department{
		"d1": {ID: "d1", SeatCapacity: 40, MinGPA: &floor},
	}}

	_, err := svc.Apply(context.Background(), ApplyRequest{StudentID: "s1", DepartmentID: "d1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "below the required 3.50")
}

func TestApplicationServiceApplyRejectsProbation(t *testing.T) {
	svc, _ := applicationFixture()
	// GPA clears the floor but standing is probation under a stricter policy.
	svc.gpa = &fakeCGPAProvider{cumulative: &models.CumulativeGPA{CGPA: 2.2, Standing: models.StandingProbation}}

	_, err := svc.Apply(context.Background(), ApplyRequest{StudentID: "s1", DepartmentID: "d1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "probation")
}

func TestApplicationServiceApplyRejectsDuplicates(t *testing.T) {
	svc, repo := applicationFixture()
	repo.open["s1"] = true

	_, err := svc.Apply(context.Background(), ApplyRequest{StudentID: "s1", DepartmentID: "d1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestApplicationServiceApplyRejectsAssignedStudent(t *testing.T) {
	svc, _ := applicationFixture()
	dept := "d-existing"
	svc.students = &fakeStudents{students: map[string]*models.Student{
		"s1": {ID: "s1", DepartmentID: &dept, Status: models.StudentStatusActive},
	}}

	_, err := svc.Apply(context.Background(), ApplyRequest{StudentID: "s1", DepartmentID: "d1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestApplicationServiceApprove(t *testing.T) {
	svc, repo := applicationFixture()
	repo.applications["a1"] = models.DepartmentApplication{
		ID: "a1", StudentID: "s1", DepartmentID: "d1", Status: models.ApplicationStatusPending,
	}

	application, err := svc.Approve(context.Background(), "a1")
	require.NoError(t, err)
	assert.Contains(t, repo.approved, "a1")
	assert.Equal(t, "a1", application.ID)
}

func TestApplicationServiceApproveSeatLimit(t *testing.T) {
	svc, repo := applicationFixture()
	repo.applications["a1"] = models.DepartmentApplication{
		ID: "a1", StudentID: "s1", DepartmentID: "d1", Status: models.ApplicationStatusPending,
	}
	repo.approveErr = repository.ErrDepartmentFull

	_, err := svc.Approve(context.Background(), "a1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "no remaining seats")
}

func TestApplicationServiceDecidedApplicationsAreFinal(t *testing.T) {
	svc, repo := applicationFixture()
	repo.applications["a1"] = models.DepartmentApplication{
		ID: "a1", StudentID: "s1", DepartmentID: "d1", Status: models.ApplicationStatusApproved,
	}

	_, err := svc.Approve(context.Background(), "a1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.Reject(context.Background(), "a1", RejectRequest{Reason: "late"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestApplicationServiceReject(t *testing.T) {
	svc, repo := applicationFixture()
	repo.applications["a1"] = models.DepartmentApplication{
		ID: "a1", StudentID: "s1", DepartmentID: "d1", Status: models.ApplicationStatusPending,
	}

	application, err := svc.Reject(context.Background(), "a1", RejectRequest{Reason: "quota reached"})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusRejected, application.Status)
	require.NotNil(t, application.RejectionReason)
	assert.Equal(t, "quota reached", *application.RejectionReason)
	assert.Equal(t, models.ApplicationStatusRejected, repo.status["a1"])
}

func TestApplicationServiceWithdraw(t *testing.T) {
	svc, repo := applicationFixture()
	repo.applications["a1"] = models.DepartmentApplication{
		ID: "a1", StudentID: "s1", DepartmentID: "d1", Status: models.ApplicationStatusPending,
	}

	_, err := svc.Withdraw(context.Background(), "a1", "someone-else")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	application, err := svc.Withdraw(context.Background(), "a1", "s1")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusWithdrawn, application.Status)
	require.NotNil(t, application.DecidedAt)
}
