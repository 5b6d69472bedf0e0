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
	"github.com/noah-isme/uni-sis-api/internal/repository"
	appErrors "github.com/noah-isme/uni-sis-api/pkg/errors"
)

type applicationRepository interface {
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.DepartmentApplication, error)
	FindDetailByID(ctx context.Context, id string) (*models.ApplicationDetail, error)
	HasOpenOrApproved(ctx context.Context, studentID string) (bool, error)
	Create(ctx context.Context, application *models.DepartmentApplication) error
	UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus, rejectionReason *string, decidedAt *time.Time) error
	ApproveWithSeatLimit(ctx context.Context, application *models.DepartmentApplication) error
}

type cumulativeGPAProvider interface {
	GetCumulativeGPA(ctx context.Context, studentID string) (*models.CumulativeGPA, error)
}

// ApplyRequest submits a department application.
type ApplyRequest struct {
	StudentID    string `json:"student_id" validate:"required"`
	DepartmentID string `json:"department_id" validate:"required"`
}

// RejectRequest carries the reviewer's reason for a rejection.
type RejectRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// ApplicationService runs the department selection workflow: eligibility at
// submission, seat-limited approval, and student assignment.
type ApplicationService struct {
	repo        applicationRepository
	students    studentReader
	departments departmentReader
	gpa         cumulativeGPAProvider
	policies    standingPolicyReader
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewApplicationService constructs ApplicationService.
func NewApplicationService(repo applicationRepository, students studentReader, departments departmentReader, gpa cumulativeGPAProvider, policies standingPolicyReader, validate *validator.Validate, logger *zap.Logger) *ApplicationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicationService{
		repo:        repo,
		students:    students,
		departments: departments,
		gpa:         gpa,
		policies:    policies,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// List returns applications with pagination metadata.
func (s *ApplicationService) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, *models.Pagination, error) {
	applications, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return applications, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one application with student and department info.
func (s *ApplicationService) Get(ctx context.Context, id string) (*models.ApplicationDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	return detail, nil
}

// Apply submits a department application after checking eligibility. The
// student's cumulative GPA is frozen on the application as a snapshot.
func (s *ApplicationService) Apply(ctx context.Context, req ApplyRequest) (*models.DepartmentApplication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Status != models.StudentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only active students may apply")
	}
	if student.DepartmentID != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already belongs to a department")
	}

	department, err := s.departments.FindByID(ctx, req.DepartmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}

	open, err := s.repo.HasOpenOrApproved(ctx, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing applications")
	}
	if open {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already has a pending or approved application")
	}

	cumulative, err := s.gpa.GetCumulativeGPA(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	minGPA, err := s.minGPAFor(ctx, department)
	if err != nil {
		return nil, err
	}
	if cumulative.CGPA < minGPA {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("cumulative GPA %.2f is below the required %.2f", cumulative.CGPA, minGPA))
	}
	if cumulative.Standing == models.StandingProbation {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "students on academic probation may not apply")
	}

	application := &models.DepartmentApplication{
		StudentID:    req.StudentID,
		DepartmentID: req.DepartmentID,
		GPASnapshot:  cumulative.CGPA,
		Status:       models.ApplicationStatusPending,
	}
	if err := s.repo.Create(ctx, application); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create application")
	}

	s.logger.Info("department application submitted",
		zap.String("application_id", application.ID),
		zap.String("student_id", req.StudentID),
		zap.String("department_id", req.DepartmentID),
		zap.Float64("gpa_snapshot", application.GPASnapshot))
	return application, nil
}

// Approve accepts a pending application and assigns the student to the
// department. Approvals respect the department's seat capacity.
func (s *ApplicationService) Approve(ctx context.Context, id string) (*models.DepartmentApplication, error) {
	application, err := s.pending(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.ApproveWithSeatLimit(ctx, application); err != nil {
		if errors.Is(err, repository.ErrDepartmentFull) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "department has no remaining seats")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve application")
	}
	s.logger.Info("department application approved",
		zap.String("application_id", application.ID),
		zap.String("student_id", application.StudentID),
		zap.String("department_id", application.DepartmentID))
	return application, nil
}

// Reject declines a pending application with a reason.
func (s *ApplicationService) Reject(ctx context.Context, id string, req RejectRequest) (*models.DepartmentApplication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rejection payload")
	}
	application, err := s.pending(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, models.ApplicationStatusRejected, &req.Reason, &now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject application")
	}
	application.Status = models.ApplicationStatusRejected
	application.RejectionReason = &req.Reason
	application.DecidedAt = &now
	return application, nil
}

// Withdraw lets the student retract a pending application.
func (s *ApplicationService) Withdraw(ctx context.Context, id, studentID string) (*models.DepartmentApplication, error) {
	application, err := s.pending(ctx, id)
	if err != nil {
		return nil, err
	}
	if application.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "application belongs to another student")
	}
	now := s.now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, models.ApplicationStatusWithdrawn, nil, &now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw application")
	}
	application.Status = models.ApplicationStatusWithdrawn
	application.DecidedAt = &now
	return application, nil
}

func (s *ApplicationService) pending(ctx context.Context, id string) (*models.DepartmentApplication, error) {
	application, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if application.Status != models.ApplicationStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "application has already been decided")
	}
	return application, nil
}

// minGPAFor returns the department's own GPA floor when set, otherwise the
// global application threshold from the standing policy.
func (s *ApplicationService) minGPAFor(ctx context.Context, department *models.Department) (float64, error) {
	if department.MinGPA != nil {
		return *department.MinGPA, nil
	}
	policy, err := s.policies.FindStandingPolicy(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load standing policy")
	}
	if policy == nil {
		return 0, nil
	}
	return policy.ApplicationMinGPA, nil
}
