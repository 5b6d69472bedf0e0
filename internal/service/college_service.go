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

type collegeRepository interface {
	List(ctx context.Context, filter models.CollegeFilter) ([]models.College, int, error)
	FindByID(ctx context.Context, id string) (*models.College, error)
	FindByCode(ctx context.Context, code string) (*models.College, error)
	Create(ctx context.Context, college *models.College) error
	Update(ctx context.Context, college *models.College) error
	Delete(ctx context.Context, id string) error
}

type departmentRepository interface {
	List(ctx context.Context, filter models.DepartmentFilter) ([]models.DepartmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Department, error)
	FindDetailByID(ctx context.Context, id string) (*models.DepartmentDetail, error)
	Create(ctx context.Context, department *models.Department) error
	Update(ctx context.Context, department *models.Department) error
	Delete(ctx context.Context, id string) error
	CountApprovedApplications(ctx context.Context, departmentID string) (int, error)
}

// CollegeRequest describes a college create/update payload.
type CollegeRequest struct {
	Code string `json:"code" validate:"required"`
	Name string `json:"name" validate:"required"`
}

// DepartmentRequest describes a department create/update payload.
type DepartmentRequest struct {
	CollegeID    string   `json:"college_id" validate:"required"`
	Code         string   `json:"code" validate:"required"`
	Name         string   `json:"name" validate:"required"`
	SeatCapacity int      `json:"seat_capacity" validate:"gte=0"`
	MinGPA       *float64 `json:"min_gpa" validate:"omitempty,gte=0,lte=4"`
}

// CollegeService manages colleges and their departments.
type CollegeService struct {
	colleges    collegeRepository
	departments departmentRepository
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCollegeService constructs CollegeService.
func NewCollegeService(colleges collegeRepository, departments departmentRepository, validate *validator.Validate, logger *zap.Logger) *CollegeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollegeService{colleges: colleges, departments: departments, validator: validate, logger: logger}
}

// ListColleges returns colleges with pagination metadata.
func (s *CollegeService) ListColleges(ctx context.Context, filter models.CollegeFilter) ([]models.College, *models.Pagination, error) {
	colleges, total, err := s.colleges.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list colleges")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return colleges, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// GetCollege returns one college.
func (s *CollegeService) GetCollege(ctx context.Context, id string) (*models.College, error) {
	college, err := s.colleges.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "college not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load college")
	}
	return college, nil
}

// CreateCollege adds a college. Codes are unique.
func (s *CollegeService) CreateCollege(ctx context.Context, req CollegeRequest) (*models.College, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid college payload")
	}
	existing, err := s.colleges.FindByCode(ctx, req.Code)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check college code")
	}
	if existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "college code already exists")
	}
	college := &models.College{Code: req.Code, Name: req.Name}
	if err := s.colleges.Create(ctx, college); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create college")
	}
	return college, nil
}

// UpdateCollege changes a college's code or name.
func (s *CollegeService) UpdateCollege(ctx context.Context, id string, req CollegeRequest) (*models.College, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid college payload")
	}
	college, err := s.colleges.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "college not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load college")
	}
	if req.Code != college.Code {
		existing, err := s.colleges.FindByCode(ctx, req.Code)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check college code")
		}
		if existing != nil {
			return nil, appErrors.Clone(appErrors.ErrConflict, "college code already exists")
		}
	}
	college.Code = req.Code
	college.Name = req.Name
	if err := s.colleges.Update(ctx, college); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update college")
	}
	return college, nil
}

// DeleteCollege removes a college.
func (s *CollegeService) DeleteCollege(ctx context.Context, id string) error {
	if _, err := s.colleges.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "college not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load college")
	}
	if err := s.colleges.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete college")
	}
	return nil
}

// ListDepartments returns departments with pagination metadata.
func (s *CollegeService) ListDepartments(ctx context.Context, filter models.DepartmentFilter) ([]models.DepartmentDetail, *models.Pagination, error) {
	departments, total, err := s.departments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return departments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// GetDepartment returns one department with its college and remaining seats.
func (s *CollegeService) GetDepartment(ctx context.Context, id string) (*models.DepartmentDetail, int, error) {
	detail, err := s.departments.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	approved, err := s.departments.CountApprovedApplications(ctx, id)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count approvals")
	}
	remaining := detail.SeatCapacity - approved
	if detail.SeatCapacity == 0 || remaining < 0 {
		remaining = 0
	}
	return detail, remaining, nil
}

// CreateDepartment adds a department under a college.
func (s *CollegeService) CreateDepartment(ctx context.Context, req DepartmentRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid department payload")
	}
	if _, err := s.colleges.FindByID(ctx, req.CollegeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "college not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load college")
	}
	department := &models.Department{
		CollegeID:    req.CollegeID,
		Code:         req.Code,
		Name:         req.Name,
		SeatCapacity: req.SeatCapacity,
		MinGPA:       req.MinGPA,
	}
	if err := s.departments.Create(ctx, department); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create department")
	}
	return department, nil
}

// UpdateDepartment changes a department's mutable fields.
func (s *CollegeService) UpdateDepartment(ctx context.Context, id string, req DepartmentRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid department payload")
	}
	department, err := s.departments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	if _, err := s.colleges.FindByID(ctx, req.CollegeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "college not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load college")
	}
	department.CollegeID = req.CollegeID
	department.Code = req.Code
	department.Name = req.Name
	department.SeatCapacity = req.SeatCapacity
	department.MinGPA = req.MinGPA
	if err := s.departments.Update(ctx, department); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update department")
	}
	return department, nil
}

// DeleteDepartment removes a department.
func (s *CollegeService) DeleteDepartment(ctx context.Context, id string) error {
	if _, err := s.departments.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	if err := s.departments.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete department")
	}
	return nil
}
