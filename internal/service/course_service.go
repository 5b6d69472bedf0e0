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

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindByCode(ctx context.Context, code string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
	ListPrerequisites(ctx context.Context, courseID string) ([]models.PrerequisiteDetail, error)
	AdjacencyList(ctx context.Context) (map[string][]string, error)
	AddPrerequisite(ctx context.Context, prereq *models.Prerequisite) error
	RemovePrerequisite(ctx context.Context, id string) error
}

// CourseRequest describes a course create/update payload.
type CourseRequest struct {
	Code         string                `json:"code" validate:"required"`
	Title        string                `json:"title" validate:"required"`
	Credits      int                   `json:"credits" validate:"gt=0"`
	Category     models.CourseCategory `json:"category" validate:"required"`
	DepartmentID *string               `json:"department_id"`
}

// PrerequisiteRequest describes a new prerequisite edge.
type PrerequisiteRequest struct {
	PrerequisiteID string                  `json:"prerequisite_id" validate:"required"`
	Type           models.PrerequisiteType `json:"type" validate:"required"`
}

// CourseService manages the course catalog and its prerequisite graph.
type CourseService struct {
	repo      courseRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, validator: validate, logger: logger}
}

// List returns courses with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one course with its prerequisite edges.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseDetail, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	prereqs, err := s.repo.ListPrerequisites(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list prerequisites")
	}
	return &models.CourseDetail{Course: *course, Prerequisites: prereqs}, nil
}

// Create adds a course with a unique code.
func (s *CourseService) Create(ctx context.Context, req CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if !req.Category.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown course category")
	}
	if _, err := s.repo.FindByCode(ctx, req.Code); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course code already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code")
	}
	course := &models.Course{
		Code:         req.Code,
		Title:        req.Title,
		Credits:      req.Credits,
		Category:     req.Category,
		DepartmentID: req.DepartmentID,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return course, nil
}

// Update changes a course's catalog fields.
func (s *CourseService) Update(ctx context.Context, id string, req CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if !req.Category.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown course category")
	}
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.Code != req.Code {
		if _, err := s.repo.FindByCode(ctx, req.Code); err == nil {
			return nil, appErrors.Clone(appErrors.ErrConflict, "course code already exists")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code")
		}
	}
	course.Code = req.Code
	course.Title = req.Title
	course.Credits = req.Credits
	course.Category = req.Category
	course.DepartmentID = req.DepartmentID
	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	return course, nil
}

// Delete removes a course.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	return nil
}

// AddPrerequisite creates a typed edge between two courses, rejecting edges
// that would make the prerequisite graph cyclic.
func (s *CourseService) AddPrerequisite(ctx context.Context, courseID string, req PrerequisiteRequest) (*models.Prerequisite, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid prerequisite payload")
	}
	if courseID == req.PrerequisiteID {
		return nil, appErrors.Clone(appErrors.ErrCycleDetected, "a course cannot require itself")
	}
	if _, err := s.repo.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if _, err := s.repo.FindByID(ctx, req.PrerequisiteID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "prerequisite course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisite course")
	}

	graph, err := s.repo.AdjacencyList(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisite graph")
	}
	if wouldCreateCycle(graph, courseID, req.PrerequisiteID) {
		return nil, appErrors.Clone(appErrors.ErrCycleDetected, "prerequisite would create a cycle")
	}

	prereq := &models.Prerequisite{
		CourseID:       courseID,
		PrerequisiteID: req.PrerequisiteID,
		Type:           req.Type,
	}
	if err := s.repo.AddPrerequisite(ctx, prereq); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add prerequisite")
	}
	return prereq, nil
}

// RemovePrerequisite deletes a prerequisite edge.
func (s *CourseService) RemovePrerequisite(ctx context.Context, id string) error {
	if err := s.repo.RemovePrerequisite(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove prerequisite")
	}
	return nil
}

// wouldCreateCycle reports whether adding the edge course -> prerequisite
// closes a cycle, i.e. whether course is already reachable from the
// prerequisite by following existing edges.
func wouldCreateCycle(graph map[string][]string, courseID, prerequisiteID string) bool {
	visited := make(map[string]bool)
	var visit func(node string) bool
	visit = func(node string) bool {
		if node == courseID {
			return true
		}
		if visited[node] {
			return false
		}
		visited[node] = true
		for _, next := range graph[node] {
			if visit(next) {
				return true
			}
		}
		return false
	}
	return visit(prerequisiteID)
}
