package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-sis-api/internal/models"
	appErrors "github.com/noah-isme/uni-sis-api/pkg/errors"
)

type curriculumRepository interface {
	List(ctx context.Context, filter models.CurriculumFilter) ([]models.Curriculum, int, error)
	FindByID(ctx context.Context, id string) (*models.Curriculum, error)
	Create(ctx context.Context, curriculum *models.Curriculum) error
	Update(ctx context.Context, curriculum *models.Curriculum) error
	Delete(ctx context.Context, id string) error
	ListCourses(ctx context.Context, curriculumID string) ([]models.CurriculumCourseDetail, error)
	AddCourse(ctx context.Context, placement *models.CurriculumCourse) error
	RemoveCourse(ctx context.Context, curriculumID, courseID string) error
}

type departmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Department, error)
}

// CurriculumRequest describes a curriculum create/update payload.
type CurriculumRequest struct {
	DepartmentID string `json:"department_id" validate:"required"`
	Name         string `json:"name" validate:"required"`
	TotalCredits int    `json:"total_credits" validate:"gt=0"`
}

// PlacementRequest places a course at a (year, semester) slot.
type PlacementRequest struct {
	CourseID string `json:"course_id" validate:"required"`
	Year     int    `json:"year" validate:"gte=1,lte=8"`
	Semester int    `json:"semester" validate:"gte=1,lte=2"`
	Required bool   `json:"required"`
}

// CurriculumService manages curricula and their course placements.
type CurriculumService struct {
	repo          curriculumRepository
	departments   departmentReader
	courses       courseReader
	prerequisites prerequisiteReader
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewCurriculumService constructs CurriculumService.
func NewCurriculumService(repo curriculumRepository, departments departmentReader, courses courseReader, prerequisites prerequisiteReader, validate *validator.Validate, logger *zap.Logger) *CurriculumService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CurriculumService{
		repo:          repo,
		departments:   departments,
		courses:       courses,
		prerequisites: prerequisites,
		validator:     validate,
		logger:        logger,
	}
}

// List returns curricula with pagination metadata.
func (s *CurriculumService) List(ctx context.Context, filter models.CurriculumFilter) ([]models.Curriculum, *models.Pagination, error) {
	curricula, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list curricula")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return curricula, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a curriculum with its ordered placements.
func (s *CurriculumService) Get(ctx context.Context, id string) (*models.CurriculumDetail, error) {
	curriculum, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "curriculum not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum")
	}
	courses, err := s.repo.ListCourses(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list curriculum courses")
	}
	return &models.CurriculumDetail{Curriculum: *curriculum, Courses: courses}, nil
}

// Create adds a curriculum for a department.
func (s *CurriculumService) Create(ctx context.Context, req CurriculumRequest) (*models.Curriculum, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid curriculum payload")
	}
	if _, err := s.departments.FindByID(ctx, req.DepartmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	curriculum := &models.Curriculum{
		DepartmentID: req.DepartmentID,
		Name:         req.Name,
		TotalCredits: req.TotalCredits,
	}
	if err := s.repo.Create(ctx, curriculum); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create curriculum")
	}
	return curriculum, nil
}

// Update changes a curriculum's name or declared credit total.
func (s *CurriculumService) Update(ctx context.Context, id string, req CurriculumRequest) (*models.Curriculum, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid curriculum payload")
	}
	curriculum, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "curriculum not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum")
	}
	curriculum.Name = req.Name
	curriculum.TotalCredits = req.TotalCredits
	if err := s.repo.Update(ctx, curriculum); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update curriculum")
	}
	return curriculum, nil
}

// Delete removes a curriculum and its placements.
func (s *CurriculumService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "curriculum not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete curriculum")
	}
	return nil
}

// PlaceCourse places a course at a (year, semester) slot. A prerequisite of
// the placed course already in the plan must sit at a strictly earlier
// ordinal, and the placed course must not precede any of its dependents.
func (s *CurriculumService) PlaceCourse(ctx context.Context, curriculumID string, req PlacementRequest) (*models.CurriculumCourse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid placement payload")
	}
	if _, err := s.repo.FindByID(ctx, curriculumID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "curriculum not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum")
	}
	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	placement := &models.CurriculumCourse{
		CurriculumID: curriculumID,
		CourseID:     req.CourseID,
		Year:         req.Year,
		Semester:     req.Semester,
		Required:     req.Required,
	}
	if err := s.checkOrdering(ctx, curriculumID, placement); err != nil {
		return nil, err
	}
	if err := s.repo.AddCourse(ctx, placement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to place course")
	}
	return placement, nil
}

func (s *CurriculumService) checkOrdering(ctx context.Context, curriculumID string, placement *models.CurriculumCourse) error {
	existing, err := s.repo.ListCourses(ctx, curriculumID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list curriculum courses")
	}
	placed := make(map[string]models.CurriculumCourseDetail, len(existing))
	for _, c := range existing {
		placed[c.CourseID] = c
	}

	prereqs, err := s.prerequisites.ListPrerequisites(ctx, placement.CourseID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list prerequisites")
	}
	for _, p := range prereqs {
		if p.Type != models.PrerequisiteTypePrerequisite {
			continue
		}
		if c, ok := placed[p.PrerequisiteID]; ok && c.Ordinal() >= placement.Ordinal() {
			return appErrors.Clone(appErrors.ErrConflict,
				fmt.Sprintf("prerequisite %s must be placed before year %d semester %d", p.PrerequisiteCode, placement.Year, placement.Semester))
		}
	}

	// The new course may itself be a prerequisite of something already placed.
	for _, c := range existing {
		deps, err := s.prerequisites.ListPrerequisites(ctx, c.CourseID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list prerequisites")
		}
		for _, p := range deps {
			if p.Type != models.PrerequisiteTypePrerequisite || p.PrerequisiteID != placement.CourseID {
				continue
			}
			if placement.Ordinal() >= c.Ordinal() {
				return appErrors.Clone(appErrors.ErrConflict,
					fmt.Sprintf("course must be placed before its dependent %s", c.CourseCode))
			}
		}
	}
	return nil
}

// RemoveCourse removes a placement from the plan.
func (s *CurriculumService) RemoveCourse(ctx context.Context, curriculumID, courseID string) error {
	if err := s.repo.RemoveCourse(ctx, curriculumID, courseID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove curriculum course")
	}
	return nil
}

// CreditIssue is one deviation between the declared total and the placed
// course credits.
type CreditIssue struct {
	DeclaredCredits int `json:"declared_credits"`
	PlacedCredits   int `json:"placed_credits"`
}

// CheckCredits compares the declared total against the sum of placed course
// credits and returns nil when they agree.
func (s *CurriculumService) CheckCredits(ctx context.Context, curriculumID string) (*CreditIssue, error) {
	curriculum, err := s.repo.FindByID(ctx, curriculumID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "curriculum not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum")
	}
	courses, err := s.repo.ListCourses(ctx, curriculumID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list curriculum courses")
	}
	var placed int
	for _, c := range courses {
		placed += c.Credits
	}
	if placed == curriculum.TotalCredits {
		return nil, nil
	}
	return &CreditIssue{DeclaredCredits: curriculum.TotalCredits, PlacedCredits: placed}, nil
}
