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

type sectionRepository interface {
	List(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Section, error)
	FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error)
	Create(ctx context.Context, section *models.Section) error
	Update(ctx context.Context, section *models.Section) error
	Delete(ctx context.Context, id string) error
	SlotsBySection(ctx context.Context, sectionID string) ([]models.ScheduleSlot, error)
	AddSlot(ctx context.Context, slot *models.ScheduleSlot) error
	RemoveSlot(ctx context.Context, slotID string) error
	ListSlotConflicts(ctx context.Context, termID, excludeSectionID, facultyID string, slot models.ScheduleSlot) ([]models.SlotConflict, error)
}

type facultyReader interface {
	FindByID(ctx context.Context, id string) (*models.Faculty, error)
}

// SectionRequest describes a section create/update payload.
type SectionRequest struct {
	CourseID  string `json:"course_id" validate:"required"`
	TermID    string `json:"term_id" validate:"required"`
	FacultyID string `json:"faculty_id" validate:"required"`
	Capacity  int    `json:"capacity" validate:"gt=0"`
}

// SlotRequest describes a weekly meeting slot.
type SlotRequest struct {
	DayOfWeek int    `json:"day_of_week" validate:"gte=0,lte=6"`
	StartTime string `json:"start_time" validate:"required,len=5"`
	EndTime   string `json:"end_time" validate:"required,len=5"`
	Room      string `json:"room" validate:"required"`
}

// SectionService manages course offerings and their weekly schedules.
type SectionService struct {
	repo      sectionRepository
	courses   courseReader
	terms     termReader
	faculty   facultyReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSectionService constructs SectionService.
func NewSectionService(repo sectionRepository, courses courseReader, terms termReader, faculty facultyReader, validate *validator.Validate, logger *zap.Logger) *SectionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SectionService{repo: repo, courses: courses, terms: terms, faculty: faculty, validator: validate, logger: logger}
}

// List returns sections with pagination metadata.
func (s *SectionService) List(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, *models.Pagination, error) {
	sections, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sections")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return sections, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one section with its slots and enrollment count.
func (s *SectionService) Get(ctx context.Context, id string) (*models.SectionDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	return detail, nil
}

// Create adds a section offering after checking its references.
func (s *SectionService) Create(ctx context.Context, req SectionRequest) (*models.Section, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	if err := s.checkReferences(ctx, req); err != nil {
		return nil, err
	}
	section := &models.Section{
		CourseID:  req.CourseID,
		TermID:    req.TermID,
		FacultyID: req.FacultyID,
		Capacity:  req.Capacity,
	}
	if err := s.repo.Create(ctx, section); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create section")
	}
	return section, nil
}

// Update changes a section's faculty or capacity.
func (s *SectionService) Update(ctx context.Context, id string, req SectionRequest) (*models.Section, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	section, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	if err := s.checkReferences(ctx, req); err != nil {
		return nil, err
	}
	section.CourseID = req.CourseID
	section.TermID = req.TermID
	section.FacultyID = req.FacultyID
	section.Capacity = req.Capacity
	if err := s.repo.Update(ctx, section); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update section")
	}
	return section, nil
}

// Delete removes a section.
func (s *SectionService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete section")
	}
	return nil
}

// AddSlot attaches a weekly meeting to a section, rejecting room or faculty
// double-bookings within the same term.
func (s *SectionService) AddSlot(ctx context.Context, sectionID string, req SlotRequest) (*models.ScheduleSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}
	if req.StartTime >= req.EndTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "slot start must precede end")
	}
	section, err := s.repo.FindByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}

	slot := models.ScheduleSlot{
		SectionID: sectionID,
		DayOfWeek: req.DayOfWeek,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Room:      req.Room,
	}
	conflicts, err := s.repo.ListSlotConflicts(ctx, section.TermID, sectionID, section.FacultyID, slot)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slot conflicts")
	}
	if len(conflicts) > 0 {
		c := conflicts[0]
		return nil, appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("%s conflict with %s (%s %s-%s)", c.Dimension, c.CourseCode, dayNames[c.DayOfWeek%7], c.StartTime, c.EndTime))
	}

	if err := s.repo.AddSlot(ctx, &slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add slot")
	}
	return &slot, nil
}

// RemoveSlot detaches a weekly meeting.
func (s *SectionService) RemoveSlot(ctx context.Context, slotID string) error {
	if err := s.repo.RemoveSlot(ctx, slotID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove slot")
	}
	return nil
}

func (s *SectionService) checkReferences(ctx context.Context, req SectionRequest) error {
	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if _, err := s.terms.FindByID(ctx, req.TermID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	faculty, err := s.faculty.FindByID(ctx, req.FacultyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "faculty not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}
	if !faculty.Active {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "faculty is not active")
	}
	return nil
}
