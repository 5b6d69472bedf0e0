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

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsActive(ctx context.Context, studentID, sectionID string) (bool, error)
	CountEnrolled(ctx context.Context, sectionID string) (int, error)
	CreateEnrolled(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, droppedAt *time.Time) error
	ListEnrolledByStudentAndTerm(ctx context.Context, studentID, termID string) ([]models.EnrollmentDetail, error)
	ListCompletedCourseIDs(ctx context.Context, studentID string) (map[string]bool, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type sectionReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error)
	SlotsBySections(ctx context.Context, sectionIDs []string) (map[string][]models.ScheduleSlot, error)
}

type termReader interface {
	FindByID(ctx context.Context, id string) (*models.AcademicTerm, error)
}

type batchReader interface {
	FindByID(ctx context.Context, id string) (*models.Batch, error)
}

type prerequisiteReader interface {
	ListPrerequisites(ctx context.Context, courseID string) ([]models.PrerequisiteDetail, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// EnrollRequest describes an enrollment creation request.
type EnrollRequest struct {
	StudentID        string `json:"student_id" validate:"required"`
	SectionID        string `json:"section_id" validate:"required"`
	BypassValidation bool   `json:"bypass_validation"`
}

var dayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// EnrollmentService runs the registration rules and applies the resulting
// enrollment state transitions.
type EnrollmentService struct {
	repo          enrollmentRepository
	students      studentReader
	sections      sectionReader
	terms         termReader
	batches       batchReader
	prerequisites prerequisiteReader
	courses       courseReader
	validator     *validator.Validate
	logger        *zap.Logger
	now           func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, students studentReader, sections sectionReader, terms termReader, batches batchReader, prerequisites prerequisiteReader, courses courseReader, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:          repo,
		students:      students,
		sections:      sections,
		terms:         terms,
		batches:       batches,
		prerequisites: prerequisites,
		courses:       courses,
		validator:     validate,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return enrollments, pagination, nil
}

// Get returns one enrollment with joined detail.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// Validate runs every registration rule for a (student, section) pair and
// accumulates all failures. It is read-only and safe to call standalone for
// pre-checks. skipTimeCheck suppresses the registration-window rule only.
func (s *EnrollmentService) Validate(ctx context.Context, studentID, sectionID string, skipTimeCheck bool) (*models.EnrollmentValidation, error) {
	var errs []string

	student, err := s.students.FindByID(ctx, studentID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		errs = append(errs, "Student not found")
		student = nil
	case err != nil:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	case student.Status != models.StudentStatusActive:
		errs = append(errs, "Student is not active")
	}

	section, err := s.sections.FindDetailByID(ctx, sectionID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		errs = append(errs, "Section not found")
		section = nil
	case err != nil:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}

	if section != nil {
		ruleErrs, err := s.checkSectionRules(ctx, student, section, skipTimeCheck)
		if err != nil {
			return nil, err
		}
		errs = append(errs, ruleErrs...)
	}

	if student != nil && section != nil {
		exists, err := s.repo.ExistsActive(ctx, studentID, sectionID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing enrollment")
		}
		if exists {
			errs = append(errs, "Student is already enrolled in this section")
		}

		studentErrs, err := s.checkStudentRules(ctx, student, section)
		if err != nil {
			return nil, err
		}
		errs = append(errs, studentErrs...)
	}

	return &models.EnrollmentValidation{Valid: len(errs) == 0, Errors: errs}, nil
}

// checkSectionRules covers the rules that need only the section: capacity,
// registration window and department gating against the given student.
func (s *EnrollmentService) checkSectionRules(ctx context.Context, student *models.Student, section *models.SectionDetail, skipTimeCheck bool) ([]string, error) {
	var errs []string

	course, err := s.courseOf(ctx, section)
	if err != nil {
		return nil, err
	}
	if student != nil && course.DepartmentID != nil {
		switch {
		case student.DepartmentID == nil:
			errs = append(errs, fmt.Sprintf("Course %s requires a department assignment", section.CourseCode))
		case *student.DepartmentID != *course.DepartmentID:
			errs = append(errs, fmt.Sprintf("Course %s belongs to a different department", section.CourseCode))
		}
	}

	if !skipTimeCheck {
		term, err := s.terms.FindByID(ctx, section.TermID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
		}
		if term != nil && !term.RegistrationOpen(s.now()) {
			errs = append(errs, "Registration is closed for this term")
		}
	}

	enrolled, err := s.repo.CountEnrolled(ctx, section.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	if enrolled >= section.Capacity {
		errs = append(errs, "Section is full")
	}

	return errs, nil
}

// checkStudentRules covers credit load, prerequisites and schedule conflicts,
// all of which need the student's current term enrollments.
func (s *EnrollmentService) checkStudentRules(ctx context.Context, student *models.Student, section *models.SectionDetail) ([]string, error) {
	var errs []string

	current, err := s.repo.ListEnrolledByStudentAndTerm(ctx, student.ID, section.TermID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term enrollments")
	}

	batch, err := s.batches.FindByID(ctx, student.BatchID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	if batch != nil {
		load := section.Credits
		for _, e := range current {
			load += e.Credits
		}
		if load > batch.MaxCredits {
			errs = append(errs, fmt.Sprintf("Credit load %d exceeds the maximum of %d", load, batch.MaxCredits))
		}
	}

	prereqs, err := s.prerequisites.ListPrerequisites(ctx, section.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisites")
	}
	if len(prereqs) > 0 {
		completed, err := s.repo.ListCompletedCourseIDs(ctx, student.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load completed courses")
		}
		for _, p := range prereqs {
			if p.Type != models.PrerequisiteTypePrerequisite {
				continue
			}
			if !completed[p.PrerequisiteID] {
				errs = append(errs, fmt.Sprintf("Missing prerequisite %s", p.PrerequisiteCode))
			}
		}
	}

	conflictErrs, err := s.checkScheduleConflicts(ctx, section, current)
	if err != nil {
		return nil, err
	}
	errs = append(errs, conflictErrs...)

	return errs, nil
}

func (s *EnrollmentService) checkScheduleConflicts(ctx context.Context, section *models.SectionDetail, current []models.EnrollmentDetail) ([]string, error) {
	if len(section.Slots) == 0 || len(current) == 0 {
		return nil, nil
	}
	sectionIDs := make([]string, 0, len(current))
	codes := make(map[string]string, len(current))
	for _, e := range current {
		sectionIDs = append(sectionIDs, e.SectionID)
		codes[e.SectionID] = e.CourseCode
	}
	slots, err := s.sections.SlotsBySections(ctx, sectionIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule slots")
	}

	var errs []string
	seen := make(map[string]bool)
	for _, candidate := range section.Slots {
		for sectionID, existing := range slots {
			for _, slot := range existing {
				if !candidate.Overlaps(slot) {
					continue
				}
				key := fmt.Sprintf("%s/%d", sectionID, slot.DayOfWeek)
				if seen[key] {
					continue
				}
				seen[key] = true
				day := "day " + fmt.Sprint(slot.DayOfWeek)
				if slot.DayOfWeek >= 0 && slot.DayOfWeek < len(dayNames) {
					day = dayNames[slot.DayOfWeek]
				}
				errs = append(errs, fmt.Sprintf("Schedule conflict with %s on %s", codes[sectionID], day))
			}
		}
	}
	return errs, nil
}

func (s *EnrollmentService) courseOf(ctx context.Context, section *models.SectionDetail) (*models.Course, error) {
	// SectionDetail already joins the catalog fields needed by the rules;
	// only the owning department has to be resolved separately.
	course := &models.Course{
		ID:      section.CourseID,
		Code:    section.CourseCode,
		Title:   section.CourseTitle,
		Credits: section.Credits,
	}
	if s.courses == nil {
		return course, nil
	}
	full, err := s.courses.FindByID(ctx, section.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return course, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return full, nil
}

// Enroll registers a student into a section after re-running every rule.
// BypassValidation relaxes only the registration-window check.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	validation, err := s.Validate(ctx, req.StudentID, req.SectionID, req.BypassValidation)
	if err != nil {
		return nil, err
	}
	if !validation.Valid {
		return nil, appErrors.NewValidationError(validation.Errors)
	}

	enrollment := &models.Enrollment{
		StudentID:  req.StudentID,
		SectionID:  req.SectionID,
		Status:     models.EnrollmentStatusEnrolled,
		EnrolledAt: s.now(),
	}
	if err := s.repo.CreateEnrolled(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrSectionFull) {
			return nil, appErrors.NewValidationError([]string{"Section is full"})
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	s.logger.Info("student enrolled",
		zap.String("student_id", req.StudentID),
		zap.String("section_id", req.SectionID),
		zap.String("enrollment_id", enrollment.ID))

	detail, err := s.repo.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// Drop transitions an ENROLLED enrollment to DROPPED. Past the term's
// registration end the drop is rejected unless bypassTimeCheck is set.
func (s *EnrollmentService) Drop(ctx context.Context, id string, bypassTimeCheck bool) (*models.EnrollmentDetail, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusEnrolled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "can only drop enrolled courses")
	}

	if !bypassTimeCheck {
		section, err := s.sections.FindDetailByID(ctx, enrollment.SectionID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
		}
		term, err := s.terms.FindByID(ctx, section.TermID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
		}
		if s.now().After(term.RegistrationEnd) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "drop window has closed for this term")
		}
	}

	droppedAt := s.now()
	if err := s.repo.UpdateStatus(ctx, id, models.EnrollmentStatusDropped, &droppedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment status")
	}
	s.logger.Info("enrollment dropped", zap.String("enrollment_id", id))

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// GetStudentSchedule projects a student's ENROLLED sections for a term with
// their weekly slots, ordered by course code.
func (s *EnrollmentService) GetStudentSchedule(ctx context.Context, studentID, termID string) ([]models.StudentScheduleEntry, error) {
	enrollments, err := s.repo.ListEnrolledByStudentAndTerm(ctx, studentID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term enrollments")
	}
	entries := make([]models.StudentScheduleEntry, 0, len(enrollments))
	for _, e := range enrollments {
		section, err := s.sections.FindDetailByID(ctx, e.SectionID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
		}
		entries = append(entries, models.StudentScheduleEntry{
			EnrollmentID: e.ID,
			SectionID:    e.SectionID,
			CourseCode:   e.CourseCode,
			CourseTitle:  e.CourseTitle,
			Credits:      e.Credits,
			FacultyName:  section.FacultyName,
			Slots:        section.Slots,
		})
	}
	return entries, nil
}
