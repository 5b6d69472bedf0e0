package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-sis-api/internal/models"
	appErrors "github.com/noah-isme/uni-sis-api/pkg/errors"
)

type gradeComponentRepository interface {
	FindByID(ctx context.Context, id string) (*models.GradeComponent, error)
	ListBySection(ctx context.Context, sectionID string) ([]models.GradeComponent, error)
	Create(ctx context.Context, component *models.GradeComponent) error
	Update(ctx context.Context, component *models.GradeComponent) error
	Delete(ctx context.Context, id string) error
}

type gradeRepository interface {
	Upsert(ctx context.Context, grade *models.Grade) error
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Grade, error)
}

type finalGradeRepository interface {
	FindByEnrollment(ctx context.Context, enrollmentID string) (*models.FinalGrade, error)
	PublishOne(ctx context.Context, enrollmentID string, derive func(scores map[string]float64) models.FinalGrade) error
}

type gradeEnrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ListEnrolledBySection(ctx context.Context, sectionID string) ([]models.Enrollment, error)
	CountBySectionAndStatus(ctx context.Context, sectionID string, status models.EnrollmentStatus) (int, error)
}

type gradeScaleReader interface {
	ListGradeScale(ctx context.Context) ([]models.GradeScaleBand, error)
}

type gpaScheduler interface {
	ScheduleRecompute(studentID, termID string)
}

// ComponentRequest describes a grade component create/update payload.
type ComponentRequest struct {
	SectionID string  `json:"section_id" validate:"required"`
	Name      string  `json:"name" validate:"required"`
	Weight    float64 `json:"weight" validate:"gte=0,lte=100"`
	MaxScore  float64 `json:"max_score" validate:"gt=0"`
}

// RecordGradeRequest describes a score submission.
type RecordGradeRequest struct {
	EnrollmentID string  `json:"enrollment_id" validate:"required"`
	ComponentID  string  `json:"component_id" validate:"required"`
	Score        float64 `json:"score" validate:"gte=0"`
}

// GradeService manages grading schemes, recorded scores and the
// publication of final grades.
type GradeService struct {
	components  gradeComponentRepository
	grades      gradeRepository
	finals      finalGradeRepository
	enrollments gradeEnrollmentReader
	sections    sectionReader
	scale       gradeScaleReader
	gpa         gpaScheduler
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewGradeService constructs GradeService. gpa may be nil when no
// asynchronous recompute is wired.
func NewGradeService(components gradeComponentRepository, grades gradeRepository, finals finalGradeRepository, enrollments gradeEnrollmentReader, sections sectionReader, scale gradeScaleReader, gpa gpaScheduler, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{
		components:  components,
		grades:      grades,
		finals:      finals,
		enrollments: enrollments,
		sections:    sections,
		scale:       scale,
		gpa:         gpa,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ListComponents returns the grading scheme of a section.
func (s *GradeService) ListComponents(ctx context.Context, sectionID string) ([]models.GradeComponent, error) {
	components, err := s.components.ListBySection(ctx, sectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list components")
	}
	return components, nil
}

// CreateComponent adds a weighted component to a section's grading scheme.
func (s *GradeService) CreateComponent(ctx context.Context, req ComponentRequest) (*models.GradeComponent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid component payload")
	}
	if _, err := s.sections.FindDetailByID(ctx, req.SectionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	component := &models.GradeComponent{
		SectionID: req.SectionID,
		Name:      req.Name,
		Weight:    req.Weight,
		MaxScore:  req.MaxScore,
	}
	if err := s.components.Create(ctx, component); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create component")
	}
	return component, nil
}

// UpdateComponent changes a component's name, weight or max score.
func (s *GradeService) UpdateComponent(ctx context.Context, id string, req ComponentRequest) (*models.GradeComponent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid component payload")
	}
	component, err := s.components.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "component not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load component")
	}
	component.Name = req.Name
	component.Weight = req.Weight
	component.MaxScore = req.MaxScore
	if err := s.components.Update(ctx, component); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update component")
	}
	return component, nil
}

// DeleteComponent removes a component and its recorded scores.
func (s *GradeService) DeleteComponent(ctx context.Context, id string) error {
	if _, err := s.components.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "component not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load component")
	}
	if err := s.components.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete component")
	}
	return nil
}

// RecordGrade stores a score for an (enrollment, component) pair. Scoring
// the same pair twice overwrites the earlier value.
func (s *GradeService) RecordGrade(ctx context.Context, req RecordGradeRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	enrollment, err := s.enrollments.FindByID(ctx, req.EnrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusEnrolled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "grades can only be recorded for enrolled students")
	}
	component, err := s.components.FindByID(ctx, req.ComponentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "component not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load component")
	}
	if component.SectionID != enrollment.SectionID {
		return nil, appErrors.Clone(appErrors.ErrConflict, "component belongs to a different section")
	}
	if req.Score > component.MaxScore {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("score exceeds the component maximum of %g", component.MaxScore))
	}
	grade := &models.Grade{
		EnrollmentID: req.EnrollmentID,
		ComponentID:  req.ComponentID,
		Score:        req.Score,
	}
	if err := s.grades.Upsert(ctx, grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record grade")
	}
	return grade, nil
}

// GetStudentGrades builds the in-progress grade sheet for an enrollment.
// Ungraded components carry a nil score, distinct from a recorded zero.
func (s *GradeService) GetStudentGrades(ctx context.Context, enrollmentID string) (*models.GradeSheet, error) {
	enrollment, err := s.enrollments.FindDetailByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	components, err := s.components.ListBySection(ctx, enrollment.SectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list components")
	}
	grades, err := s.grades.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	scores := make(map[string]float64, len(grades))
	for _, g := range grades {
		scores[g.ComponentID] = g.Score
	}

	sheet := &models.GradeSheet{
		EnrollmentID: enrollmentID,
		CourseCode:   enrollment.CourseCode,
		Components:   make([]models.ComponentScore, 0, len(components)),
	}
	for _, c := range components {
		entry := models.ComponentScore{
			ComponentID: c.ID,
			Name:        c.Name,
			Weight:      c.Weight,
			MaxScore:    c.MaxScore,
		}
		if score, ok := scores[c.ID]; ok {
			contribution := contributionOf(score, c)
			entry.Score = &score
			entry.Contribution = &contribution
			sheet.WeightedTotal += contribution
		}
		sheet.Components = append(sheet.Components, entry)
	}
	return sheet, nil
}

// PublishFinalGrades derives and publishes a final grade for every ENROLLED
// enrollment of a section, transitioning each to COMPLETED. Failures are
// itemized per enrollment and never abort the rest of the batch; a repeat
// call finds no ENROLLED enrollments and is a no-op.
func (s *GradeService) PublishFinalGrades(ctx context.Context, sectionID string) (*models.PublishResult, error) {
	section, err := s.sections.FindDetailByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	components, err := s.components.ListBySection(ctx, sectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list components")
	}
	bands, err := s.gradeScale(ctx)
	if err != nil {
		return nil, err
	}

	enrollments, err := s.enrollments.ListEnrolledBySection(ctx, sectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	completed, err := s.enrollments.CountBySectionAndStatus(ctx, sectionID, models.EnrollmentStatusCompleted)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count completed enrollments")
	}

	result := &models.PublishResult{SectionID: sectionID, Skipped: completed}
	publishedAt := s.now()
	for _, enrollment := range enrollments {
		if err := s.publishOne(ctx, enrollment, components, bands, publishedAt); err != nil {
			s.logger.Warn("final grade publish failed",
				zap.String("enrollment_id", enrollment.ID),
				zap.Error(err))
			result.Failures = append(result.Failures, models.PublishFailure{EnrollmentID: enrollment.ID, Reason: err.Error()})
			continue
		}
		result.Published++
		if s.gpa != nil {
			s.gpa.ScheduleRecompute(enrollment.StudentID, section.TermID)
		}
	}
	s.logger.Info("final grades published",
		zap.String("section_id", sectionID),
		zap.Int("published", result.Published),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", len(result.Failures)))
	return result, nil
}

// publishOne delegates to the repository's single-enrollment publish
// transaction: the grade rows are re-read under the enrollment row lock,
// so the weighted sum reflects every committed score and the COMPLETED
// transition commits together with the final grade.
func (s *GradeService) publishOne(ctx context.Context, enrollment models.Enrollment, components []models.GradeComponent, bands []models.GradeScaleBand, publishedAt time.Time) error {
	return s.finals.PublishOne(ctx, enrollment.ID, func(scores map[string]float64) models.FinalGrade {
		// Ungraded components contribute zero.
		var total float64
		for _, c := range components {
			if score, ok := scores[c.ID]; ok {
				total += contributionOf(score, c)
			}
		}
		letter, points := letterFor(total, bands)
		return models.FinalGrade{
			LetterGrade:     letter,
			GradePoint:      points,
			TotalPercentage: total,
			Status:          models.FinalGradeStatusPublished,
			PublishedAt:     &publishedAt,
		}
	})
}

// GetFinalGrade returns the published final grade for an enrollment.
func (s *GradeService) GetFinalGrade(ctx context.Context, enrollmentID string) (*models.FinalGrade, error) {
	final, err := s.finals.FindByEnrollment(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "final grade not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load final grade")
	}
	return final, nil
}

func (s *GradeService) gradeScale(ctx context.Context) ([]models.GradeScaleBand, error) {
	if s.scale == nil {
		return models.DefaultGradeScale(), nil
	}
	bands, err := s.scale.ListGradeScale(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade scale")
	}
	if len(bands) == 0 {
		return models.DefaultGradeScale(), nil
	}
	sort.Slice(bands, func(i, j int) bool { return bands[i].MinPercentage > bands[j].MinPercentage })
	return bands, nil
}

func contributionOf(score float64, component models.GradeComponent) float64 {
	if component.MaxScore <= 0 {
		return 0
	}
	return score / component.MaxScore * component.Weight
}

// letterFor walks the scale bands in descending order; the first band whose
// minimum the percentage reaches wins.
func letterFor(percentage float64, bands []models.GradeScaleBand) (string, float64) {
	for _, band := range bands {
		if percentage >= band.MinPercentage {
			return band.LetterGrade, band.GradePoint
		}
	}
	return "F", 0
}
