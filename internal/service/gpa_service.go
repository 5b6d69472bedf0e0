package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-sis-api/internal/models"
	appErrors "github.com/noah-isme/uni-sis-api/pkg/errors"
)

type gpaRepository interface {
	ListCompletedCourses(ctx context.Context, studentID string) ([]models.CompletedCourse, error)
	ListCompletedCoursesByTerm(ctx context.Context, studentID, termID string) ([]models.CompletedCourse, error)
	UpsertTermGPA(ctx context.Context, gpa *models.TermGPA) error
	UpsertCumulativeGPA(ctx context.Context, gpa *models.CumulativeGPA) error
	FindCumulativeGPA(ctx context.Context, studentID string) (*models.CumulativeGPA, error)
}

type standingPolicyReader interface {
	FindStandingPolicy(ctx context.Context) (*models.StandingPolicy, error)
}

// GPAService derives term and cumulative GPA aggregates from published
// final grades. Every computation is a full recompute from the completed
// history, so repeated runs are idempotent.
type GPAService struct {
	repo          gpaRepository
	students      studentReader
	policies      standingPolicyReader
	defaultPolicy models.StandingPolicy
	logger        *zap.Logger
}

// NewGPAService constructs GPAService. defaultPolicy supplies thresholds
// until a policy row is configured.
func NewGPAService(repo gpaRepository, students studentReader, policies standingPolicyReader, defaultPolicy models.StandingPolicy, logger *zap.Logger) *GPAService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GPAService{
		repo:          repo,
		students:      students,
		policies:      policies,
		defaultPolicy: defaultPolicy,
		logger:        logger,
	}
}

// CalculateStudentGPA recomputes and stores the student's GPA for the given
// term plus the cumulative aggregate over the whole history.
func (s *GPAService) CalculateStudentGPA(ctx context.Context, studentID, termID string) (*models.TermGPA, *models.CumulativeGPA, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	termCourses, err := s.repo.ListCompletedCoursesByTerm(ctx, studentID, termID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term history")
	}
	gpa, earned, attempted := aggregateGPA(termCourses)
	termGPA := &models.TermGPA{
		StudentID:        studentID,
		TermID:           termID,
		GPA:              gpa,
		CreditsEarned:    earned,
		CreditsAttempted: attempted,
	}
	if err := s.repo.UpsertTermGPA(ctx, termGPA); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store term gpa")
	}

	cumulative, err := s.recomputeCumulative(ctx, studentID)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("gpa recomputed",
		zap.String("student_id", studentID),
		zap.String("term_id", termID),
		zap.Float64("term_gpa", termGPA.GPA),
		zap.Float64("cgpa", cumulative.CGPA))
	return termGPA, cumulative, nil
}

func (s *GPAService) recomputeCumulative(ctx context.Context, studentID string) (*models.CumulativeGPA, error) {
	courses, err := s.repo.ListCompletedCourses(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load completed history")
	}
	policy, err := s.standingPolicy(ctx)
	if err != nil {
		return nil, err
	}
	cgpa, earned, _ := aggregateGPA(courses)
	cumulative := &models.CumulativeGPA{
		StudentID:    studentID,
		CGPA:         cgpa,
		TotalCredits: earned,
		Standing:     policy.Standing(cgpa),
	}
	if err := s.repo.UpsertCumulativeGPA(ctx, cumulative); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store cumulative gpa")
	}
	return cumulative, nil
}

// GetCumulativeGPA returns the stored cumulative aggregate, recomputing it
// when none has been stored yet.
func (s *GPAService) GetCumulativeGPA(ctx context.Context, studentID string) (*models.CumulativeGPA, error) {
	cumulative, err := s.repo.FindCumulativeGPA(ctx, studentID)
	if err == nil {
		return cumulative, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cumulative gpa")
	}
	return s.recomputeCumulative(ctx, studentID)
}

// GetStudentTranscript groups the student's completed enrollments per term
// with recomputed per-term GPAs. An empty history yields an empty transcript
// with zero GPA.
func (s *GPAService) GetStudentTranscript(ctx context.Context, studentID string) (*models.Transcript, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	courses, err := s.repo.ListCompletedCourses(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load completed history")
	}
	policy, err := s.standingPolicy(ctx)
	if err != nil {
		return nil, err
	}

	transcript := &models.Transcript{
		StudentID:   studentID,
		StudentName: student.FullName,
		Terms:       []models.TranscriptTerm{},
	}

	// Courses arrive ordered by term start date, so terms can be built in
	// a single pass.
	var current *models.TranscriptTerm
	for _, course := range courses {
		if current == nil || current.TermID != course.TermID {
			if current != nil {
				transcript.Terms = append(transcript.Terms, *current)
			}
			current = &models.TranscriptTerm{TermID: course.TermID, TermName: course.TermName}
		}
		current.Courses = append(current.Courses, course)
	}
	if current != nil {
		transcript.Terms = append(transcript.Terms, *current)
	}
	for i := range transcript.Terms {
		gpa, earned, attempted := aggregateGPA(transcript.Terms[i].Courses)
		transcript.Terms[i].GPA = gpa
		transcript.Terms[i].CreditsEarned = earned
		transcript.Terms[i].CreditsAttempted = attempted
	}

	cgpa, earned, _ := aggregateGPA(courses)
	transcript.CGPA = cgpa
	transcript.TotalCredits = earned
	transcript.Standing = policy.Standing(cgpa)
	return transcript, nil
}

func (s *GPAService) standingPolicy(ctx context.Context) (models.StandingPolicy, error) {
	if s.policies == nil {
		return s.defaultPolicy, nil
	}
	policy, err := s.policies.FindStandingPolicy(ctx)
	if err != nil {
		return models.StandingPolicy{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load standing policy")
	}
	if policy == nil {
		return s.defaultPolicy, nil
	}
	return *policy, nil
}

// aggregateGPA returns the credit-weighted grade point average over the
// given completed courses. Failed courses earn no credits but still count
// toward the attempted denominator.
func aggregateGPA(courses []models.CompletedCourse) (gpa float64, earned, attempted int) {
	var points float64
	for _, course := range courses {
		points += course.GradePoint * float64(course.Credits)
		attempted += course.Credits
		if course.GradePoint > 0 {
			earned += course.Credits
		}
	}
	if attempted == 0 {
		return 0, 0, 0
	}
	return points / float64(attempted), earned, attempted
}
