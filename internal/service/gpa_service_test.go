package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-sis-api/internal/models"
	appErrors "github.com/noah-isme/uni-sis-api/pkg/errors"
)

type fakeGPARepo struct {
	courses    []models.CompletedCourse
	byTerm     map[string][]models.CompletedCourse
	cumulative *models.CumulativeGPA
	termGPAs   []models.TermGPA
	stored     *models.CumulativeGPA
}

func (f *fakeGPARepo) ListCompletedCourses(ctx context.Context, studentID string) ([]models.CompletedCourse, error) {
	return f.courses, nil
}

func (f *fakeGPARepo) ListCompletedCoursesByTerm(ctx context.Context, studentID, termID string) ([]models.CompletedCourse, error) {
	return f.byTerm[termID], nil
}

func (f *fakeGPARepo) UpsertTermGPA(ctx context.Context, gpa *models.TermGPA) error {
	f.termGPAs = append(f.termGPAs, *gpa)
	return nil
}

func (f *fakeGPARepo) UpsertCumulativeGPA(ctx context.Context, gpa *models.CumulativeGPA) error {
	f.stored = gpa
	return nil
}

func (f *fakeGPARepo) FindCumulativeGPA(ctx context.Context, studentID string) (*models.CumulativeGPA, error) {
	if f.cumulative == nil {
		return nil, sql.ErrNoRows
	}
	return f.cumulative, nil
}

type fakePolicies struct {
	policy *models.StandingPolicy
}

func (f *fakePolicies) FindStandingPolicy(ctx context.Context) (*models.StandingPolicy, error) {
	return f.policy, nil
}

func defaultStandingPolicy() models.StandingPolicy {
	return models.StandingPolicy{ProbationThreshold: 2.0, WarningThreshold: 2.5, ApplicationMinGPA: 2.0}
}

func gpaFixture(repo *fakeGPARepo) *GPAService {
	students := &fakeStudents{students: map[string]*models.Student{
		"s1": {ID: "s1", FullName: "Ada Lovelace", Status: models.StudentStatusActive},
	}}
	return NewGPAService(repo, students, nil, defaultStandingPolicy(), zap.NewNop())
}

func TestGPAServiceCalculateStudentGPA(t *testing.T) {
	repo := &fakeGPARepo{
		byTerm: map[string][]models.CompletedCourse{
			"t1": {
				{TermID: "t1", Credits: 3, GradePoint: 4.0},
				{TermID: "t1", Credits: 4, GradePoint: 2.0},
			},
		},
		courses: []models.CompletedCourse{
			{TermID: "t1", Credits: 3, GradePoint: 4.0},
			{TermID: "t1", Credits: 4, GradePoint: 2.0},
		},
	}
	svc := gpaFixture(repo)

	term, cumulative, err := svc.CalculateStudentGPA(context.Background(), "s1", "t1")
	require.NoError(t, err)
	// (4*3 + 2*4) / 7 = 20/7
	assert.InDelta(t, 20.0/7.0, term.GPA, 0.0001)
	assert.Equal(t, 7, term.CreditsAttempted)
	assert.Equal(t, 7, term.CreditsEarned)
	assert.InDelta(t, 20.0/7.0, cumulative.CGPA, 0.0001)
	assert.Equal(t, models.StandingGood, cumulative.Standing)
	require.Len(t, repo.termGPAs, 1)
	require.NotNil(t, repo.stored)
}

func TestGPAServiceFailedCoursesEarnNoCredits(t *testing.T) {
	repo := &fakeGPARepo{
		byTerm: map[string][]models.CompletedCourse{
			"t1": {
				{TermID: "t1", Credits: 3, GradePoint: 3.0},
				{TermID: "t1", Credits: 3, GradePoint: 0.0},
			},
		},
		courses: []models.CompletedCourse{
			{TermID: "t1", Credits: 3, GradePoint: 3.0},
			{TermID: "t1", Credits: 3, GradePoint: 0.0},
		},
	}
	svc := gpaFixture(repo)

	term, cumulative, err := svc.CalculateStudentGPA(context.Background(), "s1", "t1")
	require.NoError(t, err)
	assert.InDelta(t, 1.5, term.GPA, 0.0001)
	assert.Equal(t, 6, term.CreditsAttempted)
	assert.Equal(t, 3, term.CreditsEarned)
	assert.Equal(t, models.StandingProbation, cumulative.Standing)
}

func TestGPAServiceEmptyHistory(t *testing.T) {
	repo := &fakeGPARepo{byTerm: map[string][]models.CompletedCourse{}}
	svc := gpaFixture(repo)

	term, cumulative, err := svc.CalculateStudentGPA(context.Background(), "s1", "t1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, term.GPA)
	assert.Equal(t, 0, term.CreditsAttempted)
	assert.Equal(t, 0.0, cumulative.CGPA)
	assert.Equal(t, models.StandingProbation, cumulative.Standing)
}

func TestGPAServiceUnknownStudent(t *testing.T) {
	svc := gpaFixture(&fakeGPARepo{})

	_, _, err := svc.CalculateStudentGPA(context.Background(), "ghost", "t1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGPAServiceGetCumulativePrefersStored(t *testing.T) {
	repo := &fakeGPARepo{cumulative: &models.CumulativeGPA{StudentID: "s1", CGPA: 3.2, Standing: models.StandingGood}}
	svc := gpaFixture(repo)

	cumulative, err := svc.GetCumulativeGPA(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 3.2, cumulative.CGPA)
	assert.Nil(t, repo.stored)
}

func TestGPAServiceGetCumulativeRecomputesOnMiss(t *testing.T) {
	repo := &fakeGPARepo{courses: []models.CompletedCourse{{TermID: "t1", Credits: 3, GradePoint: 2.0}}}
	svc := gpaFixture(repo)

	cumulative, err := svc.GetCumulativeGPA(context.Background(), "s1")
	require.NoError(t, err)
	assert.InDelta(t, 2.0, cumulative.CGPA, 0.0001)
	require.NotNil(t, repo.stored)
}

func TestGPAServiceTranscriptGroupsByTerm(t *testing.T) {
	repo := &fakeGPARepo{
		courses: []models.CompletedCourse{
			{TermID: "t1", TermName: "Fall 2025", CourseCode: "CS101", Credits: 3, GradePoint: 4.0, LetterGrade: "A"},
			{TermID: "t1", TermName: "Fall 2025", CourseCode: "MA101", Credits: 4, GradePoint: 3.0, LetterGrade: "B"},
			{TermID: "t2", TermName: "Spring 2026", CourseCode: "CS102", Credits: 3, GradePoint: 2.0, LetterGrade: "C"},
		},
	}
	svc := gpaFixture(repo)

	transcript, err := svc.GetStudentTranscript(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", transcript.StudentName)
	require.Len(t, transcript.Terms, 2)

	fall := transcript.Terms[0]
	assert.Equal(t, "Fall 2025", fall.TermName)
	require.Len(t, fall.Courses, 2)
	// (4*3 + 3*4) / 7 = 24/7
	assert.InDelta(t, 24.0/7.0, fall.GPA, 0.0001)

	spring := transcript.Terms[1]
	require.Len(t, spring.Courses, 1)
	assert.InDelta(t, 2.0, spring.GPA, 0.0001)

	// (12 + 12 + 6) / 10 = 3.0
	assert.InDelta(t, 3.0, transcript.CGPA, 0.0001)
	assert.Equal(t, 10, transcript.TotalCredits)
	assert.Equal(t, models.StandingGood, transcript.Standing)
}

func TestGPAServiceTranscriptEmptyHistory(t *testing.T) {
	svc := gpaFixture(&fakeGPARepo{})

	transcript, err := svc.GetStudentTranscript(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, transcript.Terms)
	assert.Equal(t, 0.0, transcript.CGPA)
}

func TestGPAServiceConfiguredPolicyWins(t *testing.T) {
	repo := &fakeGPARepo{courses: []models.CompletedCourse{{TermID: "t1", Credits: 3, GradePoint: 2.2}}}
	students := &fakeStudents{students: map[string]*models.Student{"s1": {ID: "s1", FullName: "Ada Lovelace"}}}
	policies := &fakePolicies{policy: &models.StandingPolicy{ProbationThreshold: 2.5, WarningThreshold: 3.0}}
	svc := NewGPAService(repo, students, policies, defaultStandingPolicy(), zap.NewNop())

	cumulative, err := svc.GetCumulativeGPA(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, models.StandingProbation, cumulative.Standing)
}
