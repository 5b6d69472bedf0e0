package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-sis-api/internal/models"
	"github.com/noah-isme/uni-sis-api/internal/repository"
	appErrors "github.com/noah-isme/uni-sis-api/pkg/errors"
)

type fakeComponentRepo struct {
	components map[string]*models.GradeComponent
	bySection  map[string][]models.GradeComponent
	created    *models.GradeComponent
	deleted    []string
}

func (f *fakeComponentRepo) FindByID(ctx context.Context, id string) (*models.GradeComponent, error) {
	if c, ok := f.components[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeComponentRepo) ListBySection(ctx context.Context, sectionID string) ([]models.GradeComponent, error) {
	return f.bySection[sectionID], nil
}

func (f *fakeComponentRepo) Create(ctx context.Context, component *models.GradeComponent) error {
	if component.ID == "" {
		component.ID = "new-component"
	}
	f.created = component
	return nil
}

func (f *fakeComponentRepo) Update(ctx context.Context, component *models.GradeComponent) error {
	f.components[component.ID] = component
	return nil
}

func (f *fakeComponentRepo) Delete(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeGradeRepo struct {
	byEnrollment map[string][]models.Grade
	upserted     []models.Grade
}

func (f *fakeGradeRepo) Upsert(ctx context.Context, grade *models.Grade) error {
	f.upserted = append(f.upserted, *grade)
	if f.byEnrollment == nil {
		f.byEnrollment = make(map[string][]models.Grade)
	}
	for i, g := range f.byEnrollment[grade.EnrollmentID] {
		if g.ComponentID == grade.ComponentID {
			f.byEnrollment[grade.EnrollmentID][i] = *grade
			return nil
		}
	}
	f.byEnrollment[grade.EnrollmentID] = append(f.byEnrollment[grade.EnrollmentID], *grade)
	return nil
}

func (f *fakeGradeRepo) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Grade, error) {
	return f.byEnrollment[enrollmentID], nil
}

type fakeFinalRepo struct {
	finals      map[string]*models.FinalGrade
	upserted    map[string]*models.FinalGrade
	grades      *fakeGradeRepo
	enrollments *fakeGradeEnrollments
	publishErr  map[string]error
}

func (f *fakeFinalRepo) FindByEnrollment(ctx context.Context, enrollmentID string) (*models.FinalGrade, error) {
	if g, ok := f.finals[enrollmentID]; ok {
		return g, nil
	}
	return nil, sql.ErrNoRows
}

// PublishOne mirrors the repository transaction: the grade rows are read
// at publish time under the enrollment status check, and the final grade
// lands together with the COMPLETED transition.
func (f *fakeFinalRepo) PublishOne(ctx context.Context, enrollmentID string, derive func(scores map[string]float64) models.FinalGrade) error {
	if err := f.publishErr[enrollmentID]; err != nil {
		return err
	}
	enrollment, ok := f.enrollments.enrollments[enrollmentID]
	if !ok {
		return sql.ErrNoRows
	}
	if enrollment.Status != models.EnrollmentStatusEnrolled {
		return repository.ErrEnrollmentNotEnrolled
	}
	scores := make(map[string]float64)
	for _, g := range f.grades.byEnrollment[enrollmentID] {
		scores[g.ComponentID] = g.Score
	}
	final := derive(scores)
	final.EnrollmentID = enrollmentID
	if f.upserted == nil {
		f.upserted = make(map[string]*models.FinalGrade)
	}
	f.upserted[enrollmentID] = &final
	enrollment.Status = models.EnrollmentStatusCompleted
	f.enrollments.enrollments[enrollmentID] = enrollment
	if f.enrollments.status == nil {
		f.enrollments.status = make(map[string]models.EnrollmentStatus)
	}
	f.enrollments.status[enrollmentID] = models.EnrollmentStatusCompleted
	return nil
}

type fakeGradeEnrollments struct {
	enrollments map[string]models.Enrollment
	details     map[string]models.EnrollmentDetail
	bySection   map[string][]models.Enrollment
	completed   int
	status      map[string]models.EnrollmentStatus
}

func (f *fakeGradeEnrollments) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := f.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeGradeEnrollments) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if d, ok := f.details[id]; ok {
		return &d, nil
	}
	if e, ok := f.enrollments[id]; ok {
		return &models.EnrollmentDetail{Enrollment: e}, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeGradeEnrollments) ListEnrolledBySection(ctx context.Context, sectionID string) ([]models.Enrollment, error) {
	return f.bySection[sectionID], nil
}

func (f *fakeGradeEnrollments) CountBySectionAndStatus(ctx context.Context, sectionID string, status models.EnrollmentStatus) (int, error) {
	if status == models.EnrollmentStatusCompleted {
		return f.completed, nil
	}
	return 0, nil
}

type fakeScale struct {
	bands []models.GradeScaleBand
}

func (f *fakeScale) ListGradeScale(ctx context.Context) ([]models.GradeScaleBand, error) {
	return f.bands, nil
}

type fakeScheduler struct {
	scheduled [][2]string
}

func (f *fakeScheduler) ScheduleRecompute(studentID, termID string) {
	f.scheduled = append(f.scheduled, [2]string{studentID, termID})
}

func gradeFixture() (*GradeService, *fakeComponentRepo, *fakeGradeRepo, *fakeFinalRepo, *fakeGradeEnrollments, *fakeScheduler) {
	components := &fakeComponentRepo{
		components: map[string]*models.GradeComponent{
			"comp-mid": {ID: "comp-mid", SectionID: "sec1", Name: "Midterm", Weight: 40, MaxScore: 100},
			"comp-fin": {ID: "comp-fin", SectionID: "sec1", Name: "Final", Weight: 60, MaxScore: 100},
		},
		bySection: map[string][]models.GradeComponent{
			"sec1": {
				{ID: "comp-mid", SectionID: "sec1", Name: "Midterm", Weight: 40, MaxScore: 100},
				{ID: "comp-fin", SectionID: "sec1", Name: "Final", Weight: 60, MaxScore: 100},
			},
		},
	}
	grades := &fakeGradeRepo{byEnrollment: map[string][]models.Grade{}}
	finals := &fakeFinalRepo{finals: map[string]*models.FinalGrade{}}
	enrollments := &fakeGradeEnrollments{
		enrollments: map[string]models.Enrollment{
			"e1": {ID: "e1", StudentID: "s1", SectionID: "sec1", Status: models.EnrollmentStatusEnrolled},
		},
	}
	finals.grades = grades
	finals.enrollments = enrollments
	sections := &fakeSections{details: map[string]*models.SectionDetail{
		"sec1": {Section: models.Section{ID: "sec1", CourseID: "c1", TermID: "t1", Capacity: 30}, CourseCode: "CS101"},
	}}
	scheduler := &fakeScheduler{}

	svc := NewGradeService(components, grades, finals, enrollments, sections, nil, scheduler, validator.New(), zap.NewNop())
	return svc, components, grades, finals, enrollments, scheduler
}

func TestGradeServiceCreateComponent(t *testing.T) {
	svc, components, _, _, _, _ := gradeFixture()

	component, err := svc.CreateComponent(context.Background(), ComponentRequest{
		SectionID: "sec1", Name: "Quiz", Weight: 10, MaxScore: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, "Quiz", component.Name)
	assert.NotNil(t, components.created)
}

func TestGradeServiceCreateComponentSectionMissing(t *testing.T) {
	svc, _, _, _, _, _ := gradeFixture()

	_, err := svc.CreateComponent(context.Background(), ComponentRequest{
		SectionID: "ghost", Name: "Quiz", Weight: 10, MaxScore: 20,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGradeServiceRecordGrade(t *testing.T) {
	svc, _, grades, _, _, _ := gradeFixture()

	grade, err := svc.RecordGrade(context.Background(), RecordGradeRequest{
		EnrollmentID: "e1", ComponentID: "comp-mid", Score: 85,
	})
	require.NoError(t, err)
	assert.Equal(t, 85.0, grade.Score)
	require.Len(t, grades.upserted, 1)
}

func TestGradeServiceRecordGradeGuards(t *testing.T) {
	svc, components, _, _, enrollments, _ := gradeFixture()

	_, err := svc.RecordGrade(context.Background(), RecordGradeRequest{
		EnrollmentID: "e1", ComponentID: "comp-mid", Score: 120,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	components.components["comp-other"] = &models.GradeComponent{ID: "comp-other", SectionID: "sec2", Weight: 10, MaxScore: 100}
	_, err = svc.RecordGrade(context.Background(), RecordGradeRequest{
		EnrollmentID: "e1", ComponentID: "comp-other", Score: 50,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	enrollments.enrollments["e2"] = models.Enrollment{ID: "e2", SectionID: "sec1", Status: models.EnrollmentStatusDropped}
	_, err = svc.RecordGrade(context.Background(), RecordGradeRequest{
		EnrollmentID: "e2", ComponentID: "comp-mid", Score: 50,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestGradeServiceGradeSheetDistinguishesUngraded(t *testing.T) {
	svc, _, grades, _, enrollments, _ := gradeFixture()
	enrollments.details = map[string]models.EnrollmentDetail{
		"e1": {Enrollment: enrollments.enrollments["e1"], CourseCode: "CS101"},
	}
	grades.byEnrollment["e1"] = []models.Grade{
		{EnrollmentID: "e1", ComponentID: "comp-mid", Score: 0},
	}

	sheet, err := svc.GetStudentGrades(context.Background(), "e1")
	require.NoError(t, err)
	require.Len(t, sheet.Components, 2)

	mid := sheet.Components[0]
	require.NotNil(t, mid.Score)
	assert.Equal(t, 0.0, *mid.Score)
	require.NotNil(t, mid.Contribution)

	final := sheet.Components[1]
	assert.Nil(t, final.Score)
	assert.Nil(t, final.Contribution)
	assert.Equal(t, 0.0, sheet.WeightedTotal)
}

func TestGradeServicePublishFinalGrades(t *testing.T) {
	svc, _, grades, finals, enrollments, scheduler := gradeFixture()
	enrollments.enrollments["e2"] = models.Enrollment{ID: "e2", StudentID: "s2", SectionID: "sec1", Status: models.EnrollmentStatusEnrolled}
	enrollments.bySection = map[string][]models.Enrollment{
		"sec1": {
			{ID: "e1", StudentID: "s1", SectionID: "sec1", Status: models.EnrollmentStatusEnrolled},
			{ID: "e2", StudentID: "s2", SectionID: "sec1", Status: models.EnrollmentStatusEnrolled},
		},
	}
	grades.byEnrollment = map[string][]models.Grade{
		"e1": {
			{EnrollmentID: "e1", ComponentID: "comp-mid", Score: 90},
			{EnrollmentID: "e1", ComponentID: "comp-fin", Score: 95},
		},
		// e2 has only the midterm; the final contributes zero.
		"e2": {
			{EnrollmentID: "e2", ComponentID: "comp-mid", Score: 50},
		},
	}

	result, err := svc.PublishFinalGrades(context.Background(), "sec1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Published)
	assert.Empty(t, result.Failures)

	top := finals.upserted["e1"]
	require.NotNil(t, top)
	// 90/100*40 + 95/100*60 = 93
	assert.InDelta(t, 93.0, top.TotalPercentage, 0.001)
	assert.Equal(t, "A", top.LetterGrade)
	assert.Equal(t, 4.0, top.GradePoint)
	require.NotNil(t, top.PublishedAt)

	low := finals.upserted["e2"]
	require.NotNil(t, low)
	// 50/100*40 = 20
	assert.InDelta(t, 20.0, low.TotalPercentage, 0.001)
	assert.Equal(t, "F", low.LetterGrade)
	assert.Equal(t, 0.0, low.GradePoint)

	assert.Equal(t, models.EnrollmentStatusCompleted, enrollments.status["e1"])
	assert.Equal(t, models.EnrollmentStatusCompleted, enrollments.status["e2"])
	assert.Len(t, scheduler.scheduled, 2)
}

func TestGradeServicePublishIsRepeatSafe(t *testing.T) {
	svc, _, _, _, enrollments, _ := gradeFixture()
	enrollments.bySection = map[string][]models.Enrollment{"sec1": nil}
	enrollments.completed = 2

	result, err := svc.PublishFinalGrades(context.Background(), "sec1")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Published)
	assert.Equal(t, 2, result.Skipped)
}

func TestGradeServicePublishSkipsRacedEnrollment(t *testing.T) {
	svc, _, grades, finals, enrollments, _ := gradeFixture()
	// e2 was still ENROLLED when the section roster was read, but another
	// publish completed it before this one reached its row.
	enrollments.enrollments["e2"] = models.Enrollment{ID: "e2", StudentID: "s2", SectionID: "sec1", Status: models.EnrollmentStatusCompleted}
	enrollments.bySection = map[string][]models.Enrollment{
		"sec1": {
			{ID: "e1", StudentID: "s1", SectionID: "sec1", Status: models.EnrollmentStatusEnrolled},
			{ID: "e2", StudentID: "s2", SectionID: "sec1", Status: models.EnrollmentStatusEnrolled},
		},
	}
	grades.byEnrollment = map[string][]models.Grade{
		"e1": {
			{EnrollmentID: "e1", ComponentID: "comp-mid", Score: 90},
			{EnrollmentID: "e1", ComponentID: "comp-fin", Score: 95},
		},
	}

	result, err := svc.PublishFinalGrades(context.Background(), "sec1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Published)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "e2", result.Failures[0].EnrollmentID)

	assert.NotNil(t, finals.upserted["e1"])
	assert.Nil(t, finals.upserted["e2"])
}

func TestGradeServiceCustomScaleBoundaries(t *testing.T) {
	svc, _, grades, finals, enrollments, _ := gradeFixture()
	svc.scale = &fakeScale{bands: []models.GradeScaleBand{
		{MinPercentage: 0, LetterGrade: "F", GradePoint: 0},
		{MinPercentage: 50, LetterGrade: "P", GradePoint: 2},
		{MinPercentage: 80, LetterGrade: "H", GradePoint: 4},
	}}
	enrollments.bySection = map[string][]models.Enrollment{
		"sec1": {{ID: "e1", StudentID: "s1", SectionID: "sec1", Status: models.EnrollmentStatusEnrolled}},
	}
	grades.byEnrollment = map[string][]models.Grade{
		"e1": {
			{EnrollmentID: "e1", ComponentID: "comp-mid", Score: 80},
			{EnrollmentID: "e1", ComponentID: "comp-fin", Score: 80},
		},
	}

	_, err := svc.PublishFinalGrades(context.Background(), "sec1")
	require.NoError(t, err)
	// Exactly 80 lands in the highest band even with bands stored ascending.
	final := finals.upserted["e1"]
	require.NotNil(t, final)
	assert.Equal(t, "H", final.LetterGrade)
	assert.Equal(t, 4.0, final.GradePoint)
}

func TestGradeServiceDeleteComponent(t *testing.T) {
	svc, components, _, _, _, _ := gradeFixture()

	require.NoError(t, svc.DeleteComponent(context.Background(), "comp-mid"))
	assert.Contains(t, components.deleted, "comp-mid")

	err := svc.DeleteComponent(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestLetterForDefaultScaleBoundaries(t *testing.T) {
	bands := models.DefaultGradeScale()

	cases := []struct {
		percentage float64
		letter     string
		point      float64
	}{
		{100, "A+", 4.0},
		{95, "A+", 4.0},
		{94.999, "A", 4.0},
		{85, "B+", 3.5},
		{84.999, "B", 3.0},
		{60, "D", 1.0},
		{59.999, "F", 0.0},
		{0, "F", 0.0},
	}
	for _, tc := range cases {
		letter, point := letterFor(tc.percentage, bands)
		assert.Equalf(t, tc.letter, letter, "percentage %v", tc.percentage)
		assert.Equalf(t, tc.point, point, "percentage %v", tc.percentage)
	}
}
