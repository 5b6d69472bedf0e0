package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-sis-api/internal/models"
	"github.com/noah-isme/uni-sis-api/internal/repository"
	appErrors "github.com/noah-isme/uni-sis-api/pkg/errors"
)

type fakeEnrollmentRepo struct {
	enrollments map[string]models.Enrollment
	details     map[string]models.EnrollmentDetail
	active      map[string]bool
	enrolled    map[string]int
	byTerm      map[string][]models.EnrollmentDetail
	completed   map[string]map[string]bool
	created     *models.Enrollment
	createErr   error
	status      map[string]models.EnrollmentStatus
	droppedAt   map[string]*time.Time
}

func (f *fakeEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (f *fakeEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := f.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if d, ok := f.details[id]; ok {
		return &d, nil
	}
	if e, ok := f.enrollments[id]; ok {
		return &models.EnrollmentDetail{Enrollment: e}, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEnrollmentRepo) ExistsActive(ctx context.Context, studentID, sectionID string) (bool, error) {
	return f.active[studentID+"/"+sectionID], nil
}

func (f *fakeEnrollmentRepo) CountEnrolled(ctx context.Context, sectionID string) (int, error) {
	return f.enrolled[sectionID], nil
}

func (f *fakeEnrollmentRepo) CreateEnrolled(ctx context.Context, enrollment *models.Enrollment) error {
	if f.createErr != nil {
		return f.createErr
	}
	if enrollment.ID == "" {
		enrollment.ID = "new-enrollment"
	}
	if f.enrollments == nil {
		f.enrollments = make(map[string]models.Enrollment)
	}
	f.enrollments[enrollment.ID] = *enrollment
	f.created = enrollment
	return nil
}

func (f *fakeEnrollmentRepo) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, droppedAt *time.Time) error {
	if f.status == nil {
		f.status = make(map[string]models.EnrollmentStatus)
	}
	if f.droppedAt == nil {
		f.droppedAt = make(map[string]*time.Time)
	}
	f.status[id] = status
	f.droppedAt[id] = droppedAt
	if e, ok := f.enrollments[id]; ok {
		e.Status = status
		e.DroppedAt = droppedAt
		f.enrollments[id] = e
	}
	return nil
}

func (f *fakeEnrollmentRepo) ListEnrolledByStudentAndTerm(ctx context.Context, studentID, termID string) ([]models.EnrollmentDetail, error) {
	return f.byTerm[studentID+"/"+termID], nil
}

func (f *fakeEnrollmentRepo) ListCompletedCourseIDs(ctx context.Context, studentID string) (map[string]bool, error) {
	if f.completed == nil {
		return map[string]bool{}, nil
	}
	return f.completed[studentID], nil
}

type fakeStudents struct {
	students map[string]*models.Student
}

func (f *fakeStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := f.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type fakeSections struct {
	details map[string]*models.SectionDetail
	slots   map[string][]models.ScheduleSlot
}

func (f *fakeSections) FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error) {
	if s, ok := f.details[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSections) SlotsBySections(ctx context.Context, sectionIDs []string) (map[string][]models.ScheduleSlot, error) {
	out := make(map[string][]models.ScheduleSlot)
	for _, id := range sectionIDs {
		if slots, ok := f.slots[id]; ok {
			out[id] = slots
		}
	}
	return out, nil
}

type fakeTerms struct {
	terms map[string]*models.AcademicTerm
}

func (f *fakeTerms) FindByID(ctx context.Context, id string) (*models.AcademicTerm, error) {
	if t, ok := f.terms[id]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

type fakeBatches struct {
	batches map[string]*models.Batch
}

func (f *fakeBatches) FindByID(ctx context.Context, id string) (*models.Batch, error) {
	if b, ok := f.batches[id]; ok {
		return b, nil
	}
	return nil, sql.ErrNoRows
}

type fakePrereqs struct {
	edges map[string][]models.PrerequisiteDetail
}

func (f *fakePrereqs) ListPrerequisites(ctx context.Context, courseID string) ([]models.PrerequisiteDetail, error) {
	return f.edges[courseID], nil
}

type fakeCourses struct {
	courses map[string]*models.Course
}

func (f *fakeCourses) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := f.courses[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

// enrollmentFixture wires a service where every rule passes for s1 + sec1.
func enrollmentFixture() (*EnrollmentService, *fakeEnrollmentRepo) {
	repo := &fakeEnrollmentRepo{
		enrolled: map[string]int{"sec1": 10},
		byTerm:   map[string][]models.EnrollmentDetail{},
	}
	students := &fakeStudents{students: map[string]*models.Student{
		"s1": {ID: "s1", BatchID: "b1", Status: models.StudentStatusActive},
	}}
	sections := &fakeSections{details: map[string]*models.SectionDetail{
		"sec1": {
			Section:     models.Section{ID: "sec1", CourseID: "c1", TermID: "t1", Capacity: 30},
			CourseCode:  "CS101",
			CourseTitle: "Intro to Computing",
			Credits:     3,
		},
	}}
	terms := &fakeTerms{terms: map[string]*models.AcademicTerm{
		"t1": {
			ID:                "t1",
			BatchID:           "b1",
			RegistrationStart: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			RegistrationEnd:   time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
			Status:            models.TermStatusActive,
		},
	}}
	batches := &fakeBatches{batches: map[string]*models.Batch{
		"b1": {ID: "b1", MinCredits: 12, MaxCredits: 24},
	}}
	prereqs := &fakePrereqs{edges: map[string][]models.PrerequisiteDetail{}}
	courses := &fakeCourses{courses: map[string]*models.Course{
		"c1": {ID: "c1", Code: "CS101", Credits: 3},
	}}

	svc := NewEnrollmentService(repo, students, sections, terms, batches, prereqs, courses, validator.New(), zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC) }
	return svc, repo
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	svc, repo := enrollmentFixture()

	detail, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "s1", SectionID: "sec1"})
	require.NoError(t, err)
	require.NotNil(t, repo.created)
	assert.Equal(t, models.EnrollmentStatusEnrolled, repo.created.Status)
	assert.Equal(t, "s1", detail.StudentID)
}

func TestEnrollmentServiceValidateAccumulatesErrors(t *testing.T) {
	svc, repo := enrollmentFixture()
	repo.enrolled["sec1"] = 30
	repo.active = map[string]bool{"s1/sec1": true}

	validation, err := svc.Validate(context.Background(), "s1", "sec1", false)
	require.NoError(t, err)
	assert.False(t, validation.Valid)
	assert.Contains(t, validation.Errors, "Section is full")
	assert.Contains(t, validation.Errors, "Student is already enrolled in this section")
}

func TestEnrollmentServiceValidateInactiveStudent(t *testing.T) {
	svc, _ := enrollmentFixture()
	svc.students = &fakeStudents{students: map[string]*models.Student{
		"s1": {ID: "s1", BatchID: "b1", Status: models.StudentStatusSuspended},
	}}

	validation, err := svc.Validate(context.Background(), "s1", "sec1", false)
	require.NoError(t, err)
	assert.Contains(t, validation.Errors, "Student is not active")
}

func TestEnrollmentServiceValidateMissingStudentAndSection(t *testing.T) {
	svc, _ := enrollmentFixture()

	validation, err := svc.Validate(context.Background(), "ghost", "nowhere", false)
	require.NoError(t, err)
	assert.Contains(t, validation.Errors, "Student not found")
	assert.Contains(t, validation.Errors, "Section not found")
}

func TestEnrollmentServiceValidateRegistrationClosed(t *testing.T) {
	svc, _ := enrollmentFixture()
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

	validation, err := svc.Validate(context.Background(), "s1", "sec1", false)
	require.NoError(t, err)
	assert.Contains(t, validation.Errors, "Registration is closed for this term")

	validation, err = svc.Validate(context.Background(), "s1", "sec1", true)
	require.NoError(t, err)
	assert.True(t, validation.Valid)
}

func TestEnrollmentServiceValidateCreditOverload(t *testing.T) {
	svc, repo := enrollmentFixture()
	repo.byTerm["s1/t1"] = []models.EnrollmentDetail{
		{Enrollment: models.Enrollment{ID: "e1", SectionID: "sec-a"}, CourseCode: "MA101", Credits: 12},
		{Enrollment: models.Enrollment{ID: "e2", SectionID: "sec-b"}, CourseCode: "PH101", Credits: 10},
	}

	validation, err := svc.Validate(context.Background(), "s1", "sec1", false)
	require.NoError(t, err)
	assert.Contains(t, validation.Errors, "Credit load 25 exceeds the maximum of 24")
}

func TestEnrollmentServiceValidateMissingPrerequisite(t *testing.T) {
	svc, repo := enrollmentFixture()
	svc.prerequisites = &fakePrereqs{edges: map[string][]models.PrerequisiteDetail{
		"c1": {
			{Prerequisite: models.Prerequisite{PrerequisiteID: "c0", Type: models.PrerequisiteTypePrerequisite}, PrerequisiteCode: "CS100"},
			{Prerequisite: models.Prerequisite{PrerequisiteID: "c2", Type: models.PrerequisiteTypeCorequisite}, PrerequisiteCode: "CS102"},
		},
	}}
	repo.completed = map[string]map[string]bool{"s1": {}}

	validation, err := svc.Validate(context.Background(), "s1", "sec1", false)
	require.NoError(t, err)
	assert.Contains(t, validation.Errors, "Missing prerequisite CS100")
	assert.NotContains(t, validation.Errors, "Missing prerequisite CS102")

	repo.completed["s1"]["c0"] = true
	validation, err = svc.Validate(context.Background(), "s1", "sec1", false)
	require.NoError(t, err)
	assert.True(t, validation.Valid)
}

func TestEnrollmentServiceValidateScheduleConflict(t *testing.T) {
	svc, repo := enrollmentFixture()
	sections := svc.sections.(*fakeSections)
	sections.details["sec1"].Slots = []models.ScheduleSlot{
		{DayOfWeek: 1, StartTime: "10:00", EndTime: "12:00"},
	}
	sections.slots = map[string][]models.ScheduleSlot{
		"sec-a": {{DayOfWeek: 1, StartTime: "11:00", EndTime: "13:00"}},
	}
	repo.byTerm["s1/t1"] = []models.EnrollmentDetail{
		{Enrollment: models.Enrollment{ID: "e1", SectionID: "sec-a"}, CourseCode: "MA101", Credits: 3},
	}

	validation, err := svc.Validate(context.Background(), "s1", "sec1", false)
	require.NoError(t, err)
	assert.Contains(t, validation.Errors, "Schedule conflict with MA101 on Monday")
}

func TestEnrollmentServiceValidateDepartmentGate(t *testing.T) {
	svc, _ := enrollmentFixture()
	deptA := "d-a"
	deptB := "d-b"
	svc.courses = &fakeCourses{courses: map[string]*models.Course{
		"c1": {ID: "c1", Code: "CS101", Credits: 3, DepartmentID: &deptA},
	}}

	validation, err := svc.Validate(context.Background(), "s1", "sec1", false)
	require.NoError(t, err)
	assert.Contains(t, validation.Errors, "Course CS101 requires a department assignment")

	svc.students = &fakeStudents{students: map[string]*models.Student{
		"s1": {ID: "s1", BatchID: "b1", DepartmentID: &deptB, Status: models.StudentStatusActive},
	}}
	validation, err = svc.Validate(context.Background(), "s1", "sec1", false)
	require.NoError(t, err)
	assert.Contains(t, validation.Errors, "Course CS101 belongs to a different department")

	svc.students = &fakeStudents{students: map[string]*models.Student{
		"s1": {ID: "s1", BatchID: "b1", DepartmentID: &deptA, Status: models.StudentStatusActive},
	}}
	validation, err = svc.Validate(context.Background(), "s1", "sec1", false)
	require.NoError(t, err)
	assert.True(t, validation.Valid)
}

func TestEnrollmentServiceEnrollRejectsInvalid(t *testing.T) {
	svc, repo := enrollmentFixture()
	repo.enrolled["sec1"] = 30

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "s1", SectionID: "sec1"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Details, "Section is full")
	assert.Nil(t, repo.created)
}

func TestEnrollmentServiceEnrollCapacityRace(t *testing.T) {
	svc, repo := enrollmentFixture()
	repo.createErr = repository.ErrSectionFull

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "s1", SectionID: "sec1"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Details, "Section is full")
}

func TestEnrollmentServiceDrop(t *testing.T) {
	svc, repo := enrollmentFixture()
	repo.enrollments = map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", SectionID: "sec1", Status: models.EnrollmentStatusEnrolled},
	}

	detail, err := svc.Drop(context.Background(), "e1", false)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusDropped, detail.Status)
	require.NotNil(t, repo.droppedAt["e1"])
}

func TestEnrollmentServiceDropOutsideWindow(t *testing.T) {
	svc, repo := enrollmentFixture()
	repo.enrollments = map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", SectionID: "sec1", Status: models.EnrollmentStatusEnrolled},
	}
	svc.now = func() time.Time { return time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC) }

	_, err := svc.Drop(context.Background(), "e1", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	detail, err := svc.Drop(context.Background(), "e1", true)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusDropped, detail.Status)
}

func TestEnrollmentServiceDropRequiresEnrolled(t *testing.T) {
	svc, repo := enrollmentFixture()
	repo.enrollments = map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", SectionID: "sec1", Status: models.EnrollmentStatusCompleted},
	}

	_, err := svc.Drop(context.Background(), "e1", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceGetStudentSchedule(t *testing.T) {
	svc, repo := enrollmentFixture()
	sections := svc.sections.(*fakeSections)
	sections.details["sec1"].FacultyName = "Dr. Chen"
	sections.details["sec1"].Slots = []models.ScheduleSlot{
		{DayOfWeek: 2, StartTime: "08:00", EndTime: "10:00", Room: "A101"},
	}
	repo.byTerm["s1/t1"] = []models.EnrollmentDetail{
		{Enrollment: models.Enrollment{ID: "e1", SectionID: "sec1"}, CourseCode: "CS101", CourseTitle: "Intro to Computing", Credits: 3},
	}

	entries, err := svc.GetStudentSchedule(context.Background(), "s1", "t1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "CS101", entries[0].CourseCode)
	assert.Equal(t, "Dr. Chen", entries[0].FacultyName)
	require.Len(t, entries[0].Slots, 1)
	assert.Equal(t, "A101", entries[0].Slots[0].Room)
}
