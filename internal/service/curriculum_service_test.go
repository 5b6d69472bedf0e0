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
	appErrors "github.com/noah-isme/uni-sis-api/pkg/errors"
)

type fakeCurriculumRepo struct {
	curricula  map[string]*models.Curriculum
	placements map[string][]models.CurriculumCourseDetail
	added      *models.CurriculumCourse
	removed    [][2]string
}

func (f *fakeCurriculumRepo) List(ctx context.Context, filter models.CurriculumFilter) ([]models.Curriculum, int, error) {
	return nil, 0, nil
}

func (f *fakeCurriculumRepo) FindByID(ctx context.Context, id string) (*models.Curriculum, error) {
	if c, ok := f.curricula[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCurriculumRepo) Create(ctx context.Context, curriculum *models.Curriculum) error {
	if curriculum.ID == "" {
		curriculum.ID = "new-curriculum"
	}
	f.curricula[curriculum.ID] = curriculum
	return nil
}

func (f *fakeCurriculumRepo) Update(ctx context.Context, curriculum *models.Curriculum) error {
	f.curricula[curriculum.ID] = curriculum
	return nil
}

func (f *fakeCurriculumRepo) Delete(ctx context.Context, id string) error {
	delete(f.curricula, id)
	return nil
}

func (f *fakeCurriculumRepo) ListCourses(ctx context.Context, curriculumID string) ([]models.CurriculumCourseDetail, error) {
	return f.placements[curriculumID], nil
}

func (f *fakeCurriculumRepo) AddCourse(ctx context.Context, placement *models.CurriculumCourse) error {
	f.added = placement
	return nil
}

func (f *fakeCurriculumRepo) RemoveCourse(ctx context.Context, curriculumID, courseID string) error {
	f.removed = append(f.removed, [2]string{curriculumID, courseID})
	return nil
}

func curriculumFixture() (*CurriculumService, *fakeCurriculumRepo, *fakePrereqs) {
	repo := &fakeCurriculumRepo{
		curricula: map[string]*models.Curriculum{
			"cur1": {ID: "cur1", DepartmentID: "d1", Name: "CS 2026", TotalCredits: 144},
		},
		placements: map[string][]models.CurriculumCourseDetail{},
	}
	departments := &fakeDepartments{departments: map[string]*models.Department{"d1": {ID: "d1"}}}
	courses := &fakeCourses{courses: map[string]*models.Course{
		"c1": {ID: "c1", Code: "CS101", Credits: 3},
		"c2": {ID: "c2", Code: "CS201", Credits: 3},
	}}
	prereqs := &fakePrereqs{edges: map[string][]models.PrerequisiteDetail{}}
	svc := NewCurriculumService(repo, departments, courses, prereqs, validator.New(), zap.NewNop())
	return svc, repo, prereqs
}

func TestCurriculumServicePlaceCourse(t *testing.T) {
	svc, repo, _ := curriculumFixture()

	placement, err := svc.PlaceCourse(context.Background(), "cur1", PlacementRequest{
		CourseID: "c1", Year: 1, Semester: 1, Required: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, placement.Ordinal())
	assert.NotNil(t, repo.added)
}

func TestCurriculumServicePlaceAfterPrerequisite(t *testing.T) {
	svc, repo, prereqs := curriculumFixture()
	prereqs.edges["c2"] = []models.PrerequisiteDetail{
		{Prerequisite: models.Prerequisite{CourseID: "c2", PrerequisiteID: "c1", Type: models.PrerequisiteTypePrerequisite}, PrerequisiteCode: "CS101"},
	}
	repo.placements["cur1"] = []models.CurriculumCourseDetail{
		{CurriculumCourse: models.CurriculumCourse{CourseID: "c1", Year: 1, Semester: 2}, CourseCode: "CS101"},
	}

	// Same ordinal as the prerequisite is rejected.
	_, err := svc.PlaceCourse(context.Background(), "cur1", PlacementRequest{CourseID: "c2", Year: 1, Semester: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prerequisite CS101 must be placed before")

	_, err = svc.PlaceCourse(context.Background(), "cur1", PlacementRequest{CourseID: "c2", Year: 2, Semester: 1})
	require.NoError(t, err)
}

func TestCurriculumServicePlaceBeforeDependent(t *testing.T) {
	svc, repo, prereqs := curriculumFixture()
	// c2 depends on c1 and is already placed; c1 must land strictly earlier.
	prereqs.edges["c2"] = []models.PrerequisiteDetail{
		{Prerequisite: models.Prerequisite{CourseID: "c2", PrerequisiteID: "c1", Type: models.PrerequisiteTypePrerequisite}, PrerequisiteCode: "CS101"},
	}
	repo.placements["cur1"] = []models.CurriculumCourseDetail{
		{CurriculumCourse: models.CurriculumCourse{CourseID: "c2", Year: 1, Semester: 1}, CourseCode: "CS201"},
	}

	_, err := svc.PlaceCourse(context.Background(), "cur1", PlacementRequest{CourseID: "c1", Year: 1, Semester: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "before its dependent CS201")
}

func TestCurriculumServiceCheckCredits(t *testing.T) {
	svc, repo, _ := curriculumFixture()
	repo.curricula["cur1"].TotalCredits = 6
	repo.placements["cur1"] = []models.CurriculumCourseDetail{
		{CurriculumCourse: models.CurriculumCourse{CourseID: "c1"}, Credits: 3},
		{CurriculumCourse: models.CurriculumCourse{CourseID: "c2"}, Credits: 3},
	}

	issue, err := svc.CheckCredits(context.Background(), "cur1")
	require.NoError(t, err)
	assert.Nil(t, issue)

	repo.curricula["cur1"].TotalCredits = 10
	issue, err = svc.CheckCredits(context.Background(), "cur1")
	require.NoError(t, err)
	require.NotNil(t, issue)
	assert.Equal(t, 10, issue.DeclaredCredits)
	assert.Equal(t, 6, issue.PlacedCredits)
}

func TestCurriculumServiceCreateRequiresDepartment(t *testing.T) {
	svc, _, _ := curriculumFixture()

	_, err := svc.Create(context.Background(), CurriculumRequest{
		DepartmentID: "ghost", Name: "Nowhere 2026", TotalCredits: 120,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
