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

type fakeCourseRepo struct {
	courses   map[string]*models.Course
	byCode    map[string]*models.Course
	prereqs   map[string][]models.PrerequisiteDetail
	graph     map[string][]string
	created   *models.Course
	addedEdge *models.Prerequisite
}

func (f *fakeCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	return nil, 0, nil
}

func (f *fakeCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := f.courses[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCourseRepo) FindByCode(ctx context.Context, code string) (*models.Course, error) {
	if c, ok := f.byCode[code]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCourseRepo) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = "new-course"
	}
	f.created = course
	return nil
}

func (f *fakeCourseRepo) Update(ctx context.Context, course *models.Course) error {
	f.courses[course.ID] = course
	return nil
}

func (f *fakeCourseRepo) Delete(ctx context.Context, id string) error {
	delete(f.courses, id)
	return nil
}

func (f *fakeCourseRepo) ListPrerequisites(ctx context.Context, courseID string) ([]models.PrerequisiteDetail, error) {
	return f.prereqs[courseID], nil
}

func (f *fakeCourseRepo) AdjacencyList(ctx context.Context) (map[string][]string, error) {
	return f.graph, nil
}

func (f *fakeCourseRepo) AddPrerequisite(ctx context.Context, prereq *models.Prerequisite) error {
	f.addedEdge = prereq
	return nil
}

func (f *fakeCourseRepo) RemovePrerequisite(ctx context.Context, id string) error {
	return nil
}

func courseFixture() (*CourseService, *fakeCourseRepo) {
	repo := &fakeCourseRepo{
		courses: map[string]*models.Course{
			"c1": {ID: "c1", Code: "CS101", Title: "Intro to Computing", Credits: 3, Category: models.CourseCategoryCore},
			"c2": {ID: "c2", Code: "CS201", Title: "Data Structures", Credits: 3, Category: models.CourseCategoryCore},
			"c3": {ID: "c3", Code: "CS301", Title: "Algorithms", Credits: 3, Category: models.CourseCategoryCore},
		},
		byCode:  map[string]*models.Course{},
		prereqs: map[string][]models.PrerequisiteDetail{},
		graph:   map[string][]string{},
	}
	return NewCourseService(repo, validator.New(), zap.NewNop()), repo
}

func TestCourseServiceCreate(t *testing.T) {
	svc, repo := courseFixture()

	course, err := svc.Create(context.Background(), CourseRequest{
		Code: "MA101", Title: "Calculus I", Credits: 4, Category: models.CourseCategoryGeneral,
	})
	require.NoError(t, err)
	assert.Equal(t, "MA101", course.Code)
	assert.NotNil(t, repo.created)
}

func TestCourseServiceCreateDuplicateCode(t *testing.T) {
	svc, repo := courseFixture()
	repo.byCode["CS101"] = repo.courses["c1"]

	_, err := svc.Create(context.Background(), CourseRequest{
		Code: "CS101", Title: "Intro again", Credits: 3, Category: models.CourseCategoryCore,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceCreateRejectsBadCategory(t *testing.T) {
	svc, _ := courseFixture()

	_, err := svc.Create(context.Background(), CourseRequest{
		Code: "XX101", Title: "Mystery", Credits: 3, Category: "REMEDIAL",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceAddPrerequisite(t *testing.T) {
	svc, repo := courseFixture()

	prereq, err := svc.AddPrerequisite(context.Background(), "c2", PrerequisiteRequest{
		PrerequisiteID: "c1", Type: models.PrerequisiteTypePrerequisite,
	})
	require.NoError(t, err)
	assert.Equal(t, "c1", prereq.PrerequisiteID)
	assert.NotNil(t, repo.addedEdge)
}

func TestCourseServiceAddPrerequisiteRejectsSelf(t *testing.T) {
	svc, _ := courseFixture()

	_, err := svc.AddPrerequisite(context.Background(), "c1", PrerequisiteRequest{
		PrerequisiteID: "c1", Type: models.PrerequisiteTypePrerequisite,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCycleDetected.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceAddPrerequisiteRejectsCycle(t *testing.T) {
	svc, repo := courseFixture()
	// c3 -> c2 -> c1 already exist; c1 -> c3 would close the loop.
	repo.graph = map[string][]string{
		"c3": {"c2"},
		"c2": {"c1"},
	}

	_, err := svc.AddPrerequisite(context.Background(), "c1", PrerequisiteRequest{
		PrerequisiteID: "c3", Type: models.PrerequisiteTypePrerequisite,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCycleDetected.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceAddPrerequisiteAllowsDiamond(t *testing.T) {
	svc, repo := courseFixture()
	// c3 -> c1 and c2 -> c1 share a prerequisite without forming a cycle.
	repo.graph = map[string][]string{
		"c3": {"c1"},
		"c2": {"c1"},
	}

	_, err := svc.AddPrerequisite(context.Background(), "c3", PrerequisiteRequest{
		PrerequisiteID: "c2", Type: models.PrerequisiteTypePrerequisite,
	})
	require.NoError(t, err)
}

func TestCourseServiceGetIncludesPrerequisites(t *testing.T) {
	svc, repo := courseFixture()
	repo.prereqs["c2"] = []models.PrerequisiteDetail{
		{Prerequisite: models.Prerequisite{CourseID: "c2", PrerequisiteID: "c1"}, PrerequisiteCode: "CS101"},
	}

	detail, err := svc.Get(context.Background(), "c2")
	require.NoError(t, err)
	require.Len(t, detail.Prerequisites, 1)
	assert.Equal(t, "CS101", detail.Prerequisites[0].PrerequisiteCode)
}
