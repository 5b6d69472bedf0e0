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

type fakeSectionRepo struct {
	sections  map[string]*models.Section
	conflicts []models.SlotConflict
	created   *models.Section
	addedSlot *models.ScheduleSlot
	removed   []string
}

func (f *fakeSectionRepo) List(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, int, error) {
	return nil, 0, nil
}

func (f *fakeSectionRepo) FindByID(ctx context.Context, id string) (*models.Section, error) {
	if s, ok := f.sections[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSectionRepo) FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error) {
	if s, ok := f.sections[id]; ok {
		return &models.SectionDetail{Section: *s}, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSectionRepo) Create(ctx context.Context, section *models.Section) error {
	if section.ID == "" {
		section.ID = "new-section"
	}
	f.created = section
	return nil
}

func (f *fakeSectionRepo) Update(ctx context.Context, section *models.Section) error {
	f.sections[section.ID] = section
	return nil
}

func (f *fakeSectionRepo) Delete(ctx context.Context, id string) error {
	delete(f.sections, id)
	return nil
}

func (f *fakeSectionRepo) SlotsBySection(ctx context.Context, sectionID string) ([]models.ScheduleSlot, error) {
	return nil, nil
}

func (f *fakeSectionRepo) AddSlot(ctx context.Context, slot *models.ScheduleSlot) error {
	if slot.ID == "" {
		slot.ID = "new-slot"
	}
	f.addedSlot = slot
	return nil
}

func (f *fakeSectionRepo) RemoveSlot(ctx context.Context, slotID string) error {
	f.removed = append(f.removed, slotID)
	return nil
}

func (f *fakeSectionRepo) ListSlotConflicts(ctx context.Context, termID, excludeSectionID, facultyID string, slot models.ScheduleSlot) ([]models.SlotConflict, error) {
	return f.conflicts, nil
}

type fakeFaculty struct {
	members map[string]*models.Faculty
}

func (f *fakeFaculty) FindByID(ctx context.Context, id string) (*models.Faculty, error) {
	if m, ok := f.members[id]; ok {
		return m, nil
	}
	return nil, sql.ErrNoRows
}

func sectionFixture() (*SectionService, *fakeSectionRepo) {
	repo := &fakeSectionRepo{sections: map[string]*models.Section{
		"sec1": {ID: "sec1", CourseID: "c1", TermID: "t1", FacultyID: "f1", Capacity: 30},
	}}
	courses := &fakeCourses{courses: map[string]*models.Course{"c1": {ID: "c1", Code: "CS101"}}}
	terms := &fakeTerms{terms: map[string]*models.AcademicTerm{"t1": {ID: "t1"}}}
	faculty := &fakeFaculty{members: map[string]*models.Faculty{
		"f1": {ID: "f1", FullName: "Dr. Chen", Active: true},
		"f2": {ID: "f2", FullName: "Dr. Gray", Active: false},
	}}
	return NewSectionService(repo, courses, terms, faculty, validator.New(), zap.NewNop()), repo
}

func TestSectionServiceCreate(t *testing.T) {
	svc, repo := sectionFixture()

	section, err := svc.Create(context.Background(), SectionRequest{
		CourseID: "c1", TermID: "t1", FacultyID: "f1", Capacity: 25,
	})
	require.NoError(t, err)
	assert.Equal(t, 25, section.Capacity)
	assert.NotNil(t, repo.created)
}

func TestSectionServiceCreateChecksReferences(t *testing.T) {
	svc, _ := sectionFixture()

	_, err := svc.Create(context.Background(), SectionRequest{
		CourseID: "ghost", TermID: "t1", FacultyID: "f1", Capacity: 25,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), SectionRequest{
		CourseID: "c1", TermID: "t1", FacultyID: "f2", Capacity: 25,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestSectionServiceAddSlot(t *testing.T) {
	svc, repo := sectionFixture()

	slot, err := svc.AddSlot(context.Background(), "sec1", SlotRequest{
		DayOfWeek: 1, StartTime: "10:00", EndTime: "12:00", Room: "A101",
	})
	require.NoError(t, err)
	assert.Equal(t, "sec1", slot.SectionID)
	assert.NotNil(t, repo.addedSlot)
}

func TestSectionServiceAddSlotRejectsInvertedTimes(t *testing.T) {
	svc, _ := sectionFixture()

	_, err := svc.AddSlot(context.Background(), "sec1", SlotRequest{
		DayOfWeek: 1, StartTime: "12:00", EndTime: "10:00", Room: "A101",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start must precede end")
}

func TestSectionServiceAddSlotRoomConflict(t *testing.T) {
	svc, repo := sectionFixture()
	repo.conflicts = []models.SlotConflict{{
		SectionID: "sec2", CourseCode: "MA101", DayOfWeek: 1,
		StartTime: "09:00", EndTime: "11:00", Room: "A101", Dimension: "room",
	}}

	_, err := svc.AddSlot(context.Background(), "sec1", SlotRequest{
		DayOfWeek: 1, StartTime: "10:00", EndTime: "12:00", Room: "A101",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "room conflict with MA101 (Monday 09:00-11:00)")
}

func TestSectionServiceRemoveSlot(t *testing.T) {
	svc, repo := sectionFixture()

	require.NoError(t, svc.RemoveSlot(context.Background(), "slot1"))
	assert.Contains(t, repo.removed, "slot1")
}
