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

type fakeAttendanceRepo struct {
	upserted []models.Attendance
	records  []models.AttendanceRecord
	summary  *models.AttendanceSummary
}

func (f *fakeAttendanceRepo) Upsert(ctx context.Context, attendance *models.Attendance) error {
	f.upserted = append(f.upserted, *attendance)
	return nil
}

func (f *fakeAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	return f.records, nil
}

func (f *fakeAttendanceRepo) Summarize(ctx context.Context, enrollmentID string) (*models.AttendanceSummary, error) {
	return f.summary, nil
}

type fakeAttendanceEnrollments struct {
	enrollments map[string]models.Enrollment
}

func (f *fakeAttendanceEnrollments) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := f.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func attendanceFixture(repo *fakeAttendanceRepo) *AttendanceService {
	enrollments := &fakeAttendanceEnrollments{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", SectionID: "sec1", Status: models.EnrollmentStatusEnrolled},
		"e2": {ID: "e2", StudentID: "s2", SectionID: "sec1", Status: models.EnrollmentStatusDropped},
	}}
	return NewAttendanceService(repo, enrollments, validator.New(), zap.NewNop())
}

func TestAttendanceServiceRecord(t *testing.T) {
	repo := &fakeAttendanceRepo{}
	svc := attendanceFixture(repo)

	attendance, err := svc.Record(context.Background(), AttendanceRequest{
		EnrollmentID: "e1", SessionDate: "2026-02-10", Status: "PRESENT",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusPresent, attendance.Status)
	assert.Equal(t, 10, attendance.SessionDate.Day())
	require.Len(t, repo.upserted, 1)
}

func TestAttendanceServiceRecordRejectsBadInput(t *testing.T) {
	svc := attendanceFixture(&fakeAttendanceRepo{})

	_, err := svc.Record(context.Background(), AttendanceRequest{
		EnrollmentID: "e1", SessionDate: "2026-02-10", Status: "LATE",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRESENT, ABSENT or EXCUSED")

	_, err = svc.Record(context.Background(), AttendanceRequest{
		EnrollmentID: "e1", SessionDate: "10/02/2026", Status: "PRESENT",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YYYY-MM-DD")
}

func TestAttendanceServiceRecordRequiresEnrolled(t *testing.T) {
	svc := attendanceFixture(&fakeAttendanceRepo{})

	_, err := svc.Record(context.Background(), AttendanceRequest{
		EnrollmentID: "e2", SessionDate: "2026-02-10", Status: "ABSENT",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	_, err = svc.Record(context.Background(), AttendanceRequest{
		EnrollmentID: "ghost", SessionDate: "2026-02-10", Status: "ABSENT",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceSummaryPresenceRate(t *testing.T) {
	repo := &fakeAttendanceRepo{summary: &models.AttendanceSummary{
		EnrollmentID: "e1", Present: 10, Absent: 2, Excused: 2, Total: 14,
	}}
	svc := attendanceFixture(repo)

	summary, err := svc.Summary(context.Background(), "e1")
	require.NoError(t, err)
	// Excused absences count toward presence: (10 + 2) / 14.
	assert.InDelta(t, 85.714, summary.PresenceRate, 0.001)
}

func TestAttendanceServiceSummaryEmptyHistory(t *testing.T) {
	repo := &fakeAttendanceRepo{summary: &models.AttendanceSummary{EnrollmentID: "e1"}}
	svc := attendanceFixture(repo)

	summary, err := svc.Summary(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, summary.PresenceRate)
}
