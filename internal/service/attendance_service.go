package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-sis-api/internal/models"
	appErrors "github.com/noah-isme/uni-sis-api/pkg/errors"
)

type attendanceRepository interface {
	Upsert(ctx context.Context, attendance *models.Attendance) error
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error)
	Summarize(ctx context.Context, enrollmentID string) (*models.AttendanceSummary, error)
}

type attendanceEnrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

// AttendanceRequest marks one session for an enrollment.
type AttendanceRequest struct {
	EnrollmentID string  `json:"enrollment_id" validate:"required"`
	SessionDate  string  `json:"session_date" validate:"required"`
	Status       string  `json:"status" validate:"required"`
	Notes        *string `json:"notes"`
}

// AttendanceService records and summarizes per-session presence.
type AttendanceService struct {
	repo        attendanceRepository
	enrollments attendanceEnrollmentReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(repo attendanceRepository, enrollments attendanceEnrollmentReader, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, enrollments: enrollments, validator: validate, logger: logger}
}

// Record marks attendance for a session. Re-marking the same date replaces
// the earlier record.
func (s *AttendanceService) Record(ctx context.Context, req AttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	status := models.AttendanceStatus(req.Status)
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be PRESENT, ABSENT or EXCUSED")
	}
	sessionDate, err := time.Parse("2006-01-02", req.SessionDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session date must be formatted YYYY-MM-DD")
	}

	enrollment, err := s.enrollments.FindByID(ctx, req.EnrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusEnrolled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "attendance can only be recorded for enrolled students")
	}

	attendance := &models.Attendance{
		EnrollmentID: req.EnrollmentID,
		SessionDate:  sessionDate,
		Status:       status,
		Notes:        req.Notes,
	}
	if err := s.repo.Upsert(ctx, attendance); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}
	return attendance, nil
}

// List returns attendance records for a section or enrollment.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, nil
}

// Summary aggregates one enrollment's attendance history and derives the
// presence rate. Excused absences count toward presence.
func (s *AttendanceService) Summary(ctx context.Context, enrollmentID string) (*models.AttendanceSummary, error) {
	if _, err := s.enrollments.FindByID(ctx, enrollmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	summary, err := s.repo.Summarize(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarize attendance")
	}
	if summary.Total > 0 {
		summary.PresenceRate = float64(summary.Present+summary.Excused) / float64(summary.Total) * 100
	}
	return summary, nil
}
