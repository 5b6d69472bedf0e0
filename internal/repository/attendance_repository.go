package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-sis-api/internal/models"
)

// AttendanceRepository handles persistence of per-session presence records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository creates a new attendance repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Upsert records attendance for an (enrollment, session date) pair. Marking
// the same session twice replaces the earlier record.
func (r *AttendanceRepository) Upsert(ctx context.Context, attendance *models.Attendance) error {
	if attendance.ID == "" {
		attendance.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	attendance.CreatedAt = now
	attendance.UpdatedAt = now
	const query = `INSERT INTO attendances (id, enrollment_id, session_date, status, notes, created_at, updated_at)
        VALUES (:id, :enrollment_id, :session_date, :status, :notes, :created_at, :updated_at)
        ON CONFLICT (enrollment_id, session_date)
        DO UPDATE SET status = EXCLUDED.status, notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, attendance); err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

// List returns attendance records matching the filter.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	query := `SELECT a.id, a.enrollment_id, a.session_date, a.status, a.notes, a.created_at, a.updated_at,
            e.student_id, s.full_name AS student_name, e.section_id
        FROM attendances a
        JOIN enrollments e ON e.id = a.enrollment_id
        JOIN students s ON s.id = e.student_id
        WHERE 1=1`
	args := []interface{}{}
	argID := 1

	if filter.EnrollmentID != "" {
		query += fmt.Sprintf(" AND a.enrollment_id = $%d", argID)
		args = append(args, filter.EnrollmentID)
		argID++
	}
	if filter.SectionID != "" {
		query += fmt.Sprintf(" AND e.section_id = $%d", argID)
		args = append(args, filter.SectionID)
		argID++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND a.status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}
	if filter.DateFrom != nil {
		query += fmt.Sprintf(" AND a.session_date >= $%d", argID)
		args = append(args, *filter.DateFrom)
		argID++
	}
	if filter.DateTo != nil {
		query += fmt.Sprintf(" AND a.session_date <= $%d", argID)
		args = append(args, *filter.DateTo)
		argID++
	}
	query += " ORDER BY a.session_date DESC, s.full_name"

	if filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argID, argID+1)
		args = append(args, filter.PageSize, offset)
	}

	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

// Summarize aggregates an enrollment's attendance history by status.
func (r *AttendanceRepository) Summarize(ctx context.Context, enrollmentID string) (*models.AttendanceSummary, error) {
	const query = `SELECT
            COUNT(*) FILTER (WHERE status = 'PRESENT') AS present,
            COUNT(*) FILTER (WHERE status = 'ABSENT') AS absent,
            COUNT(*) FILTER (WHERE status = 'EXCUSED') AS excused,
            COUNT(*) AS total
        FROM attendances WHERE enrollment_id = $1`
	var summary models.AttendanceSummary
	if err := r.db.GetContext(ctx, &summary, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("summarize attendance: %w", err)
	}
	summary.EnrollmentID = enrollmentID
	return &summary, nil
}
