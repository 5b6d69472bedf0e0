package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-sis-api/internal/models"
)

// ErrDepartmentFull is returned when an approval would exceed the
// department's seat capacity.
var ErrDepartmentFull = fmt.Errorf("department has no remaining seats")

// ApplicationRepository handles persistence of department applications.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository creates a new application repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

const applicationDetailColumns = `a.id, a.student_id, a.department_id, a.gpa_snapshot, a.status,
        a.rejection_reason, a.decided_at, a.created_at, a.updated_at,
        s.full_name AS student_name, d.code AS department_code, d.name AS department_name`

const applicationDetailJoins = ` FROM department_applications a
        JOIN students s ON s.id = a.student_id
        JOIN departments d ON d.id = a.department_id`

// List returns applications matching the filter with pagination.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error) {
	baseQuery := applicationDetailJoins + ` WHERE 1=1`
	args := []interface{}{}
	argID := 1

	if filter.StudentID != "" {
		baseQuery += fmt.Sprintf(" AND a.student_id = $%d", argID)
		args = append(args, filter.StudentID)
		argID++
	}
	if filter.DepartmentID != "" {
		baseQuery += fmt.Sprintf(" AND a.department_id = $%d", argID)
		args = append(args, filter.DepartmentID)
		argID++
	}
	if filter.Status != "" {
		baseQuery += fmt.Sprintf(" AND a.status = $%d", argID)
		args = append(args, filter.Status)
		argID++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}

	query := `SELECT ` + applicationDetailColumns + baseQuery + " ORDER BY a.created_at DESC"
	if filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argID, argID+1)
		args = append(args, filter.PageSize, offset)
	}

	var applications []models.ApplicationDetail
	if err := r.db.SelectContext(ctx, &applications, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}
	return applications, total, nil
}

// FindByID returns an application by its ID.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.DepartmentApplication, error) {
	const query = `SELECT id, student_id, department_id, gpa_snapshot, status, rejection_reason, decided_at, created_at, updated_at
        FROM department_applications WHERE id = $1`
	var application models.DepartmentApplication
	if err := r.db.GetContext(ctx, &application, query, id); err != nil {
		return nil, err
	}
	return &application, nil
}

// FindDetailByID returns an application with student and department info.
func (r *ApplicationRepository) FindDetailByID(ctx context.Context, id string) (*models.ApplicationDetail, error) {
	query := `SELECT ` + applicationDetailColumns + applicationDetailJoins + ` WHERE a.id = $1`
	var application models.ApplicationDetail
	if err := r.db.GetContext(ctx, &application, query, id); err != nil {
		return nil, err
	}
	return &application, nil
}

// HasOpenOrApproved reports whether the student already has a PENDING or
// APPROVED application.
func (r *ApplicationRepository) HasOpenOrApproved(ctx context.Context, studentID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM department_applications
        WHERE student_id = $1 AND status IN ('PENDING', 'APPROVED'))`
	if err := r.db.GetContext(ctx, &exists, query, studentID); err != nil {
		return false, fmt.Errorf("check open applications: %w", err)
	}
	return exists, nil
}

// Create persists a new application in PENDING state.
func (r *ApplicationRepository) Create(ctx context.Context, application *models.DepartmentApplication) error {
	if application.ID == "" {
		application.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	application.CreatedAt = now
	application.UpdatedAt = now
	const query = `INSERT INTO department_applications (id, student_id, department_id, gpa_snapshot, status, rejection_reason, decided_at, created_at, updated_at)
        VALUES (:id, :student_id, :department_id, :gpa_snapshot, :status, :rejection_reason, :decided_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, application); err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// UpdateStatus moves an application to a decided state.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus, rejectionReason *string, decidedAt *time.Time) error {
	const query = `UPDATE department_applications
        SET status = $1, rejection_reason = $2, decided_at = $3, updated_at = $4 WHERE id = $5`
	if _, err := r.db.ExecContext(ctx, query, status, rejectionReason, decidedAt, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	return nil
}

// ApproveWithSeatLimit approves an application and assigns the student to
// the department, all inside one transaction that locks the department row
// so concurrent approvals cannot oversubscribe its seats.
func (r *ApplicationRepository) ApproveWithSeatLimit(ctx context.Context, application *models.DepartmentApplication) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin approval: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var capacity int
	if err := tx.GetContext(ctx, &capacity,
		`SELECT seat_capacity FROM departments WHERE id = $1 FOR UPDATE`,
		application.DepartmentID); err != nil {
		return fmt.Errorf("lock department: %w", err)
	}

	var approved int
	if err := tx.GetContext(ctx, &approved,
		`SELECT COUNT(*) FROM department_applications WHERE department_id = $1 AND status = 'APPROVED'`,
		application.DepartmentID); err != nil {
		return fmt.Errorf("count approved: %w", err)
	}
	if capacity > 0 && approved >= capacity {
		return ErrDepartmentFull
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE department_applications SET status = 'APPROVED', decided_at = $1, updated_at = $1 WHERE id = $2`,
		now, application.ID); err != nil {
		return fmt.Errorf("approve application: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE students SET department_id = $1, updated_at = $2 WHERE id = $3`,
		application.DepartmentID, now, application.StudentID); err != nil {
		return fmt.Errorf("assign student department: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit approval: %w", err)
	}
	application.Status = models.ApplicationStatusApproved
	application.DecidedAt = &now
	return nil
}
