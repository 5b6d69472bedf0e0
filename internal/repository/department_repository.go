package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-sis-api/internal/models"
)

// DepartmentRepository handles persistence of departments.
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository creates a new department repository.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

const departmentDetailColumns = `d.id, d.college_id, d.code, d.name, d.seat_capacity, d.min_gpa, d.created_at, d.updated_at,
        c.code AS college_code, c.name AS college_name`

// List returns departments matching the filter with pagination.
func (r *DepartmentRepository) List(ctx context.Context, filter models.DepartmentFilter) ([]models.DepartmentDetail, int, error) {
	baseQuery := ` FROM departments d JOIN colleges c ON c.id = d.college_id WHERE 1=1`
	args := []interface{}{}
	argID := 1

	if filter.CollegeID != "" {
		baseQuery += fmt.Sprintf(" AND d.college_id = $%d", argID)
		args = append(args, filter.CollegeID)
		argID++
	}
	if filter.Search != "" {
		baseQuery += fmt.Sprintf(" AND (d.name ILIKE $%d OR d.code ILIKE $%d)", argID, argID)
		args = append(args, "%"+filter.Search+"%")
		argID++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count departments: %w", err)
	}

	query := `SELECT ` + departmentDetailColumns + baseQuery + " ORDER BY d.code"
	if filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argID, argID+1)
		args = append(args, filter.PageSize, offset)
	}

	var departments []models.DepartmentDetail
	if err := r.db.SelectContext(ctx, &departments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list departments: %w", err)
	}
	return departments, total, nil
}

// FindByID returns a department by its ID.
func (r *DepartmentRepository) FindByID(ctx context.Context, id string) (*models.Department, error) {
	const query = `SELECT id, college_id, code, name, seat_capacity, min_gpa, created_at, updated_at
        FROM departments WHERE id = $1`
	var department models.Department
	if err := r.db.GetContext(ctx, &department, query, id); err != nil {
		return nil, err
	}
	return &department, nil
}

// FindDetailByID returns a department with its college info.
func (r *DepartmentRepository) FindDetailByID(ctx context.Context, id string) (*models.DepartmentDetail, error) {
	query := `SELECT ` + departmentDetailColumns + ` FROM departments d JOIN colleges c ON c.id = d.college_id WHERE d.id = $1`
	var department models.DepartmentDetail
	if err := r.db.GetContext(ctx, &department, query, id); err != nil {
		return nil, err
	}
	return &department, nil
}

// Create persists a new department.
func (r *DepartmentRepository) Create(ctx context.Context, department *models.Department) error {
	if department.ID == "" {
		department.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	department.CreatedAt = now
	department.UpdatedAt = now
	const query = `INSERT INTO departments (id, college_id, code, name, seat_capacity, min_gpa, created_at, updated_at)
        VALUES (:id, :college_id, :code, :name, :seat_capacity, :min_gpa, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, department); err != nil {
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

// Update updates mutable fields of a department.
func (r *DepartmentRepository) Update(ctx context.Context, department *models.Department) error {
	department.UpdatedAt = time.Now().UTC()
	const query = `UPDATE departments SET college_id = :college_id, code = :code, name = :name,
        seat_capacity = :seat_capacity, min_gpa = :min_gpa, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, department); err != nil {
		return fmt.Errorf("update department: %w", err)
	}
	return nil
}

// Delete removes a department.
func (r *DepartmentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM departments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete department: %w", err)
	}
	return nil
}

// CountApprovedApplications counts APPROVED applications for a department,
// used for seat accounting.
func (r *DepartmentRepository) CountApprovedApplications(ctx context.Context, departmentID string) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM department_applications WHERE department_id = $1 AND status = 'APPROVED'`
	if err := r.db.GetContext(ctx, &count, query, departmentID); err != nil {
		return 0, fmt.Errorf("count approved applications: %w", err)
	}
	return count, nil
}
