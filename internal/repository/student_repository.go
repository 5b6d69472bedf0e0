package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-sis-api/internal/models"
)

// StudentRepository handles persistence of student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository creates a new student repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentDetailColumns = `s.id, s.student_no, s.full_name, s.email, s.batch_id, s.department_id, s.status, s.created_at, s.updated_at,
        b.name AS batch_name, d.name AS department_name`

const studentDetailJoins = ` FROM students s
        JOIN batches b ON b.id = s.batch_id
        LEFT JOIN departments d ON d.id = s.department_id`

// List returns students matching the filter with pagination.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	baseQuery := studentDetailJoins + ` WHERE 1=1`
	args := []interface{}{}
	argID := 1

	if filter.Search != "" {
		baseQuery += fmt.Sprintf(" AND (s.full_name ILIKE $%d OR s.student_no ILIKE $%d OR s.email ILIKE $%d)", argID, argID, argID)
		args = append(args, "%"+filter.Search+"%")
		argID++
	}
	if filter.BatchID != "" {
		baseQuery += fmt.Sprintf(" AND s.batch_id = $%d", argID)
		args = append(args, filter.BatchID)
		argID++
	}
	if filter.DepartmentID != "" {
		baseQuery += fmt.Sprintf(" AND s.department_id = $%d", argID)
		args = append(args, filter.DepartmentID)
		argID++
	}
	if filter.Status != "" {
		baseQuery += fmt.Sprintf(" AND s.status = $%d", argID)
		args = append(args, filter.Status)
		argID++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}

	sortBy := "s.student_no"
	switch filter.SortBy {
	case "name":
		sortBy = "s.full_name"
	case "student_no":
		sortBy = "s.student_no"
	case "created_at":
		sortBy = "s.created_at"
	}
	sortOrder := "ASC"
	if filter.SortOrder == "desc" {
		sortOrder = "DESC"
	}

	query := `SELECT ` + studentDetailColumns + baseQuery + fmt.Sprintf(" ORDER BY %s %s", sortBy, sortOrder)
	if filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argID, argID+1)
		args = append(args, filter.PageSize, offset)
	}

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}
	return students, total, nil
}

// FindByID returns a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, student_no, full_name, email, batch_id, department_id, status, created_at, updated_at
        FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindDetailByID returns a student with batch and department context.
func (r *StudentRepository) FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	query := `SELECT ` + studentDetailColumns + studentDetailJoins + ` WHERE s.id = $1`
	var student models.StudentDetail
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByStudentNo returns a student by the unique student number.
func (r *StudentRepository) FindByStudentNo(ctx context.Context, studentNo string) (*models.Student, error) {
	const query = `SELECT id, student_no, full_name, email, batch_id, department_id, status, created_at, updated_at
        FROM students WHERE student_no = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, studentNo); err != nil {
		return nil, err
	}
	return &student, nil
}

// Create persists a new student.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, student_no, full_name, email, batch_id, department_id, status, created_at, updated_at)
        VALUES (:id, :student_no, :full_name, :email, :batch_id, :department_id, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update updates mutable fields of a student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET full_name = :full_name, email = :email, batch_id = :batch_id,
        department_id = :department_id, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Delete removes a student.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return nil
}
