package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-sis-api/internal/models"
)

// ErrSectionFull is returned by CreateEnrolled when the capacity re-check
// inside the insert transaction fails.
var ErrSectionFull = fmt.Errorf("section is full")

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentDetailColumns = `e.id, e.student_id, e.section_id, e.status, e.enrolled_at, e.dropped_at, e.created_at, e.updated_at,
        st.full_name AS student_name, c.id AS course_id, c.code AS course_code, c.title AS course_title, c.credits,
        t.id AS term_id, t.name AS term_name`

const enrollmentDetailJoins = `FROM enrollments e
        JOIN students st ON st.id = e.student_id
        JOIN sections s ON s.id = e.section_id
        JOIN courses c ON c.id = s.course_id
        JOIN academic_terms t ON t.id = s.term_id`

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.SectionID != "" {
		conditions = append(conditions, fmt.Sprintf("e.section_id = $%d", len(args)+1))
		args = append(args, filter.SectionID)
	}
	if filter.TermID != "" {
		conditions = append(conditions, fmt.Sprintf("s.term_id = $%d", len(args)+1))
		args = append(args, filter.TermID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrolled_at":  "e.enrolled_at",
		"student_name": "st.full_name",
		"course_code":  "c.code",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "enrolled_at"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "e.enrolled_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s%s ORDER BY %s %s LIMIT %d OFFSET %d",
		enrollmentDetailColumns, enrollmentDetailJoins, clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s%s", enrollmentDetailJoins, clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, section_id, status, enrolled_at, dropped_at, created_at, updated_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with course and term context.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE e.id = $1", enrollmentDetailColumns, enrollmentDetailJoins)
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsActive checks whether the student already holds an ENROLLED or
// COMPLETED enrollment in the section.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, studentID, sectionID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND section_id = $2 AND status IN ($3, $4) LIMIT 1`
	var exists int
	err := r.db.GetContext(ctx, &exists, query, studentID, sectionID, models.EnrollmentStatusEnrolled, models.EnrollmentStatusCompleted)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return true, nil
}

// CountEnrolled returns the number of ENROLLED enrollments in a section.
func (r *EnrollmentRepository) CountEnrolled(ctx context.Context, sectionID string) (int, error) {
	return r.CountBySectionAndStatus(ctx, sectionID, models.EnrollmentStatusEnrolled)
}

// CountBySectionAndStatus returns the number of enrollments in a section
// holding the given status.
func (r *EnrollmentRepository) CountBySectionAndStatus(ctx context.Context, sectionID string, status models.EnrollmentStatus) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE section_id = $1 AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, sectionID, status); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return count, nil
}

// CreateEnrolled inserts an ENROLLED enrollment. The section row is locked
// and the occupancy re-counted inside the same transaction so two
// concurrent inserts cannot both pass a near-capacity check.
func (r *EnrollmentRepository) CreateEnrolled(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = now
	}
	enrollment.Status = models.EnrollmentStatusEnrolled
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin enrollment tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var capacity int
	if err := tx.GetContext(ctx, &capacity, `SELECT capacity FROM sections WHERE id = $1 FOR UPDATE`, enrollment.SectionID); err != nil {
		return fmt.Errorf("lock section: %w", err)
	}
	var enrolled int
	if err := tx.GetContext(ctx, &enrolled, `SELECT COUNT(*) FROM enrollments WHERE section_id = $1 AND status = $2`, enrollment.SectionID, models.EnrollmentStatusEnrolled); err != nil {
		return fmt.Errorf("count section occupancy: %w", err)
	}
	if enrolled >= capacity {
		return ErrSectionFull
	}

	const query = `INSERT INTO enrollments (id, student_id, section_id, status, enrolled_at, dropped_at, created_at, updated_at)
        VALUES (:id, :student_id, :section_id, :status, :enrolled_at, :dropped_at, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment: %w", err)
	}
	return nil
}

// UpdateStatus updates status and dropped_at for an enrollment.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, droppedAt *time.Time) error {
	const query = `UPDATE enrollments SET status = $2, dropped_at = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, droppedAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// ListEnrolledBySection returns ENROLLED enrollments in a section.
func (r *EnrollmentRepository) ListEnrolledBySection(ctx context.Context, sectionID string) ([]models.Enrollment, error) {
	const query = `SELECT id, student_id, section_id, status, enrolled_at, dropped_at, created_at, updated_at FROM enrollments WHERE section_id = $1 AND status = $2 ORDER BY enrolled_at`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, sectionID, models.EnrollmentStatusEnrolled); err != nil {
		return nil, fmt.Errorf("list section enrollments: %w", err)
	}
	return enrollments, nil
}

// ListEnrolledByStudentAndTerm returns the student's ENROLLED enrollments in
// a term with course context, ordered by course code.
func (r *EnrollmentRepository) ListEnrolledByStudentAndTerm(ctx context.Context, studentID, termID string) ([]models.EnrollmentDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE e.student_id = $1 AND s.term_id = $2 AND e.status = $3 ORDER BY c.code", enrollmentDetailColumns, enrollmentDetailJoins)
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID, termID, models.EnrollmentStatusEnrolled); err != nil {
		return nil, fmt.Errorf("list student term enrollments: %w", err)
	}
	return enrollments, nil
}

// ListCompletedCourseIDs returns the distinct course IDs the student has a
// COMPLETED enrollment in, across every section and term.
func (r *EnrollmentRepository) ListCompletedCourseIDs(ctx context.Context, studentID string) (map[string]bool, error) {
	const query = `SELECT DISTINCT s.course_id FROM enrollments e JOIN sections s ON s.id = e.section_id WHERE e.student_id = $1 AND e.status = $2`
	rows, err := r.db.QueryxContext(ctx, query, studentID, models.EnrollmentStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("list completed courses: %w", err)
	}
	defer rows.Close()
	completed := make(map[string]bool)
	for rows.Next() {
		var courseID string
		if err := rows.Scan(&courseID); err != nil {
			return nil, fmt.Errorf("scan completed course: %w", err)
		}
		completed[courseID] = true
	}
	return completed, nil
}
