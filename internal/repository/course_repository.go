package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-sis-api/internal/models"
)

// CourseRepository handles persistence of courses and prerequisite edges.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses matching the filter.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	baseQuery := `FROM courses WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.DepartmentID != "" {
		conditions = append(conditions, fmt.Sprintf("department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(code) LIKE $%d OR LOWER(title) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"code": true, "title": true, "credits": true, "created_at": true}
	if !allowedSorts[sortBy] {
		sortBy = "code"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf("SELECT id, code, title, credits, category, department_id, created_at, updated_at %s ORDER BY %s %s LIMIT %d OFFSET %d", baseQuery, sortBy, order, size, offset)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID returns a course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, code, title, credits, category, department_id, created_at, updated_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindByCode returns a course by its unique code.
func (r *CourseRepository) FindByCode(ctx context.Context, code string) (*models.Course, error) {
	const query = `SELECT id, code, title, credits, category, department_id, created_at, updated_at FROM courses WHERE code = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, code); err != nil {
		return nil, err
	}
	return &course, nil
}

// Create persists a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, code, title, credits, category, department_id, created_at, updated_at)
        VALUES (:id, :code, :title, :credits, :category, :department_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update updates mutable fields of a course.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET title = :title, credits = :credits, category = :category, department_id = :department_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// Delete removes a course.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return nil
}

// ListPrerequisites returns prerequisite edges for a course with the
// prerequisite course's code and title.
func (r *CourseRepository) ListPrerequisites(ctx context.Context, courseID string) ([]models.PrerequisiteDetail, error) {
	const query = `SELECT p.id, p.course_id, p.prerequisite_id, p.type, p.created_at,
        c.code AS prerequisite_code, c.title AS prerequisite_title
        FROM prerequisites p
        JOIN courses c ON c.id = p.prerequisite_id
        WHERE p.course_id = $1 ORDER BY c.code`
	var prereqs []models.PrerequisiteDetail
	if err := r.db.SelectContext(ctx, &prereqs, query, courseID); err != nil {
		return nil, fmt.Errorf("list prerequisites: %w", err)
	}
	return prereqs, nil
}

// AdjacencyList materialises the full prerequisite graph as a map from
// course ID to the IDs of its prerequisites.
func (r *CourseRepository) AdjacencyList(ctx context.Context) (map[string][]string, error) {
	const query = `SELECT course_id, prerequisite_id FROM prerequisites`
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load prerequisite graph: %w", err)
	}
	defer rows.Close()
	graph := make(map[string][]string)
	for rows.Next() {
		var courseID, prereqID string
		if err := rows.Scan(&courseID, &prereqID); err != nil {
			return nil, fmt.Errorf("scan prerequisite edge: %w", err)
		}
		graph[courseID] = append(graph[courseID], prereqID)
	}
	return graph, nil
}

// AddPrerequisite persists a new prerequisite edge.
func (r *CourseRepository) AddPrerequisite(ctx context.Context, prereq *models.Prerequisite) error {
	if prereq.ID == "" {
		prereq.ID = uuid.NewString()
	}
	if prereq.CreatedAt.IsZero() {
		prereq.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO prerequisites (id, course_id, prerequisite_id, type, created_at)
        VALUES (:id, :course_id, :prerequisite_id, :type, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, prereq); err != nil {
		return fmt.Errorf("create prerequisite: %w", err)
	}
	return nil
}

// RemovePrerequisite deletes a prerequisite edge.
func (r *CourseRepository) RemovePrerequisite(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM prerequisites WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete prerequisite: %w", err)
	}
	return nil
}
