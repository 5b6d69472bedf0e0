package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-sis-api/internal/models"
)

// CurriculumRepository handles persistence of curricula and their course
// placements.
type CurriculumRepository struct {
	db *sqlx.DB
}

// NewCurriculumRepository creates a new curriculum repository.
func NewCurriculumRepository(db *sqlx.DB) *CurriculumRepository {
	return &CurriculumRepository{db: db}
}

// List returns curricula matching the filter with pagination.
func (r *CurriculumRepository) List(ctx context.Context, filter models.CurriculumFilter) ([]models.Curriculum, int, error) {
	baseQuery := ` FROM curricula WHERE 1=1`
	args := []interface{}{}
	argID := 1

	if filter.DepartmentID != "" {
		baseQuery += fmt.Sprintf(" AND department_id = $%d", argID)
		args = append(args, filter.DepartmentID)
		argID++
	}
	if filter.Search != "" {
		baseQuery += fmt.Sprintf(" AND name ILIKE $%d", argID)
		args = append(args, "%"+filter.Search+"%")
		argID++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count curricula: %w", err)
	}

	query := `SELECT id, department_id, name, total_credits, created_at, updated_at` + baseQuery + " ORDER BY name"
	if filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argID, argID+1)
		args = append(args, filter.PageSize, offset)
	}

	var curricula []models.Curriculum
	if err := r.db.SelectContext(ctx, &curricula, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list curricula: %w", err)
	}
	return curricula, total, nil
}

// FindByID returns a curriculum by its ID.
func (r *CurriculumRepository) FindByID(ctx context.Context, id string) (*models.Curriculum, error) {
	const query = `SELECT id, department_id, name, total_credits, created_at, updated_at FROM curricula WHERE id = $1`
	var curriculum models.Curriculum
	if err := r.db.GetContext(ctx, &curriculum, query, id); err != nil {
		return nil, err
	}
	return &curriculum, nil
}

// Create persists a new curriculum.
func (r *CurriculumRepository) Create(ctx context.Context, curriculum *models.Curriculum) error {
	if curriculum.ID == "" {
		curriculum.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	curriculum.CreatedAt = now
	curriculum.UpdatedAt = now
	const query = `INSERT INTO curricula (id, department_id, name, total_credits, created_at, updated_at)
        VALUES (:id, :department_id, :name, :total_credits, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, curriculum); err != nil {
		return fmt.Errorf("create curriculum: %w", err)
	}
	return nil
}

// Update updates mutable fields of a curriculum.
func (r *CurriculumRepository) Update(ctx context.Context, curriculum *models.Curriculum) error {
	curriculum.UpdatedAt = time.Now().UTC()
	const query = `UPDATE curricula SET name = :name, total_credits = :total_credits, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, curriculum); err != nil {
		return fmt.Errorf("update curriculum: %w", err)
	}
	return nil
}

// Delete removes a curriculum and its placements.
func (r *CurriculumRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin curriculum delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	if _, err := tx.ExecContext(ctx, `DELETE FROM curriculum_courses WHERE curriculum_id = $1`, id); err != nil {
		return fmt.Errorf("delete curriculum courses: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM curricula WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete curriculum: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit curriculum delete: %w", err)
	}
	return nil
}

// ListCourses returns a curriculum's placements ordered by year, semester,
// then course code.
func (r *CurriculumRepository) ListCourses(ctx context.Context, curriculumID string) ([]models.CurriculumCourseDetail, error) {
	const query = `SELECT cc.id, cc.curriculum_id, cc.course_id, cc.year, cc.semester, cc.required, cc.created_at,
            c.code AS course_code, c.title AS course_title, c.credits
        FROM curriculum_courses cc
        JOIN courses c ON c.id = cc.course_id
        WHERE cc.curriculum_id = $1
        ORDER BY cc.year, cc.semester, c.code`
	var courses []models.CurriculumCourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, curriculumID); err != nil {
		return nil, fmt.Errorf("list curriculum courses: %w", err)
	}
	return courses, nil
}

// AddCourse places a course at a (year, semester) slot.
func (r *CurriculumRepository) AddCourse(ctx context.Context, placement *models.CurriculumCourse) error {
	if placement.ID == "" {
		placement.ID = uuid.NewString()
	}
	placement.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO curriculum_courses (id, curriculum_id, course_id, year, semester, required, created_at)
        VALUES (:id, :curriculum_id, :course_id, :year, :semester, :required, :created_at)
        ON CONFLICT (curriculum_id, course_id)
        DO UPDATE SET year = EXCLUDED.year, semester = EXCLUDED.semester, required = EXCLUDED.required`
	if _, err := r.db.NamedExecContext(ctx, query, placement); err != nil {
		return fmt.Errorf("add curriculum course: %w", err)
	}
	return nil
}

// RemoveCourse removes a placement.
func (r *CurriculumRepository) RemoveCourse(ctx context.Context, curriculumID, courseID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM curriculum_courses WHERE curriculum_id = $1 AND course_id = $2`,
		curriculumID, courseID); err != nil {
		return fmt.Errorf("remove curriculum course: %w", err)
	}
	return nil
}
