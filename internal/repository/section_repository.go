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

// SectionRepository handles persistence of sections and schedule slots.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

const sectionDetailColumns = `s.id, s.course_id, s.term_id, s.faculty_id, s.capacity, s.created_at, s.updated_at,
        c.code AS course_code, c.title AS course_title, c.credits,
        f.full_name AS faculty_name, t.name AS term_name,
        (SELECT COUNT(*) FROM enrollments e WHERE e.section_id = s.id AND e.status = 'ENROLLED') AS enrolled_count`

const sectionDetailJoins = `FROM sections s
        JOIN courses c ON c.id = s.course_id
        JOIN faculty f ON f.id = s.faculty_id
        JOIN academic_terms t ON t.id = s.term_id`

// List returns sections filtered by the provided criteria.
func (r *SectionRepository) List(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.TermID != "" {
		conditions = append(conditions, fmt.Sprintf("s.term_id = $%d", len(args)+1))
		args = append(args, filter.TermID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("s.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.FacultyID != "" {
		conditions = append(conditions, fmt.Sprintf("s.faculty_id = $%d", len(args)+1))
		args = append(args, filter.FacultyID)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf("SELECT %s %s%s ORDER BY c.code %s LIMIT %d OFFSET %d",
		sectionDetailColumns, sectionDetailJoins, clause, order, size, offset)

	var sections []models.SectionDetail
	if err := r.db.SelectContext(ctx, &sections, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sections: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s%s", sectionDetailJoins, clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sections: %w", err)
	}
	return sections, total, nil
}

// FindByID returns a section by its ID.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.Section, error) {
	const query = `SELECT id, course_id, term_id, faculty_id, capacity, created_at, updated_at FROM sections WHERE id = $1`
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// FindDetailByID returns a section with course, faculty and term context.
func (r *SectionRepository) FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE s.id = $1", sectionDetailColumns, sectionDetailJoins)
	var detail models.SectionDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	slots, err := r.SlotsBySection(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Slots = slots
	return &detail, nil
}

// Create persists a new section record.
func (r *SectionRepository) Create(ctx context.Context, section *models.Section) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	section.CreatedAt = now
	section.UpdatedAt = now
	const query = `INSERT INTO sections (id, course_id, term_id, faculty_id, capacity, created_at, updated_at)
        VALUES (:id, :course_id, :term_id, :faculty_id, :capacity, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("create section: %w", err)
	}
	return nil
}

// Update updates mutable fields of a section.
func (r *SectionRepository) Update(ctx context.Context, section *models.Section) error {
	section.UpdatedAt = time.Now().UTC()
	const query = `UPDATE sections SET faculty_id = :faculty_id, capacity = :capacity, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("update section: %w", err)
	}
	return nil
}

// Delete removes a section.
func (r *SectionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sections WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	return nil
}

// SlotsBySection returns the schedule slots of a section ordered by day and
// start time.
func (r *SectionRepository) SlotsBySection(ctx context.Context, sectionID string) ([]models.ScheduleSlot, error) {
	const query = `SELECT id, section_id, day_of_week, start_time, end_time, room, created_at FROM schedule_slots WHERE section_id = $1 ORDER BY day_of_week, start_time`
	var slots []models.ScheduleSlot
	if err := r.db.SelectContext(ctx, &slots, query, sectionID); err != nil {
		return nil, fmt.Errorf("list schedule slots: %w", err)
	}
	return slots, nil
}

// SlotsBySections returns schedule slots keyed by section ID.
func (r *SectionRepository) SlotsBySections(ctx context.Context, sectionIDs []string) (map[string][]models.ScheduleSlot, error) {
	if len(sectionIDs) == 0 {
		return map[string][]models.ScheduleSlot{}, nil
	}
	placeholders := make([]string, len(sectionIDs))
	args := make([]interface{}, len(sectionIDs))
	for i, id := range sectionIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT id, section_id, day_of_week, start_time, end_time, room, created_at FROM schedule_slots WHERE section_id IN (%s) ORDER BY day_of_week, start_time`, strings.Join(placeholders, ","))
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch schedule slots: %w", err)
	}
	defer rows.Close()
	result := make(map[string][]models.ScheduleSlot, len(sectionIDs))
	for rows.Next() {
		var slot models.ScheduleSlot
		if err := rows.StructScan(&slot); err != nil {
			return nil, fmt.Errorf("scan schedule slot: %w", err)
		}
		result[slot.SectionID] = append(result[slot.SectionID], slot)
	}
	return result, nil
}

// AddSlot persists a new schedule slot.
func (r *SectionRepository) AddSlot(ctx context.Context, slot *models.ScheduleSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO schedule_slots (id, section_id, day_of_week, start_time, end_time, room, created_at)
        VALUES (:id, :section_id, :day_of_week, :start_time, :end_time, :room, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("create schedule slot: %w", err)
	}
	return nil
}

// RemoveSlot deletes a schedule slot.
func (r *SectionRepository) RemoveSlot(ctx context.Context, slotID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM schedule_slots WHERE id = $1`, slotID); err != nil {
		return fmt.Errorf("delete schedule slot: %w", err)
	}
	return nil
}

// ListSlotConflicts returns existing slots in the same term that collide
// with the candidate on room or faculty.
func (r *SectionRepository) ListSlotConflicts(ctx context.Context, termID, excludeSectionID, facultyID string, slot models.ScheduleSlot) ([]models.SlotConflict, error) {
	const query = `SELECT sl.id AS slot_id, sl.section_id, c.code AS course_code, sl.day_of_week, sl.start_time, sl.end_time, sl.room,
        CASE WHEN sl.room = $4 THEN 'room' ELSE 'faculty' END AS dimension
        FROM schedule_slots sl
        JOIN sections s ON s.id = sl.section_id
        JOIN courses c ON c.id = s.course_id
        WHERE s.term_id = $1
          AND sl.section_id <> $2
          AND sl.day_of_week = $3
          AND (sl.room = $4 OR s.faculty_id = $5)
          AND sl.start_time < $7 AND sl.end_time > $6`
	var conflicts []models.SlotConflict
	err := r.db.SelectContext(ctx, &conflicts, query, termID, excludeSectionID, slot.DayOfWeek, slot.Room, facultyID, slot.StartTime, slot.EndTime)
	if err != nil {
		return nil, fmt.Errorf("list slot conflicts: %w", err)
	}
	return conflicts, nil
}
