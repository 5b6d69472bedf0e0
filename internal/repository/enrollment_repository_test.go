package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-sis-api/internal/models"
)

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func enrollmentDetailRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "student_id", "section_id", "status", "enrolled_at", "dropped_at", "created_at", "updated_at",
		"student_name", "course_id", "course_code", "course_title", "credits", "term_id", "term_name",
	}).AddRow("e1", "s1", "sec1", models.EnrollmentStatusEnrolled, now, nil, now, now,
		"Ada Lovelace", "c1", "CS101", "Intro to Computing", 3, "t1", "Fall 2026")
}

func TestEnrollmentRepositoryListFiltersByStudent(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(`(?s)SELECT e\.id, e\.student_id.+FROM enrollments e.+WHERE e\.student_id = \$1 ORDER BY e\.enrolled_at DESC`).
		WithArgs("s1").
		WillReturnRows(enrollmentDetailRows())
	mock.ExpectQuery(`(?s)SELECT COUNT\(\*\) FROM enrollments e.+WHERE e\.student_id = \$1`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	enrollments, total, err := repo.List(context.Background(), models.EnrollmentFilter{StudentID: "s1"})
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	require.Equal(t, 1, total)
	require.Equal(t, "CS101", enrollments[0].CourseCode)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, student_id, section_id, status, enrolled_at, dropped_at, created_at, updated_at FROM enrollments WHERE id = $1`)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsActive(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	query := regexp.QuoteMeta(`SELECT 1 FROM enrollments WHERE student_id = $1 AND section_id = $2 AND status IN ($3, $4) LIMIT 1`)

	mock.ExpectQuery(query).
		WithArgs("s1", "sec1", models.EnrollmentStatusEnrolled, models.EnrollmentStatusCompleted).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	exists, err := repo.ExistsActive(context.Background(), "s1", "sec1")
	require.NoError(t, err)
	require.True(t, exists)

	mock.ExpectQuery(query).
		WithArgs("s1", "sec2", models.EnrollmentStatusEnrolled, models.EnrollmentStatusCompleted).
		WillReturnError(sql.ErrNoRows)
	exists, err = repo.ExistsActive(context.Background(), "s1", "sec2")
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateEnrolled(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT capacity FROM sections WHERE id = $1 FOR UPDATE`)).
		WithArgs("sec1").
		WillReturnRows(sqlmock.NewRows([]string{"capacity"}).AddRow(30))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM enrollments WHERE section_id = $1 AND status = $2`)).
		WithArgs("sec1", models.EnrollmentStatusEnrolled).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(10))
	mock.ExpectExec(`INSERT INTO enrollments`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	enrollment := &models.Enrollment{StudentID: "s1", SectionID: "sec1"}
	err := repo.CreateEnrolled(context.Background(), enrollment)
	require.NoError(t, err)
	require.NotEmpty(t, enrollment.ID)
	require.Equal(t, models.EnrollmentStatusEnrolled, enrollment.Status)
	require.False(t, enrollment.EnrolledAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateEnrolledSectionFull(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT capacity FROM sections WHERE id = $1 FOR UPDATE`)).
		WithArgs("sec1").
		WillReturnRows(sqlmock.NewRows([]string{"capacity"}).AddRow(30))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM enrollments WHERE section_id = $1 AND status = $2`)).
		WithArgs("sec1", models.EnrollmentStatusEnrolled).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(30))
	mock.ExpectRollback()

	err := repo.CreateEnrolled(context.Background(), &models.Enrollment{StudentID: "s1", SectionID: "sec1"})
	require.ErrorIs(t, err, ErrSectionFull)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	droppedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE enrollments SET status = $2, dropped_at = $3, updated_at = $4 WHERE id = $1`)).
		WithArgs("e1", models.EnrollmentStatusDropped, droppedAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "e1", models.EnrollmentStatusDropped, &droppedAt)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListCompletedCourseIDs(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT s.course_id FROM enrollments e JOIN sections s ON s.id = e.section_id WHERE e.student_id = $1 AND e.status = $2`)).
		WithArgs("s1", models.EnrollmentStatusCompleted).
		WillReturnRows(sqlmock.NewRows([]string{"course_id"}).AddRow("c1").AddRow("c2"))

	completed, err := repo.ListCompletedCourseIDs(context.Background(), "s1")
	require.NoError(t, err)
	require.True(t, completed["c1"])
	require.True(t, completed["c2"])
	require.Len(t, completed, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCountBySectionAndStatus(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM enrollments WHERE section_id = $1 AND status = $2`)).
		WithArgs("sec1", models.EnrollmentStatusCompleted).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountBySectionAndStatus(context.Background(), "sec1", models.EnrollmentStatusCompleted)
	require.NoError(t, err)
	require.Equal(t, 4, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
