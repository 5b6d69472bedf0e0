package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-sis-api/internal/models"
)

func newFinalGradeRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestFinalGradeRepositoryPublishOne(t *testing.T) {
	db, mock, cleanup := newFinalGradeRepoMock(t)
	defer cleanup()
	repo := NewFinalGradeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status FROM enrollments WHERE id = $1 FOR UPDATE`)).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.EnrollmentStatusEnrolled))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT component_id, score FROM grades WHERE enrollment_id = $1`)).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows([]string{"component_id", "score"}).
			AddRow("comp-mid", 90.0).
			AddRow("comp-fin", 95.0))
	mock.ExpectExec(`(?s)INSERT INTO final_grades.+ON CONFLICT \(enrollment_id\).+DO UPDATE SET letter_grade = EXCLUDED\.letter_grade`).
		WithArgs(sqlmock.AnyArg(), "e1", "A", 4.0, 93.0, models.FinalGradeStatusPublished, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1`)).
		WithArgs("e1", models.EnrollmentStatusCompleted, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	publishedAt := time.Now().UTC()
	var seen map[string]float64
	err := repo.PublishOne(context.Background(), "e1", func(scores map[string]float64) models.FinalGrade {
		seen = scores
		return models.FinalGrade{
			LetterGrade:     "A",
			GradePoint:      4.0,
			TotalPercentage: 93.0,
			Status:          models.FinalGradeStatusPublished,
			PublishedAt:     &publishedAt,
		}
	})
	require.NoError(t, err)
	// The scores handed to derive come from the re-read inside the
	// transaction, not from any earlier snapshot.
	require.Equal(t, map[string]float64{"comp-mid": 90.0, "comp-fin": 95.0}, seen)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalGradeRepositoryPublishOneNotEnrolled(t *testing.T) {
	db, mock, cleanup := newFinalGradeRepoMock(t)
	defer cleanup()
	repo := NewFinalGradeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status FROM enrollments WHERE id = $1 FOR UPDATE`)).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.EnrollmentStatusCompleted))
	mock.ExpectRollback()

	err := repo.PublishOne(context.Background(), "e1", func(map[string]float64) models.FinalGrade {
		t.Fatal("derive must not run for a non-enrolled enrollment")
		return models.FinalGrade{}
	})
	require.ErrorIs(t, err, ErrEnrollmentNotEnrolled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalGradeRepositoryPublishOneRollsBackOnStatusFailure(t *testing.T) {
	db, mock, cleanup := newFinalGradeRepoMock(t)
	defer cleanup()
	repo := NewFinalGradeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status FROM enrollments WHERE id = $1 FOR UPDATE`)).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.EnrollmentStatusEnrolled))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT component_id, score FROM grades WHERE enrollment_id = $1`)).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows([]string{"component_id", "score"}).AddRow("comp-mid", 50.0))
	mock.ExpectExec(`(?s)INSERT INTO final_grades.+ON CONFLICT \(enrollment_id\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1`)).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	err := repo.PublishOne(context.Background(), "e1", func(scores map[string]float64) models.FinalGrade {
		return models.FinalGrade{LetterGrade: "F", Status: models.FinalGradeStatusPublished}
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "complete enrollment")
	require.NoError(t, mock.ExpectationsWereMet())
}
