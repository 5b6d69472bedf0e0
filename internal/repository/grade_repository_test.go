package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-sis-api/internal/models"
)

func newGradeRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestGradeRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newGradeRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectExec(`(?s)INSERT INTO grades.+ON CONFLICT \(enrollment_id, component_id\).+DO UPDATE SET score = EXCLUDED\.score`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	grade := &models.Grade{EnrollmentID: "e1", ComponentID: "comp-mid", Score: 27.5}
	err := repo.Upsert(context.Background(), grade)
	require.NoError(t, err)
	require.NotEmpty(t, grade.ID)
	require.False(t, grade.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryListBySection(t *testing.T) {
	db, mock, cleanup := newGradeRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "enrollment_id", "component_id", "score", "created_at", "updated_at"}).
		AddRow("g1", "e1", "comp-mid", 27.5, now, now).
		AddRow("g2", "e2", "comp-mid", 22.0, now, now)
	mock.ExpectQuery(`(?s)SELECT g\.id, g\.enrollment_id.+FROM grades g.+JOIN enrollments e.+WHERE e\.section_id = \$1`).
		WithArgs("sec1").
		WillReturnRows(rows)

	grades, err := repo.ListBySection(context.Background(), "sec1")
	require.NoError(t, err)
	require.Len(t, grades, 2)
	require.Equal(t, "e1", grades[0].EnrollmentID)
	require.NoError(t, mock.ExpectationsWereMet())
}
