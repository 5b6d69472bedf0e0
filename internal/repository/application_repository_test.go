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

func newApplicationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestApplicationRepositoryHasOpenOrApproved(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectQuery(`(?s)SELECT EXISTS \(SELECT 1 FROM department_applications.+status IN \('PENDING', 'APPROVED'\)\)`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	open, err := repo.HasOpenOrApproved(context.Background(), "s1")
	require.NoError(t, err)
	require.True(t, open)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectExec(`INSERT INTO department_applications`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	application := &models.DepartmentApplication{
		StudentID:    "s1",
		DepartmentID: "d1",
		GPASnapshot:  3.1,
		Status:       models.ApplicationStatusPending,
	}
	err := repo.Create(context.Background(), application)
	require.NoError(t, err)
	require.NotEmpty(t, application.ID)
	require.False(t, application.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryApproveWithSeatLimit(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT seat_capacity FROM departments WHERE id = $1 FOR UPDATE`)).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"seat_capacity"}).AddRow(40))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM department_applications WHERE department_id = $1 AND status = 'APPROVED'`)).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(10))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE department_applications SET status = 'APPROVED', decided_at = $1, updated_at = $1 WHERE id = $2`)).
		WithArgs(sqlmock.AnyArg(), "app-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE students SET department_id = $1, updated_at = $2 WHERE id = $3`)).
		WithArgs("d1", sqlmock.AnyArg(), "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	application := &models.DepartmentApplication{
		ID:           "app-1",
		StudentID:    "s1",
		DepartmentID: "d1",
		Status:       models.ApplicationStatusPending,
	}
	err := repo.ApproveWithSeatLimit(context.Background(), application)
	require.NoError(t, err)
	require.Equal(t, models.ApplicationStatusApproved, application.Status)
	require.NotNil(t, application.DecidedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryApproveWithSeatLimitFull(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT seat_capacity FROM departments WHERE id = $1 FOR UPDATE`)).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"seat_capacity"}).AddRow(40))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM department_applications WHERE department_id = $1 AND status = 'APPROVED'`)).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(40))
	mock.ExpectRollback()

	application := &models.DepartmentApplication{
		ID:           "app-1",
		StudentID:    "s1",
		DepartmentID: "d1",
		Status:       models.ApplicationStatusPending,
	}
	err := repo.ApproveWithSeatLimit(context.Background(), application)
	require.ErrorIs(t, err, ErrDepartmentFull)
	require.Equal(t, models.ApplicationStatusPending, application.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryApproveWithoutSeatCap(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT seat_capacity FROM departments WHERE id = $1 FOR UPDATE`)).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"seat_capacity"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM department_applications WHERE department_id = $1 AND status = 'APPROVED'`)).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(500))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE department_applications SET status = 'APPROVED', decided_at = $1, updated_at = $1 WHERE id = $2`)).
		WithArgs(sqlmock.AnyArg(), "app-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE students SET department_id = $1, updated_at = $2 WHERE id = $3`)).
		WithArgs("d1", sqlmock.AnyArg(), "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	application := &models.DepartmentApplication{
		ID:           "app-1",
		StudentID:    "s1",
		DepartmentID: "d1",
		Status:       models.ApplicationStatusPending,
	}
	err := repo.ApproveWithSeatLimit(context.Background(), application)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	reason := "below GPA floor"
	decidedAt := time.Now().UTC()
	mock.ExpectExec(`(?s)UPDATE department_applications.+SET status = \$1, rejection_reason = \$2, decided_at = \$3, updated_at = \$4 WHERE id = \$5`).
		WithArgs(models.ApplicationStatusRejected, reason, decidedAt, sqlmock.AnyArg(), "app-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "app-1", models.ApplicationStatusRejected, &reason, &decidedAt)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
