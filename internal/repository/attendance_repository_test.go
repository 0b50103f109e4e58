package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/acadportal-api/internal/models"
)

func TestAttendanceRepositoryUpsertBatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "student_id", "subject_id", "date", "status", "remarks", "created_at", "updated_at"}).
		AddRow("att-1", "stu-1", "sub-1", date, models.AttendanceStatusPresent, nil, now, now)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO subject_attendance")).
		WithArgs(sqlmock.AnyArg(), "stu-1", "sub-1", date, models.AttendanceStatusPresent, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(rows)
	mock.ExpectCommit()

	stored, err := repo.UpsertBatch(context.Background(), []models.SubjectAttendance{
		{StudentID: "stu-1", SubjectID: "sub-1", Date: date, Status: models.AttendanceStatusPresent},
	})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, "att-1", stored[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryCountSessions(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT date) FROM subject_attendance WHERE subject_id = $1")).
		WithArgs("sub-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	count, err := repo.CountSessions(context.Background(), "sub-1")
	require.NoError(t, err)
	require.Equal(t, 12, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryCountPresent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM subject_attendance")).
		WithArgs("sub-1", "stu-1", models.AttendanceStatusPresent, models.AttendanceStatusLate).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(9))

	count, err := repo.CountPresent(context.Background(), "sub-1", "stu-1")
	require.NoError(t, err)
	require.Equal(t, 9, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
