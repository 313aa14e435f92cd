package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/absenin/absenin-api/internal/models"
)

func newAttendanceMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAttendanceRepositoryConfirmBatch(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	records := []models.AttendanceRecord{
		{ClassID: "class-1", StudentID: "stu-a", Date: date, Status: models.AttendanceStatusPresent, MarkedBy: "teacher-1"},
		{ClassID: "class-1", StudentID: "stu-b", Date: date, Status: models.AttendanceStatusLate, MarkedBy: "teacher-1"},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO attendance_records").
		WithArgs(sqlmock.AnyArg(), "class-1", "stu-a", date, models.AttendanceStatusPresent, "teacher-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO attendance_records").
		WithArgs(sqlmock.AnyArg(), "class-1", "stu-b", date, models.AttendanceStatusLate, "teacher-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ConfirmBatch(context.Background(), records))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryConfirmBatchRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	records := []models.AttendanceRecord{
		{ClassID: "class-1", StudentID: "stu-a", Date: date, Status: models.AttendanceStatusPresent},
		{ClassID: "class-1", StudentID: "stu-b", Date: date, Status: models.AttendanceStatusAbsent},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO attendance_records").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO attendance_records").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.ConfirmBatch(context.Background(), records)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryConfirmBatchEmpty(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	require.NoError(t, repo.ConfirmBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryList(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "class_id", "student_id", "date", "status", "marked_by", "created_at", "updated_at"}).
		AddRow("rec-1", "class-1", "stu-a", date, "PRESENT", "teacher-1", time.Now(), time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, class_id, student_id, date, status, marked_by, created_at, updated_at")).
		WithArgs("class-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM attendance_records")).
		WithArgs("class-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	records, total, err := repo.List(context.Background(), models.AttendanceFilter{ClassID: "class-1"})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListRange(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "class_id", "student_id", "date", "status", "marked_by", "created_at", "updated_at"}).
		AddRow("rec-1", "class-1", "stu-a", from, "PRESENT", "teacher-1", time.Now(), time.Now()).
		AddRow("rec-2", "class-1", "stu-b", to, "ABSENT", "teacher-1", time.Now(), time.Now())

	mock.ExpectQuery("SELECT id, class_id, student_id, date, status, marked_by, created_at, updated_at").
		WithArgs("class-1", from, to).
		WillReturnRows(rows)

	records, err := repo.ListRange(context.Background(), "class-1", from, to)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
