package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/absenin/absenin-api/internal/models"
)

func TestMealRepositoryInsertIfAbsent(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewMealRepository(db)

	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	verification := &models.MealVerification{
		StudentID:  "stu-a",
		Date:       date,
		Source:     models.MealSourceQR,
		VerifiedBy: "teacher-1",
	}

	mock.ExpectQuery("INSERT INTO meal_verifications").
		WithArgs(sqlmock.AnyArg(), "stu-a", date, models.MealSourceQR, nil, "teacher-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("ver-1"))

	inserted, err := repo.InsertIfAbsent(context.Background(), verification)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEmpty(t, verification.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMealRepositoryInsertIfAbsentDuplicate(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewMealRepository(db)

	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	verification := &models.MealVerification{
		StudentID:  "stu-a",
		Date:       date,
		Source:     models.MealSourceManual,
		VerifiedBy: "teacher-1",
	}

	// ON CONFLICT DO NOTHING returns no row for the losing writer.
	mock.ExpectQuery("INSERT INTO meal_verifications").
		WithArgs(sqlmock.AnyArg(), "stu-a", date, models.MealSourceManual, nil, "teacher-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	inserted, err := repo.InsertIfAbsent(context.Background(), verification)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMealRepositoryList(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewMealRepository(db)

	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "student_id", "date", "source", "note", "verified_by", "verified_at"}).
		AddRow("ver-1", "stu-a", date, "QR", nil, "teacher-1", time.Now())

	mock.ExpectQuery("SELECT mv.id, mv.student_id, mv.date, mv.source, mv.note, mv.verified_by, mv.verified_at").
		WithArgs("class-1").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("class-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	verifications, total, err := repo.List(context.Background(), models.MealVerificationFilter{ClassID: "class-1"})
	require.NoError(t, err)
	assert.Len(t, verifications, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
