package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/absenin/absenin-api/internal/models"
	appErrors "github.com/absenin/absenin-api/pkg/errors"
	"github.com/absenin/absenin-api/pkg/qr"
)

type mockMealRepo struct {
	stored    map[string]*models.MealVerification
	insertErr error
	listRows  []models.MealVerification
}

func mealKey(studentID string, date time.Time) string {
	return studentID + "|" + date.Format("2006-01-02")
}

func (m *mockMealRepo) InsertIfAbsent(ctx context.Context, v *models.MealVerification) (bool, error) {
	if m.insertErr != nil {
		return false, m.insertErr
	}
	if m.stored == nil {
		m.stored = make(map[string]*models.MealVerification)
	}
	key := mealKey(v.StudentID, v.Date)
	if _, ok := m.stored[key]; ok {
		return false, nil
	}
	m.stored[key] = v
	return true, nil
}

func (m *mockMealRepo) FindByStudentAndDate(ctx context.Context, studentID string, date time.Time) (*models.MealVerification, error) {
	if m.stored == nil {
		return nil, nil
	}
	return m.stored[mealKey(studentID, date)], nil
}

func (m *mockMealRepo) List(ctx context.Context, filter models.MealVerificationFilter) ([]models.MealVerification, int, error) {
	return m.listRows, len(m.listRows), nil
}

type mockAttendanceLookup struct {
	records map[string]*models.AttendanceRecord
}

func (m *mockAttendanceLookup) FindByStudentAndDate(ctx context.Context, studentID string, date time.Time) (*models.AttendanceRecord, error) {
	return m.records[mealKey(studentID, date)], nil
}

func attendanceOn(day string, statuses map[string]models.AttendanceStatus) *mockAttendanceLookup {
	date, _ := time.Parse("2006-01-02", day)
	records := make(map[string]*models.AttendanceRecord, len(statuses))
	for id, status := range statuses {
		records[mealKey(id, date)] = &models.AttendanceRecord{StudentID: id, Date: date, Status: status}
	}
	return &mockAttendanceLookup{records: records}
}

func newTestMealService(repo *mockMealRepo, attendance *mockAttendanceLookup) *MealService {
	return NewMealService(repo, attendance, qr.NewIssuer("test-secret", 128), nil, nil)
}

func TestVerifyEligibilityAndUniqueness(t *testing.T) {
	attendance := attendanceOn("2024-06-03", map[string]models.AttendanceStatus{
		"a": models.AttendanceStatusPresent,
		"b": models.AttendanceStatusLate,
		"d": models.AttendanceStatusAbsent,
	})
	svc := newTestMealService(&mockMealRepo{}, attendance)
	ctx := context.Background()

	v, err := svc.Verify(ctx, VerifyMealRequest{StudentID: "a", Date: "2024-06-03", Source: "MANUAL"}, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, models.MealSourceManual, v.Source)

	// Second attempt for the same student and day is rejected.
	_, err = svc.Verify(ctx, VerifyMealRequest{StudentID: "a", Date: "2024-06-03", Source: "QR"}, "staff-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyVerified.Code, appErrors.FromError(err).Code)

	// Late students are eligible.
	_, err = svc.Verify(ctx, VerifyMealRequest{StudentID: "b", Date: "2024-06-03", Source: "MANUAL"}, "staff-1")
	require.NoError(t, err)

	// Absent students are not.
	_, err = svc.Verify(ctx, VerifyMealRequest{StudentID: "d", Date: "2024-06-03", Source: "MANUAL"}, "staff-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotEligible.Code, appErrors.FromError(err).Code)

	// No attendance record at all means not eligible either.
	_, err = svc.Verify(ctx, VerifyMealRequest{StudentID: "nobody", Date: "2024-06-03", Source: "MANUAL"}, "staff-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotEligible.Code, appErrors.FromError(err).Code)
}

func TestVerifySameStudentDifferentDays(t *testing.T) {
	attendance := &mockAttendanceLookup{records: map[string]*models.AttendanceRecord{}}
	for _, day := range []string{"2024-06-03", "2024-06-04"} {
		date, _ := time.Parse("2006-01-02", day)
		attendance.records[mealKey("a", date)] = &models.AttendanceRecord{StudentID: "a", Date: date, Status: models.AttendanceStatusPresent}
	}
	svc := newTestMealService(&mockMealRepo{}, attendance)

	_, err := svc.Verify(context.Background(), VerifyMealRequest{StudentID: "a", Date: "2024-06-03", Source: "QR"}, "staff-1")
	require.NoError(t, err)
	_, err = svc.Verify(context.Background(), VerifyMealRequest{StudentID: "a", Date: "2024-06-04", Source: "QR"}, "staff-1")
	require.NoError(t, err)
}

func TestIssueAndRedeemPass(t *testing.T) {
	attendance := attendanceOn("2024-06-03", map[string]models.AttendanceStatus{
		"a": models.AttendanceStatusPresent,
	})
	svc := newTestMealService(&mockMealRepo{}, attendance)
	ctx := context.Background()

	pass, err := svc.IssuePass(ctx, "a", "2024-06-03")
	require.NoError(t, err)
	assert.NotEmpty(t, pass.PNG)

	v, err := svc.VerifyByPass(ctx, pass.Token, "canteen-1")
	require.NoError(t, err)
	assert.Equal(t, "a", v.StudentID)
	assert.Equal(t, models.MealSourceQR, v.Source)

	// The pass is single-use per day.
	_, err = svc.VerifyByPass(ctx, pass.Token, "canteen-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyVerified.Code, appErrors.FromError(err).Code)

	// Issuing a new pass after verification is refused.
	_, err = svc.IssuePass(ctx, "a", "2024-06-03")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyVerified.Code, appErrors.FromError(err).Code)
}

func TestIssuePassRequiresEligibility(t *testing.T) {
	attendance := attendanceOn("2024-06-03", map[string]models.AttendanceStatus{
		"d": models.AttendanceStatusAbsent,
	})
	svc := newTestMealService(&mockMealRepo{}, attendance)

	_, err := svc.IssuePass(context.Background(), "d", "2024-06-03")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotEligible.Code, appErrors.FromError(err).Code)
}
