package rollup

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/absenin/absenin-api/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func record(date time.Time, status models.AttendanceStatus) models.AttendanceRecord {
	return models.AttendanceRecord{ClassID: "class-1", StudentID: "stu", Date: date, Status: status}
}

func TestStatusDistributionWindow(t *testing.T) {
	records := []models.AttendanceRecord{
		record(day(2024, 6, 1), models.AttendanceStatusPresent),
		record(day(2024, 6, 2), models.AttendanceStatusLate),
		record(day(2024, 6, 3), models.AttendanceStatusAbsent),
		record(day(2024, 6, 10), models.AttendanceStatusPresent), // outside window
	}

	dist := StatusDistribution(records, day(2024, 6, 1), day(2024, 6, 3))
	assert.Equal(t, 1, dist.Present)
	assert.Equal(t, 1, dist.Late)
	assert.Equal(t, 1, dist.Absent)
	assert.Equal(t, 3, dist.Total)
}

func TestStatusDistributionIgnoresTimeComponent(t *testing.T) {
	records := []models.AttendanceRecord{
		record(time.Date(2024, 6, 1, 23, 59, 0, 0, time.UTC), models.AttendanceStatusPresent),
	}
	dist := StatusDistribution(records, day(2024, 6, 1), day(2024, 6, 1))
	assert.Equal(t, 1, dist.Present)
}

func TestDailyTrendGapFree(t *testing.T) {
	// window 2024-06-01..2024-06-03: present x2 on the 1st, absent x1 on the 3rd
	records := []models.AttendanceRecord{
		record(day(2024, 6, 1), models.AttendanceStatusPresent),
		record(day(2024, 6, 1), models.AttendanceStatusPresent),
		record(day(2024, 6, 3), models.AttendanceStatusAbsent),
	}

	series := DailyTrend(records, day(2024, 6, 1), day(2024, 6, 3))
	require.Len(t, series, 3)

	assert.Equal(t, TrendPoint{Date: "2024-06-01", Present: 2}, series[0])
	assert.Equal(t, TrendPoint{Date: "2024-06-02"}, series[1])
	assert.Equal(t, TrendPoint{Date: "2024-06-03", Absent: 1}, series[2])
}

func TestDailyTrendSingleDay(t *testing.T) {
	series := DailyTrend(nil, day(2024, 6, 1), day(2024, 6, 1))
	require.Len(t, series, 1)
	assert.Equal(t, "2024-06-01", series[0].Date)
}

func TestDailyTrendInvertedWindow(t *testing.T) {
	series := DailyTrend(nil, day(2024, 6, 3), day(2024, 6, 1))
	assert.Nil(t, series)
}

func TestRollupOrderIndependence(t *testing.T) {
	records := []models.AttendanceRecord{
		record(day(2024, 6, 1), models.AttendanceStatusPresent),
		record(day(2024, 6, 1), models.AttendanceStatusAbsent),
		record(day(2024, 6, 2), models.AttendanceStatusLate),
		record(day(2024, 6, 3), models.AttendanceStatusPresent),
		record(day(2024, 6, 4), models.AttendanceStatusAbsent),
	}
	from, to := day(2024, 6, 1), day(2024, 6, 4)
	wantDist := StatusDistribution(records, from, to)
	wantTrend := DailyTrend(records, from, to)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		shuffled := make([]models.AttendanceRecord, len(records))
		copy(shuffled, records)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		assert.Equal(t, wantDist, StatusDistribution(shuffled, from, to))
		assert.Equal(t, wantTrend, DailyTrend(shuffled, from, to))
	}
}
