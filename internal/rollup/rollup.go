// Package rollup computes time-windowed aggregates over finalized attendance
// records. All functions are pure: re-running over the same records and window
// yields the same output, and input order never matters.
package rollup

import (
	"time"

	"github.com/absenin/absenin-api/internal/models"
)

// Distribution counts records per status inside the inclusive window.
type Distribution struct {
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Late    int `json:"late"`
	Total   int `json:"total"`
}

// TrendPoint is one day's counts in a gap-free daily series.
type TrendPoint struct {
	Date    string `json:"date"`
	Present int    `json:"present"`
	Absent  int    `json:"absent"`
	Late    int    `json:"late"`
}

// Anomaly is the structured output of the external anomaly analysis service,
// rendered without further interpretation.
type Anomaly struct {
	StudentID   string `json:"student_id"`
	AnomalyType string `json:"anomaly_type"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

// StatusDistribution tallies records whose date falls within [from, to].
// Records outside the window are excluded; filtering by class is the caller's
// responsibility before invoking the aggregator.
func StatusDistribution(records []models.AttendanceRecord, from, to time.Time) Distribution {
	from, to = dateOnly(from), dateOnly(to)
	dist := Distribution{}
	for _, record := range records {
		day := dateOnly(record.Date)
		if day.Before(from) || day.After(to) {
			continue
		}
		switch record.Status {
		case models.AttendanceStatusPresent:
			dist.Present++
		case models.AttendanceStatusAbsent:
			dist.Absent++
		case models.AttendanceStatusLate:
			dist.Late++
		default:
			continue
		}
		dist.Total++
	}
	return dist
}

// DailyTrend produces one entry per calendar day in [from, to] inclusive,
// including zero-count days, so the series always has days(from,to)+1 entries
// with no gaps. Returns nil when to precedes from.
func DailyTrend(records []models.AttendanceRecord, from, to time.Time) []TrendPoint {
	from, to = dateOnly(from), dateOnly(to)
	if to.Before(from) {
		return nil
	}

	days := int(to.Sub(from).Hours()/24) + 1
	series := make([]TrendPoint, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		date := from.AddDate(0, 0, i).Format("2006-01-02")
		series[i] = TrendPoint{Date: date}
		index[date] = i
	}

	for _, record := range records {
		day := dateOnly(record.Date)
		i, ok := index[day.Format("2006-01-02")]
		if !ok {
			continue
		}
		switch record.Status {
		case models.AttendanceStatusPresent:
			series[i].Present++
		case models.AttendanceStatusAbsent:
			series[i].Absent++
		case models.AttendanceStatusLate:
			series[i].Late++
		}
	}
	return series
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
