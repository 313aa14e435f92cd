package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/absenin/absenin-api/internal/models"
	"github.com/absenin/absenin-api/internal/summary"
	appErrors "github.com/absenin/absenin-api/pkg/errors"
	"github.com/absenin/absenin-api/pkg/export"
)

type mockRangeLister struct {
	records []models.AttendanceRecord
	calls   int
}

func (m *mockRangeLister) ListRange(ctx context.Context, classID string, from, to time.Time) ([]models.AttendanceRecord, error) {
	m.calls++
	return m.records, nil
}

type mockReportCache struct {
	values map[string][]byte
}

func (m *mockReportCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockReportCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if m.values == nil {
		m.values = make(map[string][]byte)
	}
	m.values[key] = raw
	return nil
}

type mockSummarizer struct {
	narrative    string
	summarizeErr error
	analysis     *summary.AnalyzeResponse
}

func (m *mockSummarizer) Summarize(ctx context.Context, req summary.SummarizeRequest) (*summary.SummarizeResponse, error) {
	if m.summarizeErr != nil {
		return nil, m.summarizeErr
	}
	return &summary.SummarizeResponse{Summary: m.narrative}, nil
}

func (m *mockSummarizer) AnalyzeAnomalies(ctx context.Context, req summary.AnalyzeRequest) (*summary.AnalyzeResponse, error) {
	return m.analysis, nil
}

func recordOn(day, studentID string, status models.AttendanceStatus) models.AttendanceRecord {
	date, _ := time.Parse("2006-01-02", day)
	return models.AttendanceRecord{ClassID: "class-1", StudentID: studentID, Date: date, Status: status, MarkedBy: "teacher-1"}
}

func TestSummaryComputesDistributionAndTrend(t *testing.T) {
	lister := &mockRangeLister{records: []models.AttendanceRecord{
		recordOn("2024-06-01", "a", models.AttendanceStatusPresent),
		recordOn("2024-06-01", "b", models.AttendanceStatusAbsent),
		recordOn("2024-06-03", "a", models.AttendanceStatusLate),
	}}
	svc := NewReportService(lister, &mockReportCache{}, &mockSummarizer{narrative: "steady week"}, time.Minute, "report", nil)

	result, err := svc.Summary(context.Background(), "class-1", "2024-06-01", "2024-06-03", true)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Distribution.Present)
	assert.Equal(t, 1, result.Distribution.Absent)
	assert.Equal(t, 1, result.Distribution.Late)
	assert.Equal(t, 3, result.Distribution.Total)
	// Gap-free series: one point per day including the empty middle day.
	require.Len(t, result.Trend, 3)
	assert.Equal(t, "2024-06-02", result.Trend[1].Date)
	assert.Zero(t, result.Trend[1].Present+result.Trend[1].Absent+result.Trend[1].Late)
	assert.Equal(t, "steady week", result.Narrative)
}

func TestSummaryServedFromCache(t *testing.T) {
	lister := &mockRangeLister{}
	svc := NewReportService(lister, &mockReportCache{}, nil, time.Minute, "report", nil)

	_, err := svc.Summary(context.Background(), "class-1", "2024-06-01", "2024-06-03", false)
	require.NoError(t, err)
	_, err = svc.Summary(context.Background(), "class-1", "2024-06-01", "2024-06-03", false)
	require.NoError(t, err)

	assert.Equal(t, 1, lister.calls)
}

func TestSummaryNarrativeFailureIsNotFatal(t *testing.T) {
	lister := &mockRangeLister{records: []models.AttendanceRecord{
		recordOn("2024-06-01", "a", models.AttendanceStatusPresent),
	}}
	svc := NewReportService(lister, nil, &mockSummarizer{summarizeErr: errors.New("llm timeout")}, time.Minute, "report", nil)

	result, err := svc.Summary(context.Background(), "class-1", "2024-06-01", "2024-06-01", true)
	require.NoError(t, err)
	assert.Empty(t, result.Narrative)
	assert.Equal(t, 1, result.Distribution.Present)
}

func TestSummaryRejectsInvertedWindow(t *testing.T) {
	svc := NewReportService(&mockRangeLister{}, nil, nil, time.Minute, "report", nil)

	_, err := svc.Summary(context.Background(), "class-1", "2024-06-03", "2024-06-01", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportCSV(t *testing.T) {
	lister := &mockRangeLister{records: []models.AttendanceRecord{
		recordOn("2024-06-01", "a", models.AttendanceStatusPresent),
		recordOn("2024-06-01", "b", models.AttendanceStatusAbsent),
	}}
	svc := NewReportService(lister, nil, nil, time.Minute, "daily-report", nil)

	result, err := svc.Export(context.Background(), "class-1", "2024-06-01", "2024-06-01", export.FormatCSV)
	require.NoError(t, err)

	assert.Equal(t, "text/csv", result.ContentType)
	assert.Equal(t, "daily-report-2024-06-01-2024-06-01.csv", result.FileName)
	body := string(result.Content)
	assert.True(t, strings.HasPrefix(body, "Date,Student ID,Status,Marked By"))
	assert.Contains(t, body, "2024-06-01,a,PRESENT,teacher-1")
	assert.Contains(t, body, "Present: 1")
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	svc := NewReportService(&mockRangeLister{}, nil, nil, time.Minute, "report", nil)

	_, err := svc.Export(context.Background(), "class-1", "2024-06-01", "2024-06-01", export.Format("xlsx"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
