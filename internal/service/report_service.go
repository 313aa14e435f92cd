package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/absenin/absenin-api/internal/models"
	"github.com/absenin/absenin-api/internal/rollup"
	"github.com/absenin/absenin-api/internal/roster"
	"github.com/absenin/absenin-api/internal/summary"
	appErrors "github.com/absenin/absenin-api/pkg/errors"
	"github.com/absenin/absenin-api/pkg/export"
)

type rangeLister interface {
	ListRange(ctx context.Context, classID string, from, to time.Time) ([]models.AttendanceRecord, error)
}

type reportCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type summarizer interface {
	Summarize(ctx context.Context, req summary.SummarizeRequest) (*summary.SummarizeResponse, error)
	AnalyzeAnomalies(ctx context.Context, req summary.AnalyzeRequest) (*summary.AnalyzeResponse, error)
}

type exporter interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ReportSummary is the aggregated view over one class and window.
type ReportSummary struct {
	ClassID      string              `json:"class_id"`
	StartDate    string              `json:"start_date"`
	EndDate      string              `json:"end_date"`
	Distribution rollup.Distribution `json:"distribution"`
	Trend        []rollup.TrendPoint `json:"trend"`
	Narrative    string              `json:"narrative,omitempty"`
}

// ReportService computes attendance rollups over finalized records, caches
// them, and drives the external summary service and file exports. Rollups are
// pure folds over the stored records, so recomputing after new confirmations
// always reflects the latest state.
type ReportService struct {
	attendance rangeLister
	cache      reportCache
	summarizer summarizer
	exporters  map[export.Format]exporter
	cacheTTL   time.Duration
	exportName string
	logger     *zap.Logger
}

// NewReportService constructs the report service. summarizer may be nil; the
// numeric rollups then come back without a narrative.
func NewReportService(attendance rangeLister, cache reportCache, summarizer summarizer, cacheTTL time.Duration, exportName string, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if exportName == "" {
		exportName = "attendance-report"
	}
	return &ReportService{
		attendance: attendance,
		cache:      cache,
		summarizer: summarizer,
		exporters: map[export.Format]exporter{
			export.FormatCSV: export.NewCSVExporter(),
			export.FormatPDF: export.NewPDFExporter(),
		},
		cacheTTL:   cacheTTL,
		exportName: exportName,
		logger:     logger,
	}
}

// Summary computes the status distribution and gap-free daily trend for a
// class over an inclusive window, optionally decorated with a narrative from
// the summary service. Results are cached per (class, window).
func (s *ReportService) Summary(ctx context.Context, classID, fromStr, toStr string, withNarrative bool) (*ReportSummary, error) {
	from, to, err := parseWindow(fromStr, toStr)
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("reports:summary:%s:%s:%s:%t", classID, fromStr, toStr, withNarrative)
	if s.cache != nil {
		var cached ReportSummary
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	records, err := s.attendance.ListRange(ctx, classID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance records")
	}

	result := &ReportSummary{
		ClassID:      classID,
		StartDate:    fromStr,
		EndDate:      toStr,
		Distribution: rollup.StatusDistribution(records, from, to),
		Trend:        rollup.DailyTrend(records, from, to),
	}

	if withNarrative && s.summarizer != nil {
		resp, err := s.summarizer.Summarize(ctx, summary.SummarizeRequest{
			ClassID:   classID,
			StartDate: fromStr,
			EndDate:   toStr,
		})
		if err != nil {
			// The numbers stand on their own; a narrative failure is not
			// a report failure.
			s.logger.Warn("summary service unavailable", zap.String("class_id", classID), zap.Error(err))
		} else {
			result.Narrative = resp.Summary
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, result, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache report summary", zap.Error(err))
		}
	}
	return result, nil
}

// Anomalies sends the class rollup to the analysis service and relays its
// findings verbatim.
func (s *ReportService) Anomalies(ctx context.Context, classID, fromStr, toStr string) (*summary.AnalyzeResponse, error) {
	if s.summarizer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "anomaly analysis is not configured")
	}
	from, to, err := parseWindow(fromStr, toStr)
	if err != nil {
		return nil, err
	}
	records, err := s.attendance.ListRange(ctx, classID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance records")
	}
	return s.summarizer.AnalyzeAnomalies(ctx, summary.AnalyzeRequest{
		ClassSection: classID,
		Distribution: rollup.StatusDistribution(records, from, to),
		Trend:        rollup.DailyTrend(records, from, to),
	})
}

// ExportResult holds a rendered report file.
type ExportResult struct {
	FileName    string
	ContentType string
	Content     []byte
}

// Export renders the window's records as CSV or PDF, with the distribution
// appended as summary lines.
func (s *ReportService) Export(ctx context.Context, classID, fromStr, toStr string, format export.Format) (*ExportResult, error) {
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format, expected csv or pdf")
	}
	from, to, err := parseWindow(fromStr, toStr)
	if err != nil {
		return nil, err
	}
	records, err := s.attendance.ListRange(ctx, classID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance records")
	}

	dist := rollup.StatusDistribution(records, from, to)
	data := export.Dataset{
		Headers: []string{"Date", "Student ID", "Status", "Marked By"},
		Rows:    make([]map[string]string, 0, len(records)),
		SummaryLines: []string{
			fmt.Sprintf("Present: %d", dist.Present),
			fmt.Sprintf("Absent: %d", dist.Absent),
			fmt.Sprintf("Late: %d", dist.Late),
			fmt.Sprintf("Total records: %d", dist.Total),
		},
	}
	for _, record := range records {
		data.Rows = append(data.Rows, map[string]string{
			"Date":       record.Date.Format("2006-01-02"),
			"Student ID": record.StudentID,
			"Status":     string(record.Status),
			"Marked By":  record.MarkedBy,
		})
	}

	title := fmt.Sprintf("Attendance %s %s to %s", classID, fromStr, toStr)
	content, err := s.exporters[format].Render(data, title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportResult{
		FileName:    fmt.Sprintf("%s-%s-%s.%s", s.exportName, fromStr, toStr, format),
		ContentType: format.ContentType(),
		Content:     content,
	}, nil
}

func parseWindow(fromStr, toStr string) (time.Time, time.Time, error) {
	from, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid start date, expected YYYY-MM-DD")
	}
	to, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid end date, expected YYYY-MM-DD")
	}
	from, to = roster.DateOnly(from), roster.DateOnly(to)
	if to.Before(from) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "end date precedes start date")
	}
	return from, to, nil
}
