package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/absenin/absenin-api/internal/models"
	"github.com/absenin/absenin-api/internal/recognition"
	"github.com/absenin/absenin-api/internal/roster"
	appErrors "github.com/absenin/absenin-api/pkg/errors"
)

type attendanceRepository interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
	ConfirmBatch(ctx context.Context, records []models.AttendanceRecord) error
	ClassReport(ctx context.Context, classID string, date time.Time) ([]models.AttendanceReportRow, error)
}

type rosterLoader interface {
	ListByClass(ctx context.Context, classID string) ([]models.Student, error)
}

type recognizer interface {
	Recognize(ctx context.Context, req recognition.Request) (*recognition.Result, error)
}

type cacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// sessionEntry tracks one open session together with records already emitted
// by a confirm whose store write failed, so the whole batch can be retried.
// mu guards session and pending; handlers for the same session ID run
// concurrently, and the registry lock only covers the map itself. It is never
// held across a recognition or store call.
type sessionEntry struct {
	mu      sync.Mutex
	session *roster.Session
	pending []models.AttendanceRecord
}

// AttendanceService coordinates attendance sessions from opening through
// scanning, manual edits, and confirmation.
//
// Confirmation for the same (classID, date) from two different sessions is
// last-write-wins: there is no optimistic concurrency token, and the later
// confirm replaces the earlier records. This is an accepted limitation, not
// a guarantee.
type AttendanceService struct {
	repo       attendanceRepository
	students   rosterLoader
	recognizer recognizer
	validator  *validator.Validate
	logger     *zap.Logger
	metrics    *MetricsService
	cache      cacheInvalidator
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, students rosterLoader, recognizer recognizer, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AttendanceService{
		repo:       repo,
		students:   students,
		recognizer: recognizer,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
		sessions:   make(map[string]*sessionEntry),
	}
	svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(strings.ToUpper(fl.Field().String())).Valid()
	})
	return svc
}

// WithMetrics attaches the metrics service for session instrumentation.
func (s *AttendanceService) WithMetrics(metrics *MetricsService) *AttendanceService {
	s.metrics = metrics
	return s
}

// WithCache attaches the cache used for report summaries so confirmed batches
// invalidate the affected class's cached rollups.
func (s *AttendanceService) WithCache(cache cacheInvalidator) *AttendanceService {
	s.cache = cache
	return s
}

// OpenSessionRequest describes the payload for opening a session.
type OpenSessionRequest struct {
	ClassID string `json:"class_id" validate:"required"`
	Date    string `json:"date" validate:"required"`
}

// ScanRequest carries the captured scene photo for recognition.
type ScanRequest struct {
	ScenePhoto  string `json:"scene_photo" validate:"required"`
	CaptureDate string `json:"capture_date"`
}

// EditStatusRequest describes a manual status edit.
type EditStatusRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Status    string `json:"status" validate:"required,attendance_status"`
}

// SessionView is the API projection of a session.
type SessionView struct {
	ID       string                             `json:"id"`
	ClassID  string                             `json:"class_id"`
	Date     string                             `json:"date"`
	Statuses map[string]models.AttendanceStatus `json:"statuses"`
}

// OpenSession loads the class roster and starts a session with everyone
// defaulted to absent.
func (s *AttendanceService) OpenSession(ctx context.Context, req OpenSessionRequest) (*SessionView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	students, err := s.students.ListByClass(ctx, req.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	if len(students) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class has no students")
	}

	session := roster.NewSession(req.ClassID, date, students)
	view := s.view(session)
	s.mu.Lock()
	s.sessions[session.ID] = &sessionEntry{session: session}
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.SessionOpened()
	}

	return view, nil
}

// Scan submits the scene photo to the recognition service and batch-marks
// every recognized roster member present. If the session was abandoned while
// the recognition call was in flight, the result is discarded.
func (s *AttendanceService) Scan(ctx context.Context, sessionID string, req ScanRequest) (*SessionView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	entry, err := s.entry(sessionID)
	if err != nil {
		return nil, err
	}

	students, err := s.students.ListByClass(ctx, entry.session.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	photos := make([]recognition.StudentPhoto, 0, len(students))
	for _, student := range students {
		if student.PhotoURL == nil {
			continue
		}
		photos = append(photos, recognition.StudentPhoto{StudentID: student.ID, Photo: *student.PhotoURL})
	}

	scanStart := s.now()
	result, err := s.recognizer.Recognize(ctx, recognition.Request{
		ScenePhoto:    req.ScenePhoto,
		StudentPhotos: photos,
		CaptureDate:   req.CaptureDate,
	})
	if s.metrics != nil {
		s.metrics.ObserveScan(s.now().Sub(scanStart))
	}
	if err != nil {
		return nil, err
	}

	// The recognition call suspends; the session may have been abandoned
	// meanwhile. Re-check before applying so no stale write lands.
	current, lookupErr := s.entry(sessionID)
	if lookupErr != nil || current != entry {
		s.logger.Info("discarding scan result for closed session", zap.String("session_id", sessionID))
		return nil, appErrors.Clone(appErrors.ErrValidation, "session was closed during the scan")
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if err := entry.session.ApplyScan(result.RecognizedStudentIDs); err != nil {
		return nil, err
	}
	return s.view(entry.session), nil
}

// EditStatus sets exactly one student's status; all other entries unchanged.
func (s *AttendanceService) EditStatus(ctx context.Context, sessionID string, req EditStatusRequest) (*SessionView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	entry, err := s.entry(sessionID)
	if err != nil {
		return nil, err
	}
	status := models.AttendanceStatus(strings.ToUpper(req.Status))
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if err := entry.session.SetStatus(req.StudentID, status); err != nil {
		return nil, err
	}
	return s.view(entry.session), nil
}

// Confirm freezes the session and persists one record per roster member in a
// single batch. The roster is re-read first so students added after the scan
// are included with the default absent status. On a store failure the batch
// is kept and the whole confirm may be retried; the upsert keys make the
// retry safe.
func (s *AttendanceService) Confirm(ctx context.Context, sessionID, markedBy string) ([]models.AttendanceRecord, error) {
	entry, err := s.entry(sessionID)
	if err != nil {
		return nil, err
	}

	records, err := s.buildBatch(ctx, entry, markedBy)
	if err != nil {
		return nil, err
	}

	if err := s.repo.ConfirmBatch(ctx, records); err != nil {
		s.logger.Warn("confirm batch write failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to persist attendance, retry the confirmation")
	}

	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.ObserveConfirmation()
		s.metrics.SessionClosed()
	}
	if s.cache != nil {
		pattern := fmt.Sprintf("reports:summary:%s:*", entry.session.ClassID)
		if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
			s.logger.Warn("failed to invalidate cached reports", zap.String("class_id", entry.session.ClassID), zap.Error(err))
		}
	}
	return records, nil
}

// buildBatch returns the session's frozen record batch, confirming the
// session on first call. The roster read happens before the entry lock is
// taken; a concurrent confirm that lost the roster race just reuses the
// already-frozen batch.
func (s *AttendanceService) buildBatch(ctx context.Context, entry *sessionEntry, markedBy string) ([]models.AttendanceRecord, error) {
	entry.mu.Lock()
	pending := entry.pending
	entry.mu.Unlock()
	if pending != nil {
		return pending, nil
	}

	students, err := s.students.ListByClass(ctx, entry.session.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.pending != nil {
		return entry.pending, nil
	}
	for _, student := range students {
		if err := entry.session.AddStudent(student); err != nil {
			return nil, err
		}
	}
	records, err := entry.session.Confirm(markedBy, s.now().UTC())
	if err != nil {
		return nil, err
	}
	entry.pending = records
	return records, nil
}

// Abandon closes a session without persisting anything. In-flight scan
// results for the session are discarded when they arrive.
func (s *AttendanceService) Abandon(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "session not found")
	}
	delete(s.sessions, sessionID)
	if s.metrics != nil {
		s.metrics.SessionClosed()
	}
	return nil
}

// AttendanceListRequest is used for listing finalized records.
type AttendanceListRequest struct {
	ClassID   string     `json:"class_id"`
	StudentID string     `json:"student_id"`
	Status    *string    `json:"status" validate:"omitempty,attendance_status"`
	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	Page      int        `json:"page"`
	PageSize  int        `json:"page_size"`
	SortBy    string     `json:"sort_by"`
	SortOrder string     `json:"sort_order"`
}

// List returns paginated finalized attendance records.
func (s *AttendanceService) List(ctx context.Context, req AttendanceListRequest) ([]models.AttendanceRecord, *models.Pagination, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid filter")
	}
	var status *models.AttendanceStatus
	if req.Status != nil {
		st := models.AttendanceStatus(strings.ToUpper(*req.Status))
		status = &st
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size <= 0 {
		size = 50
	}
	filter := models.AttendanceFilter{
		ClassID:   req.ClassID,
		StudentID: req.StudentID,
		Status:    status,
		DateFrom:  req.DateFrom,
		DateTo:    req.DateTo,
		Page:      page,
		PageSize:  size,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance records")
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return rows, pagination, nil
}

// ClassReport returns per-student statuses for a class on one date.
func (s *AttendanceService) ClassReport(ctx context.Context, classID string, date time.Time) ([]models.AttendanceReportRow, error) {
	rows, err := s.repo.ClassReport(ctx, classID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class report")
	}
	return rows, nil
}

func (s *AttendanceService) entry(sessionID string) (*sessionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
	}
	return entry, nil
}

func (s *AttendanceService) view(session *roster.Session) *SessionView {
	return &SessionView{
		ID:       session.ID,
		ClassID:  session.ClassID,
		Date:     session.Date.Format("2006-01-02"),
		Statuses: session.Statuses(),
	}
}
