package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/absenin/absenin-api/internal/models"
	"github.com/absenin/absenin-api/internal/roster"
	appErrors "github.com/absenin/absenin-api/pkg/errors"
	"github.com/absenin/absenin-api/pkg/qr"
)

type mealRepository interface {
	InsertIfAbsent(ctx context.Context, verification *models.MealVerification) (bool, error)
	FindByStudentAndDate(ctx context.Context, studentID string, date time.Time) (*models.MealVerification, error)
	List(ctx context.Context, filter models.MealVerificationFilter) ([]models.MealVerification, int, error)
}

type attendanceLookup interface {
	FindByStudentAndDate(ctx context.Context, studentID string, date time.Time) (*models.AttendanceRecord, error)
}

type passIssuer interface {
	IssuePass(studentID string, date time.Time) (*qr.Pass, error)
	VerifyPass(token string) (*qr.Claims, error)
}

// MealService records meal verifications. A student is eligible only when the
// finalized attendance for the day is present or late, and at most one
// verification per (student, day) is ever stored regardless of how many
// scanners submit concurrently.
type MealService struct {
	repo       mealRepository
	attendance attendanceLookup
	passes     passIssuer
	validator  *validator.Validate
	logger     *zap.Logger
	metrics    *MetricsService
	now        func() time.Time
}

// WithMetrics attaches the metrics service for verification counters.
func (s *MealService) WithMetrics(metrics *MetricsService) *MealService {
	s.metrics = metrics
	return s
}

// NewMealService constructs the meal verification service.
func NewMealService(repo mealRepository, attendance attendanceLookup, passes passIssuer, validate *validator.Validate, logger *zap.Logger) *MealService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MealService{
		repo:       repo,
		attendance: attendance,
		passes:     passes,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
	}
}

// VerifyMealRequest describes a verification attempt.
type VerifyMealRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	Date      string  `json:"date" validate:"required"`
	Source    string  `json:"source" validate:"required,oneof=QR MANUAL qr manual"`
	Note      *string `json:"note"`
}

// Verify records that a student received their meal. ErrNotEligible is
// returned when the day's attendance is missing or absent, ErrAlreadyVerified
// when a verification for the pair already exists.
func (s *MealService) Verify(ctx context.Context, req VerifyMealRequest, verifiedBy string) (*models.MealVerification, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	date = roster.DateOnly(date)

	record, err := s.attendance.FindByStudentAndDate(ctx, req.StudentID, date)
	if err != nil {
		return nil, err
	}
	if record == nil || !record.Status.MealEligible() {
		return nil, appErrors.Clone(appErrors.ErrNotEligible, "")
	}

	verification := &models.MealVerification{
		ID:         uuid.NewString(),
		StudentID:  req.StudentID,
		Date:       date,
		Source:     models.MealSource(strings.ToUpper(req.Source)),
		Note:       req.Note,
		VerifiedBy: verifiedBy,
		VerifiedAt: s.now().UTC(),
	}
	inserted, err := s.repo.InsertIfAbsent(ctx, verification)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store meal verification")
	}
	if !inserted {
		return nil, appErrors.Clone(appErrors.ErrAlreadyVerified, "")
	}

	if s.metrics != nil {
		s.metrics.ObserveMealVerification(string(verification.Source))
	}
	s.logger.Info("meal verified",
		zap.String("student_id", verification.StudentID),
		zap.String("date", req.Date),
		zap.String("source", string(verification.Source)))
	return verification, nil
}

// VerifyByPass decodes a signed QR pass token and records the verification
// for the student and day the pass was issued for.
func (s *MealService) VerifyByPass(ctx context.Context, token, verifiedBy string) (*models.MealVerification, error) {
	claims, err := s.passes.VerifyPass(token)
	if err != nil {
		return nil, err
	}
	return s.Verify(ctx, VerifyMealRequest{
		StudentID: claims.StudentID,
		Date:      claims.Date,
		Source:    string(models.MealSourceQR),
	}, verifiedBy)
}

// IssuePass generates a signed QR pass for an eligible student. The PNG is
// returned base64-encoded alongside the token. An empty date means today.
func (s *MealService) IssuePass(ctx context.Context, studentID, dateStr string) (*qr.Pass, error) {
	var date time.Time
	if dateStr == "" {
		date = s.now().UTC()
	} else {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
		}
		date = parsed
	}
	date = roster.DateOnly(date)

	record, err := s.attendance.FindByStudentAndDate(ctx, studentID, date)
	if err != nil {
		return nil, err
	}
	if record == nil || !record.Status.MealEligible() {
		return nil, appErrors.Clone(appErrors.ErrNotEligible, "")
	}
	if existing, err := s.repo.FindByStudentAndDate(ctx, studentID, date); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyVerified, "")
	}
	return s.passes.IssuePass(studentID, date)
}

// MealListRequest filters the verification listing.
type MealListRequest struct {
	ClassID  string
	Date     *time.Time
	Source   *string
	Page     int
	PageSize int
}

// List returns paginated meal verifications.
func (s *MealService) List(ctx context.Context, req MealListRequest) ([]models.MealVerification, *models.Pagination, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size <= 0 {
		size = 50
	}
	var source *models.MealSource
	if req.Source != nil {
		src := models.MealSource(strings.ToUpper(*req.Source))
		source = &src
	}
	filter := models.MealVerificationFilter{
		ClassID:  req.ClassID,
		Date:     req.Date,
		Source:   source,
		Page:     page,
		PageSize: size,
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list meal verifications")
	}
	return rows, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}
