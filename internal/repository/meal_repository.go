package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/absenin/absenin-api/internal/models"
)

// MealRepository handles persistence for meal verifications.
type MealRepository struct {
	db *sqlx.DB
}

// NewMealRepository constructs the repository.
func NewMealRepository(db *sqlx.DB) *MealRepository {
	return &MealRepository{db: db}
}

// InsertIfAbsent commits the verification only when no row exists for the
// (student_id, date) key. The conditional insert closes the check-then-act
// gap: of two concurrent callers for the same key, exactly one gets true.
func (r *MealRepository) InsertIfAbsent(ctx context.Context, verification *models.MealVerification) (bool, error) {
	if verification.ID == "" {
		verification.ID = uuid.NewString()
	}
	if verification.VerifiedAt.IsZero() {
		verification.VerifiedAt = time.Now().UTC()
	}
	query := `INSERT INTO meal_verifications (id, student_id, date, source, note, verified_by, verified_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (student_id, date) DO NOTHING
RETURNING id`
	var insertedID string
	err := r.db.QueryRowxContext(ctx, query,
		verification.ID, verification.StudentID, verification.Date,
		verification.Source, verification.Note, verification.VerifiedBy, verification.VerifiedAt,
	).Scan(&insertedID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("insert meal verification: %w", err)
	}
	return true, nil
}

// FindByStudentAndDate returns the verification for a student on a day, or
// nil when none exists.
func (r *MealRepository) FindByStudentAndDate(ctx context.Context, studentID string, date time.Time) (*models.MealVerification, error) {
	query := `SELECT id, student_id, date, source, note, verified_by, verified_at
FROM meal_verifications WHERE student_id = $1 AND date = $2`
	var verification models.MealVerification
	if err := r.db.GetContext(ctx, &verification, query, studentID, date); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &verification, nil
}

// List returns verifications matching the filter, newest first.
func (r *MealRepository) List(ctx context.Context, filter models.MealVerificationFilter) ([]models.MealVerification, int, error) {
	base := `FROM meal_verifications mv JOIN students s ON s.id = mv.student_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.ClassID != "" {
		where = append(where, fmt.Sprintf("s.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Date != nil {
		where = append(where, fmt.Sprintf("mv.date = $%d", len(args)+1))
		args = append(args, *filter.Date)
	}
	if filter.Source != nil && filter.Source.Valid() {
		where = append(where, fmt.Sprintf("mv.source = $%d", len(args)+1))
		args = append(args, *filter.Source)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT mv.id, mv.student_id, mv.date, mv.source, mv.note, mv.verified_by, mv.verified_at
        %s WHERE %s
        ORDER BY mv.verified_at DESC
        LIMIT %d OFFSET %d`, base, whereClause, size, offset)

	var rows []models.MealVerification
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list meal verifications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count meal verifications: %w", err)
	}
	return rows, total, nil
}
