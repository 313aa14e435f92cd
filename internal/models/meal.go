package models

import "time"

// MealSource indicates how a meal verification was captured.
type MealSource string

const (
	MealSourceQR     MealSource = "QR"
	MealSourceManual MealSource = "MANUAL"
)

// Valid returns true when the source is a supported value.
func (s MealSource) Valid() bool {
	return s == MealSourceQR || s == MealSourceManual
}

// MealVerification records that a student received a meal on a given day.
// At most one verification exists per (student_id, date); a second attempt is
// rejected rather than overwritten. Rows are insert-only.
type MealVerification struct {
	ID         string     `db:"id" json:"id"`
	StudentID  string     `db:"student_id" json:"student_id"`
	Date       time.Time  `db:"date" json:"date"`
	Source     MealSource `db:"source" json:"source"`
	Note       *string    `db:"note" json:"note,omitempty"`
	VerifiedBy string     `db:"verified_by" json:"verified_by"`
	VerifiedAt time.Time  `db:"verified_at" json:"verified_at"`
}

// MealVerificationFilter scopes listing queries.
type MealVerificationFilter struct {
	ClassID  string
	Date     *time.Time
	Source   *MealSource
	Page     int
	PageSize int
}
