// Package roster implements the in-memory attendance session for a class and
// calendar day: a mapping over the class roster that starts all-absent, is
// updated by scan results and manual edits, and is frozen into attendance
// records on confirmation.
package roster

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/absenin/absenin-api/internal/models"
	appErrors "github.com/absenin/absenin-api/pkg/errors"
)

// Session tracks per-student statuses for one (classID, date) pair. A session
// is local to the caller that opened it; it is not shared across sessions and
// needs no locking of its own.
type Session struct {
	ID      string
	ClassID string
	Date    time.Time

	statuses  map[string]models.AttendanceStatus
	names     map[string]string
	confirmed bool
}

// NewSession opens a session with every roster member defaulted to absent.
func NewSession(classID string, date time.Time, students []models.Student) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		ClassID:  classID,
		Date:     DateOnly(date),
		statuses: make(map[string]models.AttendanceStatus, len(students)),
		names:    make(map[string]string, len(students)),
	}
	for _, student := range students {
		s.statuses[student.ID] = models.AttendanceStatusAbsent
		s.names[student.ID] = student.Name
	}
	return s
}

// Confirmed reports whether the session has been frozen.
func (s *Session) Confirmed() bool {
	return s.confirmed
}

// Size returns the current roster size.
func (s *Session) Size() int {
	return len(s.statuses)
}

// ApplyScan marks every recognized roster member present. IDs outside the
// roster are dropped: the mapping's key set always equals the roster.
// Applying the same set twice yields the same mapping as applying it once.
func (s *Session) ApplyScan(recognizedIDs []string) error {
	if s.confirmed {
		return appErrors.Clone(appErrors.ErrSessionConfirmed, "")
	}
	for _, id := range recognizedIDs {
		if _, ok := s.statuses[id]; ok {
			s.statuses[id] = models.AttendanceStatusPresent
		}
	}
	return nil
}

// SetStatus replaces the status of exactly one roster member. Edits to
// students outside the roster and undefined statuses are rejected.
func (s *Session) SetStatus(studentID string, status models.AttendanceStatus) error {
	if s.confirmed {
		return appErrors.Clone(appErrors.ErrSessionConfirmed, "")
	}
	if !status.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown attendance status")
	}
	if _, ok := s.statuses[studentID]; !ok {
		return appErrors.Clone(appErrors.ErrValidation, "student is not in the class roster")
	}
	s.statuses[studentID] = status
	return nil
}

// AddStudent extends the roster mid-session. The new student appears with the
// default absent status at confirmation time.
func (s *Session) AddStudent(student models.Student) error {
	if s.confirmed {
		return appErrors.Clone(appErrors.ErrSessionConfirmed, "")
	}
	if _, ok := s.statuses[student.ID]; !ok {
		s.statuses[student.ID] = models.AttendanceStatusAbsent
		s.names[student.ID] = student.Name
	}
	return nil
}

// Statuses returns a copy of the current mapping.
func (s *Session) Statuses() map[string]models.AttendanceStatus {
	out := make(map[string]models.AttendanceStatus, len(s.statuses))
	for id, status := range s.statuses {
		out[id] = status
	}
	return out
}

// Confirm freezes the mapping and emits exactly one record per roster member,
// ordered by student ID. After confirmation no further edits apply; a fresh
// session must be opened to change the stored records.
func (s *Session) Confirm(markedBy string, now time.Time) ([]models.AttendanceRecord, error) {
	if s.confirmed {
		return nil, appErrors.Clone(appErrors.ErrSessionConfirmed, "")
	}
	s.confirmed = true

	ids := make([]string, 0, len(s.statuses))
	for id := range s.statuses {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	records := make([]models.AttendanceRecord, len(ids))
	for i, id := range ids {
		records[i] = models.AttendanceRecord{
			ID:        uuid.NewString(),
			ClassID:   s.ClassID,
			StudentID: id,
			Date:      s.Date,
			Status:    s.statuses[id],
			MarkedBy:  markedBy,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	return records, nil
}

// DateOnly strips the time component, keeping the calendar day in UTC.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
