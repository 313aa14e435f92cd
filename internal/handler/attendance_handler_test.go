package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/absenin/absenin-api/internal/middleware"
	"github.com/absenin/absenin-api/internal/models"
	"github.com/absenin/absenin-api/internal/recognition"
	"github.com/absenin/absenin-api/internal/service"
	"github.com/absenin/absenin-api/pkg/response"
)

type attendanceRepoStub struct {
	batches [][]models.AttendanceRecord
}

func (s *attendanceRepoStub) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	return nil, 0, nil
}

func (s *attendanceRepoStub) ConfirmBatch(ctx context.Context, records []models.AttendanceRecord) error {
	s.batches = append(s.batches, records)
	return nil
}

func (s *attendanceRepoStub) ClassReport(ctx context.Context, classID string, date time.Time) ([]models.AttendanceReportRow, error) {
	return nil, nil
}

type rosterStub struct {
	students []models.Student
}

func (s *rosterStub) ListByClass(ctx context.Context, classID string) ([]models.Student, error) {
	return s.students, nil
}

type recognizerStub struct {
	ids []string
}

func (s *recognizerStub) Recognize(ctx context.Context, req recognition.Request) (*recognition.Result, error) {
	return &recognition.Result{RecognizedStudentIDs: s.ids}, nil
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestAttendanceSessionLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &attendanceRepoStub{}
	svc := service.NewAttendanceService(repo, &rosterStub{students: []models.Student{
		{ID: "a", Name: "Ana", ClassID: "class-1"},
		{ID: "b", Name: "Ben", ClassID: "class-1"},
	}}, &recognizerStub{ids: []string{"a"}}, nil, nil)
	handler := NewAttendanceHandler(svc)

	payload, _ := json.Marshal(service.OpenSessionRequest{ClassID: "class-1", Date: "2024-06-03"})
	c, w := newGinContext(http.MethodPost, "/attendance/sessions", payload)
	handler.OpenSession(c)
	require.Equal(t, http.StatusCreated, w.Code)

	var opened struct {
		Data service.SessionView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &opened))
	sessionID := opened.Data.ID
	require.NotEmpty(t, sessionID)

	payload, _ = json.Marshal(service.ScanRequest{ScenePhoto: "base64data", CaptureDate: time.Now().UTC().Format("2006-01-02")})
	c, w = newGinContext(http.MethodPost, "/attendance/sessions/"+sessionID+"/scan", payload)
	c.Params = gin.Params{{Key: "id", Value: sessionID}}
	handler.Scan(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newGinContext(http.MethodPost, "/attendance/sessions/"+sessionID+"/confirm", nil)
	c.Params = gin.Params{{Key: "id", Value: sessionID}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})
	handler.Confirm(c)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, repo.batches, 1)
	require.Len(t, repo.batches[0], 2)
	require.Equal(t, "teacher-1", repo.batches[0][0].MarkedBy)
}

func TestAttendanceAbandonUnknownSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := service.NewAttendanceService(&attendanceRepoStub{}, &rosterStub{}, &recognizerStub{}, nil, nil)
	handler := NewAttendanceHandler(svc)

	c, w := newGinContext(http.MethodDelete, "/attendance/sessions/nope", nil)
	c.Params = gin.Params{{Key: "id", Value: "nope"}}
	handler.Abandon(c)
	require.Equal(t, http.StatusNotFound, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
}
