package recognition

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/absenin/absenin-api/pkg/errors"
)

func fixedClock() time.Time {
	return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
}

func TestClientRecognize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/recognize", r.URL.Path)
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "scene", req.ScenePhoto)
		json.NewEncoder(w).Encode(Result{RecognizedStudentIDs: []string{"stu-a", "stu-b"}})
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, nil)
	client.now = fixedClock

	result, err := client.Recognize(context.Background(), Request{
		ScenePhoto:  "scene",
		CaptureDate: "2024-06-01",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"stu-a", "stu-b"}, result.RecognizedStudentIDs)
}

func TestClientRejectsStaleCaptureDate(t *testing.T) {
	client := NewClient("http://unused", time.Second, nil)
	client.now = fixedClock

	_, err := client.Recognize(context.Background(), Request{ScenePhoto: "scene", CaptureDate: "2024-05-31"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestClientRejectsUnparseableCaptureDate(t *testing.T) {
	client := NewClient("http://unused", time.Second, nil)
	client.now = fixedClock

	_, err := client.Recognize(context.Background(), Request{ScenePhoto: "scene", CaptureDate: "yesterday"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestClientSurfacesServiceFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, nil)
	_, err := client.Recognize(context.Background(), Request{ScenePhoto: "scene"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrScanFailed.Code, appErrors.FromError(err).Code)
}
