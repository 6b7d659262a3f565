package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rookiemaniesh/trackaro/internal/api/domain"
	"github.com/rookiemaniesh/trackaro/internal/api/model"
)

type fakeJobReader struct {
	jobs    map[string]*model.Job // keyed by queueName + "/" + jobID
	readErr error
}

func (f *fakeJobReader) GetJob(_ context.Context, queueName, jobID string) (*model.Job, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	job, ok := f.jobs[queueName+"/"+jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return job, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func newJobRouter(store *fakeJobReader) *gin.Engine {
	gin.SetMode(gin.TestMode)

	h := NewJobHandler(&Dependencies{
		Logger: testLogger(),
		Store:  store,
	})

	r := gin.New()
	r.GET("/api/v1/jobs/:job_id", h.GetJobStatus)
	return r
}

func doGet(t *testing.T, r *gin.Engine, url string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	r.ServeHTTP(w, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestGetJobStatus_Waiting(t *testing.T) {
	store := &fakeJobReader{jobs: map[string]*model.Job{
		"ai-processing/job-1": {
			JobID:     "job-1",
			QueueName: "ai-processing",
			State:     domain.JobStateWaiting,
		},
	}}

	w, body := doGet(t, newJobRouter(store), "/api/v1/jobs/job-1")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "job-1", data["jobId"])
	assert.Equal(t, domain.JobStateWaiting, data["state"])
	assert.Nil(t, data["result"])
}

func TestGetJobStatus_Completed(t *testing.T) {
	store := &fakeJobReader{jobs: map[string]*model.Job{
		"ai-processing/job-2": {
			JobID:     "job-2",
			QueueName: "ai-processing",
			State:     domain.JobStateCompleted,
			Progress:  100,
			Result:    sql.NullString{String: `{"messageId":"m1","expenseId":"e1"}`, Valid: true},
		},
	}}

	w, body := doGet(t, newJobRouter(store), "/api/v1/jobs/job-2?queue=ai")

	assert.Equal(t, http.StatusOK, w.Code)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, domain.JobStateCompleted, data["state"])
	assert.Equal(t, float64(100), data["progress"])

	result := data["result"].(map[string]interface{})
	assert.Equal(t, "m1", result["messageId"])
	assert.Equal(t, "e1", result["expenseId"])
}

func TestGetJobStatus_FailedHasNoResult(t *testing.T) {
	store := &fakeJobReader{jobs: map[string]*model.Job{
		"ai-processing/job-3": {
			JobID:         "job-3",
			QueueName:     "ai-processing",
			State:         domain.JobStateFailed,
			FailureReason: sql.NullString{String: "classification timed out", Valid: true},
		},
	}}

	w, body := doGet(t, newJobRouter(store), "/api/v1/jobs/job-3")

	assert.Equal(t, http.StatusOK, w.Code)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, domain.JobStateFailed, data["state"])
	assert.Nil(t, data["result"])
}

func TestGetJobStatus_QueueSelector(t *testing.T) {
	store := &fakeJobReader{jobs: map[string]*model.Job{
		"ocr-processing/job-4": {
			JobID:     "job-4",
			QueueName: "ocr-processing",
			State:     domain.JobStateActive,
		},
	}}
	r := newJobRouter(store)

	// Found on the ocr queue
	w, _ := doGet(t, r, "/api/v1/jobs/job-4?queue=ocr")
	assert.Equal(t, http.StatusOK, w.Code)

	// Default queue is ai, where this job does not exist
	w, body := doGet(t, r, "/api/v1/jobs/job-4")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Job not found", body["message"])
}

func TestGetJobStatus_UnknownJob(t *testing.T) {
	store := &fakeJobReader{jobs: map[string]*model.Job{}}

	w, body := doGet(t, newJobRouter(store), "/api/v1/jobs/nonexistent-id")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Job not found", body["message"])
}

func TestGetJobStatus_InvalidQueue(t *testing.T) {
	store := &fakeJobReader{jobs: map[string]*model.Job{}}

	w, body := doGet(t, newJobRouter(store), "/api/v1/jobs/job-1?queue=video")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, body["success"])
}

func TestGetJobStatus_StoreError(t *testing.T) {
	store := &fakeJobReader{readErr: errors.New("connection refused")}

	w, body := doGet(t, newJobRouter(store), "/api/v1/jobs/job-1")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, false, body["success"])
}
