package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rookiemaniesh/trackaro/internal/api/domain"
	"github.com/rookiemaniesh/trackaro/internal/api/producer"
	"github.com/rookiemaniesh/trackaro/internal/config"
)

type fakeEnqueuer struct {
	enqueueErr error
	calls      []enqueueCall
}

type enqueueCall struct {
	queueName string
	req       producer.Request
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, queueName string, req producer.Request) (string, error) {
	if f.enqueueErr != nil {
		return "", f.enqueueErr
	}
	f.calls = append(f.calls, enqueueCall{queueName: queueName, req: req})
	return fmt.Sprintf("job-%d", len(f.calls)), nil
}

func newChatRouter(p *fakeEnqueuer) *gin.Engine {
	gin.SetMode(gin.TestMode)

	h := NewChatHandler(&Dependencies{
		Logger:   testLogger(),
		Producer: p,
	})

	r := gin.New()
	r.POST("/api/v1/chat/messages", h.SendMessage)
	r.POST("/api/v1/chat/receipts", h.SubmitReceipt)
	return r
}

func doPost(t *testing.T, r *gin.Engine, url string, payload interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestSendMessage(t *testing.T) {
	p := &fakeEnqueuer{}
	r := newChatRouter(p)

	w, body := doPost(t, r, "/api/v1/chat/messages", gin.H{
		"user_id": "u1",
		"content": "I spent 200 on lunch",
		"source":  "web",
	})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, true, body["success"])

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "job-1", data["jobId"])
	assert.Equal(t, domain.JobStateWaiting, data["state"])

	require.Len(t, p.calls, 1)
	assert.Equal(t, config.QueueAIProcessing, p.calls[0].queueName)
	assert.Equal(t, "u1", p.calls[0].req.UserID)
	assert.Equal(t, "I spent 200 on lunch", p.calls[0].req.Content)
}

func TestSendMessage_InvalidBody(t *testing.T) {
	tests := []struct {
		name    string
		payload gin.H
	}{
		{
			name:    "missing user id",
			payload: gin.H{"content": "hi", "source": "web"},
		},
		{
			name:    "missing content",
			payload: gin.H{"user_id": "u1", "source": "web"},
		},
		{
			name:    "bad source",
			payload: gin.H{"user_id": "u1", "content": "hi", "source": "sms"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeEnqueuer{}
			r := newChatRouter(p)

			w, body := doPost(t, r, "/api/v1/chat/messages", tt.payload)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, false, body["success"])
			assert.Empty(t, p.calls)
		})
	}
}

func TestSendMessage_BrokerUnavailable(t *testing.T) {
	p := &fakeEnqueuer{enqueueErr: fmt.Errorf("%w: connection refused", domain.ErrBrokerUnavailable)}
	r := newChatRouter(p)

	w, body := doPost(t, r, "/api/v1/chat/messages", gin.H{
		"user_id": "u1",
		"content": "hello",
		"source":  "web",
	})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, false, body["success"])
}

func TestSendMessage_UnknownUser(t *testing.T) {
	p := &fakeEnqueuer{enqueueErr: fmt.Errorf("%w: ghost", domain.ErrUnknownUser)}
	r := newChatRouter(p)

	w, body := doPost(t, r, "/api/v1/chat/messages", gin.H{
		"user_id": "ghost",
		"content": "hello",
		"source":  "web",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, body["success"])
}

func TestSubmitReceipt(t *testing.T) {
	p := &fakeEnqueuer{}
	r := newChatRouter(p)

	w, body := doPost(t, r, "/api/v1/chat/receipts", gin.H{
		"user_id":   "u1",
		"image_url": "https://uploads.example.com/receipts/r1.jpg",
		"source":    "telegram",
	})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, true, body["success"])

	require.Len(t, p.calls, 1)
	assert.Equal(t, config.QueueOCRProcessing, p.calls[0].queueName)
	assert.Equal(t, "https://uploads.example.com/receipts/r1.jpg", p.calls[0].req.Content)
	assert.Equal(t, domain.SourceTelegram, p.calls[0].req.Source)
}
