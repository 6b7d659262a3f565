package aiclient

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func TestClient_ClassifyText(t *testing.T) {
	var gotPath string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"type": "expense",
			"message": "Logged ₹200 for lunch",
			"data": {"amount": 200, "date": "2024-01-01", "category": "Food"}
		}`))
	}))
	defer srv.Close()

	client := NewClient(&Config{BaseURL: srv.URL}, testLogger())

	outcome, err := client.ClassifyText(context.Background(), "I spent 200 on lunch", "u1")
	require.NoError(t, err)

	assert.Equal(t, classifyTextPath, gotPath)
	assert.Equal(t, "I spent 200 on lunch", gotBody["text"])
	assert.Equal(t, "u1", gotBody["user_id"])

	assert.Equal(t, KindExpense, outcome.Kind)
	assert.Equal(t, "Logged ₹200 for lunch", outcome.Reply)
	require.NotNil(t, outcome.Expense)
	assert.Equal(t, float64(200), outcome.Expense.Amount)
}

func TestClient_ClassifyReceipt(t *testing.T) {
	var gotPath string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"type": "expense",
			"message": {"output": "Receipt logged"},
			"data": {"amount": 899, "date": "2024-02-02", "category": "Groceries"}
		}`))
	}))
	defer srv.Close()

	client := NewClient(&Config{BaseURL: srv.URL}, testLogger())

	outcome, err := client.ClassifyReceipt(context.Background(), "https://uploads.example.com/r1.jpg", "u1")
	require.NoError(t, err)

	assert.Equal(t, classifyReceiptPath, gotPath)
	assert.Equal(t, "https://uploads.example.com/r1.jpg", gotBody["image_url"])

	assert.Equal(t, "Receipt logged", outcome.Reply)
	require.NotNil(t, outcome.Expense)
	assert.Equal(t, "Groceries", outcome.Expense.Category)
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(&Config{BaseURL: srv.URL}, testLogger())

	outcome, err := client.ClassifyText(context.Background(), "hello", "u1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.Contains(t, err.Error(), "502")
	assert.Nil(t, outcome)
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	client := NewClient(&Config{BaseURL: srv.URL}, testLogger())

	_, err := client.ClassifyText(context.Background(), "hello", "u1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestClient_InvalidResponseShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"type": "expense", "message": "ok", "data": {"category": "Food"}}`))
	}))
	defer srv.Close()

	client := NewClient(&Config{BaseURL: srv.URL}, testLogger())

	_, err := client.ClassifyText(context.Background(), "hello", "u1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestClient_ContextCanceled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	client := NewClient(&Config{BaseURL: srv.URL}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ClassifyText(ctx, "hello", "u1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}
