package producer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rookiemaniesh/trackaro/internal/api/domain"
	"github.com/rookiemaniesh/trackaro/internal/api/model"
	"github.com/rookiemaniesh/trackaro/internal/config"
)

type fakeStore struct {
	users        map[string]bool
	jobs         map[string]*model.Job
	createErr    error
	existsErr    error
	deletedJobs  []string
	createdOrder []string
}

func newFakeStore(users ...string) *fakeStore {
	s := &fakeStore{
		users: make(map[string]bool),
		jobs:  make(map[string]*model.Job),
	}
	for _, u := range users {
		s.users[u] = true
	}
	return s
}

func (s *fakeStore) CreateJob(_ context.Context, job *model.Job) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.jobs[job.JobID] = job
	s.createdOrder = append(s.createdOrder, job.JobID)
	return nil
}

func (s *fakeStore) DeleteJob(_ context.Context, jobID string) error {
	delete(s.jobs, jobID)
	s.deletedJobs = append(s.deletedJobs, jobID)
	return nil
}

func (s *fakeStore) UserExists(_ context.Context, userID string) (bool, error) {
	if s.existsErr != nil {
		return false, s.existsErr
	}
	return s.users[userID], nil
}

type fakePublisher struct {
	publishErr error
	published  []publishedMsg
}

type publishedMsg struct {
	routingKey string
	body       []byte
}

func (p *fakePublisher) PublishWithRetry(_ context.Context, routingKey string, body []byte, _ string) error {
	if p.publishErr != nil {
		return p.publishErr
	}
	p.published = append(p.published, publishedMsg{routingKey: routingKey, body: body})
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func validRequest() Request {
	return Request{
		UserID:  "u1",
		Content: "I spent 200 on lunch",
		Source:  domain.SourceWeb,
	}
}

func TestProducer_Enqueue(t *testing.T) {
	store := newFakeStore("u1")
	publisher := &fakePublisher{}
	p := NewProducer(testLogger(), store, publisher)

	jobID, err := p.Enqueue(context.Background(), config.QueueAIProcessing, validRequest())
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	// Job is durably recorded in the waiting state before Enqueue returns
	job, ok := store.jobs[jobID]
	require.True(t, ok)
	assert.Equal(t, domain.JobStateWaiting, job.State)
	assert.Equal(t, config.QueueAIProcessing, job.QueueName)
	assert.Equal(t, 0, job.Progress)

	var payload model.JobPayload
	require.NoError(t, json.Unmarshal(job.Payload, &payload))
	assert.Equal(t, "u1", payload.UserID)
	assert.Equal(t, "I spent 200 on lunch", payload.Content)
	assert.Equal(t, domain.SourceWeb, payload.Source)

	// Exactly one message on the queue, carrying the job id
	require.Len(t, publisher.published, 1)
	assert.Equal(t, config.QueueAIProcessing, publisher.published[0].routingKey)

	var msg struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(publisher.published[0].body, &msg))
	assert.Equal(t, jobID, msg.JobID)
}

func TestProducer_Enqueue_DuplicatesAllowed(t *testing.T) {
	store := newFakeStore("u1")
	publisher := &fakePublisher{}
	p := NewProducer(testLogger(), store, publisher)

	first, err := p.Enqueue(context.Background(), config.QueueAIProcessing, validRequest())
	require.NoError(t, err)

	second, err := p.Enqueue(context.Background(), config.QueueAIProcessing, validRequest())
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Len(t, store.jobs, 2)
	assert.Len(t, publisher.published, 2)
}

func TestProducer_Enqueue_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *Request)
		wantErr error
	}{
		{
			name:    "empty user id",
			mutate:  func(r *Request) { r.UserID = "" },
			wantErr: domain.ErrInvalidRequest,
		},
		{
			name:    "empty content",
			mutate:  func(r *Request) { r.Content = "" },
			wantErr: domain.ErrInvalidRequest,
		},
		{
			name:    "content too long",
			mutate:  func(r *Request) { r.Content = strings.Repeat("x", MaxContentLength+1) },
			wantErr: domain.ErrInvalidRequest,
		},
		{
			name:    "bad source",
			mutate:  func(r *Request) { r.Source = "carrier-pigeon" },
			wantErr: domain.ErrInvalidRequest,
		},
		{
			name:    "unknown user",
			mutate:  func(r *Request) { r.UserID = "nobody" },
			wantErr: domain.ErrUnknownUser,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore("u1")
			publisher := &fakePublisher{}
			p := NewProducer(testLogger(), store, publisher)

			req := validRequest()
			tt.mutate(&req)

			_, err := p.Enqueue(context.Background(), config.QueueAIProcessing, req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			// Nothing enqueued on validation failure
			assert.Empty(t, store.jobs)
			assert.Empty(t, publisher.published)
		})
	}
}

func TestProducer_Enqueue_StoreDown(t *testing.T) {
	store := newFakeStore("u1")
	store.createErr = errors.New("connection refused")
	publisher := &fakePublisher{}
	p := NewProducer(testLogger(), store, publisher)

	_, err := p.Enqueue(context.Background(), config.QueueAIProcessing, validRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBrokerUnavailable)
	assert.Empty(t, publisher.published)
}

func TestProducer_Enqueue_PublishFails(t *testing.T) {
	store := newFakeStore("u1")
	publisher := &fakePublisher{publishErr: errors.New("connection refused")}
	p := NewProducer(testLogger(), store, publisher)

	_, err := p.Enqueue(context.Background(), config.QueueAIProcessing, validRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBrokerUnavailable)

	// The orphaned row is removed so no undeliverable job lingers
	assert.Empty(t, store.jobs)
	require.Len(t, store.deletedJobs, 1)
	assert.Equal(t, store.createdOrder[0], store.deletedJobs[0])
}
