package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/pkg/logger"
	"github.com/jwalitptl/triage-api/pkg/messaging"
	"github.com/jwalitptl/triage-api/pkg/metrics"
)

type fakeRepo struct {
	mu        sync.Mutex
	pending   []*model.OutboxEvent
	processed []uuid.UUID
	retried   map[uuid.UUID]time.Time
	failed    []uuid.UUID
	deleted   time.Time
	claimErr  error
}

func (r *fakeRepo) ClaimPending(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimErr != nil {
		return nil, r.claimErr
	}
	if limit > len(r.pending) {
		limit = len(r.pending)
	}
	out := r.pending[:limit]
	r.pending = r.pending[limit:]
	return out, nil
}

func (r *fakeRepo) MarkProcessed(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed = append(r.processed, id)
	return nil
}

func (r *fakeRepo) MarkRetry(_ context.Context, id uuid.UUID, _ string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.retried == nil {
		r.retried = make(map[uuid.UUID]time.Time)
	}
	r.retried[id] = at
	return nil
}

func (r *fakeRepo) MarkFailed(_ context.Context, id uuid.UUID, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, id)
	return nil
}

func (r *fakeRepo) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	r.deleted = before
	return 3, nil
}

type fakeBroker struct {
	mu        sync.Mutex
	failFor   map[string]int
	published map[string][]messaging.Message
	calls     int
}

func (b *fakeBroker) Publish(_ context.Context, channel string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	msg := message.(messaging.Message)
	if b.failFor[msg.ID] > 0 {
		b.failFor[msg.ID]--
		return errors.New("connection refused")
	}
	if b.published == nil {
		b.published = make(map[string][]messaging.Message)
	}
	b.published[channel] = append(b.published[channel], msg)
	return nil
}

func (b *fakeBroker) Subscribe(context.Context, string) (<-chan []byte, error) { return nil, nil }
func (b *fakeBroker) Close() error                                             { return nil }

func event(t *testing.T, eventType string, retries int) *model.OutboxEvent {
	t.Helper()
	evt, err := model.NewOutboxEvent(eventType, map[string]string{"session_id": "s"})
	require.NoError(t, err)
	evt.RetryCount = retries
	return evt
}

func newProcessor(t *testing.T, repo *fakeRepo, broker *fakeBroker) (*OutboxProcessor, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	p, err := NewOutboxProcessor(repo, broker, OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
		MaxRetries:    3,
		ChannelPrefix: "triage",
	}, logger.Nop(), m)
	require.NoError(t, err)
	p.sleep = func(context.Context, time.Duration) error { return nil }
	return p, m
}

func TestProcessBatchPublishesAndMarks(t *testing.T) {
	ok := event(t, model.EventConsultationCompleted, 0)
	flaky := event(t, model.EventEmergencyDetected, 0)
	repo := &fakeRepo{pending: []*model.OutboxEvent{ok, flaky}}
	broker := &fakeBroker{failFor: map[string]int{flaky.ID.String(): 1}}
	p, m := newProcessor(t, repo, broker)

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.Equal(t, []uuid.UUID{ok.ID, flaky.ID}, repo.processed)
	require.Len(t, broker.published["triage:consultation.completed"], 1)
	msg := broker.published["triage:consultation.completed"][0]
	assert.Equal(t, model.EventConsultationCompleted, msg.Type)
	assert.JSONEq(t, `{"session_id":"s"}`, string(msg.Payload))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxRetries.WithLabelValues(model.EventEmergencyDetected)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutboxEventsProcessed))
}

func TestProcessBatchSchedulesRetryThenFails(t *testing.T) {
	fresh := event(t, model.EventConsultationCompleted, 0)
	exhausted := event(t, model.EventConsultationCompleted, 2)
	repo := &fakeRepo{pending: []*model.OutboxEvent{fresh, exhausted}}
	broker := &fakeBroker{failFor: map[string]int{fresh.ID.String(): 5, exhausted.ID.String(): 5}}
	p, m := newProcessor(t, repo, broker)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, n)
	assert.Empty(t, repo.processed)
	assert.Equal(t, now.Add(time.Second), repo.retried[fresh.ID])
	assert.Equal(t, []uuid.UUID{exhausted.ID}, repo.failed)
	assert.Equal(t, 4, broker.calls)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutboxEventsFailed))
}

func TestProcessBatchClaimError(t *testing.T) {
	repo := &fakeRepo{claimErr: errors.New("db down")}
	p, m := newProcessor(t, repo, &fakeBroker{})

	_, err := p.ProcessBatch(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DatabaseOperations.WithLabelValues("claim_pending", "error")))
}

func TestNewOutboxProcessorRejectsBadConfig(t *testing.T) {
	_, err := NewOutboxProcessor(&fakeRepo{}, &fakeBroker{}, OutboxProcessorConfig{}, logger.Nop(), nil)
	assert.Error(t, err)
}

func TestCleanup(t *testing.T) {
	repo := &fakeRepo{}
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	w := NewOutboxCleanupWorker(repo, 24*time.Hour, time.Hour, logger.Nop(), m)
	now := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, int64(3), w.Cleanup(context.Background(), now))
	assert.Equal(t, now.Add(-24*time.Hour), repo.deleted)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.OutboxEventsDeleted))
}

func TestMessageEnvelopeJSON(t *testing.T) {
	raw, err := json.Marshal(messaging.Message{ID: "1", Type: "t", Payload: json.RawMessage(`{"a":1}`)})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"payload":{"a":1}`)
}
