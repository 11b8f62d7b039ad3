package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/triage-api/pkg/circuitbreaker"
)

type countingProvider struct {
	calls atomic.Int32
	err   error
	delay time.Duration
}

func (p *countingProvider) Encode(ctx context.Context, text string) ([]float32, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{1, 2}, []float32{1}))
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, 0.0, Cosine(nil, nil))
}

func TestNullProvider(t *testing.T) {
	_, err := NullProvider{}.Encode(context.Background(), "fever")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOllamaClientEncode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "fever cough", req.Prompt)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"embedding": []float32{0.1, 0.2, 0.3}})
	}))
	defer server.Close()

	vec, err := NewOllamaClient(server.URL, "test-model").Encode(context.Background(), "fever cough")
	require.NoError(t, err)
	assert.Len(t, vec, 3)
}

func TestOllamaClientServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewOllamaClient(server.URL, "").Encode(context.Background(), "fever")
	assert.Error(t, err)
}

func TestCachedProviderReusesVectors(t *testing.T) {
	inner := &countingProvider{}
	p := NewCachedProvider(inner, time.Minute)

	a, err := p.Encode(context.Background(), "headache")
	require.NoError(t, err)
	b, err := p.Encode(context.Background(), "headache")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, 1, p.Len())
}

func TestCachedProviderDoesNotCacheErrors(t *testing.T) {
	inner := &countingProvider{err: errors.New("down")}
	p := NewCachedProvider(inner, time.Minute)

	_, err := p.Encode(context.Background(), "x")
	assert.Error(t, err)
	_, err = p.Encode(context.Background(), "x")
	assert.Error(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestGuardedProviderTimeout(t *testing.T) {
	inner := &countingProvider{delay: time.Second}
	p := NewGuardedProvider(inner, 10*time.Millisecond, 3, time.Minute)

	_, err := p.Encode(context.Background(), "fever")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGuardedProviderOpensBreaker(t *testing.T) {
	inner := &countingProvider{err: errors.New("connection refused")}
	p := NewGuardedProvider(inner, time.Second, 2, time.Minute)

	for i := 0; i < 2; i++ {
		_, err := p.Encode(context.Background(), "fever")
		assert.ErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, circuitbreaker.StateOpen, p.State())

	_, err := p.Encode(context.Background(), "fever")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestGuardedProviderNullDoesNotTrip(t *testing.T) {
	p := NewGuardedProvider(NullProvider{}, time.Second, 1, time.Minute)

	for i := 0; i < 3; i++ {
		_, err := p.Encode(context.Background(), "fever")
		assert.ErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, circuitbreaker.StateClosed, p.State())
}
