package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/triage-api/pkg/circuitbreaker"
)

// CachedProvider memoizes vectors by text. Condition texts are encoded once per
// process and symptom texts repeat often across requests.
type CachedProvider struct {
	next  Provider
	cache *cache.Cache
}

func NewCachedProvider(next Provider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (p *CachedProvider) Encode(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if v, ok := p.cache.Get(key); ok {
		return v.([]float32), nil
	}
	vec, err := p.next.Encode(ctx, text)
	if err != nil {
		return nil, err
	}
	p.cache.SetDefault(key, vec)
	return vec, nil
}

func (p *CachedProvider) Len() int {
	return p.cache.ItemCount()
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// GuardedProvider bounds every call with a timeout and a circuit breaker.
// Any failure is reported as ErrUnavailable.
type GuardedProvider struct {
	next    Provider
	timeout time.Duration
	breaker *circuitbreaker.CircuitBreaker
}

func NewGuardedProvider(next Provider, timeout time.Duration, maxFailures int, openFor time.Duration) *GuardedProvider {
	return &GuardedProvider{
		next:    next,
		timeout: timeout,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "embedding",
			MaxRequests: maxFailures,
			Interval:    time.Minute,
			Timeout:     openFor,
			IsFailure: func(err error) bool {
				return !errors.Is(err, ErrUnavailable)
			},
		}),
	}
}

func (p *GuardedProvider) Encode(ctx context.Context, text string) ([]float32, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	var vec []float32
	err := p.breaker.Execute(func() error {
		v, err := p.next.Encode(ctx, text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return vec, nil
}

func (p *GuardedProvider) State() circuitbreaker.State {
	return p.breaker.State()
}
