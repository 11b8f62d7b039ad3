// Package embedding turns text into vectors for similarity matching.
// A missing or failing provider is reported as ErrUnavailable so callers can
// fall back to rule-only matching.
package embedding

import (
	"context"
	"errors"

	"gonum.org/v1/gonum/floats"
)

var ErrUnavailable = errors.New("embedding provider unavailable")

type Provider interface {
	Encode(ctx context.Context, text string) ([]float32, error)
}

// NullProvider is the provider used when no embedding backend is configured.
type NullProvider struct{}

func (NullProvider) Encode(context.Context, string) ([]float32, error) {
	return nil, ErrUnavailable
}

// Cosine returns the cosine similarity of a and b, or 0 when it is undefined.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	x, y := widen(a), widen(b)
	na, nb := floats.Norm(x, 2), floats.Norm(y, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(x, y) / (na * nb)
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
