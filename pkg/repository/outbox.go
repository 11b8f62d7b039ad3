package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/triage-api/internal/model"
)

// OutboxRepository is the subset of the outbox store used by pkg/worker.
type OutboxRepository interface {
	// ClaimPending moves up to limit due events to processing and returns them.
	ClaimPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
