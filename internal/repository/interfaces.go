package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/triage-api/internal/model"
	pkgrepo "github.com/jwalitptl/triage-api/pkg/repository"
)

// All repository interfaces in one file
type (
	// ConsultationRepository stores completed diagnoses.
	ConsultationRepository interface {
		// CreateWithEvents writes the consultation and its outbox events in one transaction.
		CreateWithEvents(ctx context.Context, c *model.Consultation, events []*model.OutboxEvent) error
		GetBySession(ctx context.Context, sessionID uuid.UUID) (*model.Consultation, error)
		List(ctx context.Context, filters *model.ConsultationFilters) ([]*model.Consultation, error)
	}

	OutboxRepository interface {
		pkgrepo.OutboxRepository
		Create(ctx context.Context, event *model.OutboxEvent) error
		CreateTx(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error
		CountPending(ctx context.Context) (int, error)
	}
)
