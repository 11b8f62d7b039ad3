package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/internal/repository"
	"github.com/jwalitptl/triage-api/pkg/errors"
)

const defaultListLimit = 50

type consultationRepository struct {
	BaseRepository
	outbox repository.OutboxRepository
}

func NewConsultationRepository(base BaseRepository, outbox repository.OutboxRepository) repository.ConsultationRepository {
	return &consultationRepository{BaseRepository: base, outbox: outbox}
}

func (r *consultationRepository) CreateWithEvents(ctx context.Context, c *model.Consultation, events []*model.OutboxEvent) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO consultations (
				id, session_id, urgency, top_condition_id, overall_confidence,
				patient_ref, sealed_input, result, degraded, created_at
			) VALUES (
				:id, :session_id, :urgency, :top_condition_id, :overall_confidence,
				:patient_ref, :sealed_input, :result, :degraded, :created_at
			)
		`
		if _, err := tx.NamedExecContext(ctx, query, c); err != nil {
			return fmt.Errorf("failed to insert consultation: %w", err)
		}
		for _, evt := range events {
			if err := r.outbox.CreateTx(ctx, tx, evt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *consultationRepository) GetBySession(ctx context.Context, sessionID uuid.UUID) (*model.Consultation, error) {
	query := `
		SELECT id, session_id, urgency, top_condition_id, overall_confidence,
			patient_ref, sealed_input, result, degraded, created_at
		FROM consultations
		WHERE session_id = $1
	`
	var c model.Consultation
	if err := r.db.GetContext(ctx, &c, query, sessionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFound("consultation", err)
		}
		return nil, fmt.Errorf("failed to get consultation: %w", err)
	}
	return &c, nil
}

func (r *consultationRepository) List(ctx context.Context, filters *model.ConsultationFilters) ([]*model.Consultation, error) {
	limit := defaultListLimit
	var urgency *string
	if filters != nil {
		if filters.Limit > 0 {
			limit = filters.Limit
		}
		if filters.Urgency != "" {
			urgency = &filters.Urgency
		}
	}

	query := `
		SELECT id, session_id, urgency, top_condition_id, overall_confidence,
			patient_ref, degraded, created_at
		FROM consultations
		WHERE ($1::text IS NULL OR urgency = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`
	consultations := []*model.Consultation{}
	if err := r.db.SelectContext(ctx, &consultations, query, urgency, limit); err != nil {
		return nil, fmt.Errorf("failed to list consultations: %w", err)
	}
	return consultations, nil
}
