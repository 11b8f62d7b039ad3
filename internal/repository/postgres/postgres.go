package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/triage-api/internal/repository"
)

// Repositories groups the stores built over one connection pool.
type Repositories struct {
	Consultations repository.ConsultationRepository
	Outbox        repository.OutboxRepository
}

func NewRepositories(db *sqlx.DB) *Repositories {
	base := NewBaseRepository(db)
	outbox := NewOutboxRepository(base)
	return &Repositories{
		Consultations: NewConsultationRepository(base, outbox),
		Outbox:        outbox,
	}
}
