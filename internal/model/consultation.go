package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Consultation is the stored record of one completed diagnosis. The input is
// kept sealed; PatientRef is a keyed fingerprint, never raw demographics.
type Consultation struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	SessionID         uuid.UUID       `db:"session_id" json:"session_id"`
	Urgency           string          `db:"urgency" json:"urgency_level"`
	TopConditionID    *string         `db:"top_condition_id" json:"top_condition_id,omitempty"`
	OverallConfidence *float64        `db:"overall_confidence" json:"overall_confidence,omitempty"`
	PatientRef        string          `db:"patient_ref" json:"patient_ref"`
	SealedInput       []byte          `db:"sealed_input" json:"-"`
	Result            json.RawMessage `db:"result" json:"result"`
	Degraded          bool            `db:"degraded" json:"degraded"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
}

// ConsultationEvent is the outbox payload for consultation events. It carries
// no patient data beyond the fingerprint.
type ConsultationEvent struct {
	SessionID         uuid.UUID `json:"session_id"`
	Urgency           string    `json:"urgency_level"`
	TopConditionID    string    `json:"top_condition_id,omitempty"`
	OverallConfidence float64   `json:"overall_confidence"`
	PatientRef        string    `json:"patient_ref"`
	Patterns          []string  `json:"triggered_patterns,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

type ConsultationFilters struct {
	Urgency string `form:"urgency"`
	Limit   int    `form:"limit" validate:"omitempty,min=1,max=200"`
}
