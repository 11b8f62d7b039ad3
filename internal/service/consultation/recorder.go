package consultation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/internal/repository"
	"github.com/jwalitptl/triage-api/internal/service/audit"
	"github.com/jwalitptl/triage-api/internal/service/notification"
	"github.com/jwalitptl/triage-api/pkg/logger"
	"github.com/jwalitptl/triage-api/pkg/metrics"
	"github.com/jwalitptl/triage-api/pkg/security"
)

// Recorder stores finished consultations. Every step is optional: with no
// repository configured it still audits and alerts.
type Recorder struct {
	repo        repository.ConsultationRepository
	sealer      security.Encryptor
	fingerprint *security.Fingerprinter
	audit       *audit.Service
	notifier    *notification.Service
	log         *logger.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

type Option func(*Recorder)

func WithRepository(repo repository.ConsultationRepository) Option {
	return func(r *Recorder) { r.repo = repo }
}

func WithSealer(s security.Encryptor) Option {
	return func(r *Recorder) { r.sealer = s }
}

func WithFingerprinter(f *security.Fingerprinter) Option {
	return func(r *Recorder) { r.fingerprint = f }
}

func WithAudit(a *audit.Service) Option {
	return func(r *Recorder) { r.audit = a }
}

func WithNotifier(n *notification.Service) Option {
	return func(r *Recorder) { r.notifier = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

func NewRecorder(log *logger.Logger, opts ...Option) *Recorder {
	if log == nil {
		log = logger.Nop()
	}
	r := &Recorder{
		sealer: security.NopEncryptor{},
		log:    log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LogConsultation persists the consultation with its outbox events, then
// audits it and queues an emergency alert when needed. It reports whether the
// consultation was stored; without a repository nothing is stored and it
// reports true.
func (r *Recorder) LogConsultation(ctx context.Context, input *model.SymptomInput, result *model.DiagnosisResult) bool {
	if input == nil || result == nil {
		return false
	}
	log := r.log.WithContext(ctx)
	patientRef := r.patientRef(input.PatientInfo)

	persisted := true
	if r.repo != nil {
		if err := r.persist(ctx, input, result, patientRef); err != nil {
			log.Error(err, "failed to persist consultation", "session_id", result.SessionID.String())
			r.countDB("create_consultation", "error")
			persisted = false
		} else {
			r.countDB("create_consultation", "success")
		}
	}

	if r.audit != nil {
		r.audit.LogConsultation(ctx, audit.Entry{
			RequestID:  logger.RequestID(ctx),
			PatientRef: patientRef,
			Result:     result,
			Persisted:  persisted && r.repo != nil,
		})
	}
	if r.notifier.NotifyEmergency(result) {
		log.Warn("emergency alert queued", "session_id", result.SessionID.String())
	}
	return persisted
}

func (r *Recorder) persist(ctx context.Context, input *model.SymptomInput, result *model.DiagnosisResult, patientRef string) error {
	c, err := r.build(input, result, patientRef)
	if err != nil {
		return err
	}
	events, err := r.events(c, result)
	if err != nil {
		return err
	}
	return r.repo.CreateWithEvents(ctx, c, events)
}

func (r *Recorder) build(input *model.SymptomInput, result *model.DiagnosisResult, patientRef string) (*model.Consultation, error) {
	rawInput, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input: %w", err)
	}
	sealed, err := r.sealer.Encrypt(rawInput)
	if err != nil {
		return nil, fmt.Errorf("failed to seal input: %w", err)
	}
	rawResult, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	c := &model.Consultation{
		ID:          uuid.New(),
		SessionID:   result.SessionID,
		Urgency:     result.Urgency.String(),
		PatientRef:  patientRef,
		SealedInput: sealed,
		Result:      rawResult,
		Degraded:    result.Degraded,
		CreatedAt:   r.now().UTC(),
	}
	if top, ok := result.TopCondition(); ok {
		id := top.ID
		c.TopConditionID = &id
	}
	if result.ConfidenceAnalysis != nil {
		conf := result.ConfidenceAnalysis.OverallConfidence
		c.OverallConfidence = &conf
	}
	return c, nil
}

func (r *Recorder) events(c *model.Consultation, result *model.DiagnosisResult) ([]*model.OutboxEvent, error) {
	payload := model.ConsultationEvent{
		SessionID:  c.SessionID,
		Urgency:    c.Urgency,
		PatientRef: c.PatientRef,
		OccurredAt: c.CreatedAt,
	}
	if c.TopConditionID != nil {
		payload.TopConditionID = *c.TopConditionID
	}
	if c.OverallConfidence != nil {
		payload.OverallConfidence = *c.OverallConfidence
	}
	if result.EmergencyAssessment != nil {
		for _, p := range result.EmergencyAssessment.TriggeredPatterns {
			payload.Patterns = append(payload.Patterns, p.Name)
		}
	}

	types := []string{model.EventConsultationCompleted}
	if result.Urgency == model.UrgencyEmergency {
		types = append(types, model.EventEmergencyDetected)
	}

	events := make([]*model.OutboxEvent, 0, len(types))
	for _, t := range types {
		evt, err := model.NewOutboxEvent(t, payload)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s event: %w", t, err)
		}
		events = append(events, evt)
	}
	return events, nil
}

func (r *Recorder) patientRef(p model.PatientContext) string {
	if r.fingerprint == nil {
		return ""
	}
	return r.fingerprint.Fingerprint(p.Age, p.Gender, p.MedicalHistory, p.Medications, p.Allergies)
}

func (r *Recorder) countDB(op, status string) {
	if r.metrics != nil {
		r.metrics.DatabaseOperations.WithLabelValues(op, status).Inc()
	}
}
