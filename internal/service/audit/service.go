package audit

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jwalitptl/triage-api/internal/model"
)

// Service writes the consultation audit trail as JSON lines. It never logs
// symptoms or demographics, only the fingerprint and outcome.
type Service struct {
	zl *zap.Logger
}

func NewService(zl *zap.Logger) *Service {
	if zl == nil {
		zl = zap.NewNop()
	}
	return &Service{zl: zl.Named("audit")}
}

// NewFileService builds a production JSON logger writing to path, or stdout
// when path is empty.
func NewFileService(path string) (*Service, error) {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if path != "" {
		cfg.OutputPaths = []string{path}
	}
	zl, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build audit logger: %w", err)
	}
	return NewService(zl), nil
}

// Entry is one audited consultation.
type Entry struct {
	RequestID  string
	PatientRef string
	Result     *model.DiagnosisResult
	Persisted  bool
}

func (s *Service) LogConsultation(_ context.Context, e Entry) {
	r := e.Result
	fields := []zap.Field{
		zap.String("session_id", r.SessionID.String()),
		zap.String("urgency", r.Urgency.String()),
		zap.String("patient_ref", e.PatientRef),
		zap.Int("conditions", len(r.PossibleConditions)),
		zap.Int("stage_errors", len(r.StageErrors)),
		zap.Bool("degraded", r.Degraded),
		zap.Bool("persisted", e.Persisted),
		zap.Duration("processing_time", r.ProcessingTime),
	}
	if e.RequestID != "" {
		fields = append(fields, zap.String("request_id", e.RequestID))
	}
	if top, ok := r.TopCondition(); ok {
		fields = append(fields, zap.String("top_condition", top.ID))
	}
	if r.ConfidenceAnalysis != nil {
		fields = append(fields, zap.Float64("overall_confidence", r.ConfidenceAnalysis.OverallConfidence))
	}

	if r.Urgency == model.UrgencyEmergency {
		s.zl.Warn("emergency consultation", fields...)
		return
	}
	s.zl.Info("consultation", fields...)
}

func (s *Service) Sync() error {
	return s.zl.Sync()
}
