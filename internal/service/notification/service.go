package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jwalitptl/triage-api/internal/email"
	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/pkg/logger"
)

const sendTimeout = 10 * time.Second

// Service sends best-effort emergency alerts to the on-call address. Sends run
// in the background and never block or fail a diagnosis.
type Service struct {
	emailSvc email.Service
	onCall   string
	log      *logger.Logger
	wg       sync.WaitGroup
}

func NewService(emailSvc email.Service, onCall string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{emailSvc: emailSvc, onCall: onCall, log: log}
}

// NotifyEmergency queues an alert for EMERGENCY results and reports whether
// one was queued.
func (s *Service) NotifyEmergency(result *model.DiagnosisResult) bool {
	if s == nil || s.emailSvc == nil || result == nil || result.Urgency != model.UrgencyEmergency {
		return false
	}

	subject := fmt.Sprintf("[TRIAGE] Emergency detected (session %s)", result.SessionID)
	body := alertBody(result)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := s.emailSvc.SendCustom(ctx, s.onCall, subject, body); err != nil {
			s.log.Error(err, "failed to send emergency alert", "session_id", result.SessionID.String())
			return
		}
		s.log.Info("emergency alert sent", "session_id", result.SessionID.String())
	}()
	return true
}

// Wait blocks until queued alerts have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func alertBody(r *model.DiagnosisResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\n", r.SessionID)
	fmt.Fprintf(&b, "Time: %s\n", r.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "Urgency: %s\n", strings.ToUpper(r.Urgency.String()))
	if r.EmergencyAssessment != nil {
		for _, p := range r.EmergencyAssessment.TriggeredPatterns {
			fmt.Fprintf(&b, "Pattern: %s (score %.2f)\n", p.Name, p.Score)
		}
		if len(r.EmergencyAssessment.RedFlags) > 0 {
			fmt.Fprintf(&b, "Red flags: %s\n", strings.Join(r.EmergencyAssessment.RedFlags, ", "))
		}
	}
	if top, ok := r.TopCondition(); ok {
		fmt.Fprintf(&b, "Top condition: %s (%.2f)\n", top.Name, top.Probability)
	}
	b.WriteString("\nNext steps:\n")
	for _, step := range r.NextSteps {
		fmt.Fprintf(&b, "- %s\n", step)
	}
	return b.String()
}
