package diagnosis

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jwalitptl/triage-api/internal/knowledge"
	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/internal/service/emergency"
	"github.com/jwalitptl/triage-api/internal/service/interaction"
	"github.com/jwalitptl/triage-api/internal/service/matcher"
	"github.com/jwalitptl/triage-api/internal/service/normalizer"
	"github.com/jwalitptl/triage-api/internal/service/risk"
	"github.com/jwalitptl/triage-api/internal/service/treatment"
	"github.com/jwalitptl/triage-api/internal/service/uncertainty"
	"github.com/jwalitptl/triage-api/pkg/embedding"
	"github.com/jwalitptl/triage-api/pkg/errors"
	"github.com/jwalitptl/triage-api/pkg/logger"
	"github.com/jwalitptl/triage-api/pkg/validator"
)

const tracerName = "github.com/jwalitptl/triage-api/internal/service/diagnosis"

// Stages holds the pipeline services in execution order.
type Stages struct {
	Knowledge   *knowledge.Base
	Normalizer  *normalizer.Service
	Matcher     *matcher.Service
	Emergency   *emergency.Service
	Treatment   *treatment.Service
	Interaction *interaction.Service
	Risk        *risk.Service
	Uncertainty *uncertainty.Service
}

// NewStages builds every stage over one knowledge base.
func NewStages(kb *knowledge.Base, provider embedding.Provider, log *logger.Logger) Stages {
	return Stages{
		Knowledge:   kb,
		Normalizer:  normalizer.NewService(kb),
		Matcher:     matcher.NewService(kb, provider, log),
		Emergency:   emergency.NewService(kb),
		Treatment:   treatment.NewService(kb),
		Interaction: interaction.NewService(kb),
		Risk:        risk.NewService(kb),
		Uncertainty: uncertainty.NewService(kb),
	}
}

func (s Stages) complete() bool {
	return s.Knowledge != nil && s.Normalizer != nil && s.Matcher != nil && s.Emergency != nil && s.Treatment != nil &&
		s.Interaction != nil && s.Risk != nil && s.Uncertainty != nil
}

type Option func(*Coordinator)

func WithPersistence(p PersistenceSink) Option {
	return func(c *Coordinator) { c.persistence = p }
}

func WithGuidelines(g GuidelineProvider) Option {
	return func(c *Coordinator) { c.guidelines = g }
}

func WithMetrics(m MetricsSink) Option {
	return func(c *Coordinator) { c.metrics = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Coordinator) { c.tracer = t }
}

// Coordinator runs the diagnostic pipeline and assembles the result.
type Coordinator struct {
	stages      Stages
	validate    validator.Validator
	persistence PersistenceSink
	guidelines  GuidelineProvider
	metrics     MetricsSink
	log         *logger.Logger
	tracer      trace.Tracer
	ready       atomic.Bool
}

func NewCoordinator(stages Stages, opts ...Option) *Coordinator {
	c := &Coordinator{
		stages:      stages,
		validate:    validator.New(),
		persistence: nopPersistence{},
		guidelines:  nopGuidelines{},
		metrics:     nopMetrics{},
		log:         logger.Nop(),
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize warms the optional embedding index and marks the pipeline ready.
// A missing embedding capability leaves matching rule-based only.
func (c *Coordinator) Initialize(ctx context.Context) error {
	if !c.stages.complete() {
		return errors.NewNotInitialized("diagnosis pipeline")
	}
	if err := c.stages.Matcher.Warm(ctx); err != nil {
		if !errors.IsCode(err, errors.ErrCapabilityAbsent) {
			return fmt.Errorf("failed to warm condition matcher: %w", err)
		}
		c.log.Warn("similarity matching disabled, using rule-based matching only", "error", err.Error())
	}
	c.ready.Store(true)
	c.log.Info("diagnosis pipeline initialized")
	return nil
}

func (c *Coordinator) Ready() bool {
	return c.ready.Load()
}

// pipelineState is the per-request working set shared by the merge step.
type pipelineState struct {
	input          *model.SymptomInput
	symptoms       []model.Symptom
	classification *model.SymptomClassification
	match          *model.ConditionMatch
	emergency      *model.EmergencyAssessment
	plan           *model.TreatmentPlan
	drugs          *model.DrugSafetyReport
	risk           *model.RiskAssessment
	confidence     *model.ConfidenceAnalysis
	established    model.UrgencyLevel
	stageErrors    []model.StageError
}

func (p *pipelineState) conditions() []model.ConditionCandidate {
	if p.match == nil {
		return nil
	}
	return p.match.Differential
}

func (p *pipelineState) treatments() []model.TreatmentOption {
	if p.plan == nil {
		return nil
	}
	return p.plan.Treatments
}

// Diagnose runs every stage and always returns a structurally valid result
// once the input has passed validation.
func (c *Coordinator) Diagnose(ctx context.Context, in *model.SymptomInput) (*model.DiagnosisResult, error) {
	if err := c.precheck(in); err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "diagnosis.Diagnose")
	defer span.End()

	start := time.Now()
	result := &model.DiagnosisResult{
		SessionID:  uuid.New(),
		Timestamp:  start.UTC(),
		Disclaimer: model.Disclaimer,
	}
	span.SetAttributes(attribute.String("session_id", result.SessionID.String()))

	state := &pipelineState{input: in}
	if err := c.normalize(ctx, state); err != nil {
		return nil, err
	}
	c.runPipeline(ctx, state)

	if err := c.merge(state, result); err != nil {
		c.log.Error(err, "failed to merge diagnosis, returning fallback", "session_id", result.SessionID.String())
		fallback(result, state)
	}
	result.ProcessingTime = time.Since(start)
	span.SetAttributes(
		attribute.String("urgency", result.Urgency.String()),
		attribute.Int("stage_errors", len(result.StageErrors)),
	)

	c.persist(ctx, in, result)
	c.record(result)
	return result, nil
}

// persist hands the result to the sink. A failing or panicking sink is
// logged and never affects the returned result.
func (c *Coordinator) persist(ctx context.Context, in *model.SymptomInput, result *model.DiagnosisResult) {
	sessionID := result.SessionID.String()
	defer func() {
		if r := recover(); r != nil {
			c.log.Error(fmt.Errorf("persistence panic: %v", r), "failed to record consultation", "session_id", sessionID)
		}
	}()
	if !c.persistence.LogConsultation(ctx, in, result) {
		c.log.Warn("failed to record consultation", "session_id", sessionID)
	}
}

func (c *Coordinator) precheck(in *model.SymptomInput) error {
	if !c.ready.Load() {
		return errors.NewNotInitialized("diagnosis pipeline")
	}
	if in == nil {
		return errors.NewValidation("symptom input is required", nil)
	}
	if err := c.validate.Validate(in); err != nil {
		return errors.NewValidation("invalid symptom input", err)
	}
	return nil
}

// normalize runs the first stage. A validation failure here rejects the
// request; anything else degrades to the raw symptoms.
func (c *Coordinator) normalize(ctx context.Context, state *pipelineState) error {
	in := state.input
	out := runStage(ctx, c.tracer, stageNormalize, func(context.Context) (*model.SymptomClassification, error) {
		return c.stages.Normalizer.Normalize(in.Symptoms, in.PatientInfo, in.ChiefComplaint)
	})
	if out.Failed() {
		if errors.IsCode(out.Err, errors.ErrValidation) {
			return out.Err
		}
		c.recordFailure(state, stageNormalize, out.Err)
		state.symptoms = normalizer.Clean(in.Symptoms)
		return nil
	}
	state.classification = out.Value
	state.symptoms = out.Value.CleanedSymptoms
	return nil
}

func (c *Coordinator) runPipeline(ctx context.Context, state *pipelineState) {
	patient := state.input.PatientInfo

	match := runStage(ctx, c.tracer, stageMatch, func(ctx context.Context) (*model.ConditionMatch, error) {
		return c.stages.Matcher.Match(ctx, state.symptoms, patient)
	})
	if match.Failed() {
		c.recordFailure(state, stageMatch, match.Err)
	}
	state.match = match.Value
	conditions := state.conditions()

	var (
		wg        sync.WaitGroup
		emergency stageOutcome[*model.EmergencyAssessment]
		plan      stageOutcome[*model.TreatmentPlan]
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		emergency = runStage(ctx, c.tracer, stageEmergency, func(context.Context) (*model.EmergencyAssessment, error) {
			return c.stages.Emergency.Assess(state.symptoms, state.input.ChiefComplaint), nil
		})
	}()
	go func() {
		defer wg.Done()
		plan = runStage(ctx, c.tracer, stageTreatment, func(context.Context) (*model.TreatmentPlan, error) {
			return c.stages.Treatment.Select(conditions, patient)
		})
	}()
	wg.Wait()

	if emergency.Failed() {
		c.recordFailure(state, stageEmergency, emergency.Err)
	} else {
		state.emergency = emergency.Value
		state.established = model.MaxUrgency(state.established, emergency.Value.Urgency)
	}
	if plan.Failed() {
		c.recordFailure(state, stageTreatment, plan.Err)
	} else {
		state.plan = plan.Value
		state.established = model.MaxUrgency(state.established, plan.Value.Urgency)
	}

	drugs := runStage(ctx, c.tracer, stageDrugSafety, func(context.Context) (*model.DrugSafetyReport, error) {
		return c.stages.Interaction.Check(patient, state.treatments()), nil
	})
	if drugs.Failed() {
		c.recordFailure(state, stageDrugSafety, drugs.Err)
	}
	state.drugs = drugs.Value

	riskOut := runStage(ctx, c.tracer, stageRisk, func(context.Context) (*model.RiskAssessment, error) {
		return c.stages.Risk.Assess(patient, state.symptoms, conditions)
	})
	if riskOut.Failed() {
		c.recordFailure(state, stageRisk, riskOut.Err)
	}
	state.risk = riskOut.Value

	conf := runStage(ctx, c.tracer, stageUncertainty, func(context.Context) (*model.ConfidenceAnalysis, error) {
		return c.stages.Uncertainty.Analyze(uncertainty.Input{
			Symptoms:          state.symptoms,
			Conditions:        conditions,
			Treatments:        state.treatments(),
			Patient:           patient,
			Contraindications: contraindicationCount(state.plan, state.drugs),
		})
	})
	if conf.Failed() {
		c.recordFailure(state, stageUncertainty, conf.Err)
	}
	state.confidence = conf.Value
}

// contraindicationCount totals the safety findings the uncertainty stage
// weighs: filtered treatments, drug-condition conflicts and serious
// interactions.
func contraindicationCount(plan *model.TreatmentPlan, drugs *model.DrugSafetyReport) int {
	n := 0
	if plan != nil {
		n += plan.ContraindicationsFound
	}
	if drugs != nil {
		n += len(drugs.Contraindications)
		n += drugs.SeveritySummary[model.InteractionContraindicated]
		n += drugs.SeveritySummary[model.InteractionMajor]
	}
	return n
}

func (c *Coordinator) recordFailure(state *pipelineState, stage string, err error) {
	code, _ := errors.CodeOf(err)
	state.stageErrors = append(state.stageErrors, model.StageError{
		Stage:   stage,
		Code:    int(code),
		Message: fmt.Sprintf("%s stage failed", stage),
	})
	c.log.Error(err, "pipeline stage failed", "stage", stage)
}

// merge assembles the result. Panics are converted to an error so the caller
// can fall back.
func (c *Coordinator) merge(state *pipelineState, result *model.DiagnosisResult) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewInternal(fmt.Errorf("merge panic: %v", r))
		}
	}()

	conditions := state.conditions()
	var detectorUrgency, selectorUrgency model.UrgencyLevel
	if state.emergency != nil {
		detectorUrgency = state.emergency.Urgency
	}
	if state.plan != nil {
		selectorUrgency = state.plan.Urgency
	}
	urgency := model.MaxUrgency(detectorUrgency, selectorUrgency)

	next, warnings, care := c.stages.Treatment.Guidance(urgency, conditions)
	if state.emergency != nil {
		next = prependUnique(state.emergency.Recommendations, next)
	}
	warnings = append(warnings, drugWarnings(state.drugs)...)

	result.Urgency = urgency
	result.SymptomClassification = state.classification
	result.PossibleConditions = nonNilConditions(conditions)
	result.RecommendedTreatments = nonNilTreatments(state.treatments())
	result.NextSteps = next
	result.WarningSigns = warnings
	result.WhenToSeekCare = care
	result.EmergencyAssessment = state.emergency
	result.RiskAssessment = state.risk
	result.ConfidenceAnalysis = state.confidence
	result.DrugSafety = state.drugs
	result.Explanation = c.explain(state, urgency)
	result.StageErrors = state.stageErrors
	result.Degraded = len(state.stageErrors) > 0
	return nil
}

const (
	fallbackNextStep = "Contact healthcare provider for evaluation"
	fallbackCare     = "If symptoms persist or worsen"
)

// fallback replaces a failed merge with generic safety-forward advice. The
// urgency never drops below what the stages already established.
func fallback(result *model.DiagnosisResult, state *pipelineState) {
	result.Urgency = model.MaxUrgency(model.UrgencyModerate, state.established)
	result.SymptomClassification = nil
	result.PossibleConditions = []model.ConditionCandidate{}
	result.RecommendedTreatments = []model.TreatmentOption{}
	result.NextSteps = []string{fallbackNextStep}
	result.WarningSigns = []string{"Monitor symptoms closely"}
	result.WhenToSeekCare = fallbackCare
	result.EmergencyAssessment = nil
	result.RiskAssessment = nil
	result.ConfidenceAnalysis = nil
	result.DrugSafety = nil
	result.Explanation = model.Explanation{
		ReasoningSteps:       []string{"Error occurred during analysis"},
		EvidenceSupporting:   []string{"System error"},
		EvidenceAgainst:      []string{},
		AlternativeDiagnoses: []string{},
		ConfidenceFactors:    map[string]float64{"system_error": 0},
		GuidelinesUsed:       []string{},
	}
	result.StageErrors = state.stageErrors
	result.Degraded = true
}

func (c *Coordinator) record(result *model.DiagnosisResult) {
	tags := map[string]string{"urgency": result.Urgency.String()}
	c.metrics.Record("diagnosis_processing_seconds", result.ProcessingTime.Seconds(), tags)
	c.metrics.Record("diagnosis_stage_errors", float64(len(result.StageErrors)), tags)
	if result.ConfidenceAnalysis != nil {
		c.metrics.Record("diagnosis_confidence", result.ConfidenceAnalysis.OverallConfidence, tags)
	}
}

// AssessUrgency is the quick triage path: normalize, match, then take the max
// of the detector and the condition urgency.
func (c *Coordinator) AssessUrgency(ctx context.Context, in *model.SymptomInput) (*model.UrgencyAssessment, error) {
	if err := c.precheck(in); err != nil {
		return nil, err
	}
	ctx, span := c.tracer.Start(ctx, "diagnosis.AssessUrgency")
	defer span.End()

	state := &pipelineState{input: in}
	if err := c.normalize(ctx, state); err != nil {
		return nil, err
	}

	match := runStage(ctx, c.tracer, stageMatch, func(ctx context.Context) (*model.ConditionMatch, error) {
		return c.stages.Matcher.Match(ctx, state.symptoms, in.PatientInfo)
	})
	if match.Failed() {
		c.recordFailure(state, stageMatch, match.Err)
	}
	state.match = match.Value
	conditions := state.conditions()

	emergency := runStage(ctx, c.tracer, stageEmergency, func(context.Context) (*model.EmergencyAssessment, error) {
		return c.stages.Emergency.Assess(state.symptoms, in.ChiefComplaint), nil
	})
	signalLost := false
	if emergency.Failed() {
		c.recordFailure(state, stageEmergency, emergency.Err)
		signalLost = true
	} else {
		state.emergency = emergency.Value
		state.established = model.MaxUrgency(state.established, emergency.Value.Urgency)
	}

	conditionUrgency := runStage(ctx, c.tracer, stageTreatment, func(context.Context) (model.UrgencyLevel, error) {
		return c.stages.Treatment.Urgency(conditions), nil
	})
	if conditionUrgency.Failed() {
		c.recordFailure(state, stageTreatment, conditionUrgency.Err)
		signalLost = true
	}

	urgency := model.MaxUrgency(state.established, conditionUrgency.Value)
	if signalLost {
		urgency = model.MaxUrgency(model.UrgencyModerate, urgency)
	}

	guidance := runStage(ctx, c.tracer, stageTreatment, func(context.Context) (urgencyGuidance, error) {
		next, _, care := c.stages.Treatment.Guidance(urgency, conditions)
		return urgencyGuidance{next: next, care: care}, nil
	})
	if guidance.Failed() {
		c.recordFailure(state, stageTreatment, guidance.Err)
		guidance.Value = urgencyGuidance{next: []string{fallbackNextStep}, care: fallbackCare}
	}

	next := guidance.Value.next
	if state.emergency != nil {
		next = prependUnique(state.emergency.Recommendations, next)
	}

	span.SetAttributes(attribute.String("urgency", urgency.String()))
	return &model.UrgencyAssessment{
		Urgency:          urgency,
		ConditionUrgency: conditionUrgency.Value,
		Emergency:        state.emergency,
		CareInstruction:  guidance.Value.care,
		NextSteps:        next,
		StageErrors:      state.stageErrors,
		Degraded:         len(state.stageErrors) > 0,
	}, nil
}

type urgencyGuidance struct {
	next []string
	care string
}

func drugWarnings(r *model.DrugSafetyReport) []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, i := range r.Interactions {
		if i.Severity == model.InteractionContraindicated || i.Severity == model.InteractionMajor {
			out = append(out, fmt.Sprintf("Drug interaction (%s): %s + %s - %s", i.Severity, i.Drugs[0], i.Drugs[1], i.Effect))
		}
	}
	return out
}

func prependUnique(first, rest []string) []string {
	out := make([]string, 0, len(first)+len(rest))
	seen := make(map[string]bool, len(first)+len(rest))
	for _, list := range [][]string{first, rest} {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

func nonNilConditions(c []model.ConditionCandidate) []model.ConditionCandidate {
	if c == nil {
		return []model.ConditionCandidate{}
	}
	return c
}

func nonNilTreatments(t []model.TreatmentOption) []model.TreatmentOption {
	if t == nil {
		return []model.TreatmentOption{}
	}
	return t
}
