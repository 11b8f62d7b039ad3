package diagnosis

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jwalitptl/triage-api/pkg/errors"
)

const (
	stageNormalize   = "normalize"
	stageMatch       = "match"
	stageEmergency   = "emergency"
	stageTreatment   = "treatment"
	stageDrugSafety  = "drug_safety"
	stageRisk        = "risk"
	stageUncertainty = "uncertainty"
)

// stageOutcome carries either a stage value or the error that replaced it.
type stageOutcome[T any] struct {
	Value T
	Err   error
}

func (o stageOutcome[T]) Failed() bool {
	return o.Err != nil
}

// runStage runs fn inside its own span. Errors and panics come back as a
// StageFailure next to the zero value.
func runStage[T any](ctx context.Context, tracer trace.Tracer, name string, fn func(context.Context) (T, error)) (out stageOutcome[T]) {
	ctx, span := tracer.Start(ctx, "stage."+name, trace.WithAttributes(attribute.String("stage", name)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			var zero T
			err := errors.NewStageFailure(name, fmt.Errorf("panic: %v", r))
			span.RecordError(err)
			span.SetStatus(codes.Error, "panic")
			out = stageOutcome[T]{Value: zero, Err: err}
		}
	}()

	v, err := fn(ctx)
	if err != nil {
		var zero T
		span.RecordError(err)
		span.SetStatus(codes.Error, name+" failed")
		if _, ok := errors.CodeOf(err); !ok {
			err = errors.NewStageFailure(name, err)
		}
		return stageOutcome[T]{Value: zero, Err: err}
	}
	return stageOutcome[T]{Value: v}
}
