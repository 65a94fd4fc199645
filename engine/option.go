package engine

import (
	"time"

	"github.com/christopherdebeer/dygram/extension"
	"github.com/christopherdebeer/dygram/runtime/execution"
	"github.com/christopherdebeer/dygram/service/dao"
	"github.com/christopherdebeer/dygram/service/decider"
	"github.com/christopherdebeer/dygram/service/event"
)

type Option func(*Engine)

// WithRunDAO sets the run store used to persist run snapshots.
func WithRunDAO(runs dao.Service[string, execution.Run]) Option {
	return func(e *Engine) {
		e.runs = runs
	}
}

// WithEventService sets the event service run lifecycle events publish to.
func WithEventService(events *event.Service) Option {
	return func(e *Engine) {
		e.events = events
	}
}

// WithDecider sets the decision maker used by Execute.
func WithDecider(service decider.Service) Option {
	return func(e *Engine) {
		e.decider = service
	}
}

// WithTypes sets the attribute type registry.
func WithTypes(types *extension.Types) Option {
	return func(e *Engine) {
		e.types = types
	}
}

// WithDecisionTimeout bounds a single decider call. Zero disables the bound.
func WithDecisionTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		e.decisionTimeout = timeout
	}
}

// WithDecisionRetries sets how many times an expired decision is retried
// before the run fails.
func WithDecisionRetries(retries int) Option {
	return func(e *Engine) {
		if retries >= 0 {
			e.decisionRetries = retries
		}
	}
}

// WithMaxSteps bounds the number of decisions Execute will drive before
// failing the run.
func WithMaxSteps(maxSteps int) Option {
	return func(e *Engine) {
		if maxSteps > 0 {
			e.maxSteps = maxSteps
		}
	}
}
