// Package engine interprets compiled machines. The engine walks one node at
// a time, enumerates the tools eligible at that node and suspends until an
// external decider picks one. Applying the decision either transitions the
// run or mutates its private runtime graph (meta-programming).
//
// The two-phase API (EnumerateTools / ApplyDecision) keeps scheduling with
// the caller; Execute wraps both phases in a blocking loop for callers that
// just want the run driven to completion.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/christopherdebeer/dygram/extension"
	"github.com/christopherdebeer/dygram/internal/idgen"
	"github.com/christopherdebeer/dygram/model"
	"github.com/christopherdebeer/dygram/policy"
	"github.com/christopherdebeer/dygram/progress"
	"github.com/christopherdebeer/dygram/runtime/evaluator"
	"github.com/christopherdebeer/dygram/runtime/execution"
	"github.com/christopherdebeer/dygram/service/dao"
	"github.com/christopherdebeer/dygram/service/decider"
	"github.com/christopherdebeer/dygram/service/event"
	"github.com/christopherdebeer/dygram/tracing"
)

// Engine drives machine runs.
type Engine struct {
	runs            dao.Service[string, execution.Run]
	events          *event.Service
	decider         decider.Service
	types           *extension.Types
	evaluator       *evaluator.Evaluator
	decisionTimeout time.Duration
	decisionRetries int
	maxSteps        int
}

// New creates an engine.
func New(options ...Option) *Engine {
	engine := &Engine{
		types:           extension.NewTypes(),
		evaluator:       evaluator.New(),
		decisionTimeout: 30 * time.Second,
		decisionRetries: 1,
		maxSteps:        1000,
	}
	for _, option := range options {
		option(engine)
	}
	return engine
}

// NewRun creates and persists a run over the given machine.
func (e *Engine) NewRun(ctx context.Context, machine *model.Machine, initialState map[string]interface{}) (*execution.Run, error) {
	run := execution.NewRun(idgen.New(), machine, initialState, execution.WithTypes(e.types))
	if run.Current == 0 {
		return nil, fmt.Errorf("machine %q has no nodes to execute", machine.Title)
	}
	run.SetState(execution.RunStateRunning)
	_, span := tracing.StartSpan(ctx, "machine.run", "")
	run.Span = span.WithAttributes(map[string]string{
		"run.id":        run.ID,
		"machine.title": machine.Title,
	})
	if e.runs != nil {
		if err := e.runs.Save(ctx, run); err != nil {
			return nil, err
		}
	}
	e.publish(ctx, run, event.TypeRunStarted, "", nil)
	return run, nil
}

// Execute drives the run until it reaches a terminal state, the decider ends
// the turn, the step budget is exhausted or ctx is cancelled.
func (e *Engine) Execute(ctx context.Context, run *execution.Run) (*execution.RunOutput, error) {
	if e.decider == nil {
		return nil, fmt.Errorf("engine has no decider configured")
	}
	started := time.Now()
	for steps := 0; ; steps++ {
		if err := ctx.Err(); err != nil {
			run.SetState(execution.RunStateCancelled)
			return e.output(run, started, false), err
		}
		if steps >= e.maxSteps {
			run.RecordError(fmt.Sprintf("step budget %d exhausted", e.maxSteps))
			run.SetState(execution.RunStateFailed)
			return e.output(run, started, false), fmt.Errorf("run %s exceeded %d steps", run.ID, e.maxSteps)
		}

		toolSet := e.EnumerateTools(ctx, run)
		if toolSet.IsTerminal() {
			run.SetState(execution.RunStateCompleted)
			e.finish(ctx, run)
			return e.output(run, started, false), nil
		}

		run.SetState(execution.RunStateWaitForDecision)
		response, err := e.decide(ctx, run, toolSet)
		if err != nil {
			run.RecordError(err.Error())
			run.SetState(execution.RunStateFailed)
			e.finish(ctx, run)
			return e.output(run, started, true), err
		}
		run.SetState(execution.RunStateRunning)
		progress.UpdateCtx(ctx, progress.Delta{Decisions: 1})

		if response.StopReason != decider.StopReasonToolUse || response.Choice == nil {
			run.SetState(execution.RunStateCompleted)
			e.finish(ctx, run)
			return e.output(run, started, false), nil
		}
		if _, err = e.ApplyDecision(ctx, run, response); err != nil {
			run.RecordError(err.Error())
			progress.UpdateCtx(ctx, progress.Delta{Errors: 1})
		}
		if e.runs != nil {
			_ = e.runs.Save(ctx, run)
		}
	}
}

// decide calls the decider with the configured timeout, retrying on expiry
// before declaring the run faulted.
func (e *Engine) decide(ctx context.Context, run *execution.Run, toolSet *ToolSet) (*decider.Response, error) {
	request := e.buildRequest(run, toolSet)
	attempts := e.decisionRetries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		decisionCtx := ctx
		cancel := func() {}
		if e.decisionTimeout > 0 {
			decisionCtx, cancel = context.WithTimeout(ctx, e.decisionTimeout)
		}
		started := time.Now()
		response, err := e.decider.Decide(decisionCtx, request)
		cancel()
		if err == nil {
			e.publishDecision(ctx, run, toolSet, response, time.Since(started))
			return response, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("decision timed out after %d attempt(s): %w", attempts, lastErr)
}

func (e *Engine) publishDecision(ctx context.Context, run *execution.Run, toolSet *ToolSet, response *decider.Response, took time.Duration) {
	tool := ""
	if response.Choice != nil {
		tool = response.Choice.Tool
	}
	e.publish(ctx, run, event.TypeDecision, tool, map[string]interface{}{
		"node":       toolSet.Path,
		"stopReason": response.StopReason,
		"reasoning":  response.Reasoning,
		"tookMs":     took.Milliseconds(),
	})
}

func (e *Engine) finish(ctx context.Context, run *execution.Run) {
	e.publish(ctx, run, event.TypeRunFinished, "", map[string]interface{}{
		"state": string(run.GetState()),
	})
	if e.runs != nil {
		_ = e.runs.Save(ctx, run)
	}
	if run.Span != nil {
		tracing.EndSpan(run.Span, nil)
	}
}

func (e *Engine) output(run *execution.Run, started time.Time, timedOut bool) *execution.RunOutput {
	return &execution.RunOutput{
		RunID:     run.ID,
		State:     run.GetState(),
		FinalNode: run.ActivePath(),
		Context:   run.Session.GetAll(),
		Errors:    append([]string(nil), run.Errors...),
		TimeTaken: time.Since(started),
		Timeout:   timedOut,
	}
}

func (e *Engine) publish(ctx context.Context, run *execution.Run, eventType, tool string, data map[string]interface{}) {
	if e.events == nil {
		return
	}
	publisher, err := event.PublisherOf[map[string]interface{}](e.events)
	if err != nil {
		return
	}
	_ = publisher.Publish(ctx, event.NewEvent(&event.Context{
		RunID:     run.ID,
		Node:      run.ActivePath(),
		EventType: eventType,
		Tool:      tool,
	}, data))
}

// runPolicy resolves the effective policy: context-bound first, then the
// run's persisted config.
func runPolicy(ctx context.Context, run *execution.Run) *policy.Policy {
	if p := policy.FromContext(ctx); p != nil {
		return p
	}
	return policy.FromConfig(run.Policy)
}
