package engine_test

import (
	"context"
	"testing"

	"github.com/christopherdebeer/dygram/compiler"
	"github.com/christopherdebeer/dygram/engine"
	"github.com/christopherdebeer/dygram/model"
	"github.com/christopherdebeer/dygram/parser"
	"github.com/christopherdebeer/dygram/policy"
	"github.com/christopherdebeer/dygram/runtime/execution"
	"github.com/christopherdebeer/dygram/service/decider"
	"github.com/stretchr/testify/assert"
)

func compile(t *testing.T, source string) *model.Machine {
	t.Helper()
	doc, diagnostics := parser.ParseString(source)
	assert.False(t, diagnostics.HasErrors(), "parse: %v", diagnostics)
	machine, diagnostics := compiler.Compile(doc)
	assert.False(t, diagnostics.HasErrors(), "compile: %v", diagnostics)
	return machine
}

func newRun(t *testing.T, e *engine.Engine, source string) *execution.Run {
	t.Helper()
	run, err := e.NewRun(context.Background(), compile(t, source), nil)
	assert.NoError(t, err)
	return run
}

func toolNames(toolSet *engine.ToolSet) []string {
	var names []string
	for _, tool := range toolSet.Tools {
		names = append(names, tool.Name)
	}
	return names
}

func TestExecuteWalksToCompletion(t *testing.T) {
	e := engine.New(engine.WithDecider(decider.FirstTransition{}))
	run := newRun(t, e, `
init start
task work
state done
start -> work -> done
`)
	output, err := e.Execute(context.Background(), run)
	assert.NoError(t, err)
	assert.EqualValues(t, execution.RunStateCompleted, output.State)
	assert.EqualValues(t, "done", output.FinalNode)
	assert.Len(t, run.Steps, 2)
	assert.EqualValues(t, "transition_to_work", run.Steps[0].Tool)
	assert.EqualValues(t, "transition_to_done", run.Steps[1].Tool)
}

func TestExecuteEndTurnCompletes(t *testing.T) {
	e := engine.New(engine.WithDecider(decider.NewScripted()))
	run := newRun(t, e, `
init start
task work
start -> work
`)
	output, err := e.Execute(context.Background(), run)
	assert.NoError(t, err)
	assert.EqualValues(t, execution.RunStateCompleted, output.State)
	assert.EqualValues(t, "start", output.FinalNode, "end_turn stops before any transition")
}

func TestExecuteStepBudget(t *testing.T) {
	e := engine.New(
		engine.WithDecider(decider.FirstTransition{}),
		engine.WithMaxSteps(5),
	)
	run := newRun(t, e, `
init start
task ping
task pong
start -> ping
ping -> pong
pong -> ping
`)
	output, err := e.Execute(context.Background(), run)
	assert.Error(t, err)
	assert.EqualValues(t, execution.RunStateFailed, output.State)
}

func TestEnumerateGuards(t *testing.T) {
	e := engine.New()
	run := newRun(t, e, `
init start
task gated
task fallback
context config {
	ready: false
}
start -> gated {
	when: "config.ready"
}
start -> fallback {
	unless: "config.ready"
}
`)
	toolSet := e.EnumerateTools(context.Background(), run)
	names := toolNames(toolSet)
	assert.NotContains(t, names, "transition_to_gated")
	assert.Contains(t, names, "transition_to_fallback")

	// session writes override the declared attribute value
	run.Session.Set("config.ready", true)
	names = toolNames(e.EnumerateTools(context.Background(), run))
	assert.Contains(t, names, "transition_to_gated")
	assert.NotContains(t, names, "transition_to_fallback")
}

func TestEnumerateMaxVisits(t *testing.T) {
	e := engine.New()
	run := newRun(t, e, `
init start
task work
task retry
start -> work
work -> retry {
	maxVisits: 1
}
retry -> work
`)
	work := run.Machine.Find(0, "work")
	retry := run.Machine.Find(0, "retry")

	run.Transition(work, "transition_to_work", "")
	assert.Contains(t, toolNames(e.EnumerateTools(context.Background(), run)), "transition_to_retry")

	run.Transition(retry, "transition_to_retry", "")
	run.Transition(work, "transition_to_work", "")
	assert.NotContains(t, toolNames(e.EnumerateTools(context.Background(), run)), "transition_to_retry",
		"a visited target at its limit is no longer offered")
}

func TestEnumerateBidirectional(t *testing.T) {
	e := engine.New()
	run := newRun(t, e, `
init draft
task editor
draft <--> editor
`)
	toolSet := e.EnumerateTools(context.Background(), run)
	target, ok := toolSet.Target("transition_to_editor")
	assert.True(t, ok)

	run.Transition(target, "transition_to_editor", "")
	toolSet = e.EnumerateTools(context.Background(), run)
	_, ok = toolSet.Target("transition_to_draft")
	assert.True(t, ok, "bidirectional edges offer the way back")
}

func TestMetaToolsFollowPermissions(t *testing.T) {
	e := engine.New()
	run := newRun(t, e, `
init start {
	canAddNodes: true
	canWriteContext: true
}
`)
	names := toolNames(e.EnumerateTools(context.Background(), run))
	assert.Contains(t, names, engine.ToolAddNode)
	assert.Contains(t, names, engine.ToolSetContextValue)
	assert.NotContains(t, names, engine.ToolRemoveNode)
	assert.NotContains(t, names, engine.ToolModifyEdge)
	assert.NotContains(t, names, engine.ToolGetContextValue)
}

func TestTerminalNode(t *testing.T) {
	e := engine.New()
	run := newRun(t, e, `
init start
state done
start -> done
`)
	run.Transition(run.Machine.Find(0, "done"), "transition_to_done", "")
	assert.True(t, e.EnumerateTools(context.Background(), run).IsTerminal())
}

func TestApplyTransition(t *testing.T) {
	e := engine.New()
	run := newRun(t, e, `
init start
task work
start -> work
`)
	result, err := e.ApplyDecision(context.Background(), run, &decider.Response{
		StopReason: decider.StopReasonToolUse,
		Reasoning:  "start the work",
		Choice:     &decider.Choice{Tool: "transition_to_work"},
	})
	assert.NoError(t, err)
	assert.True(t, result.Transitioned)
	assert.EqualValues(t, "work", run.ActivePath())
	assert.EqualValues(t, "start the work", run.Steps[0].Reasoning)
}

func TestApplyRejectsIneligibleTool(t *testing.T) {
	e := engine.New()
	run := newRun(t, e, `
init start
task work
start -> work
`)
	_, err := e.ApplyDecision(context.Background(), run, &decider.Response{
		StopReason: decider.StopReasonToolUse,
		Choice:     &decider.Choice{Tool: "transition_to_ghost"},
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not eligible")
	assert.EqualValues(t, "start", run.ActivePath())
}

func TestApplyAddNode(t *testing.T) {
	e := engine.New()
	run := newRun(t, e, `
init start {
	canAddNodes: true
}
task triage
`)
	result, err := e.ApplyDecision(context.Background(), run, &decider.Response{
		StopReason: decider.StopReasonToolUse,
		Choice: &decider.Choice{
			Tool:  engine.ToolAddNode,
			Input: map[string]interface{}{"name": "triage.escalate", "type": "task", "title": "Escalate"},
		},
	})
	assert.NoError(t, err)
	assert.EqualValues(t, "triage.escalate", result.Value)

	added := run.Machine.Find(0, "triage.escalate")
	assert.NotZero(t, added)
	assert.EqualValues(t, "task", run.Machine.Node(added).Type)
	assert.EqualValues(t, "Escalate", run.Machine.Node(added).Title)

	assert.Len(t, run.Mutations, 1)
	assert.Contains(t, run.Mutations[0].Diff, "escalate")
}

func TestApplyRemoveNodeGuardsPosition(t *testing.T) {
	e := engine.New()
	run := newRun(t, e, `
init start {
	canRemoveNodes: true
}
task cleanup
`)
	_, err := e.ApplyDecision(context.Background(), run, &decider.Response{
		StopReason: decider.StopReasonToolUse,
		Choice:     &decider.Choice{Tool: engine.ToolRemoveNode, Input: map[string]interface{}{"name": "start"}},
	})
	assert.Error(t, err, "the run cannot remove the node it sits on")

	_, err = e.ApplyDecision(context.Background(), run, &decider.Response{
		StopReason: decider.StopReasonToolUse,
		Choice:     &decider.Choice{Tool: engine.ToolRemoveNode, Input: map[string]interface{}{"name": "cleanup"}},
	})
	assert.NoError(t, err)
	assert.Zero(t, run.Machine.Find(0, "cleanup"))
	assert.Len(t, run.Mutations, 1)
}

func TestApplyModifyEdge(t *testing.T) {
	e := engine.New()
	run := newRun(t, e, `
init start {
	canModifyEdges: true
}
task a
task b
`)
	ctx := context.Background()
	_, err := e.ApplyDecision(ctx, run, &decider.Response{
		StopReason: decider.StopReasonToolUse,
		Choice: &decider.Choice{
			Tool:  engine.ToolModifyEdge,
			Input: map[string]interface{}{"source": "a", "target": "b", "arrow": "-->", "label": "depends"},
		},
	})
	assert.NoError(t, err)
	edges := run.Machine.Edges()
	assert.Len(t, edges, 1)
	assert.EqualValues(t, model.ArrowDependency, edges[0].Arrow)
	assert.EqualValues(t, "depends", edges[0].Label)

	_, err = e.ApplyDecision(ctx, run, &decider.Response{
		StopReason: decider.StopReasonToolUse,
		Choice: &decider.Choice{
			Tool:  engine.ToolModifyEdge,
			Input: map[string]interface{}{"source": "a", "target": "b", "remove": true},
		},
	})
	assert.NoError(t, err)
	assert.Empty(t, run.Machine.Edges())
}

func TestContextRoundTrip(t *testing.T) {
	e := engine.New()
	run := newRun(t, e, `
init start {
	canReadContext: true
	canWriteContext: true
}
context settings {
	retries<Number>: 0
}
`)
	ctx := context.Background()
	result, err := e.ApplyDecision(ctx, run, &decider.Response{
		StopReason: decider.StopReasonToolUse,
		Choice: &decider.Choice{
			Tool:  engine.ToolSetContextValue,
			Input: map[string]interface{}{"node": "settings", "attribute": "retries", "value": "5"},
		},
	})
	assert.NoError(t, err)
	// typed writes coerce to the declared attribute type
	assert.EqualValues(t, float64(5), result.Value)

	result, err = e.ApplyDecision(ctx, run, &decider.Response{
		StopReason: decider.StopReasonToolUse,
		Choice: &decider.Choice{
			Tool:  engine.ToolGetContextValue,
			Input: map[string]interface{}{"node": "settings", "attribute": "retries"},
		},
	})
	assert.NoError(t, err)
	assert.EqualValues(t, float64(5), result.Value)

	result, err = e.ApplyDecision(ctx, run, &decider.Response{
		StopReason: decider.StopReasonToolUse,
		Choice:     &decider.Choice{Tool: engine.ToolListContextNodes},
	})
	assert.NoError(t, err)
	assert.EqualValues(t, []string{"settings"}, result.Value)
}

func TestPolicyBlockListHidesTools(t *testing.T) {
	e := engine.New()
	run := newRun(t, e, `
init start {
	canAddNodes: true
	canRemoveNodes: true
}
`)
	run.Policy = &policy.Config{BlockList: []string{engine.ToolRemoveNode}}
	names := toolNames(e.EnumerateTools(context.Background(), run))
	assert.Contains(t, names, engine.ToolAddNode)
	assert.NotContains(t, names, engine.ToolRemoveNode)
}

func TestContextPolicyHidesToolsAtEnumeration(t *testing.T) {
	e := engine.New()
	run := newRun(t, e, `
init start {
	canAddNodes: true
	canRemoveNodes: true
}
`)
	ctx := policy.WithPolicy(context.Background(), &policy.Policy{
		BlockList: []string{engine.ToolRemoveNode},
	})
	names := toolNames(e.EnumerateTools(ctx, run))
	assert.Contains(t, names, engine.ToolAddNode)
	assert.NotContains(t, names, engine.ToolRemoveNode,
		"a tool the gate would deny is never offered")
}

func TestPolicyDeny(t *testing.T) {
	e := engine.New()
	run := newRun(t, e, `
init start {
	canAddNodes: true
}
`)
	run.Policy = &policy.Config{Mode: policy.ModeDeny}
	result, err := e.ApplyDecision(context.Background(), run, &decider.Response{
		StopReason: decider.StopReasonToolUse,
		Choice:     &decider.Choice{Tool: engine.ToolAddNode, Input: map[string]interface{}{"name": "extra"}},
	})
	assert.Error(t, err)
	assert.True(t, result.Denied)
	assert.Zero(t, run.Machine.Find(0, "extra"))
}

func TestPolicyAsk(t *testing.T) {
	e := engine.New()
	run := newRun(t, e, `
init start {
	canAddNodes: true
}
`)
	approve := policy.WithPolicy(context.Background(), &policy.Policy{
		Mode: policy.ModeAsk,
		Ask: func(_ context.Context, tool string, _ map[string]interface{}, _ *policy.Policy) bool {
			return tool == engine.ToolAddNode
		},
	})
	_, err := e.ApplyDecision(approve, run, &decider.Response{
		StopReason: decider.StopReasonToolUse,
		Choice:     &decider.Choice{Tool: engine.ToolAddNode, Input: map[string]interface{}{"name": "approved"}},
	})
	assert.NoError(t, err)
	assert.NotZero(t, run.Machine.Find(0, "approved"))

	reject := policy.WithPolicy(context.Background(), &policy.Policy{
		Mode: policy.ModeAsk,
		Ask: func(context.Context, string, map[string]interface{}, *policy.Policy) bool {
			return false
		},
	})
	result, err := e.ApplyDecision(reject, run, &decider.Response{
		StopReason: decider.StopReasonToolUse,
		Choice:     &decider.Choice{Tool: engine.ToolAddNode, Input: map[string]interface{}{"name": "rejected"}},
	})
	assert.Error(t, err)
	assert.True(t, result.Denied)
	assert.Zero(t, run.Machine.Find(0, "rejected"))
}

func TestScriptedWalk(t *testing.T) {
	e := engine.New(engine.WithDecider(decider.NewScripted(
		&decider.Response{
			StopReason: decider.StopReasonToolUse,
			Choice:     &decider.Choice{Tool: "transition_to_review"},
		},
		&decider.Response{
			StopReason: decider.StopReasonToolUse,
			Choice:     &decider.Choice{Tool: "transition_to_approve"},
		},
	)))
	run := newRun(t, e, `
init start
task review
task approve
task reject
start -> review
review -> approve
review -> reject
`)
	output, err := e.Execute(context.Background(), run)
	assert.NoError(t, err)
	assert.EqualValues(t, "approve", output.FinalNode)
	assert.EqualValues(t, execution.RunStateCompleted, output.State)
}
