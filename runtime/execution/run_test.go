package execution_test

import (
	"encoding/json"
	"testing"

	"github.com/christopherdebeer/dygram/model"
	"github.com/christopherdebeer/dygram/runtime/execution"
	"github.com/stretchr/testify/assert"
)

func reviewMachine() *model.Machine {
	m := model.NewMachine("Review Flow")
	start := m.AddNode(0, "start")
	start.Type = "init"
	review := m.AddNode(0, "review")
	review.Type = "task"
	done := m.AddNode(0, "done")
	done.Type = "state"
	m.AddEdge(&model.Edge{Source: start.ID, Target: review.ID, Arrow: model.ArrowAssociation})
	m.AddEdge(&model.Edge{Source: review.ID, Target: done.ID, Arrow: model.ArrowAssociation})
	return m
}

func TestNewRunStartsAtInit(t *testing.T) {
	machine := reviewMachine()
	run := execution.NewRun("run-1", machine, nil)

	assert.EqualValues(t, execution.RunStatePending, run.GetState())
	assert.EqualValues(t, "start", run.ActivePath())
	assert.EqualValues(t, "Review Flow", run.MachineTitle)

	// the run owns a clone; mutating it never touches the source machine
	run.Machine.RemoveNode(run.Machine.Find(0, "done"))
	assert.NotZero(t, machine.Find(0, "done"))
}

func TestNewRunFallsBackToFirstRoot(t *testing.T) {
	m := model.NewMachine("")
	first := m.AddNode(0, "first")
	first.Type = "task"
	m.AddNode(0, "second").Type = "task"

	run := execution.NewRun("run-1", m, nil)
	assert.EqualValues(t, "first", run.ActivePath())
}

func TestTransition(t *testing.T) {
	run := execution.NewRun("run-1", reviewMachine(), nil)
	review := run.Machine.Find(0, "review")

	step := run.Transition(review, "transition_to_review", "ready for review")
	assert.EqualValues(t, 0, step.Index)
	assert.EqualValues(t, "start", step.From)
	assert.EqualValues(t, "review", step.To)
	assert.EqualValues(t, "review", run.ActivePath())
	assert.EqualValues(t, 1, run.VisitCount(review))

	run.Transition(run.Machine.Find(0, "done"), "transition_to_done", "")
	run.Transition(review, "transition_to_review", "back again")
	assert.EqualValues(t, 2, run.VisitCount(review))
	assert.Len(t, run.Steps, 3)
}

func TestRecordStep(t *testing.T) {
	run := execution.NewRun("run-1", reviewMachine(), nil)
	step := run.RecordStep("set_context", "stored reviewer name")
	assert.EqualValues(t, "start", step.From)
	assert.Empty(t, step.To)
	assert.EqualValues(t, "start", run.ActivePath(), "non-transition steps keep the position")
}

func TestRecordError(t *testing.T) {
	run := execution.NewRun("run-1", reviewMachine(), nil)
	run.RecordError("decider timed out")
	run.RecordError("decider timed out again")
	assert.EqualValues(t, 2, run.ErrorCount())
	assert.EqualValues(t, []string{"decider timed out", "decider timed out again"}, run.Errors)
}

func TestSetStateTerminal(t *testing.T) {
	run := execution.NewRun("run-1", reviewMachine(), nil)
	run.SetState(execution.RunStateRunning)
	assert.Nil(t, run.FinishedAt)

	run.SetState(execution.RunStateCompleted)
	assert.NotNil(t, run.FinishedAt)
	assert.True(t, run.GetState().IsTerminal())
}

func TestRecordMutation(t *testing.T) {
	run := execution.NewRun("run-1", reviewMachine(), nil)
	before := run.Machine.Clone()
	run.Machine.AddNode(0, "escalate").Type = "task"

	mutation := run.RecordMutation("add_node", "added escalate", before, nil)
	assert.EqualValues(t, "add_node", mutation.Tool)
	assert.Contains(t, mutation.Diff, "escalate")
	assert.Contains(t, mutation.Diff, "--- before")
	assert.Contains(t, mutation.Diff, "+++ after")
	assert.Len(t, run.Mutations, 1)
}

func TestRunJSONRoundTrip(t *testing.T) {
	// nested declaration order makes decoded node IDs diverge from the
	// original arena numbering, so position must survive by path
	m := model.NewMachine("Nested")
	a := m.AddNode(0, "a")
	a.Type = "group"
	m.AddNode(a.ID, "x").Type = "task"
	b := m.AddNode(0, "b")
	b.Type = "task"
	m.AddNode(a.ID, "y").Type = "task"
	m.AddEdge(&model.Edge{Source: a.ID, Target: b.ID, Arrow: model.ArrowAssociation})

	run := execution.NewRun("run-1", m, map[string]interface{}{"reviewer": "sam"})
	run.Transition(run.Machine.Find(0, "a.x"), "transition_to_a_x", "")
	run.Transition(run.Machine.Find(0, "b"), "transition_to_b", "")
	run.Session.Set("count", 2)

	data, err := json.Marshal(run)
	assert.NoError(t, err)

	restored := &execution.Run{}
	assert.NoError(t, json.Unmarshal(data, restored))
	assert.EqualValues(t, "b", restored.ActivePath())
	assert.EqualValues(t, 1, restored.VisitCount(restored.Machine.Find(0, "b")))
	assert.EqualValues(t, 1, restored.VisitCount(restored.Machine.Find(0, "a.x")))
	assert.Len(t, restored.Steps, 2)

	if assert.NotNil(t, restored.Session) {
		state := restored.Session.GetAll()
		assert.EqualValues(t, "sam", state["reviewer"])
		assert.EqualValues(t, 2, state["count"])
	}
}

func TestRunClone(t *testing.T) {
	run := execution.NewRun("run-1", reviewMachine(), nil)
	run.Transition(run.Machine.Find(0, "review"), "transition_to_review", "")

	snapshot := run.Clone()
	run.Transition(run.Machine.Find(0, "done"), "transition_to_done", "")
	run.RecordError("late failure")

	assert.Len(t, snapshot.Steps, 1)
	assert.Empty(t, snapshot.Errors)
	assert.EqualValues(t, "review", snapshot.Machine.Path(snapshot.Current))
}
