package dygram_test

import (
	"context"
	"testing"
	"time"

	"github.com/christopherdebeer/dygram"
	"github.com/christopherdebeer/dygram/runtime/execution"
	"github.com/christopherdebeer/dygram/service/decider"
	"github.com/stretchr/testify/assert"
)

func TestService(t *testing.T) {
	srv := dygram.New(dygram.WithDecider(decider.FirstTransition{}))
	assert.NoError(t, srv.Err())

	runtime := srv.Runtime()
	ctx := context.Background()
	machine, err := runtime.LoadMachine(ctx, "testdata/order")
	assert.NoError(t, err)
	assert.EqualValues(t, "Order Flow", machine.Title)

	run, wait, err := runtime.StartRun(ctx, machine, nil)
	assert.NoError(t, err)
	output, err := wait(ctx, 5*time.Second)
	assert.NoError(t, err)
	assert.EqualValues(t, execution.RunStateCompleted, output.State)
	assert.EqualValues(t, "done", output.FinalNode)

	stored, err := runtime.Run(ctx, run.ID)
	assert.NoError(t, err)
	assert.EqualValues(t, run.ID, stored.ID)

	assert.Len(t, runtime.Machines(), 1)
}

func TestServiceStepping(t *testing.T) {
	srv := dygram.New()
	runtime := srv.Runtime()
	ctx := context.Background()

	machine, diagnostics, err := runtime.UpsertDefinition("review", []byte(`
init start
task review
state approved
state rejected
start -> review
review -> approved
review -> rejected
`))
	assert.NoError(t, err)
	assert.False(t, diagnostics.HasErrors())

	run, _, err := runtime.StartRun(ctx, machine, nil)
	assert.NoError(t, err)

	toolSet := runtime.StepRun(ctx, run)
	assert.False(t, toolSet.IsTerminal())
	_, err = runtime.ApplyDecision(ctx, run, &decider.Response{
		StopReason: decider.StopReasonToolUse,
		Choice:     &decider.Choice{Tool: "transition_to_review"},
	})
	assert.NoError(t, err)

	toolSet = runtime.StepRun(ctx, run)
	assert.Len(t, toolSet.Tools, 2)
	_, err = runtime.ApplyDecision(ctx, run, &decider.Response{
		StopReason: decider.StopReasonToolUse,
		Choice:     &decider.Choice{Tool: "transition_to_approved"},
	})
	assert.NoError(t, err)

	assert.EqualValues(t, "approved", run.ActivePath())
	assert.True(t, runtime.StepRun(ctx, run).IsTerminal())
}

func TestServiceHotSwap(t *testing.T) {
	srv := dygram.New()
	runtime := srv.Runtime()

	_, _, err := runtime.UpsertDefinition("flow", []byte(`
init start
task work
start -> work
`))
	assert.NoError(t, err)

	_, _, err = runtime.UpsertDefinition("flow", []byte(`
init start
task work
task audit
start -> work -> audit
`))
	assert.NoError(t, err)

	entries := runtime.Machines()
	assert.Len(t, entries, 1)
	assert.EqualValues(t, 2, entries[0].Version)
}

func TestNewFromConfig(t *testing.T) {
	srv, err := dygram.NewFromConfig(dygram.DefaultConfig(), dygram.WithDecider(decider.FirstTransition{}))
	assert.NoError(t, err)
	assert.NotNil(t, srv)

	_, err = dygram.NewFromConfig(&dygram.Config{
		Engine: dygram.EngineConfig{MaxSteps: -1},
	})
	assert.Error(t, err)

	_, err = dygram.NewFromConfig(&dygram.Config{
		Engine: dygram.EngineConfig{MaxSteps: 10},
		Runs:   dygram.RunStoreConfig{Kind: "sqlite"},
	})
	assert.Error(t, err, "sqlite store requires a location")
}
