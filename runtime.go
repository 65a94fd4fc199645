package dygram

import (
	"context"
	"fmt"
	"time"

	"github.com/christopherdebeer/dygram/engine"
	"github.com/christopherdebeer/dygram/model"
	"github.com/christopherdebeer/dygram/policy"
	"github.com/christopherdebeer/dygram/runtime/execution"
	"github.com/christopherdebeer/dygram/service/dao"
	dmachine "github.com/christopherdebeer/dygram/service/dao/machine"
	"github.com/christopherdebeer/dygram/service/decider"
)

// Runtime orchestrates machine runs on top of the engine and the machine
// cache.
type Runtime struct {
	engine     *engine.Engine
	machineDAO *dmachine.Service
	runDAO     dao.Service[string, execution.Run]
	policy     *policy.Policy
}

// LoadMachine loads, compiles and caches the machine at the given location.
func (r *Runtime) LoadMachine(ctx context.Context, location string) (*model.Machine, error) {
	return r.machineDAO.Load(ctx, location)
}

// DecodeMachine compiles an in-memory source without caching it.
func (r *Runtime) DecodeMachine(source []byte) (*model.Machine, model.Diagnostics, error) {
	return r.machineDAO.Decode(source)
}

// RefreshMachine discards the cached copy of a previously loaded machine and
// reloads it from its source location. In-flight runs keep their private
// clone; only new runs observe the replacement.
func (r *Runtime) RefreshMachine(ctx context.Context, name string) (*model.Machine, error) {
	if r == nil || r.machineDAO == nil {
		return nil, fmt.Errorf("runtime not fully initialised, machineDAO missing")
	}
	return r.machineDAO.Refresh(ctx, name)
}

// UpsertDefinition compiles the supplied source and installs it in the cache
// under the given name, hot swapping any previous version.
func (r *Runtime) UpsertDefinition(name string, source []byte) (*model.Machine, model.Diagnostics, error) {
	if r == nil || r.machineDAO == nil {
		return nil, nil, fmt.Errorf("runtime not fully initialised, machineDAO missing")
	}
	return r.machineDAO.Upsert(name, source)
}

// RunFromContext returns the active run bound to ctx, nil when absent.
func (r *Runtime) RunFromContext(ctx context.Context) *execution.Run {
	return execution.ContextValue[*execution.Run](ctx)
}

// StartRun creates a run over the machine and drives it in the background.
// The returned wait function blocks until the run terminates or the timeout
// elapses.
func (r *Runtime) StartRun(ctx context.Context, machine *model.Machine, initialState map[string]interface{}) (*execution.Run, execution.Wait, error) {
	run, err := r.engine.NewRun(ctx, machine, initialState)
	if err != nil {
		return nil, nil, err
	}
	run.Policy = policy.ToConfig(r.policy)

	done := make(chan *execution.RunOutput, 1)
	if r.policy != nil {
		ctx = policy.WithPolicy(ctx, r.policy)
	}
	runCtx := execution.NewContext(ctx, run)
	go func() {
		output, _ := r.engine.Execute(runCtx, run)
		done <- output
	}()

	wait := func(ctx context.Context, timeout time.Duration) (*execution.RunOutput, error) {
		select {
		case output := <-done:
			done <- output
			return output, nil
		case <-time.After(timeout):
			return nil, fmt.Errorf("timeout waiting for run %q", run.ID)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return run, wait, nil
}

// StepRun enumerates the tools eligible at the run's current node. Callers
// owning their own decision loop pair it with ApplyDecision; both resolve
// the policy the same way so enumeration never offers a tool the gate would
// deny.
func (r *Runtime) StepRun(ctx context.Context, run *execution.Run) *engine.ToolSet {
	if r.policy != nil && policy.FromContext(ctx) == nil {
		ctx = policy.WithPolicy(ctx, r.policy)
	}
	return r.engine.EnumerateTools(ctx, run)
}

// ApplyDecision applies an external decision to the run.
func (r *Runtime) ApplyDecision(ctx context.Context, run *execution.Run, response *decider.Response) (*engine.Result, error) {
	if r.policy != nil && policy.FromContext(ctx) == nil {
		ctx = policy.WithPolicy(ctx, r.policy)
	}
	return r.engine.ApplyDecision(ctx, run, response)
}

// Run returns a stored run by ID.
func (r *Runtime) Run(ctx context.Context, id string) (*execution.Run, error) {
	return r.runDAO.Load(ctx, id)
}

// Runs lists stored runs, optionally filtered.
func (r *Runtime) Runs(ctx context.Context, parameter ...*dao.Parameter) ([]*execution.Run, error) {
	return r.runDAO.List(ctx, parameter...)
}

// Machines lists the cached machine entries.
func (r *Runtime) Machines() []*dmachine.Entry {
	return r.machineDAO.List()
}
