package memory

import (
	"context"
	"testing"

	"github.com/christopherdebeer/dygram/model"
	"github.com/christopherdebeer/dygram/runtime/execution"
	"github.com/christopherdebeer/dygram/service/dao"
	"github.com/stretchr/testify/assert"
)

func newRun(id string, state execution.RunState) *execution.Run {
	m := model.NewMachine("")
	m.AddNode(0, "start").Type = "init"
	run := execution.NewRun(id, m, nil)
	run.SetState(state)
	return run
}

func TestSaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	svc := New()

	assert.ErrorIs(t, svc.Save(ctx, nil), dao.ErrNilEntity)
	assert.ErrorIs(t, svc.Save(ctx, &execution.Run{}), dao.ErrInvalidID)

	run := newRun("run-1", execution.RunStateRunning)
	assert.NoError(t, svc.Save(ctx, run))

	loaded, err := svc.Load(ctx, "run-1")
	assert.NoError(t, err)
	assert.EqualValues(t, "run-1", loaded.ID)

	_, err = svc.Load(ctx, "absent")
	assert.ErrorIs(t, err, dao.ErrNotFound)

	assert.NoError(t, svc.Delete(ctx, "run-1"))
	assert.ErrorIs(t, svc.Delete(ctx, "run-1"), dao.ErrNotFound)
}

func TestListFiltersByState(t *testing.T) {
	ctx := context.Background()
	svc := New()
	_ = svc.Save(ctx, newRun("r1", execution.RunStateRunning))
	_ = svc.Save(ctx, newRun("r2", execution.RunStateCompleted))
	_ = svc.Save(ctx, newRun("r3", execution.RunStateFailed))

	all, err := svc.List(ctx)
	assert.NoError(t, err)
	assert.Len(t, all, 3)

	running, err := svc.List(ctx, dao.NewParameter("State", string(execution.RunStateRunning)))
	assert.NoError(t, err)
	assert.Len(t, running, 1)
	assert.EqualValues(t, "r1", running[0].ID)

	finished, err := svc.List(ctx, dao.NewParameter("State",
		string(execution.RunStateCompleted), string(execution.RunStateFailed)))
	assert.NoError(t, err)
	assert.Len(t, finished, 2)
}
