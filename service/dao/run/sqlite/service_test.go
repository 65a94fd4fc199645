package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/christopherdebeer/dygram/model"
	"github.com/christopherdebeer/dygram/runtime/execution"
	"github.com/christopherdebeer/dygram/service/dao"
	"github.com/stretchr/testify/assert"
)

// a file-backed database: ":memory:" would give every pooled connection its
// own empty database
func newStore(t *testing.T) *Service {
	t.Helper()
	svc, err := New(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func newRun(id string, state execution.RunState) *execution.Run {
	m := model.NewMachine("Intake")
	a := m.AddNode(0, "a")
	a.Type = "group"
	m.AddNode(a.ID, "x").Type = "task"
	b := m.AddNode(0, "b")
	b.Type = "task"
	m.AddNode(a.ID, "y").Type = "task"
	run := execution.NewRun(id, m, map[string]interface{}{"reviewer": "sam"})
	run.Transition(run.Machine.Find(0, "b"), "transition_to_b", "")
	run.SetState(state)
	return run
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newStore(t)

	assert.ErrorIs(t, svc.Save(ctx, nil), dao.ErrNilEntity)
	assert.ErrorIs(t, svc.Save(ctx, &execution.Run{}), dao.ErrInvalidID)

	run := newRun("run-1", execution.RunStateRunning)
	assert.NoError(t, svc.Save(ctx, run))

	loaded, err := svc.Load(ctx, "run-1")
	assert.NoError(t, err)
	assert.EqualValues(t, "run-1", loaded.ID)
	assert.EqualValues(t, "b", loaded.ActivePath(), "position must survive the machine's canonical renumbering")
	assert.EqualValues(t, 1, loaded.VisitCount(loaded.Machine.Find(0, "b")))
	if assert.NotNil(t, loaded.Session) {
		assert.EqualValues(t, "sam", loaded.Session.GetAll()["reviewer"])
	}
	assert.Len(t, loaded.Steps, 1)

	_, err = svc.Load(ctx, "absent")
	assert.ErrorIs(t, err, dao.ErrNotFound)
}

func TestSaveUpserts(t *testing.T) {
	ctx := context.Background()
	svc := newStore(t)

	run := newRun("run-1", execution.RunStateRunning)
	assert.NoError(t, svc.Save(ctx, run))
	run.SetState(execution.RunStateCompleted)
	assert.NoError(t, svc.Save(ctx, run))

	loaded, err := svc.Load(ctx, "run-1")
	assert.NoError(t, err)
	assert.EqualValues(t, execution.RunStateCompleted, loaded.GetState())

	all, err := svc.List(ctx)
	assert.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestListFiltersByState(t *testing.T) {
	ctx := context.Background()
	svc := newStore(t)
	assert.NoError(t, svc.Save(ctx, newRun("r1", execution.RunStateRunning)))
	assert.NoError(t, svc.Save(ctx, newRun("r2", execution.RunStateCompleted)))
	assert.NoError(t, svc.Save(ctx, newRun("r3", execution.RunStateFailed)))

	all, err := svc.List(ctx)
	assert.NoError(t, err)
	assert.Len(t, all, 3)

	completed, err := svc.List(ctx, dao.NewParameter("State", string(execution.RunStateCompleted)))
	assert.NoError(t, err)
	assert.Len(t, completed, 1)
	assert.EqualValues(t, "r2", completed[0].ID)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc := newStore(t)
	assert.NoError(t, svc.Save(ctx, newRun("run-1", execution.RunStateRunning)))

	assert.NoError(t, svc.Delete(ctx, "run-1"))
	assert.ErrorIs(t, svc.Delete(ctx, "run-1"), dao.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, ""), dao.ErrInvalidID)
}
