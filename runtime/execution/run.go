package execution

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/christopherdebeer/dygram/internal/clock"
	"github.com/christopherdebeer/dygram/model"
	"github.com/christopherdebeer/dygram/policy"
	"github.com/christopherdebeer/dygram/tracing"
)

// Run is a single execution instance of a machine. It owns a private clone of
// the compiled machine so that runtime self-modification never touches the
// source model, and records every decision and mutation for audit.
type Run struct {
	ID           string               `json:"id"`
	MachineTitle string               `json:"machineTitle"`
	State        RunState             `json:"state"`
	Machine      *model.Machine       `json:"machine"`
	Current      model.NodeID         `json:"current"`
	CreatedAt    time.Time            `json:"createdAt"`
	UpdatedAt    time.Time            `json:"updatedAt"`
	FinishedAt   *time.Time           `json:"finishedAt,omitempty"`
	Session      *Session             `json:"-"`
	Steps        []*Step              `json:"steps,omitempty"`
	Mutations    []*Mutation          `json:"mutations,omitempty"`
	Errors       []string             `json:"errors,omitempty"`
	Visits       map[model.NodeID]int `json:"visits,omitempty"`
	Policy       *policy.Config       `json:"policy,omitempty"`
	Span         *tracing.Span        `json:"-"`

	mu sync.RWMutex
}

// Step records one applied decision.
type Step struct {
	Index     int       `json:"index"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Tool      string    `json:"tool"`
	Reasoning string    `json:"reasoning,omitempty"`
	At        time.Time `json:"at"`
}

// NewRun creates a run over a private clone of the machine, positioned at the
// first init node (first root when the machine declares none).
func NewRun(id string, machine *model.Machine, initialState map[string]interface{}, options ...Option) *Run {
	now := clock.Now()
	if initialState == nil {
		initialState = make(map[string]interface{})
	}
	clone := machine.Clone()
	run := &Run{
		ID:           id,
		MachineTitle: machine.Title,
		State:        RunStatePending,
		Machine:      clone,
		CreatedAt:    now,
		UpdatedAt:    now,
		Session:      NewSession(id, append([]Option{WithState(initialState)}, options...)...),
		Visits:       make(map[model.NodeID]int),
	}
	run.Current = startNode(clone)
	return run
}

func startNode(m *model.Machine) model.NodeID {
	if inits := m.NodesByType("init"); len(inits) > 0 {
		return inits[0].ID
	}
	if roots := m.Roots(); len(roots) > 0 {
		return roots[0]
	}
	return 0
}

// ActiveNode returns the node the run currently sits on.
func (r *Run) ActiveNode() *model.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Machine.Node(r.Current)
}

// ActivePath returns the qualified path of the current node.
func (r *Run) ActivePath() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Machine.Path(r.Current)
}

// Transition moves the run to the target node and records the step.
func (r *Run) Transition(to model.NodeID, tool, reasoning string) *Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	step := &Step{
		Index:     len(r.Steps),
		From:      r.Machine.Path(r.Current),
		To:        r.Machine.Path(to),
		Tool:      tool,
		Reasoning: reasoning,
		At:        clock.Now(),
	}
	r.Steps = append(r.Steps, step)
	r.Current = to
	r.Visits[to]++
	r.UpdatedAt = step.At
	return step
}

// RecordStep appends a non-transition step, e.g. a meta tool application.
func (r *Run) RecordStep(tool, reasoning string) *Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	step := &Step{
		Index:     len(r.Steps),
		From:      r.Machine.Path(r.Current),
		Tool:      tool,
		Reasoning: reasoning,
		At:        clock.Now(),
	}
	r.Steps = append(r.Steps, step)
	r.UpdatedAt = step.At
	return step
}

// VisitCount returns how many times the run has entered the node.
func (r *Run) VisitCount(id model.NodeID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Visits[id]
}

// RecordError appends an error message to the run history.
func (r *Run) RecordError(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, message)
	r.UpdatedAt = clock.Now()
}

// ErrorCount returns the number of recorded errors.
func (r *Run) ErrorCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Errors)
}

// GetState returns the run state.
func (r *Run) GetState() RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.State
}

// SetState updates the run state, stamping FinishedAt on terminal states.
func (r *Run) SetState(state RunState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.State = state
	now := clock.Now()
	if state.IsTerminal() {
		r.FinishedAt = &now
	}
	r.UpdatedAt = now
}

// Clone creates a deep copy of the run suitable for storage. The session is
// shared; it has its own locking.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := &Run{
		ID:           r.ID,
		MachineTitle: r.MachineTitle,
		State:        r.State,
		Machine:      r.Machine.Clone(),
		Current:      r.Current,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		FinishedAt:   r.FinishedAt,
		Session:      r.Session,
		Policy:       r.Policy,
		Span:         r.Span,
	}
	out.Steps = append(out.Steps, r.Steps...)
	out.Mutations = append(out.Mutations, r.Mutations...)
	out.Errors = append(out.Errors, r.Errors...)
	out.Visits = make(map[model.NodeID]int, len(r.Visits))
	for k, v := range r.Visits {
		out.Visits[k] = v
	}
	return out
}

// runJSON is the persisted form of a run. Node references are stored as
// qualified paths rather than arena IDs because the machine's canonical JSON
// renumbers nodes on decode; the session state travels as a context map.
type runJSON struct {
	ID           string                 `json:"id"`
	MachineTitle string                 `json:"machineTitle"`
	State        RunState               `json:"state"`
	Machine      *model.Machine         `json:"machine"`
	Current      string                 `json:"current,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
	FinishedAt   *time.Time             `json:"finishedAt,omitempty"`
	Context      map[string]interface{} `json:"context,omitempty"`
	Steps        []*Step                `json:"steps,omitempty"`
	Mutations    []*Mutation            `json:"mutations,omitempty"`
	Errors       []string               `json:"errors,omitempty"`
	Visits       map[string]int         `json:"visits,omitempty"`
	Policy       *policy.Config         `json:"policy,omitempty"`
}

// MarshalJSON serialises the run with path-based node references.
func (r *Run) MarshalJSON() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := &runJSON{
		ID:           r.ID,
		MachineTitle: r.MachineTitle,
		State:        r.State,
		Machine:      r.Machine,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		FinishedAt:   r.FinishedAt,
		Steps:        r.Steps,
		Mutations:    r.Mutations,
		Errors:       r.Errors,
		Policy:       r.Policy,
	}
	if r.Machine != nil {
		out.Current = r.Machine.Path(r.Current)
		if len(r.Visits) > 0 {
			out.Visits = make(map[string]int, len(r.Visits))
			for id, count := range r.Visits {
				if path := r.Machine.Path(id); path != "" {
					out.Visits[path] = count
				}
			}
		}
	}
	if r.Session != nil {
		out.Context = r.Session.GetAll()
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a run, resolving paths against the decoded machine
// and rebuilding the session from the persisted context map.
func (r *Run) UnmarshalJSON(data []byte) error {
	raw := &runJSON{}
	if err := json.Unmarshal(data, raw); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ID = raw.ID
	r.MachineTitle = raw.MachineTitle
	r.State = raw.State
	r.Machine = raw.Machine
	r.CreatedAt = raw.CreatedAt
	r.UpdatedAt = raw.UpdatedAt
	r.FinishedAt = raw.FinishedAt
	r.Steps = raw.Steps
	r.Mutations = raw.Mutations
	r.Errors = raw.Errors
	r.Policy = raw.Policy
	r.Current = 0
	r.Visits = make(map[model.NodeID]int, len(raw.Visits))
	if r.Machine != nil {
		if raw.Current != "" {
			r.Current = r.Machine.Find(0, raw.Current)
		}
		for path, count := range raw.Visits {
			if id := r.Machine.Find(0, path); id != 0 {
				r.Visits[id] = count
			}
		}
	}
	state := raw.Context
	if state == nil {
		state = make(map[string]interface{})
	}
	r.Session = NewSession(raw.ID, WithState(state))
	return nil
}

// Wait blocks until a run reaches a terminal state or the timeout elapses.
type Wait func(ctx context.Context, timeout time.Duration) (*RunOutput, error)

// RunOutput summarises a finished (or timed-out) run.
type RunOutput struct {
	RunID     string
	State     RunState
	FinalNode string
	Context   map[string]interface{}
	Errors    []string
	TimeTaken time.Duration
	Timeout   bool
}
