package execution

import (
	"encoding/json"
	"time"

	"github.com/christopherdebeer/dygram/internal/clock"
	"github.com/christopherdebeer/dygram/model"
	"github.com/pmezard/go-difflib/difflib"
)

// Mutation is an audit record of one runtime self-modification. Diff holds a
// unified diff of the machine JSON before and after the change.
type Mutation struct {
	Tool   string    `json:"tool"`
	Detail string    `json:"detail"`
	Diff   string    `json:"diff,omitempty"`
	At     time.Time `json:"at"`
}

// RecordMutation appends a mutation entry. The before snapshot must be taken
// prior to applying the change; after defaults to the run's current machine.
func (r *Run) RecordMutation(tool, detail string, before, after *model.Machine) *Mutation {
	r.mu.Lock()
	defer r.mu.Unlock()
	if after == nil {
		after = r.Machine
	}
	mutation := &Mutation{
		Tool:   tool,
		Detail: detail,
		Diff:   machineDiff(before, after),
		At:     clock.Now(),
	}
	r.Mutations = append(r.Mutations, mutation)
	r.UpdatedAt = mutation.At
	return mutation
}

func machineDiff(before, after *model.Machine) string {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(machineText(before)),
		B:        difflib.SplitLines(machineText(after)),
		FromFile: "before",
		ToFile:   "after",
		Context:  2,
	})
	if err != nil {
		return ""
	}
	return text
}

func machineText(m *model.Machine) string {
	if m == nil {
		return ""
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return ""
	}
	return string(data) + "\n"
}
