package compiler

import (
	"testing"

	"github.com/christopherdebeer/dygram/model"
	"github.com/christopherdebeer/dygram/parser"
	"github.com/stretchr/testify/assert"
)

func compile(t *testing.T, source string) (*model.Machine, model.Diagnostics) {
	t.Helper()
	doc, diagnostics := parser.ParseString(source)
	assert.False(t, diagnostics.HasErrors(), "parse: %v", diagnostics)
	return Compile(doc)
}

func TestQualifiedExpansion(t *testing.T) {
	machine, diagnostics := compile(t, `
task api.users.create
task api.users.delete
`)
	assert.False(t, diagnostics.HasErrors(), "%v", diagnostics)

	api := machine.Find(0, "api")
	assert.NotZero(t, api)
	users := machine.Find(0, "api.users")
	assert.NotZero(t, users)
	create := machine.Find(0, "api.users.create")
	assert.NotZero(t, create)
	assert.NotZero(t, machine.Find(0, "api.users.delete"))

	// intermediates inherit the type of the first qualified child
	assert.EqualValues(t, "task", machine.Node(api).Type)
	assert.EqualValues(t, "task", machine.Node(users).Type)
	assert.EqualValues(t, "task", machine.Node(create).Type)
	assert.EqualValues(t, "api.users.create", machine.Path(create))

	// exactly four nodes: shared prefixes are merged, not duplicated
	assert.Len(t, machine.Nodes(), 4)
}

func TestMergeAttributes(t *testing.T) {
	machine, diagnostics := compile(t, `
task worker {
	retries: 1
	queue: "default"
}
task worker {
	retries: 5
	timeout: 30
}
`)
	assert.False(t, diagnostics.HasErrors(), "%v", diagnostics)
	worker := machine.Node(machine.Find(0, "worker"))
	assert.Len(t, worker.Attributes, 3)
	// last write wins for values, first position wins for ordering
	assert.EqualValues(t, "retries", worker.Attributes[0].Name)
	assert.EqualValues(t, 5, worker.Attributes[0].Value)
	assert.EqualValues(t, "default", worker.Attributes[1].Value)
	assert.EqualValues(t, 30, worker.Attributes[2].Value)
}

func TestMergeTypeConflict(t *testing.T) {
	machine, diagnostics := compile(t, `
task worker
state worker
`)
	conflicts := diagnostics.Filter(model.CodeDuplicate)
	assert.Len(t, conflicts, 1)
	assert.EqualValues(t, model.SeverityWarning, conflicts[0].Severity)
	// first declaration keeps its type
	assert.EqualValues(t, "task", machine.Node(machine.Find(0, "worker")).Type)
}

func TestEdgeResolution(t *testing.T) {
	machine, diagnostics := compile(t, `
task api.orders.submit
task billing.invoice
submit -> invoice : hand off
`)
	assert.False(t, diagnostics.HasErrors(), "%v", diagnostics)
	edges := machine.Edges()
	assert.Len(t, edges, 1)
	assert.EqualValues(t, "api.orders.submit", machine.Path(edges[0].Source))
	assert.EqualValues(t, "billing.invoice", machine.Path(edges[0].Target))
	assert.EqualValues(t, "hand off", edges[0].Label)
}

func TestEdgeChainExpansion(t *testing.T) {
	machine, diagnostics := compile(t, `
init start
state review
state done
start -> review -> done
`)
	assert.False(t, diagnostics.HasErrors(), "%v", diagnostics)
	assert.Len(t, machine.Edges(), 2)
}

func TestUnresolvedReference(t *testing.T) {
	_, diagnostics := compile(t, `
task a
a -> missing
`)
	errors := diagnostics.Filter(model.CodeReference)
	assert.Len(t, errors, 1)
	assert.Contains(t, errors[0].Message, "missing")
}

func TestAmbiguousReference(t *testing.T) {
	_, diagnostics := compile(t, `
task left.worker
task right.worker
task start
start -> worker
`)
	errors := diagnostics.Filter(model.CodeReference)
	assert.Len(t, errors, 1)
	assert.Contains(t, errors[0].Message, "ambiguous")
	assert.Contains(t, errors[0].Message, "left.worker")
	assert.Contains(t, errors[0].Message, "right.worker")
}

func TestScopePreferredResolution(t *testing.T) {
	machine, diagnostics := compile(t, `
task left {
	task worker
	task boss
	boss -> worker
}
task right {
	task worker
}
`)
	assert.False(t, diagnostics.HasErrors(), "%v", diagnostics)
	edges := machine.Edges()
	assert.Len(t, edges, 1)
	// the edge declared inside left resolves to left's worker
	assert.EqualValues(t, "left.worker", machine.Path(edges[0].Target))
}

func TestNoteExpansion(t *testing.T) {
	machine, diagnostics := compile(t, `
task api.submit
note for api.submit "resolved against an existing node"
note docs.readme "creates note nodes on demand"
`)
	assert.False(t, diagnostics.HasErrors(), "%v", diagnostics)
	assert.Len(t, machine.Notes, 2)
	assert.EqualValues(t, "api.submit", machine.Notes[0].TargetPath)

	readme := machine.Find(0, "docs.readme")
	assert.NotZero(t, readme)
	node := machine.Node(readme)
	assert.EqualValues(t, "note", node.Type)
	target, _ := node.Attributes.Get("target")
	assert.EqualValues(t, "docs.readme", target)
}

func TestMultiplicities(t *testing.T) {
	machine, diagnostics := compile(t, `
task customer
task order
customer "1" -> "0..*" order
`)
	assert.False(t, diagnostics.HasErrors(), "%v", diagnostics)
	edge := machine.Edges()[0]
	assert.EqualValues(t, "1", edge.SourceMultiplicity)
	assert.EqualValues(t, "0..*", edge.TargetMultiplicity)
}
