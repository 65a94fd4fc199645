package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/christopherdebeer/dygram/compiler"
	"github.com/christopherdebeer/dygram/model"
	"github.com/christopherdebeer/dygram/policy"
	"github.com/christopherdebeer/dygram/progress"
	"github.com/christopherdebeer/dygram/runtime/execution"
	"github.com/christopherdebeer/dygram/service/decider"
	"github.com/christopherdebeer/dygram/service/event"
	"github.com/viant/toolbox"
)

// Result describes the outcome of one applied decision.
type Result struct {
	Tool         string       `json:"tool"`
	Transitioned bool         `json:"transitioned,omitempty"`
	Target       model.NodeID `json:"target,omitempty"`
	Denied       bool         `json:"denied,omitempty"`
	Value        interface{}  `json:"value,omitempty"`
}

// ApplyDecision applies a decider response to the run. Tool eligibility is
// re-checked against a fresh enumeration, so a stale or fabricated tool name
// is rejected rather than executed.
func (e *Engine) ApplyDecision(ctx context.Context, run *execution.Run, response *decider.Response) (*Result, error) {
	if response == nil || response.Choice == nil {
		return nil, fmt.Errorf("decision carries no tool choice")
	}
	choice := response.Choice
	toolSet := e.EnumerateTools(ctx, run)
	if !toolSet.Offers(choice.Tool) {
		return nil, fmt.Errorf("tool %q is not eligible at node %s", choice.Tool, toolSet.Path)
	}

	if target, ok := toolSet.Target(choice.Tool); ok {
		from := run.ActivePath()
		step := run.Transition(target, choice.Tool, response.Reasoning)
		progress.UpdateCtx(ctx, progress.Delta{Transitions: 1})
		e.publish(ctx, run, event.TypeTransition, choice.Tool, map[string]interface{}{
			"from": from,
			"to":   step.To,
		})
		return &Result{Tool: choice.Tool, Transitioned: true, Target: target}, nil
	}

	if denied, reason := e.gate(ctx, run, choice); denied {
		run.RecordStep(choice.Tool, "denied: "+reason)
		return &Result{Tool: choice.Tool, Denied: true}, fmt.Errorf("tool %q %s", choice.Tool, reason)
	}

	result, err := e.applyMeta(ctx, run, choice, response.Reasoning)
	if err != nil {
		return nil, err
	}
	run.RecordStep(choice.Tool, response.Reasoning)
	return result, nil
}

// gate applies the run policy to a meta tool call.
func (e *Engine) gate(ctx context.Context, run *execution.Run, choice *decider.Choice) (denied bool, reason string) {
	pol := runPolicy(ctx, run)
	if pol == nil {
		return false, ""
	}
	if !pol.IsAllowed(choice.Tool) {
		return true, "blocked by policy"
	}
	switch pol.Mode {
	case policy.ModeDeny:
		return true, "denied by policy"
	case policy.ModeAsk:
		if pol.Ask == nil || !pol.Ask(ctx, choice.Tool, choice.Input, pol) {
			return true, "rejected by approver"
		}
	}
	return false, ""
}

func (e *Engine) applyMeta(ctx context.Context, run *execution.Run, choice *decider.Choice, reasoning string) (*Result, error) {
	switch choice.Tool {
	case ToolAddNode:
		return e.applyAddNode(ctx, run, choice.Input)
	case ToolRemoveNode:
		return e.applyRemoveNode(ctx, run, choice.Input)
	case ToolModifyEdge:
		return e.applyModifyEdge(ctx, run, choice.Input)
	case ToolGetContextValue:
		return e.applyGetContext(run, choice.Input)
	case ToolSetContextValue:
		return e.applySetContext(ctx, run, choice.Input)
	case ToolListContextNodes:
		return e.applyListContext(run)
	}
	return nil, fmt.Errorf("unknown tool %q", choice.Tool)
}

func (e *Engine) applyAddNode(ctx context.Context, run *execution.Run, input map[string]interface{}) (*Result, error) {
	name := stringInput(input, "name")
	if name == "" {
		return nil, fmt.Errorf("add_node requires a name")
	}
	machine := run.Machine
	parent := model.NodeID(0)
	if parentRef := stringInput(input, "parent"); parentRef != "" {
		resolved, ambiguous := compiler.Resolve(machine, run.Current, parentRef)
		if resolved == 0 {
			if len(ambiguous) > 0 {
				return nil, fmt.Errorf("parent %q is ambiguous", parentRef)
			}
			return nil, fmt.Errorf("parent %q does not exist", parentRef)
		}
		parent = resolved
	}
	before := machine.Clone()

	// Dotted names materialize intermediate segments the way source
	// declarations do.
	current := parent
	var node *model.Node
	for _, segment := range strings.Split(name, ".") {
		if existing := machine.Child(current, segment); existing != 0 {
			current = existing
			node = machine.Node(existing)
			continue
		}
		node = machine.AddNode(current, segment)
		current = node.ID
	}
	if node == nil {
		return nil, fmt.Errorf("add_node produced no node for %q", name)
	}
	if nodeType := stringInput(input, "type"); nodeType != "" {
		node.Type = nodeType
	}
	if title := stringInput(input, "title"); title != "" {
		node.Title = title
	}

	path := machine.Path(node.ID)
	run.RecordMutation(ToolAddNode, "added node "+path, before, nil)
	progress.UpdateCtx(ctx, progress.Delta{Mutations: 1})
	e.publish(ctx, run, event.TypeMutation, ToolAddNode, map[string]interface{}{"node": path})
	return &Result{Tool: ToolAddNode, Target: node.ID, Value: path}, nil
}

func (e *Engine) applyRemoveNode(ctx context.Context, run *execution.Run, input map[string]interface{}) (*Result, error) {
	name := stringInput(input, "name")
	if name == "" {
		return nil, fmt.Errorf("remove_node requires a name")
	}
	machine := run.Machine
	id, ambiguous := compiler.Resolve(machine, run.Current, name)
	if id == 0 {
		if len(ambiguous) > 0 {
			return nil, fmt.Errorf("node %q is ambiguous", name)
		}
		return nil, fmt.Errorf("node %q does not exist", name)
	}
	for current := run.Current; current != 0; {
		if current == id {
			return nil, fmt.Errorf("cannot remove %q: the run is inside it", name)
		}
		node := machine.Node(current)
		if node == nil {
			break
		}
		current = node.Parent
	}

	path := machine.Path(id)
	before := machine.Clone()
	machine.RemoveNode(id)
	run.RecordMutation(ToolRemoveNode, "removed node "+path, before, nil)
	progress.UpdateCtx(ctx, progress.Delta{Mutations: 1})
	e.publish(ctx, run, event.TypeMutation, ToolRemoveNode, map[string]interface{}{"node": path})
	return &Result{Tool: ToolRemoveNode, Value: path}, nil
}

func (e *Engine) applyModifyEdge(ctx context.Context, run *execution.Run, input map[string]interface{}) (*Result, error) {
	machine := run.Machine
	source, err := resolveInput(machine, run.Current, input, "source")
	if err != nil {
		return nil, err
	}
	target, err := resolveInput(machine, run.Current, input, "target")
	if err != nil {
		return nil, err
	}
	detailPair := machine.Path(source) + " " + machine.Path(target)
	before := machine.Clone()

	var existing *model.Edge
	for _, edge := range machine.Edges() {
		if edge.Source == source && edge.Target == target {
			existing = edge
			break
		}
	}

	if remove, _ := input["remove"].(bool); remove {
		if existing == nil {
			return nil, fmt.Errorf("no edge between %s", detailPair)
		}
		machine.RemoveEdge(existing.ID)
		run.RecordMutation(ToolModifyEdge, "removed edge "+detailPair, before, nil)
		progress.UpdateCtx(ctx, progress.Delta{Mutations: 1})
		e.publish(ctx, run, event.TypeMutation, ToolModifyEdge, map[string]interface{}{"edge": detailPair, "removed": true})
		return &Result{Tool: ToolModifyEdge, Value: detailPair}, nil
	}

	arrow := model.ArrowAssociation
	if symbol := stringInput(input, "arrow"); symbol != "" {
		if arrow, err = model.ParseArrowSymbol(symbol); err != nil {
			if arrow, err = model.ParseArrowName(symbol); err != nil {
				return nil, err
			}
		}
	}
	detail := "added edge " + detailPair
	if existing != nil {
		existing.Arrow = arrow
		if label := stringInput(input, "label"); label != "" {
			existing.Label = label
		}
		detail = "updated edge " + detailPair
	} else {
		machine.AddEdge(&model.Edge{
			Source: source,
			Target: target,
			Arrow:  arrow,
			Label:  stringInput(input, "label"),
		})
	}
	run.RecordMutation(ToolModifyEdge, detail, before, nil)
	progress.UpdateCtx(ctx, progress.Delta{Mutations: 1})
	e.publish(ctx, run, event.TypeMutation, ToolModifyEdge, map[string]interface{}{"edge": detailPair})
	return &Result{Tool: ToolModifyEdge, Value: detailPair}, nil
}

func (e *Engine) applyGetContext(run *execution.Run, input map[string]interface{}) (*Result, error) {
	machine := run.Machine
	id, err := resolveInput(machine, run.Current, input, "node")
	if err != nil {
		return nil, err
	}
	attribute := stringInput(input, "attribute")
	if attribute == "" {
		return nil, fmt.Errorf("get_context_value requires an attribute")
	}
	path := machine.Path(id)
	if value, ok := run.Session.Get(path + "." + attribute); ok {
		return &Result{Tool: ToolGetContextValue, Value: value}, nil
	}
	node := machine.Node(id)
	if value, ok := node.Attributes.Get(attribute); ok {
		return &Result{Tool: ToolGetContextValue, Value: value}, nil
	}
	return nil, fmt.Errorf("%s has no attribute %q", path, attribute)
}

func (e *Engine) applySetContext(ctx context.Context, run *execution.Run, input map[string]interface{}) (*Result, error) {
	machine := run.Machine
	id, err := resolveInput(machine, run.Current, input, "node")
	if err != nil {
		return nil, err
	}
	attribute := stringInput(input, "attribute")
	if attribute == "" {
		return nil, fmt.Errorf("set_context_value requires an attribute")
	}
	value, ok := input["value"]
	if !ok {
		return nil, fmt.Errorf("set_context_value requires a value")
	}

	node := machine.Node(id)
	declaredType := ""
	if attr := node.Attributes.Lookup(attribute); attr != nil {
		declaredType = attr.Type
	}
	key := machine.Path(id) + "." + attribute
	if err = run.Session.SetTyped(key, declaredType, value); err != nil {
		return nil, fmt.Errorf("set %s: %w", key, err)
	}
	e.publish(ctx, run, event.TypeContextWrite, ToolSetContextValue, map[string]interface{}{
		"key": key,
	})
	stored, _ := run.Session.Get(key)
	return &Result{Tool: ToolSetContextValue, Value: stored}, nil
}

func (e *Engine) applyListContext(run *execution.Run) (*Result, error) {
	machine := run.Machine
	var paths []string
	for _, node := range machine.NodesByType("context") {
		paths = append(paths, machine.Path(node.ID))
	}
	return &Result{Tool: ToolListContextNodes, Value: paths}, nil
}

func resolveInput(machine *model.Machine, scope model.NodeID, input map[string]interface{}, key string) (model.NodeID, error) {
	ref := stringInput(input, key)
	if ref == "" {
		return 0, fmt.Errorf("missing %s node reference", key)
	}
	id, ambiguous := compiler.Resolve(machine, scope, ref)
	if id == 0 {
		if len(ambiguous) > 0 {
			return 0, fmt.Errorf("%s %q is ambiguous", key, ref)
		}
		return 0, fmt.Errorf("%s %q does not exist", key, ref)
	}
	return id, nil
}

func stringInput(input map[string]interface{}, key string) string {
	if input == nil {
		return ""
	}
	value, ok := input[key]
	if !ok || value == nil {
		return ""
	}
	return toolbox.AsString(value)
}
