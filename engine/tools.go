package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/christopherdebeer/dygram/model"
	"github.com/christopherdebeer/dygram/runtime/execution"
	"github.com/christopherdebeer/dygram/service/decider"
	"github.com/viant/toolbox"
)

// Node permission attributes gating the self-modification tools. A tool is
// offered only when the current node declares the matching flag true.
const (
	PermAddNodes     = "canAddNodes"
	PermRemoveNodes  = "canRemoveNodes"
	PermModifyEdges  = "canModifyEdges"
	PermReadContext  = "canReadContext"
	PermWriteContext = "canWriteContext"
)

// Names of the self-modification tools.
const (
	ToolAddNode          = "add_node"
	ToolRemoveNode       = "remove_node"
	ToolModifyEdge       = "modify_edge"
	ToolGetContextValue  = "get_context_value"
	ToolSetContextValue  = "set_context_value"
	ToolListContextNodes = "list_context_nodes"

	transitionPrefix = "transition_to_"
)

// AttrMaxVisits bounds how many times a transition may enter its target.
const AttrMaxVisits = "maxVisits"

// ToolSet is the outcome of tool enumeration at the run's current node.
type ToolSet struct {
	Node  model.NodeID
	Path  string
	Tools []*decider.Tool

	transitions map[string]model.NodeID
	meta        map[string]bool
}

// IsTerminal reports whether the node offers nothing: no eligible transitions
// and no meta tools. The engine completes the run instead of blocking.
func (t *ToolSet) IsTerminal() bool {
	return len(t.Tools) == 0
}

// Target returns the transition target for a transition tool name.
func (t *ToolSet) Target(tool string) (model.NodeID, bool) {
	id, ok := t.transitions[tool]
	return id, ok
}

// Offers reports whether the named tool is part of the set.
func (t *ToolSet) Offers(tool string) bool {
	if _, ok := t.transitions[tool]; ok {
		return true
	}
	return t.meta[tool]
}

// IsMeta reports whether the named tool mutates the run rather than
// transitioning it.
func (t *ToolSet) IsMeta(tool string) bool {
	return t.meta[tool]
}

// EnumerateTools computes the tools eligible at the run's current node:
// one transition tool per outgoing edge whose guard passes, plus the meta
// tools the node's permission attributes (and the effective policy) allow.
// The same policy resolution is used here and when gating the application,
// so a tool the gate would block is never offered.
func (e *Engine) EnumerateTools(ctx context.Context, run *execution.Run) *ToolSet {
	toolSet := &ToolSet{
		Node:        run.Current,
		Path:        run.ActivePath(),
		transitions: map[string]model.NodeID{},
		meta:        map[string]bool{},
	}
	machine := run.Machine
	node := machine.Node(run.Current)
	if node == nil {
		return toolSet
	}
	variables := e.runVariables(run)

	for _, edge := range machine.Outgoing(run.Current) {
		target := edge.Target
		if target == run.Current && edge.Arrow == model.ArrowBidirectional {
			target = edge.Source
		}
		if !e.edgeEligible(run, edge, target, variables) {
			continue
		}
		tool := transitionTool(machine, edge, target)
		if _, ok := toolSet.transitions[tool.Name]; ok {
			continue
		}
		toolSet.transitions[tool.Name] = target
		toolSet.Tools = append(toolSet.Tools, tool)
	}

	pol := runPolicy(ctx, run)
	for _, tool := range metaTools(node) {
		if pol != nil && !pol.IsAllowed(tool.Name) {
			continue
		}
		toolSet.meta[tool.Name] = true
		toolSet.Tools = append(toolSet.Tools, tool)
	}
	return toolSet
}

func (e *Engine) edgeEligible(run *execution.Run, edge *model.Edge, target model.NodeID, variables map[string]interface{}) bool {
	if expr, negate := edge.Condition(); expr != "" {
		pass := e.evaluator.EvaluateBool(expr, variables)
		if negate {
			pass = !pass
		}
		if !pass {
			return false
		}
	}
	if value, ok := edge.Attributes.Get(AttrMaxVisits); ok {
		if limit := toolbox.AsInt(value); limit > 0 && run.VisitCount(target) >= limit {
			return false
		}
	}
	return true
}

func transitionTool(machine *model.Machine, edge *model.Edge, target model.NodeID) *decider.Tool {
	path := machine.Path(target)
	name := transitionPrefix + sanitizeToolName(path)
	description := fmt.Sprintf("Transition to %s", path)
	if node := machine.Node(target); node != nil && node.Title != "" {
		description = fmt.Sprintf("Transition to %s (%s)", path, node.Title)
	}
	if edge.Label != "" {
		description += ": " + edge.Label
	}
	return &decider.Tool{
		Name:        name,
		Description: description,
		InputSchema: edgeInputSchema(edge),
	}
}

// edgeInputSchema derives the tool input from the edge's declared attributes,
// guards excluded.
func edgeInputSchema(edge *model.Edge) *decider.Schema {
	schema := &decider.Schema{Type: "object"}
	for _, attr := range edge.Attributes {
		switch attr.Name {
		case model.AttrIf, model.AttrWhen, model.AttrUnless, AttrMaxVisits:
			continue
		}
		if schema.Properties == nil {
			schema.Properties = map[string]*decider.Property{}
		}
		schema.Properties[attr.Name] = &decider.Property{Type: schemaType(attr.Type, attr.Value)}
	}
	return schema
}

func schemaType(declared string, value interface{}) string {
	base := strings.ToLower(declared)
	if i := strings.IndexByte(base, '<'); i >= 0 {
		base = base[:i]
	}
	switch base {
	case "string", "str", "text":
		return "string"
	case "number", "int", "integer", "float", "double":
		return "number"
	case "boolean", "bool":
		return "boolean"
	case "array", "list":
		return "array"
	}
	switch value.(type) {
	case bool:
		return "boolean"
	case int, int64, float64:
		return "number"
	case []interface{}:
		return "array"
	}
	return "string"
}

func metaTools(node *model.Node) []*decider.Tool {
	var tools []*decider.Tool
	if node.BoolAttr(PermAddNodes) {
		tools = append(tools, &decider.Tool{
			Name:        ToolAddNode,
			Description: "Add a node to the runtime graph",
			InputSchema: &decider.Schema{
				Type: "object",
				Properties: map[string]*decider.Property{
					"name":   {Type: "string", Description: "qualified name of the new node"},
					"type":   {Type: "string", Description: "node type: task, state, init or context"},
					"title":  {Type: "string"},
					"parent": {Type: "string", Description: "qualified name of the parent, empty for top level"},
				},
				Required: []string{"name"},
			},
		})
	}
	if node.BoolAttr(PermRemoveNodes) {
		tools = append(tools, &decider.Tool{
			Name:        ToolRemoveNode,
			Description: "Remove a node (and its subtree) from the runtime graph",
			InputSchema: &decider.Schema{
				Type: "object",
				Properties: map[string]*decider.Property{
					"name": {Type: "string", Description: "qualified name of the node to remove"},
				},
				Required: []string{"name"},
			},
		})
	}
	if node.BoolAttr(PermModifyEdges) {
		tools = append(tools, &decider.Tool{
			Name:        ToolModifyEdge,
			Description: "Add, relabel or remove an edge in the runtime graph",
			InputSchema: &decider.Schema{
				Type: "object",
				Properties: map[string]*decider.Property{
					"source": {Type: "string"},
					"target": {Type: "string"},
					"arrow":  {Type: "string", Description: "arrow symbol, defaults to ->"},
					"label":  {Type: "string"},
					"remove": {Type: "boolean", Description: "remove the edge instead of upserting it"},
				},
				Required: []string{"source", "target"},
			},
		})
	}
	if node.BoolAttr(PermReadContext) {
		tools = append(tools,
			&decider.Tool{
				Name:        ToolGetContextValue,
				Description: "Read an attribute value from a context node",
				InputSchema: &decider.Schema{
					Type: "object",
					Properties: map[string]*decider.Property{
						"node":      {Type: "string"},
						"attribute": {Type: "string"},
					},
					Required: []string{"node", "attribute"},
				},
			},
			&decider.Tool{
				Name:        ToolListContextNodes,
				Description: "List the context nodes available to this run",
				InputSchema: &decider.Schema{Type: "object"},
			})
	}
	if node.BoolAttr(PermWriteContext) {
		tools = append(tools, &decider.Tool{
			Name:        ToolSetContextValue,
			Description: "Write an attribute value on a context node",
			InputSchema: &decider.Schema{
				Type: "object",
				Properties: map[string]*decider.Property{
					"node":      {Type: "string"},
					"attribute": {Type: "string"},
					"value":     {Type: "string", Description: "value, coerced to the declared attribute type"},
				},
				Required: []string{"node", "attribute", "value"},
			},
		})
	}
	return tools
}

func sanitizeToolName(path string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, path)
}

// runVariables builds the evaluation scope for guard conditions: the node
// tree as nested maps (session values overriding declared attribute values)
// plus the engine builtins.
func (e *Engine) runVariables(run *execution.Run) map[string]interface{} {
	machine := run.Machine
	session := run.Session.GetAll()
	variables := map[string]interface{}{}

	var build func(id model.NodeID) map[string]interface{}
	build = func(id model.NodeID) map[string]interface{} {
		node := machine.Node(id)
		out := map[string]interface{}{}
		path := machine.Path(id)
		for _, attr := range node.Attributes {
			out[attr.Name] = attr.Value
		}
		prefix := path + "."
		for key, value := range session {
			if rest, ok := strings.CutPrefix(key, prefix); ok && !strings.Contains(rest, ".") {
				out[rest] = value
			}
		}
		for _, childID := range node.Children {
			if child := machine.Node(childID); child != nil {
				out[child.Name] = build(childID)
			}
		}
		return out
	}
	for _, root := range machine.Roots() {
		if node := machine.Node(root); node != nil {
			variables[node.Name] = build(root)
		}
	}

	variables["errorCount"] = run.ErrorCount()
	variables["errors"] = run.ErrorCount()
	variables["activeState"] = run.ActivePath()
	return variables
}
