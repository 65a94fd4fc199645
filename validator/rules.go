package validator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/christopherdebeer/dygram/model"
)

// Node types participating in control flow. Context nodes hold data and notes
// hold documentation; neither is expected to be reached by transitions.
func flowNode(node *model.Node) bool {
	switch node.Type {
	case "note", "context":
		return false
	}
	return true
}

// checkReachability walks the edge graph from every init node and reports
// flow nodes no walk can reach. Machines without an init node skip the check;
// there is nothing to be reachable from.
func (v *Validator) checkReachability(m *model.Machine) model.Diagnostics {
	inits := m.NodesByType("init")
	if len(inits) == 0 {
		return nil
	}
	reached := map[model.NodeID]bool{}
	var visit func(model.NodeID)
	visit = func(id model.NodeID) {
		if reached[id] {
			return
		}
		reached[id] = true
		for _, edge := range m.Outgoing(id) {
			next := edge.Target
			if next == id {
				next = edge.Source
			}
			visit(next)
		}
	}
	for _, init := range inits {
		visit(init.ID)
	}

	var diagnostics model.Diagnostics
	m.Walk(func(node *model.Node) bool {
		if reached[node.ID] || !flowNode(node) || len(node.Children) > 0 {
			return true
		}
		diagnostics = append(diagnostics, model.Diagnostic{
			Severity: v.severity(CheckUnreachable),
			Code:     model.CodeUnreachable,
			Message:  fmt.Sprintf("node %q is unreachable from any init node", m.Path(node.ID)),
			Node:     m.Path(node.ID),
		})
		return true
	})
	return diagnostics
}

// checkOrphans reports flow nodes with no incident edges at all.
func (v *Validator) checkOrphans(m *model.Machine) model.Diagnostics {
	connected := map[model.NodeID]bool{}
	for _, edge := range m.Edges() {
		connected[edge.Source] = true
		connected[edge.Target] = true
	}
	var diagnostics model.Diagnostics
	m.Walk(func(node *model.Node) bool {
		if connected[node.ID] || !flowNode(node) || len(node.Children) > 0 {
			return true
		}
		diagnostics = append(diagnostics, model.Diagnostic{
			Severity: v.severity(CheckOrphans),
			Code:     model.CodeOrphan,
			Message:  fmt.Sprintf("node %q has no edges", m.Path(node.ID)),
			Node:     m.Path(node.ID),
		})
		return true
	})
	return diagnostics
}

// checkCycles detects cycles in the directed edge graph with a three-color
// depth first search. Each cycle is reported once, naming every node on it in
// traversal order. Bidirectional edges are not followed backwards here; a
// lone A <--> B pair is not a cycle worth flagging.
func (v *Validator) checkCycles(m *model.Machine) model.Diagnostics {
	const (
		white = iota
		grey
		black
	)
	color := map[model.NodeID]int{}
	var stack []model.NodeID
	var diagnostics model.Diagnostics

	var visit func(model.NodeID)
	visit = func(id model.NodeID) {
		color[id] = grey
		stack = append(stack, id)
		for _, edge := range m.Edges() {
			if edge.Source != id {
				continue
			}
			switch color[edge.Target] {
			case white:
				visit(edge.Target)
			case grey:
				diagnostics = append(diagnostics, v.cycleDiagnostic(m, stack, edge.Target))
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
	}
	for _, node := range m.Nodes() {
		if color[node.ID] == white {
			visit(node.ID)
		}
	}
	return diagnostics
}

func (v *Validator) cycleDiagnostic(m *model.Machine, stack []model.NodeID, entry model.NodeID) model.Diagnostic {
	start := 0
	for i, id := range stack {
		if id == entry {
			start = i
			break
		}
	}
	names := make([]string, 0, len(stack)-start+1)
	for _, id := range stack[start:] {
		names = append(names, m.Path(id))
	}
	names = append(names, m.Path(entry))
	return model.Diagnostic{
		Severity: v.severity(CheckCycles),
		Code:     model.CodeCycle,
		Message:  fmt.Sprintf("cycle detected: %s", strings.Join(names, " -> ")),
		Node:     m.Path(entry),
	}
}

// Annotation compatibility: which node types each known annotation accepts.
// Unknown annotations pass through untouched.
var annotationRules = map[string]func(nodeType string) bool{
	"Async":     func(t string) bool { return t == "task" },
	"Singleton": func(t string) bool { return t == "task" || t == "context" },
	"Abstract":  func(t string) bool { return t != "init" },
}

func (v *Validator) checkAnnotations(m *model.Machine) model.Diagnostics {
	var diagnostics model.Diagnostics
	m.Walk(func(node *model.Node) bool {
		for _, annotation := range node.Annotations {
			allowed, known := annotationRules[annotation.Name]
			if !known || allowed(node.Type) {
				continue
			}
			diagnostics = append(diagnostics, model.Diagnostic{
				Severity: v.severity(CheckAnnotations),
				Code:     model.CodeAnnotation,
				Message:  fmt.Sprintf("@%s is not valid on %s node %q", annotation.Name, node.Type, m.Path(node.ID)),
				Node:     m.Path(node.ID),
			})
		}
		return true
	})
	return diagnostics
}

var multiplicityPattern = regexp.MustCompile(`^(\d+|\*)(\.\.(\d+|\*))?$`)

func (v *Validator) checkMultiplicities(m *model.Machine) model.Diagnostics {
	var diagnostics model.Diagnostics
	for _, edge := range m.Edges() {
		for _, mult := range []string{edge.SourceMultiplicity, edge.TargetMultiplicity} {
			if mult == "" {
				continue
			}
			if diagnostic := v.checkMultiplicity(m, edge, mult); diagnostic != nil {
				diagnostics = append(diagnostics, *diagnostic)
			}
		}
	}
	return diagnostics
}

func (v *Validator) checkMultiplicity(m *model.Machine, edge *model.Edge, mult string) *model.Diagnostic {
	location := fmt.Sprintf("edge %s %s %s", m.Path(edge.Source), edge.Arrow.Symbol(), m.Path(edge.Target))
	match := multiplicityPattern.FindStringSubmatch(mult)
	if match == nil || match[1] == "*" && match[3] != "" {
		return &model.Diagnostic{
			Severity: v.severity(CheckMultiplicity),
			Code:     model.CodeMultiplicity,
			Message:  fmt.Sprintf("invalid multiplicity %q on %s", mult, location),
			Node:     m.Path(edge.Source),
		}
	}
	if match[3] == "" || match[3] == "*" {
		// Unbounded upper with a large lower bound is legal but suspicious.
		if lower, err := strconv.Atoi(match[1]); err == nil && lower > 1 && match[3] == "*" {
			return &model.Diagnostic{
				Severity: model.SeverityWarning,
				Code:     model.CodeMultiplicity,
				Message:  fmt.Sprintf("unusual multiplicity %q on %s", mult, location),
				Node:     m.Path(edge.Source),
			}
		}
		return nil
	}
	lower, _ := strconv.Atoi(match[1])
	upper, _ := strconv.Atoi(match[3])
	if lower > upper {
		return &model.Diagnostic{
			Severity: v.severity(CheckMultiplicity),
			Code:     model.CodeMultiplicity,
			Message:  fmt.Sprintf("multiplicity %q has lower bound above upper bound on %s", mult, location),
			Node:     m.Path(edge.Source),
		}
	}
	return nil
}

// checkAttributeTypes verifies declared attribute types against the parsed
// value kind for the primitive types; composite and custom types are left to
// the runtime converter.
func (v *Validator) checkAttributeTypes(m *model.Machine) model.Diagnostics {
	var diagnostics model.Diagnostics
	m.Walk(func(node *model.Node) bool {
		for _, attr := range node.Attributes {
			if attr.Type == "" || attr.Value == nil {
				continue
			}
			if typeMatches(attr.Type, attr.Value) {
				continue
			}
			diagnostics = append(diagnostics, model.Diagnostic{
				Severity: v.severity(CheckTypes),
				Code:     model.CodeTypeMismatch,
				Message:  fmt.Sprintf("attribute %q on node %q declares %s but holds %T", attr.Name, m.Path(node.ID), attr.Type, attr.Value),
				Node:     m.Path(node.ID),
			})
		}
		return true
	})
	return diagnostics
}

func typeMatches(declared string, value interface{}) bool {
	base := strings.ToLower(declared)
	if i := strings.IndexByte(base, '<'); i >= 0 {
		base = base[:i]
	}
	switch base {
	case "string", "str", "text":
		_, ok := value.(string)
		return ok
	case "number", "int", "integer", "float", "double":
		switch value.(type) {
		case int, int64, float64:
			return true
		}
		return false
	case "boolean", "bool":
		_, ok := value.(bool)
		return ok
	case "array", "list":
		_, ok := value.([]interface{})
		return ok
	}
	// Map, custom and generic element types are converter territory.
	return true
}
