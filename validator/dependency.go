package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/christopherdebeer/dygram/model"
)

// templatePattern matches {{ node.attr }} references inside string attribute
// values. The dotted head names a node, the final segment the attribute read
// from it. Single identifiers without a dot are evaluator builtins, not
// dependencies.
var templatePattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)+)\s*\}\}`)

// inferDependencies scans every string-valued attribute for template
// references, records the implied data dependencies on the machine and
// reports references to nodes or attributes that do not exist.
func (v *Validator) inferDependencies(m *model.Machine) model.Diagnostics {
	var diagnostics model.Diagnostics
	m.InferredDependencies = nil
	m.Walk(func(node *model.Node) bool {
		for _, attr := range node.Attributes {
			text, ok := attr.Value.(string)
			if !ok {
				continue
			}
			for _, match := range templatePattern.FindAllStringSubmatch(text, -1) {
				diagnostics = append(diagnostics, v.inferDependency(m, node, match[0], match[1])...)
			}
		}
		return true
	})
	return diagnostics
}

func (v *Validator) inferDependency(m *model.Machine, source *model.Node, expr, path string) model.Diagnostics {
	segments := strings.Split(path, ".")
	attrName := segments[len(segments)-1]
	nodeRef := strings.Join(segments[:len(segments)-1], ".")

	target := v.resolveTemplateNode(m, nodeRef)
	if target == 0 {
		return model.Diagnostics{{
			Severity: v.severity(CheckDependencies),
			Code:     model.CodeDependency,
			Message:  fmt.Sprintf("template %s in %q references unknown node %q", expr, m.Path(source.ID), nodeRef),
			Node:     m.Path(source.ID),
		}}
	}
	if _, ok := m.Node(target).Attributes.Get(attrName); !ok {
		return model.Diagnostics{{
			Severity: v.severity(CheckDependencies),
			Code:     model.CodeDependency,
			Message:  fmt.Sprintf("template %s in %q references missing attribute %q on node %q", expr, m.Path(source.ID), attrName, m.Path(target)),
			Node:     m.Path(source.ID),
		}}
	}
	m.InferredDependencies = append(m.InferredDependencies, model.InferredDependency{
		Source: source.ID,
		Target: target,
		Reason: attrName,
		Path:   expr,
	})
	return nil
}

// resolveTemplateNode resolves the dotted node reference of a template: an
// exact path from the root first, otherwise a unique simple-name match.
func (v *Validator) resolveTemplateNode(m *model.Machine, ref string) model.NodeID {
	if id := m.Find(0, ref); id != 0 {
		return id
	}
	if !strings.Contains(ref, ".") {
		if matches := m.ByName(ref); len(matches) == 1 {
			return matches[0]
		}
	}
	return 0
}
