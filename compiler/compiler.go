// Package compiler turns a raw parse tree into the canonical machine model:
// qualified-name expansion and merge first, then reference resolution for
// edges and notes. Problems are collected as diagnostics, never panicked.
package compiler

import (
	"fmt"
	"strings"

	"github.com/christopherdebeer/dygram/model"
	"github.com/christopherdebeer/dygram/parser"
)

// Compile expands and resolves a parsed document into a machine. The
// diagnostics list carries merge warnings and unresolved-reference errors;
// the machine is returned even when diagnostics contain errors so tooling can
// inspect the partial result.
func Compile(doc *parser.Document) (*model.Machine, model.Diagnostics) {
	machine := model.NewMachine(doc.Title)
	for _, attr := range doc.Attributes {
		machine.Attributes.Set(model.Attribute{Name: attr.Name, Type: attr.TypeRef, Value: attr.Value})
	}
	for _, annotation := range doc.Annotations {
		machine.Annotations = append(machine.Annotations, model.Annotation{Name: annotation.Name, Value: annotation.Value})
	}

	e := &expander{machine: machine}
	e.expand(0, doc.Statements)

	// Notes resolve before edges: a note with an unresolved qualified target
	// inserts note-typed nodes that edges may legitimately reference.
	for _, note := range e.notes {
		resolveNote(e, note)
	}
	for _, edge := range e.edges {
		resolveEdge(e, edge)
	}
	return machine, e.diagnostics
}

func resolveNote(e *expander, note pendingNote) {
	id, ambiguous := resolveRef(e.machine, note.scope, note.target)
	if len(ambiguous) > 0 {
		e.diagnostics = append(e.diagnostics, ambiguityDiagnostic(e.machine, "note", note.target, ambiguous, note.pos))
		return
	}
	targetPath := note.target
	if id == 0 {
		leaf := e.expandNote(note)
		if leaf == nil {
			return
		}
		id = leaf.ID
	} else {
		targetPath = e.machine.Path(id)
	}
	entry := &model.Note{Target: id, TargetPath: targetPath, Content: note.content}
	for _, attr := range note.attributes {
		entry.Attributes.Set(model.Attribute{Name: attr.Name, Type: attr.TypeRef, Value: attr.Value})
	}
	for _, annotation := range note.annotations {
		entry.Annotations = append(entry.Annotations, model.Annotation{Name: annotation.Name, Value: annotation.Value})
	}
	e.machine.Notes = append(e.machine.Notes, entry)
}

func resolveEdge(e *expander, edge pendingEdge) {
	source, ambiguousSource := resolveRef(e.machine, edge.scope, edge.source)
	target, ambiguousTarget := resolveRef(e.machine, edge.scope, edge.target)
	label := edgeName(edge)
	if len(ambiguousSource) > 0 {
		e.diagnostics = append(e.diagnostics, ambiguityDiagnostic(e.machine, label, edge.source, ambiguousSource, edge.pos))
		return
	}
	if len(ambiguousTarget) > 0 {
		e.diagnostics = append(e.diagnostics, ambiguityDiagnostic(e.machine, label, edge.target, ambiguousTarget, edge.pos))
		return
	}
	if source == 0 {
		e.diagnostics = append(e.diagnostics, referenceDiagnostic(label, edge.source, edge.pos))
		return
	}
	if target == 0 {
		e.diagnostics = append(e.diagnostics, referenceDiagnostic(label, edge.target, edge.pos))
		return
	}
	resolved := &model.Edge{
		Source:             source,
		Target:             target,
		Arrow:              edge.arrow,
		Label:              edge.label,
		SourceMultiplicity: edge.sourceMult,
		TargetMultiplicity: edge.targetMult,
	}
	for _, attr := range edge.attributes {
		resolved.Attributes.Set(model.Attribute{Name: attr.Name, Type: attr.TypeRef, Value: attr.Value})
	}
	e.machine.AddEdge(resolved)
}

func edgeName(edge pendingEdge) string {
	return fmt.Sprintf("edge %s %s %s", edge.source, edge.arrow.Symbol(), edge.target)
}

func referenceDiagnostic(referrer, missing string, pos model.Position) model.Diagnostic {
	return model.Diagnostic{
		Severity: model.SeverityError,
		Code:     model.CodeReference,
		Message:  fmt.Sprintf("%s references unknown node %q", referrer, missing),
		Node:     missing,
		Position: pos,
	}
}

func ambiguityDiagnostic(m *model.Machine, referrer, ref string, candidates []model.NodeID, pos model.Position) model.Diagnostic {
	paths := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		paths = append(paths, m.Path(candidate))
	}
	return model.Diagnostic{
		Severity: model.SeverityError,
		Code:     model.CodeReference,
		Message:  fmt.Sprintf("%s reference %q is ambiguous between %s; qualify the name", referrer, ref, strings.Join(paths, ", ")),
		Node:     ref,
		Position: pos,
	}
}
