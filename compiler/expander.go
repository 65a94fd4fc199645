package compiler

import (
	"fmt"
	"strings"

	"github.com/christopherdebeer/dygram/model"
	"github.com/christopherdebeer/dygram/parser"
)

// pendingEdge is an edge declaration awaiting reference resolution. Scope is
// the node whose block contained the declaration (zero for document level);
// resolution prefers matches near that scope.
type pendingEdge struct {
	scope      model.NodeID
	source     string
	target     string
	arrow      model.ArrowType
	label      string
	sourceMult string
	targetMult string
	attributes []parser.AttributeDecl
	pos        model.Position
}

// pendingNote is a note declaration awaiting resolution. Target keeps the
// dotted path exactly as written; when it does not resolve, the expander
// creates note-typed nodes for it like any other qualified declaration.
type pendingNote struct {
	scope       model.NodeID
	target      string
	content     string
	attributes  []parser.AttributeDecl
	annotations []parser.AnnotationDecl
	pos         model.Position
}

// expander builds the canonical node tree out of raw declarations, applying
// the qualified-name expansion and merge rules.
type expander struct {
	machine     *model.Machine
	diagnostics model.Diagnostics
	edges       []pendingEdge
	notes       []pendingNote
}

func (e *expander) expand(scope model.NodeID, statements []parser.Statement) {
	for _, statement := range statements {
		switch decl := statement.(type) {
		case *parser.NodeDecl:
			e.expandNode(scope, decl)
		case *parser.EdgeDecl:
			e.expandEdge(scope, decl)
		case *parser.NoteDecl:
			e.notes = append(e.notes, pendingNote{
				scope:       scope,
				target:      decl.Target,
				content:     decl.Content,
				attributes:  decl.Attributes,
				annotations: decl.Annotations,
				pos:         decl.Pos,
			})
		}
	}
}

// expandNode descends the dotted path one segment at a time, creating missing
// segments. Only the leaf receives the declaration's type, title, attributes
// and annotations; intermediates inherit their type from the first qualified
// child that resolves through them.
func (e *expander) expandNode(scope model.NodeID, decl *parser.NodeDecl) {
	leaf := e.materialize(scope, decl.Name, decl.Type, decl.Pos)
	if leaf == nil {
		return
	}
	if decl.Title != "" {
		leaf.Title = decl.Title
	}
	for _, attr := range decl.Attributes {
		leaf.Attributes.Set(model.Attribute{Name: attr.Name, Type: attr.TypeRef, Value: attr.Value})
	}
	for _, annotation := range decl.Annotations {
		if !leaf.Annotations.Has(annotation.Name) {
			leaf.Annotations = append(leaf.Annotations, model.Annotation{Name: annotation.Name, Value: annotation.Value})
		}
	}
	// Declarations inside the block are relative to this node, not the
	// document root.
	e.expand(leaf.ID, decl.Body)
}

// materialize creates/reuses every segment of a dotted path below scope and
// returns the leaf node with leafType merged in.
func (e *expander) materialize(scope model.NodeID, path, leafType string, pos model.Position) *model.Node {
	segments := strings.Split(path, ".")
	current := scope
	for i, segment := range segments {
		last := i == len(segments)-1
		child := e.machine.Child(current, segment)
		if child == 0 {
			node := e.machine.AddNode(current, segment)
			if last {
				node.Type = leafType
			}
			child = node.ID
		} else if last && leafType != "" {
			node := e.machine.Node(child)
			if node.Type == "" {
				node.Type = leafType
			} else if node.Type != leafType {
				// Recoverable merge: keep the first type, surface the
				// conflict as a duplicate-state warning.
				e.diagnostics = append(e.diagnostics, model.Diagnostic{
					Severity: model.SeverityWarning,
					Code:     model.CodeDuplicate,
					Message:  fmt.Sprintf("node declared as %q and %q; keeping %q", node.Type, leafType, node.Type),
					Node:     e.machine.Path(child),
					Position: pos,
				})
			}
		}
		if !last && leafType != "" {
			// First qualified child to resolve through an untyped
			// intermediate donates its type; later children never override.
			node := e.machine.Node(child)
			if node.Type == "" {
				node.Type = leafType
			}
		}
		current = child
	}
	return e.machine.Node(current)
}

func (e *expander) expandEdge(scope model.NodeID, decl *parser.EdgeDecl) {
	for i, arrow := range decl.Arrows {
		source := decl.Endpoints[i]
		target := decl.Endpoints[i+1]
		e.edges = append(e.edges, pendingEdge{
			scope:      scope,
			source:     source.Name,
			target:     target.Name,
			arrow:      arrow,
			label:      decl.Label,
			sourceMult: firstNonEmpty(source.PostMult, source.PreMult),
			targetMult: firstNonEmpty(target.PreMult, target.PostMult),
			attributes: decl.Attributes,
			pos:        decl.Pos,
		})
	}
}

// expandNote turns an unresolved note target into note-typed nodes, exactly
// like a qualified node declaration, and records the note itself. The created
// node carries a `target` attribute holding the dotted path as originally
// written, regardless of how deep the expansion nested it.
func (e *expander) expandNote(note pendingNote) *model.Node {
	leaf := e.materialize(note.scope, note.target, "note", note.pos)
	if leaf == nil {
		return nil
	}
	leaf.Attributes.Set(model.Attribute{Name: "target", Value: note.target})
	return leaf
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
