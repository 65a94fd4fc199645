package parser

import (
	"github.com/christopherdebeer/dygram/model"
)

// Document is the raw parse result of a single DyGram source. Declarations
// keep source order; nothing is expanded or resolved yet.
type Document struct {
	Title       string
	Attributes  []AttributeDecl
	Annotations []AnnotationDecl
	Statements  []Statement
}

// Statement is one top-level or block-level declaration.
type Statement interface {
	Position() model.Position
}

// NodeDecl declares (or augments) a node. Name may be a dotted path; Body
// holds the declarations nested in the `{ }` block, which the expander
// resolves relative to this node.
type NodeDecl struct {
	Pos         model.Position
	Type        string
	Name        string
	Title       string
	Annotations []AnnotationDecl
	Attributes  []AttributeDecl
	Body        []Statement
}

func (d *NodeDecl) Position() model.Position { return d.Pos }

// AttributeDecl is `name[<Type>]: value;`.
type AttributeDecl struct {
	Pos     model.Position
	Name    string
	TypeRef string
	Value   interface{}
}

func (d *AttributeDecl) Position() model.Position { return d.Pos }

// AnnotationDecl is `@Name` or `@Name("value")`.
type AnnotationDecl struct {
	Pos   model.Position
	Name  string
	Value string
}

func (d *AnnotationDecl) Position() model.Position { return d.Pos }

// Endpoint is one node reference inside an edge chain, with optional quoted
// multiplicities on either side of the name.
type Endpoint struct {
	Pos      model.Position
	Name     string
	PreMult  string
	PostMult string
}

// EdgeDecl is a chain `a -> b -> c` of endpoints joined by arrows. An
// optional trailing label and attribute block apply to every segment.
type EdgeDecl struct {
	Pos        model.Position
	Endpoints  []Endpoint
	Arrows     []model.ArrowType // len(Arrows) == len(Endpoints)-1
	Label      string
	Attributes []AttributeDecl
}

func (d *EdgeDecl) Position() model.Position { return d.Pos }

// NoteDecl is `note [for] target "content"` with an optional body.
type NoteDecl struct {
	Pos         model.Position
	Target      string
	Content     string
	Attributes  []AttributeDecl
	Annotations []AnnotationDecl
}

func (d *NoteDecl) Position() model.Position { return d.Pos }
