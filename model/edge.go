package model

// Reserved edge attribute names holding guard condition expressions.
const (
	AttrIf     = "if"
	AttrWhen   = "when"
	AttrUnless = "unless"
)

// EdgeID addresses an edge inside a machine. Zero is the invalid ID.
type EdgeID int32

// Edge is a resolved, typed relation between two nodes. Source and Target are
// arena IDs; raw reference strings never survive resolution.
type Edge struct {
	ID                 EdgeID     `json:"id"`
	Source             NodeID     `json:"source"`
	Target             NodeID     `json:"target"`
	Arrow              ArrowType  `json:"arrow"`
	Label              string     `json:"label,omitempty"`
	SourceMultiplicity string     `json:"sourceMultiplicity,omitempty"`
	TargetMultiplicity string     `json:"targetMultiplicity,omitempty"`
	Attributes         Attributes `json:"attributes,omitempty"`
}

// Condition returns the guard expression attached to the edge together with
// its polarity: `if`/`when` guards pass when the expression is true, `unless`
// when it is false. An empty expression means the edge is unconditional.
func (e *Edge) Condition() (expr string, negate bool) {
	if value, ok := e.Attributes.Get(AttrIf); ok {
		return asString(value), false
	}
	if value, ok := e.Attributes.Get(AttrWhen); ok {
		return asString(value), false
	}
	if value, ok := e.Attributes.Get(AttrUnless); ok {
		return asString(value), true
	}
	return "", false
}

// Clone returns an independent copy of the edge.
func (e *Edge) Clone() *Edge {
	if e == nil {
		return nil
	}
	out := *e
	out.Attributes = e.Attributes.Clone()
	return &out
}

func asString(value interface{}) string {
	if text, ok := value.(string); ok {
		return text
	}
	return ""
}

// Note is a documentation entry attached to a target node. TargetPath keeps
// the full dotted path exactly as declared, even when expansion created the
// target several levels deep.
type Note struct {
	Target      NodeID      `json:"target"`
	TargetPath  string      `json:"targetPath"`
	Content     string      `json:"content"`
	Attributes  Attributes  `json:"attributes,omitempty"`
	Annotations Annotations `json:"annotations,omitempty"`
}

// InferredDependency is derived from a `{{ node.attr }}` template reference
// found in a string-valued attribute; it is never authored directly.
type InferredDependency struct {
	Source NodeID `json:"source"`
	Target NodeID `json:"target"`
	Reason string `json:"reason"` // attribute read on the target
	Path   string `json:"path"`   // the template expression as written
}
