package model

// NodeID addresses a node inside a machine arena. Zero is the invalid ID.
type NodeID int32

// Attribute is a single name/value declaration. Type carries the optional
// declared type reference (e.g. "number", "Promise<Array<Record>>") verbatim.
type Attribute struct {
	Name  string      `json:"name"`
	Type  string      `json:"type,omitempty"`
	Value interface{} `json:"value"`
}

// Attributes keeps declaration order. Merge semantics: appending a new name
// preserves order, re-setting an existing name overwrites in place (last
// write wins for the value, first position wins for ordering).
type Attributes []Attribute

// Set applies the merge rule described above.
func (a *Attributes) Set(attr Attribute) {
	for i := range *a {
		if (*a)[i].Name == attr.Name {
			(*a)[i].Value = attr.Value
			if attr.Type != "" {
				(*a)[i].Type = attr.Type
			}
			return
		}
	}
	*a = append(*a, attr)
}

// Get returns the attribute value and whether it is present.
func (a Attributes) Get(name string) (interface{}, bool) {
	for i := range a {
		if a[i].Name == name {
			return a[i].Value, true
		}
	}
	return nil, false
}

// Lookup returns the attribute definition by name.
func (a Attributes) Lookup(name string) *Attribute {
	for i := range a {
		if a[i].Name == name {
			return &a[i]
		}
	}
	return nil
}

// Clone returns an independent copy.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	copy(out, a)
	return out
}

// Annotation attaches rule-based semantics to a node (e.g. @Async).
type Annotation struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// Annotations is an ordered annotation list.
type Annotations []Annotation

// Has reports whether an annotation with the given name is present.
func (a Annotations) Has(name string) bool {
	for i := range a {
		if a[i].Name == name {
			return true
		}
	}
	return false
}

// Clone returns an independent copy.
func (a Annotations) Clone() Annotations {
	if a == nil {
		return nil
	}
	out := make(Annotations, len(a))
	copy(out, a)
	return out
}

// Node is a vertex in the machine tree. Relations are stored as IDs, never
// nested ownership, so runtime insertion/removal cannot invalidate structures
// held elsewhere. The qualified path is derived by walking Parent links.
type Node struct {
	ID          NodeID      `json:"id"`
	Parent      NodeID      `json:"parent,omitempty"`
	Name        string      `json:"name"`
	Type        string      `json:"type,omitempty"`
	Title       string      `json:"title,omitempty"`
	Children    []NodeID    `json:"children,omitempty"`
	Attributes  Attributes  `json:"attributes,omitempty"`
	Annotations Annotations `json:"annotations,omitempty"`
}

// BoolAttr interprets an attribute as a permission-style boolean flag.
func (n *Node) BoolAttr(name string) bool {
	value, ok := n.Attributes.Get(name)
	if !ok {
		return false
	}
	switch actual := value.(type) {
	case bool:
		return actual
	case string:
		return actual == "true" || actual == "yes"
	}
	return false
}

// Clone returns an independent copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := *n
	if n.Children != nil {
		out.Children = append([]NodeID(nil), n.Children...)
	}
	out.Attributes = n.Attributes.Clone()
	out.Annotations = n.Annotations.Clone()
	return &out
}
