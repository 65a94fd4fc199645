package model

import (
	"strings"
)

// Machine is the root of a parsed and validated workflow graph. Nodes live in
// an arena addressed by stable integer IDs; parent/child and source/target
// relations are stored as ID lists. The machine produced by compilation is
// treated as immutable once validated; the execution engine operates on a
// Clone so that runtime meta-programming cannot corrupt the source model.
type Machine struct {
	Title                string               `json:"title,omitempty"`
	Attributes           Attributes           `json:"attributes,omitempty"`
	Annotations          Annotations          `json:"annotations,omitempty"`
	Notes                []*Note              `json:"notes,omitempty"`
	InferredDependencies []InferredDependency `json:"inferredDependencies,omitempty"`

	nodes []*Node // arena; ID == index+1, removed entries are nil
	edges []*Edge // arena; ID == index+1, removed entries are nil
	roots []NodeID
}

// NewMachine creates an empty machine.
func NewMachine(title string) *Machine {
	return &Machine{Title: title}
}

// AddNode allocates a node in the arena and links it under parent (zero
// parent makes it a root). The returned node is owned by the machine.
func (m *Machine) AddNode(parent NodeID, name string) *Node {
	node := &Node{
		ID:     NodeID(len(m.nodes) + 1),
		Parent: parent,
		Name:   name,
	}
	m.nodes = append(m.nodes, node)
	if parent == 0 {
		m.roots = append(m.roots, node.ID)
	} else if p := m.Node(parent); p != nil {
		p.Children = append(p.Children, node.ID)
	}
	return node
}

// Node returns the node with the given ID, or nil when absent/removed.
func (m *Machine) Node(id NodeID) *Node {
	if id <= 0 || int(id) > len(m.nodes) {
		return nil
	}
	return m.nodes[id-1]
}

// RemoveNode detaches a node and its subtree from the machine, dropping every
// incident edge. Notes targeting removed nodes are dropped as well.
func (m *Machine) RemoveNode(id NodeID) bool {
	node := m.Node(id)
	if node == nil {
		return false
	}
	for _, child := range append([]NodeID(nil), node.Children...) {
		m.RemoveNode(child)
	}
	if node.Parent == 0 {
		m.roots = removeID(m.roots, id)
	} else if parent := m.Node(node.Parent); parent != nil {
		parent.Children = removeID(parent.Children, id)
	}
	for i, edge := range m.edges {
		if edge != nil && (edge.Source == id || edge.Target == id) {
			m.edges[i] = nil
		}
	}
	kept := m.Notes[:0]
	for _, note := range m.Notes {
		if note.Target != id {
			kept = append(kept, note)
		}
	}
	m.Notes = kept
	m.nodes[id-1] = nil
	return true
}

// Roots returns the top-level node IDs in declaration order.
func (m *Machine) Roots() []NodeID {
	return m.roots
}

// Nodes iterates live nodes in arena order.
func (m *Machine) Nodes() []*Node {
	out := make([]*Node, 0, len(m.nodes))
	for _, node := range m.nodes {
		if node != nil {
			out = append(out, node)
		}
	}
	return out
}

// AddEdge allocates an edge in the arena.
func (m *Machine) AddEdge(edge *Edge) *Edge {
	edge.ID = EdgeID(len(m.edges) + 1)
	m.edges = append(m.edges, edge)
	return edge
}

// Edge returns the edge with the given ID, or nil when absent/removed.
func (m *Machine) Edge(id EdgeID) *Edge {
	if id <= 0 || int(id) > len(m.edges) {
		return nil
	}
	return m.edges[id-1]
}

// RemoveEdge drops an edge from the arena.
func (m *Machine) RemoveEdge(id EdgeID) bool {
	if m.Edge(id) == nil {
		return false
	}
	m.edges[id-1] = nil
	return true
}

// Edges returns live edges in declaration order.
func (m *Machine) Edges() []*Edge {
	out := make([]*Edge, 0, len(m.edges))
	for _, edge := range m.edges {
		if edge != nil {
			out = append(out, edge)
		}
	}
	return out
}

// Outgoing returns edges whose source is the given node. Bidirectional edges
// are outgoing from both endpoints.
func (m *Machine) Outgoing(id NodeID) []*Edge {
	var out []*Edge
	for _, edge := range m.edges {
		if edge == nil {
			continue
		}
		if edge.Source == id || (edge.Arrow == ArrowBidirectional && edge.Target == id) {
			out = append(out, edge)
		}
	}
	return out
}

// Path returns the full dotted path of a node by walking parent links.
func (m *Machine) Path(id NodeID) string {
	node := m.Node(id)
	if node == nil {
		return ""
	}
	segments := []string{node.Name}
	for node.Parent != 0 {
		node = m.Node(node.Parent)
		if node == nil {
			break
		}
		segments = append([]string{node.Name}, segments...)
	}
	return strings.Join(segments, ".")
}

// Child returns the direct child of parent with the given simple name (zero
// parent searches the roots).
func (m *Machine) Child(parent NodeID, name string) NodeID {
	ids := m.roots
	if parent != 0 {
		node := m.Node(parent)
		if node == nil {
			return 0
		}
		ids = node.Children
	}
	for _, id := range ids {
		if child := m.Node(id); child != nil && child.Name == name {
			return id
		}
	}
	return 0
}

// Find resolves a full dotted path from the given scope (zero scope means the
// document root), descending one segment at a time.
func (m *Machine) Find(scope NodeID, path string) NodeID {
	current := scope
	for _, segment := range strings.Split(path, ".") {
		current = m.Child(current, segment)
		if current == 0 {
			return 0
		}
	}
	return current
}

// ByName returns every live node whose simple name matches.
func (m *Machine) ByName(name string) []NodeID {
	var out []NodeID
	for _, node := range m.nodes {
		if node != nil && node.Name == name {
			out = append(out, node.ID)
		}
	}
	return out
}

// Walk visits live nodes depth-first in declaration order.
func (m *Machine) Walk(visit func(*Node) bool) {
	var recurse func(NodeID) bool
	recurse = func(id NodeID) bool {
		node := m.Node(id)
		if node == nil {
			return true
		}
		if !visit(node) {
			return false
		}
		for _, child := range node.Children {
			if !recurse(child) {
				return false
			}
		}
		return true
	}
	for _, root := range m.roots {
		if !recurse(root) {
			return
		}
	}
}

// NodesByType returns live nodes carrying the given type keyword.
func (m *Machine) NodesByType(nodeType string) []*Node {
	var out []*Node
	m.Walk(func(node *Node) bool {
		if node.Type == nodeType {
			out = append(out, node)
		}
		return true
	})
	return out
}

// Clone creates a deep copy of the machine. The execution engine mutates the
// clone; the source machine stays intact.
func (m *Machine) Clone() *Machine {
	if m == nil {
		return nil
	}
	out := &Machine{
		Title:       m.Title,
		Attributes:  m.Attributes.Clone(),
		Annotations: m.Annotations.Clone(),
	}
	out.nodes = make([]*Node, len(m.nodes))
	for i, node := range m.nodes {
		out.nodes[i] = node.Clone()
	}
	out.edges = make([]*Edge, len(m.edges))
	for i, edge := range m.edges {
		out.edges[i] = edge.Clone()
	}
	out.roots = append([]NodeID(nil), m.roots...)
	if m.Notes != nil {
		out.Notes = make([]*Note, len(m.Notes))
		for i, note := range m.Notes {
			clone := *note
			clone.Attributes = note.Attributes.Clone()
			clone.Annotations = note.Annotations.Clone()
			out.Notes[i] = &clone
		}
	}
	if m.InferredDependencies != nil {
		out.InferredDependencies = append([]InferredDependency(nil), m.InferredDependencies...)
	}
	return out
}

func removeID(ids []NodeID, id NodeID) []NodeID {
	out := ids[:0]
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}
