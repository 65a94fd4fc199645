package model

import (
	"encoding/json"
	"fmt"
)

// MachineJson is the canonical serialization boundary consumed by diagramming
// and tooling. It must round-trip losslessly to/from the in-memory model:
// FromJson(m.ToJson()) reproduces an equivalent machine.
type MachineJson struct {
	Title                string           `json:"title,omitempty"`
	Attributes           Attributes       `json:"attributes,omitempty"`
	Annotations          Annotations      `json:"annotations,omitempty"`
	Nodes                []NodeJson       `json:"nodes"`
	Edges                []EdgeJson       `json:"edges,omitempty"`
	Notes                []NoteJson       `json:"notes,omitempty"`
	InferredDependencies []DependencyJson `json:"inferredDependencies,omitempty"`
}

// NodeJson flattens the node tree; Parent carries the parent's full dotted
// path so the tree is reconstructible (nodes are emitted parents-first).
type NodeJson struct {
	Name        string      `json:"name"`
	Type        string      `json:"type,omitempty"`
	Title       string      `json:"title,omitempty"`
	Parent      string      `json:"parent,omitempty"`
	Attributes  Attributes  `json:"attributes,omitempty"`
	Annotations Annotations `json:"annotations,omitempty"`
}

// EdgeJson references endpoints by full dotted path.
type EdgeJson struct {
	Source             string     `json:"source"`
	Target             string     `json:"target"`
	Value              string     `json:"value,omitempty"` // edge label
	ArrowType          string     `json:"arrowType"`
	SourceMultiplicity string     `json:"sourceMultiplicity,omitempty"`
	TargetMultiplicity string     `json:"targetMultiplicity,omitempty"`
	Style              string     `json:"style,omitempty"`
	Attributes         Attributes `json:"attributes,omitempty"`
}

// NoteJson keeps the full original dotted target path.
type NoteJson struct {
	Target      string      `json:"target"`
	Content     string      `json:"content"`
	Attributes  Attributes  `json:"attributes,omitempty"`
	Annotations Annotations `json:"annotations,omitempty"`
}

// DependencyJson serializes an inferred dependency with path endpoints.
type DependencyJson struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Reason string `json:"reason"`
	Path   string `json:"path"`
}

// ToJson converts the machine to its canonical serializable form.
func (m *Machine) ToJson() *MachineJson {
	out := &MachineJson{
		Title:       m.Title,
		Attributes:  m.Attributes.Clone(),
		Annotations: m.Annotations.Clone(),
		Nodes:       make([]NodeJson, 0, len(m.nodes)),
	}
	m.Walk(func(node *Node) bool {
		out.Nodes = append(out.Nodes, NodeJson{
			Name:        node.Name,
			Type:        node.Type,
			Title:       node.Title,
			Parent:      m.Path(node.Parent),
			Attributes:  node.Attributes.Clone(),
			Annotations: node.Annotations.Clone(),
		})
		return true
	})
	for _, edge := range m.Edges() {
		out.Edges = append(out.Edges, EdgeJson{
			Source:             m.Path(edge.Source),
			Target:             m.Path(edge.Target),
			Value:              edge.Label,
			ArrowType:          edge.Arrow.String(),
			SourceMultiplicity: edge.SourceMultiplicity,
			TargetMultiplicity: edge.TargetMultiplicity,
			Style:              edge.Arrow.Style(),
			Attributes:         edge.Attributes.Clone(),
		})
	}
	for _, note := range m.Notes {
		out.Notes = append(out.Notes, NoteJson{
			Target:      note.TargetPath,
			Content:     note.Content,
			Attributes:  note.Attributes.Clone(),
			Annotations: note.Annotations.Clone(),
		})
	}
	for _, dep := range m.InferredDependencies {
		out.InferredDependencies = append(out.InferredDependencies, DependencyJson{
			Source: m.Path(dep.Source),
			Target: m.Path(dep.Target),
			Reason: dep.Reason,
			Path:   dep.Path,
		})
	}
	return out
}

// FromJson rebuilds an in-memory machine from its canonical form.
func FromJson(in *MachineJson) (*Machine, error) {
	m := NewMachine(in.Title)
	m.Attributes = in.Attributes.Clone()
	m.Annotations = in.Annotations.Clone()
	for _, node := range in.Nodes {
		var parent NodeID
		if node.Parent != "" {
			parent = m.Find(0, node.Parent)
			if parent == 0 {
				return nil, fmt.Errorf("node %q references unknown parent %q", node.Name, node.Parent)
			}
		}
		created := m.AddNode(parent, node.Name)
		created.Type = node.Type
		created.Title = node.Title
		created.Attributes = node.Attributes.Clone()
		created.Annotations = node.Annotations.Clone()
	}
	for _, edge := range in.Edges {
		source := m.Find(0, edge.Source)
		target := m.Find(0, edge.Target)
		if source == 0 || target == 0 {
			return nil, fmt.Errorf("edge %q %s %q references unknown node", edge.Source, edge.ArrowType, edge.Target)
		}
		arrow, err := ParseArrowName(edge.ArrowType)
		if err != nil {
			return nil, err
		}
		m.AddEdge(&Edge{
			Source:             source,
			Target:             target,
			Arrow:              arrow,
			Label:              edge.Value,
			SourceMultiplicity: edge.SourceMultiplicity,
			TargetMultiplicity: edge.TargetMultiplicity,
			Attributes:         edge.Attributes.Clone(),
		})
	}
	for _, note := range in.Notes {
		target := m.Find(0, note.Target)
		if target == 0 {
			return nil, fmt.Errorf("note references unknown node %q", note.Target)
		}
		m.Notes = append(m.Notes, &Note{
			Target:      target,
			TargetPath:  note.Target,
			Content:     note.Content,
			Attributes:  note.Attributes.Clone(),
			Annotations: note.Annotations.Clone(),
		})
	}
	for _, dep := range in.InferredDependencies {
		source := m.Find(0, dep.Source)
		target := m.Find(0, dep.Target)
		if source == 0 || target == 0 {
			return nil, fmt.Errorf("inferred dependency %q -> %q references unknown node", dep.Source, dep.Target)
		}
		m.InferredDependencies = append(m.InferredDependencies, InferredDependency{
			Source: source,
			Target: target,
			Reason: dep.Reason,
			Path:   dep.Path,
		})
	}
	return m, nil
}

// MarshalJSON serializes the machine in its canonical form.
func (m *Machine) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.ToJson())
}

// UnmarshalJSON rebuilds the machine from its canonical form.
func (m *Machine) UnmarshalJSON(data []byte) error {
	var in MachineJson
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	rebuilt, err := FromJson(&in)
	if err != nil {
		return err
	}
	*m = *rebuilt
	return nil
}
