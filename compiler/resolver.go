package compiler

import (
	"strings"

	"github.com/christopherdebeer/dygram/model"
)

// Resolve resolves a node reference against a compiled machine using the
// same rules edges use at compile time. The second return value lists the
// competing candidates when the reference is ambiguous.
func Resolve(m *model.Machine, scope model.NodeID, ref string) (model.NodeID, []model.NodeID) {
	return resolveRef(m, scope, ref)
}

// resolveRef resolves a node reference (a simple name or any suffix of a
// qualified path) against the expanded tree. Resolution order:
//
//  1. exact qualified path match from the document root;
//  2. unique suffix match by leaf name anywhere in the tree, preferring
//     matches within the nearest enclosing scope of the declaration;
//  3. otherwise unresolved (ambiguous reports the competing candidates).
func resolveRef(m *model.Machine, scope model.NodeID, ref string) (id model.NodeID, ambiguous []model.NodeID) {
	if exact := m.Find(0, ref); exact != 0 {
		return exact, nil
	}

	segments := strings.Split(ref, ".")
	leaf := segments[len(segments)-1]
	var candidates []model.NodeID
	for _, candidate := range m.ByName(leaf) {
		if suffixMatches(m, candidate, segments) {
			candidates = append(candidates, candidate)
		}
	}
	switch len(candidates) {
	case 0:
		return 0, nil
	case 1:
		return candidates[0], nil
	}

	// Several subtrees share the leaf name: prefer the candidate sharing the
	// deepest ancestor with the referencing declaration's scope.
	best := make([]model.NodeID, 0, len(candidates))
	bestDepth := -1
	for _, candidate := range candidates {
		depth := sharedDepth(m, scope, candidate)
		if depth > bestDepth {
			bestDepth = depth
			best = best[:0]
		}
		if depth == bestDepth {
			best = append(best, candidate)
		}
	}
	if len(best) == 1 {
		return best[0], nil
	}
	return 0, best
}

// suffixMatches reports whether the node's qualified path ends with the given
// segments.
func suffixMatches(m *model.Machine, id model.NodeID, segments []string) bool {
	current := id
	for i := len(segments) - 1; i >= 0; i-- {
		node := m.Node(current)
		if node == nil || node.Name != segments[i] {
			return false
		}
		current = node.Parent
	}
	return true
}

// sharedDepth counts how many ancestors (including the scope itself) the
// candidate's path shares with the declaration scope chain.
func sharedDepth(m *model.Machine, scope, candidate model.NodeID) int {
	if scope == 0 {
		return 0
	}
	ancestors := map[model.NodeID]int{}
	depth := 0
	for current := scope; current != 0; {
		ancestors[current] = depth
		depth++
		node := m.Node(current)
		if node == nil {
			break
		}
		current = node.Parent
	}
	for current := candidate; current != 0; {
		if d, ok := ancestors[current]; ok {
			// Deeper scope ancestors score higher.
			return len(ancestors) - d
		}
		node := m.Node(current)
		if node == nil {
			break
		}
		current = node.Parent
	}
	return 0
}
