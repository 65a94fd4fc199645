package model

import "fmt"

// Severity classifies a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Diagnostic codes, grouped by the phase that emits them.
const (
	CodeSyntax        = "syntax"
	CodeMergeConflict = "merge-conflict"
	CodeReference     = "reference"
	CodeTypeMismatch  = "type-mismatch"
	CodeSemantic      = "semantic"
	CodeUnreachable   = "unreachable"
	CodeOrphan        = "orphan"
	CodeCycle         = "cycle"
	CodeDuplicate     = "duplicate-state"
	CodeAnnotation    = "annotation"
	CodeMultiplicity  = "multiplicity"
	CodeDependency    = "dependency"
)

// Position locates a diagnostic in the source text. Zero value means the
// position is unknown (e.g. a diagnostic raised after merge).
type Position struct {
	Line   int `json:"line,omitempty"`
	Column int `json:"column,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Diagnostic is a single parser/merge/validation finding. Phases collect
// diagnostics into a list per document instead of failing on first error so
// that tooling can report everything at once.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Node     string   `json:"node,omitempty"` // qualified path when applicable
	Position Position `json:"position,omitempty"`
}

func (d Diagnostic) Error() string {
	if d.Node != "" {
		return fmt.Sprintf("%s [%s] %s: %s", d.Severity, d.Code, d.Node, d.Message)
	}
	return fmt.Sprintf("%s [%s] %s", d.Severity, d.Code, d.Message)
}

// Diagnostics is an ordered collection of findings.
type Diagnostics []Diagnostic

// HasErrors reports whether any diagnostic carries error severity.
func (d Diagnostics) HasErrors() bool {
	for i := range d {
		if d[i].Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns the error-severity subset.
func (d Diagnostics) Errors() Diagnostics {
	var out Diagnostics
	for i := range d {
		if d[i].Severity == SeverityError {
			out = append(out, d[i])
		}
	}
	return out
}

// Filter returns diagnostics matching the supplied code.
func (d Diagnostics) Filter(code string) Diagnostics {
	var out Diagnostics
	for i := range d {
		if d[i].Code == code {
			out = append(out, d[i])
		}
	}
	return out
}
