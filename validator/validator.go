// Package validator runs structural and semantic checks over a compiled
// machine. Every check is independently toggleable and reports with a
// configurable severity; findings are collected, never thrown.
package validator

import (
	"github.com/christopherdebeer/dygram/model"
)

// Check identifies a single validation rule.
type Check string

const (
	CheckUnreachable  Check = "unreachable"
	CheckOrphans      Check = "orphans"
	CheckCycles       Check = "cycles"
	CheckAnnotations  Check = "annotations"
	CheckMultiplicity Check = "multiplicity"
	CheckTypes        Check = "types"
	CheckDependencies Check = "dependencies"
)

// Config controls which checks run and at which severity they report.
// The zero value runs everything with default severities.
type Config struct {
	Disabled map[Check]bool           `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Severity map[Check]model.Severity `json:"severity,omitempty" yaml:"severity,omitempty"`
}

var defaultSeverity = map[Check]model.Severity{
	CheckUnreachable:  model.SeverityWarning,
	CheckOrphans:      model.SeverityInfo,
	CheckCycles:       model.SeverityWarning,
	CheckAnnotations:  model.SeverityError,
	CheckMultiplicity: model.SeverityError,
	CheckTypes:        model.SeverityError,
	CheckDependencies: model.SeverityError,
}

// Validator applies the configured checks.
type Validator struct {
	config Config
}

// New creates a validator with the supplied configuration.
func New(config Config) *Validator {
	return &Validator{config: config}
}

// Default returns a validator running every check at default severity.
func Default() *Validator {
	return &Validator{}
}

func (v *Validator) enabled(check Check) bool {
	return !v.config.Disabled[check]
}

func (v *Validator) severity(check Check) model.Severity {
	if severity, ok := v.config.Severity[check]; ok {
		return severity
	}
	return defaultSeverity[check]
}

// Validate runs all enabled checks. Dependency inference mutates the machine
// by filling InferredDependencies; all other checks are read-only.
func (v *Validator) Validate(m *model.Machine) model.Diagnostics {
	var diagnostics model.Diagnostics
	if v.enabled(CheckUnreachable) {
		diagnostics = append(diagnostics, v.checkReachability(m)...)
	}
	if v.enabled(CheckOrphans) {
		diagnostics = append(diagnostics, v.checkOrphans(m)...)
	}
	if v.enabled(CheckCycles) {
		diagnostics = append(diagnostics, v.checkCycles(m)...)
	}
	if v.enabled(CheckAnnotations) {
		diagnostics = append(diagnostics, v.checkAnnotations(m)...)
	}
	if v.enabled(CheckMultiplicity) {
		diagnostics = append(diagnostics, v.checkMultiplicities(m)...)
	}
	if v.enabled(CheckTypes) {
		diagnostics = append(diagnostics, v.checkAttributeTypes(m)...)
	}
	if v.enabled(CheckDependencies) {
		diagnostics = append(diagnostics, v.inferDependencies(m)...)
	}
	return diagnostics
}
