package dygram

import (
	"context"
	"fmt"

	"github.com/christopherdebeer/dygram/policy"
	"github.com/christopherdebeer/dygram/validator"
	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// Config is a serialisable representation of the service configuration. It can
// be populated from JSON or YAML; the zero-value is useful, all nested fields
// inherit their package defaults.
type Config struct {
	Engine    EngineConfig     `json:"engine" yaml:"engine"`
	Validator validator.Config `json:"validator,omitempty" yaml:"validator,omitempty"`
	Policy    *policy.Config   `json:"policy,omitempty" yaml:"policy,omitempty"`
	Runs      RunStoreConfig   `json:"runs,omitempty" yaml:"runs,omitempty"`
}

// EngineConfig bounds the decision loop.
type EngineConfig struct {
	DecisionTimeoutMs int `json:"decisionTimeoutMs" yaml:"decisionTimeoutMs"`
	DecisionRetries   int `json:"decisionRetries" yaml:"decisionRetries"`
	MaxSteps          int `json:"maxSteps" yaml:"maxSteps"`
}

// RunStoreConfig selects where run snapshots are persisted.
type RunStoreConfig struct {
	Kind     string `json:"kind,omitempty" yaml:"kind,omitempty"`         // memory (default) or sqlite
	Location string `json:"location,omitempty" yaml:"location,omitempty"` // sqlite database path
}

// DefaultConfig returns a Config populated with the same defaults the engine
// constructors use. Callers may modify the returned struct before passing it
// to NewFromConfig.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			DecisionTimeoutMs: 30000,
			DecisionRetries:   1,
			MaxSteps:          1000,
		},
		Runs: RunStoreConfig{Kind: "memory"},
	}
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Engine.DecisionTimeoutMs < 0 {
		return fmt.Errorf("engine.decisionTimeoutMs must be >= 0")
	}
	if c.Engine.DecisionRetries < 0 {
		return fmt.Errorf("engine.decisionRetries must be >= 0")
	}
	if c.Engine.MaxSteps <= 0 {
		return fmt.Errorf("engine.maxSteps must be > 0")
	}
	switch c.Runs.Kind {
	case "", "memory":
	case "sqlite":
		if c.Runs.Location == "" {
			return fmt.Errorf("runs.location is required for the sqlite store")
		}
	default:
		return fmt.Errorf("unknown runs.kind %q", c.Runs.Kind)
	}
	return nil
}

// LoadConfig reads a YAML configuration from the given URL (any scheme the
// virtual file system supports) and applies defaults to unset fields.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	data, err := afs.New().DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, err
	}
	config := DefaultConfig()
	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", URL, err)
	}
	if err = config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
