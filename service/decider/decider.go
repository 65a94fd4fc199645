// Package decider abstracts the agent that picks the next tool for a run.
// The engine presents the current position and the enumerated tools; the
// decider answers with exactly one tool choice or ends the run.
package decider

import (
	"context"
)

// Stop reasons a decider can answer with.
const (
	StopReasonToolUse = "tool_use" // Choice names the tool to apply
	StopReasonEndTurn = "end_turn" // no further action, engine finalises
)

// Property describes one input field of a tool schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Schema is a JSON-schema style description of a tool's input.
type Schema struct {
	Type       string               `json:"type"`
	Properties map[string]*Property `json:"properties,omitempty"`
	Required   []string             `json:"required,omitempty"`
}

// Tool is one action the decider may pick.
type Tool struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	InputSchema *Schema `json:"input_schema,omitempty"`
}

// Request carries everything the decider needs for one decision.
type Request struct {
	SystemPrompt string                 `json:"systemPrompt"`
	Tools        []*Tool                `json:"tools"`
	Context      map[string]interface{} `json:"context,omitempty"`
}

// Choice is the tool the decider picked together with its input.
type Choice struct {
	Tool  string                 `json:"tool"`
	Input map[string]interface{} `json:"input,omitempty"`
}

// Response is the decider's answer.
type Response struct {
	Reasoning  string  `json:"reasoning,omitempty"`
	StopReason string  `json:"stopReason"`
	Choice     *Choice `json:"choice,omitempty"`
}

// Service decides the next step of a run.
type Service interface {
	Decide(ctx context.Context, request *Request) (*Response, error)
}
