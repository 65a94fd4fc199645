package decider

import (
	"context"
	"strings"
	"sync"
)

// Scripted is a deterministic decider that replays a fixed sequence of
// responses. It backs tests and CLI dry runs where no agent is attached.
// When the script is exhausted it answers end_turn.
type Scripted struct {
	mu        sync.Mutex
	responses []*Response
	index     int
}

// NewScripted creates a scripted decider.
func NewScripted(responses ...*Response) *Scripted {
	return &Scripted{responses: responses}
}

// Decide returns the next scripted response.
func (s *Scripted) Decide(_ context.Context, _ *Request) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index >= len(s.responses) {
		return &Response{StopReason: StopReasonEndTurn}, nil
	}
	response := s.responses[s.index]
	s.index++
	return response, nil
}

// FirstTransition is a decider that always picks the first transition tool it
// is offered, falling back to end_turn. Useful for walking a machine without
// an agent.
type FirstTransition struct{}

func (FirstTransition) Decide(_ context.Context, request *Request) (*Response, error) {
	for _, tool := range request.Tools {
		if strings.HasPrefix(tool.Name, "transition_to_") {
			return &Response{
				StopReason: StopReasonToolUse,
				Reasoning:  "taking the first available transition",
				Choice:     &Choice{Tool: tool.Name},
			}, nil
		}
	}
	return &Response{StopReason: StopReasonEndTurn}, nil
}
