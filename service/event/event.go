package event

import "time"

// Run lifecycle event types.
const (
	TypeRunStarted   = "runStarted"
	TypeTransition   = "transition"
	TypeDecision     = "decision"
	TypeMutation     = "mutation"
	TypeContextWrite = "contextWrite"
	TypeRunFinished  = "runFinished"
)

type Context struct {
	RunID       string `json:"runID"`
	Node        string `json:"node,omitempty"`
	EventType   string `json:"eventType"`
	Tool        string `json:"tool,omitempty"`
	TimeTakenMs int    `json:"timeTakenMs,omitempty"`
}

type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata"`
	Data      T                      `json:"data"`
}

func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: time.Now(),
		Metadata:  make(map[string]interface{}),
		Data:      data,
	}
}
