package approval

import (
	"time"
)

// Event is the envelope published on the approval queue.
type Event struct {
	Topic   string            // see topic constants below
	Data    interface{}       // *Request | *Decision
	Headers map[string]string `json:"headers,omitempty"` // optional: tenant, correlation-id etc.
}

// Standard event topics.
const (
	TopicRequestCreated  = "request.created"
	TopicRequestExpired  = "request.expired"
	TopicDecisionCreated = "decision.created"
)

// Request asks for approval of one gated tool call before the engine applies
// it to the run.
type Request struct {
	ID        string                 `json:"id"`    // globally unique, primary key
	RunID     string                 `json:"runId"` // run awaiting the decision
	Node      string                 `json:"node"`  // qualified path of the active node
	Tool      string                 `json:"tool"`  // e.g. add_node, modify_edge
	Args      map[string]interface{} `json:"args,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
	ExpiresAt *time.Time             `json:"expiresAt,omitempty"` // optional deadline
	Meta      map[string]interface{} `json:"meta,omitempty"`      // free-form: tenant, user, environment
}

// Decision records the approval outcome.
type Decision struct {
	ID        string    `json:"id"` // same as request.ID
	Approved  bool      `json:"approved"`
	Reason    string    `json:"reason,omitempty"`
	DecidedAt time.Time `json:"decidedAt"`
}
