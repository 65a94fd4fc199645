package memory

import (
	approval "github.com/christopherdebeer/dygram/service/approval"
	"github.com/christopherdebeer/dygram/service/messaging"
)

type Option func(*service)

// WithQueue replaces the fan-out event queue, e.g. to share one queue between
// several approval services.
func WithQueue(q messaging.Queue[approval.Event]) Option {
	return func(s *service) { s.events = q }
}
