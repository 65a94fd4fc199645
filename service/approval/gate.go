package approval

import (
	"context"
	"time"

	"github.com/christopherdebeer/dygram/policy"
	"github.com/christopherdebeer/dygram/runtime/execution"
)

// Gate adapts an approval service into a policy AskFunc: each gated tool call
// files a request and blocks until a decision is recorded or the timeout
// elapses. An elapsed timeout rejects the call.
func Gate(svc Service, timeout time.Duration) policy.AskFunc {
	return func(ctx context.Context, tool string, args map[string]interface{}, _ *policy.Policy) bool {
		request := &Request{
			Tool:      tool,
			Args:      args,
			CreatedAt: time.Now(),
		}
		if run := execution.ContextValue[*execution.Run](ctx); run != nil {
			request.RunID = run.ID
			request.Node = run.ActivePath()
		}
		if timeout > 0 {
			expires := time.Now().Add(timeout)
			request.ExpiresAt = &expires
		}
		if err := svc.RequestApproval(ctx, request); err != nil {
			return false
		}
		decision, err := WaitForDecision(ctx, svc, request.ID, timeout)
		if err != nil {
			return false
		}
		return decision.Approved
	}
}
