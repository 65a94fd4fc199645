package approval_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	approval "github.com/christopherdebeer/dygram/service/approval"
	memApproval "github.com/christopherdebeer/dygram/service/approval/memory"
)

// TestWaitForDecision verifies that WaitForDecision blocks until a decision is
// recorded and returns the correct decision data.
func TestWaitForDecision(t *testing.T) {
	type testCase struct {
		name        string
		approve     bool
		expectError bool
		timeout     time.Duration
		decideDelay time.Duration
	}

	tests := []testCase{{
		name:        "approved before timeout",
		approve:     true,
		expectError: false,
		timeout:     500 * time.Millisecond,
		decideDelay: 10 * time.Millisecond,
	}, {
		name:        "rejected before timeout",
		approve:     false,
		expectError: false,
		timeout:     500 * time.Millisecond,
		decideDelay: 10 * time.Millisecond,
	}, {
		name:        "timeout waiting for decision",
		approve:     true, // irrelevant – decision never sent in time
		expectError: true,
		timeout:     50 * time.Millisecond,
		decideDelay: 200 * time.Millisecond,
	}}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			svc := memApproval.New()

			reqID := "req-1"
			req := &approval.Request{
				ID:        reqID,
				RunID:     "run-1",
				Tool:      "add_node",
				CreatedAt: time.Now(),
			}
			_ = svc.RequestApproval(ctx, req)

			if tc.decideDelay > 0 {
				go func() {
					time.Sleep(tc.decideDelay)
					_, _ = svc.Decide(ctx, reqID, tc.approve, "")
				}()
			}

			dec, err := approval.WaitForDecision(ctx, svc, reqID, tc.timeout)

			if tc.expectError {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			expected := &approval.Decision{
				ID:       reqID,
				Approved: tc.approve,
			}
			if dec != nil {
				expected.DecidedAt = dec.DecidedAt // align dynamic field
			}
			assert.EqualValues(t, expected, dec)
		})
	}
}

// TestListPending verifies that the ListPending helper applies filters
// correctly.
func TestListPending(t *testing.T) {
	ctx := context.Background()
	svc := memApproval.New()

	now := time.Now()
	requests := []*approval.Request{
		{ID: "r1", RunID: "run-1", Tool: "add_node", CreatedAt: now},
		{ID: "r2", RunID: "run-1", Tool: "modify_edge", CreatedAt: now},
		{ID: "r3", RunID: "run-2", Tool: "add_node", CreatedAt: now},
	}
	for _, r := range requests {
		_ = svc.RequestApproval(ctx, r)
	}

	type testCase struct {
		name     string
		filters  []approval.PendingFilter
		expected []*approval.Request
	}

	tests := []testCase{
		{
			name:     "filter by run",
			filters:  []approval.PendingFilter{approval.WithRunID("run-1")},
			expected: []*approval.Request{requests[0], requests[1]},
		},
		{
			name:     "filter by tool",
			filters:  []approval.PendingFilter{approval.WithTool("add_node")},
			expected: []*approval.Request{requests[0], requests[2]},
		},
		{
			name:     "filter by run and tool",
			filters:  []approval.PendingFilter{approval.WithRunID("run-1"), approval.WithTool("add_node")},
			expected: []*approval.Request{requests[0]},
		},
		{
			name:     "no filters",
			filters:  nil,
			expected: requests,
		},
	}

	sortByID := func(in []*approval.Request) []*approval.Request {
		out := make([]*approval.Request, len(in))
		copy(out, in)
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return out
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := approval.ListPending(ctx, svc, tc.filters...)
			assert.NoError(t, err)
			assert.EqualValues(t, sortByID(tc.expected), sortByID(actual))
		})
	}

	t.Run("auto_expire_rejects", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		svc := memApproval.New()
		expireAt := time.Now().Add(-1 * time.Minute) // already expired
		req := &approval.Request{ID: "exp1", RunID: "run-X", Tool: "remove_node", CreatedAt: time.Now(), ExpiresAt: &expireAt}
		_ = svc.RequestApproval(ctx, req)

		stop := approval.AutoExpire(ctx, svc, "expired", 10*time.Millisecond)
		defer stop()

		dec, err := approval.WaitForDecision(ctx, svc, req.ID, 500*time.Millisecond)
		assert.NoError(t, err)
		assert.EqualValues(t, &approval.Decision{ID: req.ID, Approved: false, Reason: "expired", DecidedAt: dec.DecidedAt}, dec)
	})
}

// TestGate verifies the policy adapter approves and rejects gated tool calls.
func TestGate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := memApproval.New()
	stop := approval.AutoApprove(ctx, svc, 10*time.Millisecond)
	defer stop()

	ask := approval.Gate(svc, 500*time.Millisecond)
	assert.True(t, ask(ctx, "add_node", map[string]interface{}{"name": "review"}, nil))

	rejecting := memApproval.New()
	stopReject := approval.AutoReject(ctx, rejecting, "not allowed", 10*time.Millisecond)
	defer stopReject()

	deny := approval.Gate(rejecting, 500*time.Millisecond)
	assert.False(t, deny(ctx, "remove_node", nil, nil))
}
