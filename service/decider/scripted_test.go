package decider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScriptedReplay(t *testing.T) {
	ctx := context.Background()
	scripted := NewScripted(
		&Response{StopReason: StopReasonToolUse, Choice: &Choice{Tool: "transition_to_a"}},
		&Response{StopReason: StopReasonToolUse, Choice: &Choice{Tool: "transition_to_b"}},
	)

	first, err := scripted.Decide(ctx, &Request{})
	assert.NoError(t, err)
	assert.EqualValues(t, "transition_to_a", first.Choice.Tool)

	second, _ := scripted.Decide(ctx, &Request{})
	assert.EqualValues(t, "transition_to_b", second.Choice.Tool)

	// an exhausted script ends the turn
	third, _ := scripted.Decide(ctx, &Request{})
	assert.EqualValues(t, StopReasonEndTurn, third.StopReason)
	assert.Nil(t, third.Choice)
}

func TestFirstTransition(t *testing.T) {
	ctx := context.Background()
	var d FirstTransition

	response, err := d.Decide(ctx, &Request{Tools: []*Tool{
		{Name: "add_node"},
		{Name: "transition_to_review"},
		{Name: "transition_to_reject"},
	}})
	assert.NoError(t, err)
	assert.EqualValues(t, StopReasonToolUse, response.StopReason)
	assert.EqualValues(t, "transition_to_review", response.Choice.Tool)

	response, _ = d.Decide(ctx, &Request{Tools: []*Tool{{Name: "set_context_value"}}})
	assert.EqualValues(t, StopReasonEndTurn, response.StopReason)
}
