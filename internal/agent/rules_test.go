// ABOUTME: Tests for the keyword rule drafter

package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-inbox/internal/store"
)

func TestRuleDrafter_MatchesLastInbound(t *testing.T) {
	history := []*store.Message{
		{Direction: store.DirectionInbound, Body: "What's the price for the team plan?"},
		{Direction: store.DirectionOutbound, Body: "Let me check"},
		{Direction: store.DirectionInbound, Body: "Also my last order arrived damaged"},
	}

	draft, err := NewRuleDrafter().Draft(context.Background(), history, "facebook")
	require.NoError(t, err)
	assert.Contains(t, draft.Reply, "sorry")
	assert.Equal(t, []string{"Escalate complaint to support lead"}, draft.SuggestedTasks)
	assert.Contains(t, draft.Rationale, "facebook")
}

func TestRuleDrafter_Fallbacks(t *testing.T) {
	d := NewRuleDrafter()

	draft, err := d.Draft(context.Background(), nil, "website")
	require.NoError(t, err)
	assert.Equal(t, fallbackReply, draft.Reply)
	assert.Empty(t, draft.SuggestedTasks)

	draft, err = d.Draft(context.Background(), []*store.Message{
		{Direction: store.DirectionInbound, Body: "hello!"},
	}, "website")
	require.NoError(t, err)
	assert.Equal(t, fallbackReply, draft.Reply)
	assert.Equal(t, []string{"Follow up in 2 days"}, draft.SuggestedTasks)
}

func TestRuleDrafter_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRuleDrafter().Draft(ctx, nil, "website")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildSystemPrompt(t *testing.T) {
	assert.Contains(t, BuildSystemPrompt("messenger"), "Messenger")
	assert.Contains(t, BuildSystemPrompt("sms"), "Channel: sms.")
	assert.Contains(t, BuildSystemPrompt("website"), "suggested_tasks")
}
