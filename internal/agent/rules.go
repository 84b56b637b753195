// ABOUTME: Deterministic keyword-based Drafter used when no LLM is configured
// ABOUTME: Produces a templated reply and follow-up suggestions from the last inbound message

package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389/coven-inbox/internal/store"
)

type rule struct {
	keywords []string
	reply    string
	task     string
}

// Rules are checked in order; the first match decides the reply.
var defaultRules = []rule{
	{
		keywords: []string{"refund", "broken", "damaged", "complaint", "angry", "terrible"},
		reply:    "I'm sorry about this. I've flagged it with the team and we'll make it right. Could you share your order number?",
		task:     "Escalate complaint to support lead",
	},
	{
		keywords: []string{"price", "pricing", "quote", "cost", "how much"},
		reply:    "Thanks for asking! I'll put together pricing for you. Could you tell me a bit more about what you need?",
		task:     "Send pricing details",
	},
	{
		keywords: []string{"book", "appointment", "schedule", "demo", "meeting"},
		reply:    "Happy to set that up. What days and times work best for you?",
		task:     "Confirm meeting time",
	},
	{
		keywords: []string{"ship", "delivery", "tracking", "order"},
		reply:    "Let me check on your order. I'll get back to you shortly with an update.",
		task:     "Check order status",
	},
}

const fallbackReply = "Thanks for reaching out! We've got your message and will follow up shortly."

// RuleDrafter drafts replies from keyword rules. It never fails and never
// calls out to the network.
type RuleDrafter struct{}

// NewRuleDrafter creates a RuleDrafter.
func NewRuleDrafter() *RuleDrafter {
	return &RuleDrafter{}
}

// Draft answers the most recent inbound message in the history.
func (RuleDrafter) Draft(ctx context.Context, history []*store.Message, channel string) (*Draft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var last *store.Message
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Direction == store.DirectionInbound {
			last = history[i]
			break
		}
	}

	if last == nil {
		return &Draft{
			Reply:          fallbackReply,
			Rationale:      "No inbound message to answer; sent a generic greeting.",
			SuggestedTasks: []string{},
		}, nil
	}

	text := strings.ToLower(last.Body)
	for _, r := range defaultRules {
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				return &Draft{
					Reply:          r.reply,
					Rationale:      fmt.Sprintf("Customer mentioned %q on %s.", kw, channel),
					SuggestedTasks: []string{r.task},
				}, nil
			}
		}
	}

	return &Draft{
		Reply:          fallbackReply,
		Rationale:      "No specific intent detected; acknowledged the message.",
		SuggestedTasks: []string{"Follow up in 2 days"},
	}, nil
}
