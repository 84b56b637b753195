// ABOUTME: Drafter interface and the Draft result shared by reply agents
// ABOUTME: Agents propose a reply, a rationale and advisory follow-up tasks

package agent

import (
	"context"
	"errors"

	"github.com/2389/coven-inbox/internal/store"
)

// ErrEmptyReply is returned when an agent produced no usable reply text
var ErrEmptyReply = errors.New("agent returned an empty reply")

// Draft is an agent's proposed reply for a thread.
// SuggestedTasks are advisory and are never turned into tasks automatically.
type Draft struct {
	Reply          string   `json:"reply"`
	Rationale      string   `json:"rationale"`
	SuggestedTasks []string `json:"suggestedTasks"`
}

// Drafter proposes a reply given the thread history (log order) and the
// channel the reply will be sent on.
type Drafter interface {
	Draft(ctx context.Context, history []*store.Message, channel string) (*Draft, error)
}

// DrafterFunc adapts a function to the Drafter interface.
type DrafterFunc func(ctx context.Context, history []*store.Message, channel string) (*Draft, error)

func (f DrafterFunc) Draft(ctx context.Context, history []*store.Message, channel string) (*Draft, error) {
	return f(ctx, history, channel)
}
