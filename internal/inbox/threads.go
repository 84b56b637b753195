// ABOUTME: Groups the flat message log into per-thread conversation views
// ABOUTME: Pure functions over a store snapshot; nothing is cached

package inbox

import (
	"slices"
	"time"

	"github.com/2389/coven-inbox/internal/store"
)

// Thread is a derived view of every message sharing one ThreadID.
type Thread struct {
	ThreadID      string              `json:"threadId"`
	Channel       string              `json:"channel"`
	Contact       *store.Contact      `json:"contact"`
	Messages      []*store.Message    `json:"messages"`
	LastMessageAt time.Time           `json:"lastMessageAt"`
	Status        store.MessageStatus `json:"status"`
}

// BuildThreads groups messages by thread.
//
// Messages whose contact is unknown are skipped. LastMessageAt and Status come
// from the chronologically latest message; on equal timestamps the one seen
// first in the log wins. Messages inside a thread are ordered oldest first.
// Threads are ordered most recent first, ties keeping first-seen order.
func BuildThreads(messages []*store.Message, contacts []*store.Contact) []*Thread {
	byID := make(map[string]*store.Contact, len(contacts))
	for _, c := range contacts {
		byID[c.ID] = c
	}

	threads := make(map[string]*Thread)
	var order []*Thread

	for _, msg := range messages {
		contact, ok := byID[msg.ContactID]
		if !ok {
			continue
		}

		th, seen := threads[msg.ThreadID]
		if !seen {
			th = &Thread{
				ThreadID:      msg.ThreadID,
				Channel:       msg.Channel,
				Contact:       contact,
				LastMessageAt: msg.CreatedAt,
				Status:        msg.Status,
			}
			threads[msg.ThreadID] = th
			order = append(order, th)
		} else if msg.CreatedAt.After(th.LastMessageAt) {
			th.LastMessageAt = msg.CreatedAt
			th.Status = msg.Status
		}
		th.Messages = append(th.Messages, msg)
	}

	for _, th := range order {
		slices.SortStableFunc(th.Messages, func(a, b *store.Message) int {
			return a.CreatedAt.Compare(b.CreatedAt)
		})
	}

	slices.SortStableFunc(order, func(a, b *Thread) int {
		return b.LastMessageAt.Compare(a.LastMessageAt)
	})

	if order == nil {
		return []*Thread{}
	}
	return order
}

// Find returns the thread with the given id, or nil.
func Find(threads []*Thread, threadID string) *Thread {
	for _, th := range threads {
		if th.ThreadID == threadID {
			return th
		}
	}
	return nil
}
