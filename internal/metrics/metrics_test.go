// ABOUTME: Tests for dashboard metric computation
// ABOUTME: Uses go-cmp for structural comparison of results

package metrics

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-inbox/internal/store"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func message(id, thread string, dir store.Direction, at time.Time, status store.MessageStatus, sentiment store.Sentiment) *store.Message {
	return &store.Message{
		ID: id, Channel: "website", ContactID: "c-" + thread, ThreadID: thread,
		Direction: dir, Body: id, Status: status, Sentiment: sentiment, CreatedAt: at,
	}
}

func contactsFor(threads ...string) []*store.Contact {
	out := []*store.Contact{}
	for _, th := range threads {
		out = append(out, &store.Contact{ID: "c-" + th, Name: th})
	}
	return out
}

func due(at time.Time) *time.Time { return &at }

func TestCompute_EmptySnapshot(t *testing.T) {
	got := Compute(&store.Snapshot{}, now, Options{})

	want := &Result{
		SentimentBreakdown: map[store.Sentiment]int{
			store.SentimentPositive: 0, store.SentimentNeutral: 0, store.SentimentNegative: 0,
		},
		TasksDueSoon: []*store.Task{},
		Pipeline: PipelineSummary{Stages: []StageTotal{
			{Stage: "lead"}, {Stage: "qualified"}, {Stage: "demo"},
			{Stage: "proposal"}, {Stage: "negotiation"}, {Stage: "won"},
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Compute() mismatch (-want +got):\n%s", diff)
	}
}

func TestCompute_FirstResponseExcludesUnansweredThreads(t *testing.T) {
	t0 := now.Add(-2 * time.Hour)
	snap := &store.Snapshot{
		Contacts: contactsFor("a", "b"),
		Messages: []*store.Message{
			message("a1", "a", store.DirectionInbound, t0, store.StatusNew, store.SentimentNeutral),
			message("a2", "a", store.DirectionOutbound, t0.Add(5*time.Minute), store.StatusResponded, store.SentimentPositive),
			message("b1", "b", store.DirectionInbound, t0, store.StatusNew, store.SentimentNeutral),
		},
	}

	got := Compute(snap, now, Options{})
	assert.Equal(t, 5.0, got.AvgFirstResponseMinutes)
}

func TestCompute_FirstResponseUsesFirstInboundAndFirstLaterOutbound(t *testing.T) {
	t0 := now.Add(-time.Hour)
	snap := &store.Snapshot{
		Contacts: contactsFor("a", "b"),
		Messages: []*store.Message{
			// Proactive outbound before any inbound does not count
			message("a0", "a", store.DirectionOutbound, t0.Add(-time.Hour), store.StatusOpen, store.SentimentNeutral),
			message("a1", "a", store.DirectionInbound, t0, store.StatusNew, store.SentimentNeutral),
			message("a2", "a", store.DirectionInbound, t0.Add(time.Minute), store.StatusNew, store.SentimentNeutral),
			message("a3", "a", store.DirectionOutbound, t0.Add(10*time.Minute), store.StatusResponded, store.SentimentPositive),
			message("a4", "a", store.DirectionOutbound, t0.Add(20*time.Minute), store.StatusResponded, store.SentimentPositive),
			// Thread b logged out of order: 2m20s response
			message("b2", "b", store.DirectionOutbound, t0.Add(140*time.Second), store.StatusResponded, store.SentimentPositive),
			message("b1", "b", store.DirectionInbound, t0, store.StatusNew, store.SentimentNeutral),
		},
	}

	got := Compute(snap, now, Options{})
	// (10 + 2.333...) / 2 = 6.1666... -> 6.17
	assert.Equal(t, 6.17, got.AvgFirstResponseMinutes)
}

func TestCompute_OpenConversationsUseLatestStatus(t *testing.T) {
	t0 := now.Add(-time.Hour)
	snap := &store.Snapshot{
		Contacts: contactsFor("open", "resolved", "closed", "responded", "orphan-free"),
		Messages: []*store.Message{
			message("o1", "open", store.DirectionInbound, t0, store.StatusNew, store.SentimentNeutral),
			message("r1", "resolved", store.DirectionInbound, t0, store.StatusNew, store.SentimentNeutral),
			message("r2", "resolved", store.DirectionOutbound, t0.Add(time.Minute), store.StatusResolved, store.SentimentNeutral),
			message("c2", "closed", store.DirectionOutbound, t0.Add(time.Minute), store.StatusClosed, store.SentimentNeutral),
			// Logged later but chronologically earlier: does not reopen the thread
			message("c1", "closed", store.DirectionInbound, t0, store.StatusNew, store.SentimentNeutral),
			message("p1", "responded", store.DirectionOutbound, t0, store.StatusResponded, store.SentimentNeutral),
			{ID: "x1", ContactID: "nobody", ThreadID: "ghost", Direction: store.DirectionInbound, Status: store.StatusNew, CreatedAt: t0},
		},
	}

	got := Compute(snap, now, Options{})
	assert.Equal(t, 2, got.OpenConversations, "open and responded threads are open; orphans are not threads")
}

func TestCompute_SentimentPartitionCoversEveryMessage(t *testing.T) {
	t0 := now.Add(-time.Hour)
	msgs := []*store.Message{
		message("1", "a", store.DirectionInbound, t0, store.StatusNew, store.SentimentPositive),
		message("2", "a", store.DirectionInbound, t0, store.StatusNew, store.SentimentNegative),
		message("3", "a", store.DirectionInbound, t0, store.StatusNew, store.SentimentNegative),
		message("4", "b", store.DirectionInbound, t0, store.StatusNew, store.SentimentNeutral),
		message("5", "b", store.DirectionInbound, t0, store.StatusNew, "mixed"),
		// Orphaned messages still count: the breakdown is over the full log
		{ID: "6", ContactID: "nobody", ThreadID: "ghost", Sentiment: store.SentimentPositive, CreatedAt: t0},
	}

	got := Compute(&store.Snapshot{Contacts: contactsFor("a", "b"), Messages: msgs}, now, Options{})

	want := map[store.Sentiment]int{
		store.SentimentPositive: 2,
		store.SentimentNeutral:  2,
		store.SentimentNegative: 2,
	}
	if diff := cmp.Diff(want, got.SentimentBreakdown); diff != "" {
		t.Errorf("SentimentBreakdown mismatch (-want +got):\n%s", diff)
	}

	sum := 0
	for _, n := range got.SentimentBreakdown {
		sum += n
	}
	assert.Equal(t, len(msgs), sum)
}

func TestCompute_TasksDueSoon(t *testing.T) {
	tasks := []*store.Task{
		{ID: "late", Status: store.TaskOpen, DueAt: due(now.Add(-time.Minute))},
		{ID: "b", Status: store.TaskOpen, DueAt: due(now.Add(2 * time.Hour))},
		{ID: "a", Status: store.TaskOpen, DueAt: due(now.Add(2 * time.Hour))},
		{ID: "first", Status: store.TaskOpen, DueAt: due(now)},
		{ID: "edge", Status: store.TaskOpen, DueAt: due(now.Add(24 * time.Hour))},
		{ID: "far", Status: store.TaskOpen, DueAt: due(now.Add(25 * time.Hour))},
		{ID: "done", Status: store.TaskCompleted, DueAt: due(now.Add(time.Hour))},
		{ID: "undated", Status: store.TaskOpen},
	}

	got := Compute(&store.Snapshot{Tasks: tasks}, now, Options{})

	ids := []string{}
	for _, task := range got.TasksDueSoon {
		ids = append(ids, task.ID)
	}
	assert.Equal(t, []string{"first", "a", "b", "edge"}, ids)

	narrow := Compute(&store.Snapshot{Tasks: tasks}, now, Options{DueSoonWindow: time.Hour})
	require.Len(t, narrow.TasksDueSoon, 1)
	assert.Equal(t, "first", narrow.TasksDueSoon[0].ID)
}

func TestCompute_Pipeline(t *testing.T) {
	deals := []*store.Deal{
		{ID: "d1", Stage: "proposal", Value: 1000, Probability: 0.5},
		{ID: "d2", Stage: "proposal", Value: 500, Probability: 0.2},
		{ID: "d3", Stage: "won", Value: 300, Probability: 1},
		{ID: "d4", Stage: "on-hold", Value: 200, Probability: 1.5},
	}

	got := Compute(&store.Snapshot{Deals: deals}, now, Options{}).Pipeline

	want := PipelineSummary{
		TotalValue:    2000,
		WeightedValue: 500 + 100 + 300 + 200,
		Stages: []StageTotal{
			{Stage: "lead"},
			{Stage: "qualified"},
			{Stage: "demo"},
			{Stage: "proposal", Count: 2, Value: 1500},
			{Stage: "negotiation"},
			{Stage: "won", Count: 1, Value: 300},
			{Stage: "on-hold", Count: 1, Value: 200},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Pipeline mismatch (-want +got):\n%s", diff)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	t0 := now.Add(-time.Hour)
	snap := &store.Snapshot{
		Contacts: contactsFor("a", "b"),
		Messages: []*store.Message{
			message("a1", "a", store.DirectionInbound, t0, store.StatusNew, store.SentimentNeutral),
			message("a2", "a", store.DirectionOutbound, t0.Add(3*time.Minute), store.StatusResponded, store.SentimentPositive),
			message("b1", "b", store.DirectionInbound, t0, store.StatusOpen, store.SentimentNegative),
		},
		Tasks: []*store.Task{{ID: "t", Status: store.TaskOpen, DueAt: due(now.Add(time.Hour))}},
		Deals: []*store.Deal{{ID: "d", Stage: "lead", Value: 10, Probability: 0.1}},
	}

	first := Compute(snap, now, Options{})
	second := Compute(snap, now, Options{})
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Compute is not deterministic (-first +second):\n%s", diff)
	}
}
