// ABOUTME: Dashboard metrics computed from a store snapshot
// ABOUTME: Open conversations, first-response latency, sentiment mix, due tasks and pipeline value

package metrics

import (
	"math"
	"slices"
	"sort"
	"time"

	"github.com/2389/coven-inbox/internal/inbox"
	"github.com/2389/coven-inbox/internal/store"
)

// DefaultDueSoonWindow is used when Options.DueSoonWindow is zero
const DefaultDueSoonWindow = 24 * time.Hour

// Options controls metric policy.
type Options struct {
	DueSoonWindow time.Duration
}

// Result is the point-in-time dashboard summary.
type Result struct {
	OpenConversations       int                     `json:"openConversations"`
	AvgFirstResponseMinutes float64                 `json:"avgFirstResponseMinutes"`
	SentimentBreakdown      map[store.Sentiment]int `json:"sentimentBreakdown"`
	TasksDueSoon            []*store.Task           `json:"tasksDueSoon"`
	Pipeline                PipelineSummary         `json:"pipeline"`
}

// PipelineSummary aggregates deals by stage.
type PipelineSummary struct {
	TotalValue    float64      `json:"totalValue"`
	WeightedValue float64      `json:"weightedValue"` // sum of value x probability
	Stages        []StageTotal `json:"stages"`
}

// StageTotal is the deal count and value for one stage.
type StageTotal struct {
	Stage string  `json:"stage"`
	Count int     `json:"count"`
	Value float64 `json:"value"`
}

// Compute derives every metric from snap as of now. It never fails and does
// not modify snap.
func Compute(snap *store.Snapshot, now time.Time, opts Options) *Result {
	if opts.DueSoonWindow <= 0 {
		opts.DueSoonWindow = DefaultDueSoonWindow
	}

	threads := inbox.BuildThreads(snap.Messages, snap.Contacts)

	return &Result{
		OpenConversations:       openConversations(threads),
		AvgFirstResponseMinutes: avgFirstResponseMinutes(threads),
		SentimentBreakdown:      sentimentBreakdown(snap.Messages),
		TasksDueSoon:            tasksDueSoon(snap.Tasks, now, opts.DueSoonWindow),
		Pipeline:                pipeline(snap.Deals),
	}
}

func openConversations(threads []*inbox.Thread) int {
	open := 0
	for _, th := range threads {
		if !th.Status.IsTerminal() {
			open++
		}
	}
	return open
}

// avgFirstResponseMinutes averages, over threads that got a reply, the gap
// between the first inbound message and the first outbound one after it.
func avgFirstResponseMinutes(threads []*inbox.Thread) float64 {
	var total time.Duration
	responded := 0

	for _, th := range threads {
		if d, ok := firstResponse(th.Messages); ok {
			total += d
			responded++
		}
	}

	if responded == 0 {
		return 0
	}
	mean := total.Minutes() / float64(responded)
	return math.Round(mean*100) / 100
}

// firstResponse expects messages in chronological order.
func firstResponse(messages []*store.Message) (time.Duration, bool) {
	var firstInbound *store.Message
	for _, m := range messages {
		if firstInbound == nil {
			if m.Direction == store.DirectionInbound {
				firstInbound = m
			}
			continue
		}
		if m.Direction == store.DirectionOutbound && !m.CreatedAt.Before(firstInbound.CreatedAt) {
			return m.CreatedAt.Sub(firstInbound.CreatedAt), true
		}
	}
	return 0, false
}

// sentimentBreakdown counts every message exactly once. Unknown labels are
// counted as neutral.
func sentimentBreakdown(messages []*store.Message) map[store.Sentiment]int {
	counts := make(map[store.Sentiment]int, len(store.Sentiments))
	for _, s := range store.Sentiments {
		counts[s] = 0
	}
	for _, m := range messages {
		if m.Sentiment.Valid() {
			counts[m.Sentiment]++
		} else {
			counts[store.SentimentNeutral]++
		}
	}
	return counts
}

// tasksDueSoon returns open tasks with now <= dueAt <= now+window, earliest
// first. Overdue tasks are not included.
func tasksDueSoon(tasks []*store.Task, now time.Time, window time.Duration) []*store.Task {
	deadline := now.Add(window)
	due := []*store.Task{}

	for _, t := range tasks {
		if t.Status != store.TaskOpen || t.DueAt == nil {
			continue
		}
		if t.DueAt.Before(now) || t.DueAt.After(deadline) {
			continue
		}
		due = append(due, t)
	}

	sort.SliceStable(due, func(i, j int) bool {
		if !due[i].DueAt.Equal(*due[j].DueAt) {
			return due[i].DueAt.Before(*due[j].DueAt)
		}
		return due[i].ID < due[j].ID
	})
	return due
}

// pipeline totals deals per stage in canonical order; stages outside the
// canonical list follow alphabetically.
func pipeline(deals []*store.Deal) PipelineSummary {
	byStage := make(map[string]*StageTotal)
	summary := PipelineSummary{Stages: []StageTotal{}}

	for _, d := range deals {
		st, ok := byStage[d.Stage]
		if !ok {
			st = &StageTotal{Stage: d.Stage}
			byStage[d.Stage] = st
		}
		st.Count++
		st.Value += d.Value
		summary.TotalValue += d.Value
		summary.WeightedValue += d.Value * clamp01(d.Probability)
	}

	for _, stage := range store.DealStages {
		if st, ok := byStage[stage]; ok {
			summary.Stages = append(summary.Stages, *st)
		} else {
			summary.Stages = append(summary.Stages, StageTotal{Stage: stage})
		}
	}

	var extra []string
	for stage := range byStage {
		if !slices.Contains(store.DealStages, stage) {
			extra = append(extra, stage)
		}
	}
	sort.Strings(extra)
	for _, stage := range extra {
		summary.Stages = append(summary.Stages, *byStage[stage])
	}

	summary.WeightedValue = math.Round(summary.WeightedValue*100) / 100
	return summary
}

func clamp01(p float64) float64 {
	return math.Max(0, math.Min(1, p))
}
