// ABOUTME: seed command that loads demo inbox data into the configured store
// ABOUTME: Creates contacts, threads on each channel, deals, call logs and tasks

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/2389/coven-inbox/internal/config"
	"github.com/2389/coven-inbox/internal/store"
)

// errAlreadySeeded is returned when the store already holds contacts.
var errAlreadySeeded = errors.New("store already has data; seed only runs on an empty database")

func runSeed(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	counts, err := seedDemo(ctx, s, time.Now().UTC())
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Seeded %s\n", cfg.Database.Path)
	fmt.Printf("    contacts: %d  messages: %d  deals: %d  calls: %d  tasks: %d\n",
		counts.contacts, counts.messages, counts.deals, counts.calls, counts.tasks)
	return nil
}

type seedCounts struct {
	contacts, messages, deals, calls, tasks int
}

type seedMessage struct {
	dir       store.Direction
	body      string
	status    store.MessageStatus
	sentiment store.Sentiment
	ago       time.Duration
}

// seedDemo writes a small, internally consistent data set relative to now.
func seedDemo(ctx context.Context, s store.Store, now time.Time) (seedCounts, error) {
	var counts seedCounts

	snap, err := s.Snapshot(ctx)
	if err != nil {
		return counts, fmt.Errorf("reading store: %w", err)
	}
	if len(snap.Contacts) > 0 {
		return counts, errAlreadySeeded
	}

	contacts := []*store.Contact{
		{ID: "c1", Name: "Maya Patel", Handle: "maya@example.com", Channel: "website"},
		{ID: "c2", Name: "Jonas Weber", Handle: "@jonas.makes", Channel: "instagram"},
		{ID: "c3", Name: "Lena Ortiz", Handle: "lena.ortiz", Channel: "facebook"},
		{ID: "c4", Name: "Sam Okafor", Handle: "sam.okafor", Channel: "messenger"},
	}
	for _, c := range contacts {
		c.CreatedAt = now.Add(-72 * time.Hour)
		if err := s.CreateContact(ctx, c); err != nil {
			return counts, fmt.Errorf("creating contact %s: %w", c.ID, err)
		}
		counts.contacts++
	}

	threads := []struct {
		id, contact, channel string
		msgs                 []seedMessage
	}{
		{"t1", "c1", "website", []seedMessage{
			{store.DirectionInbound, "Hi! Do you ship to Canada?", store.StatusOpen, store.SentimentNeutral, 3 * time.Hour},
			{store.DirectionOutbound, "We do! Shipping takes 5-7 business days.", store.StatusResponded, store.SentimentPositive, 3*time.Hour - 5*time.Minute},
			{store.DirectionInbound, "Great, and is there a customs fee?", store.StatusOpen, store.SentimentNeutral, 40 * time.Minute},
		}},
		{"t2", "c2", "instagram", []seedMessage{
			{store.DirectionInbound, "Love the new colours, when is the restock?", store.StatusNew, store.SentimentPositive, 90 * time.Minute},
		}},
		{"t3", "c3", "facebook", []seedMessage{
			{store.DirectionInbound, "My order arrived damaged.", store.StatusOpen, store.SentimentNegative, 26 * time.Hour},
			{store.DirectionOutbound, "So sorry! A replacement is on its way.", store.StatusResponded, store.SentimentPositive, 25 * time.Hour},
			{store.DirectionInbound, "Got it, thank you!", store.StatusResolved, store.SentimentPositive, 20 * time.Hour},
		}},
		{"t4", "c4", "messenger", []seedMessage{
			{store.DirectionInbound, "Can I get a quote for 200 units?", store.StatusPending, store.SentimentNeutral, 5 * time.Hour},
			{store.DirectionOutbound, "Absolutely, sending a quote today.", store.StatusResponded, store.SentimentPositive, 4 * time.Hour},
		}},
	}

	n := 0
	for _, th := range threads {
		for _, m := range th.msgs {
			n++
			msg := &store.Message{
				ID:        fmt.Sprintf("m%d", n),
				Channel:   th.channel,
				ContactID: th.contact,
				ThreadID:  th.id,
				Direction: m.dir,
				Body:      m.body,
				Status:    m.status,
				Sentiment: m.sentiment,
				CreatedAt: now.Add(-m.ago),
			}
			if err := s.AppendMessage(ctx, msg); err != nil {
				return counts, fmt.Errorf("appending message %s: %w", msg.ID, err)
			}
			counts.messages++
		}
	}

	deals := []*store.Deal{
		{ID: "d1", ContactID: "c4", Title: "Bulk order, 200 units", Stage: "proposal", Value: 12000, Probability: 0.6, NextStep: "Send quote"},
		{ID: "d2", ContactID: "c1", Title: "Wholesale account", Stage: "qualified", Value: 5000, Probability: 0.3},
		{ID: "d3", ContactID: "c2", Title: "Creator collab", Stage: "lead", Value: 1500, Probability: 0.1},
	}
	for _, d := range deals {
		d.CreatedAt = now.Add(-48 * time.Hour)
		if err := s.CreateDeal(ctx, d); err != nil {
			return counts, fmt.Errorf("creating deal %s: %w", d.ID, err)
		}
		counts.deals++
	}

	calls := []*store.CallLog{
		{ID: "call1", ContactID: "c4", RecordedAt: now.Add(-6 * time.Hour), DurationSeconds: 540,
			Summary: "Discussed volume pricing and delivery windows.", FollowUps: []string{"Send quote", "Confirm lead time"}},
		{ID: "call2", ContactID: "c3", RecordedAt: now.Add(-27 * time.Hour), DurationSeconds: 180,
			Summary: "Customer reported damaged parcel.", FollowUps: []string{"Ship replacement"}},
	}
	for _, c := range calls {
		if err := s.CreateCallLog(ctx, c); err != nil {
			return counts, fmt.Errorf("creating call %s: %w", c.ID, err)
		}
		counts.calls++
	}

	soon := now.Add(4 * time.Hour)
	later := now.Add(72 * time.Hour)
	tasks := []*store.Task{
		{ID: "task1", Description: "Send quote for 200 units", ContactID: "c4", DealID: "d1", DueAt: &soon, Priority: store.PriorityHigh},
		{ID: "task2", Description: "Answer customs fee question", ContactID: "c1", MessageID: "m3", Priority: store.PriorityNormal},
		{ID: "task3", Description: "Check restock date", ContactID: "c2", DueAt: &later, Priority: store.PriorityLow},
	}
	for _, tk := range tasks {
		tk.Status = store.TaskOpen
		tk.CreatedAt = now.Add(-time.Hour)
		if err := s.CreateTask(ctx, tk); err != nil {
			return counts, fmt.Errorf("creating task %s: %w", tk.ID, err)
		}
		counts.tasks++
	}

	return counts, nil
}
