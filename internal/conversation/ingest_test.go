// ABOUTME: Tests for inbound message ingestion
// ABOUTME: Covers contact creation, dedupe by external id, timestamp validation and classification

package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-inbox/internal/dedupe"
	"github.com/2389/coven-inbox/internal/store"
)

func TestIngest_CreatesContactAndMessage(t *testing.T) {
	s := createTestStore(t)
	svc := newTestService(s, newRegistry(t, nil), nil, Options{})

	res, err := svc.Ingest(context.Background(), &IngestRequest{
		Channel:     "instagram",
		ContactID:   "igsid-1",
		ContactName: "Marta",
		ThreadID:    "t1",
		Body:        "Thanks, this is great!",
		CreatedAt:   "2026-03-01T10:00:00+01:00",
	})
	require.NoError(t, err)
	require.False(t, res.Duplicate)

	msg := res.Message
	assert.Equal(t, store.DirectionInbound, msg.Direction)
	assert.Equal(t, store.StatusNew, msg.Status)
	assert.Equal(t, store.SentimentPositive, msg.Sentiment)
	assert.True(t, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC).Equal(msg.CreatedAt))

	contact, err := s.GetContact(context.Background(), "igsid-1")
	require.NoError(t, err)
	assert.Equal(t, "Marta", contact.Name)
	assert.Equal(t, "instagram", contact.Channel)

	// Existing contact is reused
	_, err = svc.Ingest(context.Background(), &IngestRequest{
		Channel: "instagram", ContactID: "igsid-1", ThreadID: "t1", Body: "one more thing",
	})
	require.NoError(t, err)
}

func TestIngest_ExplicitSentimentAndStatus(t *testing.T) {
	svc := newTestService(store.NewMockStore(), newRegistry(t, nil), nil, Options{})

	res, err := svc.Ingest(context.Background(), &IngestRequest{
		Channel: "website", ContactID: "c1", ThreadID: "t1", Body: "great",
		Sentiment: store.SentimentNegative, Status: store.StatusOpen,
	})
	require.NoError(t, err)
	assert.Equal(t, store.SentimentNegative, res.Message.Sentiment)
	assert.Equal(t, store.StatusOpen, res.Message.Status)
	assert.True(t, fixedNow.Equal(res.Message.CreatedAt))
}

func TestIngest_Validation(t *testing.T) {
	svc := newTestService(store.NewMockStore(), newRegistry(t, nil), nil, Options{})

	tests := []struct {
		name string
		req  *IngestRequest
	}{
		{"missing body", &IngestRequest{Channel: "website", ContactID: "c1", ThreadID: "t1"}},
		{"missing thread", &IngestRequest{Channel: "website", ContactID: "c1", Body: "x"}},
		{"bad timestamp", &IngestRequest{Channel: "website", ContactID: "c1", ThreadID: "t1", Body: "x", CreatedAt: "yesterday"}},
		{"timestamp without offset", &IngestRequest{Channel: "website", ContactID: "c1", ThreadID: "t1", Body: "x", CreatedAt: "2026-03-01T10:00:00"}},
		{"bad sentiment", &IngestRequest{Channel: "website", ContactID: "c1", ThreadID: "t1", Body: "x", Sentiment: "meh"}},
		{"bad status", &IngestRequest{Channel: "website", ContactID: "c1", ThreadID: "t1", Body: "x", Status: "archived"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Ingest(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestIngest_ThreadOwnership(t *testing.T) {
	s := store.NewMockStore()
	seedInbound(t, s, "m1", "t1", "facebook", "c1", fixedNow)
	svc := newTestService(s, newRegistry(t, nil), nil, Options{})

	_, err := svc.Ingest(context.Background(), &IngestRequest{Channel: "facebook", ContactID: "c2", ThreadID: "t1", Body: "x"})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Len(t, s.Messages(), 1)
}

func TestIngest_DedupesExternalID(t *testing.T) {
	cache := dedupe.New(time.Minute, 100, time.Hour)
	defer cache.Close()

	s := store.NewMockStore()
	svc := newTestService(s, newRegistry(t, nil), nil, Options{Dedupe: cache})

	req := &IngestRequest{ExternalID: "mid.1", Channel: "messenger", ContactID: "c1", ThreadID: "t1", Body: "hello"}

	first, err := svc.Ingest(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := svc.Ingest(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Nil(t, second.Message)

	// Same id on another channel is a different message
	other := *req
	other.Channel = "instagram"
	other.ThreadID = "t2"
	third, err := svc.Ingest(context.Background(), &other)
	require.NoError(t, err)
	assert.False(t, third.Duplicate)

	assert.Len(t, s.Messages(), 2)
}

func TestIngest_FailureReleasesDedupeKey(t *testing.T) {
	cache := dedupe.New(time.Minute, 100, time.Hour)
	defer cache.Close()

	s := store.NewMockStore()
	s.AppendErr = errors.New("disk full")
	svc := newTestService(s, newRegistry(t, nil), nil, Options{Dedupe: cache})

	req := &IngestRequest{ExternalID: "mid.9", Channel: "website", ContactID: "c1", ThreadID: "t1", Body: "hello"}
	_, err := svc.Ingest(context.Background(), req)
	var se *StoreError
	require.ErrorAs(t, err, &se)

	s.AppendErr = nil
	res, err := svc.Ingest(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Duplicate, "a failed ingestion must not block the provider's retry")
}

func TestIngest_PublishesToAllThreadsSubscribers(t *testing.T) {
	b := NewEventBroadcaster(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _ := b.Subscribe(ctx, AllThreads)

	svc := newTestService(store.NewMockStore(), newRegistry(t, nil), nil, Options{Broadcaster: b})
	res, err := svc.Ingest(context.Background(), &IngestRequest{Channel: "website", ContactID: "c1", ThreadID: "t9", Body: "hey"})
	require.NoError(t, err)

	select {
	case got := <-events:
		assert.Equal(t, res.Message.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}
