// ABOUTME: Conversation service running the outbound reply pipeline and inbound ingestion
// ABOUTME: Delivery happens before persistence so the log only records replies that were sent

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-inbox/internal/agent"
	"github.com/2389/coven-inbox/internal/channel"
	"github.com/2389/coven-inbox/internal/dedupe"
	"github.com/2389/coven-inbox/internal/store"
)

// MessageStore defines what the service needs from storage
type MessageStore interface {
	GetThreadMessages(ctx context.Context, threadID string) ([]*store.Message, error)
	AppendMessage(ctx context.Context, msg *store.Message) error
	GetContact(ctx context.Context, id string) (*store.Contact, error)
	CreateContact(ctx context.Context, contact *store.Contact) error
}

// ChannelResolver looks up the delivery adapter for a channel
type ChannelResolver interface {
	Resolve(name string) (channel.Deliverer, error)
}

// Options tunes the service. Zero values get defaults.
type Options struct {
	AgentTimeout    time.Duration // default 20s
	DeliveryTimeout time.Duration // default 15s

	// OutboundClassifier labels sent replies; default FixedClassifier{positive}
	OutboundClassifier Classifier
	// InboundClassifier labels ingested messages that carry no sentiment; default lexicon
	InboundClassifier Classifier

	Broadcaster *EventBroadcaster // optional
	Dedupe      *dedupe.Cache     // optional; enables inbound external id dedupe

	Now func() time.Time // default time.Now
}

// Service runs replies and ingestion for conversation threads.
// At most one operation touches a given thread at a time.
type Service struct {
	store    MessageStore
	channels ChannelResolver
	drafter  agent.Drafter
	opts     Options
	locks    *keyedMutex
	logger   *slog.Logger
}

// New creates a conversation service. drafter may be nil, in which case any
// request that needs a draft fails with an AgentError.
func New(st MessageStore, channels ChannelResolver, drafter agent.Drafter, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.AgentTimeout <= 0 {
		opts.AgentTimeout = 20 * time.Second
	}
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = 15 * time.Second
	}
	if opts.OutboundClassifier == nil {
		opts.OutboundClassifier = FixedClassifier{Sentiment: store.SentimentPositive}
	}
	if opts.InboundClassifier == nil {
		opts.InboundClassifier = NewLexiconClassifier()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:    st,
		channels: channels,
		drafter:  drafter,
		opts:     opts,
		locks:    newKeyedMutex(),
		logger:   logger.With("component", "conversation"),
	}
}

// ReplyRequest asks for an outbound reply on a thread. The ContactID doubles
// as the channel recipient id.
type ReplyRequest struct {
	Channel   string `json:"channel"`
	ContactID string `json:"contactId"`
	ThreadID  string `json:"threadId"`
	Body      string `json:"body,omitempty"`
	UseAgent  bool   `json:"useAgent,omitempty"`
}

// ReplyResult is the persisted reply plus the agent's advisory output.
type ReplyResult struct {
	Message        *store.Message `json:"message"`
	Rationale      string         `json:"rationale"`
	SuggestedTasks []string       `json:"suggestedTasks"`
}

// Reply drafts (when asked or when the body is blank), delivers and records
// an outbound message.
//
// Failures are terminal for the call and never retried here. If delivery
// fails nothing is persisted. If persistence fails after a successful
// delivery a *StoreError is returned; the reply went out but is not logged.
func (s *Service) Reply(ctx context.Context, req *ReplyRequest) (*ReplyResult, error) {
	if err := requireFields(req.Channel, req.ContactID, req.ThreadID); err != nil {
		return nil, err
	}

	unlock, err := s.locks.Lock(ctx, req.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("waiting for thread %s: %w", req.ThreadID, err)
	}
	defer unlock()

	log := s.logger.With("thread_id", req.ThreadID, "channel", req.Channel)

	history, err := s.store.GetThreadMessages(ctx, req.ThreadID)
	if err != nil {
		return nil, &StoreError{Op: "loading thread history", Err: err}
	}
	if err := checkThreadOwnership(history, req.ThreadID, req.Channel, req.ContactID); err != nil {
		return nil, err
	}

	result := &ReplyResult{SuggestedTasks: []string{}}
	body := req.Body

	if req.UseAgent || strings.TrimSpace(body) == "" {
		draft, err := s.draft(ctx, history, req.Channel)
		if err != nil {
			log.Warn("agent draft failed", "error", err)
			return nil, err
		}
		body = draft.Reply
		result.Rationale = draft.Rationale
		if draft.SuggestedTasks != nil {
			result.SuggestedTasks = draft.SuggestedTasks
		}
		log.Debug("reply drafted", "suggested_tasks", len(result.SuggestedTasks))
	}

	if strings.TrimSpace(body) == "" {
		return nil, validationErrorf("message body required")
	}

	if err := s.deliver(ctx, req.Channel, req.ContactID, body); err != nil {
		log.Warn("delivery failed", "error", err)
		return nil, err
	}
	log.Debug("reply dispatched")

	msg := &store.Message{
		ID:        uuid.New().String(),
		Channel:   req.Channel,
		ContactID: req.ContactID,
		ThreadID:  req.ThreadID,
		Direction: store.DirectionOutbound,
		Body:      body,
		Status:    store.StatusResponded,
		Sentiment: s.opts.OutboundClassifier.Classify(body),
		CreatedAt: s.opts.Now(),
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		log.Error("reply delivered but not recorded", "error", err)
		return nil, &StoreError{Op: "recording outbound message", Err: err}
	}
	log.Debug("reply persisted", "message_id", msg.ID)

	if s.opts.Broadcaster != nil {
		s.opts.Broadcaster.Publish(msg)
	}

	result.Message = msg
	return result, nil
}

func (s *Service) draft(ctx context.Context, history []*store.Message, channelName string) (*agent.Draft, error) {
	if s.drafter == nil {
		return nil, &AgentError{Err: errors.New("no agent configured")}
	}

	actx, cancel := context.WithTimeout(ctx, s.opts.AgentTimeout)
	defer cancel()

	draft, err := s.drafter.Draft(actx, history, channelName)
	if errors.Is(err, agent.ErrEmptyReply) {
		// An empty draft falls through to the body check.
		return &agent.Draft{}, nil
	}
	if err != nil {
		return nil, &AgentError{Err: err}
	}
	if draft == nil {
		return &agent.Draft{}, nil
	}
	return draft, nil
}

func (s *Service) deliver(ctx context.Context, channelName, recipientID, body string) error {
	d, err := s.channels.Resolve(channelName)
	if err != nil {
		return err
	}

	dctx, cancel := context.WithTimeout(ctx, s.opts.DeliveryTimeout)
	defer cancel()

	if err := d.Deliver(dctx, recipientID, body); err != nil {
		var de *channel.DeliveryError
		if errors.As(err, &de) {
			return err
		}
		return &channel.DeliveryError{Channel: channelName, Reason: err.Error(), Err: err}
	}
	return nil
}

// IngestRequest records a message received from a channel.
type IngestRequest struct {
	ExternalID  string              `json:"externalId,omitempty"`
	Channel     string              `json:"channel"`
	ContactID   string              `json:"contactId"`
	ContactName string              `json:"contactName,omitempty"`
	ThreadID    string              `json:"threadId"`
	Body        string              `json:"body"`
	Status      store.MessageStatus `json:"status,omitempty"`
	Sentiment   store.Sentiment     `json:"sentiment,omitempty"`
	CreatedAt   string              `json:"createdAt,omitempty"` // RFC 3339; defaults to now
}

// IngestResult is the stored message, or Duplicate when the external id was
// already ingested recently.
type IngestResult struct {
	Message   *store.Message `json:"message,omitempty"`
	Duplicate bool           `json:"duplicate"`
}

// Ingest appends an inbound message, creating the contact on first contact.
func (s *Service) Ingest(ctx context.Context, req *IngestRequest) (*IngestResult, error) {
	if err := requireFields(req.Channel, req.ContactID, req.ThreadID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Body) == "" {
		return nil, validationErrorf("message body required")
	}

	status := req.Status
	if status == "" {
		status = store.StatusNew
	}
	if !status.Valid() {
		return nil, validationErrorf("unknown status %q", req.Status)
	}
	if req.Sentiment != "" && !req.Sentiment.Valid() {
		return nil, validationErrorf("unknown sentiment %q", req.Sentiment)
	}

	createdAt := s.opts.Now()
	if req.CreatedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, req.CreatedAt)
		if err != nil {
			return nil, validationErrorf("createdAt must be an RFC 3339 timestamp: %q", req.CreatedAt)
		}
		createdAt = t
	}

	var dedupeKey string
	if req.ExternalID != "" && s.opts.Dedupe != nil {
		dedupeKey = dedupe.Key(req.Channel, req.ExternalID)
		if !s.opts.Dedupe.Claim(dedupeKey) {
			s.logger.Debug("duplicate inbound message dropped", "channel", req.Channel, "external_id", req.ExternalID)
			return &IngestResult{Duplicate: true}, nil
		}
	}

	msg, err := s.ingest(ctx, req, status, createdAt)
	if err != nil {
		if dedupeKey != "" {
			s.opts.Dedupe.Release(dedupeKey)
		}
		return nil, err
	}

	if s.opts.Broadcaster != nil {
		s.opts.Broadcaster.Publish(msg)
	}
	return &IngestResult{Message: msg}, nil
}

func (s *Service) ingest(ctx context.Context, req *IngestRequest, status store.MessageStatus, createdAt time.Time) (*store.Message, error) {
	unlock, err := s.locks.Lock(ctx, req.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("waiting for thread %s: %w", req.ThreadID, err)
	}
	defer unlock()

	history, err := s.store.GetThreadMessages(ctx, req.ThreadID)
	if err != nil {
		return nil, &StoreError{Op: "loading thread history", Err: err}
	}
	if err := checkThreadOwnership(history, req.ThreadID, req.Channel, req.ContactID); err != nil {
		return nil, err
	}

	if err := s.ensureContact(ctx, req); err != nil {
		return nil, err
	}

	sentiment := req.Sentiment
	if sentiment == "" {
		sentiment = s.opts.InboundClassifier.Classify(req.Body)
	}

	msg := &store.Message{
		ID:        uuid.New().String(),
		Channel:   req.Channel,
		ContactID: req.ContactID,
		ThreadID:  req.ThreadID,
		Direction: store.DirectionInbound,
		Body:      req.Body,
		Status:    status,
		Sentiment: sentiment,
		CreatedAt: createdAt,
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, &StoreError{Op: "recording inbound message", Err: err}
	}

	s.logger.Debug("inbound message recorded",
		"thread_id", msg.ThreadID,
		"message_id", msg.ID,
		"sentiment", msg.Sentiment)
	return msg, nil
}

func (s *Service) ensureContact(ctx context.Context, req *IngestRequest) error {
	_, err := s.store.GetContact(ctx, req.ContactID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return &StoreError{Op: "looking up contact", Err: err}
	}

	name := req.ContactName
	if name == "" {
		name = req.ContactID
	}
	err = s.store.CreateContact(ctx, &store.Contact{
		ID:        req.ContactID,
		Name:      name,
		Handle:    req.ContactID,
		Channel:   req.Channel,
		CreatedAt: s.opts.Now(),
	})
	// Another thread may have created the contact concurrently
	if err != nil && !errors.Is(err, store.ErrDuplicateID) {
		return &StoreError{Op: "creating contact", Err: err}
	}
	if err == nil {
		s.logger.Info("contact created", "contact_id", req.ContactID, "channel", req.Channel)
	}
	return nil
}

func requireFields(channelName, contactID, threadID string) error {
	switch {
	case strings.TrimSpace(channelName) == "":
		return validationErrorf("channel required")
	case strings.TrimSpace(contactID) == "":
		return validationErrorf("contactId required")
	case strings.TrimSpace(threadID) == "":
		return validationErrorf("threadId required")
	}
	return nil
}

// checkThreadOwnership enforces that a thread never spans channels or contacts.
func checkThreadOwnership(history []*store.Message, threadID, channelName, contactID string) error {
	if len(history) == 0 {
		return nil
	}
	first := history[0]
	if first.Channel != channelName {
		return validationErrorf("thread %s belongs to channel %s, not %s", threadID, first.Channel, channelName)
	}
	if first.ContactID != contactID {
		return validationErrorf("thread %s belongs to a different contact", threadID)
	}
	return nil
}
