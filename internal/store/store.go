// ABOUTME: Store interface and data types for coven-inbox persistence
// ABOUTME: Defines Contact, Message, Task, Deal, CallLog and the read-only Snapshot

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateID is returned when an entity with the same ID already exists
var ErrDuplicateID = errors.New("duplicate id")

// Direction is the flow of a message relative to the business
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// MessageStatus is the conversation state recorded on a message.
// The set is closed; see IsTerminal for which states end a conversation.
type MessageStatus string

const (
	StatusNew       MessageStatus = "new"
	StatusOpen      MessageStatus = "open"
	StatusPending   MessageStatus = "pending"
	StatusResponded MessageStatus = "responded"
	StatusResolved  MessageStatus = "resolved"
	StatusClosed    MessageStatus = "closed"
)

// MessageStatuses lists every valid message status.
var MessageStatuses = []MessageStatus{
	StatusNew, StatusOpen, StatusPending, StatusResponded, StatusResolved, StatusClosed,
}

// Valid reports whether s is one of the enumerated statuses.
func (s MessageStatus) Valid() bool {
	for _, known := range MessageStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a conversation whose latest message carries this
// status no longer counts as open.
func (s MessageStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusClosed
}

// Sentiment is the tone classification of a message
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Sentiments lists the three sentiment buckets in display order.
var Sentiments = []Sentiment{SentimentPositive, SentimentNeutral, SentimentNegative}

// Valid reports whether s is one of the three sentiment buckets.
func (s Sentiment) Valid() bool {
	return s == SentimentPositive || s == SentimentNeutral || s == SentimentNegative
}

// TaskStatus is the lifecycle state of a follow-up task
type TaskStatus string

const (
	TaskOpen      TaskStatus = "open"
	TaskCompleted TaskStatus = "completed"
)

// TaskPriority is the urgency of a follow-up task
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityNormal TaskPriority = "normal"
	PriorityHigh   TaskPriority = "high"
)

// Valid reports whether p is low, normal or high.
func (p TaskPriority) Valid() bool {
	return p == PriorityLow || p == PriorityNormal || p == PriorityHigh
}

// DealStages is the canonical pipeline order used by the dashboard.
var DealStages = []string{"lead", "qualified", "demo", "proposal", "negotiation", "won"}

// Contact is the identity of a customer on one channel
type Contact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Handle    string    `json:"handle"`
	Channel   string    `json:"channel"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is a single entry of the append-only message log.
// All messages sharing a ThreadID share Channel and ContactID.
type Message struct {
	ID        string        `json:"id"`
	Channel   string        `json:"channel"`
	ContactID string        `json:"contactId"`
	ThreadID  string        `json:"threadId"`
	Direction Direction     `json:"direction"`
	Body      string        `json:"body"`
	Status    MessageStatus `json:"status"`
	Sentiment Sentiment     `json:"sentiment"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Task is a follow-up item, created by a user or from an agent suggestion
type Task struct {
	ID          string       `json:"id"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	ContactID   string       `json:"contactId,omitempty"`
	MessageID   string       `json:"messageId,omitempty"`
	DealID      string       `json:"dealId,omitempty"`
	DueAt       *time.Time   `json:"dueAt,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}

// Deal is a sales opportunity; read-only for the inbox core
type Deal struct {
	ID          string    `json:"id"`
	ContactID   string    `json:"contactId"`
	Title       string    `json:"title"`
	Stage       string    `json:"stage"`
	Value       float64   `json:"value"`
	Probability float64   `json:"probability"` // 0..1
	NextStep    string    `json:"nextStep,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CallLog is a summarised phone call; read-only for the inbox core
type CallLog struct {
	ID              string    `json:"id"`
	ContactID       string    `json:"contactId"`
	RecordedAt      time.Time `json:"recordedAt"`
	DurationSeconds int       `json:"durationSeconds"`
	Summary         string    `json:"summary"`
	FollowUps       []string  `json:"followUps"`
}

// Snapshot is the full read-only view of the store at a point in time.
// Messages are in append order.
type Snapshot struct {
	Contacts []*Contact `json:"contacts"`
	Messages []*Message `json:"messages"`
	Calls    []*CallLog `json:"calls"`
	Deals    []*Deal    `json:"deals"`
	Tasks    []*Task    `json:"tasks"`
}

// Store defines the persistence collaborator of the inbox
type Store interface {
	// Snapshot returns every collection. Callers must treat it as read-only.
	Snapshot(ctx context.Context) (*Snapshot, error)

	// Contacts
	CreateContact(ctx context.Context, contact *Contact) error
	GetContact(ctx context.Context, id string) (*Contact, error)

	// Messages (append-only)
	AppendMessage(ctx context.Context, msg *Message) error
	GetThreadMessages(ctx context.Context, threadID string) ([]*Message, error)

	// Tasks
	CreateTask(ctx context.Context, task *Task) error
	GetTask(ctx context.Context, id string) (*Task, error)
	CompleteTask(ctx context.Context, id string, at time.Time) (*Task, error)
	ListTasks(ctx context.Context, status TaskStatus) ([]*Task, error)

	// Deals and calls are written by importers and seeders only
	CreateDeal(ctx context.Context, deal *Deal) error
	CreateCallLog(ctx context.Context, call *CallLog) error

	// Close releases any resources held by the store
	Close() error
}
