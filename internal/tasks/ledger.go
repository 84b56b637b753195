// ABOUTME: Task ledger for follow-up items on contacts, messages and deals
// ABOUTME: Applies defaults and validation on top of the store

package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-inbox/internal/store"
)

var (
	// ErrDescriptionRequired is returned when creating a task without a description
	ErrDescriptionRequired = errors.New("description is required")
	// ErrInvalidPriority is returned for priorities other than low, normal, high
	ErrInvalidPriority = errors.New("priority must be low, normal or high")
	// ErrInvalidDueAt is returned when dueAt is not an RFC 3339 timestamp
	ErrInvalidDueAt = errors.New("dueAt must be an RFC 3339 timestamp")
	// ErrIDRequired is returned when completing a task without an id
	ErrIDRequired = errors.New("task id required")
	// ErrInvalidStatus is returned when listing by an unknown status
	ErrInvalidStatus = errors.New("status must be open or completed")
)

// TaskStore defines what the ledger needs from storage
type TaskStore interface {
	CreateTask(ctx context.Context, task *store.Task) error
	CompleteTask(ctx context.Context, id string, at time.Time) (*store.Task, error)
	ListTasks(ctx context.Context, status store.TaskStatus) ([]*store.Task, error)
}

// CreateInput is the user-supplied part of a new task.
type CreateInput struct {
	Description string `json:"description"`
	ContactID   string `json:"contactId,omitempty"`
	MessageID   string `json:"messageId,omitempty"`
	DealID      string `json:"dealId,omitempty"`
	DueAt       string `json:"dueAt,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

// Ledger creates, completes and lists tasks.
type Ledger struct {
	store  TaskStore
	now    func() time.Time
	logger *slog.Logger
}

// New creates a Ledger.
func New(st TaskStore, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:  st,
		now:    time.Now,
		logger: logger.With("component", "tasks"),
	}
}

// Create validates in and stores a new open task. Priority defaults to normal.
func (l *Ledger) Create(ctx context.Context, in *CreateInput) (*store.Task, error) {
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, ErrDescriptionRequired
	}

	priority := store.PriorityNormal
	if in.Priority != "" {
		priority = store.TaskPriority(in.Priority)
		if !priority.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, in.Priority)
		}
	}

	var dueAt *time.Time
	if in.DueAt != "" {
		t, err := time.Parse(time.RFC3339Nano, in.DueAt)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDueAt, in.DueAt)
		}
		dueAt = &t
	}

	task := &store.Task{
		ID:          uuid.New().String(),
		Description: description,
		Status:      store.TaskOpen,
		Priority:    priority,
		ContactID:   in.ContactID,
		MessageID:   in.MessageID,
		DealID:      in.DealID,
		DueAt:       dueAt,
		CreatedAt:   l.now(),
	}
	if err := l.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}

	l.logger.Info("task created", "task_id", task.ID, "priority", task.Priority)
	return task, nil
}

// Complete marks a task completed. Completing twice returns the task unchanged.
// Unknown ids return store.ErrNotFound.
func (l *Ledger) Complete(ctx context.Context, id string) (*store.Task, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrIDRequired
	}

	task, err := l.store.CompleteTask(ctx, id, l.now())
	if err != nil {
		return nil, fmt.Errorf("completing task %s: %w", id, err)
	}

	l.logger.Debug("task completed", "task_id", id)
	return task, nil
}

// List returns tasks with the given status, or every task for an empty status.
func (l *Ledger) List(ctx context.Context, status store.TaskStatus) ([]*store.Task, error) {
	if status != "" && status != store.TaskOpen && status != store.TaskCompleted {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	tasks, err := l.store.ListTasks(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return tasks, nil
}
