// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite and to inject failures

package store

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	contacts map[string]*Contact
	messages []*Message // append order
	msgIDs   map[string]bool
	tasks    map[string]*Task
	taskSeq  []string // creation order
	deals    []*Deal
	calls    []*CallLog

	// Err, when set, is returned by every read and write. Tests use it to
	// simulate an unavailable backend.
	Err error
	// AppendErr, when set, is returned by AppendMessage only.
	AppendErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		contacts: make(map[string]*Contact),
		msgIDs:   make(map[string]bool),
		tasks:    make(map[string]*Task),
	}
}

// Snapshot returns copies of every collection.
func (m *MockStore) Snapshot(ctx context.Context) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}

	snap := &Snapshot{
		Contacts: make([]*Contact, 0, len(m.contacts)),
		Messages: make([]*Message, 0, len(m.messages)),
		Calls:    make([]*CallLog, 0, len(m.calls)),
		Deals:    make([]*Deal, 0, len(m.deals)),
		Tasks:    make([]*Task, 0, len(m.tasks)),
	}

	for _, c := range m.contacts {
		cp := *c
		snap.Contacts = append(snap.Contacts, &cp)
	}
	slices.SortFunc(snap.Contacts, func(a, b *Contact) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	for _, msg := range m.messages {
		cp := *msg
		snap.Messages = append(snap.Messages, &cp)
	}
	for _, c := range m.calls {
		cp := *c
		cp.FollowUps = slices.Clone(c.FollowUps)
		snap.Calls = append(snap.Calls, &cp)
	}
	for _, d := range m.deals {
		cp := *d
		snap.Deals = append(snap.Deals, &cp)
	}
	for _, id := range m.taskSeq {
		snap.Tasks = append(snap.Tasks, copyTask(m.tasks[id]))
	}

	return snap, nil
}

// CreateContact stores a new contact.
func (m *MockStore) CreateContact(ctx context.Context, contact *Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if _, exists := m.contacts[contact.ID]; exists {
		return ErrDuplicateID
	}
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = time.Now()
	}

	c := *contact
	m.contacts[c.ID] = &c
	return nil
}

// GetContact retrieves a contact by ID.
func (m *MockStore) GetContact(ctx context.Context, id string) (*Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	c, ok := m.contacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *c
	return &result, nil
}

// AppendMessage appends a message to the in-memory log.
func (m *MockStore) AppendMessage(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if m.AppendErr != nil {
		return m.AppendErr
	}
	if m.msgIDs[msg.ID] {
		return ErrDuplicateID
	}

	cp := *msg
	m.messages = append(m.messages, &cp)
	m.msgIDs[cp.ID] = true
	return nil
}

// GetThreadMessages returns the thread's messages in append order.
func (m *MockStore) GetThreadMessages(ctx context.Context, threadID string) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}

	result := []*Message{}
	for _, msg := range m.messages {
		if msg.ThreadID == threadID {
			cp := *msg
			result = append(result, &cp)
		}
	}
	return result, nil
}

// Messages returns a copy of the full log. Test helper.
func (m *MockStore) Messages() []*Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Message, 0, len(m.messages))
	for _, msg := range m.messages {
		cp := *msg
		result = append(result, &cp)
	}
	return result
}

// CreateTask stores a new task.
func (m *MockStore) CreateTask(ctx context.Context, task *Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if _, exists := m.tasks[task.ID]; exists {
		return ErrDuplicateID
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	if task.Status == "" {
		task.Status = TaskOpen
	}
	if task.Priority == "" {
		task.Priority = PriorityNormal
	}

	m.tasks[task.ID] = copyTask(task)
	m.taskSeq = append(m.taskSeq, task.ID)
	return nil
}

// GetTask retrieves a task by ID.
func (m *MockStore) GetTask(ctx context.Context, id string) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyTask(t), nil
}

// CompleteTask marks a task completed; completing twice is a no-op.
func (m *MockStore) CompleteTask(ctx context.Context, id string, at time.Time) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	if t.Status != TaskCompleted {
		t.Status = TaskCompleted
		completed := at
		t.CompletedAt = &completed
	}
	return copyTask(t), nil
}

// ListTasks returns tasks in creation order, optionally filtered by status.
func (m *MockStore) ListTasks(ctx context.Context, status TaskStatus) ([]*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}

	result := []*Task{}
	for _, id := range m.taskSeq {
		t := m.tasks[id]
		if status != "" && t.Status != status {
			continue
		}
		result = append(result, copyTask(t))
	}
	return result, nil
}

// CreateDeal stores a deal.
func (m *MockStore) CreateDeal(ctx context.Context, deal *Deal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	for _, d := range m.deals {
		if d.ID == deal.ID {
			return ErrDuplicateID
		}
	}
	cp := *deal
	m.deals = append(m.deals, &cp)
	return nil
}

// CreateCallLog stores a call summary.
func (m *MockStore) CreateCallLog(ctx context.Context, call *CallLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	for _, c := range m.calls {
		if c.ID == call.ID {
			return ErrDuplicateID
		}
	}
	cp := *call
	cp.FollowUps = slices.Clone(call.FollowUps)
	m.calls = append(m.calls, &cp)
	return nil
}

// Close is a no-op for MockStore.
func (m *MockStore) Close() error {
	return nil
}

func copyTask(t *Task) *Task {
	cp := *t
	if t.DueAt != nil {
		due := *t.DueAt
		cp.DueAt = &due
	}
	if t.CompletedAt != nil {
		done := *t.CompletedAt
		cp.CompletedAt = &done
	}
	return &cp
}

// Ensure MockStore implements Store
var _ Store = (*MockStore)(nil)
