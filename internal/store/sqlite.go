// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Persists the message log, contacts, tasks, deals and calls with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is the on-disk timestamp format. Fixed-width nanoseconds keep
// lexical and chronological order identical for ORDER BY.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// An in-memory database lives per connection
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS contacts (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			handle     TEXT NOT NULL,
			channel    TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS messages (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			channel    TEXT NOT NULL,
			contact_id TEXT NOT NULL,
			thread_id  TEXT NOT NULL,
			direction  TEXT NOT NULL,
			body       TEXT NOT NULL,
			status     TEXT NOT NULL,
			sentiment  TEXT NOT NULL,
			created_at TEXT NOT NULL,

			CHECK (direction IN ('inbound', 'outbound'))
		);

		CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, seq);

		CREATE TABLE IF NOT EXISTS tasks (
			id           TEXT PRIMARY KEY,
			description  TEXT NOT NULL,
			status       TEXT NOT NULL,
			priority     TEXT NOT NULL,
			contact_id   TEXT,
			message_id   TEXT,
			deal_id      TEXT,
			due_at       TEXT,
			created_at   TEXT NOT NULL,
			completed_at TEXT,

			CHECK (status IN ('open', 'completed')),
			CHECK (priority IN ('low', 'normal', 'high'))
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_status_due ON tasks(status, due_at);

		CREATE TABLE IF NOT EXISTS deals (
			id          TEXT PRIMARY KEY,
			contact_id  TEXT NOT NULL,
			title       TEXT NOT NULL,
			stage       TEXT NOT NULL,
			value       REAL NOT NULL,
			probability REAL NOT NULL,
			next_step   TEXT,
			created_at  TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS call_logs (
			id               TEXT PRIMARY KEY,
			contact_id       TEXT NOT NULL,
			recorded_at      TEXT NOT NULL,
			duration_seconds INTEGER NOT NULL,
			summary          TEXT NOT NULL,
			follow_ups_json  TEXT NOT NULL DEFAULT '[]'
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "PRIMARY KEY constraint failed")
}

// nullString returns nil for empty strings, otherwise the string
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Snapshot reads every collection inside one read transaction, so the
// result is a single point in time. Messages come back in append order.
func (s *SQLiteStore) Snapshot(ctx context.Context) (*Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("beginning snapshot: %w", err)
	}
	defer tx.Rollback()

	snap := &Snapshot{}
	if snap.Contacts, err = listContacts(ctx, tx); err != nil {
		return nil, err
	}
	if snap.Messages, err = queryMessages(ctx, tx, "", nil); err != nil {
		return nil, err
	}
	if snap.Calls, err = listCallLogs(ctx, tx); err != nil {
		return nil, err
	}
	if snap.Deals, err = listDeals(ctx, tx); err != nil {
		return nil, err
	}
	if snap.Tasks, err = listTasks(ctx, tx, ""); err != nil {
		return nil, err
	}
	return snap, nil
}

// CreateContact inserts a new contact.
// Returns ErrDuplicateID if the contact ID is taken.
func (s *SQLiteStore) CreateContact(ctx context.Context, contact *Contact) error {
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (id, name, handle, channel, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, contact.ID, contact.Name, contact.Handle, contact.Channel, formatTime(contact.CreatedAt))
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateID
		}
		return fmt.Errorf("inserting contact: %w", err)
	}

	s.logger.Debug("created contact", "id", contact.ID, "channel", contact.Channel)
	return nil
}

// GetContact retrieves a contact by ID.
// Returns ErrNotFound if the contact doesn't exist.
func (s *SQLiteStore) GetContact(ctx context.Context, id string) (*Contact, error) {
	var c Contact
	var createdAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, handle, channel, created_at FROM contacts WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &c.Handle, &c.Channel, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying contact: %w", err)
	}

	c.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &c, nil
}

func listContacts(ctx context.Context, q queryer) ([]*Contact, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, handle, channel, created_at FROM contacts ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying contacts: %w", err)
	}
	defer rows.Close()

	contacts := []*Contact{}
	for rows.Next() {
		var c Contact
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.Handle, &c.Channel, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning contact row: %w", err)
		}
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing contact created_at: %w", err)
		}
		contacts = append(contacts, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating contact rows: %w", err)
	}
	return contacts, nil
}

// AppendMessage appends a message to the log.
// Returns ErrDuplicateID if a message with the same ID was already appended.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, channel, contact_id, thread_id, direction, body, status, sentiment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		msg.ID,
		msg.Channel,
		msg.ContactID,
		msg.ThreadID,
		string(msg.Direction),
		msg.Body,
		string(msg.Status),
		string(msg.Sentiment),
		formatTime(msg.CreatedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateID
		}
		return fmt.Errorf("inserting message: %w", err)
	}

	s.logger.Debug("appended message", "id", msg.ID, "thread_id", msg.ThreadID, "direction", msg.Direction)
	return nil
}

// GetThreadMessages returns every message of a thread in append order.
func (s *SQLiteStore) GetThreadMessages(ctx context.Context, threadID string) ([]*Message, error) {
	return queryMessages(ctx, s.db, "WHERE thread_id = ?", []any{threadID})
}

func queryMessages(ctx context.Context, q queryer, where string, args []any) ([]*Message, error) {
	query := `
		SELECT id, channel, contact_id, thread_id, direction, body, status, sentiment, created_at
		FROM messages ` + where + `
		ORDER BY seq ASC
	`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	messages := []*Message{}
	for rows.Next() {
		var msg Message
		var direction, status, sentiment, createdAt string

		if err := rows.Scan(&msg.ID, &msg.Channel, &msg.ContactID, &msg.ThreadID,
			&direction, &msg.Body, &status, &sentiment, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}

		msg.Direction = Direction(direction)
		msg.Status = MessageStatus(status)
		msg.Sentiment = Sentiment(sentiment)
		if msg.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing message created_at: %w", err)
		}

		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}

	return messages, nil
}

// CreateTask inserts a new task.
func (s *SQLiteStore) CreateTask(ctx context.Context, task *Task) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	if task.Status == "" {
		task.Status = TaskOpen
	}
	if task.Priority == "" {
		task.Priority = PriorityNormal
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, description, status, priority, contact_id, message_id, deal_id, due_at, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		task.ID,
		task.Description,
		string(task.Status),
		string(task.Priority),
		nullString(task.ContactID),
		nullString(task.MessageID),
		nullString(task.DealID),
		formatTimePtr(task.DueAt),
		formatTime(task.CreatedAt),
		formatTimePtr(task.CompletedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateID
		}
		return fmt.Errorf("inserting task: %w", err)
	}

	s.logger.Debug("created task", "id", task.ID, "priority", task.Priority)
	return nil
}

const taskColumns = `id, description, status, priority, contact_id, message_id, deal_id, due_at, created_at, completed_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var status, priority, createdAt string
	var contactID, messageID, dealID, dueAt, completedAt sql.NullString

	if err := row.Scan(&t.ID, &t.Description, &status, &priority,
		&contactID, &messageID, &dealID, &dueAt, &createdAt, &completedAt); err != nil {
		return nil, err
	}

	t.Status = TaskStatus(status)
	t.Priority = TaskPriority(priority)
	t.ContactID = contactID.String
	t.MessageID = messageID.String
	t.DealID = dealID.String

	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing task created_at: %w", err)
	}
	if t.DueAt, err = parseNullTime(dueAt); err != nil {
		return nil, fmt.Errorf("parsing task due_at: %w", err)
	}
	if t.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, fmt.Errorf("parsing task completed_at: %w", err)
	}
	return &t, nil
}

// GetTask retrieves a task by ID.
// Returns ErrNotFound if the task doesn't exist.
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying task: %w", err)
	}
	return t, nil
}

// CompleteTask marks a task completed. Completing an already completed task
// returns it unchanged.
// Returns ErrNotFound if the task doesn't exist.
func (s *SQLiteStore) CompleteTask(ctx context.Context, id string, at time.Time) (*Task, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, completed_at = ?
		WHERE id = ? AND status != ?
	`, string(TaskCompleted), formatTime(at), id, string(TaskCompleted))
	if err != nil {
		return nil, fmt.Errorf("completing task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("getting rows affected: %w", err)
	}

	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if rowsAffected > 0 {
		s.logger.Debug("completed task", "id", id)
	}
	return task, nil
}

// ListTasks returns tasks ordered by creation time. An empty status lists all.
func (s *SQLiteStore) ListTasks(ctx context.Context, status TaskStatus) ([]*Task, error) {
	return listTasks(ctx, s.db, status)
}

func listTasks(ctx context.Context, q queryer, status TaskStatus) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task rows: %w", err)
	}
	return tasks, nil
}

// CreateDeal inserts a deal.
func (s *SQLiteStore) CreateDeal(ctx context.Context, deal *Deal) error {
	if deal.CreatedAt.IsZero() {
		deal.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deals (id, contact_id, title, stage, value, probability, next_step, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, deal.ID, deal.ContactID, deal.Title, deal.Stage, deal.Value, deal.Probability,
		nullString(deal.NextStep), formatTime(deal.CreatedAt))
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateID
		}
		return fmt.Errorf("inserting deal: %w", err)
	}
	return nil
}

func listDeals(ctx context.Context, q queryer) ([]*Deal, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, contact_id, title, stage, value, probability, next_step, created_at
		FROM deals ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying deals: %w", err)
	}
	defer rows.Close()

	deals := []*Deal{}
	for rows.Next() {
		var d Deal
		var nextStep sql.NullString
		var createdAt string
		if err := rows.Scan(&d.ID, &d.ContactID, &d.Title, &d.Stage, &d.Value, &d.Probability, &nextStep, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning deal row: %w", err)
		}
		d.NextStep = nextStep.String
		if d.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing deal created_at: %w", err)
		}
		deals = append(deals, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating deal rows: %w", err)
	}
	return deals, nil
}

// CreateCallLog inserts a call summary.
func (s *SQLiteStore) CreateCallLog(ctx context.Context, call *CallLog) error {
	followUps := call.FollowUps
	if followUps == nil {
		followUps = []string{}
	}
	followUpsJSON, err := json.Marshal(followUps)
	if err != nil {
		return fmt.Errorf("encoding follow-ups: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO call_logs (id, contact_id, recorded_at, duration_seconds, summary, follow_ups_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`, call.ID, call.ContactID, formatTime(call.RecordedAt), call.DurationSeconds, call.Summary, string(followUpsJSON))
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateID
		}
		return fmt.Errorf("inserting call log: %w", err)
	}
	return nil
}

func listCallLogs(ctx context.Context, q queryer) ([]*CallLog, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, contact_id, recorded_at, duration_seconds, summary, follow_ups_json
		FROM call_logs ORDER BY recorded_at DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying call logs: %w", err)
	}
	defer rows.Close()

	calls := []*CallLog{}
	for rows.Next() {
		var c CallLog
		var recordedAt, followUpsJSON string
		if err := rows.Scan(&c.ID, &c.ContactID, &recordedAt, &c.DurationSeconds, &c.Summary, &followUpsJSON); err != nil {
			return nil, fmt.Errorf("scanning call log row: %w", err)
		}
		if c.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, fmt.Errorf("parsing call recorded_at: %w", err)
		}
		if err := json.Unmarshal([]byte(followUpsJSON), &c.FollowUps); err != nil {
			return nil, fmt.Errorf("decoding call follow-ups: %w", err)
		}
		calls = append(calls, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating call log rows: %w", err)
	}
	return calls, nil
}
