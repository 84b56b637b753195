// Package store provides persistent storage for the inbox using SQLite.
//
// # Data Models
//
//   - Contact: a customer identity on one channel
//   - Message: an entry in the append-only message log
//   - Task: a follow-up item with status, priority and optional due date
//   - Deal: a pipeline opportunity (read-only to the inbox core)
//   - CallLog: a summarised call (read-only to the inbox core)
//
// Messages are never updated or deleted. A conversation's current status is
// the status of its latest message, so changing state means appending.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA busy_timeout=5000;
//
// Timestamps are stored as fixed-width UTC RFC 3339 strings so that
// ORDER BY on the text column is chronological.
//
// # Error Handling
//
//   - ErrNotFound: requested entity does not exist
//   - ErrDuplicateID: an entity with the same ID already exists
//
// # Testing
//
// Use NewMockStore() for unit tests. Its Err and AppendErr fields inject
// failures. Use NewSQLiteStore with a t.TempDir() path for integration tests.
package store
