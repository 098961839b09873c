// Package stores provides the sqlite persistence layer: the tables behind
// the local reference services and the durable offline operation queue.
package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/dayflow/dayflow/pkg/fault"
	"github.com/dayflow/dayflow/pkg/services"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SQLiteStore owns the database handle and all SQL in the repository.
type SQLiteStore struct {
	db   *sql.DB
	path string
	cfg  Config
}

// NewSQLiteStore creates a store for the given database file. Init must be
// called before use.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{path: cfg.Path, cfg: cfg}, nil
}

// Init opens the database, creating the parent directory if needed, and
// enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate applies the embedded schema migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// HealthCheck verifies the database is reachable.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}

// ---- blocks ----

// CreateBlock inserts a time block.
func (s *SQLiteStore) CreateBlock(ctx context.Context, b services.TimeBlock) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blocks (id, user_id, title, kind, start_at, end_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.Title, b.Kind, b.Start.UTC(), b.End.UTC(), now, now,
	)
	if err != nil {
		return fmt.Errorf("create block: %w", err)
	}
	return nil
}

// GetBlock returns one block for the user.
func (s *SQLiteStore) GetBlock(ctx context.Context, userID, blockID string) (*services.TimeBlock, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, kind, start_at, end_at
		FROM blocks WHERE id = ? AND user_id = ?`,
		blockID, userID,
	)

	b, err := scanBlock(row)
	if err == sql.ErrNoRows {
		return nil, fault.NewNotFound(fmt.Sprintf("block %s not found", blockID))
	}
	if err != nil {
		return nil, fmt.Errorf("get block: %w", err)
	}
	return b, nil
}

// ListBlocks returns the user's blocks intersecting [from, to), sorted by
// start time.
func (s *SQLiteStore) ListBlocks(ctx context.Context, userID string, from, to time.Time) ([]services.TimeBlock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, kind, start_at, end_at
		FROM blocks
		WHERE user_id = ? AND start_at < ? AND end_at > ?
		ORDER BY start_at ASC`,
		userID, to.UTC(), from.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	var blocks []services.TimeBlock
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		blocks = append(blocks, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocks: %w", err)
	}
	return blocks, nil
}

// UpdateBlockTimes changes a block's time range.
func (s *SQLiteStore) UpdateBlockTimes(ctx context.Context, userID, blockID string, start, end time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE blocks SET start_at = ?, end_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		start.UTC(), end.UTC(), time.Now().UTC(), blockID, userID,
	)
	if err != nil {
		return fmt.Errorf("update block times: %w", err)
	}
	return requireRow(result, fmt.Sprintf("block %s not found", blockID))
}

// DeleteBlock removes a block and unassigns its tasks.
func (s *SQLiteStore) DeleteBlock(ctx context.Context, userID, blockID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete block: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM blocks WHERE id = ? AND user_id = ?`, blockID, userID)
	if err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	if err := requireRow(result, fmt.Sprintf("block %s not found", blockID)); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET block_id = '' WHERE block_id = ? AND user_id = ?`, blockID, userID); err != nil {
		return fmt.Errorf("unassign tasks: %w", err)
	}

	return tx.Commit()
}

// ListOverlappingBlocks returns committed blocks colliding with [start, end),
// excluding excludeID when non-empty.
func (s *SQLiteStore) ListOverlappingBlocks(ctx context.Context, userID string, start, end time.Time, excludeID string) ([]services.TimeBlock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, kind, start_at, end_at
		FROM blocks
		WHERE user_id = ? AND start_at < ? AND end_at > ? AND id != ?
		ORDER BY start_at ASC`,
		userID, end.UTC(), start.UTC(), excludeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list overlapping blocks: %w", err)
	}
	defer rows.Close()

	var blocks []services.TimeBlock
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		blocks = append(blocks, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocks: %w", err)
	}
	return blocks, nil
}

// TaskIDsForBlock returns the ids of tasks assigned to a block.
func (s *SQLiteStore) TaskIDsForBlock(ctx context.Context, userID, blockID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM tasks WHERE user_id = ? AND block_id = ? ORDER BY id`, userID, blockID)
	if err != nil {
		return nil, fmt.Errorf("list block tasks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan task id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ---- tasks ----

// CreateTask inserts a task.
func (s *SQLiteStore) CreateTask(ctx context.Context, t services.Task) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, user_id, title, priority, estimated_minutes, due_at, done, block_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Title, string(t.Priority), t.EstimatedMinutes, nullableTime(t.Due), t.Done, t.BlockID, now, now,
	)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// GetTask returns one task for the user.
func (s *SQLiteStore) GetTask(ctx context.Context, userID, taskID string) (*services.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, priority, estimated_minutes, due_at, done, block_id
		FROM tasks WHERE id = ? AND user_id = ?`,
		taskID, userID,
	)

	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fault.NewNotFound(fmt.Sprintf("task %s not found", taskID))
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListPendingTasks returns the user's not-done tasks, highest priority
// first, then earliest due date.
func (s *SQLiteStore) ListPendingTasks(ctx context.Context, userID string) ([]services.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, priority, estimated_minutes, due_at, done, block_id
		FROM tasks
		WHERE user_id = ? AND done = 0
		ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END,
			due_at IS NULL, due_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending tasks: %w", err)
	}
	defer rows.Close()

	var tasks []services.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTask replaces the mutable fields of a task.
func (s *SQLiteStore) UpdateTask(ctx context.Context, t services.Task) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, priority = ?, estimated_minutes = ?, due_at = ?, done = ?, block_id = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		t.Title, string(t.Priority), t.EstimatedMinutes, nullableTime(t.Due), t.Done, t.BlockID,
		time.Now().UTC(), t.ID, t.UserID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return requireRow(result, fmt.Sprintf("task %s not found", t.ID))
}

// AssignTaskToBlock points a task at a block.
func (s *SQLiteStore) AssignTaskToBlock(ctx context.Context, userID, taskID, blockID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET block_id = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		blockID, time.Now().UTC(), taskID, userID,
	)
	if err != nil {
		return fmt.Errorf("assign task: %w", err)
	}
	return requireRow(result, fmt.Sprintf("task %s not found", taskID))
}

// DeleteTask removes a task.
func (s *SQLiteStore) DeleteTask(ctx context.Context, userID, taskID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = ? AND user_id = ?`, taskID, userID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return requireRow(result, fmt.Sprintf("task %s not found", taskID))
}

// ---- messages ----

// CreateMessage inserts a message. Used by fixtures and the import path.
func (s *SQLiteStore) CreateMessage(ctx context.Context, m services.EmailMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, user_id, sender, subject, snippet, received_at, read, flagged, archived, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.Sender, m.Subject, m.Snippet, m.ReceivedAt.UTC(), m.Read, m.Flagged, m.Archived, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// GetMessage returns one message for the user.
func (s *SQLiteStore) GetMessage(ctx context.Context, userID, messageID string) (*services.EmailMessage, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, sender, subject, snippet, received_at, read, flagged, archived
		FROM messages WHERE id = ? AND user_id = ?`,
		messageID, userID,
	)

	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, fault.NewNotFound(fmt.Sprintf("message %s not found", messageID))
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

// ListInboxMessages returns non-archived messages, newest first.
func (s *SQLiteStore) ListInboxMessages(ctx context.Context, userID string, limit int) ([]services.EmailMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, sender, subject, snippet, received_at, read, flagged, archived
		FROM messages
		WHERE user_id = ? AND archived = 0
		ORDER BY received_at DESC
		LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}
	defer rows.Close()

	var msgs []services.EmailMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

// SetMessageFlags updates the read/flagged/archived bits of a message.
// Nil pointers leave the bit unchanged.
func (s *SQLiteStore) SetMessageFlags(ctx context.Context, userID, messageID string, read, flagged, archived *bool) error {
	m, err := s.GetMessage(ctx, userID, messageID)
	if err != nil {
		return err
	}

	if read != nil {
		m.Read = *read
	}
	if flagged != nil {
		m.Flagged = *flagged
	}
	if archived != nil {
		m.Archived = *archived
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE messages SET read = ?, flagged = ?, archived = ? WHERE id = ? AND user_id = ?`,
		m.Read, m.Flagged, m.Archived, messageID, userID,
	)
	if err != nil {
		return fmt.Errorf("update message flags: %w", err)
	}
	return nil
}

// ---- scan helpers ----

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlock(r rowScanner) (*services.TimeBlock, error) {
	var b services.TimeBlock
	if err := r.Scan(&b.ID, &b.UserID, &b.Title, &b.Kind, &b.Start, &b.End); err != nil {
		return nil, err
	}
	return &b, nil
}

func scanTask(r rowScanner) (*services.Task, error) {
	var (
		t   services.Task
		due sql.NullTime
	)
	if err := r.Scan(&t.ID, &t.UserID, &t.Title, &t.Priority, &t.EstimatedMinutes, &due, &t.Done, &t.BlockID); err != nil {
		return nil, err
	}
	if due.Valid {
		d := due.Time
		t.Due = &d
	}
	return &t, nil
}

func scanMessage(r rowScanner) (*services.EmailMessage, error) {
	var m services.EmailMessage
	if err := r.Scan(&m.ID, &m.UserID, &m.Sender, &m.Subject, &m.Snippet, &m.ReceivedAt, &m.Read, &m.Flagged, &m.Archived); err != nil {
		return nil, err
	}
	return &m, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// requireRow converts a zero-row update into a not-found fault.
func requireRow(result sql.Result, message string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fault.NewNotFound(message)
	}
	return nil
}
