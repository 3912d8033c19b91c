package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver
)

// Store persists owner-partitioned task sequences. Every method addresses a
// single owner; no call reads or writes another owner's rows.
type Store interface {
	// Append adds a live task at the end of the owner's sequence, assigning
	// the next ID and incrementing the live count.
	Append(ctx context.Context, owner Owner, content string, createdAt int64) (Task, error)

	// Get returns the raw slot, deleted or not.
	Get(ctx context.Context, owner Owner, id uint64) (Task, error)

	// Save overwrites Content, Completed, and CompletedAt of an existing slot.
	Save(ctx context.Context, owner Owner, t Task) error

	// Tombstone clears the slot's content, forces it completed, and
	// decrements the live count.
	Tombstone(ctx context.Context, owner Owner, id uint64) (Task, error)

	// List returns the owner's full sequence in ID order.
	List(ctx context.Context, owner Owner) ([]Task, error)

	// LiveCount returns the maintained number of non-deleted tasks.
	LiveCount(ctx context.Context, owner Owner) (uint64, error)

	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS task_owners (
	owner      TEXT PRIMARY KEY,
	next_id    BIGINT NOT NULL DEFAULT 0,
	live_count BIGINT NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS tasks (
	owner        TEXT NOT NULL,
	id           BIGINT NOT NULL,
	content      TEXT NOT NULL,
	completed    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   BIGINT NOT NULL,
	completed_at BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (owner, id)
);
`

// SQLStore persists tasks through database/sql. It speaks both the sqlite
// and postgres dialects; the postgres driver must be registered by the
// binary that opens one. IDs live in signed BIGINT columns, so an ID above
// math.MaxInt64 can never name a stored slot.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the schema exists. The caller is responsible for calling Close.
func NewSQLiteStore(dbPath string) (*SQLStore, error) {
	return OpenSQLStore("sqlite", dbPath)
}

// OpenSQLStore opens a database with the given driver ("sqlite" or
// "postgres") and ensures the schema exists.
func OpenSQLStore(driver, dsn string) (*SQLStore, error) {
	switch driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s %s: %w", driver, dsn, err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLStore{db: db, driver: driver}, nil
}

// Close releases the underlying database connection.
func (s *SQLStore) Close() error { return s.db.Close() }

// rebind rewrites ? placeholders into the driver's native form.
func (s *SQLStore) rebind(q string) string {
	if s.driver != "postgres" {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// lockRow returns the row-locking suffix for read-then-write transactions.
// SQLite already serializes writers through the single connection.
func (s *SQLStore) lockRow() string {
	if s.driver == "postgres" {
		return " FOR UPDATE"
	}
	return ""
}

// Append inserts a new task and bumps the owner's counters in one transaction.
func (s *SQLStore) Append(ctx context.Context, owner Owner, content string, createdAt int64) (Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Task{}, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, s.rebind(
		`INSERT INTO task_owners (owner) VALUES (?) ON CONFLICT (owner) DO NOTHING`), string(owner)); err != nil {
		return Task{}, fmt.Errorf("ensure owner: %w", err)
	}

	var next uint64
	if err := tx.QueryRowContext(ctx, s.rebind(
		`SELECT next_id FROM task_owners WHERE owner = ?`+s.lockRow()), string(owner)).Scan(&next); err != nil {
		return Task{}, fmt.Errorf("read next id: %w", err)
	}

	t := Task{ID: next, Content: content, CreatedAt: createdAt}
	if _, err := tx.ExecContext(ctx, s.rebind(`
		INSERT INTO tasks (owner, id, content, completed, created_at, completed_at)
		VALUES (?,?,?,?,?,?)`),
		string(owner), t.ID, t.Content, t.Completed, t.CreatedAt, t.CompletedAt,
	); err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.rebind(
		`UPDATE task_owners SET next_id = next_id + 1, live_count = live_count + 1 WHERE owner = ?`),
		string(owner)); err != nil {
		return Task{}, fmt.Errorf("bump owner counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Task{}, fmt.Errorf("commit append: %w", err)
	}
	return t, nil
}

// Get retrieves one slot by ID.
func (s *SQLStore) Get(ctx context.Context, owner Owner, id uint64) (Task, error) {
	if id > math.MaxInt64 {
		return Task{}, notFound(owner, id)
	}
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, content, completed, created_at, completed_at
		FROM tasks WHERE owner = ? AND id = ?`), string(owner), id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, notFound(owner, id)
	}
	if err != nil {
		return Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// Save updates the mutable columns of an existing slot.
func (s *SQLStore) Save(ctx context.Context, owner Owner, t Task) error {
	if t.ID > math.MaxInt64 {
		return notFound(owner, t.ID)
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE tasks SET content = ?, completed = ?, completed_at = ?
		WHERE owner = ? AND id = ?`),
		t.Content, t.Completed, t.CompletedAt, string(owner), t.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound(owner, t.ID)
	}
	return nil
}

// Tombstone soft-deletes a slot and decrements the live count atomically.
func (s *SQLStore) Tombstone(ctx context.Context, owner Owner, id uint64) (Task, error) {
	if id > math.MaxInt64 {
		return Task{}, notFound(owner, id)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Task{}, fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	row := tx.QueryRowContext(ctx, s.rebind(`
		SELECT id, content, completed, created_at, completed_at
		FROM tasks WHERE owner = ? AND id = ?`+s.lockRow()), string(owner), id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, notFound(owner, id)
	}
	if err != nil {
		return Task{}, fmt.Errorf("get task: %w", err)
	}
	if t.Deleted() {
		return Task{}, fmt.Errorf("owner %s task %d: %w", owner, id, ErrAlreadyDeleted)
	}

	t.Content = ""
	t.Completed = true
	if _, err := tx.ExecContext(ctx, s.rebind(
		`UPDATE tasks SET content = '', completed = ? WHERE owner = ? AND id = ?`),
		true, string(owner), id); err != nil {
		return Task{}, fmt.Errorf("clear task: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(
		`UPDATE task_owners SET live_count = live_count - 1 WHERE owner = ?`), string(owner)); err != nil {
		return Task{}, fmt.Errorf("decrement live count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Task{}, fmt.Errorf("commit delete: %w", err)
	}
	return t, nil
}

// List returns the owner's whole sequence ordered by ID.
func (s *SQLStore) List(ctx context.Context, owner Owner) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, content, completed, created_at, completed_at
		FROM tasks WHERE owner = ? ORDER BY id ASC`), string(owner))
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// LiveCount reads the maintained counter. Unknown owners have zero tasks.
func (s *SQLStore) LiveCount(ctx context.Context, owner Owner) (uint64, error) {
	var n uint64
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT live_count FROM task_owners WHERE owner = ?`), string(owner)).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read live count: %w", err)
	}
	return n, nil
}

// scanner abstracts sql.Row and sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (Task, error) {
	var t Task
	err := s.Scan(&t.ID, &t.Content, &t.Completed, &t.CreatedAt, &t.CompletedAt)
	return t, err
}
