// Package sqlite provides a SQLite-backed todo storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/todos/internal/platform/storage/sqliteschema"
	"github.com/louisbranch/todos/internal/services/todos/storage"
	"github.com/louisbranch/todos/internal/services/todos/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const todoColumns = `id, text, completed, created_at`

// Store persists todo state in SQLite.
type Store struct {
	sqlDB *sql.DB
	clock func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to stamp created_at on new todos.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// textConstraint names the CHECK guarding todos.text in 001_todos.sql.
const textConstraint = "todos_text_not_blank"

func toNanos(value time.Time) int64 {
	return value.UTC().UnixNano()
}

func fromNanos(value int64) time.Time {
	return time.Unix(0, value).UTC()
}

// dataSourceName builds a file: URI so reserved characters in path cannot
// leak into the query string.
func dataSourceName(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve storage path: %w", err)
	}
	uriPath := filepath.ToSlash(absPath)
	if !strings.HasPrefix(uriPath, "/") {
		uriPath = "/" + uriPath
	}
	query := url.Values{}
	query.Add("_pragma", "journal_mode(WAL)")
	query.Add("_pragma", "busy_timeout(5000)")
	query.Add("_pragma", "synchronous(NORMAL)")
	dsn := url.URL{Scheme: "file", Path: uriPath, RawQuery: query.Encode()}
	return dsn.String(), nil
}

// Open opens a SQLite todo store and ensures the schema exists.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn, err := dataSourceName(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqliteschema.Ensure(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	store := &Store{sqlDB: sqlDB, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return s.sqlDB.PingContext(ctx)
}

// ListTodos returns all todos ordered by creation time, oldest first.
func (s *Store) ListTodos(ctx context.Context) ([]storage.Todo, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+todoColumns+`
		   FROM todos
		  ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()

	todos := make([]storage.Todo, 0)
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("list todos: %w", err)
		}
		todos = append(todos, todo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return todos, nil
}

// CreateTodo inserts one incomplete todo and returns the stored record.
func (s *Store) CreateTodo(ctx context.Context, text string) (storage.Todo, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Todo{}, err
	}
	if !storage.ValidText(text) {
		return storage.Todo{}, storage.ErrTextRequired
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`INSERT INTO todos (text, completed, created_at)
		 VALUES (?, 0, ?)
		 RETURNING `+todoColumns,
		text,
		toNanos(s.clock()),
	)
	todo, err := scanTodo(row)
	if err != nil {
		if isTextCheckViolation(err) {
			return storage.Todo{}, storage.ErrTextRequired
		}
		return storage.Todo{}, fmt.Errorf("create todo: %w", err)
	}
	return todo, nil
}

// GetTodo returns one todo by id.
func (s *Store) GetTodo(ctx context.Context, id int64) (storage.Todo, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Todo{}, err
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+todoColumns+`
		   FROM todos
		  WHERE id = ?`,
		id,
	)
	todo, err := scanTodo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Todo{}, storage.ErrNotFound
		}
		return storage.Todo{}, fmt.Errorf("get todo: %w", err)
	}
	return todo, nil
}

// UpdateTodo applies a merge patch to one todo and returns the result.
//
// The patch is applied by a single UPDATE statement, so readers observe
// either the old record or the fully patched one.
func (s *Store) UpdateTodo(ctx context.Context, id int64, patch storage.TodoPatch) (storage.Todo, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Todo{}, err
	}
	if patch.Text != nil && !storage.ValidText(*patch.Text) {
		return storage.Todo{}, storage.ErrTextRequired
	}
	if patch.Empty() {
		return s.GetTodo(ctx, id)
	}

	var text sql.NullString
	if patch.Text != nil {
		text = sql.NullString{String: *patch.Text, Valid: true}
	}
	var completed sql.NullBool
	if patch.Completed != nil {
		completed = sql.NullBool{Bool: *patch.Completed, Valid: true}
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`UPDATE todos
		    SET text = COALESCE(?, text),
		        completed = COALESCE(?, completed)
		  WHERE id = ?
		 RETURNING `+todoColumns,
		text,
		completed,
		id,
	)
	todo, err := scanTodo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Todo{}, storage.ErrNotFound
		}
		if isTextCheckViolation(err) {
			return storage.Todo{}, storage.ErrTextRequired
		}
		return storage.Todo{}, fmt.Errorf("update todo: %w", err)
	}
	return todo, nil
}

// DeleteTodo permanently removes one todo.
func (s *Store) DeleteTodo(ctx context.Context, id int64) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (storage.Todo, error) {
	var todo storage.Todo
	var createdAt int64
	if err := row.Scan(&todo.ID, &todo.Text, &todo.Completed, &createdAt); err != nil {
		return storage.Todo{}, err
	}
	todo.CreatedAt = fromNanos(createdAt)
	return todo, nil
}

func isTextCheckViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code() != sqlite3lib.SQLITE_CONSTRAINT_CHECK {
		return false
	}
	return strings.Contains(sqliteErr.Error(), textConstraint)
}

var _ storage.TodoStore = (*Store)(nil)
