// Package storage defines persistence contracts for todo records.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound indicates a requested todo does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrTextRequired indicates a todo write carried blank text.
	ErrTextRequired = errors.New("text is required")
)

// Todo is one stored task record.
type Todo struct {
	ID        int64
	Text      string
	Completed bool
	CreatedAt time.Time
}

// TodoPatch is a merge patch: nil fields keep their stored value.
type TodoPatch struct {
	Text      *string
	Completed *bool
}

// Empty reports whether the patch changes nothing.
func (p TodoPatch) Empty() bool {
	return p.Text == nil && p.Completed == nil
}

// ValidText reports whether text satisfies the non-empty constraint.
func ValidText(text string) bool {
	return strings.TrimSpace(text) != ""
}

// TodoStore persists todo records.
type TodoStore interface {
	// ListTodos returns every todo ordered by created_at, then id.
	ListTodos(ctx context.Context) ([]Todo, error)
	// CreateTodo stores a new incomplete todo stamped with the store clock.
	CreateTodo(ctx context.Context, text string) (Todo, error)
	GetTodo(ctx context.Context, id int64) (Todo, error)
	UpdateTodo(ctx context.Context, id int64, patch TodoPatch) (Todo, error)
	DeleteTodo(ctx context.Context, id int64) error
}
