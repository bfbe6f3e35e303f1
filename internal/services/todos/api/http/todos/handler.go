// Package todos exposes todo CRUD operations over HTTP/JSON.
package todos

import (
	"context"
	_ "embed"
	"errors"
	"log"
	"net/http"

	platformerrors "github.com/louisbranch/todos/internal/platform/errors"
	"github.com/louisbranch/todos/internal/platform/httpx"
	"github.com/louisbranch/todos/internal/platform/requestctx"
	"github.com/louisbranch/todos/internal/services/todos/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	notFoundDetail = "Todo not found"
	internalDetail = "Internal Server Error"
)

//go:embed openapi.json
var openAPIDocument []byte

type errorResponse struct {
	Detail string `json:"detail"`
}

type validationResponse struct {
	Detail []fieldError `json:"detail"`
}

// Handler maps todo HTTP routes onto a TodoStore.
type Handler struct {
	store storage.TodoStore
}

// NewHandler creates a handler backed by the given store.
func NewHandler(store storage.TodoStore) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts the todo API on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	h.handle(mux, "GET /todos", h.listTodos)
	h.handle(mux, "POST /todos", h.createTodo)
	h.handle(mux, "GET /todos/{todo_id}", h.getTodo)
	h.handle(mux, "PUT /todos/{todo_id}", h.updateTodo)
	h.handle(mux, "DELETE /todos/{todo_id}", h.deleteTodo)
	mux.HandleFunc("GET /openapi.json", serveOpenAPI)
}

func (h *Handler) handle(mux *http.ServeMux, pattern string, fn func(http.ResponseWriter, *http.Request) error) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		httpx.SpanRoute(r, pattern)
		if h.store == nil {
			h.writeError(w, r, platformerrors.New(platformerrors.CodeStorageUnavailable, "todo store is not configured"))
			return
		}
		if err := fn(w, r); err != nil {
			h.writeError(w, r, err)
		}
	})
}

func (h *Handler) listTodos(w http.ResponseWriter, r *http.Request) error {
	todos, err := h.store.ListTodos(r.Context())
	if err != nil {
		return storageError("list todos", err)
	}
	resp := make([]todoResponse, 0, len(todos))
	for _, todo := range todos {
		resp = append(resp, newTodoResponse(todo))
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func (h *Handler) createTodo(w http.ResponseWriter, r *http.Request) error {
	req, err := decodeCreateTodo(w, r)
	if err != nil {
		return err
	}
	todo, err := h.store.CreateTodo(r.Context(), req.Text)
	if err != nil {
		return storageError("create todo", err)
	}
	annotateTodo(r.Context(), todo.ID)
	writeJSON(w, http.StatusCreated, newTodoResponse(todo))
	return nil
}

func (h *Handler) getTodo(w http.ResponseWriter, r *http.Request) error {
	id, err := parseTodoID(r)
	if err != nil {
		return err
	}
	annotateTodo(r.Context(), id)
	todo, err := h.store.GetTodo(r.Context(), id)
	if err != nil {
		return storageError("get todo", err)
	}
	writeJSON(w, http.StatusOK, newTodoResponse(todo))
	return nil
}

func (h *Handler) updateTodo(w http.ResponseWriter, r *http.Request) error {
	id, err := parseTodoID(r)
	if err != nil {
		return err
	}
	annotateTodo(r.Context(), id)
	req, err := decodeUpdateTodo(w, r)
	if err != nil {
		return err
	}
	todo, err := h.store.UpdateTodo(r.Context(), id, req.patch())
	if err != nil {
		return storageError("update todo", err)
	}
	writeJSON(w, http.StatusOK, newTodoResponse(todo))
	return nil
}

func (h *Handler) deleteTodo(w http.ResponseWriter, r *http.Request) error {
	id, err := parseTodoID(r)
	if err != nil {
		return err
	}
	annotateTodo(r.Context(), id)
	if err := h.store.DeleteTodo(r.Context(), id); err != nil {
		return storageError("delete todo", err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// storageError classifies a store failure into the domain taxonomy.
func storageError(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return platformerrors.Wrap(platformerrors.CodeNotFound, op, err)
	case errors.Is(err, storage.ErrTextRequired):
		return invalid(blankText())
	default:
		return platformerrors.Wrap(platformerrors.CodeStorageUnavailable, op, err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := platformerrors.HTTPStatus(err)
	switch platformerrors.GetCode(err) {
	case platformerrors.CodeValidation:
		trace.SpanFromContext(r.Context()).SetAttributes(
			attribute.String("todo.invalid_fields", platformerrors.MetadataValue(err, invalidFieldsKey)),
		)
		var fields fieldErrors
		if !errors.As(err, &fields) {
			fields = fieldErrors{{Loc: []string{"body"}, Msg: err.Error(), Type: "value_error"}}
		}
		writeJSON(w, status, validationResponse{Detail: fields})
	case platformerrors.CodeNotFound:
		writeJSON(w, status, errorResponse{Detail: notFoundDetail})
	default:
		span := trace.SpanFromContext(r.Context())
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failure")
		log.Printf("todos request failed method=%s path=%s request_id=%s: %v",
			r.Method, r.URL.Path, requestctx.RequestIDFromContext(r.Context()), err)
		writeJSON(w, status, errorResponse{Detail: internalDetail})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	if err := httpx.WriteJSON(w, status, payload); err != nil {
		// Headers are already sent; the client went away mid-body.
		log.Printf("todos write response: %v", err)
	}
}

func annotateTodo(ctx context.Context, id int64) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("todo.id", id))
}

func serveOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPIDocument)
}
