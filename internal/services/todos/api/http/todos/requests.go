package todos

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	platformerrors "github.com/louisbranch/todos/internal/platform/errors"
	"github.com/louisbranch/todos/internal/services/todos/storage"
)

const (
	maxRequestBodyBytes = 1 << 20

	// invalidFieldsKey lists the rejected locations, e.g. "body.text,body.completed".
	invalidFieldsKey = "fields"
)

var errTrailingData = errors.New("unexpected data after JSON body")

// createTodoRequest is the only shape accepted by POST /todos.
type createTodoRequest struct {
	Text string
}

// updateTodoRequest is the only shape accepted by PUT /todos/{todo_id}.
// Nil fields were absent (or null) in the request body.
type updateTodoRequest struct {
	Text      *string
	Completed *bool
}

func (r updateTodoRequest) patch() storage.TodoPatch {
	return storage.TodoPatch{Text: r.Text, Completed: r.Completed}
}

// todoResponse is the wire form of a stored todo.
type todoResponse struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}

func newTodoResponse(todo storage.Todo) todoResponse {
	return todoResponse{
		ID:        todo.ID,
		Text:      todo.Text,
		Completed: todo.Completed,
		CreatedAt: todo.CreatedAt.UTC(),
	}
}

// fieldError locates one input problem, e.g. loc ["body", "text"].
type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// fieldErrors is the cause carried by CodeValidation errors.
type fieldErrors []fieldError

func (f fieldErrors) Error() string {
	parts := make([]string, 0, len(f))
	for _, fe := range f {
		parts = append(parts, strings.Join(fe.Loc, ".")+": "+fe.Msg)
	}
	return strings.Join(parts, "; ")
}

func invalid(fields ...fieldError) error {
	locs := make([]string, 0, len(fields))
	for _, fe := range fields {
		locs = append(locs, strings.Join(fe.Loc, "."))
	}
	return platformerrors.Wrap(platformerrors.CodeValidation, "invalid request", fieldErrors(fields)).
		With(invalidFieldsKey, strings.Join(locs, ","))
}

func missingField(loc ...string) fieldError {
	return fieldError{Loc: loc, Msg: "field required", Type: "value_error.missing"}
}

func blankText() fieldError {
	return fieldError{Loc: []string{"body", "text"}, Msg: "text must not be blank", Type: "value_error.blank"}
}

func parseTodoID(r *http.Request) (int64, error) {
	raw := r.PathValue("todo_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, invalid(fieldError{
			Loc:  []string{"path", "todo_id"},
			Msg:  "value is not a valid integer",
			Type: "type_error.integer",
		})
	}
	return id, nil
}

func decodeCreateTodo(w http.ResponseWriter, r *http.Request) (createTodoRequest, error) {
	body, err := decodeBodyObject(w, r)
	if err != nil {
		return createTodoRequest{}, err
	}
	raw, ok := body["text"]
	if !ok {
		return createTodoRequest{}, invalid(missingField("body", "text"))
	}
	if isJSONNull(raw) {
		return createTodoRequest{}, invalid(fieldError{
			Loc:  []string{"body", "text"},
			Msg:  "none is not an allowed value",
			Type: "type_error.none.not_allowed",
		})
	}
	text, err := decodeText(raw)
	if err != nil {
		return createTodoRequest{}, err
	}
	return createTodoRequest{Text: text}, nil
}

func decodeUpdateTodo(w http.ResponseWriter, r *http.Request) (updateTodoRequest, error) {
	body, err := decodeBodyObject(w, r)
	if err != nil {
		return updateTodoRequest{}, err
	}

	var req updateTodoRequest
	var problems fieldErrors
	if raw, ok := body["text"]; ok && !isJSONNull(raw) {
		text, err := decodeText(raw)
		if err != nil {
			var fields fieldErrors
			if errors.As(err, &fields) {
				problems = append(problems, fields...)
			}
		} else {
			req.Text = &text
		}
	}
	if raw, ok := body["completed"]; ok && !isJSONNull(raw) {
		var completed bool
		if err := json.Unmarshal(raw, &completed); err != nil {
			problems = append(problems, fieldError{
				Loc:  []string{"body", "completed"},
				Msg:  "value could not be parsed to a boolean",
				Type: "type_error.bool",
			})
		} else {
			req.Completed = &completed
		}
	}
	if len(problems) > 0 {
		return updateTodoRequest{}, invalid(problems...)
	}
	return req, nil
}

func decodeText(raw json.RawMessage) (string, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", invalid(fieldError{
			Loc:  []string{"body", "text"},
			Msg:  "str type expected",
			Type: "type_error.str",
		})
	}
	if !storage.ValidText(text) {
		return "", invalid(blankText())
	}
	return text, nil
}

// decodeBodyObject reads the request body as one JSON object.
func decodeBodyObject(w http.ResponseWriter, r *http.Request) (map[string]json.RawMessage, error) {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	var body map[string]json.RawMessage
	err := decoder.Decode(&body)
	if err == nil {
		err = ensureEOF(decoder)
	}
	switch {
	case err == nil && body != nil:
		return body, nil
	case err == nil, errors.Is(err, io.EOF):
		return nil, invalid(missingField("body"))
	}

	var maxBytesErr *http.MaxBytesError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &maxBytesErr):
		return nil, invalid(fieldError{
			Loc:  []string{"body"},
			Msg:  "request body exceeds " + strconv.Itoa(maxRequestBodyBytes) + " bytes",
			Type: "value_error.body_too_large",
		})
	case errors.As(err, &typeErr):
		return nil, invalid(fieldError{
			Loc:  []string{"body"},
			Msg:  "value is not a valid dict",
			Type: "type_error.dict",
		})
	default:
		return nil, invalid(fieldError{
			Loc:  []string{"body"},
			Msg:  "invalid JSON body",
			Type: "value_error.jsondecode",
		})
	}
}

// ensureEOF rejects any value or garbage following the first JSON value.
func ensureEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	switch err := decoder.Decode(&extra); {
	case errors.Is(err, io.EOF):
		return nil
	case err != nil:
		return err
	default:
		return errTrailingData
	}
}

func isJSONNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}
