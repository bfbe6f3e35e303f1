package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusMapsCodes(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: New(CodeValidation, "text is required"), want: http.StatusUnprocessableEntity},
		{name: "not found", err: New(CodeNotFound, "todo not found"), want: http.StatusNotFound},
		{name: "storage", err: Wrap(CodeStorageUnavailable, "list todos", stderrors.New("disk full")), want: http.StatusInternalServerError},
		{name: "wrapped domain error", err: fmt.Errorf("handler: %w", New(CodeNotFound, "gone")), want: http.StatusNotFound},
		{name: "plain error", err: stderrors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HTTPStatus(tc.err); got != tc.want {
				t.Fatalf("HTTPStatus() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("outer: %w", Wrap(CodeNotFound, "todo 7", stderrors.New("no rows")))
	if !stderrors.Is(err, New(CodeNotFound, "")) {
		t.Fatal("expected code match through wrap chain")
	}
	if stderrors.Is(err, New(CodeValidation, "")) {
		t.Fatal("unexpected match for different code")
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	t.Parallel()

	err := Wrap(CodeStorageUnavailable, "create todo", stderrors.New("database is locked"))
	if got := err.Error(); got != "create todo: database is locked" {
		t.Fatalf("Error() = %q", got)
	}
	if GetCode(nil) != CodeUnknown {
		t.Fatal("expected unknown code for nil error")
	}
}

func TestMetadataValueReadsThroughWrapChain(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("handler: %w", New(CodeValidation, "invalid request").With("fields", "body.text"))
	if got := MetadataValue(err, "fields"); got != "body.text" {
		t.Fatalf("MetadataValue() = %q, want body.text", got)
	}
	if got := MetadataValue(err, "missing"); got != "" {
		t.Fatalf("MetadataValue() = %q, want empty", got)
	}
	if got := MetadataValue(stderrors.New("plain"), "fields"); got != "" {
		t.Fatalf("MetadataValue() = %q, want empty for plain error", got)
	}
}
