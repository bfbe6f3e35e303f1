// Package errors provides structured domain errors and their transport mapping.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unclassified failure.
	CodeUnknown Code = "UNKNOWN"

	// CodeValidation marks caller input that fails schema constraints.
	CodeValidation Code = "VALIDATION_FAILED"

	// CodeNotFound marks a reference to a record that does not exist.
	CodeNotFound Code = "NOT_FOUND"

	// CodeStorageUnavailable marks durable-store failures outside caller control.
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation:
		return http.StatusUnprocessableEntity
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
