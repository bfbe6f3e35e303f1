package httpx

import "net/http"

// ResponseRecorder captures the status code and body size written by a handler.
type ResponseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

// NewResponseRecorder wraps w. The status defaults to 200 until a handler
// writes a header.
func NewResponseRecorder(w http.ResponseWriter) *ResponseRecorder {
	if recorder, ok := w.(*ResponseRecorder); ok {
		return recorder
	}
	return &ResponseRecorder{ResponseWriter: w, status: http.StatusOK}
}

// WriteHeader records the status code before delegating.
func (r *ResponseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Write records the body size before delegating.
func (r *ResponseRecorder) Write(p []byte) (int, error) {
	n, err := r.ResponseWriter.Write(p)
	r.bytes += n
	return n, err
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (r *ResponseRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Status returns the recorded status code.
func (r *ResponseRecorder) Status() int {
	return r.status
}

// BytesWritten returns the number of body bytes written.
func (r *ResponseRecorder) BytesWritten() int {
	return r.bytes
}
