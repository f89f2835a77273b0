package api

import (
	"fmt"
	"net/http"
)

const maxErrorBody = 512

// StatusError is returned when the server answers with a non-2xx status
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("%s %s: status %d, body: %s", e.Method, e.Path, e.Code, e.Body)
}

// Temporary reports whether the failure points at the server rather than
// the request.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}
