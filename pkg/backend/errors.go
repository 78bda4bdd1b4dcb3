package backend

import (
	"fmt"

	pkgerrors "github.com/smesmis/pos-checkout/pkg/errors"
)

// HTTPError is a non-2xx answer from the backend.
type HTTPError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

var _ pkgerrors.UpstreamError = (*HTTPError)(nil)

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
}

func (e *HTTPError) UpstreamStatus() int {
	return e.Status
}

func (e *HTTPError) UpstreamMessage() string {
	return e.Message
}

func (e *HTTPError) messageOr(fallback string) string {
	if e.Message != "" {
		return e.Message
	}
	return fallback
}
