package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"syscall"
)

// ErrUnreachable wraps every transport-level failure: the request
// never produced a server verdict, so the caller may recover locally
// (offline capture) instead of surfacing a rejection.
var ErrUnreachable = errors.New("backend unreachable")

// Error is a server rejection: the backend was reached and said no.
// Field-level validation detail is preserved when provided.
type Error struct {
	StatusCode int
	Message    string
	Fields     map[string][]string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("backend rejected request (%d): %s", e.StatusCode, e.Message)
	}

	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, strings.Join(e.Fields[name], "; ")))
	}
	return fmt.Sprintf("backend rejected request (%d): %s", e.StatusCode, strings.Join(parts, ", "))
}

// IsConnectivity reports whether err means the backend could not be
// reached at all, as opposed to a rejection. Only connectivity
// failures are eligible for offline capture.
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnreachable) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
