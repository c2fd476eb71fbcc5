package gatherly

import (
	"context"
	"errors"
	"fmt"

	"github.com/gatherly/gatherly-go/pkg/apix"
)

// Error is a domain-level failure with a user-presentable message. The
// underlying transport error stays in the chain for errors.Is/As.
type Error struct {
	Message string
	err     error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.err }

// translate maps a transport failure onto a service-specific message
// table keyed by HTTP status. Cancellation passes through untouched so
// callers can tell "user navigated away" from "request failed". Statuses
// missing from the table fall back to the backend's own message.
func translate(err error, table map[int]string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if apiErr, ok := apix.AsAPIError(err); ok {
		if msg, ok := table[apiErr.Status]; ok {
			return &Error{Message: msg, err: err}
		}
		if apiErr.Message != "" {
			return &Error{Message: apiErr.Message, err: err}
		}
	}
	if errors.Is(err, apix.ErrRetriesExhausted) {
		return &Error{Message: "The server is not responding. Please try again later.", err: err}
	}
	if errors.Is(err, apix.ErrRefreshFailed) || errors.Is(err, apix.ErrNoRefreshToken) {
		return &Error{Message: "Your session has expired. Please log in again.", err: err}
	}

	return &Error{Message: fmt.Sprintf("Something went wrong: %v", err), err: err}
}
