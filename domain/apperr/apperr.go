// Package apperr defines the error taxonomy shared by every module.
//
// Errors returned by request-reply services reach the caller as plain
// messages, so FromRemote maps a message back onto its sentinel. Sentinel
// texts are therefore kept distinct from one another.
package apperr

import (
	"errors"
	"strings"

	monoerrors "github.com/go-monolith/mono/pkg/errors"
)

var (
	// ErrValidation is returned for empty or malformed input.
	ErrValidation = errors.New("invalid input")
	// ErrDuplicateEmail is returned when registering an email already in use.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials is returned for any failed login.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnauthenticated is returned when a session is missing, expired or ended.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrNotFound is returned for missing resources and resources owned by someone else.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidStatus is returned when a task status is outside the allowed set.
	ErrInvalidStatus = errors.New("invalid task status")
	// ErrStorage wraps failures of the underlying persistence layer.
	ErrStorage = errors.New("storage failure")
)

// sentinels is ordered so that no entry's text contains a later one's.
var sentinels = []error{
	ErrValidation,
	ErrDuplicateEmail,
	ErrInvalidCredentials,
	ErrUnauthenticated,
	ErrNotFound,
	ErrInvalidStatus,
	ErrStorage,
}

type remoteError struct {
	kind error
	msg  string
}

func (e *remoteError) Error() string { return e.msg }

func (e *remoteError) Unwrap() error { return e.kind }

// FromRemote returns err unchanged when it already wraps a sentinel. When the
// handler's message carries a sentinel's text it returns an error that wraps
// that sentinel, keeping the message from the sentinel text onward. For a
// *monoerrors.RemoteError only its Message is searched, so the service name
// and error type the framework adds never reach the result. Any other error
// is returned unchanged.
func FromRemote(err error) error {
	if err == nil {
		return nil
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return err
		}
	}

	msg := err.Error()
	var remote *monoerrors.RemoteError
	if errors.As(err, &remote) {
		msg = remote.Message
	}
	for _, s := range sentinels {
		if i := strings.Index(msg, s.Error()); i >= 0 {
			return &remoteError{kind: s, msg: msg[i:]}
		}
	}
	return err
}

// Kind returns the sentinel err wraps, or nil when it wraps none.
func Kind(err error) error {
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s
		}
	}
	return nil
}
