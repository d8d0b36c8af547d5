package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when Open is called without a URI.
	ErrInvalidInput = errors.New("invalid input: no uri")
	// ErrNotOpen is returned by I/O calls on a context that holds no session handle.
	ErrNotOpen = errors.New("session is not open")
	// ErrClosed is returned when Open is called on a context that has already been closed.
	ErrClosed = errors.New("session context is closed")
	// ErrAlreadyOpen is returned when Open is called twice on the same context.
	ErrAlreadyOpen = errors.New("session is already open")
)

// ConfigError is returned when a session option fails validation.
type ConfigError struct {
	Field  string
	Reason string
}

func (c ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", c.Field, c.Reason)
}

// UnsupportedSchemeError is returned when a URI uses a scheme other than quic or quics.
type UnsupportedSchemeError struct {
	Scheme string
}

func (e UnsupportedSchemeError) Error() string {
	if e.Scheme == "" {
		return "protocol not found: missing scheme"
	}
	return fmt.Sprintf("protocol not found: %q", e.Scheme)
}

// ResolveError is returned when local resolution is enabled and the lookup fails.
type ResolveError struct {
	Host string
	Err  error
}

func (e ResolveError) Error() string {
	return fmt.Sprintf("failed to resolve hostname %s: %s", e.Host, e.Err)
}

func (e ResolveError) Unwrap() error {
	return e.Err
}

// OpenError is returned when the transport refuses to open a session.
// Handle is the raw value the transport returned (always <= 0).
type OpenError struct {
	URL    string
	Handle int
	Err    error
}

func (e OpenError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("open %s failed: transport returned %d", e.URL, e.Handle)
	}
	return fmt.Sprintf("open %s failed: %s", e.URL, e.Err)
}

func (e OpenError) Unwrap() error {
	return e.Err
}
