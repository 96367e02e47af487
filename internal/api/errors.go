package api

import (
	"errors"
	"fmt"
)

// AuthError indicates a missing or rejected credential. Callers should
// redirect the user to sign-in.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return "authentication required"
	}
	return e.Message
}

// NetworkError indicates a request that could not complete at the transport
// level. The same logical operation may be retried.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: request failed: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError indicates a non-2xx status or a malformed envelope from the
// backend. Message carries the server-provided text when present.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server error: %s", e.Message)
}

// ValidationError indicates a client-side rejection (file type, size, form
// field). It never aborts unrelated items in the same batch.
type ValidationError struct {
	Item   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Item == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Item, e.Reason)
}

// IsAuth reports whether err classifies as an authentication failure.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsNetwork reports whether err classifies as a transport failure.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsServer reports whether err classifies as a backend failure.
func IsServer(err error) bool {
	var se *ServerError
	return errors.As(err, &se)
}

// IsValidation reports whether err classifies as a client-side rejection.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
