package freeipa

import (
	"errors"
	"fmt"
)

// ValidationError indicates a missing or malformed caller-supplied argument.
// It is always raised before any network I/O, so the caller can fix the
// input and retry.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument: %s: %s", e.Field, e.Message)
}

// AuthenticationError indicates the login endpoint rejected the credentials.
// It is fatal to the session; no automatic retry or re-prompt happens.
type AuthenticationError struct {
	Username   string
	StatusCode int
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed for %q: status %d", e.Username, e.StatusCode)
}

// StateError indicates an operation was attempted out of order, for example
// an RPC call before the hostname, API version, or login were configured.
type StateError struct {
	Message string
}

func (e *StateError) Error() string {
	return "invalid client state: " + e.Message
}

// RPCError carries the protocol-level error returned by the FreeIPA server,
// either as a populated error member in a JSON-RPC response or as a non-200
// HTTP status on the RPC endpoint.
type RPCError struct {
	Status  int    `json:"-"`
	Name    string `json:"name"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	if e.Name == "" && e.Message == "" {
		return fmt.Sprintf("rpc failed: http status %d", e.Status)
	}
	return fmt.Sprintf("rpc failed: %s (%d): %s", e.Name, e.Code, e.Message)
}

// IsValidation returns true if the error is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsAuthentication returns true if the error is an AuthenticationError.
func IsAuthentication(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}

// IsState returns true if the error is a StateError.
func IsState(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}

// IsRPC returns true if the error is an RPCError.
func IsRPC(err error) bool {
	var re *RPCError
	return errors.As(err, &re)
}

func errMissing(field string) error {
	return &ValidationError{Field: field, Message: "required but not set"}
}
