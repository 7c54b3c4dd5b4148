// Package service implements the relay pipeline: admission, the session
// worker, the model exchange and the command interpreter.
package service

import (
	"errors"
	"fmt"
)

// Terminal ingress errors, visible at the HTTP boundary.
var (
	// ErrNamespaceNotFound means the webhook path named an unconfigured
	// namespace.
	ErrNamespaceNotFound = errors.New("unknown namespace")
)

// ValidationError rejects a malformed inbound event at the ingress. It is
// never queued.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// CommandError is a user-facing failure inside the command interpreter. It
// surfaces as the reply text; the session is still persisted.
type CommandError struct {
	Message string
}

func (e *CommandError) Error() string {
	return e.Message
}

// NewCommandError builds a CommandError.
func NewCommandError(format string, args ...any) *CommandError {
	return &CommandError{Message: fmt.Sprintf(format, args...)}
}
