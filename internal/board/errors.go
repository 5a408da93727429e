package board

import (
	"errors"
	"fmt"
)

var (
	ErrAuthRequired  = errors.New("authentication required")
	ErrLimitReached  = errors.New("free tier limit of completed tasks reached")
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrRemoteFailure = errors.New("remote request failed")
)

// remoteFailure tags err as ErrRemoteFailure while keeping the cause
// reachable through errors.Is and errors.As.
func remoteFailure(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrRemoteFailure, err)
}

func notFound(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotFound)
}

func alreadyExists(message string) error {
	return fmt.Errorf("%s: %w", message, ErrAlreadyExists)
}

func invalidInput(message string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, message)
}
