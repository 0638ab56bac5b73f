package errors

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrServiceUnavailable means a breaker is open; callers should back off.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrCancelled means the work was superseded or the caller went away.
	ErrCancelled = errors.New("cancelled")
)

// RemoteError wraps a failure coming back from the backing store.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op == "" {
		return fmt.Sprintf("remote failure: %v", e.Err)
	}
	return fmt.Sprintf("remote failure (%s): %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Remote wraps err as a RemoteError unless it is nil or already classified.
func Remote(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsCancelled(err) {
		return ErrCancelled
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrServiceUnavailable) {
		return err
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return err
	}
	return &RemoteError{Op: op, Err: err}
}

func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
