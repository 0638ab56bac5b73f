package apierr

import (
	"errors"
	"fmt"
	"net/http"

	pkgerrors "github.com/yungbote/journeys-backend/internal/pkg/errors"
)

// StatusClientClosedRequest is the nginx convention for a caller that went away.
const StatusClientClosedRequest = 499

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// From classifies err into an API error.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, pkgerrors.ErrInvalidArgument):
		return New(http.StatusBadRequest, "invalid_argument", err)
	case errors.Is(err, pkgerrors.ErrNotFound):
		return New(http.StatusNotFound, "journey_not_found", err)
	case errors.Is(err, pkgerrors.ErrServiceUnavailable):
		return New(http.StatusServiceUnavailable, "service_unavailable", err)
	case pkgerrors.IsCancelled(err):
		return New(StatusClientClosedRequest, "request_cancelled", err)
	case pkgerrors.IsRemote(err):
		return New(http.StatusBadGateway, "remote_failure", err)
	default:
		return New(http.StatusInternalServerError, "internal", err)
	}
}
