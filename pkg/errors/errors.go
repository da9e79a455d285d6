package hub_errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors
var (
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrAlreadyExists      = errors.New("already exists")
)

// Chat policy errors. Each wraps one of the common errors so callers can
// classify with errors.Is.
var (
	ErrSelfChat          = fmt.Errorf("%w: cannot start a chat with yourself", ErrForbidden)
	ErrBlocked           = fmt.Errorf("%w: chat disabled due to a block", ErrForbidden)
	ErrTargetUnavailable = fmt.Errorf("%w: user is not accepting chats", ErrForbidden)
	ErrNotParticipant    = fmt.Errorf("%w: not a participant of this chat room", ErrForbidden)
	ErrNotRequestee      = fmt.Errorf("%w: request is addressed to another user", ErrForbidden)
	ErrNotRequester      = fmt.Errorf("%w: request was sent by another user", ErrForbidden)
	ErrAlreadyResponded  = fmt.Errorf("%w: request already responded", ErrInvalidTransition)
	ErrInactiveUser      = fmt.Errorf("%w: user not found or inactive", ErrUnauthorized)
	ErrUserNotFound      = fmt.Errorf("%w: user", ErrNotFound)
	ErrRoomNotFound      = fmt.Errorf("%w: chat room", ErrNotFound)
	ErrRequestNotFound   = fmt.Errorf("%w: chat request", ErrNotFound)
)

// HTTPStatus maps an error to the REST status code it surfaces as.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidTransition):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the short machine-readable code used in error responses.
func Code(err error) string {
	switch HTTPStatus(err) {
	case http.StatusBadRequest:
		return "INVALID_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}
