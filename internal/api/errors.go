package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/clubhive/chat-service/internal/chat"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func lower(s string) string {
	return strings.ToLower(s)
}

func NewBadRequestError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusBadRequest,
		Message:    lower(http.StatusText(http.StatusBadRequest)),
	}
}

func NewNotFoundError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusNotFound,
		Message:    lower(http.StatusText(http.StatusNotFound)),
	}
}

func NewInternalServerError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusInternalServerError,
		Message:    lower(http.StatusText(http.StatusInternalServerError)),
		Err:        err,
	}
}

func NewUnauthorizedError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusUnauthorized,
		Message:    lower(http.StatusText(http.StatusUnauthorized)),
	}
}

func NewForbiddenError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusForbidden,
		Message:    lower(http.StatusText(http.StatusForbidden)),
	}
}

func NewConflictError(message string) *ApiError {
	return &ApiError{
		StatusCode: http.StatusConflict,
		Message:    message,
	}
}

// NewDomainError maps the chat failure taxonomy to HTTP statuses.
func NewDomainError(err error) *ApiError {
	switch {
	case errors.Is(err, chat.ErrNotFound):
		return NewNotFoundError()
	case errors.Is(err, chat.ErrPermissionDenied):
		return NewForbiddenError()
	case errors.Is(err, chat.ErrBadPassword):
		return &ApiError{StatusCode: http.StatusUnauthorized, Message: "bad password"}
	case errors.Is(err, chat.ErrAlreadyJoined):
		return NewConflictError("already joined")
	case errors.Is(err, chat.ErrNotParticipating):
		return NewConflictError("not participating")
	case errors.Is(err, chat.ErrRoomNotJoinable):
		return NewConflictError("room not joinable")
	case errors.Is(err, chat.ErrValidation):
		return &ApiError{StatusCode: http.StatusBadRequest, Message: err.Error()}
	default:
		return NewInternalServerError(err)
	}
}
