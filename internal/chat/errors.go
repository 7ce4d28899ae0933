package chat

import (
	"errors"
	"fmt"

	"github.com/clubhive/chat-service/internal/database"
)

// Domain failure taxonomy. Callers branch on these with errors.Is; the api
// layer maps them to HTTP statuses.
var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrAlreadyJoined    = errors.New("already joined")
	ErrNotParticipating = errors.New("not participating")
	ErrRoomNotJoinable  = errors.New("room not joinable")
	ErrBadPassword      = errors.New("bad password")
	ErrValidation       = errors.New("validation failed")
	ErrInternal         = errors.New("internal error")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// mapRepoError translates storage sentinels into domain failures. Anything
// unrecognized is a persistence fault.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, database.ErrRoomNotJoinable), errors.Is(err, database.ErrRoomFull):
		return ErrRoomNotJoinable
	case errors.Is(err, database.ErrAlreadyParticipant):
		return ErrAlreadyJoined
	case errors.Is(err, database.ErrNotParticipant):
		return ErrNotParticipating
	case errors.Is(err, database.ErrNotSender):
		return ErrPermissionDenied
	default:
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
}
