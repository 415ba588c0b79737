package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable wraps any store failure other than the ones the
	// chat layer recovers from or reports by name.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvalidParticipants is returned when an identity is empty or both
	// parties are the same identity.
	ErrInvalidParticipants = errors.New("invalid participants")
	// ErrNotParticipant is returned when the caller is not a party of the
	// conversation.
	ErrNotParticipant = errors.New("not a participant of the conversation")
	// ErrEmptyBody is returned for messages that are blank after trimming.
	ErrEmptyBody = errors.New("message body is empty")
	// ErrNotLive is returned by controller operations that need a live session.
	ErrNotLive = errors.New("chat session is not live")
	// ErrTerminated is returned once a controller has been closed.
	ErrTerminated = errors.New("chat session terminated")
)

// ErrorKind classifies why a controller entered the Error state.
type ErrorKind int

const (
	ResolutionFailed ErrorKind = iota + 1
	HistoryLoadFailed
	FeedFailed
)

func (k ErrorKind) String() string {
	switch k {
	case ResolutionFailed:
		return "resolution failed"
	case HistoryLoadFailed:
		return "history load failed"
	case FeedFailed:
		return "feed failed"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// ControllerError is the error a controller holds while in the Error state.
type ControllerError struct {
	Kind ErrorKind
	Err  error
}

func (e *ControllerError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ControllerError) Unwrap() error {
	return e.Err
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
