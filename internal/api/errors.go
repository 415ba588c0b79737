package api

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/pawchat/internal/chat"
	"github.com/matheus3301/pawchat/internal/store"
)

// toStatus maps chat and store errors to gRPC status errors.
func toStatus(op string, err error) error {
	if err == nil {
		return nil
	}
	var code codes.Code
	switch {
	case errors.Is(err, chat.ErrInvalidParticipants), errors.Is(err, chat.ErrEmptyBody):
		code = codes.InvalidArgument
	case errors.Is(err, store.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, chat.ErrNotParticipant):
		code = codes.PermissionDenied
	case errors.Is(err, chat.ErrStoreUnavailable):
		code = codes.Unavailable
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	default:
		code = codes.Internal
	}
	return grpcstatus.Errorf(code, "%s: %v", op, err)
}

// RemoteError is a status error returned by the daemon. It unwraps to the
// chat or store sentinel the daemon reported, so errors.Is works across the
// socket.
type RemoteError struct {
	Code codes.Code
	Msg  string

	sentinel error
}

func (e *RemoteError) Error() string {
	return e.Msg
}

func (e *RemoteError) Unwrap() error {
	return e.sentinel
}

var sentinels = []struct {
	code codes.Code
	err  error
}{
	{codes.InvalidArgument, chat.ErrInvalidParticipants},
	{codes.InvalidArgument, chat.ErrEmptyBody},
	{codes.NotFound, store.ErrNotFound},
	{codes.PermissionDenied, chat.ErrNotParticipant},
	{codes.Unavailable, chat.ErrStoreUnavailable},
	{codes.Canceled, context.Canceled},
	{codes.DeadlineExceeded, context.DeadlineExceeded},
}

// FromStatus converts an error returned by a client call into a
// RemoteError. Errors that carry no gRPC status are returned unchanged.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := grpcstatus.FromError(err)
	if !ok {
		return err
	}
	re := &RemoteError{Code: st.Code(), Msg: st.Message()}
	for _, s := range sentinels {
		if s.code != st.Code() {
			continue
		}
		// Codes shared by several sentinels are told apart by message.
		if re.sentinel == nil || strings.Contains(st.Message(), s.err.Error()) {
			re.sentinel = s.err
		}
	}
	// The daemon being unreachable is a store outage from the caller's side.
	if st.Code() == codes.Unavailable {
		re.sentinel = chat.ErrStoreUnavailable
	}
	return re
}
