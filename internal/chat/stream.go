package chat

import (
	"context"

	"github.com/matheus3301/pawchat/internal/store"
)

// Stream is a conversation's history followed by its live messages.
// A message committed while the history was being read may appear in both;
// receivers dedupe by id.
type Stream struct {
	History []store.Message // newest first
	sub     MessageSubscription
}

// Live delivers messages committed after the stream was opened. It is closed
// when the stream ends.
func (s *Stream) Live() <-chan store.Message { return s.sub.Messages() }

// Err reports why Live was closed, or nil if Close was called.
func (s *Stream) Err() error { return s.sub.Err() }

// Close ends the stream. It is safe to call more than once.
func (s *Stream) Close() { s.sub.Close() }

// StreamMessages subscribes to a conversation and then loads one page of
// history. Subscribing first means no message is lost between the two.
// A stream cannot be resumed; call StreamMessages again instead.
func StreamMessages(ctx context.Context, b Backend, conversationID string, page store.Page) (*Stream, error) {
	sub, err := b.Subscribe(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	history, err := b.ListMessages(ctx, conversationID, page)
	if err != nil {
		sub.Close()
		return nil, err
	}
	return &Stream{History: history, sub: sub}, nil
}
