package chat

import (
	"context"

	"github.com/matheus3301/pawchat/internal/store"
)

// SendRequest is a message to append to a conversation.
type SendRequest struct {
	ConversationID string
	SenderID       string
	Body           string
	// ClientMsgID makes retries idempotent. Optional.
	ClientMsgID string
}

// MessageSubscription streams new messages of one conversation. Messages is
// closed when the subscription ends; Err then reports an unexpected end, or
// nil if the owner closed it.
type MessageSubscription interface {
	Messages() <-chan store.Message
	Err() error
	Close()
}

// InboxSubscription streams new conversations of one participant. Entries
// is closed when the subscription ends; Err then reports why, or nil after
// Close.
type InboxSubscription interface {
	Entries() <-chan InboxEntry
	Err() error
	Close()
}

// Backend is what a Controller needs from the chat service. Service
// implements it in-process and client.Client over the daemon socket.
type Backend interface {
	OpenConversation(ctx context.Context, self, counterpart store.Participant) (string, error)
	ListMessages(ctx context.Context, conversationID string, page store.Page) ([]store.Message, error)
	ListMessagesAfter(ctx context.Context, conversationID string, after store.Cursor, limit int) ([]store.Message, error)
	SendMessage(ctx context.Context, req SendRequest) (*store.Message, error)
	Subscribe(ctx context.Context, conversationID string) (MessageSubscription, error)
}
