package feed

import (
	"time"

	"github.com/matheus3301/pawchat/internal/store"
)

// Kind is the type of row change.
type Kind int

const (
	Insert Kind = iota
	Update
	Delete
)

func (k Kind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// Tables that publish changes.
const (
	TableMessages      = "messages"
	TableConversations = "conversations"
)

// Change is one committed row change. Exactly one of Message and
// Conversation is set, matching Table.
type Change struct {
	Kind         Kind
	Table        string
	Message      *store.Message
	Conversation *store.Conversation
	At           time.Time
}

// ConversationID returns the conversation the change belongs to.
func (c Change) ConversationID() string {
	switch {
	case c.Message != nil:
		return c.Message.ConversationID
	case c.Conversation != nil:
		return c.Conversation.ID
	}
	return ""
}

// Filter selects the changes a subscription receives. Zero fields match
// everything.
type Filter struct {
	Table          string
	ConversationID string
	Kinds          []Kind
}

// Match reports whether c passes the filter.
func (f Filter) Match(c Change) bool {
	if f.Table != "" && f.Table != c.Table {
		return false
	}
	if f.ConversationID != "" && f.ConversationID != c.ConversationID() {
		return false
	}
	if len(f.Kinds) == 0 {
		return true
	}
	for _, k := range f.Kinds {
		if k == c.Kind {
			return true
		}
	}
	return false
}

// MessagesIn is the filter for new messages of one conversation.
func MessagesIn(conversationID string) Filter {
	return Filter{Table: TableMessages, ConversationID: conversationID, Kinds: []Kind{Insert}}
}

// ConversationsCreated is the filter for new conversations.
func ConversationsCreated() Filter {
	return Filter{Table: TableConversations, Kinds: []Kind{Insert}}
}
