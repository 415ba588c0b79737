package api

import (
	"github.com/matheus3301/pawchat/internal/chat"
	"github.com/matheus3301/pawchat/internal/store"
)

// Participant is a conversation party on the wire.
type Participant struct {
	Identity string `json:"identity"`
	Name     string `json:"name,omitempty"`
	Image    string `json:"image,omitempty"`
}

type Conversation struct {
	ID              string      `json:"id"`
	A               Participant `json:"a"`
	B               Participant `json:"b"`
	CreatedAtUnixMs int64       `json:"created_at_unix_ms"`
}

type Message struct {
	ID              int64  `json:"id"`
	ConversationID  string `json:"conversation_id"`
	SenderID        string `json:"sender_id"`
	Body            string `json:"body"`
	ClientMsgID     string `json:"client_msg_id,omitempty"`
	CreatedAtUnixMs int64  `json:"created_at_unix_ms"`
}

// Cursor is a keyset position in (created_at, id) order.
type Cursor struct {
	CreatedAtUnixMs int64 `json:"created_at_unix_ms"`
	ID              int64 `json:"id"`
}

type InboxEntry struct {
	ConversationID      string      `json:"conversation_id"`
	Counterpart         Participant `json:"counterpart"`
	ImageURL            string      `json:"image_url,omitempty"`
	LastMessageAtUnixMs int64       `json:"last_message_at_unix_ms"`
	Preview             string      `json:"preview,omitempty"`
}

type OpenConversationRequest struct {
	Self        Participant `json:"self"`
	Counterpart Participant `json:"counterpart"`
}

type OpenConversationResponse struct {
	ConversationID string `json:"conversation_id"`
}

type GetConversationRequest struct {
	ConversationID string `json:"conversation_id"`
	Viewer         string `json:"viewer"`
}

type GetConversationResponse struct {
	Conversation Conversation `json:"conversation"`
	Counterpart  Participant  `json:"counterpart"`
	ImageURL     string       `json:"image_url,omitempty"`
}

type ListConversationsRequest struct {
	Viewer string `json:"viewer"`
	Limit  int32  `json:"limit,omitempty"`
}

type ListConversationsResponse struct {
	Entries []InboxEntry `json:"entries"`
}

// ListMessagesRequest pages through history. With After set, messages
// strictly after it are returned oldest first; otherwise messages before
// Before (or the newest) are returned newest first.
type ListMessagesRequest struct {
	ConversationID string  `json:"conversation_id"`
	Before         *Cursor `json:"before,omitempty"`
	After          *Cursor `json:"after,omitempty"`
	Limit          int32   `json:"limit,omitempty"`
}

type ListMessagesResponse struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
}

type SendMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Body           string `json:"body"`
	ClientMsgID    string `json:"client_msg_id,omitempty"`
}

type SendMessageResponse struct {
	Message Message `json:"message"`
}

// WatchMessagesRequest opens a live stream of a conversation's new
// messages. If Viewer is set it must be a participant.
type WatchMessagesRequest struct {
	ConversationID string `json:"conversation_id"`
	Viewer         string `json:"viewer,omitempty"`
}

// Event kinds sent on a watch stream.
const (
	// EventSubscribed is the first event of every stream; messages
	// committed after it are delivered.
	EventSubscribed          = "subscription.ready"
	EventMessageInserted     = "message.inserted"
	EventConversationCreated = "conversation.created"
)

type MessageEvent struct {
	EventID          string   `json:"event_id"`
	OccurredAtUnixMs int64    `json:"occurred_at_unix_ms"`
	Kind             string   `json:"kind"`
	Message          *Message `json:"message,omitempty"`
}

// WatchInboxRequest opens a live stream of the conversations created for
// Viewer.
type WatchInboxRequest struct {
	Viewer string `json:"viewer"`
}

type InboxEvent struct {
	EventID          string      `json:"event_id"`
	OccurredAtUnixMs int64       `json:"occurred_at_unix_ms"`
	Kind             string      `json:"kind"`
	Entry            *InboxEntry `json:"entry,omitempty"`
}

type GetStatusRequest struct{}

type GetStatusResponse struct {
	Profile           string `json:"profile"`
	Identity          string `json:"identity,omitempty"`
	UptimeMs          int64  `json:"uptime_ms"`
	ConversationCount int32  `json:"conversation_count"`
	MessageCount      int32  `json:"message_count"`
	HTTPAddr          string `json:"http_addr,omitempty"`
}

func ParticipantToWire(p store.Participant) Participant {
	return Participant{Identity: p.Identity, Name: p.Name, Image: p.Image}
}

func ParticipantFromWire(p Participant) store.Participant {
	return store.Participant{Identity: p.Identity, Name: p.Name, Image: p.Image}
}

func MessageToWire(m *store.Message) Message {
	return Message{
		ID:              m.ID,
		ConversationID:  m.ConversationID,
		SenderID:        m.SenderID,
		Body:            m.Body,
		ClientMsgID:     m.ClientMsgID,
		CreatedAtUnixMs: m.CreatedAt,
	}
}

func MessageFromWire(m Message) store.Message {
	return store.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Body:           m.Body,
		ClientMsgID:    m.ClientMsgID,
		CreatedAt:      m.CreatedAtUnixMs,
	}
}

func MessagesToWire(msgs []store.Message) []Message {
	out := make([]Message, 0, len(msgs))
	for i := range msgs {
		out = append(out, MessageToWire(&msgs[i]))
	}
	return out
}

func MessagesFromWire(msgs []Message) []store.Message {
	out := make([]store.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageFromWire(m))
	}
	return out
}

func ConversationToWire(c *store.Conversation) Conversation {
	return Conversation{
		ID:              c.ID,
		A:               ParticipantToWire(c.A),
		B:               ParticipantToWire(c.B),
		CreatedAtUnixMs: c.CreatedAt,
	}
}

func ConversationFromWire(c Conversation) store.Conversation {
	return store.Conversation{
		ID:        c.ID,
		A:         ParticipantFromWire(c.A),
		B:         ParticipantFromWire(c.B),
		CreatedAt: c.CreatedAtUnixMs,
	}
}

func InboxToWire(entries []chat.InboxEntry) []InboxEntry {
	out := make([]InboxEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, InboxEntry{
			ConversationID:      e.ConversationID,
			Counterpart:         ParticipantToWire(e.Counterpart),
			ImageURL:            e.ImageURL,
			LastMessageAtUnixMs: e.LastMessageAt,
			Preview:             e.Preview,
		})
	}
	return out
}

func InboxFromWire(entries []InboxEntry) []chat.InboxEntry {
	out := make([]chat.InboxEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, chat.InboxEntry{
			ConversationID: e.ConversationID,
			Counterpart:    ParticipantFromWire(e.Counterpart),
			ImageURL:       e.ImageURL,
			LastMessageAt:  e.LastMessageAtUnixMs,
			Preview:        e.Preview,
		})
	}
	return out
}

func cursorFromWire(c *Cursor) *store.Cursor {
	if c == nil {
		return nil
	}
	return &store.Cursor{CreatedAt: c.CreatedAtUnixMs, ID: c.ID}
}

// CursorToWire converts a store cursor.
func CursorToWire(c store.Cursor) *Cursor {
	return &Cursor{CreatedAtUnixMs: c.CreatedAt, ID: c.ID}
}
