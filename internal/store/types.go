package store

// Participant is one party of a conversation as it was at creation time.
type Participant struct {
	Identity string
	Name     string
	Image    string
}

// Conversation is the durable record of a two-party chat. The participant
// fields are a snapshot and are never updated after insert.
type Conversation struct {
	ID        string
	A         Participant
	B         Participant
	CreatedAt int64

	// Populated by ListConversationsFor only.
	LastMessageAt      int64
	LastMessagePreview string
}

// Has reports whether identity is one of the two parties.
func (c *Conversation) Has(identity string) bool {
	return identity != "" && (c.A.Identity == identity || c.B.Identity == identity)
}

// Counterpart returns the party that is not identity.
func (c *Conversation) Counterpart(identity string) (Participant, bool) {
	switch identity {
	case c.A.Identity:
		return c.B, true
	case c.B.Identity:
		return c.A, true
	}
	return Participant{}, false
}

// Message is an immutable chat message. ID and CreatedAt are assigned by the store.
type Message struct {
	ID             int64
	ConversationID string
	SenderID       string
	Body           string
	ClientMsgID    string
	CreatedAt      int64 // unix ms
}

// Cursor returns the keyset position of m.
func (m *Message) Cursor() Cursor {
	return Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
}

// Cursor is a position in (created_at, id) order.
type Cursor struct {
	CreatedAt int64
	ID        int64
}

// Less reports whether c sorts before o.
func (c Cursor) Less(o Cursor) bool {
	if c.CreatedAt != o.CreatedAt {
		return c.CreatedAt < o.CreatedAt
	}
	return c.ID < o.ID
}

// Page bounds a newest-first history query.
type Page struct {
	Before *Cursor // nil = start from the newest message
	Limit  int
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// NormalizeLimit applies the default page size and the hard cap.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
