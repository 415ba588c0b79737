package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/matheus3301/pawchat/internal/pairkey"
)

const conversationColumns = `c.id, c.email1, c.name1, c.image1, c.email2, c.name2, c.image2, c.created_at`

// InsertConversation creates a conversation record. It returns ErrConflict
// when the id or the unordered pair already exists.
func (db *DB) InsertConversation(ctx context.Context, c *Conversation) error {
	lo, hi := pairkey.Ordered(c.A.Identity, c.B.Identity)

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	c.CreatedAt = db.nextTimestamp()
	_, err := db.ExecContext(ctx, `
		INSERT INTO conversations (id, email1, name1, image1, email2, name2, image2, pair_lo, pair_hi, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.A.Identity, c.A.Name, c.A.Image, c.B.Identity, c.B.Name, c.B.Image, lo, hi, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert conversation %q: %w", c.ID, ErrConflict)
		}
		return fmt.Errorf("insert conversation %q: %w", c.ID, err)
	}

	if db.notifier != nil {
		cp := *c
		db.notifier.ConversationInserted(&cp)
	}
	return nil
}

// GetConversations returns the conversations whose id is one of ids.
// Missing ids are skipped.
func (db *DB) GetConversations(ctx context.Context, ids ...string) ([]Conversation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := db.QueryContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations c
		WHERE c.id IN (`+placeholders+`)
		ORDER BY c.created_at ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := scanConversation(rows, &c); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// GetConversation returns a single conversation, or nil if it does not exist.
func (db *DB) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var c Conversation
	err := scanConversation(db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations c
		WHERE c.id = ?`, id), &c)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConversationsFor returns the conversations identity takes part in,
// most recently active first.
func (db *DB) ListConversationsFor(ctx context.Context, identity string, limit int) ([]Conversation, error) {
	limit = NormalizeLimit(limit)
	rows, err := db.QueryContext(ctx, `
		SELECT `+conversationColumns+`,
			COALESCE(last.created_at, c.created_at) AS last_at,
			COALESCE(last.body, '') AS preview
		FROM conversations c
		LEFT JOIN messages last ON last.id = (
			SELECT m.id FROM messages m
			WHERE m.conversation_id = c.id
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT 1
		)
		WHERE c.email1 = ? OR c.email2 = ?
		ORDER BY last_at DESC, c.id ASC
		LIMIT ?`, identity, identity, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.A.Identity, &c.A.Name, &c.A.Image, &c.B.Identity, &c.B.Name, &c.B.Image, &c.CreatedAt,
			&c.LastMessageAt, &c.LastMessagePreview); err != nil {
			return nil, err
		}
		c.LastMessagePreview = truncate(c.LastMessagePreview, 100)
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(r rowScanner, c *Conversation) error {
	return r.Scan(&c.ID, &c.A.Identity, &c.A.Name, &c.A.Image, &c.B.Identity, &c.B.Name, &c.B.Image, &c.CreatedAt)
}

// truncate cuts s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Stats holds row counts for status reporting.
type Stats struct {
	Conversations int
	Messages      int
}

// Stats returns the number of stored conversations and messages.
func (db *DB) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM conversations), (SELECT COUNT(*) FROM messages)`).
		Scan(&s.Conversations, &s.Messages)
	return s, err
}
