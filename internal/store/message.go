package store

import (
	"context"
	"database/sql"
	"fmt"
)

const messageColumns = `id, conversation_id, sender_id, body, COALESCE(client_msg_id, ''), created_at`

// InsertMessage appends a message and returns the stored row with its id and
// created_at. The insert is idempotent on (conversation_id, client_msg_id):
// a retry returns the row written by the first attempt and is not announced
// to the notifier again. Returns ErrNotFound if the conversation is unknown.
func (db *DB) InsertMessage(ctx context.Context, m *Message) (*Message, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	if m.ClientMsgID != "" {
		existing, err := db.messageByClientID(ctx, m.ConversationID, m.ClientMsgID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	stored := *m
	stored.CreatedAt = db.nextTimestamp()
	res, err := db.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, sender_id, body, client_msg_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		stored.ConversationID, stored.SenderID, stored.Body, nullIfEmpty(stored.ClientMsgID), stored.CreatedAt)
	if err != nil {
		switch {
		case isForeignKeyViolation(err):
			return nil, fmt.Errorf("conversation %q: %w", m.ConversationID, ErrNotFound)
		case isUniqueViolation(err) && m.ClientMsgID != "":
			// Written by another connection between the lookup and the insert.
			existing, lookupErr := db.messageByClientID(ctx, m.ConversationID, m.ClientMsgID)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if existing != nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("insert message: %w", err)
	}
	if stored.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("insert message id: %w", err)
	}

	if db.notifier != nil {
		cp := stored
		db.notifier.MessageInserted(&cp)
	}
	return &stored, nil
}

// ListMessages returns up to page.Limit messages of a conversation, newest
// first, starting strictly before page.Before when set.
func (db *DB) ListMessages(ctx context.Context, conversationID string, page Page) ([]Message, error) {
	limit := NormalizeLimit(page.Limit)

	var (
		rows *sql.Rows
		err  error
	)
	if page.Before == nil {
		rows, err = db.QueryContext(ctx, `
			SELECT `+messageColumns+`
			FROM messages
			WHERE conversation_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?`, conversationID, limit)
	} else {
		b := page.Before
		rows, err = db.QueryContext(ctx, `
			SELECT `+messageColumns+`
			FROM messages
			WHERE conversation_id = ?
				AND (created_at < ? OR (created_at = ? AND id < ?))
			ORDER BY created_at DESC, id DESC
			LIMIT ?`, conversationID, b.CreatedAt, b.CreatedAt, b.ID, limit)
	}
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

// ListMessagesAfter returns up to limit messages strictly after the cursor,
// oldest first. It is used to fill gaps after a realtime subscription was lost.
func (db *DB) ListMessagesAfter(ctx context.Context, conversationID string, after Cursor, limit int) ([]Message, error) {
	limit = NormalizeLimit(limit)
	rows, err := db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = ?
			AND (created_at > ? OR (created_at = ? AND id > ?))
		ORDER BY created_at ASC, id ASC
		LIMIT ?`, conversationID, after.CreatedAt, after.CreatedAt, after.ID, limit)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

func (db *DB) messageByClientID(ctx context.Context, conversationID, clientMsgID string) (*Message, error) {
	var m Message
	err := db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = ? AND client_msg_id = ?`, conversationID, clientMsgID).
		Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Body, &m.ClientMsgID, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Body, &m.ClientMsgID, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
