package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Notifier is told about rows after they are committed. The realtime feed
// implements it.
type Notifier interface {
	MessageInserted(m *Message)
	ConversationInserted(c *Conversation)
}

// DB wraps the SQLite database holding conversations and messages.
type DB struct {
	*sql.DB

	// writeMu serializes inserts so that timestamp order, id order and
	// notification order agree.
	writeMu  sync.Mutex
	lastTs   int64
	notifier Notifier
	now      func() time.Time
}

// Open creates a new SQLite connection with WAL mode and recommended pragmas.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{DB: db, now: time.Now}, nil
}

// SetNotifier registers the receiver of insert notifications. Call before
// the store is shared between goroutines.
func (db *DB) SetNotifier(n Notifier) {
	db.notifier = n
}

// nextTimestamp returns the server time in unix ms, never going backwards
// within this process. Callers hold writeMu.
func (db *DB) nextTimestamp() int64 {
	ts := db.now().UnixMilli()
	if ts < db.lastTs {
		ts = db.lastTs
	}
	db.lastTs = ts
	return ts
}
