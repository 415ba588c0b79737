// Package feed fans committed store changes out to in-process subscribers.
package feed

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/pawchat/internal/store"
)

var (
	// ErrLagged ends a subscription whose buffer was full when a change was
	// published. The receiver has missed at least one change and must backfill.
	ErrLagged = errors.New("feed: subscriber lagged")
	// ErrClosed ends every subscription when the hub shuts down.
	ErrClosed = errors.New("feed: hub closed")
)

// DefaultBuffer is used when Subscribe is called with a non-positive size.
const DefaultBuffer = 64

// Hub is an in-process publish/subscribe hub for row changes. Publish never
// blocks, so it is safe to call while the store holds its write lock.
type Hub struct {
	logger *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	subs   map[int]*Subscription
	next   int
	closed bool
}

// NewHub creates a hub. A nil logger discards log output.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger: logger,
		now:    time.Now,
		subs:   make(map[int]*Subscription),
	}
}

// Subscribe registers a subscription for changes matching f. Changes are
// delivered in publish order.
func (h *Hub) Subscribe(f Filter, bufSize int) *Subscription {
	if bufSize <= 0 {
		bufSize = DefaultBuffer
	}
	s := &Subscription{
		hub:    h,
		filter: f,
		ch:     make(chan Change, bufSize),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		s.finishLocked(ErrClosed)
		return s
	}
	s.id = h.next
	h.next++
	h.subs[s.id] = s
	return s
}

// Publish delivers c to every matching subscriber. A subscriber that cannot
// take the change is closed with ErrLagged.
func (h *Hub) Publish(c Change) {
	if c.At.IsZero() {
		c.At = h.now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for id, s := range h.subs {
		if !s.filter.Match(c) {
			continue
		}
		select {
		case s.ch <- c:
		default:
			h.logger.Warn("feed subscriber lagged",
				zap.Int("subscriber", id),
				zap.String("table", c.Table),
				zap.String("conversation_id", c.ConversationID()))
			delete(h.subs, id)
			s.finishLocked(ErrLagged)
		}
	}
}

// MessageInserted publishes a message insert. It implements store.Notifier.
func (h *Hub) MessageInserted(m *store.Message) {
	h.Publish(Change{Kind: Insert, Table: TableMessages, Message: m})
}

// ConversationInserted publishes a conversation insert. It implements store.Notifier.
func (h *Hub) ConversationInserted(c *store.Conversation) {
	h.Publish(Change{Kind: Insert, Table: TableConversations, Conversation: c})
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription with ErrClosed. Later subscriptions are
// returned already closed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, s := range h.subs {
		delete(h.subs, id)
		s.finishLocked(ErrClosed)
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[s.id] == s {
		delete(h.subs, s.id)
	}
	s.finishLocked(nil)
}

// Subscription is a live registration on a Hub. C is closed when the
// subscription ends; Err then reports why.
type Subscription struct {
	hub    *Hub
	id     int
	filter Filter
	ch     chan Change
	done   chan struct{}

	// Guarded by hub.mu.
	finished bool
	err      error
}

// C returns the channel changes are delivered on.
func (s *Subscription) C() <-chan Change { return s.ch }

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err returns ErrLagged or ErrClosed if the hub ended the subscription, and
// nil if it is still live or was closed by its owner.
func (s *Subscription) Err() error {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return s.err
}

// Close unregisters the subscription. It is idempotent.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

func (s *Subscription) finishLocked(err error) {
	if s.finished {
		return
	}
	s.finished = true
	s.err = err
	close(s.ch)
	close(s.done)
}
