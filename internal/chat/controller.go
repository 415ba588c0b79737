package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/pawchat/internal/outbox"
	"github.com/matheus3301/pawchat/internal/store"
)

// errFeedEnded is the cause recorded when a subscription ends without error.
var errFeedEnded = errors.New("message feed ended")

// Config configures a Controller.
type Config struct {
	Self        store.Participant
	Counterpart store.Participant

	// PageSize is the number of messages per history page.
	PageSize int
	// ResubscribeAttempts is how many times a lost feed is re-established
	// before the session fails. Zero or negative disables resubscribing.
	ResubscribeAttempts int
	// ResubscribeBackoff is multiplied by the attempt number between attempts.
	ResubscribeBackoff time.Duration
	// OutboxSize bounds the number of sends waiting to be stored.
	OutboxSize int

	// OnSendFailure is called, outside any lock, when a sent message could
	// not be stored.
	OnSendFailure func(clientMsgID string, err error)

	Logger *zap.Logger
}

func (c *Config) setDefaults() {
	c.PageSize = store.NormalizeLimit(c.PageSize)
	if c.ResubscribeAttempts < 0 {
		c.ResubscribeAttempts = 0
	}
	if c.ResubscribeBackoff <= 0 {
		c.ResubscribeBackoff = 200 * time.Millisecond
	}
	if c.OutboxSize <= 0 {
		c.OutboxSize = 32
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Update tells the presentation layer that the state or the view changed.
type Update struct {
	State State
	Err   *ControllerError
}

// Controller drives one chat screen: it resolves the conversation, loads
// history, follows the realtime feed and sends messages optimistically.
//
// Results that arrive after Close (history pages, send confirmations, feed
// messages) are dropped without touching the view.
type Controller struct {
	backend Backend
	cfg     Config
	logger  *zap.Logger
	machine *Machine
	updates chan Update
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	gen          uint64
	convID       string
	view         *view
	sub          MessageSubscription
	outbox       *outbox.Sender
	watermark    store.Cursor // newest message seen from the store or feed
	hasMore      bool
	loadingOlder bool
}

// NewController creates a controller in the Idle state.
func NewController(b Backend, cfg Config) *Controller {
	cfg.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		backend: b,
		cfg:     cfg,
		logger: cfg.Logger.With(
			zap.String("self", cfg.Self.Identity),
			zap.String("counterpart", cfg.Counterpart.Identity)),
		updates: make(chan Update, 1),
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		view:    newView(),
	}
	c.machine = NewMachine(func(ch StateChange) {
		c.push(Update{State: ch.To, Err: ch.Err})
	})
	return c
}

// Open resolves the conversation, subscribes to it, loads the newest page
// of history and goes Live. It may be called in Idle only.
func (c *Controller) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.machine.Current() == Terminated {
		c.mu.Unlock()
		return ErrTerminated
	}
	if err := c.machine.Transition(Resolving); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("open: %w", err)
	}
	gen := c.gen
	c.mu.Unlock()

	id, err := c.backend.OpenConversation(ctx, c.cfg.Self, c.cfg.Counterpart)

	c.mu.Lock()
	if c.staleLocked(gen) {
		c.mu.Unlock()
		return ErrTerminated
	}
	if err != nil {
		cerr := c.failLocked(ResolutionFailed, err)
		c.mu.Unlock()
		return cerr
	}
	c.convID = id
	_ = c.machine.Transition(LoadingHistory)
	c.mu.Unlock()

	// Subscribe before reading history so nothing committed in between is lost.
	sub, err := c.backend.Subscribe(c.ctx, id)
	if err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.staleLocked(gen) {
			return ErrTerminated
		}
		return c.failLocked(FeedFailed, err)
	}

	msgs, err := c.backend.ListMessages(ctx, id, store.Page{Limit: c.cfg.PageSize})

	c.mu.Lock()
	if c.staleLocked(gen) {
		c.mu.Unlock()
		sub.Close()
		return ErrTerminated
	}
	if err != nil {
		cerr := c.failLocked(HistoryLoadFailed, err)
		c.mu.Unlock()
		sub.Close()
		return cerr
	}
	c.mergeStoredLocked(msgs)
	c.hasMore = len(msgs) == c.cfg.PageSize
	c.sub = sub
	c.outbox = outbox.NewSender(c.sendMessage, c.reportFunc(gen), c.cfg.OutboxSize, c.logger.Named("outbox"))
	c.outbox.Start(c.ctx)
	_ = c.machine.Transition(Live)
	c.mu.Unlock()

	c.logger.Info("chat session live",
		zap.String("conversation_id", id),
		zap.Int("history", len(msgs)))
	go c.pump(sub, gen)
	return nil
}

// Send appends body to the view as pending and queues it for the store.
// It returns the client message id that identifies the entry in the view.
// A queued message that cannot be stored is marked failed and reported
// through OnSendFailure; it is never removed.
func (c *Controller) Send(body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", ErrEmptyBody
	}

	c.mu.Lock()
	switch c.machine.Current() {
	case Live:
	case Terminated:
		c.mu.Unlock()
		return "", ErrTerminated
	default:
		c.mu.Unlock()
		return "", ErrNotLive
	}

	id := uuid.NewString()
	c.view.addPending(id, c.cfg.Self.Identity, body, c.now().UnixMilli())
	err := c.outbox.Enqueue(outbox.Entry{
		ClientMsgID:    id,
		ConversationID: c.convID,
		SenderID:       c.cfg.Self.Identity,
		Body:           body,
	})
	if err != nil {
		c.view.fail(id, err)
	}
	c.notifyLocked()
	c.mu.Unlock()

	if err != nil {
		c.sendFailed(id, err)
		return id, err
	}
	return id, nil
}

// LoadOlder fetches the page of history before the oldest confirmed message
// and returns how many new messages it added. It returns 0 once the start
// of the conversation has been reached.
func (c *Controller) LoadOlder(ctx context.Context) (int, error) {
	c.mu.Lock()
	switch c.machine.Current() {
	case Live:
	case Terminated:
		c.mu.Unlock()
		return 0, ErrTerminated
	default:
		c.mu.Unlock()
		return 0, ErrNotLive
	}
	cursor, ok := c.view.oldest()
	if !c.hasMore || !ok || c.loadingOlder {
		c.mu.Unlock()
		return 0, nil
	}
	c.loadingOlder = true
	gen, convID := c.gen, c.convID
	c.mu.Unlock()

	msgs, err := c.backend.ListMessages(ctx, convID, store.Page{Before: &cursor, Limit: c.cfg.PageSize})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staleLocked(gen) {
		return 0, ErrTerminated
	}
	c.loadingOlder = false
	if err != nil {
		return 0, err
	}
	n := c.mergeStoredLocked(msgs)
	c.hasMore = len(msgs) == c.cfg.PageSize
	if n > 0 {
		c.notifyLocked()
	}
	return n, nil
}

// Reset moves an errored controller back to Idle, discarding the view, so
// Open can be retried.
func (c *Controller) Reset() error {
	c.mu.Lock()
	if c.machine.Current() == Terminated {
		c.mu.Unlock()
		return ErrTerminated
	}
	if err := c.machine.Transition(Idle); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("reset: %w", err)
	}
	c.gen++
	sub, ob := c.detachLocked()
	c.view = newView()
	c.convID = ""
	c.watermark = store.Cursor{}
	c.hasMore = false
	c.loadingOlder = false
	c.mu.Unlock()

	release(sub, ob)
	return nil
}

// Close terminates the session. It is idempotent and does not wait for
// in-flight work; results of that work are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.machine.Current() == Terminated {
		c.mu.Unlock()
		return
	}
	_ = c.machine.Transition(Terminated)
	c.gen++
	sub, ob := c.detachLocked()
	c.mu.Unlock()

	c.cancel()
	release(sub, ob)
	c.logger.Debug("chat session closed")
}

// State returns the current state.
func (c *Controller) State() State {
	return c.machine.Current()
}

// Err returns the error held in the Error state, or nil.
func (c *Controller) Err() error {
	if cerr := c.machine.Err(); cerr != nil {
		return cerr
	}
	return nil
}

// ConversationID returns the resolved conversation id, or "" before it is known.
func (c *Controller) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.convID
}

// HasMore reports whether LoadOlder may return more history.
func (c *Controller) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMore
}

// Snapshot returns the current view, oldest first.
func (c *Controller) Snapshot() []ViewMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.snapshot()
}

// Updates signals state and view changes. Updates are coalesced: a slow
// reader sees the latest one and should re-read Snapshot.
func (c *Controller) Updates() <-chan Update {
	return c.updates
}

func (c *Controller) pump(sub MessageSubscription, gen uint64) {
	for m := range sub.Messages() {
		c.mu.Lock()
		if c.sub != sub || c.staleLocked(gen) {
			c.mu.Unlock()
			return
		}
		if c.mergeStoredLocked([]store.Message{m}) > 0 {
			c.notifyLocked()
		}
		c.mu.Unlock()
	}

	c.mu.Lock()
	if c.sub != sub || c.staleLocked(gen) {
		c.mu.Unlock()
		return
	}
	c.sub = nil
	c.mu.Unlock()

	cause := sub.Err()
	if cause == nil {
		cause = errFeedEnded
	}
	sub.Close()
	c.logger.Warn("message feed lost", zap.Error(cause))
	c.resubscribe(gen, cause)
}

// resubscribe re-establishes the feed and fills the gap from the store.
func (c *Controller) resubscribe(gen uint64, cause error) {
	lastErr := cause
	for attempt := 1; attempt <= c.cfg.ResubscribeAttempts; attempt++ {
		select {
		case <-time.After(time.Duration(attempt) * c.cfg.ResubscribeBackoff):
		case <-c.ctx.Done():
			return
		}

		c.mu.Lock()
		if c.staleLocked(gen) {
			c.mu.Unlock()
			return
		}
		convID, after := c.convID, c.watermark
		c.mu.Unlock()

		sub, err := c.backend.Subscribe(c.ctx, convID)
		if err != nil {
			lastErr = err
			c.logger.Warn("resubscribe failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		missed, err := c.backfill(convID, after)
		if err != nil {
			sub.Close()
			lastErr = err
			c.logger.Warn("backfill failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		c.mu.Lock()
		if c.staleLocked(gen) {
			c.mu.Unlock()
			sub.Close()
			return
		}
		if c.mergeStoredLocked(missed) > 0 {
			c.notifyLocked()
		}
		c.sub = sub
		c.mu.Unlock()

		c.logger.Info("message feed restored", zap.Int("attempt", attempt), zap.Int("backfilled", len(missed)))
		go c.pump(sub, gen)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.staleLocked(gen) {
		_ = c.failLocked(FeedFailed, lastErr)
	}
}

func (c *Controller) backfill(convID string, after store.Cursor) ([]store.Message, error) {
	var all []store.Message
	for {
		page, err := c.backend.ListMessagesAfter(c.ctx, convID, after, store.MaxPageSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return all, nil
		}
		all = append(all, page...)
		after = page[len(page)-1].Cursor()
	}
}

func (c *Controller) sendMessage(ctx context.Context, e outbox.Entry) (*store.Message, error) {
	return c.backend.SendMessage(ctx, SendRequest{
		ConversationID: e.ConversationID,
		SenderID:       e.SenderID,
		Body:           e.Body,
		ClientMsgID:    e.ClientMsgID,
	})
}

func (c *Controller) reportFunc(gen uint64) outbox.ReportFunc {
	return func(res outbox.Result) {
		c.mu.Lock()
		if c.staleLocked(gen) {
			c.mu.Unlock()
			return
		}
		switch res.Status {
		case outbox.Sent:
			m := *res.Message
			if m.ClientMsgID == "" {
				m.ClientMsgID = res.Entry.ClientMsgID
			}
			if c.view.merge(m) {
				c.notifyLocked()
			}
			c.mu.Unlock()
		case outbox.Failed:
			failed := c.view.fail(res.Entry.ClientMsgID, res.Err)
			if failed {
				c.notifyLocked()
			}
			c.mu.Unlock()
			if failed {
				c.sendFailed(res.Entry.ClientMsgID, res.Err)
			}
		default:
			c.mu.Unlock()
		}
	}
}

func (c *Controller) sendFailed(clientMsgID string, err error) {
	c.logger.Warn("message not delivered", zap.String("client_msg_id", clientMsgID), zap.Error(err))
	if c.cfg.OnSendFailure != nil {
		c.cfg.OnSendFailure(clientMsgID, err)
	}
}

// mergeStoredLocked merges messages read from the store or the feed and
// advances the watermark used for backfill. It returns the number added.
func (c *Controller) mergeStoredLocked(msgs []store.Message) int {
	n := 0
	for _, m := range msgs {
		if c.watermark.Less(m.Cursor()) {
			c.watermark = m.Cursor()
		}
		if c.view.merge(m) {
			n++
		}
	}
	return n
}

func (c *Controller) failLocked(kind ErrorKind, err error) error {
	if ferr := c.machine.Fail(kind, err); ferr != nil {
		return ferr
	}
	c.logger.Warn("chat session failed", zap.Stringer("kind", kind), zap.Error(err))
	return c.machine.Err()
}

func (c *Controller) staleLocked(gen uint64) bool {
	return gen != c.gen || c.machine.Current() == Terminated
}

func (c *Controller) detachLocked() (MessageSubscription, *outbox.Sender) {
	sub, ob := c.sub, c.outbox
	c.sub, c.outbox = nil, nil
	return sub, ob
}

func release(sub MessageSubscription, ob *outbox.Sender) {
	if sub != nil {
		sub.Close()
	}
	if ob != nil {
		go ob.Stop()
	}
}

func (c *Controller) notifyLocked() {
	c.push(Update{State: c.machine.Current(), Err: c.machine.Err()})
}

// push replaces any unread update with u.
func (c *Controller) push(u Update) {
	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- u:
	default:
	}
}
