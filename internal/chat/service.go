// Package chat implements two-party conversations on top of the store and
// the realtime feed: conversation resolution, history, sending, and the
// per-screen session controller.
package chat

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/matheus3301/pawchat/internal/feed"
	"github.com/matheus3301/pawchat/internal/store"
)

// Store is the persistence the service needs. *store.DB implements it.
type Store interface {
	ConversationStore
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	ListConversationsFor(ctx context.Context, identity string, limit int) ([]store.Conversation, error)
	InsertMessage(ctx context.Context, m *store.Message) (*store.Message, error)
	ListMessages(ctx context.Context, conversationID string, page store.Page) ([]store.Message, error)
	ListMessagesAfter(ctx context.Context, conversationID string, after store.Cursor, limit int) ([]store.Message, error)
}

// ServiceConfig holds the service settings taken from the profile config.
type ServiceConfig struct {
	// PublicBaseURL and Bucket locate participant images: an image key k is
	// served at PublicBaseURL/Bucket/k.
	PublicBaseURL string
	Bucket        string
	// FeedBuffer is the per-subscription buffer size.
	FeedBuffer int
	// MaxPageSize caps history pages below the store's own cap. Zero means
	// the store cap.
	MaxPageSize int
}

// ConversationView is a conversation as seen by one of its participants.
type ConversationView struct {
	Conversation store.Conversation
	Counterpart  store.Participant
	ImageURL     string
}

// InboxEntry is one row of a participant's inbox.
type InboxEntry struct {
	ConversationID string
	Counterpart    store.Participant
	ImageURL       string
	LastMessageAt  int64
	Preview        string
}

// Service is the chat API used by the transports and, in-process, by
// controllers. It implements Backend.
type Service struct {
	store    Store
	hub      *feed.Hub
	resolver *Resolver
	cfg      ServiceConfig
	logger   *zap.Logger
}

var _ Backend = (*Service)(nil)

// NewService creates a chat service.
func NewService(s Store, hub *feed.Hub, cfg ServiceConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    s,
		hub:      hub,
		resolver: NewResolver(s, logger.Named("resolver")),
		cfg:      cfg,
		logger:   logger,
	}
}

// OpenConversation resolves (and if needed creates) the conversation
// between self and counterpart.
func (s *Service) OpenConversation(ctx context.Context, self, counterpart store.Participant) (string, error) {
	return s.resolver.Resolve(ctx, self, counterpart)
}

// GetConversation returns a conversation from viewer's side. It fails with
// store.ErrNotFound if the conversation does not exist and ErrNotParticipant
// if viewer is not one of its parties.
func (s *Service) GetConversation(ctx context.Context, id, viewer string) (*ConversationView, error) {
	c, err := s.conversation(ctx, id)
	if err != nil {
		return nil, err
	}
	counterpart, ok := c.Counterpart(viewer)
	if !ok {
		return nil, ErrNotParticipant
	}
	return &ConversationView{
		Conversation: *c,
		Counterpart:  counterpart,
		ImageURL:     s.imageURL(counterpart.Image),
	}, nil
}

// ListConversations returns viewer's inbox, most recently active first.
func (s *Service) ListConversations(ctx context.Context, viewer string, limit int) ([]InboxEntry, error) {
	if strings.TrimSpace(viewer) == "" {
		return nil, fmt.Errorf("%w: identity is empty", ErrInvalidParticipants)
	}
	convs, err := s.store.ListConversationsFor(ctx, viewer, limit)
	if err != nil {
		return nil, unavailable("list conversations", err)
	}
	entries := make([]InboxEntry, 0, len(convs))
	for _, c := range convs {
		counterpart, _ := c.Counterpart(viewer)
		entries = append(entries, InboxEntry{
			ConversationID: c.ID,
			Counterpart:    counterpart,
			ImageURL:       s.imageURL(counterpart.Image),
			LastMessageAt:  c.LastMessageAt,
			Preview:        c.LastMessagePreview,
		})
	}
	return entries, nil
}

// ListMessages returns a newest-first page of a conversation's history.
func (s *Service) ListMessages(ctx context.Context, conversationID string, page store.Page) ([]store.Message, error) {
	page.Limit = s.PageLimit(page.Limit)
	msgs, err := s.store.ListMessages(ctx, conversationID, page)
	if err != nil {
		return nil, unavailable("list messages", err)
	}
	return msgs, nil
}

// ListMessagesAfter returns messages strictly after the cursor, oldest first.
func (s *Service) ListMessagesAfter(ctx context.Context, conversationID string, after store.Cursor, limit int) ([]store.Message, error) {
	limit = s.PageLimit(limit)
	msgs, err := s.store.ListMessagesAfter(ctx, conversationID, after, limit)
	if err != nil {
		return nil, unavailable("list messages", err)
	}
	return msgs, nil
}

// SendMessage validates and stores a message. Subscribers of the
// conversation receive it through the feed.
func (s *Service) SendMessage(ctx context.Context, req SendRequest) (*store.Message, error) {
	if strings.TrimSpace(req.Body) == "" {
		return nil, ErrEmptyBody
	}
	c, err := s.conversation(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	if !c.Has(req.SenderID) {
		return nil, ErrNotParticipant
	}

	m, err := s.store.InsertMessage(ctx, &store.Message{
		ConversationID: req.ConversationID,
		SenderID:       req.SenderID,
		Body:           req.Body,
		ClientMsgID:    req.ClientMsgID,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, unavailable("send message", err)
	}
	return m, nil
}

// Subscribe streams new messages of a conversation until ctx is done or the
// subscription is closed.
func (s *Service) Subscribe(ctx context.Context, conversationID string) (MessageSubscription, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("subscribe: %w", store.ErrNotFound)
	}
	sub := s.hub.Subscribe(feed.MessagesIn(conversationID), s.cfg.FeedBuffer)
	return newFeedSubscription(ctx, sub), nil
}

// WatchInbox streams the conversations created from now on that viewer
// takes part in, as inbox entries from viewer's side.
func (s *Service) WatchInbox(ctx context.Context, viewer string) (InboxSubscription, error) {
	if strings.TrimSpace(viewer) == "" {
		return nil, fmt.Errorf("%w: identity is empty", ErrInvalidParticipants)
	}
	sub := s.hub.Subscribe(feed.ConversationsCreated(), s.cfg.FeedBuffer)
	return &inboxSubscription{newChangeStream(ctx, sub, func(c feed.Change) (InboxEntry, bool) {
		if c.Conversation == nil {
			return InboxEntry{}, false
		}
		counterpart, ok := c.Conversation.Counterpart(viewer)
		if !ok {
			return InboxEntry{}, false
		}
		return InboxEntry{
			ConversationID: c.Conversation.ID,
			Counterpart:    counterpart,
			ImageURL:       s.imageURL(counterpart.Image),
			LastMessageAt:  c.Conversation.CreatedAt,
		}, true
	})}, nil
}

// PageLimit returns the number of messages a history call asking for limit
// returns at most: the store default for limit <= 0, capped by the store
// maximum and by the configured max page size. A page shorter than this is
// the last one.
func (s *Service) PageLimit(limit int) int {
	limit = store.NormalizeLimit(limit)
	if s.cfg.MaxPageSize > 0 && limit > s.cfg.MaxPageSize {
		return s.cfg.MaxPageSize
	}
	return limit
}

func (s *Service) conversation(ctx context.Context, id string) (*store.Conversation, error) {
	c, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, unavailable("get conversation", err)
	}
	if c == nil {
		return nil, fmt.Errorf("conversation %q: %w", id, store.ErrNotFound)
	}
	return c, nil
}

// imageURL turns a stored image key into a public URL. Absolute URLs and
// keys without a configured base are returned unchanged.
func (s *Service) imageURL(key string) string {
	if key == "" || s.cfg.PublicBaseURL == "" {
		return key
	}
	if u, err := url.Parse(key); err == nil && u.IsAbs() {
		return key
	}
	joined, err := url.JoinPath(s.cfg.PublicBaseURL, s.cfg.Bucket, key)
	if err != nil {
		s.logger.Warn("invalid image url", zap.String("key", key), zap.Error(err))
		return key
	}
	return joined
}

// changeStream turns matching feed changes into values of T until ctx is
// done, the owner closes it, or the hub ends the subscription.
type changeStream[T any] struct {
	sub    *feed.Subscription
	pick   func(feed.Change) (T, bool)
	out    chan T
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

func newChangeStream[T any](ctx context.Context, sub *feed.Subscription, pick func(feed.Change) (T, bool)) *changeStream[T] {
	ctx, cancel := context.WithCancel(ctx)
	cs := &changeStream[T]{
		sub:    sub,
		pick:   pick,
		out:    make(chan T),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go cs.run(ctx)
	return cs
}

func (cs *changeStream[T]) run(ctx context.Context) {
	defer close(cs.done)
	defer close(cs.out)
	defer cs.sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-cs.sub.C():
			if !ok {
				cs.mu.Lock()
				cs.err = cs.sub.Err()
				cs.mu.Unlock()
				return
			}
			v, ok := cs.pick(c)
			if !ok {
				continue
			}
			select {
			case cs.out <- v:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (cs *changeStream[T]) Err() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.err
}

func (cs *changeStream[T]) Close() {
	cs.cancel()
	<-cs.done
}

// feedSubscription adapts a feed subscription to MessageSubscription.
type feedSubscription struct {
	*changeStream[store.Message]
}

func newFeedSubscription(ctx context.Context, sub *feed.Subscription) *feedSubscription {
	return &feedSubscription{newChangeStream(ctx, sub, func(c feed.Change) (store.Message, bool) {
		if c.Message == nil {
			return store.Message{}, false
		}
		return *c.Message, true
	})}
}

func (fs *feedSubscription) Messages() <-chan store.Message { return fs.out }

// inboxSubscription adapts a conversation feed to InboxSubscription.
type inboxSubscription struct {
	*changeStream[InboxEntry]
}

func (is *inboxSubscription) Entries() <-chan InboxEntry { return is.out }
