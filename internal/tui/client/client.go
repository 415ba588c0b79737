// Package client talks to a profile's daemon over its unix socket. Client
// implements chat.Backend, so a chat.Controller can run against the daemon
// the same way it runs against an in-process chat.Service.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/matheus3301/pawchat/internal/api"
	"github.com/matheus3301/pawchat/internal/chat"
	"github.com/matheus3301/pawchat/internal/store"
)

// ErrStreamEnded is reported when the daemon closes a watch stream without
// an error status, for example during shutdown.
var ErrStreamEnded = errors.New("watch stream ended")

// Client wraps the gRPC connection to the daemon.
type Client struct {
	conn         *grpc.ClientConn
	Conversation *api.ConversationServiceClient
	Message      *api.MessageServiceClient
	Status       *api.StatusServiceClient
	health       healthpb.HealthClient

	// Viewer is sent with watch requests so the daemon can reject
	// subscriptions to conversations the identity is not part of.
	Viewer string
}

var _ chat.Backend = (*Client)(nil)

// New dials the daemon's unix domain socket and returns typed service clients.
func New(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}

	return &Client{
		conn:         conn,
		Conversation: api.NewConversationServiceClient(conn),
		Message:      api.NewMessageServiceClient(conn),
		Status:       api.NewStatusServiceClient(conn),
		health:       healthpb.NewHealthClient(conn),
	}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Healthy reports whether the daemon answers health checks as serving.
func (c *Client) Healthy(ctx context.Context) bool {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{})
	return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
}

func (c *Client) OpenConversation(ctx context.Context, self, counterpart store.Participant) (string, error) {
	resp, err := c.Conversation.OpenConversation(ctx, &api.OpenConversationRequest{
		Self:        api.ParticipantToWire(self),
		Counterpart: api.ParticipantToWire(counterpart),
	})
	if err != nil {
		return "", api.FromStatus(err)
	}
	return resp.ConversationID, nil
}

// GetConversation returns the conversation as seen by viewer.
func (c *Client) GetConversation(ctx context.Context, id, viewer string) (*chat.ConversationView, error) {
	resp, err := c.Conversation.GetConversation(ctx, &api.GetConversationRequest{ConversationID: id, Viewer: viewer})
	if err != nil {
		return nil, api.FromStatus(err)
	}
	return &chat.ConversationView{
		Conversation: api.ConversationFromWire(resp.Conversation),
		Counterpart:  api.ParticipantFromWire(resp.Counterpart),
		ImageURL:     resp.ImageURL,
	}, nil
}

// ListConversations returns viewer's inbox.
func (c *Client) ListConversations(ctx context.Context, viewer string, limit int) ([]chat.InboxEntry, error) {
	resp, err := c.Conversation.ListConversations(ctx, &api.ListConversationsRequest{Viewer: viewer, Limit: int32(limit)})
	if err != nil {
		return nil, api.FromStatus(err)
	}
	return api.InboxFromWire(resp.Entries), nil
}

func (c *Client) ListMessages(ctx context.Context, conversationID string, page store.Page) ([]store.Message, error) {
	req := &api.ListMessagesRequest{ConversationID: conversationID, Limit: int32(page.Limit)}
	if page.Before != nil {
		req.Before = api.CursorToWire(*page.Before)
	}
	resp, err := c.Message.ListMessages(ctx, req)
	if err != nil {
		return nil, api.FromStatus(err)
	}
	return api.MessagesFromWire(resp.Messages), nil
}

func (c *Client) ListMessagesAfter(ctx context.Context, conversationID string, after store.Cursor, limit int) ([]store.Message, error) {
	resp, err := c.Message.ListMessages(ctx, &api.ListMessagesRequest{
		ConversationID: conversationID,
		After:          api.CursorToWire(after),
		Limit:          int32(limit),
	})
	if err != nil {
		return nil, api.FromStatus(err)
	}
	return api.MessagesFromWire(resp.Messages), nil
}

func (c *Client) SendMessage(ctx context.Context, req chat.SendRequest) (*store.Message, error) {
	resp, err := c.Message.SendMessage(ctx, &api.SendMessageRequest{
		ConversationID: req.ConversationID,
		SenderID:       req.SenderID,
		Body:           req.Body,
		ClientMsgID:    req.ClientMsgID,
	})
	if err != nil {
		return nil, api.FromStatus(err)
	}
	m := api.MessageFromWire(resp.Message)
	return &m, nil
}

// GetStatus returns the daemon status.
func (c *Client) GetStatus(ctx context.Context) (*api.GetStatusResponse, error) {
	resp, err := c.Status.GetStatus(ctx, &api.GetStatusRequest{})
	if err != nil {
		return nil, api.FromStatus(err)
	}
	return resp, nil
}

// Subscribe opens a watch stream and returns once the daemon has confirmed
// the subscription, so no message committed after Subscribe returns is
// missed.
func (c *Client) Subscribe(ctx context.Context, conversationID string) (chat.MessageSubscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	stream, err := c.Message.WatchMessages(ctx, &api.WatchMessagesRequest{ConversationID: conversationID, Viewer: c.Viewer})
	if err != nil {
		cancel()
		return nil, api.FromStatus(err)
	}
	first, err := stream.Recv()
	if err != nil {
		cancel()
		return nil, api.FromStatus(err)
	}
	if first.Kind != api.EventSubscribed {
		cancel()
		return nil, fmt.Errorf("watch %s: unexpected first event %q", conversationID, first.Kind)
	}

	ws := newWatch(ctx, cancel, stream, func(evt *api.MessageEvent) (store.Message, bool) {
		if evt.Kind != api.EventMessageInserted || evt.Message == nil {
			return store.Message{}, false
		}
		return api.MessageFromWire(*evt.Message), true
	})
	return &messageWatch{ws}, nil
}

// WatchInbox streams the conversations created for viewer from now on. It
// returns once the daemon has confirmed the subscription.
func (c *Client) WatchInbox(ctx context.Context, viewer string) (chat.InboxSubscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	stream, err := c.Conversation.WatchInbox(ctx, &api.WatchInboxRequest{Viewer: viewer})
	if err != nil {
		cancel()
		return nil, api.FromStatus(err)
	}
	first, err := stream.Recv()
	if err != nil {
		cancel()
		return nil, api.FromStatus(err)
	}
	if first.Kind != api.EventSubscribed {
		cancel()
		return nil, fmt.Errorf("watch inbox: unexpected first event %q", first.Kind)
	}

	ws := newWatch(ctx, cancel, stream, func(evt *api.InboxEvent) (chat.InboxEntry, bool) {
		if evt.Kind != api.EventConversationCreated || evt.Entry == nil {
			return chat.InboxEntry{}, false
		}
		return api.InboxFromWire([]api.InboxEntry{*evt.Entry})[0], true
	})
	return &inboxWatch{ws}, nil
}

// watch reads events of type E off a server stream and delivers the ones
// pick accepts as T.
type watch[E, T any] struct {
	out    chan T
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

func newWatch[E, T any](ctx context.Context, cancel context.CancelFunc, stream grpc.ServerStreamingClient[E], pick func(*E) (T, bool)) *watch[E, T] {
	w := &watch[E, T]{
		out:    make(chan T),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go w.run(ctx, stream, pick)
	return w
}

func (w *watch[E, T]) run(ctx context.Context, stream grpc.ServerStreamingClient[E], pick func(*E) (T, bool)) {
	defer close(w.done)
	defer close(w.out)

	for {
		evt, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				err = ErrStreamEnded
			}
			w.mu.Lock()
			w.err = api.FromStatus(err)
			w.mu.Unlock()
			return
		}
		v, ok := pick(evt)
		if !ok {
			continue
		}
		select {
		case w.out <- v:
		case <-ctx.Done():
			return
		}
	}
}

func (w *watch[E, T]) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *watch[E, T]) Close() {
	w.cancel()
	<-w.done
}

type messageWatch struct {
	*watch[api.MessageEvent, store.Message]
}

func (w *messageWatch) Messages() <-chan store.Message { return w.out }

type inboxWatch struct {
	*watch[api.InboxEvent, chat.InboxEntry]
}

func (w *inboxWatch) Entries() <-chan chat.InboxEntry { return w.out }
