package client

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/matheus3301/pawchat/internal/api"
	"github.com/matheus3301/pawchat/internal/chat"
	"github.com/matheus3301/pawchat/internal/feed"
	"github.com/matheus3301/pawchat/internal/store"
)

var (
	alice = store.Participant{Identity: "alice@x", Name: "Alice"}
	bob   = store.Participant{Identity: "bob@y", Name: "Bob"}
)

type daemon struct {
	svc *chat.Service
	hub *feed.Hub
	srv *grpc.Server
}

func startDaemon(t *testing.T) (*daemon, *Client) {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", "pawchat-client-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	db, err := store.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger := zap.NewNop()
	hub := feed.NewHub(logger)
	db.SetNotifier(hub)
	svc := chat.NewService(db, hub, chat.ServiceConfig{}, logger)

	srv := grpc.NewServer()
	api.Register(srv,
		api.NewConversationServer(svc, logger),
		api.NewMessageServer(svc, logger),
		api.NewStatusServer(api.StatusInfo{Profile: "test"}, db))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	socketPath := filepath.Join(dir, "d.sock")
	lis, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	t.Cleanup(hub.Close)

	c, err := New(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return &daemon{svc: svc, hub: hub, srv: srv}, c
}

func TestClientHealthy(t *testing.T) {
	_, c := startDaemon(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if !c.Healthy(ctx) {
		t.Error("expected daemon to be healthy")
	}
}

func TestClientSubscribeAfterConfirmation(t *testing.T) {
	d, c := startDaemon(t)
	ctx := context.Background()

	id, err := c.OpenConversation(ctx, alice, bob)
	if err != nil {
		t.Fatal(err)
	}
	sub, err := c.Subscribe(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	// Subscribe has returned, so this message must reach the stream.
	if _, err := d.svc.SendMessage(ctx, chat.SendRequest{ConversationID: id, SenderID: bob.Identity, Body: "hi"}); err != nil {
		t.Fatal(err)
	}
	select {
	case m := <-sub.Messages():
		if m.Body != "hi" || m.ConversationID != id {
			t.Errorf("message = %+v", m)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestClientSubscriptionCloseIsClean(t *testing.T) {
	_, c := startDaemon(t)
	ctx := context.Background()
	id, err := c.OpenConversation(ctx, alice, bob)
	if err != nil {
		t.Fatal(err)
	}
	sub, err := c.Subscribe(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	sub.Close()
	if _, ok := <-sub.Messages(); ok {
		t.Error("expected closed channel")
	}
	if err := sub.Err(); err != nil {
		t.Errorf("Err() after Close = %v, want nil", err)
	}
}

func TestClientSubscriptionReportsLostFeed(t *testing.T) {
	d, c := startDaemon(t)
	ctx := context.Background()
	id, err := c.OpenConversation(ctx, alice, bob)
	if err != nil {
		t.Fatal(err)
	}
	sub, err := c.Subscribe(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	d.hub.Close()
	select {
	case _, ok := <-sub.Messages():
		if ok {
			t.Fatal("unexpected message")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for stream end")
	}
	if sub.Err() == nil {
		t.Error("expected an error after the feed was lost")
	}
}

func TestClientErrorsUnwrapToSentinels(t *testing.T) {
	_, c := startDaemon(t)
	ctx := context.Background()

	if _, err := c.OpenConversation(ctx, alice, alice); !errors.Is(err, chat.ErrInvalidParticipants) {
		t.Errorf("OpenConversation(self) error = %v", err)
	}
	if _, err := c.GetConversation(ctx, "missing", alice.Identity); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetConversation(missing) error = %v", err)
	}
}

func TestControllerOverClient(t *testing.T) {
	d, c := startDaemon(t)
	ctx := context.Background()

	ctl := chat.NewController(c, chat.Config{
		Self:               alice,
		Counterpart:        bob,
		ResubscribeBackoff: time.Millisecond,
		Logger:             zap.NewNop(),
	})
	defer ctl.Close()
	if err := ctl.Open(ctx); err != nil {
		t.Fatal(err)
	}
	if ctl.State() != chat.Live {
		t.Fatalf("state = %s, want LIVE", ctl.State())
	}

	if _, err := ctl.Send("from alice"); err != nil {
		t.Fatal(err)
	}
	waitSettled(t, ctl, 1)
	if _, err := d.svc.SendMessage(ctx, chat.SendRequest{ConversationID: ctl.ConversationID(), SenderID: bob.Identity, Body: "from bob"}); err != nil {
		t.Fatal(err)
	}

	snap := waitSettled(t, ctl, 2)
	if snap[0].Body != "from alice" || snap[1].Body != "from bob" {
		t.Fatalf("view = %+v", snap)
	}
}

// waitSettled waits until the view holds n confirmed messages.
func waitSettled(t *testing.T, ctl *chat.Controller, n int) []chat.ViewMessage {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		snap := ctl.Snapshot()
		confirmed := 0
		for _, m := range snap {
			if m.Status == chat.Confirmed {
				confirmed++
			}
		}
		if len(snap) == n && confirmed == n {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("view never settled: %+v", ctl.Snapshot())
	return nil
}

func TestGetStatus(t *testing.T) {
	_, c := startDaemon(t)
	resp, err := c.GetStatus(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if resp.Profile != "test" {
		t.Errorf("profile = %q", resp.Profile)
	}
}

func TestClientWatchInbox(t *testing.T) {
	d, c := startDaemon(t)
	ctx := context.Background()

	sub, err := c.WatchInbox(ctx, bob.Identity)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	carol := store.Participant{Identity: "carol@z", Name: "Carol"}
	if _, err := d.svc.OpenConversation(ctx, alice, carol); err != nil {
		t.Fatal(err)
	}
	id, err := d.svc.OpenConversation(ctx, alice, bob)
	if err != nil {
		t.Fatal(err)
	}
	select {
	case e := <-sub.Entries():
		if e.ConversationID != id || e.Counterpart.Identity != alice.Identity {
			t.Errorf("entry = %+v", e)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for inbox entry")
	}
}
