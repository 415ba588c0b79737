package chat

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/pawchat/internal/feed"
	"github.com/matheus3301/pawchat/internal/store"
)

var (
	alice = store.Participant{Identity: "alice@x", Name: "Alice", Image: "alice.png"}
	bob   = store.Participant{Identity: "bob@y", Name: "Bob", Image: "bob.png"}
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testService(t *testing.T, cfg ServiceConfig) (*Service, *store.DB, *feed.Hub) {
	t.Helper()
	db := testDB(t)
	hub := feed.NewHub(zap.NewNop())
	db.SetNotifier(hub)
	t.Cleanup(hub.Close)
	return NewService(db, hub, cfg, zap.NewNop()), db, hub
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

// hookBackend overrides selected Backend methods and delegates the rest.
type hookBackend struct {
	Backend
	open      func(ctx context.Context, self, counterpart store.Participant) (string, error)
	list      func(ctx context.Context, id string, page store.Page) ([]store.Message, error)
	send      func(ctx context.Context, req SendRequest) (*store.Message, error)
	subscribe func(ctx context.Context, id string) (MessageSubscription, error)
}

func (h *hookBackend) OpenConversation(ctx context.Context, self, counterpart store.Participant) (string, error) {
	if h.open != nil {
		return h.open(ctx, self, counterpart)
	}
	return h.Backend.OpenConversation(ctx, self, counterpart)
}

func (h *hookBackend) ListMessages(ctx context.Context, id string, page store.Page) ([]store.Message, error) {
	if h.list != nil {
		return h.list(ctx, id, page)
	}
	return h.Backend.ListMessages(ctx, id, page)
}

func (h *hookBackend) SendMessage(ctx context.Context, req SendRequest) (*store.Message, error) {
	if h.send != nil {
		return h.send(ctx, req)
	}
	return h.Backend.SendMessage(ctx, req)
}

func (h *hookBackend) Subscribe(ctx context.Context, id string) (MessageSubscription, error) {
	if h.subscribe != nil {
		return h.subscribe(ctx, id)
	}
	return h.Backend.Subscribe(ctx, id)
}

// fakeSub is a subscription the test ends by hand.
type fakeSub struct {
	ch   chan store.Message
	once sync.Once

	mu  sync.Mutex
	err error
}

func newFakeSub() *fakeSub {
	return &fakeSub{ch: make(chan store.Message, 16)}
}

func (f *fakeSub) Messages() <-chan store.Message { return f.ch }

func (f *fakeSub) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeSub) Close() { f.end(nil) }

func (f *fakeSub) end(err error) {
	f.once.Do(func() {
		f.mu.Lock()
		f.err = err
		f.mu.Unlock()
		close(f.ch)
	})
}
