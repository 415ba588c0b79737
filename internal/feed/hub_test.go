package feed

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/pawchat/internal/store"
)

func msg(conv string, id int64) *store.Message {
	return &store.Message{ID: id, ConversationID: conv, SenderID: "a", Body: "hi", CreatedAt: id}
}

func TestPublishSubscribe(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe(MessagesIn("a_b"), 10)
	defer sub.Close()

	h.MessageInserted(msg("a_b", 1))

	select {
	case c := <-sub.C():
		if c.Kind != Insert || c.Table != TableMessages || c.Message.ID != 1 {
			t.Errorf("got %+v", c)
		}
		if c.At.IsZero() {
			t.Error("At not stamped")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for change")
	}
}

func TestFilterByConversation(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe(MessagesIn("a_b"), 10)
	defer sub.Close()

	h.MessageInserted(msg("c_d", 1))
	h.ConversationInserted(&store.Conversation{ID: "a_b"})
	h.MessageInserted(msg("a_b", 2))

	c := <-sub.C()
	if c.Message == nil || c.Message.ID != 2 {
		t.Fatalf("got %+v, want message 2", c)
	}
	select {
	case c := <-sub.C():
		t.Errorf("unexpected change: %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFilterKinds(t *testing.T) {
	f := Filter{Kinds: []Kind{Update, Delete}}
	if f.Match(Change{Kind: Insert}) {
		t.Error("insert should not match")
	}
	if !f.Match(Change{Kind: Delete}) {
		t.Error("delete should match")
	}
	if !(Filter{}).Match(Change{Kind: Insert, Table: TableConversations}) {
		t.Error("zero filter should match everything")
	}
}

func TestDeliveryOrder(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe(Filter{}, 100)
	defer sub.Close()

	for i := int64(1); i <= 50; i++ {
		h.MessageInserted(msg("a_b", i))
	}
	for i := int64(1); i <= 50; i++ {
		c := <-sub.C()
		if c.Message.ID != i {
			t.Fatalf("position %d got id %d", i, c.Message.ID)
		}
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe(Filter{}, 1)
	sub.Close()
	sub.Close()

	h.MessageInserted(msg("a_b", 1))

	if _, ok := <-sub.C(); ok {
		t.Error("received change after Close")
	}
	if sub.Err() != nil {
		t.Errorf("Err() = %v, want nil after owner close", sub.Err())
	}
	if h.Len() != 0 {
		t.Errorf("Len() = %d, want 0", h.Len())
	}
}

// TestLaggedSubscriberIsClosed checks that a full buffer ends the
// subscription instead of silently dropping a change.
func TestLaggedSubscriberIsClosed(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe(Filter{}, 1)
	defer sub.Close()

	h.MessageInserted(msg("a_b", 1))
	h.MessageInserted(msg("a_b", 2))

	c, ok := <-sub.C()
	if !ok || c.Message.ID != 1 {
		t.Fatalf("first change = %+v, %v", c, ok)
	}
	if _, ok := <-sub.C(); ok {
		t.Fatal("channel should be closed after lag")
	}
	if !errors.Is(sub.Err(), ErrLagged) {
		t.Errorf("Err() = %v, want ErrLagged", sub.Err())
	}
	select {
	case <-sub.Done():
	default:
		t.Error("Done not closed")
	}
}

func TestHubClose(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe(Filter{}, 1)
	h.Close()

	<-sub.Done()
	if !errors.Is(sub.Err(), ErrClosed) {
		t.Errorf("Err() = %v, want ErrClosed", sub.Err())
	}
	sub.Close()

	late := h.Subscribe(Filter{}, 1)
	<-late.Done()
	if !errors.Is(late.Err(), ErrClosed) {
		t.Errorf("late Err() = %v, want ErrClosed", late.Err())
	}
	h.MessageInserted(msg("a_b", 1))
}

func TestConcurrentPublishAndClose(t *testing.T) {
	h := NewHub(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				sub := h.Subscribe(Filter{}, 4)
				h.MessageInserted(msg("a_b", int64(j)))
				sub.Close()
			}
		}()
	}
	wg.Wait()
	if h.Len() != 0 {
		t.Errorf("Len() = %d, want 0", h.Len())
	}
}

func TestStoreNotifierWiring(t *testing.T) {
	var _ store.Notifier = NewHub(nil)
}
