package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/matheus3301/pawchat/internal/api"
	"github.com/matheus3301/pawchat/internal/chat"
	"github.com/matheus3301/pawchat/internal/feed"
	"github.com/matheus3301/pawchat/internal/store"
)

const (
	alice = "alice@x"
	bob   = "bob@y"
)

func testServer(t *testing.T) (*httptest.Server, *chat.Service) {
	t.Helper()
	return testServerWith(t, chat.ServiceConfig{})
}

func testServerWith(t *testing.T, cfg chat.ServiceConfig) (*httptest.Server, *chat.Service) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
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
	t.Cleanup(hub.Close)
	svc := chat.NewService(db, hub, cfg, logger)

	ts := httptest.NewServer(New(svc, logger).Handler())
	t.Cleanup(ts.Close)
	return ts, svc
}

func do(t *testing.T, ts *httptest.Server, method, path, who string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if who != "" {
		req.Header.Set(IdentityHeader, who)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func openConv(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	var resp api.OpenConversationResponse
	code := do(t, ts, http.MethodPost, "/v1/conversations", alice,
		OpenConversationRequest{Name: "Alice", Counterpart: api.Participant{Identity: bob, Name: "Bob"}}, &resp)
	if code != http.StatusOK {
		t.Fatalf("open status = %d", code)
	}
	return resp.ConversationID
}

func TestHealthz(t *testing.T) {
	ts, _ := testServer(t)
	if code := do(t, ts, http.MethodGet, "/healthz", "", nil, nil); code != http.StatusOK {
		t.Errorf("status = %d", code)
	}
}

func TestMissingIdentity(t *testing.T) {
	ts, _ := testServer(t)
	var resp ErrorResponse
	if code := do(t, ts, http.MethodGet, "/v1/conversations", "", nil, &resp); code != http.StatusUnauthorized {
		t.Fatalf("status = %d", code)
	}
	if resp.Error.Code != "unauthorized" {
		t.Errorf("code = %q", resp.Error.Code)
	}
}

func TestConversationFlow(t *testing.T) {
	ts, _ := testServer(t)
	id := openConv(t, ts)

	var again api.OpenConversationResponse
	do(t, ts, http.MethodPost, "/v1/conversations", bob,
		OpenConversationRequest{Counterpart: api.Participant{Identity: alice}}, &again)
	if again.ConversationID != id {
		t.Errorf("reverse open = %q, want %q", again.ConversationID, id)
	}

	for _, body := range []string{"one", "two", "three"} {
		var sent api.SendMessageResponse
		if code := do(t, ts, http.MethodPost, "/v1/conversations/"+id+"/messages", bob, SendMessageRequest{Body: body}, &sent); code != http.StatusCreated {
			t.Fatalf("send status = %d", code)
		}
		if sent.Message.SenderID != bob {
			t.Errorf("sender = %q", sent.Message.SenderID)
		}
	}

	var page MessagesResponse
	do(t, ts, http.MethodGet, "/v1/conversations/"+id+"/messages?limit=2", alice, nil, &page)
	if len(page.Messages) != 2 || page.Messages[0].Body != "three" || page.NextBefore == nil {
		t.Fatalf("page = %+v", page)
	}
	var older MessagesResponse
	path := "/v1/conversations/" + id + "/messages?limit=2&before_ts=" +
		itoa(page.NextBefore.CreatedAtUnixMs) + "&before_id=" + itoa(page.NextBefore.ID)
	do(t, ts, http.MethodGet, path, alice, nil, &older)
	if len(older.Messages) != 1 || older.Messages[0].Body != "one" || older.NextBefore != nil {
		t.Fatalf("older = %+v", older)
	}

	var inbox api.ListConversationsResponse
	do(t, ts, http.MethodGet, "/v1/conversations", alice, nil, &inbox)
	if len(inbox.Entries) != 1 || inbox.Entries[0].Counterpart.Identity != bob || inbox.Entries[0].Preview != "three" {
		t.Errorf("inbox = %+v", inbox)
	}

	var conv api.GetConversationResponse
	do(t, ts, http.MethodGet, "/v1/conversations/"+id, bob, nil, &conv)
	if conv.Counterpart.Identity != alice {
		t.Errorf("counterpart = %+v", conv.Counterpart)
	}
}

// A max page size below the requested limit must still report a cursor,
// or clients could never page past the first page.
func TestListMessagesPagesPastConfiguredMax(t *testing.T) {
	ts, svc := testServerWith(t, chat.ServiceConfig{MaxPageSize: 20})
	id := openConv(t, ts)
	for i := 0; i < 30; i++ {
		if _, err := svc.SendMessage(context.Background(), chat.SendRequest{
			ConversationID: id, SenderID: alice, Body: "m" + strconv.Itoa(i),
		}); err != nil {
			t.Fatal(err)
		}
	}

	var page MessagesResponse
	if code := do(t, ts, http.MethodGet, "/v1/conversations/"+id+"/messages", alice, nil, &page); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(page.Messages) != 20 || page.NextBefore == nil {
		t.Fatalf("first page: %d messages, next_before = %v", len(page.Messages), page.NextBefore)
	}

	var rest MessagesResponse
	path := "/v1/conversations/" + id + "/messages?limit=100&before_ts=" +
		itoa(page.NextBefore.CreatedAtUnixMs) + "&before_id=" + itoa(page.NextBefore.ID)
	do(t, ts, http.MethodGet, path, alice, nil, &rest)
	if len(rest.Messages) != 10 || rest.NextBefore != nil {
		t.Fatalf("second page: %d messages, next_before = %v", len(rest.Messages), rest.NextBefore)
	}
	if rest.Messages[9].Body != "m0" {
		t.Errorf("oldest = %q, want m0", rest.Messages[9].Body)
	}
}

func TestErrorMapping(t *testing.T) {
	ts, _ := testServer(t)
	id := openConv(t, ts)

	tests := []struct {
		name   string
		method string
		path   string
		who    string
		body   any
		status int
		code   string
	}{
		{"self conversation", http.MethodPost, "/v1/conversations", alice, OpenConversationRequest{Counterpart: api.Participant{Identity: alice}}, http.StatusBadRequest, "bad_request"},
		{"empty body", http.MethodPost, "/v1/conversations/" + id + "/messages", alice, SendMessageRequest{Body: " "}, http.StatusBadRequest, "bad_request"},
		{"unknown conversation", http.MethodGet, "/v1/conversations/missing", alice, nil, http.StatusNotFound, "not_found"},
		{"outsider read", http.MethodGet, "/v1/conversations/" + id + "/messages", "eve@z", nil, http.StatusForbidden, "forbidden"},
		{"outsider send", http.MethodPost, "/v1/conversations/" + id + "/messages", "eve@z", SendMessageRequest{Body: "hi"}, http.StatusForbidden, "forbidden"},
		{"bad limit", http.MethodGet, "/v1/conversations?limit=x", alice, nil, http.StatusBadRequest, "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp ErrorResponse
			if got := do(t, ts, tt.method, tt.path, tt.who, tt.body, &resp); got != tt.status {
				t.Fatalf("status = %d, want %d", got, tt.status)
			}
			if resp.Error.Code != tt.code {
				t.Errorf("code = %q, want %q", resp.Error.Code, tt.code)
			}
		})
	}
}

func TestLiveWebsocket(t *testing.T) {
	ts, svc := testServer(t)
	id := openConv(t, ts)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/conversations/" + id + "/live"
	header := http.Header{}
	header.Set(IdentityHeader, bob)
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var ready api.MessageEvent
	if err := conn.ReadJSON(&ready); err != nil {
		t.Fatal(err)
	}
	if ready.Kind != api.EventSubscribed {
		t.Fatalf("first frame = %q", ready.Kind)
	}

	if _, err := svc.SendMessage(context.Background(), chat.SendRequest{ConversationID: id, SenderID: alice, Body: "ping"}); err != nil {
		t.Fatal(err)
	}
	var evt api.MessageEvent
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatal(err)
	}
	if evt.Kind != api.EventMessageInserted || evt.Message == nil || evt.Message.Body != "ping" {
		t.Errorf("event = %+v", evt)
	}
}

func TestLiveRejectsOutsider(t *testing.T) {
	ts, _ := testServer(t)
	id := openConv(t, ts)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/conversations/" + id + "/live"
	header := http.Header{}
	header.Set(IdentityHeader, "eve@z")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v", resp)
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func TestLiveInbox(t *testing.T) {
	ts, _ := testServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/inbox/live"
	header := http.Header{}
	header.Set(IdentityHeader, bob)
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var ready api.InboxEvent
	if err := conn.ReadJSON(&ready); err != nil {
		t.Fatal(err)
	}
	if ready.Kind != api.EventSubscribed {
		t.Fatalf("first frame = %q", ready.Kind)
	}

	id := openConv(t, ts)
	var evt api.InboxEvent
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatal(err)
	}
	if evt.Kind != api.EventConversationCreated || evt.Entry == nil || evt.Entry.ConversationID != id {
		t.Fatalf("event = %+v", evt)
	}
	if evt.Entry.Counterpart.Identity != alice || evt.Entry.Counterpart.Name != "Alice" {
		t.Errorf("counterpart = %+v", evt.Entry.Counterpart)
	}
}
