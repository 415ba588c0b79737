package httpapi

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/matheus3301/pawchat/internal/api"
	"github.com/matheus3301/pawchat/internal/chat"
	"github.com/matheus3301/pawchat/internal/store"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// live upgrades to a websocket and streams the conversation's new messages
// as api.MessageEvent frames. The first frame is always EventSubscribed.
func (s *Server) live(c echo.Context) error {
	ctx := c.Request().Context()
	convID := c.Param("id")
	if _, err := s.svc.GetConversation(ctx, convID, identity(c)); err != nil {
		return writeError(c, err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return nil
	}
	defer func() { _ = conn.Close() }()

	sub, err := s.svc.Subscribe(ctx, convID)
	if err != nil {
		writeClose(conn, websocket.CloseInternalServerErr, err.Error())
		return nil
	}
	defer sub.Close()

	ended := pump(conn, api.NewEvent(api.EventSubscribed, nil), sub.Messages(), func(m store.Message) any {
		wire := api.MessageToWire(&m)
		return api.NewEvent(api.EventMessageInserted, &wire)
	})
	if !ended {
		return nil
	}
	if err := sub.Err(); err != nil {
		s.logger.Warn("live feed ended", zap.String("conversation_id", convID), zap.Error(err))
		writeClose(conn, websocket.CloseTryAgainLater, err.Error())
	}
	return nil
}

// liveInbox upgrades to a websocket and streams the conversations created
// for the caller as api.InboxEvent frames. The first frame is always
// EventSubscribed.
func (s *Server) liveInbox(c echo.Context) error {
	ctx := c.Request().Context()
	sub, err := s.svc.WatchInbox(ctx, identity(c))
	if err != nil {
		return writeError(c, err)
	}
	defer sub.Close()

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return nil
	}
	defer func() { _ = conn.Close() }()

	ended := pump(conn, api.NewInboxEvent(api.EventSubscribed, nil), sub.Entries(), func(e chat.InboxEntry) any {
		wire := api.InboxToWire([]chat.InboxEntry{e})[0]
		return api.NewInboxEvent(api.EventConversationCreated, &wire)
	})
	if !ended {
		return nil
	}
	if err := sub.Err(); err != nil {
		s.logger.Warn("live inbox ended", zap.String("viewer", identity(c)), zap.Error(err))
		writeClose(conn, websocket.CloseTryAgainLater, err.Error())
	}
	return nil
}

// pump writes first, then one frame per value from ch, pinging the peer
// meanwhile. It reports true when ch was closed and false when the peer
// went away or a write failed.
func pump[T any](conn *websocket.Conn, first any, ch <-chan T, frame func(T) any) bool {
	// The read side only handles control frames; it ends when the peer goes away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeFrame(conn, first); err != nil {
		return false
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-gone:
			return false
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return false
			}
		case v, ok := <-ch:
			if !ok {
				return true
			}
			if err := writeFrame(conn, frame(v)); err != nil {
				return false
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

func writeClose(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
