package httpapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/matheus3301/pawchat/internal/api"
	"github.com/matheus3301/pawchat/internal/chat"
	"github.com/matheus3301/pawchat/internal/store"
)

// OpenConversationRequest opens the caller's conversation with
// Counterpart. Name and Image describe the caller.
type OpenConversationRequest struct {
	Name        string          `json:"name"`
	Image       string          `json:"image"`
	Counterpart api.Participant `json:"counterpart"`
}

type SendMessageRequest struct {
	Body        string `json:"body"`
	ClientMsgID string `json:"client_msg_id"`
}

type MessagesResponse struct {
	Messages   []api.Message `json:"messages"`
	NextBefore *api.Cursor   `json:"next_before,omitempty"`
}

func (s *Server) openConversation(c echo.Context) error {
	var req OpenConversationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	self := store.Participant{Identity: identity(c), Name: req.Name, Image: req.Image}
	id, err := s.svc.OpenConversation(c.Request().Context(), self, api.ParticipantFromWire(req.Counterpart))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, api.OpenConversationResponse{ConversationID: id})
}

func (s *Server) listConversations(c echo.Context) error {
	limit, err := intParam(c, "limit")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid limit"))
	}
	entries, err := s.svc.ListConversations(c.Request().Context(), identity(c), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, api.ListConversationsResponse{Entries: api.InboxToWire(entries)})
}

func (s *Server) getConversation(c echo.Context) error {
	v, err := s.svc.GetConversation(c.Request().Context(), c.Param("id"), identity(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, api.GetConversationResponse{
		Conversation: api.ConversationToWire(&v.Conversation),
		Counterpart:  api.ParticipantToWire(v.Counterpart),
		ImageURL:     v.ImageURL,
	})
}

// listMessages returns a newest-first page. before_ts and before_id
// continue from the previous page's next_before.
func (s *Server) listMessages(c echo.Context) error {
	ctx := c.Request().Context()
	convID := c.Param("id")
	if _, err := s.svc.GetConversation(ctx, convID, identity(c)); err != nil {
		return writeError(c, err)
	}

	limit, err := intParam(c, "limit")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid limit"))
	}
	limit = s.svc.PageLimit(limit)

	page := store.Page{Limit: limit}
	if c.QueryParam("before_ts") != "" {
		ts, err := strconv.ParseInt(c.QueryParam("before_ts"), 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid before_ts"))
		}
		id, err := strconv.ParseInt(c.QueryParam("before_id"), 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid before_id"))
		}
		page.Before = &store.Cursor{CreatedAt: ts, ID: id}
	}

	msgs, err := s.svc.ListMessages(ctx, convID, page)
	if err != nil {
		return writeError(c, err)
	}
	resp := MessagesResponse{Messages: api.MessagesToWire(msgs)}
	if len(msgs) == limit {
		resp.NextBefore = api.CursorToWire(msgs[len(msgs)-1].Cursor())
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) sendMessage(c echo.Context) error {
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	m, err := s.svc.SendMessage(c.Request().Context(), chat.SendRequest{
		ConversationID: c.Param("id"),
		SenderID:       identity(c),
		Body:           req.Body,
		ClientMsgID:    req.ClientMsgID,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, api.SendMessageResponse{Message: api.MessageToWire(m)})
}

func intParam(c echo.Context, name string) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
