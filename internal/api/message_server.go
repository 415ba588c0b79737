package api

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/pawchat/internal/chat"
	"github.com/matheus3301/pawchat/internal/store"
)

// MessageServer implements MessageService on top of chat.Service.
type MessageServer struct {
	svc    *chat.Service
	logger *zap.Logger
}

var _ MessageServiceServer = (*MessageServer)(nil)

// NewMessageServer creates a message service.
func NewMessageServer(svc *chat.Service, logger *zap.Logger) *MessageServer {
	return &MessageServer{svc: svc, logger: logger}
}

func (s *MessageServer) ListMessages(ctx context.Context, req *ListMessagesRequest) (*ListMessagesResponse, error) {
	limit := s.svc.PageLimit(int(req.Limit))

	var (
		msgs []store.Message
		err  error
	)
	if after := cursorFromWire(req.After); after != nil {
		msgs, err = s.svc.ListMessagesAfter(ctx, req.ConversationID, *after, limit)
	} else {
		msgs, err = s.svc.ListMessages(ctx, req.ConversationID, store.Page{
			Before: cursorFromWire(req.Before),
			Limit:  limit,
		})
	}
	if err != nil {
		return nil, toStatus("list messages", err)
	}
	return &ListMessagesResponse{
		Messages: MessagesToWire(msgs),
		HasMore:  len(msgs) == limit,
	}, nil
}

func (s *MessageServer) SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMessageResponse, error) {
	m, err := s.svc.SendMessage(ctx, chat.SendRequest{
		ConversationID: req.ConversationID,
		SenderID:       req.SenderID,
		Body:           req.Body,
		ClientMsgID:    req.ClientMsgID,
	})
	if err != nil {
		return nil, toStatus("send message", err)
	}
	return &SendMessageResponse{Message: MessageToWire(m)}, nil
}

// WatchMessages streams a conversation's new messages. The first event is
// always EventSubscribed; it is sent once the feed subscription exists.
func (s *MessageServer) WatchMessages(req *WatchMessagesRequest, stream grpc.ServerStreamingServer[MessageEvent]) error {
	ctx := stream.Context()
	if req.Viewer != "" {
		if _, err := s.svc.GetConversation(ctx, req.ConversationID, req.Viewer); err != nil {
			return toStatus("watch messages", err)
		}
	}

	sub, err := s.svc.Subscribe(ctx, req.ConversationID)
	if err != nil {
		return toStatus("watch messages", err)
	}
	defer sub.Close()

	if err := stream.Send(NewEvent(EventSubscribed, nil)); err != nil {
		return err
	}
	s.logger.Debug("watch started", zap.String("conversation_id", req.ConversationID))

	for m := range sub.Messages() {
		wire := MessageToWire(&m)
		if err := stream.Send(NewEvent(EventMessageInserted, &wire)); err != nil {
			return err
		}
	}
	if err := sub.Err(); err != nil {
		s.logger.Warn("watch ended by feed",
			zap.String("conversation_id", req.ConversationID),
			zap.Error(err))
		return grpcstatus.Errorf(codes.Aborted, "watch messages: %v", err)
	}
	return nil
}

// NewEvent stamps a watch event with a fresh id and the current time.
func NewEvent(kind string, m *Message) *MessageEvent {
	return &MessageEvent{
		EventID:          uuid.NewString(),
		OccurredAtUnixMs: time.Now().UnixMilli(),
		Kind:             kind,
		Message:          m,
	}
}
