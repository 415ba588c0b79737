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
)

// ConversationServer implements ConversationService on top of chat.Service.
type ConversationServer struct {
	svc    *chat.Service
	logger *zap.Logger
}

var _ ConversationServiceServer = (*ConversationServer)(nil)

// NewConversationServer creates a conversation service.
func NewConversationServer(svc *chat.Service, logger *zap.Logger) *ConversationServer {
	return &ConversationServer{svc: svc, logger: logger}
}

func (s *ConversationServer) OpenConversation(ctx context.Context, req *OpenConversationRequest) (*OpenConversationResponse, error) {
	id, err := s.svc.OpenConversation(ctx, ParticipantFromWire(req.Self), ParticipantFromWire(req.Counterpart))
	if err != nil {
		s.logger.Debug("open conversation failed",
			zap.String("self", req.Self.Identity),
			zap.String("counterpart", req.Counterpart.Identity),
			zap.Error(err))
		return nil, toStatus("open conversation", err)
	}
	return &OpenConversationResponse{ConversationID: id}, nil
}

func (s *ConversationServer) GetConversation(ctx context.Context, req *GetConversationRequest) (*GetConversationResponse, error) {
	v, err := s.svc.GetConversation(ctx, req.ConversationID, req.Viewer)
	if err != nil {
		return nil, toStatus("get conversation", err)
	}
	return &GetConversationResponse{
		Conversation: ConversationToWire(&v.Conversation),
		Counterpart:  ParticipantToWire(v.Counterpart),
		ImageURL:     v.ImageURL,
	}, nil
}

func (s *ConversationServer) ListConversations(ctx context.Context, req *ListConversationsRequest) (*ListConversationsResponse, error) {
	entries, err := s.svc.ListConversations(ctx, req.Viewer, int(req.Limit))
	if err != nil {
		return nil, toStatus("list conversations", err)
	}
	return &ListConversationsResponse{Entries: InboxToWire(entries)}, nil
}

// WatchInbox streams the conversations created for the viewer. The first
// event is always EventSubscribed.
func (s *ConversationServer) WatchInbox(req *WatchInboxRequest, stream grpc.ServerStreamingServer[InboxEvent]) error {
	sub, err := s.svc.WatchInbox(stream.Context(), req.Viewer)
	if err != nil {
		return toStatus("watch inbox", err)
	}
	defer sub.Close()

	if err := stream.Send(NewInboxEvent(EventSubscribed, nil)); err != nil {
		return err
	}
	for e := range sub.Entries() {
		wire := InboxToWire([]chat.InboxEntry{e})[0]
		if err := stream.Send(NewInboxEvent(EventConversationCreated, &wire)); err != nil {
			return err
		}
	}
	if err := sub.Err(); err != nil {
		s.logger.Warn("inbox watch ended by feed", zap.String("viewer", req.Viewer), zap.Error(err))
		return grpcstatus.Errorf(codes.Aborted, "watch inbox: %v", err)
	}
	return nil
}

// NewInboxEvent stamps an inbox event with a fresh id and the current time.
func NewInboxEvent(kind string, e *InboxEntry) *InboxEvent {
	return &InboxEvent{
		EventID:          uuid.NewString(),
		OccurredAtUnixMs: time.Now().UnixMilli(),
		Kind:             kind,
		Entry:            e,
	}
}
