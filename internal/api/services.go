package api

import (
	"context"

	"google.golang.org/grpc"
)

const (
	ConversationServiceName = "pawchat.v1.ConversationService"
	MessageServiceName      = "pawchat.v1.MessageService"
	StatusServiceName       = "pawchat.v1.StatusService"
)

// ConversationServiceServer is the server API for ConversationService.
type ConversationServiceServer interface {
	OpenConversation(context.Context, *OpenConversationRequest) (*OpenConversationResponse, error)
	GetConversation(context.Context, *GetConversationRequest) (*GetConversationResponse, error)
	ListConversations(context.Context, *ListConversationsRequest) (*ListConversationsResponse, error)
	WatchInbox(*WatchInboxRequest, grpc.ServerStreamingServer[InboxEvent]) error
}

// MessageServiceServer is the server API for MessageService.
type MessageServiceServer interface {
	ListMessages(context.Context, *ListMessagesRequest) (*ListMessagesResponse, error)
	SendMessage(context.Context, *SendMessageRequest) (*SendMessageResponse, error)
	WatchMessages(*WatchMessagesRequest, grpc.ServerStreamingServer[MessageEvent]) error
}

// StatusServiceServer is the server API for StatusService.
type StatusServiceServer interface {
	GetStatus(context.Context, *GetStatusRequest) (*GetStatusResponse, error)
}

var ConversationServiceDesc = grpc.ServiceDesc{
	ServiceName: ConversationServiceName,
	HandlerType: (*ConversationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(ConversationServiceName, "OpenConversation", ConversationServiceServer.OpenConversation),
		unary(ConversationServiceName, "GetConversation", ConversationServiceServer.GetConversation),
		unary(ConversationServiceName, "ListConversations", ConversationServiceServer.ListConversations),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchInbox",
			Handler:       watchInboxHandler,
			ServerStreams: true,
		},
	},
	Metadata: "pawchat/v1/conversation.json",
}

var MessageServiceDesc = grpc.ServiceDesc{
	ServiceName: MessageServiceName,
	HandlerType: (*MessageServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MessageServiceName, "ListMessages", MessageServiceServer.ListMessages),
		unary(MessageServiceName, "SendMessage", MessageServiceServer.SendMessage),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchMessages",
			Handler:       watchMessagesHandler,
			ServerStreams: true,
		},
	},
	Metadata: "pawchat/v1/message.json",
}

var StatusServiceDesc = grpc.ServiceDesc{
	ServiceName: StatusServiceName,
	HandlerType: (*StatusServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(StatusServiceName, "GetStatus", StatusServiceServer.GetStatus),
	},
	Metadata: "pawchat/v1/status.json",
}

// Register adds all three services to s.
func Register(s grpc.ServiceRegistrar, conv ConversationServiceServer, msg MessageServiceServer, st StatusServiceServer) {
	s.RegisterService(&ConversationServiceDesc, conv)
	s.RegisterService(&MessageServiceDesc, msg)
	s.RegisterService(&StatusServiceDesc, st)
}

func fullMethod(service, method string) string {
	return "/" + service + "/" + method
}

// unary builds the method descriptor for a unary call from a method
// expression of the service interface.
func unary[S, Req, Resp any](service, method string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	full := fullMethod(service, method)
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchMessagesHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchMessagesRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(MessageServiceServer).WatchMessages(in, &grpc.GenericServerStream[WatchMessagesRequest, MessageEvent]{ServerStream: stream})
}

func watchInboxHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchInboxRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ConversationServiceServer).WatchInbox(in, &grpc.GenericServerStream[WatchInboxRequest, InboxEvent]{ServerStream: stream})
}

// ConversationServiceClient calls ConversationService over cc.
type ConversationServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewConversationServiceClient(cc grpc.ClientConnInterface) *ConversationServiceClient {
	return &ConversationServiceClient{cc: cc}
}

func (c *ConversationServiceClient) OpenConversation(ctx context.Context, in *OpenConversationRequest, opts ...grpc.CallOption) (*OpenConversationResponse, error) {
	return invoke[OpenConversationResponse](ctx, c.cc, fullMethod(ConversationServiceName, "OpenConversation"), in, opts)
}

func (c *ConversationServiceClient) GetConversation(ctx context.Context, in *GetConversationRequest, opts ...grpc.CallOption) (*GetConversationResponse, error) {
	return invoke[GetConversationResponse](ctx, c.cc, fullMethod(ConversationServiceName, "GetConversation"), in, opts)
}

func (c *ConversationServiceClient) ListConversations(ctx context.Context, in *ListConversationsRequest, opts ...grpc.CallOption) (*ListConversationsResponse, error) {
	return invoke[ListConversationsResponse](ctx, c.cc, fullMethod(ConversationServiceName, "ListConversations"), in, opts)
}

func (c *ConversationServiceClient) WatchInbox(ctx context.Context, in *WatchInboxRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[InboxEvent], error) {
	return openServerStream[WatchInboxRequest, InboxEvent](ctx, c.cc, &ConversationServiceDesc.Streams[0], fullMethod(ConversationServiceName, "WatchInbox"), in, opts)
}

// MessageServiceClient calls MessageService over cc.
type MessageServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewMessageServiceClient(cc grpc.ClientConnInterface) *MessageServiceClient {
	return &MessageServiceClient{cc: cc}
}

func (c *MessageServiceClient) ListMessages(ctx context.Context, in *ListMessagesRequest, opts ...grpc.CallOption) (*ListMessagesResponse, error) {
	return invoke[ListMessagesResponse](ctx, c.cc, fullMethod(MessageServiceName, "ListMessages"), in, opts)
}

func (c *MessageServiceClient) SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*SendMessageResponse, error) {
	return invoke[SendMessageResponse](ctx, c.cc, fullMethod(MessageServiceName, "SendMessage"), in, opts)
}

func (c *MessageServiceClient) WatchMessages(ctx context.Context, in *WatchMessagesRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[MessageEvent], error) {
	return openServerStream[WatchMessagesRequest, MessageEvent](ctx, c.cc, &MessageServiceDesc.Streams[0], fullMethod(MessageServiceName, "WatchMessages"), in, opts)
}

// openServerStream starts a server-streaming call and sends its only
// request.
func openServerStream[Req, Resp any](ctx context.Context, cc grpc.ClientConnInterface, desc *grpc.StreamDesc, method string, in *Req, opts []grpc.CallOption) (grpc.ServerStreamingClient[Resp], error) {
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	stream, err := cc.NewStream(ctx, desc, method, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[Req, Resp]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// StatusServiceClient calls StatusService over cc.
type StatusServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewStatusServiceClient(cc grpc.ClientConnInterface) *StatusServiceClient {
	return &StatusServiceClient{cc: cc}
}

func (c *StatusServiceClient) GetStatus(ctx context.Context, in *GetStatusRequest, opts ...grpc.CallOption) (*GetStatusResponse, error) {
	return invoke[GetStatusResponse](ctx, c.cc, fullMethod(StatusServiceName, "GetStatus"), in, opts)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
