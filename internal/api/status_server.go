package api

import (
	"context"
	"time"

	"github.com/matheus3301/pawchat/internal/store"
)

// StatsSource reports store counters. *store.DB implements it.
type StatsSource interface {
	Stats(ctx context.Context) (store.Stats, error)
}

// StatusInfo describes the daemon instance reported by GetStatus.
type StatusInfo struct {
	Profile  string
	Identity string
	HTTPAddr string
}

// StatusServer implements StatusService.
type StatusServer struct {
	info      StatusInfo
	startedAt time.Time
	stats     StatsSource
}

var _ StatusServiceServer = (*StatusServer)(nil)

// NewStatusServer creates a status service. stats may be nil.
func NewStatusServer(info StatusInfo, stats StatsSource) *StatusServer {
	return &StatusServer{info: info, startedAt: time.Now(), stats: stats}
}

func (s *StatusServer) GetStatus(ctx context.Context, _ *GetStatusRequest) (*GetStatusResponse, error) {
	resp := &GetStatusResponse{
		Profile:  s.info.Profile,
		Identity: s.info.Identity,
		HTTPAddr: s.info.HTTPAddr,
		UptimeMs: time.Since(s.startedAt).Milliseconds(),
	}
	if s.stats != nil {
		if st, err := s.stats.Stats(ctx); err == nil {
			resp.ConversationCount = int32(st.Conversations)
			resp.MessageCount = int32(st.Messages)
		}
	}
	return resp, nil
}
