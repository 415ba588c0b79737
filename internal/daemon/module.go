// Package daemon wires a profile's long-running process: store, realtime
// feed, chat service, the gRPC socket API and the optional HTTP gateway.
package daemon

import (
	"context"
	"errors"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/pawchat/internal/api"
	"github.com/matheus3301/pawchat/internal/chat"
	"github.com/matheus3301/pawchat/internal/config"
	"github.com/matheus3301/pawchat/internal/feed"
	"github.com/matheus3301/pawchat/internal/httpapi"
	"github.com/matheus3301/pawchat/internal/lock"
	"github.com/matheus3301/pawchat/internal/logging"
	"github.com/matheus3301/pawchat/internal/profile"
	"github.com/matheus3301/pawchat/internal/store"
)

// Params holds the resolved profile passed to the fx module.
type Params struct {
	ProfileName string
	SocketPath  string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideConfig,
			provideLock,
			provideStore,
			provideHub,
			provideChatService,
			provideGateway,
			provideConversationServer,
			provideMessageServer,
			provideStatusServer,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName)
}

func provideConfig(p Params, logger *zap.Logger) (*config.Config, error) {
	cfg, err := profile.LoadConfig(p.ProfileName)
	if err != nil {
		return nil, err
	}
	if _, err := cfg.CurrentIdentity(); errors.Is(err, config.ErrNoIdentity) {
		logger.Warn("no identity configured; clients must pass one explicitly")
	}
	return cfg, nil
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideStore depends on the lock so that only the lock holder opens the
// database.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.ProfileName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideHub(db *store.DB, logger *zap.Logger) *feed.Hub {
	hub := feed.NewHub(logger.Named("feed"))
	db.SetNotifier(hub)
	return hub
}

func provideChatService(db *store.DB, hub *feed.Hub, cfg *config.Config, logger *zap.Logger) *chat.Service {
	return chat.NewService(db, hub, chat.ServiceConfig{
		PublicBaseURL: cfg.Storage.PublicBaseURL,
		Bucket:        cfg.Storage.Bucket,
		FeedBuffer:    cfg.Chat.FeedBuffer,
		MaxPageSize:   cfg.Chat.MaxPageSize,
	}, logger.Named("chat"))
}

// provideGateway returns nil when no HTTP address is configured.
func provideGateway(cfg *config.Config, svc *chat.Service, logger *zap.Logger) (*httpapi.Server, error) {
	if cfg.HTTP.Addr == "" {
		return nil, nil
	}
	gw := httpapi.New(svc, logger.Named("http"))
	if err := gw.Listen(cfg.HTTP.Addr); err != nil {
		return nil, err
	}
	return gw, nil
}

func provideConversationServer(svc *chat.Service, logger *zap.Logger) *api.ConversationServer {
	return api.NewConversationServer(svc, logger.Named("api"))
}

func provideMessageServer(svc *chat.Service, logger *zap.Logger) *api.MessageServer {
	return api.NewMessageServer(svc, logger.Named("api"))
}

func provideStatusServer(p Params, cfg *config.Config, db *store.DB, gw *httpapi.Server) *api.StatusServer {
	info := api.StatusInfo{Profile: p.ProfileName, Identity: cfg.Identity.Email}
	if gw != nil {
		info.HTTPAddr = gw.Addr()
	}
	return api.NewStatusServer(info, db)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, gw *httpapi.Server, hub *feed.Hub, db *store.DB, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			if gw != nil {
				go func() {
					if err := gw.Serve(); err != nil {
						logger.Error("http gateway error", zap.Error(err))
					}
				}()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.Drain()
			if gw != nil {
				if err := gw.Shutdown(ctx); err != nil {
					logger.Warn("http gateway shutdown", zap.Error(err))
				}
			}
			// Ends every watch stream so the graceful stop can finish.
			hub.Close()
			srv.Stop(ctx)
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
