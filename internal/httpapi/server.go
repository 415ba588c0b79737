// Package httpapi is the optional HTTP gateway of the daemon: JSON
// endpoints for conversations and messages plus a websocket live feed.
// The caller's identity is taken from the X-Pawchat-Identity header.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/matheus3301/pawchat/internal/chat"
)

// IdentityHeader carries the caller's identity.
const IdentityHeader = "X-Pawchat-Identity"

const identityKey = "identity"

// Server serves the gateway routes.
type Server struct {
	e        *echo.Echo
	svc      *chat.Service
	logger   *zap.Logger
	listener net.Listener
}

// New builds the gateway and registers its routes.
func New(svc *chat.Service, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))

	s := &Server{e: e, svc: svc, logger: logger}

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	v1 := e.Group("/v1", requireIdentity)
	v1.POST("/conversations", s.openConversation)
	v1.GET("/conversations", s.listConversations)
	v1.GET("/conversations/:id", s.getConversation)
	v1.GET("/conversations/:id/messages", s.listMessages)
	v1.POST("/conversations/:id/messages", s.sendMessage)
	v1.GET("/conversations/:id/live", s.live)
	v1.GET("/inbox/live", s.liveInbox)

	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Listen binds addr. Serve must be called afterwards.
func (s *Server) Listen(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = l
	return nil
}

// Addr returns the bound address, or "" before Listen.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve blocks serving requests on the bound listener.
func (s *Server) Serve() error {
	s.e.Listener = s.listener
	s.logger.Info("http gateway starting", zap.String("addr", s.Addr()))
	if err := s.e.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for handlers to return.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http gateway stopping")
	return s.e.Shutdown(ctx)
}

func requireIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(IdentityHeader)
		if id == "" {
			return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing "+IdentityHeader+" header"))
		}
		c.Set(identityKey, id)
		return next(c)
	}
}

func identity(c echo.Context) string {
	id, _ := c.Get(identityKey).(string)
	return id
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			logger.Debug("http request", fields...)
			return nil
		},
	})
}
