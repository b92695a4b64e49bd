package console

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"config-watch/internal/engine"
	"config-watch/internal/log"
	"config-watch/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Controller is the part of the engine the console drives.
type Controller interface {
	Fetch(ctx context.Context, source string) error
	TestAll(ctx context.Context) error
	TestOne(ctx context.Context, id store.ID) error
	SetFilter(ctx context.Context, filter engine.Filter) error
	CloseFocus(ctx context.Context) error
	Reload(ctx context.Context) error
	Frame(ctx context.Context) (engine.Frame, error)
	FocusState(ctx context.Context) (engine.FocusState, error)
}

// Liveness reports whether the push channel is up.
type Liveness interface {
	Connected() bool
}

type Server struct {
	echo *echo.Echo
	ctrl Controller
	hub  *Hub
	push Liveness
}

func NewServer(ctrl Controller, hub *Hub, push Liveness) *Server {
	s := &Server{
		echo: echo.New(),
		ctrl: ctrl,
		hub:  hub,
		push: push,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogMethod:  true,
		LogURI:     true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Debug().
				Int("status", v.Status).
				Str("method", v.Method).
				Str("uri", v.URI).
				Dur("latency", v.Latency).
				Msg("Console request")
			return nil
		},
	}))

	api := s.echo.Group("/api")
	api.GET("/view", s.getView)
	api.GET("/focus", s.getFocus)
	api.GET("/health", s.getHealth)
	api.POST("/reload", s.postReload)
	api.POST("/intents/fetch", s.postFetch)
	api.POST("/intents/test", s.postTestAll)
	api.POST("/intents/test/:id", s.postTestOne)
	api.POST("/intents/filter", s.postFilter)
	api.POST("/intents/focus/close", s.postCloseFocus)

	s.echo.GET("/ws", echo.WrapHandler(s.hub.ServeWS()))
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Starting console server")
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down console server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Console shutdown failed")
		return err
	}
	return nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
