// Package server binds the TCP and HTTP listeners and runs them, together
// with the hub, until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/linechat/internal/chat"
)

// Server ties the registry to its transports: a TCP listener speaking raw
// lines and an optional HTTP listener for WebSocket, health and metrics.
type Server struct {
	cfg      Config
	log      *slog.Logger
	registry *chat.Registry
	hub      *Hub
	metrics  *Metrics
	origins  *originPolicy
	upgrader websocket.Upgrader

	listener     net.Listener
	httpListener net.Listener
	http         *http.Server
}

// New builds a Server from cfg. Unset values take their defaults; values out
// of range are an error.
func New(cfg Config, log *slog.Logger) (*Server, error) {
	cfg = sanitizeConfig(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry := chat.NewRegistry(log.With("component", "registry"))
	metrics := NewMetrics(registry)
	s := &Server{
		cfg:      cfg,
		log:      log,
		registry: registry,
		hub:      NewHub(metrics, log.With("component", "hub")),
		metrics:  metrics,
		origins:  newOriginPolicy(cfg.AllowedOrigins, metrics, log),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.check,
	}
	return s, nil
}

// Registry exposes the chat state, mainly for tests and diagnostics.
func (s *Server) Registry() *chat.Registry {
	return s.registry
}

// Metrics returns the server's counters.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Listen binds the configured addresses. It is separate from Serve so
// callers can learn the bound ports before serving.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.ListenAddr, err)
	}
	s.listener = ln

	if s.cfg.HTTPAddr == "" {
		return nil
	}

	httpLn, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("listen on %s: %w", s.cfg.HTTPAddr, err)
	}
	s.httpListener = httpLn
	s.http = CreateServer(s.cfg.HTTPAddr, s.routes())
	return nil
}

// Addr returns the bound TCP address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// HTTPAddr returns the bound HTTP address, or nil when HTTP is disabled.
func (s *Server) HTTPAddr() net.Addr {
	if s.httpListener == nil {
		return nil
	}
	return s.httpListener.Addr()
}

// Serve runs until ctx is cancelled, then shuts down gracefully: listeners
// stop, every live connection is closed and runs its disconnect cleanup, and
// pumps get ShutdownTimeout to finish. Listen is called first if needed.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.hub.Run()
		return nil
	})

	g.Go(func() error {
		return s.acceptLoop()
	})

	if s.http != nil {
		g.Go(func() error {
			return serveHTTP(s.http, s.httpListener, s.log)
		})
	}

	if s.cfg.MetricsInterval > 0 {
		g.Go(func() error {
			s.metrics.logPeriodically(gctx, s.log, s.cfg.MetricsInterval)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	return g.Wait()
}

func (s *Server) shutdown() error {
	s.log.Info("shutting down")

	if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.log.Warn("closing listener", "error", err)
	}

	var errs []error
	if s.http != nil {
		if err := ShutdownServer(s.http, s.cfg.ShutdownTimeout, s.log); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.hub.Shutdown(s.cfg.ShutdownTimeout); err != nil {
		errs = append(errs, err)
	}

	s.metrics.LogSummary(s.log)
	return errors.Join(errs...)
}

// acceptLoop serves raw TCP connections until the listener is closed.
func (s *Server) acceptLoop() error {
	s.log.Info("line server listening", "addr", s.listener.Addr().String())

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn("accept failed", "error", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}

		client := NewClient(newTCPConn(conn, s.cfg.MaxLineLength, s.cfg.IdleTimeout), s.hub, s.registry, s.cfg, s.metrics, s.log)
		if err := s.hub.Register(client); err != nil {
			s.log.Debug("refusing TCP client", "addr", conn.RemoteAddr().String(), "error", err)
			client.closeConnection()
		}
	}
}
