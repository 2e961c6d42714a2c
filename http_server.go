package sensorlog

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// StartHTTPServer starts the HTTP API for an engine and returns a handle
// that shuts it down. The stream hub may be nil to disable the live feed.
func StartHTTPServer(engine *Engine, hub *StreamHub, cfg Config, logger *slog.Logger) (*httpServer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mux := NewMux(engine, hub, cfg, logger)

	addr := net.JoinHostPort(cfg.HTTP.Host, fmt.Sprintf("%d", cfg.HTTP.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout),
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout),
	}

	logger.Info("http server listening", "addr", listener.Addr().String())
	go func() {
		_ = srv.Serve(listener)
	}()

	return &httpServer{srv: srv}, nil
}

// NewMux builds the route table with the standard middleware chain applied.
func NewMux(engine *Engine, hub *StreamHub, cfg Config, logger *slog.Logger) *http.ServeMux {
	rateLimit := cfg.HTTP.RateLimitPerSecond
	if rateLimit == 0 {
		rateLimit = 1000
	}
	var rl *rateLimiter
	if rateLimit > 0 {
		rl = newRateLimiter(rateLimit, time.Second)
	}

	auth := newAuthenticator(cfg.Auth)

	wrap := func(h http.HandlerFunc) http.HandlerFunc {
		h = authMiddleware(auth, h)
		if rl != nil {
			h = rateLimitMiddleware(rl, h)
		}
		return h
	}

	mux := http.NewServeMux()
	setupCatalogRoutes(mux, engine, wrap)
	setupDataRoutes(mux, engine, logger, wrap)
	setupExportRoutes(mux, engine, logger, wrap)
	setupRemoteReadRoutes(mux, engine, logger, wrap)
	if hub != nil {
		mux.HandleFunc("/stream", wrap(hub.WebSocketHandler()))
	}
	return mux
}

func (s *httpServer) Close() error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
