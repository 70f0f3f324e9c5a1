package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/tradesim/internal/server/handler"
	"github.com/alanyoungcy/tradesim/internal/server/middleware"
	"github.com/alanyoungcy/tradesim/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	AuthToken   string // if empty, authentication is disabled
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health  *handler.HealthHandler
	Markets *handler.MarketHandler
	Orders  *handler.OrderHandler
	Fills   *handler.FillHandler
	Engine  *handler.EngineHandler
}

// Server is the HTTP + WebSocket API surface of the simulator.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer registers all routes on a ServeMux and wraps it with the
// middleware chain (auth, logging, CORS).
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /api/health", handlers.Health.Health)

	// Market endpoints.
	mux.HandleFunc("GET /api/markets", handlers.Markets.List)
	mux.HandleFunc("POST /api/markets", handlers.Markets.Define)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.Get)
	mux.HandleFunc("GET /api/markets/{id}/book", handlers.Markets.Book)
	mux.HandleFunc("GET /api/markets/{id}/fills", handlers.Fills.ListByMarket)
	mux.HandleFunc("GET /api/markets/{id}/depth", handlers.Engine.Depth)

	// Order endpoints.
	mux.HandleFunc("GET /api/orders", handlers.Orders.List)
	mux.HandleFunc("POST /api/orders", handlers.Orders.Submit)
	mux.HandleFunc("GET /api/orders/{id}", handlers.Orders.Get)
	mux.HandleFunc("DELETE /api/orders", handlers.Orders.CancelAll)
	mux.HandleFunc("DELETE /api/orders/{id}", handlers.Orders.Cancel)
	mux.HandleFunc("GET /api/orders/{id}/fills", handlers.Fills.ListByOrder)

	// Engine control endpoints.
	mux.HandleFunc("GET /api/engine/status", handlers.Engine.Status)
	mux.HandleFunc("PUT /api/engine/trading", handlers.Engine.SetTrading)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.AuthToken)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
