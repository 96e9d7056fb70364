package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// MCPEndpoint is where the streamable HTTP MCP transport is mounted.
const MCPEndpoint = "/mcp"

// HTTP server timeouts. Writes get more room than the metrics server because
// a booking may take an insert, a patch and a delete against the calendar.
const (
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultWriteTimeout      = 60 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
)

// HTTPServer serves the booking REST API, the health probes and, when an MCP
// server is attached, the streamable HTTP MCP endpoint.
type HTTPServer struct {
	sc        *ServerContext
	health    *HealthChecker
	mcpServer *mcpserver.MCPServer
	router    chi.Router

	mu         sync.Mutex
	httpServer *http.Server
}

// NewHTTPServer builds the router. mcpServer may be nil.
func NewHTTPServer(sc *ServerContext, mcpServer *mcpserver.MCPServer) *HTTPServer {
	s := &HTTPServer{
		sc:        sc,
		health:    NewHealthChecker(sc),
		mcpServer: mcpServer,
	}
	s.router = s.newRouter()
	return s
}

func (s *HTTPServer) newRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(instrumentRequests(s.sc))

	s.health.RegisterHealthEndpoints(r)

	h := &bookingHandlers{sc: s.sc}
	h.routes(r)

	if s.mcpServer != nil {
		r.Handle(MCPEndpoint, mcpserver.NewStreamableHTTPServer(s.mcpServer,
			mcpserver.WithEndpointPath(MCPEndpoint),
		))
	}
	return r
}

// Handler returns the root handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// HealthChecker returns the health checker backing the probe endpoints.
func (s *HTTPServer) HealthChecker() *HealthChecker {
	return s.health
}

// Start listens on addr and blocks until Shutdown.
func (s *HTTPServer) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.sc.Logger().Info("starting HTTP server", "addr", addr)
	return srv.ListenAndServe()
}

// Shutdown marks the server not ready and drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}
