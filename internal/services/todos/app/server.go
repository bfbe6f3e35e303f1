// Package server wires the todos runtime: storage, HTTP API and gRPC health.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/todos/internal/platform/httpx"
	"github.com/louisbranch/todos/internal/platform/requestctx"
	"github.com/louisbranch/todos/internal/platform/timeouts"
	todoshttp "github.com/louisbranch/todos/internal/services/todos/api/http/todos"
	"github.com/louisbranch/todos/internal/services/todos/storage"
	todossqlite "github.com/louisbranch/todos/internal/services/todos/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	// HealthServiceName is the gRPC health key reported for the todo API.
	HealthServiceName = "todos.v1.TodoService"

	tracerName = "github.com/louisbranch/todos/internal/services/todos"
)

// Config defines the process inputs for the todos server.
type Config struct {
	// HTTPAddr is the listen address for the JSON API.
	HTTPAddr string
	// GRPCAddr is the listen address for the gRPC health service.
	GRPCAddr string
	// DBPath is the SQLite database file.
	DBPath string
	// CORSAllowedOrigins lists browser origins admitted by the API.
	CORSAllowedOrigins []string
	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration
}

// Server hosts the todos HTTP API and its gRPC health endpoint.
type Server struct {
	httpListener    net.Listener
	httpServer      *http.Server
	grpcListener    net.Listener
	grpcServer      *grpc.Server
	health          *health.Server
	store           *todossqlite.Store
	shutdownTimeout time.Duration
}

// New opens storage and binds both listeners.
func New(cfg Config) (*Server, error) {
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		return nil, errors.New("http address is required")
	}
	if strings.TrimSpace(cfg.GRPCAddr) == "" {
		return nil, errors.New("grpc address is required")
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = timeouts.Shutdown
	}

	store, err := openTodoStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	httpListener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen on http addr %s: %w", cfg.HTTPAddr, err)
	}
	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		_ = httpListener.Close()
		_ = store.Close()
		return nil, fmt.Errorf("listen on grpc addr %s: %w", cfg.GRPCAddr, err)
	}

	httpServer := &http.Server{
		Handler:           newHandler(store, cfg.CORSAllowedOrigins),
		ReadHeaderTimeout: timeouts.ReadHeader,
		IdleTimeout:       timeouts.Idle,
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(HealthServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		httpListener:    httpListener,
		httpServer:      httpServer,
		grpcListener:    grpcListener,
		grpcServer:      grpcServer,
		health:          healthServer,
		store:           store,
		shutdownTimeout: cfg.ShutdownTimeout,
	}, nil
}

// pingStore is a todo store that can report database reachability.
type pingStore interface {
	storage.TodoStore
	Ping(ctx context.Context) error
}

func newHandler(store pingStore, origins []string) http.Handler {
	mux := http.NewServeMux()
	todoshttp.NewHandler(store).RegisterRoutes(mux)
	mux.HandleFunc("GET /up", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			log.Printf("todos up check failed request_id=%s: %v", requestctx.RequestIDFromContext(r.Context()), err)
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return httpx.Chain(
		mux,
		httpx.Trace(tracerName),
		httpx.RequestID(),
		httpx.AccessLog(),
		httpx.RecoverPanic(),
		httpx.CORS(httpx.CORSConfig{
			AllowedOrigins:   origins,
			AllowCredentials: true,
		}),
	)
}

// HTTPAddr returns the bound HTTP listener address.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// GRPCAddr returns the bound gRPC listener address.
func (s *Server) GRPCAddr() string {
	if s == nil || s.grpcListener == nil {
		return ""
	}
	return s.grpcListener.Addr().String()
}

// Run creates and serves a todos server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve runs both servers and blocks until one fails or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("todos HTTP server listening at %v", s.httpListener.Addr())
	httpErr := make(chan error, 1)
	go func() {
		httpErr <- s.httpServer.Serve(s.httpListener)
	}()

	log.Printf("todos gRPC health server listening at %v", s.grpcListener.Addr())
	grpcErr := make(chan error, 1)
	go func() {
		grpcErr <- s.grpcServer.Serve(s.grpcListener)
	}()

	handleGRPC := func(err error) error {
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}
	handleHTTP := func(err error) error {
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}
	shutdownGRPC := func() {
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
	}
	shutdownHTTP := func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		shutdownErr := shutdownHTTP()
		shutdownGRPC()
		if err := handleHTTP(<-httpErr); err != nil {
			return err
		}
		if err := handleGRPC(<-grpcErr); err != nil {
			return err
		}
		return shutdownErr
	case err := <-httpErr:
		shutdownGRPC()
		if grpcFailure := handleGRPC(<-grpcErr); grpcFailure != nil {
			log.Printf("todos gRPC stop: %v", grpcFailure)
		}
		return handleHTTP(err)
	case err := <-grpcErr:
		shutdownErr := shutdownHTTP()
		if httpFailure := handleHTTP(<-httpErr); httpFailure != nil {
			log.Printf("todos HTTP stop: %v", httpFailure)
		}
		if failure := handleGRPC(err); failure != nil {
			return failure
		}
		return shutdownErr
	}
}

// Close releases server resources. It is safe to call more than once.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.httpListener != nil {
		_ = s.httpListener.Close()
	}
	if s.grpcListener != nil {
		_ = s.grpcListener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close todos store: %v", err)
		}
		s.store = nil
	}
}

func openTodoStore(path string) (*todossqlite.Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = filepath.Join("data", "todos.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := todossqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open todos sqlite store: %w", err)
	}
	return store, nil
}
