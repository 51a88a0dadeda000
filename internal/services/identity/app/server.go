// Package server assembles the identity service: storage, seeding, the
// HTTP endpoint surface, and a gRPC health endpoint.
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

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/alexanders1003/scribble.identity/internal/services/identity/connect"
	identitysqlite "github.com/alexanders1003/scribble.identity/internal/services/identity/storage/sqlite"
)

// Server hosts the identity service.
type Server struct {
	listener      net.Listener
	grpcServer    *grpc.Server
	health        *health.Server
	store         *identitysqlite.Store
	httpListener  net.Listener
	httpServer    *http.Server
	connectServer *connect.Server
}

// New creates a configured identity server listening on the provided
// port.
func New(port int, httpAddr string) (*Server, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", port, err)
	}
	store, err := openIdentityStore()
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	config := connect.LoadConfigFromEnv()
	if config.Issuer == "" {
		config.Issuer = defaultIssuer(httpAddr)
	}

	signer, err := connect.NewSigner(config.Issuer, config.SigningKey)
	if err != nil {
		_ = listener.Close()
		_ = store.Close()
		return nil, fmt.Errorf("build token signer: %w", err)
	}

	seed(store, config)

	var httpListener net.Listener
	var httpServer *http.Server
	var connectServer *connect.Server
	if strings.TrimSpace(httpAddr) != "" {
		httpListener, err = net.Listen("tcp", httpAddr)
		if err != nil {
			_ = listener.Close()
			_ = store.Close()
			return nil, fmt.Errorf("listen on http addr %s: %w", httpAddr, err)
		}
		mux := http.NewServeMux()
		connectServer = connect.NewServer(config, store, signer)
		connectServer.RegisterRoutes(mux)
		httpServer = &http.Server{Handler: mux}
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		listener:      listener,
		grpcServer:    grpcServer,
		health:        healthServer,
		store:         store,
		httpListener:  httpListener,
		httpServer:    httpServer,
		connectServer: connectServer,
	}, nil
}

// Addr returns the listener address for the identity server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves an identity server until the context ends.
func Run(ctx context.Context, port int, httpAddr string) error {
	identityServer, err := New(port, httpAddr)
	if err != nil {
		return err
	}
	return identityServer.Serve(ctx)
}

// Serve starts the identity server and blocks until it stops or the
// context ends.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	serverCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.closeStore()

	if s.connectServer != nil {
		s.connectServer.StartCleanup(serverCtx, 5*time.Minute)
	}

	log.Printf("identity server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	httpErr := make(chan error, 1)
	if s.httpServer != nil && s.httpListener != nil {
		log.Printf("identity HTTP server listening at %v", s.httpListener.Addr())
		go func() {
			httpErr <- s.httpServer.Serve(s.httpListener)
		}()
	}

	handleErr := func(err error) error {
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}

	shutdownGRPC := func() {
		if s.health != nil {
			s.health.Shutdown()
		}
		s.grpcServer.GracefulStop()
	}
	shutdownHTTP := func() {
		if s.httpServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = s.httpServer.Shutdown(shutdownCtx)
		}
	}

	select {
	case <-ctx.Done():
		shutdownGRPC()
		shutdownHTTP()
		err := <-serveErr
		return handleErr(err)
	case err := <-serveErr:
		shutdownHTTP()
		return handleErr(err)
	case err := <-httpErr:
		if err == http.ErrServerClosed {
			return nil
		}
		shutdownGRPC()
		grpcErr := <-serveErr
		if handled := handleErr(grpcErr); handled != nil {
			return handled
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}
}

func openIdentityStore() (*identitysqlite.Store, error) {
	path := strings.TrimSpace(os.Getenv("SCRIBBLE_IDENTITY_DB_PATH"))
	if path == "" {
		path = filepath.Join("data", "identity.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	store, err := identitysqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open identity sqlite store: %w", err)
	}
	return store, nil
}

func (s *Server) closeStore() {
	if s == nil {
		return
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close identity store: %v", err)
		}
	}
}

func defaultIssuer(httpAddr string) string {
	addr := strings.TrimSpace(httpAddr)
	if addr == "" {
		return ""
	}
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimRight(addr, "/")
	}
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
