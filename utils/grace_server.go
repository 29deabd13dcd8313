package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultReadTimeout     = 60 * time.Second
	DefaultWriteTimeout    = DefaultReadTimeout
	DefaultShutdownTimeout = 30 * time.Second
)

// Server wraps http.Server and drains in-flight requests on SIGINT/SIGTERM.
type Server struct {
	*http.Server

	ShutdownTimeout time.Duration
	listener        net.Listener
}

// NewServer creates a Server with timeouts and handler.
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			ReadHeaderTimeout: 10 * time.Second,
		},
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// Listen binds the configured address. Serve calls it when no listener is bound yet.
func (srv *Server) Listen() error {
	addr := srv.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("net.Listen error: %w", err)
	}
	srv.listener = ln
	return nil
}

// BoundAddr returns the bound address, useful when listening on port 0.
func (srv *Server) BoundAddr() string {
	if srv.listener == nil {
		return srv.Addr
	}
	return srv.listener.Addr().String()
}

// Serve runs until ctx is cancelled or a termination signal arrives, then shuts down gracefully.
func (srv *Server) Serve(ctx context.Context) error {
	if srv.listener == nil {
		if err := srv.Listen(); err != nil {
			return err
		}
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Server.Serve(srv.listener)
	}()
	Logger.Info("http server listening", zap.String("addr", srv.BoundAddr()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	Logger.Info("shutting down http server")
	timeout := srv.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		Logger.Error("http server shutdown error", zap.Error(err))
		return err
	}
	Logger.Info("http server shutdown success")
	return nil
}

// GraceServer starts an HTTP server that stops on ctx cancellation or SIGINT/SIGTERM.
func GraceServer(ctx context.Context, addr string, handler http.Handler) error {
	return NewServer(addr, handler, DefaultReadTimeout, DefaultWriteTimeout).Serve(ctx)
}
