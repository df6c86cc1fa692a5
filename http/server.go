package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("http: server closed")

// Server ties the acceptor, worker pool and router together. Configure the
// exported fields before calling Serve; the zero values fall back to the
// package defaults.
type Server struct {
	Name   string
	Router Router
	Logger *slog.Logger

	// Workers is the fixed worker pool size; ConnQueueSize bounds the
	// handoff queue between the acceptor and the pool. Connections beyond
	// both get an immediate 503.
	Workers       int
	ConnQueueSize int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	MaxHeaderBytes int
	MaxBodyBytes   int

	handler     Handler
	handlerOnce sync.Once
	baseCtx     context.Context
	pool        *workerPool
	inShutdown  atomic.Bool

	mu       sync.Mutex
	listener net.Listener
}

func NewServer(name string) *Server {
	return &Server{
		Name:           name,
		Router:         NewRouter(),
		Workers:        DefaultWorkerPoolSize,
		ConnQueueSize:  DefaultConnQueueSize,
		ReadTimeout:    DefaultReadTimeout,
		WriteTimeout:   DefaultWriteTimeout,
		IdleTimeout:    DefaultIdleTimeout,
		MaxHeaderBytes: DefaultMaxHeaderBytes,
		MaxBodyBytes:   DefaultMaxBodyBytes,
	}
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Server) workerCount() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return DefaultWorkerPoolSize
}

func (s *Server) connQueueSize() int {
	if s.ConnQueueSize > 0 {
		return s.ConnQueueSize
	}
	return DefaultConnQueueSize
}

func (s *Server) readTimeout() time.Duration {
	if s.ReadTimeout > 0 {
		return s.ReadTimeout
	}
	return DefaultReadTimeout
}

func (s *Server) writeTimeout() time.Duration {
	if s.WriteTimeout > 0 {
		return s.WriteTimeout
	}
	return DefaultWriteTimeout
}

func (s *Server) idleTimeout() time.Duration {
	if s.IdleTimeout > 0 {
		return s.IdleTimeout
	}
	return DefaultIdleTimeout
}

func (s *Server) baseContext() context.Context {
	if s.baseCtx != nil {
		return s.baseCtx
	}
	return context.Background()
}

func (s *Server) shuttingDown() bool {
	return s.inShutdown.Load()
}

// initHandler folds the route table into the dispatch handler. Routes
// registered after serving starts are not picked up; the table is read-only
// from here on.
func (s *Server) initHandler() {
	s.handlerOnce.Do(func() {
		s.handler = s.Router.Handler()
	})
}

// ListenAndServe binds addr and serves until ctx is cancelled or Shutdown
// is called.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.baseCtx = ctx

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.writeTimeout())
		defer cancel()
		s.Shutdown(shutdownCtx)
	}()

	return s.Serve(listener)
}

// Serve runs the accept loop: every accepted connection is handed to the
// worker pool, or rejected with a 503 when the pool and its queue are full.
// Per-connection failures never stop the loop.
func (s *Server) Serve(listener net.Listener) error {
	s.initHandler()

	s.mu.Lock()
	s.listener = listener
	pool := newWorkerPool(s)
	s.pool = pool
	s.mu.Unlock()

	pool.start()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.shuttingDown() || errors.Is(err, net.ErrClosed) {
				return ErrServerClosed
			}
			s.logger().Warn("accept failed", "error", err)
			continue
		}
		if !pool.dispatch(conn) {
			s.logger().Warn("worker pool saturated, rejecting connection", "remote", conn.RemoteAddr())
			rejectOverloaded(conn, s.writeTimeout())
		}
	}
}

// ServeConn drives a single connection outside the pool. Useful for tests
// and for embedders that bring their own listener loop.
func (s *Server) ServeConn(conn net.Conn) {
	s.initHandler()

	ctx := newRequestCtx()
	s.serveConn(ctx, conn)
}

// Shutdown stops accepting, lets workers finish their in-flight request
// (keep-alive reuse is refused from now on) and waits for the pool to drain,
// bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.inShutdown.Swap(true) {
		return nil
	}

	s.mu.Lock()
	listener := s.listener
	pool := s.pool
	s.mu.Unlock()

	if listener != nil {
		listener.Close()
	}
	if pool == nil {
		return nil
	}

	drained := make(chan struct{})
	go func() {
		pool.stop()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
