package telemetry

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/oddbit-project/roadwatch/log"
	"github.com/oddbit-project/roadwatch/provider/ratelimiter"
	tlsProvider "github.com/oddbit-project/roadwatch/provider/tls"
	"github.com/oddbit-project/roadwatch/utils"
)

const (
	ErrNilConfig        = utils.Error("config is nil")
	ErrInvalidPort      = utils.Error("invalid port")
	ErrInvalidTimeout   = utils.Error("timeout must not be negative")
	ErrInvalidFrameSize = utils.Error("max frame size must be positive")
	ErrServerClosed     = utils.Error("server closed")

	DefaultPort                 = 5000
	DefaultReadTimeout          = 30
	DefaultWriteTimeout         = 10
	DefaultShutdownGraceSeconds = 10
)

type ServerConfig struct {
	Host                 string              `json:"host"`
	Port                 int                 `json:"port" default:"5000"`
	ReadTimeout          int                 `json:"readTimeout" default:"30"`  // seconds, per message
	WriteTimeout         int                 `json:"writeTimeout" default:"10"` // seconds, per message
	ShutdownGraceSeconds int                 `json:"shutdownGraceSeconds" default:"10"`
	MaxFrameBytes        int                 `json:"maxFrameBytes" default:"1048576"`
	RateLimit            *ratelimiter.Config `json:"rateLimit,omitempty"`
	tlsProvider.ServerConfig
}

func NewServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:                 DefaultPort,
		ReadTimeout:          DefaultReadTimeout,
		WriteTimeout:         DefaultWriteTimeout,
		ShutdownGraceSeconds: DefaultShutdownGraceSeconds,
		MaxFrameBytes:        DefaultMaxFrameBytes,
	}
}

func (c *ServerConfig) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.ShutdownGraceSeconds < 0 {
		return ErrInvalidTimeout
	}
	if c.MaxFrameBytes <= 0 {
		return ErrInvalidFrameSize
	}
	if c.RateLimit != nil {
		return c.RateLimit.Validate()
	}
	return nil
}

// Server accepts sensor connections over TLS and dispatches each one to the
// protocol handler on its own goroutine
type Server struct {
	config   *ServerConfig
	handler  *Handler
	limiter  *ratelimiter.RateLimiter
	logger   *log.Logger
	listener net.Listener

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

// NewServer creates a telemetry server; handler dependencies are injected by
// the caller
func NewServer(config *ServerConfig, handler *Handler, logger *log.Logger) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New("telemetry-server")
	}

	var limiter *ratelimiter.RateLimiter
	if config.RateLimit != nil {
		var err error
		if limiter, err = ratelimiter.NewRateLimiter(config.RateLimit); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:  config,
		handler: handler,
		limiter: limiter,
		logger:  logger,
		conns:   make(map[net.Conn]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start binds the listener and runs the accept loop until Shutdown; blocks
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	tlsConfig, err := s.config.TLSConfig()
	if err != nil {
		return err
	}

	var listener net.Listener
	if tlsConfig != nil {
		listener, err = tls.Listen("tcp", addr, tlsConfig)
	} else {
		listener, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = listener.Close()
		return ErrServerClosed
	}
	s.listener = listener
	s.mu.Unlock()

	if s.limiter != nil {
		s.limiter.Start()
	}

	s.logger.Info("telemetry server listening", map[string]interface{}{
		"addr": addr,
		"tls":  tlsConfig != nil,
	})

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error(err, "accept failed", nil)
			continue
		}

		if s.limiter != nil && !s.limiter.Allow(remoteHost(conn)) {
			s.logger.Warn("connection rejected by rate limit", map[string]interface{}{
				"remoteAddr": conn.RemoteAddr().String(),
			})
			_ = conn.Close()
			continue
		}

		s.track(conn)
		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			defer s.untrack(c)
			s.handler.Handle(s.ctx, c)
		}(conn)
	}
}

// Shutdown stops accepting connections and waits for active ones to drain
// within the grace period; remaining connections are then closed forcibly
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	listener := s.listener
	s.mu.Unlock()

	s.cancel()
	if listener != nil {
		_ = listener.Close()
	}
	if s.limiter != nil {
		s.limiter.Shutdown()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	grace := time.Duration(s.config.ShutdownGraceSeconds) * time.Second
	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	// force-close what is left
	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActiveConnections returns the number of currently tracked connections
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// remoteHost extracts the host part of the connection's remote address for
// rate limiting
func remoteHost(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}
