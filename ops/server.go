package ops

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oddbit-project/roadwatch/log"
	"github.com/oddbit-project/roadwatch/log/writer"
	tlsProvider "github.com/oddbit-project/roadwatch/provider/tls"
	"github.com/oddbit-project/roadwatch/utils"
)

const (
	ErrNilConfig = utils.Error("config is nil")

	ServerDefaultPort         = 8080
	ServerDefaultReadTimeout  = 30
	ServerDefaultWriteTimeout = 30
)

type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port" default:"8080"`
	ReadTimeout  int    `json:"readTimeout" default:"30"`
	WriteTimeout int    `json:"writeTimeout" default:"30"`
	Debug        bool   `json:"debug"`
	tlsProvider.ServerConfig
}

func NewServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:         ServerDefaultPort,
		ReadTimeout:  ServerDefaultReadTimeout,
		WriteTimeout: ServerDefaultWriteTimeout,
	}
}

func (c *ServerConfig) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	return nil
}

// Server is the read-only operations API: health, active sessions and audit
// history. It never mutates sensor state.
type Server struct {
	Config *ServerConfig
	Router *gin.Engine
	Server *http.Server
	logger *log.Logger
}

// NewRouter creates a gin router with structured request logging
func NewRouter(logger *log.Logger, debug bool) *gin.Engine {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(requestLogger(logger))
	router.Use(gin.Recovery())
	return router
}

// NewServer creates the ops API server; routes are registered separately via
// RegisterRoutes
func NewServer(cfg *ServerConfig, logger *log.Logger) (*Server, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New("ops-api")
	}

	tlsConfig, err := cfg.TLSConfig()
	if err != nil {
		return nil, err
	}
	router := NewRouter(logger, cfg.Debug)
	return &Server{
		Config: cfg,
		Router: router,
		logger: logger,
		Server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      router,
			ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
			TLSConfig:    tlsConfig,
			ErrorLog:     writer.NewErrorLog(logger),
		},
	}, nil
}

// Start runs the server; returns nil on clean shutdown
func (s *Server) Start() error {
	var err error
	if s.Server.TLSConfig == nil {
		err = s.Server.ListenAndServe()
	} else {
		err = s.Server.ListenAndServeTLS("", "")
	}
	// when Shutdown() is called, the return error is http.ErrServerClosed
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Server.Shutdown(ctx)
}

// requestLogger logs each request with method, path, status and latency
func requestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request", map[string]interface{}{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		})
	}
}
