package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tlsProvider "github.com/oddbit-project/roadwatch/provider/tls"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	DefaultReadTimeout  = 600
	DefaultWriteTimeout = 600
	DefaultHost         = "localhost"
	DefaultPort         = 2201
	DefaultEndpoint     = "/metrics"
)

type Config struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	Endpoint     string `json:"endpoint"`
	ReadTimeout  int    `json:"readTimeout"`
	WriteTimeout int    `json:"writeTimeout"`
	tlsProvider.ServerConfig
}

type Server struct {
	server *http.Server
}

func NewConfig() *Config {
	return &Config{
		Host:         DefaultHost,
		Port:         DefaultPort,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		Endpoint:     DefaultEndpoint,
	}
}

func (c *Config) Validate() error {
	return nil
}

func (c *Config) NewServer() (*Server, error) {
	return NewCustomServer(c, prometheus.DefaultGatherer, promhttp.HandlerOpts{})
}

func NewServer(cfg *Config) (*Server, error) {
	return cfg.NewServer()
}

// NewCustomServer creates a metrics endpoint server for the given gatherer
// and handler options, with optional TLS from the embedded server config
func NewCustomServer(cfg *Config, gatherer prometheus.Gatherer, opts promhttp.HandlerOpts) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tlsConfig, err := cfg.TLSConfig()
	if err != nil {
		return nil, err
	}
	router := http.NewServeMux()
	router.Handle(cfg.Endpoint, promhttp.HandlerFor(gatherer, opts))
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		TLSConfig:    tlsConfig,
	}

	return &Server{server: server}, nil
}

// Start listens for incoming connections; returns nil on clean shutdown
func (s *Server) Start() error {
	var err error
	if s.server.TLSConfig == nil {
		err = s.server.ListenAndServe()
	} else {
		err = s.server.ListenAndServeTLS("", "")
	}
	// when Shutdown() is called, the return error is http.ErrServerClosed
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
