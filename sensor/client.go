package sensor

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/oddbit-project/roadwatch/crypt/secure"
	"github.com/oddbit-project/roadwatch/log"
	tlsProvider "github.com/oddbit-project/roadwatch/provider/tls"
	"github.com/oddbit-project/roadwatch/telemetry"
	"github.com/oddbit-project/roadwatch/utils"
)

const (
	ErrNilConfig     = utils.Error("config is nil")
	ErrEmptyClientID = utils.Error("client id is empty")
	ErrInvalidPort   = utils.Error("invalid port")
	ErrAuthFailed    = utils.Error("authentication failed")
	ErrNotConnected  = utils.Error("client is not connected")

	DefaultPort           = 5000
	DefaultConnectTimeout = 10
	DefaultReadTimeout    = 30
	DefaultWriteTimeout   = 10
)

type Config struct {
	Host           string `json:"host" default:"localhost"`
	Port           int    `json:"port" default:"5000"`
	ClientID       string `json:"clientId"`
	ConnectTimeout int    `json:"connectTimeout" default:"10"`
	ReadTimeout    int    `json:"readTimeout" default:"30"`
	WriteTimeout   int    `json:"writeTimeout" default:"10"`
	MaxFrameBytes  int    `json:"maxFrameBytes" default:"1048576"`
	secure.DefaultCredentialConfig
	TLS tlsProvider.ClientConfig `json:"tls"`
}

func NewConfig() *Config {
	return &Config{
		Host:           "localhost",
		Port:           DefaultPort,
		ConnectTimeout: DefaultConnectTimeout,
		ReadTimeout:    DefaultReadTimeout,
		WriteTimeout:   DefaultWriteTimeout,
		MaxFrameBytes:  telemetry.DefaultMaxFrameBytes,
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.ClientID == "" {
		return ErrEmptyClientID
	}
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidPort
	}
	return nil
}

// Client is a roadside sensor endpoint: it authenticates once per connection
// and then streams telemetry built from captured frames
type Client struct {
	config    *Config
	detector  Detector
	logger    *log.Logger
	conn      net.Conn
	token     string
	prevFrame *Frame
}

// NewClient creates a sensor client; a nil detector reports no detections
func NewClient(config *Config, detector Detector, logger *log.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if detector == nil {
		detector = NullDetector{}
	}
	if logger == nil {
		logger = log.New("sensor-client")
	}
	return &Client{
		config:   config,
		detector: detector,
		logger:   logger,
	}, nil
}

// Connect dials the server and performs the authentication exchange; on
// success the session token is retained for subsequent telemetry
func (c *Client) Connect() error {
	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)

	tlsConfig, err := c.config.TLS.TLSConfig()
	if err != nil {
		return err
	}

	dialer := &net.Dialer{Timeout: time.Duration(c.config.ConnectTimeout) * time.Second}
	var conn net.Conn
	if c.config.TLS.TLSEnable {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
	} else {
		conn, err = dialer.Dial("tcp", addr)
	}
	if err != nil {
		return err
	}

	credential, err := c.config.Fetch()
	if err != nil {
		_ = conn.Close()
		return err
	}

	authPayload := []byte(c.config.ClientID + ":" + credential)
	if err = c.write(conn, authPayload); err != nil {
		_ = conn.Close()
		return err
	}

	reply, err := c.read(conn)
	if err != nil {
		_ = conn.Close()
		return err
	}
	if string(reply) == telemetry.AuthFailedResponse {
		_ = conn.Close()
		return ErrAuthFailed
	}

	c.conn = conn
	c.token = string(reply)
	c.logger.Info("connected", map[string]interface{}{
		"addr":     addr,
		"clientID": c.config.ClientID,
	})
	return nil
}

// unixSeconds is the wall clock as fractional seconds since the epoch, the
// unit carried by the telemetry timestamp fields
func unixSeconds() float64 {
	return float64(time.Now().UnixMilli()) / 1000
}

// SendFrame runs detection on the frame and sends one telemetry message; the
// response carries the server's view of the signal state. Detector failures
// degrade to an empty detection set.
func (c *Client) SendFrame(frame *Frame) (*telemetry.TelemetryResponse, error) {
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	if err := frame.Validate(); err != nil {
		return nil, err
	}

	detections, err := c.detector.Detect(frame)
	if err != nil {
		c.logger.Warn("detector failed, reporting empty detections", map[string]interface{}{
			"error": err.Error(),
		})
		detections = nil
	}

	now := unixSeconds()
	req := telemetry.TelemetryRequest{
		Timestamp: now,
		ClientID:  c.config.ClientID,
		Token:     c.token,
		FrameData: &telemetry.FrameMetrics{
			Brightness: frame.Brightness(),
			Contrast:   frame.Contrast(),
			Motion:     frame.Motion(c.prevFrame),
			Timestamp:  now,
		},
		Detections:  detections,
		FrameWidth:  frame.Width,
		FrameHeight: frame.Height,
	}
	c.prevFrame = frame

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if err = c.write(c.conn, payload); err != nil {
		return nil, err
	}

	raw, err := c.read(c.conn)
	if err != nil {
		return nil, err
	}
	var resp telemetry.TelemetryResponse
	if err = json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Token returns the current session token
func (c *Client) Token() string {
	return c.token
}

// Close closes the connection
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.token = ""
	return err
}

func (c *Client) write(conn net.Conn, payload []byte) error {
	if c.config.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(time.Duration(c.config.WriteTimeout) * time.Second)); err != nil {
			return err
		}
	}
	return telemetry.WriteFrame(conn, payload)
}

func (c *Client) read(conn net.Conn) ([]byte, error) {
	if c.config.ReadTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(time.Duration(c.config.ReadTimeout) * time.Second)); err != nil {
			return nil, err
		}
	}
	return telemetry.ReadFrame(conn, c.config.MaxFrameBytes)
}
