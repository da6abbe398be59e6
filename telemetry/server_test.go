package telemetry

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/oddbit-project/roadwatch/audit"
	"github.com/oddbit-project/roadwatch/auth"
	"github.com/oddbit-project/roadwatch/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*ServerConfig)
		expectedErr error
	}{
		{"valid defaults", func(*ServerConfig) {}, nil},
		{"port too low", func(c *ServerConfig) { c.Port = 0 }, ErrInvalidPort},
		{"port too high", func(c *ServerConfig) { c.Port = 70000 }, ErrInvalidPort},
		{"negative read timeout", func(c *ServerConfig) { c.ReadTimeout = -1 }, ErrInvalidTimeout},
		{"zero max frame", func(c *ServerConfig) { c.MaxFrameBytes = 0 }, ErrInvalidFrameSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewServerConfig()
			tt.mutate(config)
			if tt.expectedErr == nil {
				assert.NoError(t, config.Validate())
			} else {
				assert.ErrorIs(t, config.Validate(), tt.expectedErr)
			}
		})
	}

	t.Run("nil config", func(t *testing.T) {
		var config *ServerConfig
		assert.ErrorIs(t, config.Validate(), ErrNilConfig)
	})
}

func freePort(t *testing.T) int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func startTestServer(t *testing.T) (*Server, *session.Store, string) {
	sessions, err := session.NewStore(nil, nil)
	require.NoError(t, err)
	t.Cleanup(sessions.Close)

	registry := auth.NewRegistry()
	require.NoError(t, registry.AddSensor("sensor-1", "secret"))
	gate, err := auth.NewGate(auth.NewConfig(), registry, sessions, audit.NopRecorder{}, nil)
	require.NoError(t, err)

	config := NewServerConfig()
	config.Host = "127.0.0.1"
	config.Port = freePort(t)
	config.ReadTimeout = 5
	config.WriteTimeout = 5
	config.ShutdownGraceSeconds = 1

	handler := NewHandler(config, gate, sessions, nil, nil, nil)
	server, err := NewServer(config, handler, nil)
	require.NoError(t, err)

	go func() {
		_ = server.Start()
	}()

	addr := fmt.Sprintf("127.0.0.1:%d", config.Port)
	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 5*time.Second, 50*time.Millisecond)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	})
	return server, sessions, addr
}

func TestServer_EndToEnd(t *testing.T) {
	_, sessions, addr := startTestServer(t)

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, WriteFrame(conn, []byte("sensor-1:secret")))
	reply, err := ReadFrame(conn, DefaultMaxFrameBytes)
	require.NoError(t, err)
	require.NotEqual(t, AuthFailedResponse, string(reply))

	token, err := sessions.GetToken("sensor-1")
	require.NoError(t, err)
	assert.Equal(t, token, string(reply))
}

func TestServer_ConnectionIsolation(t *testing.T) {
	_, _, addr := startTestServer(t)

	// a connection that violates the protocol is dropped
	bad, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer bad.Close()
	require.NoError(t, bad.SetDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, WriteFrame(bad, []byte("garbage-no-separator")))
	reply, err := ReadFrame(bad, DefaultMaxFrameBytes)
	require.NoError(t, err)
	assert.Equal(t, AuthFailedResponse, string(reply))

	// other connections are unaffected
	good, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer good.Close()
	require.NoError(t, good.SetDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, WriteFrame(good, []byte("sensor-1:secret")))
	reply, err = ReadFrame(good, DefaultMaxFrameBytes)
	require.NoError(t, err)
	assert.NotEqual(t, AuthFailedResponse, string(reply))
}

func TestServer_Shutdown(t *testing.T) {
	server, _, addr := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))

	// listener no longer accepts
	_, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
	assert.Error(t, err)

	// shutdown is idempotent
	assert.NoError(t, server.Shutdown(ctx))
}
