package telemetry

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net"
	"time"

	"github.com/oddbit-project/roadwatch/audit"
	"github.com/oddbit-project/roadwatch/auth"
	"github.com/oddbit-project/roadwatch/log"
	"github.com/oddbit-project/roadwatch/provider/metrics"
	"github.com/oddbit-project/roadwatch/scoring"
	"github.com/oddbit-project/roadwatch/session"
	"github.com/oddbit-project/roadwatch/utils"
)

const (
	ErrTokenMismatch    = utils.Error("token mismatch")
	ErrClientIDMismatch = utils.Error("client id mismatch")
)

// connection lifecycle states, for logging
const (
	StateConnected      = "CONNECTED"
	StateAuthenticating = "AUTHENTICATING"
	StateAuthenticated  = "AUTHENTICATED"
	StateTelemetryLoop  = "TELEMETRY_LOOP"
	StateClosed         = "CLOSED"
)

// Handler runs the per-connection protocol: a single authentication exchange
// followed by a telemetry loop. Any protocol violation closes the connection;
// it never affects other connections or recorded state.
type Handler struct {
	gate       *auth.Gate
	sessions   *session.Store
	recorder   audit.Recorder
	collectors *metrics.Collectors
	config     *ServerConfig
	logger     *log.Logger
}

// NewHandler creates a connection handler
func NewHandler(config *ServerConfig, gate *auth.Gate, sessions *session.Store, recorder audit.Recorder, collectors *metrics.Collectors, logger *log.Logger) *Handler {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	if logger == nil {
		logger = log.New("telemetry-handler")
	}
	return &Handler{
		gate:       gate,
		sessions:   sessions,
		recorder:   recorder,
		collectors: collectors,
		config:     config,
		logger:     logger,
	}
}

// Handle drives one connection from accept to close. The context is the
// server lifecycle context; cancellation is observed between messages via
// the read deadline.
func (h *Handler) Handle(ctx context.Context, conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()
	ctx = h.logger.WithContext(ctx)
	logger := log.NewConnLogger(ctx, remoteAddr)

	if h.collectors != nil {
		h.collectors.ActiveConnections.Inc()
	}
	defer func() {
		_ = conn.Close()
		if h.collectors != nil {
			h.collectors.ActiveConnections.Dec()
		}
		logger.Debug("connection closed", log.ConnFields("", StateClosed))
	}()

	logger.Debug("connection accepted", log.ConnFields("", StateConnected))
	h.recorder.Record(audit.NewEvent(audit.EventConnOpened, "", remoteAddr, ""))

	clientID, ok := h.authenticate(conn, remoteAddr, logger)
	if !ok {
		return
	}

	logger = logger.WithField(log.ConnSensorIDKey, clientID)
	logger.Info("sensor authenticated", log.ConnFields(clientID, StateAuthenticated))

	h.telemetryLoop(ctx, conn, clientID, remoteAddr, logger)
	h.recorder.Record(audit.NewEvent(audit.EventConnClosed, clientID, remoteAddr, ""))
}

// authenticate performs the single auth exchange; on any failure the literal
// failure response is written and false returned
func (h *Handler) authenticate(conn net.Conn, remoteAddr string, logger *log.Logger) (string, bool) {
	logger.Debug("awaiting credentials", log.ConnFields("", StateAuthenticating))

	payload, err := h.readMessage(conn)
	if err != nil {
		h.protocolError(logger, "", remoteAddr, "auth read failed", err)
		return "", false
	}

	clientID, credential, err := parseAuthRequest(payload)
	if err != nil {
		h.protocolError(logger, "", remoteAddr, "malformed auth request", err)
		h.writeAuthFailure(conn, logger)
		return "", false
	}

	token, err := h.gate.Authenticate(clientID, credential, remoteAddr)
	if err != nil {
		if h.collectors != nil {
			h.collectors.AuthAttempts.WithLabelValues("failure").Inc()
		}
		// lockout and bad credentials look identical on the wire
		h.writeAuthFailure(conn, logger)
		return "", false
	}

	if h.collectors != nil {
		h.collectors.AuthAttempts.WithLabelValues("success").Inc()
	}
	if err = h.writeMessage(conn, []byte(token)); err != nil {
		logger.Error(err, "failed to send session token", nil)
		return "", false
	}
	return clientID, true
}

// telemetryLoop processes telemetry messages until the sensor disconnects,
// the deadline expires or a protocol violation occurs
func (h *Handler) telemetryLoop(ctx context.Context, conn net.Conn, clientID, remoteAddr string, logger *log.Logger) {
	logger.Debug("entering telemetry loop", log.ConnFields(clientID, StateTelemetryLoop))

	for {
		if ctx.Err() != nil {
			return
		}

		payload, err := h.readMessage(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("telemetry read ended", map[string]interface{}{"error": err.Error()})
			}
			return
		}

		var req TelemetryRequest
		if err = json.Unmarshal(payload, &req); err != nil {
			h.protocolError(logger, clientID, remoteAddr, "malformed telemetry payload", err)
			return
		}

		if err = h.verifySession(clientID, &req); err != nil {
			h.protocolError(logger, clientID, remoteAddr, "session verification failed", err)
			return
		}

		resp := h.process(clientID, &req)
		if h.collectors != nil {
			h.collectors.FramesTotal.Inc()
		}

		out, err := json.Marshal(resp)
		if err != nil {
			logger.Error(err, "failed to encode telemetry response", nil)
			return
		}
		if err = h.writeMessage(conn, out); err != nil {
			logger.Debug("telemetry write ended", map[string]interface{}{"error": err.Error()})
			return
		}
	}
}

// verifySession checks that the message carries the identity that
// authenticated on this connection and its current session token
func (h *Handler) verifySession(clientID string, req *TelemetryRequest) error {
	if req.ClientID != clientID {
		return ErrClientIDMismatch
	}
	token, err := h.sessions.GetToken(clientID)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(req.Token)) != 1 {
		return ErrTokenMismatch
	}
	return nil
}

// process scores the frame, updates the stored traffic state atomically and
// builds the response from the updated state
func (h *Handler) process(clientID string, req *TelemetryRequest) TelemetryResponse {
	result := scoring.Score(req.Detections, req.FrameWidth, req.FrameHeight)

	reported, hasSignal := parseSignalState(req.SignalState)

	var updated session.TrafficState
	err := h.sessions.UpdateState(clientID, func(st *session.TrafficState) {
		st.CongestionLevel = result.CongestionLevel
		st.EmergencyPresent = result.EmergencyPresent
		if hasSignal {
			st.SignalState = reported
		}
		updated = *st
	})
	if err != nil {
		// session evicted mid-loop; answer from the computed result
		updated.CongestionLevel = result.CongestionLevel
		updated.SignalState = session.SignalUnknown
	}

	if h.collectors != nil {
		h.collectors.CongestionLevel.WithLabelValues(clientID).Set(result.CongestionLevel)
		active := 0.0
		if result.EmergencyPresent {
			active = 1.0
		}
		h.collectors.EmergencyActive.WithLabelValues(clientID).Set(active)
	}

	token, _ := h.sessions.GetToken(clientID)
	return TelemetryResponse{
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		SignalState:     responseSignal(updated.SignalState, result.EmergencyPresent),
		CongestionLevel: updated.CongestionLevel,
		Token:           token,
	}
}

// readMessage reads one frame with a fresh read deadline
func (h *Handler) readMessage(conn net.Conn) ([]byte, error) {
	if h.config.ReadTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(time.Duration(h.config.ReadTimeout) * time.Second)); err != nil {
			return nil, err
		}
	}
	return ReadFrame(conn, h.config.MaxFrameBytes)
}

// writeMessage writes one frame with a fresh write deadline
func (h *Handler) writeMessage(conn net.Conn, payload []byte) error {
	if h.config.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(time.Duration(h.config.WriteTimeout) * time.Second)); err != nil {
			return err
		}
	}
	return WriteFrame(conn, payload)
}

func (h *Handler) writeAuthFailure(conn net.Conn, logger *log.Logger) {
	if err := h.writeMessage(conn, []byte(AuthFailedResponse)); err != nil {
		logger.Debug("failed to send auth failure", map[string]interface{}{"error": err.Error()})
	}
}

func (h *Handler) protocolError(logger *log.Logger, clientID, remoteAddr, detail string, err error) {
	if h.collectors != nil {
		h.collectors.ProtocolErrors.Inc()
	}
	logger.Warn(detail, map[string]interface{}{"error": err.Error()})
	h.recorder.Record(audit.NewEvent(audit.EventProtocolError, clientID, remoteAddr, detail))
}
