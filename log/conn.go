package log

import "context"

// Connection logging context keys
const (
	ConnRemoteAddrKey = "remote_addr"
	ConnSensorIDKey   = "sensor_id"
	ConnStateKey      = "conn_state"
)

// NewConnLogger creates a logger for a single sensor connection; the trace ID
// correlates every record emitted during the connection's lifetime
func NewConnLogger(ctx context.Context, remoteAddr string) *Logger {
	logger := FromContext(ctx)
	if logger == nil {
		logger = New("telemetry")
	}

	return logger.
		WithTraceID(NewTraceID()).
		WithField(ConnRemoteAddrKey, remoteAddr)
}

// ConnFields builds standard connection log fields; the credential is never
// part of these
func ConnFields(sensorID, state string) ContextFields {
	return ContextFields{
		ConnSensorIDKey: sensorID,
		ConnStateKey:    state,
	}
}
