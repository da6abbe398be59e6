package telemetry

import (
	"strings"

	"github.com/oddbit-project/roadwatch/scoring"
	"github.com/oddbit-project/roadwatch/session"
	"github.com/oddbit-project/roadwatch/utils"
)

const (
	ErrMalformedAuth = utils.Error("malformed auth request")

	// AuthFailedResponse is the literal sent to the sensor on any
	// authentication failure; lockout and bad credentials are not
	// distinguishable on the wire
	AuthFailedResponse = "Authentication failed"
)

// FrameMetrics carries simple per-frame image statistics computed by the
// sensor
type FrameMetrics struct {
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
	Motion     float64 `json:"motion"`
	Timestamp  float64 `json:"timestamp"`
}

// TelemetryRequest is one telemetry message from an authenticated sensor.
// SignalState is optional: roadside units colocated with a signal controller
// report the observed state, camera-only units leave it empty.
type TelemetryRequest struct {
	Timestamp   float64             `json:"timestamp"`
	ClientID    string              `json:"client_id"`
	Token       string              `json:"token"`
	SignalState string              `json:"signal_state,omitempty"`
	FrameData   *FrameMetrics       `json:"frame_data,omitempty"`
	Detections  []scoring.Detection `json:"detections"`
	FrameWidth  int                 `json:"frame_width"`
	FrameHeight int                 `json:"frame_height"`
}

// TelemetryResponse is the reply for one telemetry message
type TelemetryResponse struct {
	Timestamp       string              `json:"timestamp"`
	SignalState     session.SignalState `json:"signal_state"`
	CongestionLevel float64             `json:"congestion_level"`
	Token           string              `json:"token"`
}

// parseAuthRequest splits an auth payload into client id and credential; the
// credential may itself contain ':'
func parseAuthRequest(payload []byte) (clientID, credential string, err error) {
	parts := strings.SplitN(string(payload), ":", 2)
	if len(parts) != 2 {
		return "", "", ErrMalformedAuth
	}
	return parts[0], parts[1], nil
}

// parseSignalState validates a reported signal state; anything unknown maps
// to the zero value
func parseSignalState(s string) (session.SignalState, bool) {
	switch state := session.SignalState(s); state {
	case session.SignalRed, session.SignalYellow, session.SignalGreen, session.SignalUnknown:
		return state, true
	}
	return "", false
}

// responseSignal is the signal state reported back to the sensor; a present
// emergency vehicle forces GREEN to clear the intersection, otherwise the
// last known state is echoed (UNKNOWN until a sensor reports one)
func responseSignal(stored session.SignalState, emergencyPresent bool) session.SignalState {
	if emergencyPresent {
		return session.SignalGreen
	}
	if stored == "" {
		return session.SignalUnknown
	}
	return stored
}
