package session

import "time"

// SignalState is the reported state of the traffic signal for a sensor site
type SignalState string

const (
	SignalRed     SignalState = "RED"
	SignalYellow  SignalState = "YELLOW"
	SignalGreen   SignalState = "GREEN"
	SignalUnknown SignalState = "UNKNOWN"
)

// TrafficState is the last known traffic situation at one sensor site.
// It is created on the first successful telemetry update and mutated through
// Store.UpdateState afterwards.
type TrafficState struct {
	SignalState      SignalState `json:"signal_state"`
	CongestionLevel  float64     `json:"congestion_level"`
	EmergencyPresent bool        `json:"emergency_present"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// NewTrafficState returns the initial state for a sensor that has not yet
// reported telemetry
func NewTrafficState() *TrafficState {
	return &TrafficState{
		SignalState: SignalUnknown,
	}
}

// SessionInfo is a read-only snapshot of one active session, as exposed by
// the ops API
type SessionInfo struct {
	ClientID  string       `json:"client_id"`
	IssuedAt  time.Time    `json:"issued_at"`
	LastSeen  time.Time    `json:"last_seen"`
	State     TrafficState `json:"state"`
	HasState  bool         `json:"has_state"`
}
