package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies audit trail entries
type EventType string

const (
	EventAuthSuccess   EventType = "auth_success"
	EventAuthFailure   EventType = "auth_failure"
	EventAuthLockout   EventType = "auth_lockout"
	EventProtocolError EventType = "protocol_error"
	EventConnOpened    EventType = "conn_opened"
	EventConnClosed    EventType = "conn_closed"
)

// Event is a single audit trail record. Detail never carries credentials or
// raw payloads.
type Event struct {
	ID         string    `db:"id" json:"id"`
	Type       EventType `db:"event_type" json:"event_type"`
	ClientID   string    `db:"client_id" json:"client_id"`
	RemoteAddr string    `db:"remote_addr" json:"remote_addr"`
	Detail     string    `db:"detail" json:"detail"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// NewEvent creates an audit event with a fresh id and timestamp
func NewEvent(eventType EventType, clientID, remoteAddr, detail string) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		ClientID:   clientID,
		RemoteAddr: remoteAddr,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}
}

// Recorder accepts audit events; implementations must never block the caller
type Recorder interface {
	Record(ev Event)
}

// NopRecorder discards all events
type NopRecorder struct{}

func (NopRecorder) Record(Event) {}
