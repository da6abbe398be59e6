package session

import (
	"sync"
	"time"

	"github.com/oddbit-project/roadwatch/log"
	"github.com/oddbit-project/roadwatch/utils"
)

const (
	ErrNotFound       = utils.Error("session not found")
	ErrNoState        = utils.Error("no traffic state recorded")
	ErrNilConfig      = utils.Error("config is nil")
	ErrInvalidTimeout = utils.Error("idle timeout must be positive")
	ErrInvalidCleanup = utils.Error("cleanup interval must be positive")
)

type Config struct {
	IdleTimeoutSeconds     int `json:"idleTimeoutSeconds" default:"900"`
	CleanupIntervalSeconds int `json:"cleanupIntervalSeconds" default:"60"`
}

func NewConfig() *Config {
	return &Config{
		IdleTimeoutSeconds:     900,
		CleanupIntervalSeconds: 60,
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.IdleTimeoutSeconds <= 0 {
		return ErrInvalidTimeout
	}
	if c.CleanupIntervalSeconds <= 0 {
		return ErrInvalidCleanup
	}
	return nil
}

// one session per client identity
type entry struct {
	token    string
	issuedAt time.Time
	lastSeen time.Time
	state    *TrafficState
}

// Store is a thread-safe map of client identity to session token and traffic
// state. A single lock guards the whole table; entries are evicted after the
// configured idle timeout by a background cleanup goroutine.
type Store struct {
	mu             sync.RWMutex
	sessions       map[string]*entry
	config         *Config
	logger         *log.Logger
	stopCleanup    chan struct{}
	cleanupTicker  *time.Ticker
	cleanupMutex   sync.Mutex
	cleanupRunning bool
	now            func() time.Time
}

// NewStore creates a session store
func NewStore(config *Config, logger *log.Logger) (*Store, error) {
	if config == nil {
		config = NewConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New("session-store")
	}

	return &Store{
		sessions:    make(map[string]*entry),
		config:      config,
		logger:      logger,
		stopCleanup: make(chan struct{}),
		now:         time.Now,
	}, nil
}

// PutToken stores the session token for a client identity, replacing any
// previous token; the superseded token is no longer valid
func (s *Store) PutToken(clientID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.sessions[clientID]
	if !ok {
		e = &entry{}
		s.sessions[clientID] = e
	}
	e.token = token
	e.issuedAt = now
	e.lastSeen = now
}

// GetToken returns the current session token for a client identity, or
// ErrNotFound if the identity has no active session
func (s *Store) GetToken(clientID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[clientID]
	if !ok || e.token == "" {
		return "", ErrNotFound
	}
	return e.token, nil
}

// GetState returns a copy of the client's traffic state. ErrNotFound is
// returned for unknown identities, ErrNoState when the session exists but no
// telemetry update has happened yet; this keeps "never seen" distinguishable
// from "seen, zero congestion".
func (s *Store) GetState(clientID string) (TrafficState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[clientID]
	if !ok {
		return TrafficState{}, ErrNotFound
	}
	if e.state == nil {
		return TrafficState{}, ErrNoState
	}
	return *e.state, nil
}

// UpdateState applies fn to the client's traffic state under the store lock;
// read-modify-write is atomic with respect to concurrent updates for the
// same identity. The state is created on first update. Returns ErrNotFound
// if the client has no active session.
func (s *Store) UpdateState(clientID string, fn func(*TrafficState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[clientID]
	if !ok {
		return ErrNotFound
	}
	if e.state == nil {
		e.state = NewTrafficState()
	}
	fn(e.state)
	e.state.UpdatedAt = s.now()
	e.lastSeen = e.state.UpdatedAt
	return nil
}

// Evict removes the session and state for a client identity
func (s *Store) Evict(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, clientID)
}

// ActiveSessions returns a snapshot of all live sessions
func (s *Store) ActiveSessions() []SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]SessionInfo, 0, len(s.sessions))
	for clientID, e := range s.sessions {
		info := SessionInfo{
			ClientID: clientID,
			IssuedAt: e.issuedAt,
			LastSeen: e.lastSeen,
		}
		if e.state != nil {
			info.State = *e.state
			info.HasState = true
		}
		result = append(result, info)
	}
	return result
}

// Info returns the session snapshot for a single client identity
func (s *Store) Info(clientID string) (SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[clientID]
	if !ok {
		return SessionInfo{}, ErrNotFound
	}
	info := SessionInfo{
		ClientID: clientID,
		IssuedAt: e.issuedAt,
		LastSeen: e.lastSeen,
	}
	if e.state != nil {
		info.State = *e.state
		info.HasState = true
	}
	return info, nil
}

// Prune removes sessions idle beyond the configured timeout; returns the
// number of evicted sessions
func (s *Store) Prune() int {
	idle := time.Duration(s.config.IdleTimeoutSeconds) * time.Second
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for clientID, e := range s.sessions {
		if now.Sub(e.lastSeen) > idle {
			delete(s.sessions, clientID)
			evicted++
		}
	}
	return evicted
}

// StartCleanup starts the background eviction goroutine
func (s *Store) StartCleanup() {
	s.cleanupMutex.Lock()
	defer s.cleanupMutex.Unlock()

	if s.cleanupRunning {
		return
	}

	s.cleanupTicker = time.NewTicker(time.Duration(s.config.CleanupIntervalSeconds) * time.Second)
	s.cleanupRunning = true

	go func() {
		for {
			select {
			case <-s.cleanupTicker.C:
				if evicted := s.Prune(); evicted > 0 {
					s.logger.Debug("evicted idle sessions", map[string]interface{}{
						"count": evicted,
					})
				}

			case <-s.stopCleanup:
				s.cleanupTicker.Stop()
				return
			}
		}
	}()
}

// StopCleanup stops the cleanup goroutine
func (s *Store) StopCleanup() {
	s.cleanupMutex.Lock()
	defer s.cleanupMutex.Unlock()

	if !s.cleanupRunning {
		return
	}

	close(s.stopCleanup)
	s.cleanupRunning = false
}

// Close closes the store
func (s *Store) Close() {
	s.StopCleanup()
}
