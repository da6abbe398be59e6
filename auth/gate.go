package auth

import (
	"sync"
	"time"

	"github.com/oddbit-project/roadwatch/audit"
	"github.com/oddbit-project/roadwatch/crypt/token"
	"github.com/oddbit-project/roadwatch/log"
	"github.com/oddbit-project/roadwatch/session"
	"github.com/oddbit-project/roadwatch/utils"
)

const (
	ErrNilConfig          = utils.Error("config is nil")
	ErrInvalidMaxAttempts = utils.Error("max attempts must be positive")
	ErrInvalidLockout     = utils.Error("lockout window must be positive")
	ErrInvalidTokenBytes  = utils.Error("token length must be positive")
	ErrEmptyClientID      = utils.Error("empty client id")
	ErrLockedOut          = utils.Error("client locked out")
	ErrInvalidCredentials = utils.Error("invalid credentials")
)

type Config struct {
	CredentialsFile string `json:"credentialsFile"`
	MaxAttempts     int    `json:"maxAttempts" default:"3"`
	LockoutSeconds  int    `json:"lockoutSeconds" default:"300"`
	TokenBytes      int    `json:"tokenBytes" default:"32"`
}

func NewConfig() *Config {
	return &Config{
		MaxAttempts:    3,
		LockoutSeconds: 300,
		TokenBytes:     32,
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}
	if c.LockoutSeconds <= 0 {
		return ErrInvalidLockout
	}
	if c.TokenBytes <= 0 {
		return ErrInvalidTokenBytes
	}
	return nil
}

// failure tally for one client identity within a rolling window
type attemptRecord struct {
	count       int
	windowStart time.Time
}

// Gate enforces credential verification with a per-identity lockout. After
// MaxAttempts consecutive failures within the lockout window the identity is
// rejected outright until the window expires; attempts made while locked out
// do not extend the window.
type Gate struct {
	mu       sync.Mutex
	attempts map[string]*attemptRecord
	config   *Config
	verifier CredentialVerifier
	sessions *session.Store
	recorder audit.Recorder
	logger   *log.Logger
	now      func() time.Time
}

// NewGate creates an authentication gate
func NewGate(config *Config, verifier CredentialVerifier, sessions *session.Store, recorder audit.Recorder, logger *log.Logger) (*Gate, error) {
	if config == nil {
		config = NewConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	if logger == nil {
		logger = log.New("auth-gate")
	}

	return &Gate{
		attempts: make(map[string]*attemptRecord),
		config:   config,
		verifier: verifier,
		sessions: sessions,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Authenticate verifies a credential for a client identity and issues a fresh
// session token on success. Re-authentication replaces any previous token.
// Returns ErrLockedOut while the identity is locked, ErrInvalidCredentials on
// a failed check.
func (g *Gate) Authenticate(clientID, credential, remoteAddr string) (string, error) {
	if clientID == "" {
		g.recorder.Record(audit.NewEvent(audit.EventAuthFailure, clientID, remoteAddr, "empty client id"))
		return "", ErrEmptyClientID
	}

	if g.isLockedOut(clientID) {
		g.logger.Warn("authentication rejected, client locked out", map[string]interface{}{
			"clientID":   clientID,
			"remoteAddr": remoteAddr,
		})
		g.recorder.Record(audit.NewEvent(audit.EventAuthLockout, clientID, remoteAddr, "locked out"))
		return "", ErrLockedOut
	}

	// bcrypt comparison happens outside the gate lock
	if !g.verifier.VerifyCredential(clientID, credential) {
		g.registerFailure(clientID)
		g.logger.Warn("authentication failed", map[string]interface{}{
			"clientID":   clientID,
			"remoteAddr": remoteAddr,
		})
		g.recorder.Record(audit.NewEvent(audit.EventAuthFailure, clientID, remoteAddr, "invalid credentials"))
		return "", ErrInvalidCredentials
	}

	g.clearFailures(clientID)

	sessionToken, err := token.GenerateSecureBase64Token(g.config.TokenBytes)
	if err != nil {
		return "", err
	}
	g.sessions.PutToken(clientID, sessionToken)

	g.logger.Info("authentication succeeded", map[string]interface{}{
		"clientID":   clientID,
		"remoteAddr": remoteAddr,
	})
	g.recorder.Record(audit.NewEvent(audit.EventAuthSuccess, clientID, remoteAddr, "token issued"))
	return sessionToken, nil
}

// isLockedOut reports whether the identity has exhausted its attempts within
// the current window; an expired window resets the record
func (g *Gate) isLockedOut(clientID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, exists := g.attempts[clientID]
	if !exists {
		return false
	}
	if g.now().Sub(rec.windowStart) >= time.Duration(g.config.LockoutSeconds)*time.Second {
		delete(g.attempts, clientID)
		return false
	}
	return rec.count >= g.config.MaxAttempts
}

func (g *Gate) registerFailure(clientID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	rec, exists := g.attempts[clientID]
	if !exists || now.Sub(rec.windowStart) >= time.Duration(g.config.LockoutSeconds)*time.Second {
		g.attempts[clientID] = &attemptRecord{count: 1, windowStart: now}
		return
	}
	rec.count++
}

func (g *Gate) clearFailures(clientID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.attempts, clientID)
}

// FailureCount returns the number of failures recorded for an identity within
// the current window; used by the ops API
func (g *Gate) FailureCount(clientID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, exists := g.attempts[clientID]
	if !exists {
		return 0
	}
	if g.now().Sub(rec.windowStart) >= time.Duration(g.config.LockoutSeconds)*time.Second {
		return 0
	}
	return rec.count
}
