package auth

import (
	"testing"
	"time"

	"github.com/oddbit-project/roadwatch/audit"
	"github.com/oddbit-project/roadwatch/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	accepted map[string]string
}

func (v fakeVerifier) VerifyCredential(clientID, credential string) bool {
	want, ok := v.accepted[clientID]
	return ok && want == credential
}

type captureRecorder struct {
	events []audit.Event
}

func (r *captureRecorder) Record(ev audit.Event) {
	r.events = append(r.events, ev)
}

func newTestGate(t *testing.T) (*Gate, *session.Store, *captureRecorder) {
	sessions, err := session.NewStore(nil, nil)
	require.NoError(t, err)
	t.Cleanup(sessions.Close)

	recorder := &captureRecorder{}
	verifier := fakeVerifier{accepted: map[string]string{"sensor-1": "secret"}}
	gate, err := NewGate(NewConfig(), verifier, sessions, recorder, nil)
	require.NoError(t, err)
	return gate, sessions, recorder
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      *Config
		expectedErr error
	}{
		{"valid", &Config{MaxAttempts: 3, LockoutSeconds: 300, TokenBytes: 32}, nil},
		{"nil", nil, ErrNilConfig},
		{"zero attempts", &Config{MaxAttempts: 0, LockoutSeconds: 300, TokenBytes: 32}, ErrInvalidMaxAttempts},
		{"zero lockout", &Config{MaxAttempts: 3, LockoutSeconds: 0, TokenBytes: 32}, ErrInvalidLockout},
		{"zero token bytes", &Config{MaxAttempts: 3, LockoutSeconds: 300, TokenBytes: 0}, ErrInvalidTokenBytes},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.expectedErr == nil {
				assert.NoError(t, tt.config.Validate())
			} else {
				assert.ErrorIs(t, tt.config.Validate(), tt.expectedErr)
			}
		})
	}
}

func TestGate_Authenticate(t *testing.T) {
	gate, sessions, _ := newTestGate(t)

	t.Run("empty client id", func(t *testing.T) {
		_, err := gate.Authenticate("", "secret", "10.0.0.1:1234")
		assert.ErrorIs(t, err, ErrEmptyClientID)
	})

	t.Run("success issues token", func(t *testing.T) {
		token, err := gate.Authenticate("sensor-1", "secret", "10.0.0.1:1234")
		require.NoError(t, err)
		assert.NotEmpty(t, token)

		stored, err := sessions.GetToken("sensor-1")
		require.NoError(t, err)
		assert.Equal(t, token, stored)
	})

	t.Run("re-authentication replaces token", func(t *testing.T) {
		first, err := gate.Authenticate("sensor-1", "secret", "10.0.0.1:1234")
		require.NoError(t, err)
		second, err := gate.Authenticate("sensor-1", "secret", "10.0.0.1:1234")
		require.NoError(t, err)
		assert.NotEqual(t, first, second)

		stored, err := sessions.GetToken("sensor-1")
		require.NoError(t, err)
		assert.Equal(t, second, stored)
	})

	t.Run("bad credentials", func(t *testing.T) {
		_, err := gate.Authenticate("sensor-1", "wrong", "10.0.0.1:1234")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestGate_Lockout(t *testing.T) {
	gate, _, recorder := newTestGate(t)

	current := time.Now()
	gate.now = func() time.Time { return current }

	// three failures within the window lock the identity
	for i := 0; i < 3; i++ {
		_, err := gate.Authenticate("sensor-1", "wrong", "10.0.0.1:1234")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
	assert.Equal(t, 3, gate.FailureCount("sensor-1"))

	// correct credentials are rejected while locked
	_, err := gate.Authenticate("sensor-1", "secret", "10.0.0.1:1234")
	assert.ErrorIs(t, err, ErrLockedOut)

	// attempts while locked do not extend the window
	current = current.Add(299 * time.Second)
	_, err = gate.Authenticate("sensor-1", "secret", "10.0.0.1:1234")
	assert.ErrorIs(t, err, ErrLockedOut)

	// window expired, authentication succeeds again
	current = current.Add(2 * time.Second)
	token, err := gate.Authenticate("sensor-1", "secret", "10.0.0.1:1234")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, 0, gate.FailureCount("sensor-1"))

	var lockouts int
	for _, ev := range recorder.events {
		if ev.Type == audit.EventAuthLockout {
			lockouts++
		}
	}
	assert.Equal(t, 2, lockouts)
}

func TestGate_WindowReset(t *testing.T) {
	gate, _, _ := newTestGate(t)

	current := time.Now()
	gate.now = func() time.Time { return current }

	// two failures, then the window expires before the third
	for i := 0; i < 2; i++ {
		_, err := gate.Authenticate("sensor-1", "wrong", "10.0.0.1:1234")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	current = current.Add(301 * time.Second)
	_, err := gate.Authenticate("sensor-1", "wrong", "10.0.0.1:1234")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 1, gate.FailureCount("sensor-1"))

	// not locked: the stale failures no longer count
	_, err = gate.Authenticate("sensor-1", "secret", "10.0.0.1:1234")
	assert.NoError(t, err)
}

func TestGate_SuccessClearsFailures(t *testing.T) {
	gate, _, _ := newTestGate(t)

	for i := 0; i < 2; i++ {
		_, err := gate.Authenticate("sensor-1", "wrong", "10.0.0.1:1234")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err := gate.Authenticate("sensor-1", "secret", "10.0.0.1:1234")
	require.NoError(t, err)
	assert.Equal(t, 0, gate.FailureCount("sensor-1"))

	// failure tally starts over
	_, err = gate.Authenticate("sensor-1", "wrong", "10.0.0.1:1234")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 1, gate.FailureCount("sensor-1"))
}

func TestGate_LockoutIsPerIdentity(t *testing.T) {
	sessions, err := session.NewStore(nil, nil)
	require.NoError(t, err)
	t.Cleanup(sessions.Close)

	verifier := fakeVerifier{accepted: map[string]string{
		"sensor-1": "secret",
		"sensor-2": "secret",
	}}
	gate, err := NewGate(NewConfig(), verifier, sessions, nil, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = gate.Authenticate("sensor-1", "wrong", "10.0.0.1:1234")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err = gate.Authenticate("sensor-1", "secret", "10.0.0.1:1234")
	assert.ErrorIs(t, err, ErrLockedOut)

	// other identities are unaffected
	_, err = gate.Authenticate("sensor-2", "secret", "10.0.0.2:1234")
	assert.NoError(t, err)
}
