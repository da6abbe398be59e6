package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	store, err := NewStore(NewConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      *Config
		expectedErr error
	}{
		{"valid", &Config{IdleTimeoutSeconds: 900, CleanupIntervalSeconds: 60}, nil},
		{"nil config", nil, ErrNilConfig},
		{"zero idle timeout", &Config{IdleTimeoutSeconds: 0, CleanupIntervalSeconds: 60}, ErrInvalidTimeout},
		{"zero cleanup interval", &Config{IdleTimeoutSeconds: 900, CleanupIntervalSeconds: 0}, ErrInvalidCleanup},
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

func TestStore_Tokens(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetToken("sensor-1")
	assert.ErrorIs(t, err, ErrNotFound)

	store.PutToken("sensor-1", "token-a")
	token, err := store.GetToken("sensor-1")
	require.NoError(t, err)
	assert.Equal(t, "token-a", token)

	// re-authentication replaces the token; the old one is gone
	store.PutToken("sensor-1", "token-b")
	token, err = store.GetToken("sensor-1")
	require.NoError(t, err)
	assert.Equal(t, "token-b", token)
}

func TestStore_State(t *testing.T) {
	store := newTestStore(t)

	t.Run("unknown identity", func(t *testing.T) {
		_, err := store.GetState("ghost")
		assert.ErrorIs(t, err, ErrNotFound)
		err = store.UpdateState("ghost", func(*TrafficState) {})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("session without telemetry", func(t *testing.T) {
		store.PutToken("sensor-1", "token-a")
		_, err := store.GetState("sensor-1")
		assert.ErrorIs(t, err, ErrNoState)
	})

	t.Run("first update creates state", func(t *testing.T) {
		err := store.UpdateState("sensor-1", func(st *TrafficState) {
			st.CongestionLevel = 0.4
			st.SignalState = SignalYellow
		})
		require.NoError(t, err)

		state, err := store.GetState("sensor-1")
		require.NoError(t, err)
		assert.Equal(t, 0.4, state.CongestionLevel)
		assert.Equal(t, SignalYellow, state.SignalState)
		assert.False(t, state.UpdatedAt.IsZero())
	})

	t.Run("eviction removes state", func(t *testing.T) {
		store.Evict("sensor-1")
		_, err := store.GetState("sensor-1")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	store := newTestStore(t)
	store.PutToken("sensor-1", "token-a")

	const workers = 16
	const updates = 100

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < updates; j++ {
				_ = store.UpdateState("sensor-1", func(st *TrafficState) {
					st.CongestionLevel += 0.001
				})
			}
		}()
	}
	wg.Wait()

	state, err := store.GetState("sensor-1")
	require.NoError(t, err)
	// read-modify-write is atomic, no update may be lost
	assert.InDelta(t, float64(workers*updates)*0.001, state.CongestionLevel, 1e-9)
}

func TestStore_Prune(t *testing.T) {
	store := newTestStore(t)

	current := time.Now()
	store.now = func() time.Time { return current }

	for i := 0; i < 5; i++ {
		store.PutToken(fmt.Sprintf("sensor-%d", i), "token")
	}

	// keep one session fresh past the idle window
	current = current.Add(10 * time.Minute)
	store.PutToken("sensor-0", "token")

	current = current.Add(10 * time.Minute)
	evicted := store.Prune()
	assert.Equal(t, 4, evicted)

	_, err := store.GetToken("sensor-0")
	assert.NoError(t, err)
	_, err = store.GetToken("sensor-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Snapshots(t *testing.T) {
	store := newTestStore(t)
	store.PutToken("sensor-1", "token-a")
	store.PutToken("sensor-2", "token-b")
	require.NoError(t, store.UpdateState("sensor-2", func(st *TrafficState) {
		st.SignalState = SignalRed
		st.CongestionLevel = 0.9
	}))

	sessions := store.ActiveSessions()
	assert.Len(t, sessions, 2)

	info, err := store.Info("sensor-2")
	require.NoError(t, err)
	assert.True(t, info.HasState)
	assert.Equal(t, SignalRed, info.State.SignalState)

	info, err = store.Info("sensor-1")
	require.NoError(t, err)
	assert.False(t, info.HasState)

	_, err = store.Info("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CleanupLifecycle(t *testing.T) {
	store, err := NewStore(&Config{IdleTimeoutSeconds: 1, CleanupIntervalSeconds: 1}, nil)
	require.NoError(t, err)

	store.StartCleanup()
	// idempotent
	store.StartCleanup()
	store.StopCleanup()
	store.StopCleanup()
}
