package githubauth

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"simbridge/pkg/logging"
)

// DefaultStateExpiry bounds how long a login attempt may take between
// /auth/login and the provider callback.
const DefaultStateExpiry = 10 * time.Minute

// StateStore provides thread-safe, single-use storage for OAuth state
// parameters. A callback presenting a state this store did not issue, or one
// already consumed, is rejected. This is the CSRF protection for the
// callback endpoint.
type StateStore struct {
	mu     sync.Mutex
	states map[string]time.Time

	stateExpiry time.Duration
	stopCleanup chan struct{}
	stopOnce    sync.Once

	now func() time.Time
}

// NewStateStore creates a state store with the default expiry and starts its
// background cleanup loop.
func NewStateStore() *StateStore {
	ss := &StateStore{
		states:      make(map[string]time.Time),
		stateExpiry: DefaultStateExpiry,
		stopCleanup: make(chan struct{}),
		now:         time.Now,
	}

	go ss.cleanupLoop()

	return ss
}

// Generate creates a cryptographically random state parameter, records it,
// and returns the encoded value to include in the authorization URL.
func (ss *StateStore) Generate() (string, error) {
	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(nonce)

	ss.mu.Lock()
	ss.states[state] = ss.now()
	ss.mu.Unlock()

	logging.Debug("OAuth", "Generated login state")
	return state, nil
}

// Consume validates a state returned on callback. A state is valid exactly
// once and only within its expiry window.
func (ss *StateStore) Consume(state string) bool {
	if state == "" {
		return false
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	createdAt, ok := ss.states[state]
	if !ok {
		logging.Warn("OAuth", "Callback presented unknown state")
		return false
	}
	delete(ss.states, state)

	if ss.now().Sub(createdAt) > ss.stateExpiry {
		logging.Warn("OAuth", "Callback presented expired state")
		return false
	}
	return true
}

// Stop terminates the background cleanup loop. Safe to call more than once.
func (ss *StateStore) Stop() {
	ss.stopOnce.Do(func() {
		close(ss.stopCleanup)
	})
}

// cleanupLoop periodically removes expired states so abandoned login
// attempts do not accumulate.
func (ss *StateStore) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ss.cleanupExpired()
		case <-ss.stopCleanup:
			return
		}
	}
}

func (ss *StateStore) cleanupExpired() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	cutoff := ss.now().Add(-ss.stateExpiry)
	removed := 0
	for state, createdAt := range ss.states {
		if createdAt.Before(cutoff) {
			delete(ss.states, state)
			removed++
		}
	}
	if removed > 0 {
		logging.Debug("OAuth", "Cleaned up %d expired login states", removed)
	}
}
