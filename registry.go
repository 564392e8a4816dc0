package lambdafix

import (
	"sync"
	"testing"
)

// SessionFor returns the session for the given test, creating one configured
// from the environment if needed. Multiple calls with the same test return the
// same session, so modules added from helpers run together. A configuration
// error fails t.
func SessionFor(t testing.TB) *Session {
	t.Helper()

	registryMu.Lock()
	defer registryMu.Unlock()

	if session, ok := registry[t]; ok {
		return session
	}

	session, err := NewSession()
	if err != nil {
		t.Fatal(err)
	}

	registry[t] = session

	t.Cleanup(func() {
		registryMu.Lock()
		defer registryMu.Unlock()

		delete(registry, t)
	})

	return session
}

// unexported variables.
var (
	//nolint:gochecknoglobals // per-test session registry
	registry = make(map[testing.TB]*Session)
	//nolint:gochecknoglobals // guards registry
	registryMu sync.Mutex
)
