package sealbox

import (
	"context"
	"sync"
	"time"
)

// RefreshCallback is called after the monitor replaces a tracked session.
type RefreshCallback func(old, refreshed *ManagedSession)

// SessionMonitor keeps a set of tracked sessions fresh in the background.
// On every tick it checks each tracked session against the manager's refresh
// threshold and proactively replaces the ones approaching expiry, so that
// long-running callers never hit a mid-operation expiry.
type SessionMonitor struct {
	manager   *SessionManager
	interval  time.Duration
	mu        sync.RWMutex
	tracked   map[string]*ManagedSession
	callbacks []RefreshCallback
	started   bool
	stop      chan struct{}
	done      chan struct{}
}

// DefaultMonitorInterval is how often the monitor sweeps tracked sessions.
const DefaultMonitorInterval = 30 * time.Second

// NewSessionMonitor creates a monitor over the client's session manager.
// A non-positive interval uses DefaultMonitorInterval.
func (c *Client) NewSessionMonitor(interval time.Duration) *SessionMonitor {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	return &SessionMonitor{
		manager:  c.sessions,
		interval: interval,
		tracked:  make(map[string]*ManagedSession),
	}
}

// Track adds a session to the monitored set. Tracking the same scope again
// replaces the previous snapshot.
func (m *SessionMonitor) Track(session *ManagedSession) {
	if session == nil {
		return
	}
	m.mu.Lock()
	m.tracked[sessionCacheKey(session.Address, session.PackageID)] = session
	m.mu.Unlock()
}

// Untrack removes the session for a scope from the monitored set.
func (m *SessionMonitor) Untrack(address, packageID string) {
	m.mu.Lock()
	delete(m.tracked, sessionCacheKey(address, packageID))
	m.mu.Unlock()
}

// Session returns the monitor's current snapshot for a scope. The snapshot
// is replaced, never mutated, when the monitor refreshes it.
func (m *SessionMonitor) Session(address, packageID string) (*ManagedSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.tracked[sessionCacheKey(address, packageID)]
	return session, ok
}

// OnRefresh registers a callback invoked after each successful replacement.
func (m *SessionMonitor) OnRefresh(callback RefreshCallback) {
	m.mu.Lock()
	m.callbacks = append(m.callbacks, callback)
	m.mu.Unlock()
}

// Start launches the background sweep goroutine. Starting an already
// running monitor is a no-op. The goroutine exits when Stop is called or
// the context is cancelled.
func (m *SessionMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	stop, done := m.stop, m.done
	m.mu.Unlock()

	go m.run(ctx, stop, done)
}

// Stop halts the sweep goroutine and waits for it to exit.
func (m *SessionMonitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	close(m.stop)
	done := m.done
	m.mu.Unlock()

	<-done
}

func (m *SessionMonitor) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

// sweep refreshes every tracked session whose remaining lifetime has dropped
// below the manager's threshold. Failures are reported through the manager's
// error hook and retried on the next tick; the stale snapshot keeps its
// attempt count so callers can see repeated failures.
func (m *SessionMonitor) sweep(ctx context.Context) {
	m.mu.RLock()
	snapshot := make(map[string]*ManagedSession, len(m.tracked))
	for key, session := range m.tracked {
		snapshot[key] = session
	}
	m.mu.RUnlock()

	for key, session := range snapshot {
		if !m.manager.ShouldRefreshSession(session, 0) {
			continue
		}

		refreshed, err := m.manager.RefreshSession(ctx, session, 0)
		if err != nil {
			m.manager.report(&SessionError{Op: "monitor refresh", Err: err})
			failed := *session
			failed.RefreshAttempts++
			m.replace(key, session, &failed)
			continue
		}
		m.replace(key, session, refreshed)
		m.emit(session, refreshed)
	}
}

// replace swaps the tracked snapshot only if it has not been replaced by a
// concurrent Track since the sweep copied it.
func (m *SessionMonitor) replace(key string, old, next *ManagedSession) {
	m.mu.Lock()
	if current, ok := m.tracked[key]; ok && current == old {
		m.tracked[key] = next
	}
	m.mu.Unlock()
}

func (m *SessionMonitor) emit(old, refreshed *ManagedSession) {
	m.mu.RLock()
	callbacks := make([]RefreshCallback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.RUnlock()

	for _, callback := range callbacks {
		if callback != nil {
			callback(old, refreshed)
		}
	}
}
