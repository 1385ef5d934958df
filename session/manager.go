package session

import (
	"context"
	"sync"
	"time"

	"lyrics-sync-go/logcolors"
	"lyrics-sync-go/lyrics"
	"lyrics-sync-go/stats"

	log "github.com/sirupsen/logrus"
)

// Manager owns the sessions by id
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	registry    *lyrics.Registry
	idleTimeout time.Duration
}

// NewManager creates a manager whose sessions parse through registry.
// A non-positive idleTimeout disables reaping.
func NewManager(registry *lyrics.Registry, idleTimeout time.Duration) *Manager {
	return &Manager{
		sessions:    make(map[string]*Session),
		registry:    registry,
		idleTimeout: idleTimeout,
	}
}

// GetOrCreate returns the session for id, creating it if needed
func (m *Manager) GetOrCreate(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s, false
	}

	s := newSession(id, m.registry)
	m.sessions[id] = s
	stats.Get().SessionsCreated.Add(1)
	log.Infof("%s Created session %s", logcolors.LogSession, id)
	return s, true
}

// Get returns the session for id
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete drops the session and its document
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	log.Infof("%s Deleted session %s", logcolors.LogSession, id)
	return true
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes sessions unused for longer than the idle timeout and returns how many went
func (m *Manager) Sweep(now time.Time) int {
	if m.idleTimeout <= 0 {
		return 0
	}
	cutoff := now.Add(-m.idleTimeout)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		stats.Get().SessionsReaped.Add(int64(removed))
		log.Infof("%s Reaped %d idle session(s), %d remaining", logcolors.LogReaper, removed, len(m.sessions))
	}
	return removed
}

// Run sweeps every interval until ctx is done
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	if m.idleTimeout <= 0 || interval <= 0 {
		log.Infof("%s Session reaping disabled", logcolors.LogReaper)
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Infof("%s Reaping sessions idle for %v every %v", logcolors.LogReaper, m.idleTimeout, interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			m.Sweep(now)
		}
	}
}
