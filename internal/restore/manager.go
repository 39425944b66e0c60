package restore

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driftbyte/snapharbor/internal/models"
)

// ErrSessionNotFound is returned when a session id is unknown or belongs to
// a different user.
var ErrSessionNotFound = errors.New("restore session not found")

// Manager is the registry of open workflow sessions. Sessions are
// ephemeral modal state; the only part that survives them is the cloud-job
// journal kept by the dispatcher's store.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewManager creates an empty session registry.
func NewManager() *Manager {
	return &Manager{sessions: make(map[uuid.UUID]*Session)}
}

// Open creates a session for the given snapshot and registers it.
func (m *Manager) Open(userID uuid.UUID, snapshot models.Snapshot, agentCount int) *Session {
	session := NewSession(userID, snapshot, agentCount)
	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()
	return session
}

// Get returns the session if it exists and belongs to the user.
func (m *Manager) Get(userID, sessionID uuid.UUID) (*Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok || session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Close closes the session and removes it from the registry. The caller is
// responsible for stopping any progress poller it no longer wants; a
// still-uploading cloud job keeps running server-side either way.
func (m *Manager) Close(userID, sessionID uuid.UUID) error {
	session, err := m.Get(userID, sessionID)
	if err != nil {
		return err
	}
	session.Close()
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	return nil
}

// PruneStale removes sessions that have been idle longer than ttl and never
// dispatched a job. Sessions in restoring are kept until closed so their
// job reference stays reachable.
func (m *Manager) PruneStale(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)
	m.mu.Lock()
	defer m.mu.Unlock()

	pruned := 0
	for id, session := range m.sessions {
		if session.Phase() == PhaseRestoring {
			continue
		}
		if session.UpdatedAt().Before(cutoff) {
			session.Close()
			delete(m.sessions, id)
			pruned++
		}
	}
	return pruned
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
