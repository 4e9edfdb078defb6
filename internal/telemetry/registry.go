package telemetry

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the runtime-only state of one connected drone channel:
// liveness, last-update stamp, and the merged telemetry snapshot.
// Sessions are never persisted.
type Session struct {
	ID         string         `json:"sessionId"`
	DroneID    int64          `json:"droneId"`
	Online     bool           `json:"online"`
	LastUpdate time.Time      `json:"lastUpdate"`
	Snapshot   map[string]any `json:"snapshot"`
}

// Registry tracks drone telemetry sessions in memory. It is an
// explicitly owned object with process lifetime, created in main and
// injected into the hub; there is no package-level state. It is local
// to one process: a multi-instance deployment needs an external
// pub/sub broker to relay across instances.
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	grace    time.Duration
	now      func() time.Time
}

// NewRegistry creates a registry. Offline sessions are purged after
// the grace period unless the drone reconnects first.
func NewRegistry(grace time.Duration) *Registry {
	return &Registry{
		sessions: make(map[int64]*Session),
		grace:    grace,
		now:      time.Now,
	}
}

// Connect marks the drone's session online, creating it on first
// contact. A reconnect within the grace period revives the existing
// session, snapshot included, which implicitly cancels the pending
// purge (the purge timer re-checks liveness before deleting).
func (r *Registry) Connect(droneID int64) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[droneID]
	if !ok {
		s = &Session{
			ID:       uuid.NewString(),
			DroneID:  droneID,
			Snapshot: make(map[string]any),
		}
		r.sessions[droneID] = s
	}
	s.Online = true
	s.LastUpdate = r.now()
	return r.copyLocked(s)
}

// Merge folds new telemetry fields into the session's snapshot.
// Unspecified fields keep their prior values. Returns the merged
// snapshot copy, or false when no session exists for the drone.
func (r *Registry) Merge(droneID int64, fields map[string]any) (map[string]any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[droneID]
	if !ok {
		return nil, false
	}
	for k, v := range fields {
		s.Snapshot[k] = v
	}
	s.LastUpdate = r.now()
	return copySnapshot(s.Snapshot), true
}

// Get returns a copy of the drone's session, if one exists.
func (r *Registry) Get(droneID int64) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[droneID]
	if !ok {
		return nil, false
	}
	return r.copyLocked(s), true
}

// Online reports whether the drone's session exists and is live.
func (r *Registry) Online(droneID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[droneID]
	return ok && s.Online
}

// Disconnect marks the session offline immediately and schedules the
// purge. The entry, snapshot included, stays resident for the grace
// period so a reconnecting drone resumes where it left off.
func (r *Registry) Disconnect(droneID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[droneID]
	if !ok {
		return
	}
	s.Online = false
	s.LastUpdate = r.now()
	time.AfterFunc(r.grace, func() { r.purgeIfOffline(droneID) })
}

// purgeIfOffline removes the session only if it is still offline. The
// re-check matters: a reconnect between disconnect and timer fire must
// keep the session.
func (r *Registry) purgeIfOffline(droneID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[droneID]; ok && !s.Online {
		delete(r.sessions, droneID)
	}
}

func (r *Registry) copyLocked(s *Session) *Session {
	return &Session{
		ID:         s.ID,
		DroneID:    s.DroneID,
		Online:     s.Online,
		LastUpdate: s.LastUpdate,
		Snapshot:   copySnapshot(s.Snapshot),
	}
}

func copySnapshot(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
