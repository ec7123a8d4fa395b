package state

import (
	"sort"
	"sync"
	"time"

	"github.com/nightshift-sh/nightshift/pkg/logger"
)

// Registry is the process-scoped session store. It is an explicit object
// injected into components rather than ambient global state, so tests can
// instantiate isolated registries.
//
// Update is the single mutation entry point: every read-modify-write of a
// session record happens inside one callback under the registry lock, so
// rapid back-to-back events for the same session can never interleave on
// stale state.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	// defaultDivert seeds the per-session toggle on first reference.
	defaultDivert bool

	// stateFile is where Load and Save persist the registry between
	// processes. Empty disables persistence.
	stateFile string

	logger logger.Logger

	// now is injectable for tests.
	now func() time.Time
}

// RegistryOption configures the Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) RegistryOption {
	return func(r *Registry) {
		if log != nil {
			r.logger = log
		}
	}
}

// WithStateFile sets the path Load and Save persist the registry to.
func WithStateFile(path string) RegistryOption {
	return func(r *Registry) {
		r.stateFile = path
	}
}

// WithTimeFunc sets a custom time function for testing.
func WithTimeFunc(fn func() time.Time) RegistryOption {
	return func(r *Registry) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRegistry creates an empty Registry. New sessions start with the given
// divert default.
func NewRegistry(defaultDivert bool, opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions:      make(map[string]*Session),
		defaultDivert: defaultDivert,
		logger:        logger.NewNoOpLogger(),
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Update runs fn on the session record under the registry lock, creating
// the record if this is the session's first reference. fn must not block on
// I/O; persistence happens outside and feeds results back through a second
// Update.
func (r *Registry) Update(sessionID string, fn func(*Session)) {
	if sessionID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		sess = r.newSessionLocked(sessionID)
		r.sessions[sessionID] = sess
	}

	fn(sess)
	sess.UpdatedAt = r.now()
}

// Snapshot returns a deep copy of the session record, or nil if the session
// has never been referenced.
func (r *Registry) Snapshot(sessionID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}

	return sess.clone()
}

// Snapshots returns deep copies of all session records, ordered by ID.
func (r *Registry) Snapshots() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshots := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		snapshots = append(snapshots, sess.clone())
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].ID < snapshots[j].ID
	})

	return snapshots
}

// Delete removes the session record entirely. No soft-delete.
func (r *Registry) Delete(sessionID string) {
	if sessionID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)

	r.logger.Debug("session removed",
		"session_id", sessionID,
	)
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}

// newSessionLocked builds a fresh session record.
// Must be called with mu held.
func (r *Registry) newSessionLocked(sessionID string) *Session {
	r.logger.Debug("session created",
		"session_id", sessionID,
		"divert", r.defaultDivert,
	)

	return &Session{
		ID:             sessionID,
		DivertBlockers: r.defaultDivert,
		CooldownHashes: make(map[string]time.Time),
	}
}
