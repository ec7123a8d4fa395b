package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	stateDirPermissions  = 0o700
	stateFilePermissions = 0o600

	// sessionRetention bounds how long an untouched session survives in the
	// state file. The host recycles idle sessions well before this.
	sessionRetention = 24 * time.Hour
)

// registryState is the on-disk shape of the registry.
type registryState struct {
	// Sessions maps session ID to session record.
	Sessions map[string]*Session `json:"sessions"`

	// LastUpdated is when the state was last saved.
	LastUpdated time.Time `json:"last_updated"`
}

// Load replaces the in-memory sessions with the contents of the state file.
// A missing or unparseable file means fresh state, never a failure: a
// corrupt state file must not take the plugin down with it. Sessions
// untouched past the retention horizon are dropped during load.
func (r *Registry) Load() error {
	if r.stateFile == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Path comes from trusted configuration, not user input.
	data, err := os.ReadFile(r.stateFile) //nolint:gosec // G304: path is from config
	if err != nil {
		if os.IsNotExist(err) {
			r.logger.Debug("state file does not exist, using fresh state",
				"path", r.stateFile,
			)

			return nil
		}

		return errors.Wrap(err, "reading state file")
	}

	var st registryState
	if err := json.Unmarshal(data, &st); err != nil {
		r.logger.Debug("failed to parse state file, using fresh state",
			"path", r.stateFile,
			"error", err.Error(),
		)

		return nil
	}

	if st.Sessions == nil {
		st.Sessions = make(map[string]*Session)
	}

	now := r.now()

	for sessionID, sess := range st.Sessions {
		if now.Sub(sess.UpdatedAt) > sessionRetention {
			delete(st.Sessions, sessionID)

			r.logger.Debug("stale session dropped during load",
				"session_id", sessionID,
			)

			continue
		}

		// Old or hand-edited files may lack the map.
		if sess.CooldownHashes == nil {
			sess.CooldownHashes = make(map[string]time.Time)
		}

		if sess.ID == "" {
			sess.ID = sessionID
		}
	}

	r.sessions = st.Sessions

	r.logger.Debug("loaded state from file",
		"path", r.stateFile,
		"sessions", len(r.sessions),
	)

	return nil
}

// Save persists the current sessions to the state file, writing a temp file
// and renaming it so a crash mid-write can never leave a torn file behind.
func (r *Registry) Save() error {
	if r.stateFile == "" {
		return nil
	}

	r.mu.Lock()
	st := &registryState{
		Sessions:    r.sessions,
		LastUpdated: r.now(),
	}

	data, err := json.MarshalIndent(st, "", "  ")
	count := len(r.sessions)
	r.mu.Unlock()

	if err != nil {
		return errors.Wrap(err, "marshaling state")
	}

	if err := os.MkdirAll(filepath.Dir(r.stateFile), stateDirPermissions); err != nil {
		return errors.Wrap(err, "creating state directory")
	}

	tmpPath := r.stateFile + ".tmp"
	if err := os.WriteFile(tmpPath, data, stateFilePermissions); err != nil {
		return errors.Wrap(err, "writing temp state file")
	}

	if err := os.Rename(tmpPath, r.stateFile); err != nil {
		_ = os.Remove(tmpPath)

		return errors.Wrap(err, "renaming state file")
	}

	r.logger.Debug("saved state to file",
		"path", r.stateFile,
		"sessions", count,
	)

	return nil
}
