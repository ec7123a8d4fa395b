// Package state holds the per-session records and the dedup/cooldown gate.
// Live state is memory-resident within a process and carried across
// processes through a JSON state file, so a one-shot invocation per event
// sees the same session history a long-lived process would.
package state

import (
	"time"

	"github.com/nightshift-sh/nightshift/internal/blocker"
)

// Session is the mutable record for one active session. It is created
// lazily on first reference and destroyed outright on session teardown;
// session identifiers are never reused within a process lifetime, so a
// deleted entry cannot be resurrected ambiguously.
type Session struct {
	// ID is the host session identifier.
	ID string `json:"id"`

	// DivertBlockers is the per-session diversion toggle, independent of
	// the global config default.
	DivertBlockers bool `json:"divert_blockers"`

	// Blockers is the append-only sequence of recorded blockers, in
	// chronological order. Its length never exceeds the per-session cap.
	Blockers []*blocker.Blocker `json:"blockers,omitempty"`

	// CooldownHashes maps blocker fingerprints to cooldown expiry instants.
	// Entries are evicted lazily: past expiry they are treated as absent and
	// may be silently overwritten.
	CooldownHashes map[string]time.Time `json:"cooldown_hashes,omitempty"`

	// LastBlockerTime is when the last blocker was accepted.
	LastBlockerTime time.Time `json:"last_blocker_time"`

	// RepromptCount counts continuation prompts within the current window.
	RepromptCount int `json:"reprompt_count"`

	// LastRepromptTime is when the last continuation prompt was injected.
	LastRepromptTime time.Time `json:"last_reprompt_time"`

	// IsRecovering is a one-shot guard set on session error and cleared on
	// the next idle evaluation.
	IsRecovering bool `json:"is_recovering,omitempty"`

	// LastAssistantAborted is set when the most recent assistant turn was
	// interrupted by the user, and cleared by any later assistant update.
	LastAssistantAborted bool `json:"last_assistant_aborted,omitempty"`

	// LastMessageContent is the most recent assistant message text, used
	// only for completion-marker scanning.
	LastMessageContent string `json:"last_message_content,omitempty"`

	// PendingWrites queues blockers whose persistence failed for retry.
	PendingWrites []*blocker.Blocker `json:"pending_writes,omitempty"`

	// RecentResponseHashes is an extension point for loop detection via
	// repeated-response hashing. Nothing populates or evaluates it yet.
	RecentResponseHashes []string `json:"recent_response_hashes,omitempty"`

	// UpdatedAt is when the record was last touched. Sessions idle past the
	// retention horizon are dropped when a state file is loaded.
	UpdatedAt time.Time `json:"updated_at"`
}

// clone returns a deep copy safe to hand outside the registry lock.
func (s *Session) clone() *Session {
	copied := *s

	copied.Blockers = append([]*blocker.Blocker(nil), s.Blockers...)
	copied.PendingWrites = append([]*blocker.Blocker(nil), s.PendingWrites...)
	copied.RecentResponseHashes = append([]string(nil), s.RecentResponseHashes...)

	copied.CooldownHashes = make(map[string]time.Time, len(s.CooldownHashes))
	for fingerprint, expiry := range s.CooldownHashes {
		copied.CooldownHashes[fingerprint] = expiry
	}

	return &copied
}
