// Package blocker defines the durable record of one blocking event and the
// fingerprinting used to deduplicate repeats.
package blocker

import (
	"fmt"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
)

var (
	// ErrInvalidBlocker is returned when a blocker fails boundary validation.
	ErrInvalidBlocker = errors.New("invalid blocker")

	// ErrUnknownCategory is returned when a category name is not recognized.
	ErrUnknownCategory = errors.New("unknown category")
)

// Category classifies a blocking event.
type Category int

const (
	// CategoryOther is the fallback category.
	CategoryOther Category = iota

	// CategoryPermission is a host permission prompt.
	CategoryPermission

	// CategoryArchitecture is an architecture or design decision.
	CategoryArchitecture

	// CategorySecurity is a security-sensitive decision.
	CategorySecurity

	// CategoryDestructive is a potentially destructive operation.
	CategoryDestructive

	// CategoryDeployment is a deployment or release decision.
	CategoryDeployment

	// CategoryQuestion is a conversational question for the user.
	CategoryQuestion
)

// categoryNames maps categories to their wire names.
var categoryNames = map[Category]string{
	CategoryOther:        "other",
	CategoryPermission:   "permission",
	CategoryArchitecture: "architecture",
	CategorySecurity:     "security",
	CategoryDestructive:  "destructive",
	CategoryDeployment:   "deployment",
	CategoryQuestion:     "question",
}

// String returns the wire name of the category.
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}

	return "other"
}

// valid reports whether c is a member of the closed enumeration.
func (c Category) valid() bool {
	_, ok := categoryNames[c]

	return ok
}

// ParseCategory parses a wire name into a Category. Unknown names fall back
// to CategoryOther so host-supplied classification can never fail the flow.
func ParseCategory(name string) Category {
	for category, categoryName := range categoryNames {
		if categoryName == name {
			return category
		}
	}

	return CategoryOther
}

// ClarifiedStatus tracks human follow-up on a recorded blocker. It is set
// only after the record has left this core.
type ClarifiedStatus string

const (
	// ClarifiedPending means no human has looked at the blocker yet.
	ClarifiedPending ClarifiedStatus = "pending"

	// ClarifiedDone means a human supplied a clarification.
	ClarifiedDone ClarifiedStatus = "clarified"

	// ClarifiedSkipped means a human dismissed the blocker.
	ClarifiedSkipped ClarifiedStatus = "skipped"
)

// Blocker is an immutable record of one blocking event.
type Blocker struct {
	// ID uniquely identifies the record. Derived from creation time,
	// session, and a fingerprint prefix.
	ID string `json:"id"`

	// Timestamp is the creation instant.
	Timestamp time.Time `json:"timestamp"`

	// SessionID is the session that raised the blocker.
	SessionID string `json:"session_id"`

	// Category classifies the blocker.
	Category Category `json:"category"`

	// Question is the verbatim prompt text.
	Question string `json:"question"`

	// Context is free-form supporting text, possibly empty.
	Context string `json:"context,omitempty"`

	// BlocksProgress marks a hard blocker the agent must not decide alone.
	BlocksProgress bool `json:"blocks_progress"`

	// Options lists candidate choices. Required for soft blockers.
	Options []string `json:"options,omitempty"`

	// ChosenOption is the option the agent picked, if any. Must be a member
	// of Options when set.
	ChosenOption string `json:"chosen_option,omitempty"`

	// ChosenReasoning explains the pick.
	ChosenReasoning string `json:"chosen_reasoning,omitempty"`

	// Clarified is the human follow-up status.
	Clarified ClarifiedStatus `json:"clarified,omitempty"`

	// Clarification is the human-supplied answer, if any.
	Clarification string `json:"clarification,omitempty"`

	// Fingerprint is the dedup hash of (question, context).
	Fingerprint string `json:"fingerprint"`
}

// idSessionPrefixLen is how much of the session ID goes into a record ID.
const idSessionPrefixLen = 8

// idFingerprintPrefixLen is how much of the fingerprint goes into a record ID.
const idFingerprintPrefixLen = 8

// NewID derives a record ID from the creation instant, session, and
// fingerprint prefix.
func NewID(now time.Time, sessionID, fingerprint string) string {
	return fmt.Sprintf("%s-%s-%s",
		now.UTC().Format("20060102T150405"),
		prefix(sessionID, idSessionPrefixLen),
		prefix(fingerprint, idFingerprintPrefixLen),
	)
}

// prefix returns up to n leading characters of s.
func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n]
}

// Validate enforces the record invariants at the boundary. Malformed
// arguments are rejected explicitly rather than silently coerced.
func (b *Blocker) Validate() error {
	if b.Question == "" {
		return errors.Wrap(ErrInvalidBlocker, "question is required")
	}

	if b.SessionID == "" {
		return errors.Wrap(ErrInvalidBlocker, "session ID is required")
	}

	if !b.Category.valid() {
		return errors.Wrapf(ErrUnknownCategory, "%d", int(b.Category))
	}

	if !b.BlocksProgress && len(b.Options) == 0 {
		return errors.Wrap(ErrInvalidBlocker,
			"a soft blocker must carry a non-empty options list")
	}

	if b.ChosenOption != "" && !slices.Contains(b.Options, b.ChosenOption) {
		return errors.Wrapf(ErrInvalidBlocker,
			"chosen option %q is not among the options", b.ChosenOption)
	}

	return nil
}
