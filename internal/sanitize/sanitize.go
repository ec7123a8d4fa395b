// Package sanitize provides prompt-injection defense for text that flows
// into synthetic messages or the persisted blocker log, plus credential
// redaction for structured metadata. All functions are pure.
package sanitize

import (
	"strings"
	"unicode"
)

const (
	// PromptMaxLen bounds text interpolated into a synthetic user message.
	PromptMaxLen = 200

	// DefaultTextMaxLen bounds text embedded in a persisted record.
	DefaultTextMaxLen = 500

	// Ellipsis marks a truncation point.
	Ellipsis = "..."
)

// markdownMeta is the set of markdown metacharacters escaped in persisted
// text. Angle brackets are stripped outright, not escaped.
const markdownMeta = "*_[]()`#"

// Prompt sanitizes text destined for a synthetic user message: newlines,
// carriage returns, and tabs become spaces, the result is trimmed and
// hard-truncated. This text is interpreted by the agent as coming from the
// user, so both structure and length must be constrained.
func Prompt(s string) string {
	replacer := strings.NewReplacer("\n", " ", "\r", " ", "\t", " ")
	s = strings.TrimSpace(replacer.Replace(s))

	return truncate(s, PromptMaxLen)
}

// Text sanitizes text destined for the persisted blocker log. Control
// characters, invisible Unicode, and angle brackets are stripped, markdown
// metacharacters are escaped, whitespace runs collapse to single spaces,
// and the result is truncated with an ellipsis. Applying Text to its own
// output returns the same string (aside from re-truncation): an already
// escaped metacharacter is not escaped again.
func Text(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultTextMaxLen
	}

	s = stripForbiddenRunes(s)
	s = collapseWhitespace(s)
	s = escapeMarkdown(s)

	return truncate(s, maxLen)
}

// stripForbiddenRunes removes ASCII control characters, invisible and
// bidi-override Unicode (a documented prompt-smuggling vector), and angle
// brackets.
func stripForbiddenRunes(s string) string {
	var b strings.Builder

	b.Grow(len(s))

	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			// Whitespace collapse handles these.
			b.WriteRune(' ')
		case r < 0x20 || r == 0x7f:
			// ASCII control characters.
		case r == '<' || r == '>':
		case isInvisible(r):
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}

// isInvisible reports whether r is a zero-width, bidi-override, or other
// invisible formatting rune.
func isInvisible(r rune) bool {
	switch {
	case r >= 0x200B && r <= 0x200F: // zero-width space/joiner, LRM, RLM
		return true
	case r >= 0x202A && r <= 0x202E: // bidi embedding/override
		return true
	case r >= 0x2060 && r <= 0x2064: // word joiner, invisible operators
		return true
	case r >= 0x2066 && r <= 0x2069: // bidi isolates
		return true
	case r == 0xFEFF || r == 0x00AD || r == 0x061C || r == 0x180E:
		return true
	}

	return false
}

// collapseWhitespace folds runs of whitespace into single spaces and trims.
func collapseWhitespace(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// escapeMarkdown backslash-escapes markdown metacharacters. A metacharacter
// already preceded by a backslash is left alone, which keeps the function
// idempotent.
func escapeMarkdown(s string) string {
	var b strings.Builder

	b.Grow(len(s) * 2)

	prev := rune(0)

	for _, r := range s {
		if strings.ContainsRune(markdownMeta, r) && prev != '\\' {
			b.WriteRune('\\')
		}

		b.WriteRune(r)

		prev = r
	}

	return b.String()
}

// truncate bounds s to maxLen runes, appending an ellipsis when cut.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}

	return string(runes[:maxLen]) + Ellipsis
}
