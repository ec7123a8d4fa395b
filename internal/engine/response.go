package engine

import (
	"fmt"
	"strings"

	"github.com/nightshift-sh/nightshift/internal/blocker"
	"github.com/nightshift-sh/nightshift/internal/sanitize"
)

// PermissionDecision is the synthetic verdict returned to the host for an
// intercepted event.
type PermissionDecision string

const (
	// DecisionAllow lets the operation proceed.
	DecisionAllow PermissionDecision = "allow"

	// DecisionDeny refuses the operation with a reason.
	DecisionDeny PermissionDecision = "deny"
)

// Response is the synthetic reply handed back to the host for an event
// that was diverted. A nil Response means pass-through: the host's normal
// prompt flow takes over.
type Response struct {
	// Decision is the permission verdict.
	Decision PermissionDecision `json:"decision"`

	// Reason is the agent-visible explanation.
	Reason string `json:"reason"`

	// BlockerID references the recorded blocker, when one exists.
	BlockerID string `json:"blocker_id,omitempty"`
}

// recordedResponse tells the agent its question was captured and it should
// keep working. The question text is interpolated into agent-visible text,
// so it passes through the prompt sanitizer first.
func recordedResponse(b *blocker.Blocker) *Response {
	return &Response{
		Decision:  DecisionDeny,
		BlockerID: b.ID,
		Reason: fmt.Sprintf(
			"Recorded as blocker %s (%s): %q. A human will resolve it later; "+
				"continue with unrelated work and do not ask again.",
			b.ID, b.Category, sanitize.Prompt(b.Question),
		),
	}
}

// handledResponse answers a suppressed event exactly as if it had been
// recorded. Duplicates and capped events must look handled to the agent;
// visible suppression would defeat uninterrupted autonomy.
func handledResponse(b *blocker.Blocker) *Response {
	return &Response{
		Decision: DecisionDeny,
		Reason: fmt.Sprintf(
			"Already tracked as a pending blocker: %q. A human will resolve it "+
				"later; continue with unrelated work and do not ask again.",
			sanitize.Prompt(b.Question),
		),
	}
}

// softBlockerResponse acknowledges a soft blocker the agent decided itself.
func softBlockerResponse(b *blocker.Blocker) *Response {
	return &Response{
		Decision:  DecisionAllow,
		BlockerID: b.ID,
		Reason: fmt.Sprintf(
			"Recorded decision %s for later review; proceed with %q.",
			b.ID, sanitize.Prompt(b.ChosenOption),
		),
	}
}

// continuationPrompt is the synthetic user message injected on idle ticks.
// It carries no session-derived text beyond the completion marker, which is
// operator-configured but sanitized anyway.
func continuationPrompt(completionMarker string) string {
	var sb strings.Builder

	sb.WriteString("Continue working through the remaining tasks autonomously. ")
	sb.WriteString("Blocking questions have been recorded for a human to resolve; ")
	sb.WriteString("do not wait on them, pick the next unrelated task instead. ")
	sb.WriteString("When no work remains, reply with ")
	sb.WriteString(sanitize.Prompt(completionMarker))
	sb.WriteString(" and stop.")

	return sb.String()
}

// SystemPromptInstructions returns the instruction strings appended to the
// host's system prompt so the agent knows how diversion behaves.
func SystemPromptInstructions(completionMarker string) []string {
	marker := sanitize.Prompt(completionMarker)

	return []string{
		"You are running unattended. When you hit a blocking question " +
			"(permission, architecture, security, destructive, deployment, or " +
			"a question for the user), it is recorded for a human to resolve " +
			"later; continue with unrelated work instead of waiting.",
		"For decisions you can safely make yourself, record them with the " +
			"record_blocker tool, pick an option, and keep going.",
		"When every remaining task is done or blocked, reply with " +
			marker + " to signal completion.",
	}
}
