package engine

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/nightshift-sh/nightshift/internal/blocker"
	"github.com/nightshift-sh/nightshift/internal/state"
)

// tickOutcome is the decision an idle tick arrives at.
type tickOutcome int

const (
	tickInject tickOutcome = iota
	tickRecovering
	tickAborted
	tickCompleted
	tickDisabled
	tickCapped
	tickCooling
)

// String names the outcome for logging.
func (o tickOutcome) String() string {
	switch o {
	case tickInject:
		return "inject"
	case tickRecovering:
		return "recovering"
	case tickAborted:
		return "aborted"
	case tickCompleted:
		return "completed"
	case tickDisabled:
		return "disabled"
	case tickCapped:
		return "capped"
	default:
		return "cooling"
	}
}

// handleIdleTick is the continuation state machine, evaluated once per idle
// tick. The whole decision runs inside a single registry update so no other
// handler can observe half-applied transitions; only the injection call
// itself happens outside, with its result fed back afterwards.
//
// Injection does not require any blockers to exist: autonomous continuation
// is independent of blocker count, since the agent may have long-running
// non-blocked work.
func (e *Engine) handleIdleTick(ctx context.Context, sessionID string) {
	e.flushPendingWrites(sessionID)

	now := e.now()
	continuation := e.config.GetContinuation()
	outcome := tickInject

	e.registry.Update(sessionID, func(sess *state.Session) {
		outcome = e.evaluateTick(sess, now)
	})

	if outcome != tickInject {
		e.logger.Debug("idle tick, no injection",
			"session_id", sessionID,
			"outcome", outcome.String(),
		)

		return
	}

	body := continuationPrompt(continuation.GetCompletionMarker())

	if err := e.injector.Inject(ctx, sessionID, body); err != nil {
		// Not retried this tick; the next idle tick re-evaluates.
		if errors.Is(err, ErrInjectTimeout) {
			e.logger.Error("continuation prompt timed out",
				"session_id", sessionID,
				"timeout", continuation.GetInjectTimeout().String(),
			)
		} else {
			e.logger.Error("continuation prompt failed",
				"session_id", sessionID,
				"error", err.Error(),
			)
		}

		return
	}

	e.registry.Update(sessionID, func(sess *state.Session) {
		sess.RepromptCount++
		sess.LastRepromptTime = now
	})

	e.logger.Info("continuation prompt injected",
		"session_id", sessionID,
	)
}

// evaluateTick applies the per-tick state transitions and returns the
// outcome. Runs inside a registry update.
func (e *Engine) evaluateTick(sess *state.Session, now time.Time) tickOutcome {
	continuation := e.config.GetContinuation()

	// One-shot recovery guard: give the agent a full idle cycle to
	// stabilize after an error before automatic nudging resumes.
	if sess.IsRecovering {
		sess.IsRecovering = false

		return tickRecovering
	}

	// User cancellation hands control back to the human until they
	// explicitly re-enable.
	if sess.LastAssistantAborted {
		sess.DivertBlockers = false
		sess.LastAssistantAborted = false
		sess.RepromptCount = 0

		return tickAborted
	}

	// The reprompt cap is a rate limit within a window, not a lifetime cap.
	if sess.RepromptCount > 0 && now.Sub(sess.LastRepromptTime) > continuation.GetRepromptWindow() {
		sess.RepromptCount = 0
	}

	// The marker may appear anywhere in the last assistant message, even
	// repeated or surrounded by other text.
	marker := continuation.GetCompletionMarker()
	if marker != "" && strings.Contains(sess.LastMessageContent, marker) {
		sess.DivertBlockers = false
		sess.RepromptCount = 0
		sess.LastRepromptTime = time.Time{}

		return tickCompleted
	}

	if !sess.DivertBlockers || !continuation.IsEnabled() {
		return tickDisabled
	}

	if sess.RepromptCount >= continuation.GetMaxReprompts() {
		return tickCapped
	}

	if !sess.LastRepromptTime.IsZero() &&
		now.Sub(sess.LastRepromptTime) < continuation.GetCooldown() {
		return tickCooling
	}

	return tickInject
}

// flushPendingWrites retries blockers whose persistence failed. Records
// that fail again are re-queued ahead of anything enqueued meanwhile;
// records rejected for path security are dropped with a loud log, since
// retrying a misconfigured destination can never succeed.
func (e *Engine) flushPendingWrites(sessionID string) {
	var pending []*blocker.Blocker

	e.registry.Update(sessionID, func(sess *state.Session) {
		pending = sess.PendingWrites
		sess.PendingWrites = nil
	})

	if len(pending) == 0 {
		return
	}

	var failed []*blocker.Blocker

	for _, b := range pending {
		written, err := e.writer.Append(b)
		if err != nil {
			e.logger.Error("pending blocker rejected by path validation, dropping",
				"session_id", sessionID,
				"blocker", b.ID,
				"error", err.Error(),
			)

			continue
		}

		if !written {
			failed = append(failed, b)
		}
	}

	if len(failed) == 0 {
		e.logger.Debug("pending blocker writes flushed",
			"session_id", sessionID,
			"count", len(pending),
		)

		return
	}

	e.registry.Update(sessionID, func(sess *state.Session) {
		sess.PendingWrites = append(failed, sess.PendingWrites...)
	})
}
