// Package engine implements the autonomous continuation core: event
// handlers that divert blocking questions into the blocker log, and the
// idle-time scheduler that keeps the agent working until it signals
// completion or the user takes control back.
package engine

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/nightshift-sh/nightshift/internal/blocker"
	"github.com/nightshift-sh/nightshift/internal/blockerlog"
	"github.com/nightshift-sh/nightshift/internal/sanitize"
	"github.com/nightshift-sh/nightshift/internal/state"
	"github.com/nightshift-sh/nightshift/pkg/config"
	"github.com/nightshift-sh/nightshift/pkg/hook"
	"github.com/nightshift-sh/nightshift/pkg/logger"
)

// ErrNilEvent is returned when a nil event reaches the engine.
var ErrNilEvent = errors.New("nil event")

// RecordBlockerTool is the plugin tool name the agent calls to record a
// blocker explicitly.
const RecordBlockerTool = "record_blocker"

// Engine wires the session registry, blocker log, and host injector into
// the event handlers. All handlers run to completion before the host
// delivers the next event for the plugin instance; per-session mutation is
// additionally serialized through Registry.Update.
type Engine struct {
	registry *state.Registry
	writer   *blockerlog.Writer
	injector Injector
	config   *config.Config
	logger   logger.Logger

	// now is injectable for tests.
	now func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.logger = log
		}
	}
}

// WithTimeFunc sets a custom time function for testing.
func WithTimeFunc(fn func() time.Time) Option {
	return func(e *Engine) {
		if fn != nil {
			e.now = fn
		}
	}
}

// New creates an Engine. The injector is wrapped with the configured
// prompt-injection timeout.
func New(
	cfg *config.Config,
	registry *state.Registry,
	writer *blockerlog.Writer,
	injector Injector,
	opts ...Option,
) *Engine {
	e := &Engine{
		registry: registry,
		writer:   writer,
		config:   cfg,
		logger:   logger.NewNoOpLogger(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	if injector != nil {
		e.injector = newTimeoutInjector(injector, cfg.GetContinuation().GetInjectTimeout())
	}

	return e
}

// HandleEvent dispatches one narrowed host event. The returned Response is
// non-nil only for intercepted events that were diverted; nil means
// pass-through. Validation failures surface as errors to the caller;
// ordinary I/O failures never do.
func (e *Engine) HandleEvent(ctx context.Context, event *hook.Event) (*Response, error) {
	if event == nil {
		return nil, ErrNilEvent
	}

	e.logger.Debug("event received",
		"kind", event.Kind.String(),
		"session_id", event.SessionID,
	)

	switch event.Kind {
	case hook.EventSessionCreated:
		// First reference creates the record with the configured default.
		e.registry.Update(event.SessionID, func(*state.Session) {})

		return nil, nil
	case hook.EventSessionIdle:
		e.handleIdleTick(ctx, event.SessionID)

		return nil, nil
	case hook.EventSessionDeleted:
		e.registry.Delete(event.SessionID)

		return nil, nil
	case hook.EventSessionCompacted:
		e.handleCompacted(event.SessionID)

		return nil, nil
	case hook.EventSessionError:
		e.handleSessionError(event.SessionID, event.SessionError)

		return nil, nil
	case hook.EventMessageUpdated:
		e.handleMessageUpdated(event.SessionID, event.Message)

		return nil, nil
	case hook.EventUserMessage:
		e.handleUserTakeover(event.SessionID)

		return nil, nil
	case hook.EventPermissionAsk:
		return e.handlePermissionAsk(event.SessionID, event.Permission)
	case hook.EventToolCall:
		return e.handleToolCall(event.SessionID, event.Tool)
	case hook.EventCommandRun:
		return e.handleCommandRun(event.SessionID, event.Command)
	default:
		return nil, nil
	}
}

// handlePermissionAsk diverts an interceptable permission prompt into the
// blocker log and answers it synthetically.
func (e *Engine) handlePermissionAsk(
	sessionID string,
	payload *hook.PermissionPayload,
) (*Response, error) {
	if payload == nil {
		return nil, nil
	}

	if !hook.IsInterceptablePermission(payload.PermissionType) {
		e.logger.Debug("permission type not interceptable",
			"permission_type", payload.PermissionType,
		)

		return nil, nil
	}

	b := &blocker.Blocker{
		SessionID:      sessionID,
		Category:       blocker.CategoryPermission,
		Question:       payload.Question,
		Context:        metadataContext(payload.PermissionType, payload.Metadata),
		BlocksProgress: true,
	}

	return e.recordBlocker(b)
}

// handleToolCall records a blocker the agent raised explicitly via the
// record_blocker tool. Malformed arguments are a validation failure
// reported to the caller, never silently coerced.
func (e *Engine) handleToolCall(
	sessionID string,
	payload *hook.ToolPayload,
) (*Response, error) {
	if payload == nil || payload.Name != RecordBlockerTool {
		return nil, nil
	}

	input := payload.Input

	// Absent blocksProgress means a hard blocker.
	blocksProgress := true
	if input.BlocksProgress != nil {
		blocksProgress = *input.BlocksProgress
	}

	b := &blocker.Blocker{
		SessionID:       sessionID,
		Category:        blocker.ParseCategory(input.Category),
		Question:        input.Question,
		Context:         input.Context,
		BlocksProgress:  blocksProgress,
		Options:         input.Options,
		ChosenOption:    input.ChosenOption,
		ChosenReasoning: input.ChosenReasoning,
	}

	return e.recordBlocker(b)
}

// handleCommandRun records a blocker for a command the host refused, so the
// refusal shows up in the morning review instead of stalling the session.
func (e *Engine) handleCommandRun(
	sessionID string,
	payload *hook.CommandPayload,
) (*Response, error) {
	if payload == nil || !payload.Blocked {
		return nil, nil
	}

	b := &blocker.Blocker{
		SessionID:      sessionID,
		Category:       blocker.CategoryDestructive,
		Question:       "Blocked command needs approval: " + payload.Command,
		Context:        sanitize.Redact(payload.Reason),
		BlocksProgress: true,
	}

	return e.recordBlocker(b)
}

// recordVerdict is the outcome of the in-state admission step.
type recordVerdict int

const (
	verdictAccepted recordVerdict = iota
	verdictDisabled
	verdictDuplicate
	verdictCapped
)

// recordBlocker runs the shared admit-persist-respond pipeline: validate at
// the boundary, fingerprint, gate against the cooldown set and the
// per-session cap, persist, and answer. The admission decision and the
// in-memory append happen atomically inside one registry update; only the
// file write sits outside, feeding failures back via pendingWrites.
func (e *Engine) recordBlocker(b *blocker.Blocker) (*Response, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	now := e.now()
	b.Timestamp = now
	b.Fingerprint = blocker.ComputeFingerprint(b.Question, b.Context)
	b.ID = blocker.NewID(now, b.SessionID, b.Fingerprint)

	if b.Clarified == "" {
		b.Clarified = blocker.ClarifiedPending
	}

	divert := e.config.GetDivert()
	verdict := verdictAccepted

	e.registry.Update(b.SessionID, func(sess *state.Session) {
		switch {
		case !sess.DivertBlockers:
			verdict = verdictDisabled
		case state.ShouldSuppress(sess, b.Fingerprint, now):
			verdict = verdictDuplicate
		case len(sess.Blockers) >= divert.GetMaxBlockersPerRun():
			verdict = verdictCapped
		default:
			state.RecordFingerprint(sess, b.Fingerprint, now, divert.GetCooldown())
			sess.Blockers = append(sess.Blockers, b)
			sess.LastBlockerTime = now
		}
	})

	switch verdict {
	case verdictDisabled:
		return nil, nil
	case verdictDuplicate:
		e.logger.Info("duplicate blocker suppressed by cooldown",
			"session_id", b.SessionID,
			"fingerprint", b.Fingerprint,
		)

		return handledResponse(b), nil
	case verdictCapped:
		e.logger.Info("blocker cap reached, suppressing",
			"session_id", b.SessionID,
			"cap", divert.GetMaxBlockersPerRun(),
		)

		return handledResponse(b), nil
	default:
	}

	written, err := e.writer.Append(b)
	if err != nil {
		// Path-security violations propagate loudly.
		return nil, err
	}

	if !written {
		e.registry.Update(b.SessionID, func(sess *state.Session) {
			sess.PendingWrites = append(sess.PendingWrites, b)
		})
	}

	if !b.BlocksProgress && b.ChosenOption != "" {
		return softBlockerResponse(b), nil
	}

	return recordedResponse(b), nil
}

// handleSessionError marks the session as recovering. A user-initiated
// abort is a strong signal that automatic counting should restart clean, so
// it additionally zeroes the reprompt bookkeeping.
func (e *Engine) handleSessionError(sessionID string, payload *hook.SessionErrorPayload) {
	userAbort := payload != nil && payload.UserAbort

	e.registry.Update(sessionID, func(sess *state.Session) {
		sess.IsRecovering = true

		if userAbort {
			sess.RepromptCount = 0
			sess.LastRepromptTime = time.Time{}
		}
	})

	e.logger.Info("session error observed",
		"session_id", sessionID,
		"user_abort", userAbort,
	)
}

// handleMessageUpdated tracks assistant content and the aborted-turn flag.
// The flag is scoped to exactly one aborted turn: any other assistant
// update (streaming or finishing) clears it, because a new turn starting
// supersedes the old abort.
func (e *Engine) handleMessageUpdated(sessionID string, payload *hook.MessagePayload) {
	if payload == nil {
		return
	}

	if payload.Role == hook.RoleUser {
		e.handleUserTakeover(sessionID)

		return
	}

	e.registry.Update(sessionID, func(sess *state.Session) {
		sess.LastAssistantAborted = payload.Aborted

		if payload.Content != "" {
			sess.LastMessageContent = payload.Content
		}
	})
}

// handleUserTakeover reacts to a user-authored message: the user is taking
// manual control, so diversion stops and the reprompt bookkeeping resets
// immediately rather than on the next idle tick.
func (e *Engine) handleUserTakeover(sessionID string) {
	tookOver := false

	e.registry.Update(sessionID, func(sess *state.Session) {
		if !sess.DivertBlockers {
			return
		}

		sess.DivertBlockers = false
		sess.RepromptCount = 0
		sess.LastRepromptTime = time.Time{}
		tookOver = true
	})

	if tookOver {
		e.logger.Info("user took manual control, diversion disabled",
			"session_id", sessionID,
		)
	}
}

// handleCompacted clears the tracked message content: the host rewrote the
// session history, so the old tail is no longer meaningful for
// completion-marker scanning. The session record itself survives.
func (e *Engine) handleCompacted(sessionID string) {
	e.registry.Update(sessionID, func(sess *state.Session) {
		sess.LastMessageContent = ""
	})
}

// SetDivert flips the per-session diversion toggle.
func (e *Engine) SetDivert(sessionID string, enabled bool) {
	e.registry.Update(sessionID, func(sess *state.Session) {
		sess.DivertBlockers = enabled
	})
}

// metadataContext renders redacted permission metadata into the blocker's
// context text, with keys sorted for stable fingerprints.
func metadataContext(permissionType string, metadata map[string]string) string {
	redacted := sanitize.RedactMap(metadata)

	keys := make([]string, 0, len(redacted))
	for key := range redacted {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	parts = append(parts, "permission="+permissionType)

	for _, key := range keys {
		parts = append(parts, key+"="+redacted[key])
	}

	return strings.Join(parts, " ")
}
