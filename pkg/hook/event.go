// Package hook provides the typed event model for host hook payloads.
// The host delivers loosely-typed JSON; everything is narrowed into one of
// the closed event kinds here before it reaches the engine, which never
// operates on an untyped payload.
package hook

import "github.com/cockroachdb/errors"

// ErrUnknownEvent is returned when an event name is not recognized.
var ErrUnknownEvent = errors.New("unknown event kind")

// EventKind identifies the hook event being delivered.
type EventKind int

const (
	// EventUnknown is the zero value for unrecognized events.
	EventUnknown EventKind = iota

	// EventSessionCreated fires when the host starts a session.
	EventSessionCreated

	// EventSessionIdle fires on each idle tick of a session.
	EventSessionIdle

	// EventSessionDeleted fires on session teardown.
	EventSessionDeleted

	// EventSessionCompacted fires when the host compacts a session's history.
	EventSessionCompacted

	// EventSessionError fires when a session turn fails.
	EventSessionError

	// EventMessageUpdated fires when a message streams, finishes, or aborts.
	EventMessageUpdated

	// EventPermissionAsk fires when the agent asks for permission.
	EventPermissionAsk

	// EventToolCall fires when the agent invokes a plugin-owned tool.
	EventToolCall

	// EventCommandRun fires when a command execution is intercepted.
	EventCommandRun

	// EventUserMessage fires when a user-authored message arrives.
	EventUserMessage

	// EventSystemPromptBuild fires when the host assembles the system prompt.
	EventSystemPromptBuild
)

// eventKindNames maps kinds to their wire names.
var eventKindNames = map[EventKind]string{
	EventSessionCreated:    "SessionCreated",
	EventSessionIdle:       "SessionIdle",
	EventSessionDeleted:    "SessionDeleted",
	EventSessionCompacted:  "SessionCompacted",
	EventSessionError:      "SessionError",
	EventMessageUpdated:    "MessageUpdated",
	EventPermissionAsk:     "PermissionAsk",
	EventToolCall:          "ToolCall",
	EventCommandRun:        "CommandRun",
	EventUserMessage:       "UserMessage",
	EventSystemPromptBuild: "SystemPromptBuild",
}

// String returns the wire name of the event kind.
func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}

	return "Unknown"
}

// ParseEventKind parses a wire name into an EventKind.
func ParseEventKind(name string) (EventKind, error) {
	for kind, kindName := range eventKindNames {
		if kindName == name {
			return kind, nil
		}
	}

	return EventUnknown, errors.Wrapf(ErrUnknownEvent, "%q", name)
}

// Role identifies the author of a message.
type Role string

const (
	// RoleUser marks a user-authored message.
	RoleUser Role = "user"

	// RoleAssistant marks an agent-authored message.
	RoleAssistant Role = "assistant"
)

// SessionErrorPayload describes a session error event.
type SessionErrorPayload struct {
	// UserAbort is true when the error is a user-initiated interrupt.
	UserAbort bool

	// Message is the host-provided error text.
	Message string
}

// MessagePayload describes a message-update event.
type MessagePayload struct {
	// Role is the author of the message.
	Role Role

	// Aborted is true when this assistant turn was interrupted by the user.
	Aborted bool

	// Finished is true when the message finished streaming.
	Finished bool

	// Content is the current message text.
	Content string
}

// PermissionPayload describes a permission-ask interception.
type PermissionPayload struct {
	// PermissionType is the host's permission category for the ask.
	PermissionType string

	// Question is the verbatim prompt text shown to the user.
	Question string

	// Metadata carries structured arguments for the ask. Values may contain
	// credentials and must be redacted before leaving the boundary.
	Metadata map[string]string
}

// ToolPayload describes an explicit plugin tool invocation.
type ToolPayload struct {
	// Name is the tool name.
	Name string

	// Input holds the tool arguments.
	Input ToolInput
}

// ToolInput carries the arguments of the blocker-recording tool.
type ToolInput struct {
	// Question is the blocking question text.
	Question string `json:"question,omitempty"`

	// Context is free-form supporting context.
	Context string `json:"context,omitempty"`

	// Category is the blocker category name.
	Category string `json:"category,omitempty"`

	// BlocksProgress marks a hard blocker. Nil means hard.
	BlocksProgress *bool `json:"blocks_progress,omitempty"`

	// Options lists candidate choices for soft blockers.
	Options []string `json:"options,omitempty"`

	// ChosenOption is the option the agent picked, if any.
	ChosenOption string `json:"chosen_option,omitempty"`

	// ChosenReasoning explains the pick.
	ChosenReasoning string `json:"chosen_reasoning,omitempty"`
}

// CommandPayload describes an intercepted command execution.
type CommandPayload struct {
	// Command is the command line.
	Command string

	// Blocked is true when the host already refused the command.
	Blocked bool

	// Reason is the host's refusal reason, if any.
	Reason string
}

// UserMessagePayload describes a user-authored message arrival.
type UserMessagePayload struct {
	// Content is the message text.
	Content string
}

// Event is one narrowed host event. Exactly one payload pointer matching
// Kind is non-nil; lifecycle kinds carry no payload.
type Event struct {
	// Kind identifies the event.
	Kind EventKind

	// SessionID is the session the event belongs to.
	SessionID string

	// SessionError is set for EventSessionError.
	SessionError *SessionErrorPayload

	// Message is set for EventMessageUpdated.
	Message *MessagePayload

	// Permission is set for EventPermissionAsk.
	Permission *PermissionPayload

	// Tool is set for EventToolCall.
	Tool *ToolPayload

	// Command is set for EventCommandRun.
	Command *CommandPayload

	// User is set for EventUserMessage.
	User *UserMessagePayload
}

// HasSessionID returns true if a session ID is present.
func (e *Event) HasSessionID() bool {
	return e.SessionID != ""
}
