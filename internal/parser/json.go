// Package parser narrows raw host JSON payloads into typed hook events.
package parser

import (
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/nightshift-sh/nightshift/pkg/hook"
)

var (
	// ErrEmptyInput is returned when the input is empty.
	ErrEmptyInput = errors.New("empty input")

	// ErrInvalidJSON is returned when the input is not valid JSON.
	ErrInvalidJSON = errors.New("invalid JSON")

	// ErrMissingSessionID is returned when an event lacks a session ID.
	ErrMissingSessionID = errors.New("missing session_id")
)

// jsonInput is the raw wire structure delivered by the host. Only the
// fields relevant to the named event are expected to be populated.
type jsonInput struct {
	SessionID string `json:"session_id,omitempty"`

	// Session error fields.
	Error     string `json:"error,omitempty"`
	UserAbort bool   `json:"user_abort,omitempty"`

	// Message update fields.
	Role     string `json:"role,omitempty"`
	Aborted  bool   `json:"aborted,omitempty"`
	Finished bool   `json:"finished,omitempty"`
	Content  string `json:"content,omitempty"`

	// Permission ask fields.
	PermissionType string            `json:"permission_type,omitempty"`
	Question       string            `json:"question,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`

	// Tool call fields.
	ToolName  string          `json:"tool_name,omitempty"`
	ToolInput json.RawMessage `json:"tool_input,omitempty"`

	// Command run fields.
	Command string `json:"command,omitempty"`
	Blocked bool   `json:"blocked,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// JSONParser parses one JSON event payload from a reader.
type JSONParser struct {
	reader io.Reader
}

// NewJSONParser creates a JSONParser reading from the given reader.
func NewJSONParser(reader io.Reader) *JSONParser {
	return &JSONParser{reader: reader}
}

// Parse reads the payload and narrows it into a typed event for the named
// event kind. Unknown kinds and malformed payloads are rejected here so the
// engine never sees an untyped payload.
func (p *JSONParser) Parse(eventName string) (*hook.Event, error) {
	kind, err := hook.ParseEventKind(eventName)
	if err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(p.reader)
	if err != nil {
		return nil, errors.Wrap(err, "reading input")
	}

	if len(raw) == 0 {
		return nil, ErrEmptyInput
	}

	var input jsonInput

	if unmarshalErr := json.Unmarshal(raw, &input); unmarshalErr != nil {
		return nil, errors.CombineErrors(ErrInvalidJSON, unmarshalErr)
	}

	if input.SessionID == "" {
		return nil, errors.Wrapf(ErrMissingSessionID, "event %s", eventName)
	}

	event := &hook.Event{
		Kind:      kind,
		SessionID: input.SessionID,
	}

	switch kind {
	case hook.EventSessionError:
		event.SessionError = &hook.SessionErrorPayload{
			UserAbort: input.UserAbort,
			Message:   input.Error,
		}
	case hook.EventMessageUpdated:
		event.Message = &hook.MessagePayload{
			Role:     hook.Role(input.Role),
			Aborted:  input.Aborted,
			Finished: input.Finished,
			Content:  input.Content,
		}
	case hook.EventPermissionAsk:
		event.Permission = &hook.PermissionPayload{
			PermissionType: input.PermissionType,
			Question:       input.Question,
			Metadata:       input.Metadata,
		}
	case hook.EventToolCall:
		tool, toolErr := parseToolPayload(input)
		if toolErr != nil {
			return nil, toolErr
		}

		event.Tool = tool
	case hook.EventCommandRun:
		event.Command = &hook.CommandPayload{
			Command: input.Command,
			Blocked: input.Blocked,
			Reason:  input.Reason,
		}
	case hook.EventUserMessage:
		event.User = &hook.UserMessagePayload{
			Content: input.Content,
		}
	default:
		// Lifecycle events carry no payload beyond the session ID.
	}

	return event, nil
}

// parseToolPayload decodes the tool arguments for a tool-call event.
func parseToolPayload(input jsonInput) (*hook.ToolPayload, error) {
	tool := &hook.ToolPayload{Name: input.ToolName}

	if len(input.ToolInput) > 0 {
		if err := json.Unmarshal(input.ToolInput, &tool.Input); err != nil {
			return nil, errors.CombineErrors(ErrInvalidJSON, err)
		}
	}

	return tool, nil
}
