package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/nightshift-sh/nightshift/internal/blockerlog"
	"github.com/nightshift-sh/nightshift/internal/engine"
	"github.com/nightshift-sh/nightshift/internal/parser"
	"github.com/nightshift-sh/nightshift/internal/state"
	"github.com/nightshift-sh/nightshift/pkg/hook"
	"github.com/nightshift-sh/nightshift/pkg/logger"
)

var hookEvent string

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Handle one host event delivered on stdin",
	Long: `Reads a single host event as JSON from stdin, runs it through the
continuation engine, and writes the synthetic response (if any) as JSON to
stdout. Intended to be wired as the host runtime's hook command.`,
	RunE: runHook,
}

func init() {
	rootCmd.AddCommand(hookCmd)
	hookCmd.Flags().StringVarP(
		&hookEvent,
		"event",
		"e",
		"",
		"Host event name (SessionIdle, PermissionAsk, ToolCall, ...)",
	)
	_ = hookCmd.MarkFlagRequired("event")
}

func runHook(_ *cobra.Command, _ []string) error {
	cfg, _ := loadConfig(logger.NewNoOpLogger())

	log, err := setupLogger(cfg)
	if err != nil {
		// Logging must never block a decision.
		fmt.Fprintf(os.Stderr, "nightshift: logger unavailable: %v\n", err)

		log = logger.NewNoOpLogger()
	}

	event, err := parser.NewJSONParser(os.Stdin).Parse(hookEvent)
	if err != nil {
		if errors.Is(err, parser.ErrEmptyInput) {
			log.Info("no input provided, passing through")

			return nil
		}

		return errors.Wrap(err, "failed to parse input")
	}

	log.Info("hook invoked",
		"event", event.Kind.String(),
		"session_id", event.SessionID,
	)

	// The host composes its system prompt before any session state exists,
	// so this event short-circuits the engine entirely.
	if event.Kind == hook.EventSystemPromptBuild {
		return writeJSON(os.Stdout, map[string][]string{
			"system_prompt_additions": engine.SystemPromptInstructions(
				cfg.GetContinuation().GetCompletionMarker(),
			),
		})
	}

	workDir, err := os.Getwd()
	if err != nil {
		return errors.Wrap(err, "failed to get working directory")
	}

	// Each invocation handles one event and exits, so the session state is
	// carried between processes through the state file. Without it the
	// cooldown, cap, and abort bookkeeping would reset on every event.
	statePath, err := blockerlog.ResolveWithinRoot(cfg.GetState().GetFile(), workDir)
	if err != nil {
		return errors.Wrap(err, "failed to resolve state file")
	}

	registry := state.NewRegistry(
		cfg.GetDivert().IsEnabled(),
		state.WithLogger(log),
		state.WithStateFile(statePath),
	)

	if err := registry.Load(); err != nil {
		log.Error("failed to load session state, starting fresh",
			"error", err.Error(),
		)
	}
	writer := blockerlog.NewWriter(
		cfg.GetDivert(),
		workDir,
		blockerlog.WithLogger(log),
	)

	eng := engine.New(
		cfg,
		registry,
		writer,
		&stdoutInjector{out: os.Stdout},
		engine.WithLogger(log),
	)

	resp, err := eng.HandleEvent(context.Background(), event)
	if err != nil {
		return errors.Wrap(err, "failed to handle event")
	}

	if err := registry.Save(); err != nil {
		log.Error("failed to save session state",
			"error", err.Error(),
		)
	}

	if resp == nil {
		return nil
	}

	return writeJSON(os.Stdout, resp)
}

// stdoutInjector hands continuation prompts back to the host through the
// hook's stdout channel, the only outbound path a one-shot invocation has.
type stdoutInjector struct {
	out *os.File
}

// injectEnvelope is the wire shape the host expects for prompt injection.
type injectEnvelope struct {
	Action    string `json:"action"`
	SessionID string `json:"session_id"`
	Prompt    string `json:"prompt"`
}

func (s *stdoutInjector) Inject(_ context.Context, sessionID, body string) error {
	return writeJSON(s.out, &injectEnvelope{
		Action:    "inject_prompt",
		SessionID: sessionID,
		Prompt:    body,
	})
}

func writeJSON(out *os.File, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "failed to marshal output")
	}

	if _, err := fmt.Fprintln(out, string(data)); err != nil {
		return errors.Wrap(err, "failed to write output")
	}

	return nil
}
