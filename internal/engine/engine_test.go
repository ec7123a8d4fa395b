package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/nightshift-sh/nightshift/internal/blocker"
	"github.com/nightshift-sh/nightshift/internal/blockerlog"
	"github.com/nightshift-sh/nightshift/internal/engine"
	"github.com/nightshift-sh/nightshift/internal/state"
	"github.com/nightshift-sh/nightshift/pkg/config"
	"github.com/nightshift-sh/nightshift/pkg/hook"
)

var _ = Describe("Engine", func() {
	var (
		ctrl        *gomock.Controller
		injector    *engine.MockInjector
		registry    *state.Registry
		writer      *blockerlog.Writer
		eng         *engine.Engine
		cfg         *config.Config
		root        string
		currentTime time.Time
	)

	const sessionID = "sess-1"

	now := func() time.Time { return currentTime }

	permissionEvent := func(question string) *hook.Event {
		return &hook.Event{
			Kind:      hook.EventPermissionAsk,
			SessionID: sessionID,
			Permission: &hook.PermissionPayload{
				PermissionType: "file_write",
				Question:       question,
				Metadata:       map[string]string{"path": "main.go"},
			},
		}
	}

	handle := func(event *hook.Event) (*engine.Response, error) {
		return eng.HandleEvent(context.Background(), event)
	}

	logContents := func() string {
		data, err := os.ReadFile(filepath.Join(root, ".nightshift", "BLOCKERS.md"))
		if err != nil {
			return ""
		}

		return string(data)
	}

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		injector = engine.NewMockInjector(ctrl)
		root = GinkgoT().TempDir()
		currentTime = time.Date(2026, 3, 14, 2, 0, 0, 0, time.UTC)

		cfg = &config.Config{
			Divert: &config.DivertConfig{
				MaxBlockersPerRun: 4,
				Cooldown:          config.Duration(30 * time.Second),
			},
			Continuation: &config.ContinuationConfig{
				MaxReprompts:     5,
				RepromptWindow:   config.Duration(10 * time.Minute),
				Cooldown:         config.Duration(60 * time.Second),
				CompletionMarker: "ALL_TASKS_COMPLETE",
			},
		}

		registry = state.NewRegistry(true, state.WithTimeFunc(now))
		writer = blockerlog.NewWriter(cfg.GetDivert(), root,
			blockerlog.WithTimeFunc(now),
		)
		eng = engine.New(cfg, registry, writer, injector,
			engine.WithTimeFunc(now),
		)
	})

	Describe("HandleEvent", func() {
		It("rejects a nil event", func() {
			_, err := handle(nil)

			Expect(errors.Is(err, engine.ErrNilEvent)).To(BeTrue())
		})

		It("passes through unhandled lifecycle events", func() {
			resp, err := handle(&hook.Event{
				Kind:      hook.EventSessionCreated,
				SessionID: sessionID,
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(resp).To(BeNil())
			Expect(registry.Snapshot(sessionID)).NotTo(BeNil())
		})
	})

	Describe("permission asks", func() {
		It("diverts an interceptable ask into the blocker log", func() {
			resp, err := handle(permissionEvent("Write to main.go?"))

			Expect(err).NotTo(HaveOccurred())
			Expect(resp).NotTo(BeNil())
			Expect(resp.Decision).To(Equal(engine.DecisionDeny))
			Expect(resp.BlockerID).NotTo(BeEmpty())
			Expect(resp.Reason).To(ContainSubstring("Recorded as blocker"))

			Expect(logContents()).To(ContainSubstring("Write to main.go?"))
			Expect(logContents()).To(ContainSubstring(`permission=file\_write`))
		})

		It("passes through non-interceptable permission types", func() {
			resp, err := handle(&hook.Event{
				Kind:      hook.EventPermissionAsk,
				SessionID: sessionID,
				Permission: &hook.PermissionPayload{
					PermissionType: "billing_change",
					Question:       "Upgrade the plan?",
				},
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(resp).To(BeNil())
			Expect(logContents()).To(BeEmpty())
		})

		It("redacts credential metadata before it reaches the log", func() {
			event := permissionEvent("Call the API?")
			event.Permission.Metadata = map[string]string{
				"api_key": "sk-secret-123",
				"url":     "https://api.example.com",
			}

			_, err := handle(event)

			Expect(err).NotTo(HaveOccurred())
			Expect(logContents()).NotTo(ContainSubstring("sk-secret-123"))
			Expect(logContents()).To(ContainSubstring("REDACTED"))
		})

		It("answers a duplicate inside the cooldown as already tracked", func() {
			first, err := handle(permissionEvent("Write to main.go?"))
			Expect(err).NotTo(HaveOccurred())

			currentTime = currentTime.Add(10 * time.Second)

			second, err := handle(permissionEvent("Write to main.go?"))
			Expect(err).NotTo(HaveOccurred())

			Expect(second.Decision).To(Equal(engine.DecisionDeny))
			Expect(second.BlockerID).To(BeEmpty())
			Expect(second.Reason).To(ContainSubstring("Already tracked"))
			Expect(second.Reason).NotTo(Equal(first.Reason))

			Expect(strings.Count(logContents(), blockerlog.RecordMarkerPrefix)).
				To(Equal(1))
		})

		It("accepts the same question again after the cooldown", func() {
			_, err := handle(permissionEvent("Write to main.go?"))
			Expect(err).NotTo(HaveOccurred())

			currentTime = currentTime.Add(31 * time.Second)

			resp, err := handle(permissionEvent("Write to main.go?"))
			Expect(err).NotTo(HaveOccurred())

			Expect(resp.BlockerID).NotTo(BeEmpty())
			Expect(strings.Count(logContents(), blockerlog.RecordMarkerPrefix)).
				To(Equal(2))
		})

		It("suppresses beyond the per-session cap but still answers", func() {
			questions := []string{"q1?", "q2?", "q3?", "q4?"}
			for _, q := range questions {
				_, err := handle(permissionEvent(q))
				Expect(err).NotTo(HaveOccurred())
			}

			resp, err := handle(permissionEvent("q5?"))

			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Decision).To(Equal(engine.DecisionDeny))
			Expect(resp.BlockerID).To(BeEmpty())
			Expect(strings.Count(logContents(), blockerlog.RecordMarkerPrefix)).
				To(Equal(4))
		})

		It("passes through when diversion is disabled for the session", func() {
			eng.SetDivert(sessionID, false)

			resp, err := handle(permissionEvent("Write to main.go?"))

			Expect(err).NotTo(HaveOccurred())
			Expect(resp).To(BeNil())
			Expect(logContents()).To(BeEmpty())
		})

		It("propagates a blocker log destination outside the project root", func() {
			cfg.Divert.BlockersFile = "../../escape.md"

			_, err := handle(permissionEvent("Write to main.go?"))

			Expect(errors.Is(err, blockerlog.ErrPathOutsideRoot)).To(BeTrue())
		})
	})

	Describe("record_blocker tool calls", func() {
		toolEvent := func(input hook.ToolInput) *hook.Event {
			return &hook.Event{
				Kind:      hook.EventToolCall,
				SessionID: sessionID,
				Tool: &hook.ToolPayload{
					Name:  engine.RecordBlockerTool,
					Input: input,
				},
			}
		}

		It("records a soft blocker and allows the chosen option", func() {
			falseVal := false

			resp, err := handle(toolEvent(hook.ToolInput{
				Question:        "Which store backs the cache?",
				Category:        "architecture",
				BlocksProgress:  &falseVal,
				Options:         []string{"badger", "bolt"},
				ChosenOption:    "bolt",
				ChosenReasoning: "fewer moving parts",
			}))

			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Decision).To(Equal(engine.DecisionAllow))
			Expect(resp.Reason).To(ContainSubstring("bolt"))
			Expect(logContents()).To(ContainSubstring("architecture"))
			Expect(logContents()).To(ContainSubstring("**Chosen**: bolt"))
		})

		It("treats an absent blocks_progress as a hard blocker", func() {
			resp, err := handle(toolEvent(hook.ToolInput{
				Question: "May I drop the staging database?",
				Category: "destructive",
			}))

			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Decision).To(Equal(engine.DecisionDeny))
		})

		It("rejects malformed tool input as a validation error", func() {
			_, err := handle(toolEvent(hook.ToolInput{Category: "question"}))

			Expect(errors.Is(err, blocker.ErrInvalidBlocker)).To(BeTrue())
			Expect(logContents()).To(BeEmpty())
		})

		It("ignores other tools", func() {
			resp, err := handle(&hook.Event{
				Kind:      hook.EventToolCall,
				SessionID: sessionID,
				Tool:      &hook.ToolPayload{Name: "web_search"},
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(resp).To(BeNil())
		})
	})

	Describe("blocked command runs", func() {
		It("records a destructive blocker with a redacted reason", func() {
			resp, err := handle(&hook.Event{
				Kind:      hook.EventCommandRun,
				SessionID: sessionID,
				Command: &hook.CommandPayload{
					Command: "deploy --all",
					Blocked: true,
					Reason:  "requires token=ghp_secret approval",
				},
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Decision).To(Equal(engine.DecisionDeny))
			Expect(logContents()).To(ContainSubstring("destructive"))
			Expect(logContents()).To(ContainSubstring("deploy --all"))
			Expect(logContents()).NotTo(ContainSubstring("ghp_secret"))
		})

		It("ignores commands the host allowed", func() {
			resp, err := handle(&hook.Event{
				Kind:      hook.EventCommandRun,
				SessionID: sessionID,
				Command:   &hook.CommandPayload{Command: "go build ./..."},
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(resp).To(BeNil())
		})
	})

	Describe("session teardown", func() {
		It("destroys state so a reused ID starts fresh", func() {
			_, err := handle(permissionEvent("Write to main.go?"))
			Expect(err).NotTo(HaveOccurred())

			_, err = handle(&hook.Event{
				Kind:      hook.EventSessionDeleted,
				SessionID: sessionID,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(registry.Snapshot(sessionID)).To(BeNil())

			// Same question immediately again: no cooldown survives deletion.
			resp, err := handle(permissionEvent("Write to main.go?"))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.BlockerID).NotTo(BeEmpty())
		})
	})
})

var _ = Describe("State carried across invocations", func() {
	var (
		ctrl        *gomock.Controller
		cfg         *config.Config
		root        string
		statePath   string
		currentTime time.Time
	)

	const sessionID = "sess-1"

	now := func() time.Time { return currentTime }

	// newEngine builds an engine the way one hook invocation would: a fresh
	// registry hydrated from the shared state file.
	newEngine := func() (*engine.Engine, *state.Registry) {
		registry := state.NewRegistry(true,
			state.WithStateFile(statePath),
			state.WithTimeFunc(now),
		)
		Expect(registry.Load()).To(Succeed())

		writer := blockerlog.NewWriter(cfg.GetDivert(), root,
			blockerlog.WithTimeFunc(now),
		)

		injector := engine.NewMockInjector(ctrl)
		injector.EXPECT().
			Inject(gomock.Any(), sessionID, gomock.Any()).
			Return(nil).
			AnyTimes()

		return engine.New(cfg, registry, writer, injector,
			engine.WithTimeFunc(now),
		), registry
	}

	permissionEvent := func(question string) *hook.Event {
		return &hook.Event{
			Kind:      hook.EventPermissionAsk,
			SessionID: sessionID,
			Permission: &hook.PermissionPayload{
				PermissionType: "file_write",
				Question:       question,
			},
		}
	}

	idleEvent := &hook.Event{Kind: hook.EventSessionIdle, SessionID: sessionID}

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		root = GinkgoT().TempDir()
		statePath = filepath.Join(root, ".nightshift", "state.json")
		currentTime = time.Date(2026, 3, 14, 2, 0, 0, 0, time.UTC)

		cfg = &config.Config{
			Divert: &config.DivertConfig{
				MaxBlockersPerRun: 4,
				Cooldown:          config.Duration(30 * time.Second),
			},
			Continuation: &config.ContinuationConfig{
				MaxReprompts:     1,
				RepromptWindow:   config.Duration(10 * time.Minute),
				Cooldown:         config.Duration(60 * time.Second),
				CompletionMarker: "ALL_TASKS_COMPLETE",
			},
		}
	})

	It("suppresses a duplicate ask raised in a later invocation", func() {
		first, firstRegistry := newEngine()

		resp, err := first.HandleEvent(context.Background(), permissionEvent("Write to main.go?"))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.BlockerID).NotTo(BeEmpty())
		Expect(firstRegistry.Save()).To(Succeed())

		currentTime = currentTime.Add(time.Second)

		second, _ := newEngine()

		resp, err = second.HandleEvent(context.Background(), permissionEvent("Write to main.go?"))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp).NotTo(BeNil())
		Expect(resp.BlockerID).To(BeEmpty())
		Expect(resp.Reason).To(ContainSubstring("Already tracked"))

		writer := blockerlog.NewWriter(cfg.GetDivert(), root)
		count, err := writer.Count()
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(1))
	})

	It("carries the reprompt cap into a later invocation", func() {
		first, firstRegistry := newEngine()

		_, err := first.HandleEvent(context.Background(), idleEvent)
		Expect(err).NotTo(HaveOccurred())
		Expect(firstRegistry.Snapshot(sessionID).RepromptCount).To(Equal(1))
		Expect(firstRegistry.Save()).To(Succeed())

		currentTime = currentTime.Add(2 * time.Minute)

		second, secondRegistry := newEngine()

		_, err = second.HandleEvent(context.Background(), idleEvent)
		Expect(err).NotTo(HaveOccurred())
		Expect(secondRegistry.Snapshot(sessionID).RepromptCount).To(Equal(1))
	})

	It("honors an abort flag set by an earlier invocation", func() {
		first, firstRegistry := newEngine()

		_, err := first.HandleEvent(context.Background(), &hook.Event{
			Kind:      hook.EventMessageUpdated,
			SessionID: sessionID,
			Message: &hook.MessagePayload{
				Role:    hook.RoleAssistant,
				Aborted: true,
			},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(firstRegistry.Save()).To(Succeed())

		second, secondRegistry := newEngine()

		_, err = second.HandleEvent(context.Background(), idleEvent)
		Expect(err).NotTo(HaveOccurred())
		Expect(secondRegistry.Snapshot(sessionID).DivertBlockers).To(BeFalse())
		Expect(secondRegistry.Snapshot(sessionID).RepromptCount).To(BeZero())
	})
})
