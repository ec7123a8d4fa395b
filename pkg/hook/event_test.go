package hook_test

import (
	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nightshift-sh/nightshift/pkg/hook"
)

var _ = Describe("EventKind", func() {
	It("round-trips every wire name", func() {
		for _, name := range []string{
			"SessionCreated", "SessionIdle", "SessionDeleted",
			"SessionCompacted", "SessionError", "MessageUpdated",
			"PermissionAsk", "ToolCall", "CommandRun", "UserMessage",
			"SystemPromptBuild",
		} {
			kind, err := hook.ParseEventKind(name)

			Expect(err).NotTo(HaveOccurred())
			Expect(kind.String()).To(Equal(name))
		}
	})

	It("rejects unknown names", func() {
		_, err := hook.ParseEventKind("Bogus")

		Expect(errors.Is(err, hook.ErrUnknownEvent)).To(BeTrue())
	})

	It("stringifies the zero value as unknown", func() {
		Expect(hook.EventUnknown.String()).To(Equal("Unknown"))
	})
})

var _ = Describe("IsInterceptablePermission", func() {
	It("accepts the divertable permission types", func() {
		for _, permissionType := range []string{
			"tool_use", "file_write", "file_edit",
			"shell_command", "network_request", "mcp_tool",
		} {
			Expect(hook.IsInterceptablePermission(permissionType)).To(BeTrue())
		}
	})

	It("rejects everything else", func() {
		Expect(hook.IsInterceptablePermission("billing_change")).To(BeFalse())
		Expect(hook.IsInterceptablePermission("")).To(BeFalse())
	})
})
