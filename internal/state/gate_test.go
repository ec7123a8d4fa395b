package state_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nightshift-sh/nightshift/internal/state"
)

var _ = Describe("Dedup gate", func() {
	var (
		sess *state.Session
		base time.Time
	)

	const cooldown = 30 * time.Second

	BeforeEach(func() {
		sess = &state.Session{
			ID:             "s1",
			CooldownHashes: map[string]time.Time{},
		}
		base = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	})

	It("allows an unseen fingerprint", func() {
		Expect(state.ShouldSuppress(sess, "fp", base)).To(BeFalse())
	})

	It("suppresses a repeat inside the cooldown window", func() {
		state.RecordFingerprint(sess, "fp", base, cooldown)

		Expect(state.ShouldSuppress(sess, "fp", base.Add(10*time.Second))).To(BeTrue())
	})

	It("allows a repeat once the window has elapsed", func() {
		state.RecordFingerprint(sess, "fp", base, cooldown)

		Expect(state.ShouldSuppress(sess, "fp", base.Add(cooldown))).To(BeFalse())
		Expect(state.ShouldSuppress(sess, "fp", base.Add(cooldown+time.Second))).To(BeFalse())
	})

	It("does not extend the cooldown on suppressed hits", func() {
		state.RecordFingerprint(sess, "fp", base, cooldown)

		// Hammer the gate inside the window; only RecordFingerprint may
		// move the expiry, and it is never called for suppressed events.
		for i := 1; i <= 29; i++ {
			Expect(state.ShouldSuppress(sess, "fp", base.Add(time.Duration(i)*time.Second))).
				To(BeTrue())
		}

		Expect(state.ShouldSuppress(sess, "fp", base.Add(cooldown))).To(BeFalse())
	})

	It("refreshes the expiry when an allowed event re-records", func() {
		state.RecordFingerprint(sess, "fp", base, cooldown)
		state.RecordFingerprint(sess, "fp", base.Add(cooldown), cooldown)

		Expect(state.ShouldSuppress(sess, "fp", base.Add(cooldown+10*time.Second))).
			To(BeTrue())
	})

	It("tracks fingerprints independently", func() {
		state.RecordFingerprint(sess, "fp-a", base, cooldown)

		Expect(state.ShouldSuppress(sess, "fp-a", base.Add(time.Second))).To(BeTrue())
		Expect(state.ShouldSuppress(sess, "fp-b", base.Add(time.Second))).To(BeFalse())
	})

	It("initializes the hash map on first record", func() {
		bare := &state.Session{ID: "s2"}

		state.RecordFingerprint(bare, "fp", base, cooldown)

		Expect(state.ShouldSuppress(bare, "fp", base.Add(time.Second))).To(BeTrue())
	})
})
