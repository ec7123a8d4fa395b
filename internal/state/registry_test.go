package state_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nightshift-sh/nightshift/internal/blocker"
	"github.com/nightshift-sh/nightshift/internal/state"
)

var _ = Describe("Registry", func() {
	var registry *state.Registry

	BeforeEach(func() {
		registry = state.NewRegistry(true)
	})

	Describe("Update", func() {
		It("creates a session on first reference with the divert default", func() {
			var seen *state.Session

			registry.Update("s1", func(sess *state.Session) {
				seen = sess
			})

			Expect(seen).NotTo(BeNil())
			Expect(seen.ID).To(Equal("s1"))
			Expect(seen.DivertBlockers).To(BeTrue())
			Expect(registry.Len()).To(Equal(1))
		})

		It("seeds the toggle from a disabled default", func() {
			disabled := state.NewRegistry(false)

			var seen *state.Session

			disabled.Update("s1", func(sess *state.Session) {
				seen = sess
			})

			Expect(seen.DivertBlockers).To(BeFalse())
		})

		It("applies sequential mutations to the same record", func() {
			registry.Update("s1", func(sess *state.Session) {
				sess.RepromptCount = 2
			})
			registry.Update("s1", func(sess *state.Session) {
				sess.RepromptCount++
			})

			Expect(registry.Snapshot("s1").RepromptCount).To(Equal(3))
		})

		It("ignores an empty session ID", func() {
			registry.Update("", func(*state.Session) {
				Fail("callback must not run for an empty session ID")
			})

			Expect(registry.Len()).To(BeZero())
		})

		It("serializes concurrent mutations", func() {
			var wg sync.WaitGroup

			for range 50 {
				wg.Add(1)

				go func() {
					defer wg.Done()

					registry.Update("s1", func(sess *state.Session) {
						sess.RepromptCount++
					})
				}()
			}

			wg.Wait()

			Expect(registry.Snapshot("s1").RepromptCount).To(Equal(50))
		})
	})

	Describe("Snapshot", func() {
		It("returns nil for an unknown session", func() {
			Expect(registry.Snapshot("nope")).To(BeNil())
		})

		It("returns a deep copy", func() {
			registry.Update("s1", func(sess *state.Session) {
				sess.Blockers = append(sess.Blockers, &blocker.Blocker{ID: "b1"})
				sess.CooldownHashes["fp"] = time.Now()
			})

			snap := registry.Snapshot("s1")
			snap.Blockers = nil
			snap.CooldownHashes["other"] = time.Now()
			snap.RepromptCount = 99

			fresh := registry.Snapshot("s1")
			Expect(fresh.Blockers).To(HaveLen(1))
			Expect(fresh.CooldownHashes).NotTo(HaveKey("other"))
			Expect(fresh.RepromptCount).To(BeZero())
		})
	})

	Describe("Snapshots", func() {
		It("returns all sessions ordered by ID", func() {
			for _, id := range []string{"c", "a", "b"} {
				registry.Update(id, func(*state.Session) {})
			}

			snaps := registry.Snapshots()

			Expect(snaps).To(HaveLen(3))
			Expect(snaps[0].ID).To(Equal("a"))
			Expect(snaps[1].ID).To(Equal("b"))
			Expect(snaps[2].ID).To(Equal("c"))
		})
	})

	Describe("Delete", func() {
		It("removes the record entirely", func() {
			registry.Update("s1", func(sess *state.Session) {
				sess.RepromptCount = 4
			})

			registry.Delete("s1")

			Expect(registry.Snapshot("s1")).To(BeNil())
			Expect(registry.Len()).To(BeZero())
		})

		It("makes a later reference start fresh", func() {
			registry.Update("s1", func(sess *state.Session) {
				sess.DivertBlockers = false
				sess.RepromptCount = 4
			})

			registry.Delete("s1")

			var seen *state.Session

			registry.Update("s1", func(sess *state.Session) {
				seen = sess
			})

			Expect(seen.DivertBlockers).To(BeTrue())
			Expect(seen.RepromptCount).To(BeZero())
		})

		It("is a no-op for an unknown session", func() {
			registry.Delete("nope")

			Expect(registry.Len()).To(BeZero())
		})
	})
})
