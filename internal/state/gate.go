package state

import "time"

// ShouldSuppress reports whether a fingerprint is inside its cooldown
// window. A suppressed hit must NOT extend the cooldown, otherwise an
// identical blocker raised every few seconds would never log again once
// the window elapsed; only allowed events record fingerprints.
//
// Eviction is lazy: an expired entry is simply treated as absent and will
// be overwritten by the next allowed event. Both functions are meant to run
// inside a Registry.Update callback.
func ShouldSuppress(sess *Session, fingerprint string, now time.Time) bool {
	expiry, ok := sess.CooldownHashes[fingerprint]
	if !ok {
		return false
	}

	return now.Before(expiry)
}

// RecordFingerprint inserts or refreshes a fingerprint's cooldown expiry.
// Called only for events that passed the gate.
func RecordFingerprint(sess *Session, fingerprint string, now time.Time, cooldown time.Duration) {
	if sess.CooldownHashes == nil {
		sess.CooldownHashes = make(map[string]time.Time)
	}

	sess.CooldownHashes[fingerprint] = now.Add(cooldown)
}
