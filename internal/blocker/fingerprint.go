package blocker

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"unicode"
)

// ComputeFingerprint returns a stable hex digest of the (question, context)
// pair. Both parts are whitespace-normalized and lowercased so trivially
// reworded repeats hash alike, and each part is length-prefixed before
// hashing so no delimiter choice can make distinct pairs collide.
func ComputeFingerprint(question, context string) string {
	digest := sha256.New()

	for _, part := range []string{normalize(question), normalize(context)} {
		var length [8]byte

		binary.BigEndian.PutUint64(length[:], uint64(len(part)))
		digest.Write(length[:])
		digest.Write([]byte(part))
	}

	return hex.EncodeToString(digest.Sum(nil))
}

// normalize folds case and collapses whitespace runs to single spaces.
func normalize(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)

	return strings.ToLower(strings.Join(fields, " "))
}
