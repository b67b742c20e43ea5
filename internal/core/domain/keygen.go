package domain

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// KeyPrefix is the fixed leading segment of every generated license key.
const KeyPrefix = "NTRS"

// keyAlphabet deliberately omits 0/O and 1/I so keys survive being read over
// the phone or typed from a printed card.
const keyAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	keySegments   = 4
	segmentLength = 4
)

// GenerateKey produces a license key of the form PREFIX-XXXX-XXXX-XXXX-XXXX.
// The generator makes no uniqueness promise; the store's unique index on the
// key column is the arbiter, and a collision surfaces as ErrDuplicateKey at
// insert time.
func GenerateKey() (string, error) {
	buf := make([]byte, keySegments*segmentLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	var b strings.Builder
	b.WriteString(KeyPrefix)
	for i, c := range buf {
		if i%segmentLength == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(keyAlphabet[int(c)%len(keyAlphabet)])
	}
	return b.String(), nil
}

// CanonicalKey normalizes a user-supplied key for lookup: surrounding
// whitespace stripped, letters uppercased. Keys are stored canonical.
func CanonicalKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// MaskKey redacts the middle segments of a key for alert payloads, keeping the
// prefix and the outermost segments visible:
//
//	NTRS-AB12-CD34-EF56-GH78 -> NTRS-AB12-****-****-GH78
//
// Keys that do not match the expected shape fall back to a short prefix plus a
// fixed mask.
func MaskKey(key string) string {
	parts := strings.Split(key, "-")
	if len(parts) >= 5 {
		return fmt.Sprintf("%s-%s-****-****-%s", parts[0], parts[1], parts[4])
	}
	if len(key) > 8 {
		return key[:8] + "****"
	}
	return key + "****"
}
