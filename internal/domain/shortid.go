package domain

import (
	"encoding/base64"
	"encoding/binary"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// ShortIDFor derives the permalink hash of a bookmark id.
// Example: 1 -> 8 URL-safe characters, always the same for the same id.
func ShortIDFor(id int) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], xxhash.Sum64String(strconv.Itoa(id)))
	// 6 bytes encode to exactly 8 base64 characters, no padding
	return base64.RawURLEncoding.EncodeToString(buf[:6])
}

// NoteURL returns the pseudo-URL used by notes.
func NoteURL(shortID string) string {
	return NotePrefix + shortID
}
