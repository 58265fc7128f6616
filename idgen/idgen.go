// Package idgen generates identifiers for outreach records.
//
// Row identifiers are prefixed UUIDv7 strings so they sort by creation time.
// Invite tokens are short base-36 strings because they end up in URLs.
package idgen

import (
	"crypto/rand"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// NanoID returns a Generator of base-36 IDs of the given length.
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		for i := range buf {
			buf[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(buf)
	}
}

// UUIDv7 returns a Generator of RFC 9562 version 7 UUIDs.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends prefix to every ID produced by gen.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

var (
	// Target identifies catalog rows.
	Target = Prefixed("tgt_", UUIDv7())
	// Attempt identifies recruitment attempt rows.
	Attempt = Prefixed("att_", UUIDv7())
	// OptOut identifies opt-out rows.
	OptOut = Prefixed("opt_", UUIDv7())
	// Invite produces the public token embedded in /join/<token> links.
	Invite = Prefixed("inv_", NanoID(12))
)

// New produces an unprefixed UUIDv7.
func New() string {
	return uuid.Must(uuid.NewV7()).String()
}
