// Package idgen generates identifiers for edit log rows and request IDs.
//
// Constructors that need IDs accept a Generator, so tests can pin the
// sequence and services can pick the strategy at startup.
package idgen

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator of RFC 9562 version 7 UUIDs. They sort by
// creation time, which keeps edit_log rows in apply order.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Short returns a Generator of base-36 IDs of the given length, for
// identifiers that are echoed back to humans (request IDs).
func Short(length int) Generator {
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

// Prefixed prepends prefix to every ID of gen ("edit_", "req_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Sequence returns a Generator yielding ids in order, then panicking.
// Tests only.
func Sequence(ids ...string) Generator {
	i := 0
	return func() string {
		if i >= len(ids) {
			panic(fmt.Sprintf("idgen: sequence exhausted after %d ids", len(ids)))
		}
		id := ids[i]
		i++
		return id
	}
}
