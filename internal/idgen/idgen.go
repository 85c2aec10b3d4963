// Package idgen generates object identities for clients that do not pick
// their own.
package idgen

import (
	"fmt"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// ObjectPrefix marks identities minted by the store.
const ObjectPrefix = "obj-"

// alphabet avoids characters that need escaping in URL paths.
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Length is the number of random characters after the prefix.
const Length = 12

// ObjectID returns a fresh identity such as "obj-4fJ2k0aZq8Lm".
func ObjectID() (string, error) {
	return WithPrefix(ObjectPrefix)
}

// WithPrefix returns a fresh identity starting with prefix.
func WithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("generating id: %w", err)
	}
	return prefix + id, nil
}

// Generated reports whether id has the shape of an ObjectID result.
func Generated(id string) bool {
	rest, ok := strings.CutPrefix(id, ObjectPrefix)
	if !ok || len(rest) != Length {
		return false
	}
	for _, r := range rest {
		if !strings.ContainsRune(alphabet, r) {
			return false
		}
	}
	return true
}
