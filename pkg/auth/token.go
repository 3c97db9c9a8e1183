// Package auth implements the token repository spec.md §2 lists as an
// "interface only" collaborator of the core: a persistent set of bearer
// tokens used by the HTTP façade to authenticate requests.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Token is one bearer credential known to the repository.
type Token struct {
	Name      string
	Hash      string
	CreatedAt time.Time
}

// Repository is a persistent set of auth tokens (spec.md §2's "Token
// repository (interface only)"). Implementations must be safe for
// concurrent use.
type Repository interface {
	// Create registers a new token under name with the given bearer
	// value. Fails if name is already taken.
	Create(name, value string) error

	// Get looks up a token's metadata by name.
	Get(name string) (Token, error)

	// List returns every known token's metadata.
	List() ([]Token, error)

	// Remove deletes a token by name. Idempotent.
	Remove(name string) error

	// Validate reports whether bearer matches any stored token, and if
	// so, which one.
	Validate(bearer string) (Token, error)

	// Empty reports whether the repository currently holds no tokens.
	// The daemon uses it at startup to decide whether to seed a bootstrap
	// token from RS_API_TOKEN, and the HTTP façade skips authentication
	// while it is true.
	Empty() bool
}

// hashValue produces the stored representation of a bearer value. Tokens
// are hashed rather than stored in the clear, and compared in constant
// time via hmac.Equal to avoid timing side channels on lookup.
func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

func hashesEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
