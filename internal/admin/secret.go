package admin

import "crypto/subtle"

// HeaderSecret carries the shared admin secret.
const HeaderSecret = "X-Admin-Secret"

// SecretMatches compares in constant time. An unset expected secret never matches.
func SecretMatches(expected, provided string) bool {
	if expected == "" || provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}
