package auth

import "github.com/golang-jwt/jwt/v5"

// IdentityClaims is the subset of an identity token (e.g. a Firebase ID token)
// the backend reads. The subject is the account id.
type IdentityClaims struct {
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the verified caller attached to a request.
type Identity struct {
	UserID string
	Email  string
}
