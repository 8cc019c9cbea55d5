package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/sandgallery/sandgallery-backend/pkg/config"
)

var (
	hmacMethod = jwt.SigningMethodHS256
	rsaMethod  = jwt.SigningMethodRS256
)

// ErrMissingSubject is returned for tokens without a sub claim.
var ErrMissingSubject = errors.New("identity token has no subject")

// Verifier turns a bearer token into a caller identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// NewVerifier returns a JWKS verifier when a JWKS URL is configured and an
// HS256 verifier otherwise.
func NewVerifier(ctx context.Context, cfg config.AuthConfig) (Verifier, error) {
	if url := strings.TrimSpace(cfg.JWKSURL); url != "" {
		kf, err := keyfunc.NewDefaultCtx(ctx, []string{url})
		if err != nil {
			return nil, fmt.Errorf("loading jwks %s: %w", url, err)
		}
		return NewJWKSVerifier(kf, cfg.Issuer, cfg.Audience), nil
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("either %s or %s is required", config.EnvAuthJWKSURL, config.EnvAuthSecret)
	}
	return NewHMACVerifier(cfg.Secret, cfg.Issuer, cfg.Audience), nil
}

type verifier struct {
	keyFunc  jwt.Keyfunc
	method   jwt.SigningMethod
	issuer   string
	audience string
}

func NewHMACVerifier(secret, issuer, audience string) Verifier {
	return &verifier{
		keyFunc:  func(*jwt.Token) (any, error) { return []byte(secret), nil },
		method:   hmacMethod,
		issuer:   issuer,
		audience: audience,
	}
}

func NewJWKSVerifier(kf keyfunc.Keyfunc, issuer, audience string) Verifier {
	return &verifier{
		keyFunc:  kf.Keyfunc,
		method:   rsaMethod,
		issuer:   issuer,
		audience: audience,
	}
}

func (v *verifier) Verify(_ context.Context, tokenString string) (*Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &IdentityClaims{}
	if _, err := jwt.ParseWithClaims(tokenString, claims, v.keyFunc, opts...); err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrMissingSubject
	}
	return &Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

// MintHMACToken signs an HS256 identity token; used by local tooling and tests.
func MintHMACToken(secret, issuer string, identity Identity, now time.Time, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("secret is required")
	}
	if identity.UserID == "" {
		return "", ErrMissingSubject
	}
	claims := IdentityClaims{
		Email: identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(hmacMethod, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}
