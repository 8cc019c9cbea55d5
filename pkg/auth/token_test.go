package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/sandgallery/sandgallery-backend/pkg/config"
)

const testKeyID = "test-kid"

func TestHMACVerifierRoundTrip(t *testing.T) {
	now := time.Now()
	token, err := MintHMACToken("secret", "sandgallery", Identity{UserID: "uid-1", Email: "a@b.c"}, now, time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	identity, err := NewHMACVerifier("secret", "sandgallery", "").Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if identity.UserID != "uid-1" || identity.Email != "a@b.c" {
		t.Fatalf("unexpected identity %+v", identity)
	}
}

func TestHMACVerifierRejects(t *testing.T) {
	now := time.Now()
	good, _ := MintHMACToken("secret", "sandgallery", Identity{UserID: "uid-1"}, now, time.Hour)
	expired, _ := MintHMACToken("secret", "sandgallery", Identity{UserID: "uid-1"}, now.Add(-2*time.Hour), time.Hour)

	cases := map[string]struct {
		verifier Verifier
		token    string
	}{
		"wrong secret": {NewHMACVerifier("other", "sandgallery", ""), good},
		"wrong issuer": {NewHMACVerifier("secret", "someone-else", ""), good},
		"expired":      {NewHMACVerifier("secret", "sandgallery", ""), expired},
		"garbage":      {NewHMACVerifier("secret", "", ""), "not-a-jwt"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := tc.verifier.Verify(context.Background(), tc.token); err == nil {
				t.Fatalf("expected %s to be rejected", name)
			}
		})
	}
}

func TestVerifierRequiresSubject(t *testing.T) {
	claims := IdentityClaims{RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	_, err = NewHMACVerifier("secret", "", "").Verify(context.Background(), token)
	if !errors.Is(err, ErrMissingSubject) {
		t.Fatalf("expected ErrMissingSubject, got %v", err)
	}
}

func TestJWKSVerifierAcceptsRS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	kf, err := keyfunc.NewJWKSetJSON(buildJWKSetJSON(&key.PublicKey, testKeyID))
	if err != nil {
		t.Fatalf("keyfunc: %v", err)
	}

	claims := IdentityClaims{
		Email: "artist@sand.gallery",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "firebase-uid",
			Issuer:    "https://securetoken.google.com/sand-gallery",
			Audience:  jwt.ClaimStrings{"sand-gallery"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	v := NewJWKSVerifier(kf, "https://securetoken.google.com/sand-gallery", "sand-gallery")
	identity, err := v.Verify(context.Background(), signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if identity.UserID != "firebase-uid" {
		t.Fatalf("unexpected subject %q", identity.UserID)
	}

	hsToken, _ := MintHMACToken("secret", "", Identity{UserID: "x"}, time.Now(), time.Hour)
	if _, err := v.Verify(context.Background(), hsToken); err == nil {
		t.Fatal("HS256 tokens must not pass the JWKS verifier")
	}
}

func TestNewVerifierRequiresSecretOrJWKS(t *testing.T) {
	if _, err := NewVerifier(context.Background(), config.AuthConfig{}); err == nil {
		t.Fatal("expected configuration error")
	}
	v, err := NewVerifier(context.Background(), config.AuthConfig{Secret: "s"})
	if err != nil || v == nil {
		t.Fatalf("expected hmac verifier, got %v", err)
	}
}

func buildJWKSetJSON(pub *rsa.PublicKey, kid string) json.RawMessage {
	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		},
	}
	data, _ := json.Marshal(jwks)
	return data
}
