// Package auth verifies the bearer tokens presented on REST calls and on the
// websocket upgrade. Tokens are HS256 JWTs whose subject is the user ID.
package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"antique-auction/internal/biddingerrors"

	"github.com/golang-jwt/jwt/v5"
)

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify checks the signature and expiry of raw and returns its subject
func (v *Verifier) Verify(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("auth: %w - missing token", biddingerrors.ErrUnauthorized)
	}

	tok, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !tok.Valid {
		return "", fmt.Errorf("auth: %w - invalid token: %v", biddingerrors.ErrUnauthorized, err)
	}

	claims, ok := tok.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("auth: %w - token has no subject", biddingerrors.ErrUnauthorized)
	}
	return claims.Subject, nil
}

// Issue signs a token for userID. Used by the demo seeding and tests; token
// issuance for real users lives with the account service.
func (v *Verifier) Issue(userID string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// TokenFromRequest reads the bearer token from the Authorization header, or
// from the token query parameter for browser websocket clients that cannot
// set headers.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
