// Package auth validates request tokens and carries the authenticated
// principal through the request context.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lumina-bi/lumina-engine/pkg/apperrors"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID         uuid.UUID
	OrganizationID uuid.UUID
}

type contextKey struct{}

// WithPrincipal stores the principal on the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// PrincipalFrom retrieves the principal from the context.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(*Principal)
	return p, ok
}

// Claims are the token claims the engine requires. Tokens are signed
// HS256 with the shared secret.
type Claims struct {
	OrganizationID string `json:"org_id"`
	jwt.RegisteredClaims
}

// Verifier parses and validates bearer tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for the given HS256 secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses the token and extracts the principal. The subject claim
// carries the user ID.
func (v *Verifier) Verify(tokenString string) (*Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperrors.ErrUnauthorized
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid subject", apperrors.ErrUnauthorized)
	}
	orgID, err := uuid.Parse(claims.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid organization", apperrors.ErrUnauthorized)
	}

	return &Principal{UserID: userID, OrganizationID: orgID}, nil
}

// Middleware authenticates requests with a Bearer token and attaches
// the principal to the request context.
func Middleware(verifier *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
				return
			}

			principal, err := verifier.Verify(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}
