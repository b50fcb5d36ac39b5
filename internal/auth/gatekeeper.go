// Package auth implements the connection gatekeeper: it verifies signed
// credential tokens and resolves them to a known identity before any
// application traffic is accepted.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/npezzotti/go-dm/internal/database"
	"github.com/npezzotti/go-dm/internal/errs"
	"github.com/npezzotti/go-dm/internal/types"
)

const TokenCookieKey = "token"

// UserLookup resolves an identity to its stored profile.
type UserLookup interface {
	GetUserById(ctx context.Context, id string) (database.User, error)
}

type Gatekeeper struct {
	signingKey []byte
	users      UserLookup
}

func NewGatekeeper(signingKey []byte, users UserLookup) *Gatekeeper {
	return &Gatekeeper{
		signingKey: signingKey,
		users:      users,
	}
}

// TokenFromRequest extracts the credential from the Authorization header,
// the token query parameter or the token cookie, in that order. Browsers
// cannot set headers on a websocket handshake, hence the query parameter.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}

	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	if cookie, err := r.Cookie(TokenCookieKey); err == nil {
		return cookie.Value
	}

	return ""
}

// VerifyToken checks the signature and expiry of tokenString and returns
// the identity in its subject claim.
func (g *Gatekeeper) VerifyToken(tokenString string) (string, error) {
	if tokenString == "" {
		return "", fmt.Errorf("%w: missing token", errs.ErrUnauthenticated)
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (any, error) {
			return g.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errs.ErrUnauthenticated, err)
	}

	if !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("%w: invalid subject claim", errs.ErrUnauthenticated)
	}

	return claims.Subject, nil
}

// Authenticate verifies the request's credential and resolves it to a user.
// An unknown identity is an authentication failure; a store outage is not.
func (g *Gatekeeper) Authenticate(ctx context.Context, r *http.Request) (types.User, error) {
	userId, err := g.VerifyToken(TokenFromRequest(r))
	if err != nil {
		return types.User{}, err
	}

	user, err := g.users.GetUserById(ctx, userId)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return types.User{}, fmt.Errorf("%w: user %q not found", errs.ErrUnauthenticated, userId)
		}
		return types.User{}, fmt.Errorf("resolve identity: %w", err)
	}

	return types.User{
		Id:       user.Id,
		Username: user.Username,
	}, nil
}

// IssueToken signs a token for userId. Issuing credentials belongs to the
// identity service; this exists for tooling and tests.
func (g *Gatekeeper) IssueToken(userId string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userId,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.signingKey)
}

type contextKey string

const userKey contextKey = "user"

func WithUser(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func UserFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(userKey).(types.User)
	return user, ok
}
