package api

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"

	"github.com/clubhive/chat-service/internal/types"
)

// Session tokens are minted by the member platform's auth service; this
// subsystem only verifies them and extracts the caller identity.

const (
	tokenCookieKey = "token"

	memberIdClaim = "member-id"
	nicknameClaim = "nickname"
	emailClaim    = "email"
	rolesClaim    = "roles"
	expClaim      = "exp"

	defaultJwtExpiration = 24 * time.Hour
)

type contextKey string

const identityKey contextKey = "identity"

func WithIdentity(ctx context.Context, identity types.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func CallerIdentity(ctx context.Context) (types.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(types.Identity)
	return identity, ok
}

// CreateSessionToken signs a session JWT for an identity. Exposed for the
// surrounding platform's login flow and for tests.
func CreateSessionToken(signingKey []byte, identity types.Identity, exp time.Duration) (string, error) {
	roles := make([]any, len(identity.Roles))
	for i, r := range identity.Roles {
		roles[i] = r
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		memberIdClaim: identity.MemberId,
		nicknameClaim: identity.Nickname,
		emailClaim:    identity.Email,
		rolesClaim:    roles,
		expClaim:      time.Now().Add(exp).Unix(),
	})

	return token.SignedString(signingKey)
}

func (s *ChatApp) identityFromToken(tokenString string) (types.Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return types.Identity{}, fmt.Errorf("parse token: %w", err)
	}

	if !token.Valid {
		return types.Identity{}, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return types.Identity{}, fmt.Errorf("invalid token claims")
	}

	memberId, ok := claims[memberIdClaim].(float64)
	if !ok {
		return types.Identity{}, fmt.Errorf("invalid member id claim")
	}

	identity := types.Identity{MemberId: int(memberId)}
	if nickname, ok := claims[nicknameClaim].(string); ok {
		identity.Nickname = nickname
	}
	if email, ok := claims[emailClaim].(string); ok {
		identity.Email = email
	}
	if roles, ok := claims[rolesClaim].([]any); ok {
		for _, r := range roles {
			if role, ok := r.(string); ok {
				identity.Roles = append(identity.Roles, role)
			}
		}
	}

	return identity, nil
}
