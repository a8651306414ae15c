package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"chat-relay/domain"
	"chat-relay/errors"
)

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies bearer tokens. The secret comes from
// configuration; the verification side implements contract.TokenVerifier.
type TokenManager struct {
	secret   []byte
	duration time.Duration
}

func NewTokenManager(secret string, duration time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), duration: duration}
}

// Generate creates a signed JWT for a specific user.
// Credential issuance itself lives with an external service; this is kept
// for the token CLI and for deterministic tests.
func (m *TokenManager) Generate(userID string, role domain.Role) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "chat-relay",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify parses and validates the signature and expiration of a JWT
// string, returning the identity it carries. Every failure mode maps to
// ErrUnauthenticated so callers reject uniformly before room admission.
func (m *TokenManager) Verify(rawToken string) (domain.Identity, error) {
	token, err := jwt.ParseWithClaims(rawToken, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", errors.ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return domain.Identity{}, errors.ErrUnauthenticated
	}

	identity := domain.Identity{UserID: claims.UserID, Role: domain.Role(claims.Role)}
	if identity.UserID == "" || !identity.Role.Known() {
		return domain.Identity{}, errors.ErrUnauthenticated
	}
	return identity, nil
}
