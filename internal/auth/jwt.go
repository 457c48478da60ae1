package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lalith-99/areachat/internal/models"
)

// Claims is the payload inside every token the backend issues. Custom
// fields ride on top of the registered ones so standard tooling still
// understands expiry and issuer.
type Claims struct {
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed HS256 token for a user. HS256 keeps a
// single shared secret between issuer and verifier, which is all this
// single-service backend needs.
func GenerateToken(user *models.User, secret string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		UserID:    string(user.ID),
		CompanyID: string(user.CompanyID),
		Name:      user.Name,
		Role:      user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "areachat",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a token string and extracts the claims. Signature,
// expiry, and signing method are all checked; a non-HMAC method is
// rejected before signature verification.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// SessionContext is the identity a chat surface runs under. It is built
// once, when the session opens, from claims the auth service issued;
// components downstream never re-parse the credential.
type SessionContext struct {
	ParticipantID models.ID
	Name          string
	Role          string
	CompanyScope  models.ID
}

// NewSessionContext converts verified claims into a session identity.
func NewSessionContext(c *Claims) SessionContext {
	return SessionContext{
		ParticipantID: models.ID(c.UserID),
		Name:          c.Name,
		Role:          c.Role,
		CompanyScope:  models.ID(c.CompanyID),
	}
}

// IsBoss reports whether the identity may open private channels with any
// employee and post boss messages.
func (s SessionContext) IsBoss() bool { return s.Role == models.RoleBoss }
