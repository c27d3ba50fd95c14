package mgmt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the bearer-token shape issued to management clients, the same
// RegisteredClaims-embedding pattern the rest of the ecosystem uses for
// JWT-authenticated services.
type Claims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// Errors returned by ValidateBearer.
var (
	ErrInvalidToken = errors.New("mgmt: invalid bearer token")
	ErrTokenExpired = errors.New("mgmt: bearer token expired")
)

// IssueBearer mints a bearer token for subject, valid for ttl, signed with
// secret. Used by the operator-facing token-issuing CLI path, not by
// the WebSocket server itself.
func IssueBearer(secret []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateBearer parses and verifies tokenString against secret.
func ValidateBearer(secret []byte, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
