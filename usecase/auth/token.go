package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"

	"github.com/fastygo/habits/domain"
)

// Claims carried by habit API bearer tokens.
type Claims struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
}

func NewTokenIssuer(secret, issuer string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), issuer: issuer}
}

func (t *TokenIssuer) Issue(session *domain.Session) (string, error) {
	if session == nil || session.ID == "" {
		return "", domain.ErrInvalidPayload
	}
	if len(t.secret) == 0 {
		return "", errors.New("jwt secret is empty")
	}
	claims := Claims{
		UserID:    session.UserID,
		SessionID: session.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   session.UserID,
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse validates a token and returns its claims.
func (t *TokenIssuer) Parse(token string) (*Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeUnauthorized, "invalid token", err)
	}
	if !parsed.Valid || claims.SessionID == "" {
		return nil, domain.ErrUnauthorized
	}
	if t.issuer != "" && claims.Issuer != t.issuer {
		return nil, domain.ErrUnauthorized
	}
	return &claims, nil
}

