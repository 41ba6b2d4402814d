// Package token issues and validates the HS256 bearer tokens that bind a
// request to a passenger id.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

type Manager struct {
	secret []byte
	ttl    time.Duration
}

func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token whose subject is the passenger id.
func (m *Manager) Issue(passengerID uuid.UUID) (string, error) {
	const op = "token.Manager.Issue"

	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   passengerID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	return signed, nil
}

// Parse validates a signed token and returns the passenger id it carries.
func (m *Manager) Parse(raw string) (uuid.UUID, error) {
	const op = "token.Manager.Parse"

	tok, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, fmt.Errorf("%s:%w", op, ErrExpiredToken)
		}
		return uuid.Nil, fmt.Errorf("%s:%w", op, ErrInvalidToken)
	}

	claims, ok := tok.Claims.(*jwt.RegisteredClaims)
	if !ok || !tok.Valid {
		return uuid.Nil, fmt.Errorf("%s:%w", op, ErrInvalidToken)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s:%w", op, ErrInvalidToken)
	}

	return id, nil
}
