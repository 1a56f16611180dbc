package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Signer issues and verifies agent session tokens.
type Signer struct {
	Secret []byte
	Issuer string
	ExpMin int
}

// Sign mints a token for an agent id.
func (s *Signer) Sign(agentID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   agentID,
		Issuer:    s.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.ExpMin) * time.Minute)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
}

// Verify checks signature, issuer and expiry and returns the agent id.
func (s *Signer) Verify(token string) (string, error) {
	var claims jwt.RegisteredClaims
	t, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.Secret, nil
	}, jwt.WithIssuer(s.Issuer))
	if err != nil {
		return "", err
	}
	if !t.Valid || claims.Subject == "" {
		return "", errors.New("invalid token")
	}
	return claims.Subject, nil
}
