package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cppla/grokshare/config"
)

const adminSubject = "admin"

// AdminClaims are carried by the admin session token.
type AdminClaims struct {
	Admin bool `json:"admin"`
	jwt.RegisteredClaims
}

// GenerateAdminToken issues a signed admin session token valid for duration.
func GenerateAdminToken(duration time.Duration) (string, time.Time, error) {
	cfg := config.Get()
	now := time.Now()
	expiresAt := now.Add(duration)

	claims := AdminClaims{
		Admin: true,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   adminSubject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseAdminToken validates a token and returns its claims.
func ParseAdminToken(tokenStr string) (*AdminClaims, error) {
	cfg := config.Get()
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret not configured")
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*AdminClaims)
	if !ok || !parsed.Valid || !claims.Admin || claims.Subject != adminSubject {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
