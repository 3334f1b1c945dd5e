package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pupfi-arcade-backend/internal/config"
)

const tokenTTL = 7 * 24 * time.Hour

type Claims struct {
	UserID     string `json:"user_id"`
	SessionKey string `json:"session_key"`
	jwt.RegisteredClaims
}

type JWTService struct {
	secret []byte
}

func NewJWTService(cfg *config.Config) *JWTService {
	return &JWTService{secret: []byte(cfg.JWTSecret)}
}

// GenerateToken issues a token bound to the account's current session key.
// Rotating the session key invalidates every token issued before.
func (s *JWTService) GenerateToken(userID, sessionKey string) (string, error) {
	claims := &Claims{
		UserID:     userID,
		SessionKey: sessionKey,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
