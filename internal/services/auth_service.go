package services

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	chat_errors "campuschat/pkg/errors"
)

// AuthService is the auth collaborator boundary: it validates a bearer
// credential and yields the user id bound to a connection. Token issuance
// lives with the platform's account service; IssueToken exists for local
// development and tests.
type AuthService struct {
	secret []byte
	expiry time.Duration
}

type AccessClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

func NewAuthService(secret string, expiry time.Duration) *AuthService {
	return &AuthService{secret: []byte(secret), expiry: expiry}
}

func (s *AuthService) ParseAccessToken(token string) (uuid.UUID, error) {
	var claims AccessClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, chat_errors.ErrUnauthorized
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, chat_errors.ErrUnauthorized
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, chat_errors.ErrUnauthorized
	}
	return userID, nil
}

func (s *AuthService) IssueToken(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
