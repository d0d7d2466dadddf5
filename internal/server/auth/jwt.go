// Package auth issues and verifies the two token kinds the server uses:
// user access tokens and grant-scoped download capabilities.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/common"
)

type Claims struct {
	jwt.RegisteredClaims
	UserID string
}

// GenerateToken issues an HS256 access token carrying the user id.
func GenerateToken(userID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		UserID: userID,
	})
	return token.SignedString(secretKey)
}

// GetUserIDFromToken validates the token and extracts the user id.
func GetUserIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}
	if !token.Valid {
		return "", common.ErrInvalidToken
	}
	return claims.UserID, nil
}
