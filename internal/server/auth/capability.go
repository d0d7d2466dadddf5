package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/common"
)

// CapabilityClaims scope a short-lived, verifiable download capability to a
// single (grant, file, actor) triple with an explicit permission list.
type CapabilityClaims struct {
	jwt.RegisteredClaims
	GrantID     string   `json:"grant_id,omitempty"`
	FileID      string   `json:"file_id"`
	ActorID     string   `json:"actor_id"`
	Permissions []string `json:"permissions"`
}

// GenerateCapability signs a capability token. GrantID is empty for owner
// access, which carries full rights by definition.
func GenerateCapability(grantID, fileID, actorID string, permissions []string, secretKey []byte, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, CapabilityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
		},
		GrantID:     grantID,
		FileID:      fileID,
		ActorID:     actorID,
		Permissions: permissions,
	})
	return token.SignedString(secretKey)
}

// VerifyCapability validates the token and returns its claims.
func VerifyCapability(tokenString string, secretKey []byte) (*CapabilityClaims, error) {
	claims := &CapabilityClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil || !token.Valid {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}
