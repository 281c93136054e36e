// Package auth implements the stateless credential primitives of the server:
// HS256-signed access tokens and opaque hashed refresh token values.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/cardvault/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the registered claim set plus the user identity claims
// embedded in every access token.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string
	UserName string
}

// GenerateToken signs an access token for the given user, valid for
// validityDuration from now.
func GenerateToken(userID, userName string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		UserID:   userID,
		UserName: userName,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies the signature and expiry of an access token and returns
// its claims. Expired tokens yield common.ErrTokenExpired; any other parse or
// signature failure yields common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, common.ErrInvalidToken
		}
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
