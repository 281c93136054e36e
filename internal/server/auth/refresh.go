package auth

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/dmitrijs2005/cardvault/internal/common"
)

// refreshTokenBytes is the number of random bytes in a refresh token value,
// giving 256 bits of entropy before hex encoding.
const refreshTokenBytes = 32

// NewRefreshTokenValue draws a fresh opaque refresh token value from the
// CSPRNG. The result is a fixed-length hex string.
func NewRefreshTokenValue() (string, error) {
	return common.MakeRandHexString(refreshTokenBytes)
}

// HashRefreshToken computes the storage form of a refresh token value.
// Only this hash is ever persisted; lookups during rotation hash the
// presented value with the same function.
func HashRefreshToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
