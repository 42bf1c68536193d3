// Package cryptox implements password hashing for stored accounts.
package cryptox

import (
	"crypto/subtle"

	"github.com/dmitrijs2005/bookly/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	saltSize       = 16
	argonTime      = 1
	argonMemoryKiB = 64 * 1024
	argonThreads   = 4
	argonKeyLen    = 32
)

// DeriveKey stretches password with salt using argon2id.
func DeriveKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemoryKiB, argonThreads, argonKeyLen)
}

// HashPassword returns a fresh random salt and the argon2id hash of password.
func HashPassword(password []byte) (salt, hash []byte) {
	salt = common.GenerateRandByteArray(saltSize)
	return salt, DeriveKey(password, salt)
}

// VerifyPassword compares in constant time.
func VerifyPassword(password, salt, hash []byte) bool {
	if len(salt) == 0 || len(hash) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(DeriveKey(password, salt), hash) == 1
}
