package auth

import (
	"crypto/subtle"

	"github.com/dmitrijs2005/bucketvault/internal/common"
	"github.com/dmitrijs2005/bucketvault/internal/cryptox"
)

const saltSize = 32

// NewVerifier returns a fresh random salt and the argon2id verifier of
// password under it.
func NewVerifier(password string) (salt, verifier []byte) {
	salt = common.GenerateRandByteArray(saltSize)
	return salt, cryptox.DeriveKey([]byte(password), salt)
}

// CheckPassword reports whether password matches the stored verifier.
func CheckPassword(password string, salt, verifier []byte) bool {
	candidate := cryptox.DeriveKey([]byte(password), salt)
	defer common.WipeByteArray(candidate)
	return subtle.ConstantTimeCompare(verifier, candidate) == 1
}
