// Package cryptox holds the credential cipher used to keep bucket secret keys
// encrypted at rest, plus the password key-derivation helpers.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/bucketvault/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/scrypt"
)

// keySalt is the fixed scrypt salt. It is shared by every record so that the
// derived key only depends on the master secret.
var keySalt = []byte("salt")

const (
	scryptN = 16384
	scryptR = 8
	scryptP = 1
	keySize = 32

	ivSize    = aes.BlockSize
	delimiter = ":"
)

// scryptKey is a test seam for scrypt.Key.
var scryptKey = scrypt.Key

// Cipher encrypts and decrypts short secret strings with AES-256-CBC under a
// key derived from the server master secret. It is safe for concurrent use.
type Cipher struct {
	block cipher.Block
}

// NewCipher derives the symmetric key from masterSecret and returns a ready
// Cipher. An empty master secret is rejected.
func NewCipher(masterSecret string) (*Cipher, error) {
	if masterSecret == "" {
		return nil, errors.New("encryption key is empty")
	}

	key, err := scryptKey([]byte(masterSecret), keySalt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return &Cipher{block: block}, nil
}

// Encrypt returns hex(iv) + ":" + hex(ciphertext). A fresh random IV is used
// on every call, so encrypting the same plaintext twice yields different blobs.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	iv := common.GenerateRandByteArray(ivSize)

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + delimiter + hex.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt.
//
// It returns common.ErrMalformedCiphertext when the blob cannot be parsed and
// common.ErrDecryptionFailed when the blob parses but does not decrypt under
// this key (for example after the master secret was rotated).
func (c *Cipher) Decrypt(blob string) (string, error) {
	ivHex, ctHex, ok := strings.Cut(blob, delimiter)
	if !ok {
		return "", common.ErrMalformedCiphertext
	}

	if len(ivHex) != ivSize*2 {
		return "", common.ErrMalformedCiphertext
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return "", common.ErrMalformedCiphertext
	}

	ciphertext, err := hex.DecodeString(ctHex)
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", common.ErrMalformedCiphertext
	}

	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(plain, ciphertext)

	unpadded, ok := pkcs7Unpad(plain, aes.BlockSize)
	if !ok || !utf8.Valid(unpadded) {
		return "", common.ErrDecryptionFailed
	}

	return string(unpadded), nil
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, bool) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, false
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize {
		return nil, false
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, false
		}
	}
	return b[:len(b)-n], true
}

// DeriveKey stretches a password with argon2id. It is deterministic for a
// given (password, salt) pair and is used for login verifiers.
func DeriveKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}
