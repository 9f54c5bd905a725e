package auth

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"golang.org/x/crypto/scrypt"
)

// scrypt parameters. Hashes are stored as "<hex salt>:<hex key>".
const (
	scryptN      = 16384
	scryptR      = 16
	scryptP      = 1
	scryptKeyLen = 64
	saltSize     = 16
)

var ErrMalformedHash = errors.New("malformed password hash")

func HashPassword(password string) (string, error) {
	salt, err := common.MakeRandHexString(saltSize)
	if err != nil {
		return "", err
	}
	key, err := deriveKey(password, salt)
	if err != nil {
		return "", err
	}
	return salt + ":" + hex.EncodeToString(key), nil
}

// VerifyPassword reports whether password matches hash.
func VerifyPassword(hash, password string) (bool, error) {
	salt, encoded, ok := strings.Cut(hash, ":")
	if !ok || salt == "" {
		return false, ErrMalformedHash
	}
	want, err := hex.DecodeString(encoded)
	if err != nil || len(want) != scryptKeyLen {
		return false, ErrMalformedHash
	}

	got, err := deriveKey(password, salt)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func deriveKey(password, salt string) ([]byte, error) {
	return scrypt.Key([]byte(password), []byte(salt), scryptN, scryptR, scryptP, scryptKeyLen)
}
