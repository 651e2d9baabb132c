package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// adminBcryptCost is the work factor for admin account passwords. Slow
// enough to resist offline cracking, fast enough for interactive logins.
const adminBcryptCost = 12

var errEmptyPassword = errors.New("security: empty password")

// HashPassword hashes an admin password with bcrypt. Empty passwords are
// rejected so a broken bootstrap can never create a passwordless admin.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), adminBcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether the plaintext matches the stored bcrypt
// hash.
func VerifyPassword(hash, password string) bool {
	if hash == "" || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
