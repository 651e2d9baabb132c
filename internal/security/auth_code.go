package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// authCodePrefix is the prefix used for generated authorization codes.
const authCodePrefix = "lg_"

// GenerateAuthCode creates a new random authorization code string.
func GenerateAuthCode() (code string, err error) {
	secret := make([]byte, 16)
	if _, err = io.ReadFull(rand.Reader, secret); err != nil {
		return "", fmt.Errorf("generate auth code: %w", err)
	}
	code = authCodePrefix + strings.ToUpper(hex.EncodeToString(secret))
	return code, nil
}
