package api

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const (
	idLength = 24
	charset  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var tokenIDPattern = regexp.MustCompile(`^[a-zA-Z0-9]{24}$`)

// NewTokenID generates 24 cryptographically random alphanumeric characters.
// It is used as the unique "jti" of issued bearer tokens.
func NewTokenID() string {
	return randomAlphanumeric(idLength)
}

// ValidateTokenID checks whether the given string has the shape produced by NewTokenID.
func ValidateTokenID(id string) bool {
	return tokenIDPattern.MatchString(id)
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}
