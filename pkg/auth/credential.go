package auth

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
)

// Credential is a decoded Basic username and password pair.
type Credential struct {
	Username string
	Password string
}

// LogValue keeps the password out of structured logs.
func (c Credential) LogValue() slog.Value {
	return slog.StringValue(c.Username)
}

// DecodeBasic decodes the token of a Basic Authorization header. The decoded
// text is split at the first colon, so passwords may contain colons. Empty
// usernames are rejected.
func DecodeBasic(token string) (Credential, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(token)
		if err != nil {
			return Credential{}, fmt.Errorf("%w: invalid base64", ErrMalformedCredential)
		}
	}

	username, password, ok := strings.Cut(string(raw), ":")
	if !ok {
		return Credential{}, fmt.Errorf("%w: missing separator", ErrMalformedCredential)
	}
	if username == "" {
		return Credential{}, fmt.Errorf("%w: empty username", ErrMalformedCredential)
	}

	return Credential{Username: username, Password: password}, nil
}

// EncodeBasic is the inverse of DecodeBasic.
func EncodeBasic(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}
