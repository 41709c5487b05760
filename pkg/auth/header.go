package auth

import (
	"net/http"
	"strings"
)

// Header names used by the authentication gate.
const (
	HeaderAuthorization     = "Authorization"
	HeaderWWWAuthenticate   = "WWW-Authenticate"
	HeaderProxyAuthenticate = "Proxy-Authenticate"
)

// Scheme identifies the authentication scheme of an Authorization header.
type Scheme int

const (
	SchemeUnsupported Scheme = iota
	SchemeBasic
	SchemeBearer
)

func (s Scheme) String() string {
	switch s {
	case SchemeBasic:
		return "Basic"
	case SchemeBearer:
		return "Bearer"
	default:
		return "unsupported"
	}
}

// Authorization is a parsed Authorization header.
type Authorization struct {
	Scheme Scheme

	// Token is the trimmed credential after the scheme. Empty when the
	// scheme is unsupported.
	Token string
}

// ParseAuthorization reads the first Authorization header of h. The second
// return value is false when no Authorization header is present at all.
func ParseAuthorization(h http.Header) (Authorization, bool) {
	values := h.Values(HeaderAuthorization)
	if len(values) == 0 {
		return Authorization{}, false
	}
	return ParseAuthorizationValue(values[0]), true
}

// ParseAuthorizationValue classifies a raw header value. Scheme matching is
// case-sensitive and the scheme must be followed by a space or tab and a
// non-empty token.
func ParseAuthorizationValue(v string) Authorization {
	for _, s := range []Scheme{SchemeBasic, SchemeBearer} {
		if token, ok := cutScheme(v, s.String()); ok {
			return Authorization{Scheme: s, Token: token}
		}
	}
	return Authorization{Scheme: SchemeUnsupported}
}

func cutScheme(v, prefix string) (string, bool) {
	if len(v) <= len(prefix) || !strings.HasPrefix(v, prefix) {
		return "", false
	}
	if sep := v[len(prefix)]; sep != ' ' && sep != '\t' {
		return "", false
	}
	token := strings.TrimSpace(v[len(prefix)+1:])
	if token == "" {
		return "", false
	}
	return token, true
}
