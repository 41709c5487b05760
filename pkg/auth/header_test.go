package auth

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAuthorizationValue(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		scheme Scheme
		token  string
	}{
		{"basic", "Basic YWRtaW46YWRtaW4xMjM=", SchemeBasic, "YWRtaW46YWRtaW4xMjM="},
		{"bearer", "Bearer abc.def.ghi", SchemeBearer, "abc.def.ghi"},
		{"tab separator", "Bearer\tabc", SchemeBearer, "abc"},
		{"surrounding whitespace trimmed", "Bearer   abc  ", SchemeBearer, "abc"},
		{"scheme only", "Basic", SchemeUnsupported, ""},
		{"bearer scheme only", "Bearer", SchemeUnsupported, ""},
		{"scheme with blank token", "Bearer    ", SchemeUnsupported, ""},
		{"lowercase scheme", "bearer abc", SchemeUnsupported, ""},
		{"no separator", "Bearerabc", SchemeUnsupported, ""},
		{"other scheme", "Digest username=admin", SchemeUnsupported, ""},
		{"empty", "", SchemeUnsupported, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAuthorizationValue(tt.value)
			assert.Equal(t, tt.scheme, got.Scheme)
			assert.Equal(t, tt.token, got.Token)
		})
	}
}

func TestParseAuthorization_Absent(t *testing.T) {
	_, present := ParseAuthorization(http.Header{})
	assert.False(t, present)
}

func TestParseAuthorization_EmptyValueIsPresent(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderAuthorization, "")

	got, present := ParseAuthorization(h)
	assert.True(t, present)
	assert.Equal(t, SchemeUnsupported, got.Scheme)
}

func TestParseAuthorization_FirstValueWins(t *testing.T) {
	h := http.Header{}
	h.Add(HeaderAuthorization, "Bearer first")
	h.Add(HeaderAuthorization, "Basic c2Vjb25k")

	got, present := ParseAuthorization(h)
	assert.True(t, present)
	assert.Equal(t, SchemeBearer, got.Scheme)
	assert.Equal(t, "first", got.Token)
}
