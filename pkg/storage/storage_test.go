package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("admin123", bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, CheckPassword(hash, "admin123"))
	assert.False(t, CheckPassword(hash, "admin124"))
	assert.False(t, CheckPassword(nil, "admin123"))
}

func TestUserValidate(t *testing.T) {
	assert.NoError(t, User{Username: "a", Password: "b"}.Validate())
	assert.ErrorIs(t, User{Password: "b"}.Validate(), ErrInvalidUser)
	assert.ErrorIs(t, User{Username: "a"}.Validate(), ErrInvalidUser)
}
