package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)

	assert.NoError(t, CheckPassword(hash, "s3cret-pass"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong-pass"), ErrPasswordMismatch)
	assert.ErrorIs(t, CheckPassword("", "s3cret-pass"), ErrPasswordMismatch)
}

func TestHashPassword_TooShort(t *testing.T) {
	_, err := HashPassword("abc")
	assert.Error(t, err)
}
