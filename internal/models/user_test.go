package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	user, err := NewUser("carol_93", "Carol@Example.COM", "hash", "")
	require.NoError(t, err)
	assert.Equal(t, "carol_93", user.Username)
	assert.Equal(t, "carol@example.com", user.Email)
	assert.Equal(t, UserRoleUser, user.Role)
	assert.Equal(t, StatusOffline, user.Status)
}

func TestNewUserValidation(t *testing.T) {
	_, err := NewUser("ab", "a@b.co", "hash", "")
	require.Error(t, err)

	_, err = NewUser(strings.Repeat("x", 31), "a@b.co", "hash", "")
	require.Error(t, err)

	_, err = NewUser("has space", "a@b.co", "hash", "")
	require.Error(t, err)

	_, err = NewUser("carol", "not-an-email", "hash", "")
	require.Error(t, err)

	_, err = NewUser("carol", "a@b.co", "", "")
	require.Error(t, err)

	// length is counted in characters, but the alphabet is ASCII-only,
	// so a multibyte username clears the bound and fails the charset
	_, err = NewUser(strings.Repeat("あ", 5), "a@b.co", "hash", "")
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindValidation, kind)
}

func TestParsePresenceStatus(t *testing.T) {
	for _, valid := range []string{"online", "offline", "away"} {
		status, err := ParsePresenceStatus(valid)
		require.NoError(t, err)
		assert.Equal(t, PresenceStatus(valid), status)
	}

	_, err := ParsePresenceStatus("invisible")
	require.Error(t, err)
}
