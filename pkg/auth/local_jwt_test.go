package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuth(t *testing.T) *LocalJWTAuth {
	t.Helper()
	a, err := NewLocalJWTAuth("test-secret", 0, 0)
	require.NoError(t, err)
	return a
}

func TestNewLocalJWTAuthDefaults(t *testing.T) {
	a := newTestAuth(t)
	assert.Equal(t, 15*time.Minute, a.AccessTokenExpiry)
	assert.Equal(t, 7*24*time.Hour, a.RefreshTokenExpiry)

	_, err := NewLocalJWTAuth("", 0, 0)
	assert.Error(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	a := newTestAuth(t)
	p := Principal{UserID: "65f000000000000000000001", Email: "a@example.com", Username: "alice"}

	pair, err := a.GenerateTokens(p)
	require.NoError(t, err)

	got, err := a.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, p, *got)

	claims, err := a.VerifyRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, p.UserID, claims.UserID)
}

func TestTokenTypesAreNotInterchangeable(t *testing.T) {
	a := newTestAuth(t)
	pair, err := a.GenerateTokens(Principal{UserID: "u1"})
	require.NoError(t, err)

	_, err = a.VerifyAccessToken(pair.RefreshToken)
	assert.Error(t, err)

	_, err = a.VerifyRefreshToken(pair.AccessToken)
	assert.Error(t, err)
}

func TestRotationIssuesDistinctTokens(t *testing.T) {
	a := newTestAuth(t)
	first, err := a.GenerateTokens(Principal{UserID: "u1"})
	require.NoError(t, err)
	second, err := a.GenerateTokens(Principal{UserID: "u1"})
	require.NoError(t, err)

	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
}

func TestExpiredAndForeignTokens(t *testing.T) {
	a, err := NewLocalJWTAuth("test-secret", time.Nanosecond, 0)
	require.NoError(t, err)
	pair, err := a.GenerateTokens(Principal{UserID: "u1"})
	require.NoError(t, err)
	time.Sleep(time.Millisecond)

	_, err = a.VerifyAccessToken(pair.AccessToken)
	assert.Error(t, err)

	other, err := NewLocalJWTAuth("other-secret", 0, 0)
	require.NoError(t, err)
	foreign, err := other.GenerateTokens(Principal{UserID: "u1"})
	require.NoError(t, err)

	_, err = a.VerifyRefreshToken(foreign.RefreshToken)
	assert.Error(t, err)
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc", "abc", false},
		{"bearer  abc ", "abc", false},
		{"", "", true},
		{"Basic abc", "", true},
		{"Bearer ", "", true},
	}

	for _, tt := range tests {
		got, err := ExtractToken(tt.header)
		if tt.wantErr {
			assert.Error(t, err, tt.header)
			continue
		}
		require.NoError(t, err, tt.header)
		assert.Equal(t, tt.want, got)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("Passw0rd!")
	require.NoError(t, err)

	ok, err := VerifyPassword(hash, "Passw0rd!")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = VerifyPassword("bcrypt$x", "Passw0rd!")
	assert.Error(t, err)
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("Passw0rd!"))
	assert.Error(t, ValidatePassword("short1!"))
	assert.Error(t, ValidatePassword("password1!"))
	assert.Error(t, ValidatePassword("PASSWORD1!"))
	assert.Error(t, ValidatePassword("Password!"))
	assert.Error(t, ValidatePassword("Password1"))
}

func TestTemporaryToken(t *testing.T) {
	tok, err := NewTemporaryToken(time.Minute)
	require.NoError(t, err)

	assert.Len(t, tok.Raw, 40)
	assert.Equal(t, HashToken(tok.Raw), tok.Hashed)
	assert.NotEqual(t, tok.Raw, tok.Hashed)
	assert.True(t, tok.Expiry.After(time.Now()))
}
