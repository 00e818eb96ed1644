package auth

import (
	"encoding/json"
	"testing"
	"time"

	"engiplex.com/aura-chat/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestSignUpValidation(t *testing.T) {
	s := NewService(store.NewMemoryKV(), testSecret)

	tests := []struct {
		name                     string
		email, password, confirm string
		want                     error
	}{
		{"missing email", " ", "secret1", "secret1", ErrEmailRequired},
		{"mismatch", "a@b.c", "secret1", "secret2", ErrPasswordMismatch},
		{"too short", "a@b.c", "12345", "12345", ErrPasswordTooShort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.SignUp(tt.email, tt.password, tt.confirm)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSignUpSignInSignOut(t *testing.T) {
	kv := store.NewMemoryKV()
	s := NewService(kv, testSecret)

	token, err := s.SignUp("ada@example.com", "hunter22", "hunter22")
	require.NoError(t, err)
	email, err := s.Authenticated(token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", email)

	raw, ok, err := kv.Get(KeyUsers)
	require.NoError(t, err)
	require.True(t, ok)
	var users []user
	require.NoError(t, json.Unmarshal([]byte(raw), &users))
	require.Len(t, users, 1)
	assert.NotEqual(t, "hunter22", users[0].PasswordHash)

	_, err = s.SignUp("ada@example.com", "another1", "another1")
	assert.ErrorIs(t, err, ErrEmailTaken)

	require.NoError(t, s.SignOut())
	_, err = s.Authenticated(token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = s.SignIn("ada@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.SignIn("nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	token, err = s.SignIn(" ada@example.com ", "hunter22")
	require.NoError(t, err)
	_, err = s.Authenticated(token)
	assert.NoError(t, err)
}

func TestAuthenticatedRejectsBadTokens(t *testing.T) {
	s := NewService(store.NewMemoryKV(), testSecret)
	_, err := s.SignUp("ada@example.com", "hunter22", "hunter22")
	require.NoError(t, err)

	forged, err := GenerateJWT([]byte("other-secret"), "ada@example.com", time.Now())
	require.NoError(t, err)
	expired, err := GenerateJWT([]byte(testSecret), "ada@example.com", time.Now().Add(-48*time.Hour))
	require.NoError(t, err)
	otherUser, err := GenerateJWT([]byte(testSecret), "eve@example.com", time.Now())
	require.NoError(t, err)

	for _, token := range []string{"", "garbage", forged, expired, otherUser} {
		_, err := s.Authenticated(token)
		assert.ErrorIs(t, err, ErrUnauthorized)
	}
}

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT([]byte(testSecret), "ada@example.com", time.Now())
	require.NoError(t, err)

	sub, err := ValidateJWT([]byte(testSecret), token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", sub)
}
