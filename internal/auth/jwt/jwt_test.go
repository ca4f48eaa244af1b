package jwt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(Config{SecretKey: "", Duration: time.Hour})
	assert.ErrorIs(t, err, ErrEmptySecretKey)

	_, err = NewService(Config{SecretKey: "short", Duration: time.Hour})
	assert.ErrorIs(t, err, ErrWeakSecretKey)

	_, err = NewService(Config{SecretKey: testKey, Duration: 0})
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestGenerateAndValidate(t *testing.T) {
	s, err := NewService(Config{SecretKey: testKey, Duration: time.Hour})
	require.NoError(t, err)

	token, err := s.GenerateToken("client-123")
	require.NoError(t, err)
	assert.Equal(t, 3, len(strings.Split(token, ".")))

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "client-123", claims.ClientID)
	assert.Equal(t, "client-123", claims.Subject)
}

func TestValidateToken_Expired(t *testing.T) {
	s, err := NewService(Config{SecretKey: testKey, Duration: time.Nanosecond})
	require.NoError(t, err)

	token, err := s.GenerateToken("client-123")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, err = s.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateToken_Garbage(t *testing.T) {
	s, err := NewService(Config{SecretKey: testKey, Duration: time.Hour})
	require.NoError(t, err)

	_, err = s.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
