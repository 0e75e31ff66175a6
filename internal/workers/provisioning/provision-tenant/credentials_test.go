package provisiontenant

import (
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestLoginBase(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"ana@clubx.com", "ana"},
		{"Ana.Garcia+club@x.com", "anagarcia"},
		{"josé@x.com", "jos"},
		{"___@x.com", "admin"},
		{"no-at-sign", "noatsign"},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, LoginBase(tt.email))
		})
	}
}

func TestDrawLogin(t *testing.T) {
	for i := 0; i < 50; i++ {
		login, err := drawLogin(rand.Reader, "ana")
		require.NoError(t, err)
		assert.Regexp(t, `^ana[1-9]\d{3}$`, login)
	}
}

func TestGeneratePassword(t *testing.T) {
	for i := 0; i < 50; i++ {
		pw, err := GeneratePassword(rand.Reader)
		require.NoError(t, err)
		assert.Len(t, pw, passwordLength)
		assert.False(t, strings.ContainsAny(pw, "0OIl1"), pw)
	}

	_, err := GeneratePassword(strings.NewReader(""))
	assert.Error(t, err)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("s3cretPass", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cretPass")))
}
