package auth_test

import (
	"testing"
	"time"

	"github.com/schaubda/psdatahelper/internal/auth"
	"github.com/stretchr/testify/assert"
)

func TestToken_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		token    *auth.Token
		expected bool
	}{
		{
			name:     "nil token",
			token:    nil,
			expected: false,
		},
		{
			name: "empty access token",
			token: &auth.Token{
				AccessToken: "",
			},
			expected: false,
		},
		{
			name: "valid token without expiry",
			token: &auth.Token{
				AccessToken: "test-token",
			},
			expected: true,
		},
		{
			name: "valid token with future expiry",
			token: &auth.Token{
				AccessToken: "test-token",
				ExpiresAt:   time.Now().Add(1 * time.Hour),
			},
			expected: true,
		},
		{
			name: "expired token",
			token: &auth.Token{
				AccessToken: "test-token",
				ExpiresAt:   time.Now().Add(-1 * time.Hour),
			},
			expected: false,
		},
		{
			name: "token expiring within buffer",
			token: &auth.Token{
				AccessToken: "test-token",
				ExpiresAt:   time.Now().Add(15 * time.Second),
			},
			expected: false, // Should be false due to 30 second buffer
		},
		{
			name: "token expiring just outside buffer",
			token: &auth.Token{
				AccessToken: "test-token",
				ExpiresAt:   time.Now().Add(35 * time.Second),
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.token.Valid())
		})
	}
}

func TestTokenStore(t *testing.T) {
	t.Parallel()

	t.Run("new store is empty", func(t *testing.T) {
		t.Parallel()

		store := auth.NewTokenStore()
		assert.Nil(t, store.Get())
	})

	t.Run("set and get token", func(t *testing.T) {
		t.Parallel()

		store := auth.NewTokenStore()
		token := &auth.Token{
			AccessToken: "test-token",
			TokenType:   "bearer",
		}

		store.Set(token)
		retrieved := store.Get()
		assert.NotNil(t, retrieved)
		assert.Equal(t, token.AccessToken, retrieved.AccessToken)
		assert.Equal(t, token.TokenType, retrieved.TokenType)
	})

	t.Run("clear token", func(t *testing.T) {
		t.Parallel()

		store := auth.NewTokenStore()
		store.Set(&auth.Token{AccessToken: "test-token"})
		assert.NotNil(t, store.Get())

		store.Clear()
		assert.Nil(t, store.Get())
	})

	t.Run("concurrent access", func(t *testing.T) {
		t.Parallel()

		store := auth.NewTokenStore()
		done := make(chan bool)

		go func() {
			for i := 0; i < 100; i++ {
				store.Set(&auth.Token{AccessToken: "token-1"})
			}

			done <- true
		}()

		go func() {
			for i := 0; i < 100; i++ {
				store.Set(&auth.Token{AccessToken: "token-2"})
			}

			done <- true
		}()

		go func() {
			for i := 0; i < 100; i++ {
				_ = store.Get()
			}

			done <- true
		}()

		for i := 0; i < 3; i++ {
			<-done
		}

		finalToken := store.Get()
		assert.NotNil(t, finalToken)
		assert.True(t, finalToken.AccessToken == "token-1" || finalToken.AccessToken == "token-2")
	})
}
