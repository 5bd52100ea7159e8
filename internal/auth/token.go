package auth

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/schaubda/psdatahelper/internal/constants"
)

// TokenManager provides bearer tokens for outbound requests.
type TokenManager interface {
	GetToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) error
	SetToken(token string, expiresAt time.Time)
}

// Token is the token endpoint's response. The vendor returns expires_in as a
// string, so it is decoded as a json.Number to accept both forms.
type Token struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   json.Number `json:"expires_in"`
	ExpiresAt   time.Time   `json:"-"`
}

// Valid reports whether the token is usable: non-empty and not within the
// expiration buffer of its expiry. A token without an expiry never expires.
func (t *Token) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}

	if t.ExpiresAt.IsZero() {
		return true
	}

	return time.Now().Add(constants.TokenExpirationBuffer).Before(t.ExpiresAt)
}

// TokenStore holds the current token with concurrent access safety.
type TokenStore struct {
	mutex sync.RWMutex
	token *Token
}

// NewTokenStore creates an empty token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Get returns the stored token, or nil when none is set.
func (s *TokenStore) Get() *Token {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.token
}

// Set replaces the stored token.
func (s *TokenStore) Set(token *Token) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.token = token
}

// Clear removes the stored token.
func (s *TokenStore) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.token = nil
}
