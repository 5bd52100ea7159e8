package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/schaubda/psdatahelper/pkg/psdata"
)

// TokenPersister saves a freshly issued access token to durable storage,
// typically the OS keyring entry backing the plugin credentials.
var ErrNoTokenPersister = errors.New("no token persister configured")

type TokenPersister interface {
	SaveAccessToken(token string, expiresAt time.Time) error
}

// PersistingTokenManager wraps OAuth2TokenManager and writes every newly
// issued token back through a TokenPersister, so the next session can start
// from a cached token instead of another client-credentials exchange.
type PersistingTokenManager struct {
	oauth2Manager *OAuth2TokenManager
	persister     TokenPersister
	logger        psdata.Logger
	mutex         sync.RWMutex
	lastToken     string
	lastExpiry    time.Time
}

// NewPersistingTokenManager creates a persisting token manager. If an initial
// token is supplied it seeds the underlying OAuth2 manager. Persistence
// failures are reported through the logger, which may be nil.
func NewPersistingTokenManager(config *OAuth2Config, persister TokenPersister, logger psdata.Logger, initialToken string, initialExpiry time.Time) *PersistingTokenManager {
	oauth2Manager := NewOAuth2TokenManager(config)

	if initialToken != "" {
		oauth2Manager.SetToken(initialToken, initialExpiry)
	}

	return &PersistingTokenManager{
		oauth2Manager: oauth2Manager,
		persister:     persister,
		logger:        logger,
		lastToken:     initialToken,
		lastExpiry:    initialExpiry,
	}
}

// GetToken returns a valid access token, refreshing if necessary.
func (m *PersistingTokenManager) GetToken(ctx context.Context) (string, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	token, err := m.oauth2Manager.GetToken(ctx)
	if err != nil {
		return "", err
	}

	currentToken := m.oauth2Manager.store.Get()
	if currentToken != nil && (currentToken.AccessToken != m.lastToken || !currentToken.ExpiresAt.Equal(m.lastExpiry)) {
		// Persistence is best effort; the in-memory token still works.
		m.notePersistence(currentToken)

		m.lastToken = currentToken.AccessToken
		m.lastExpiry = currentToken.ExpiresAt
	}

	return token, nil
}

// RefreshToken forces a token refresh.
func (m *PersistingTokenManager) RefreshToken(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	err := m.oauth2Manager.RefreshToken(ctx)
	if err != nil {
		return err
	}

	currentToken := m.oauth2Manager.store.Get()
	if currentToken != nil {
		m.notePersistence(currentToken)

		m.lastToken = currentToken.AccessToken
		m.lastExpiry = currentToken.ExpiresAt
	}

	return nil
}

func (m *PersistingTokenManager) notePersistence(token *Token) {
	err := m.persistToken(token)
	if err != nil && m.logger != nil {
		m.logger.Warn("Could not persist refreshed token", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// SetToken manually sets the access token.
func (m *PersistingTokenManager) SetToken(token string, expiresAt time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.oauth2Manager.SetToken(token, expiresAt)
	m.lastToken = token
	m.lastExpiry = expiresAt
}

// TokenExpiry returns the current token's expiration time, or the zero time
// when no token is held.
func (m *PersistingTokenManager) TokenExpiry() time.Time {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	token := m.oauth2Manager.store.Get()
	if token == nil {
		return time.Time{}
	}

	return token.ExpiresAt
}

func (m *PersistingTokenManager) persistToken(token *Token) error {
	if m.persister == nil {
		return ErrNoTokenPersister
	}

	err := m.persister.SaveAccessToken(token.AccessToken, token.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to save access token: %w", err)
	}

	return nil
}
