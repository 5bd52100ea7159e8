package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/schaubda/psdatahelper/internal/constants"
)

// Static errors for token acquisition.
var (
	ErrNoCredentials = errors.New("no valid credentials available")
)

// OAuth2Config configures the client-credentials token exchange.
type OAuth2Config struct {
	// TokenURL is the full token endpoint, typically
	// "<server>/oauth/access_token".
	TokenURL string

	// ClientID and ClientSecret are sent via HTTP Basic auth.
	ClientID     string
	ClientSecret string

	// AccessToken optionally seeds the manager with an already-acquired
	// token.
	AccessToken string

	// HTTPClient overrides the client used for the exchange. Defaults to a
	// client with a short timeout.
	HTTPClient *http.Client
}

// OAuth2TokenManager acquires and caches bearer tokens using the OAuth2
// client-credentials grant.
type OAuth2TokenManager struct {
	config     *OAuth2Config
	store      *TokenStore
	httpClient *http.Client
}

// NewOAuth2TokenManager creates a token manager from the given config.
func NewOAuth2TokenManager(config *OAuth2Config) *OAuth2TokenManager {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: constants.ShortHTTPTimeout}
	}

	manager := &OAuth2TokenManager{
		config:     config,
		store:      NewTokenStore(),
		httpClient: httpClient,
	}

	if config.AccessToken != "" {
		manager.store.Set(&Token{
			AccessToken: config.AccessToken,
			TokenType:   "bearer",
		})
	}

	return manager
}

// GetToken returns a valid access token, fetching a new one when the cached
// token is missing or expired.
func (m *OAuth2TokenManager) GetToken(ctx context.Context) (string, error) {
	token := m.store.Get()
	if token.Valid() {
		return token.AccessToken, nil
	}

	token, err := m.fetchToken(ctx)
	if err != nil {
		return "", err
	}

	m.store.Set(token)

	return token.AccessToken, nil
}

// RefreshToken forces a new token exchange regardless of the cached token's
// validity.
func (m *OAuth2TokenManager) RefreshToken(ctx context.Context) error {
	token, err := m.fetchToken(ctx)
	if err != nil {
		return err
	}

	m.store.Set(token)

	return nil
}

// SetToken manually sets the access token.
func (m *OAuth2TokenManager) SetToken(token string, expiresAt time.Time) {
	m.store.Set(&Token{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
	})
}

// fetchToken performs the client-credentials exchange.
func (m *OAuth2TokenManager) fetchToken(ctx context.Context) (*Token, error) {
	if m.config.ClientID == "" || m.config.ClientSecret == "" {
		return nil, ErrNoCredentials
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}

	req.SetBasicAuth(m.config.ClientID, m.config.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseTokenError(resp.StatusCode, body)
	}

	var token Token

	err = json.Unmarshal(body, &token)
	if err != nil {
		return nil, fmt.Errorf("parsing token response: %w", err)
	}

	if seconds, err := token.ExpiresIn.Int64(); err == nil && seconds > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(seconds) * time.Second)
	}

	return &token, nil
}

// TokenRequestError is returned when the token endpoint rejects the
// exchange. Code and Description carry the endpoint's error payload when one
// was parseable.
type TokenRequestError struct {
	StatusCode  int
	Code        string
	Description string
	Body        string
}

func (e *TokenRequestError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("token request failed with status %d: %s", e.StatusCode, e.Body)
	}

	return fmt.Sprintf("token request failed with status %d: %s: %s",
		e.StatusCode, e.Code, e.Description)
}

// InvalidClient reports whether the server rejected the client id and secret
// themselves, as opposed to a transient exchange failure.
func (e *TokenRequestError) InvalidClient() bool {
	return e.Code == "invalid_client" || e.StatusCode == http.StatusUnauthorized
}

func parseTokenError(statusCode int, body []byte) error {
	var payload struct {
		Code        string `json:"error"`
		Description string `json:"error_description"`
	}

	err := json.Unmarshal(body, &payload)
	if err != nil {
		return &TokenRequestError{StatusCode: statusCode, Body: string(body)}
	}

	return &TokenRequestError{
		StatusCode:  statusCode,
		Code:        payload.Code,
		Description: payload.Description,
		Body:        string(body),
	}
}
