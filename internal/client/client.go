// Package client implements the psdata.Client interface against the
// PowerSchool server's schema table, PowerQuery, and student endpoints.
package client

import (
	"context"
	"errors"
	"time"

	"github.com/schaubda/psdatahelper/internal/auth"
	"github.com/schaubda/psdatahelper/internal/constants"
	pshttp "github.com/schaubda/psdatahelper/internal/http"
	"github.com/schaubda/psdatahelper/pkg/psdata"
)

// Static errors for err113 compliance.
var ErrStaticTokenCannotRefresh = errors.New("static token cannot be refreshed")

// Client implements the psdata.Client interface. Operations never return
// errors; failures are logged and reflected in the returned record sets.
type Client struct {
	httpClient   *pshttp.Client
	tokenManager auth.TokenManager
	baseURL      string
	logger       psdata.Logger
	plugin       string
	connected    bool

	queryPrefix      string
	fallbackReinsert bool
}

// createTokenManager creates the appropriate token manager based on config.
func createTokenManager(config *psdata.Config, baseURL string) auth.TokenManager {
	if config.AccessToken != "" {
		return &staticTokenManager{token: config.AccessToken}
	}

	if config.ClientID != "" && config.ClientSecret != "" {
		return auth.NewOAuth2TokenManager(&auth.OAuth2Config{
			TokenURL:     baseURL + constants.TokenEndpointPath,
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
		})
	}

	return nil
}

// createHTTPClientOptions builds HTTP client options from config.
func createHTTPClientOptions(config *psdata.Config) []pshttp.Option {
	var httpOpts []pshttp.Option

	if config.Logger != nil {
		httpOpts = append(httpOpts, pshttp.WithLogger(config.Logger))
	}

	if config.Debug {
		httpOpts = append(httpOpts, pshttp.WithDebug(true))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, pshttp.WithUserAgent(config.UserAgent))
	}

	if config.HTTPTimeout > 0 {
		httpOpts = append(httpOpts, pshttp.WithHTTPTimeout(config.HTTPTimeout))
	}

	if config.RetryMax > 0 {
		retryWaitMin := constants.DefaultRetryWaitMin
		retryWaitMax := constants.DefaultRetryWaitMax

		if config.RetryWaitMin > 0 {
			retryWaitMin = config.RetryWaitMin
		}

		if config.RetryWaitMax > 0 {
			retryWaitMax = config.RetryWaitMax
		}

		httpOpts = append(httpOpts, pshttp.WithRetryConfig(config.RetryMax, retryWaitMin, retryWaitMax))
	}

	return httpOpts
}

// New creates a connected client from config credentials. baseURL must be the
// normalized server URL including the https scheme.
func New(config *psdata.Config, baseURL string) *Client {
	return NewWithTokenManager(config, baseURL, createTokenManager(config, baseURL))
}

// NewWithTokenManager creates a connected client with a custom token manager,
// typically one produced by the interactive credential flow.
func NewWithTokenManager(config *psdata.Config, baseURL string, tokenManager auth.TokenManager) *Client {
	httpOpts := createHTTPClientOptions(config)
	httpClient := pshttp.NewClient(baseURL, tokenManager, httpOpts...)

	return &Client{
		httpClient:       httpClient,
		tokenManager:     tokenManager,
		baseURL:          baseURL,
		logger:           config.Logger,
		plugin:           config.Plugin,
		connected:        true,
		queryPrefix:      config.QueryPrefix,
		fallbackReinsert: config.UpdateFallbackReinsert,
	}
}

// NewUnconnected creates a client that is not connected to any server. Every
// operation on it logs an error and returns an empty result.
func NewUnconnected(logger psdata.Logger) *Client {
	return &Client{logger: logger}
}

// Connected reports whether the client holds a usable server connection.
func (c *Client) Connected() bool {
	return c.connected
}

// Close releases idle connections and marks the client as not connected.
func (c *Client) Close() {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}

	c.connected = false
}

// SetQueryPrefix sets the prefix prepended to PowerQuery names, typically the
// plugin's reverse-domain namespace.
func (c *Client) SetQueryPrefix(prefix string) {
	c.queryPrefix = prefix
}

// TokenManager returns the token manager for this client.
func (c *Client) TokenManager() auth.TokenManager {
	return c.tokenManager
}

// guard checks connectivity before an operation. A client that never
// connected, or was closed, fails every operation the same way.
func (c *Client) guard(operation string) bool {
	if c.connected {
		return true
	}

	c.logError("Not connected to the server", map[string]interface{}{
		"operation": operation,
	})

	return false
}

func (c *Client) logError(msg string, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.Error(msg, fields)
	}
}

func (c *Client) logDebug(msg string, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, fields)
	}
}

// staticTokenManager provides a fixed token.
type staticTokenManager struct {
	token string
}

func (m *staticTokenManager) GetToken(ctx context.Context) (string, error) {
	return m.token, nil
}

func (m *staticTokenManager) RefreshToken(ctx context.Context) error {
	return ErrStaticTokenCannotRefresh
}

func (m *staticTokenManager) SetToken(token string, expiresAt time.Time) {
	m.token = token
}
