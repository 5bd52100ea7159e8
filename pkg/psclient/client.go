// Package psclient provides the main entry point for creating PowerSchool
// API clients.
package psclient

import (
	"context"

	"github.com/schaubda/psdatahelper/internal/client"
	"github.com/schaubda/psdatahelper/pkg/credential"
	"github.com/schaubda/psdatahelper/pkg/psdata"
)

// Option adjusts how New acquires credentials.
type Option func(*settings)

type settings struct {
	store    credential.Store
	prompter credential.Prompter
	endpoint string
}

// WithStore replaces the OS keyring as the credential store.
func WithStore(store credential.Store) Option {
	return func(s *settings) {
		s.store = store
	}
}

// WithPrompter replaces the terminal prompter used when stored credentials
// are missing or stale.
func WithPrompter(prompter credential.Prompter) Option {
	return func(s *settings) {
		s.prompter = prompter
	}
}

// WithEndpoint uses the given URL verbatim as the API endpoint instead of
// the normalized https form of the server address. Meant for test servers
// and local proxies; the server address still keys the credential store.
func WithEndpoint(endpoint string) Option {
	return func(s *settings) {
		s.endpoint = endpoint
	}
}

// New creates a PowerSchool API client. Credentials come from the config
// when present; otherwise they are loaded from the credential store,
// prompting interactively for anything missing.
//
// A credential failure does not return an error: it is logged, and the
// returned client is unconnected, so every operation on it yields an empty
// result. Callers that need to distinguish check Connected.
func New(ctx context.Context, config *psdata.Config, opts ...Option) (psdata.Client, error) {
	if config == nil {
		return nil, psdata.ErrConfigRequired
	}

	if config.ServerAddress == "" {
		return nil, psdata.ErrServerAddressRequired
	}

	if config.Plugin == "" {
		return nil, psdata.ErrPluginRequired
	}

	if config.Logger == nil {
		return nil, psdata.ErrLoggerRequired
	}

	applied := &settings{
		store:    credential.NewKeyringStore(),
		prompter: credential.NewTermPrompter(),
	}

	for _, opt := range opts {
		opt(applied)
	}

	baseURL := applied.endpoint
	if baseURL == "" {
		baseURL = credential.NormalizeServerAddress(config.ServerAddress)
	}

	if config.AccessToken != "" || (config.ClientID != "" && config.ClientSecret != "") {
		return client.New(config, baseURL), nil
	}

	cred, err := credential.Acquire(ctx, config.ServerAddress, baseURL, config.Plugin, applied.store, applied.prompter, config.Logger)
	if err != nil {
		config.Logger.Error("Could not acquire credentials", map[string]interface{}{
			"server": config.ServerAddress,
			"plugin": config.Plugin,
			"error":  err.Error(),
		})

		return client.NewUnconnected(config.Logger), nil
	}

	return client.NewWithTokenManager(config, baseURL, cred.TokenManager()), nil
}

// NewWithToken creates a client that authenticates with a pre-issued access
// token.
func NewWithToken(ctx context.Context, server, plugin, token string, logger psdata.Logger, opts ...Option) (psdata.Client, error) {
	return New(ctx, &psdata.Config{
		ServerAddress: server,
		Plugin:        plugin,
		AccessToken:   token,
		Logger:        logger,
	}, opts...)
}

// NewWithClientCredentials creates a client that exchanges the plugin's
// client id and secret for access tokens as needed.
func NewWithClientCredentials(ctx context.Context, server, plugin, clientID, clientSecret string, logger psdata.Logger, opts ...Option) (psdata.Client, error) {
	return New(ctx, &psdata.Config{
		ServerAddress: server,
		Plugin:        plugin,
		ClientID:      clientID,
		ClientSecret:  clientSecret,
		Logger:        logger,
	}, opts...)
}
