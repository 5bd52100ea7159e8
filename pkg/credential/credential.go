// Package credential manages PowerSchool plugin credentials: keyring
// storage, interactive prompting, and validation against the server's token
// endpoint.
package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/schaubda/psdatahelper/internal/auth"
	"github.com/schaubda/psdatahelper/internal/constants"
	"github.com/schaubda/psdatahelper/pkg/psdata"
)

// Static errors for err113 compliance.
var ErrNoPrompter = errors.New("credentials are incomplete and no prompter is available")

// Credential holds a plugin's credential fields for one server, along with
// where they came from.
type Credential struct {
	ServerName    string
	ServerAddress string
	Plugin        string
	Fields        map[string]string
	Loaded        bool

	store  Store
	logger psdata.Logger
}

// NormalizeServerAddress strips any scheme and trailing slashes from the
// address and prefixes https, so "myschool.powerschool.com/" and
// "http://myschool.powerschool.com" both normalize to
// "https://myschool.powerschool.com". The function is idempotent.
func NormalizeServerAddress(address string) string {
	trimmed := strings.TrimSpace(address)
	trimmed = strings.TrimPrefix(trimmed, "https://")
	trimmed = strings.TrimPrefix(trimmed, "http://")
	trimmed = strings.TrimRight(trimmed, "/")

	return "https://" + trimmed
}

// Acquire loads the plugin's credentials from the store, prompting for any
// missing fields, and validates them with a single token exchange against
// serverAddress, which must already be normalized. Client id and secret are
// persisted as soon as they are entered, before the token exchange, so a
// network failure does not cost the user their typing. The exchange is not
// retried: a failure comes back as an error with the credential left
// unloaded. When the server rejects the pair itself, the stored pair is
// cleared so the next acquisition prompts fresh; a transient exchange error
// leaves the stored pair alone.
func Acquire(ctx context.Context, serverName, serverAddress, plugin string, store Store, prompter Prompter, logger psdata.Logger) (*Credential, error) {
	cred := &Credential{
		ServerName:    serverName,
		ServerAddress: serverAddress,
		Plugin:        plugin,
		Fields:        map[string]string{},
		store:         store,
		logger:        logger,
	}

	if stored, err := store.Get(serverName, plugin); err == nil {
		cred.Fields = stored
	} else if !errors.Is(err, ErrNotFound) {
		cred.logWarn("Could not read stored credentials", map[string]interface{}{
			"server": serverName,
			"plugin": plugin,
			"error":  err.Error(),
		})
	}

	if cred.Fields[FieldClientID] == "" || cred.Fields[FieldClientSecret] == "" {
		if prompter == nil {
			return nil, ErrNoPrompter
		}

		if err := cred.promptPair(prompter); err != nil {
			return nil, err
		}

		if err := cred.persist(); err != nil {
			cred.logWarn("Could not save credentials", map[string]interface{}{
				"server": serverName,
				"plugin": plugin,
				"error":  err.Error(),
			})
		}
	}

	token, err := cred.fetchToken(ctx)
	if err != nil {
		cred.logWarn("Credential validation failed", map[string]interface{}{
			"server": serverName,
			"plugin": plugin,
			"error":  err.Error(),
		})

		var tokenErr *auth.TokenRequestError
		if errors.As(err, &tokenErr) && tokenErr.InvalidClient() {
			// The pair itself was rejected; keeping it would just fail again.
			cred.Fields[FieldClientID] = ""
			cred.Fields[FieldClientSecret] = ""
			delete(cred.Fields, FieldAccessToken)

			if persistErr := cred.persist(); persistErr != nil {
				cred.logWarn("Could not clear rejected credentials", map[string]interface{}{
					"server": serverName,
					"plugin": plugin,
					"error":  persistErr.Error(),
				})
			}
		}

		return nil, err
	}

	cred.Fields[FieldAccessToken] = token
	cred.Loaded = true

	if persistErr := cred.persist(); persistErr != nil {
		cred.logWarn("Could not save access token", map[string]interface{}{
			"server": serverName,
			"plugin": plugin,
			"error":  persistErr.Error(),
		})
	}

	return cred, nil
}

// TokenManager returns a token manager backed by these credentials that
// writes refreshed tokens back to the store.
func (c *Credential) TokenManager() auth.TokenManager {
	return auth.NewPersistingTokenManager(c.oauthConfig(), c, c.logger, c.Fields[FieldAccessToken], time.Time{})
}

// SaveAccessToken implements auth.TokenPersister.
func (c *Credential) SaveAccessToken(token string, expiresAt time.Time) error {
	c.Fields[FieldAccessToken] = token

	return c.persist()
}

func (c *Credential) oauthConfig() *auth.OAuth2Config {
	return &auth.OAuth2Config{
		TokenURL:     c.ServerAddress + constants.TokenEndpointPath,
		ClientID:     c.Fields[FieldClientID],
		ClientSecret: c.Fields[FieldClientSecret],
	}
}

func (c *Credential) promptPair(prompter Prompter) error {
	for c.Fields[FieldClientID] == "" {
		value, err := prompter.Prompt("Client ID")
		if err != nil {
			return fmt.Errorf("prompting for client id: %w", err)
		}

		c.Fields[FieldClientID] = value
	}

	for c.Fields[FieldClientSecret] == "" {
		value, err := prompter.PromptSecret("Client secret")
		if err != nil {
			return fmt.Errorf("prompting for client secret: %w", err)
		}

		c.Fields[FieldClientSecret] = value
	}

	return nil
}

func (c *Credential) fetchToken(ctx context.Context) (string, error) {
	manager := auth.NewOAuth2TokenManager(c.oauthConfig())

	if err := manager.RefreshToken(ctx); err != nil {
		return "", fmt.Errorf("validating credentials: %w", err)
	}

	return manager.GetToken(ctx)
}

func (c *Credential) persist() error {
	if c.store == nil {
		return nil
	}

	return c.store.Set(c.ServerName, c.Plugin, c.Fields)
}

func (c *Credential) logWarn(msg string, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.Warn(msg, fields)
	}
}
