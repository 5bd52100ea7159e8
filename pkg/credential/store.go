package credential

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// Field names stored for a plugin's credential entry.
const (
	FieldClientID     = "client_id"
	FieldClientSecret = "client_secret"
	FieldAccessToken  = "access_token"
)

// ErrNotFound is returned when no credential entry exists for the server and
// plugin pair.
var ErrNotFound = errors.New("credential not found")

// Store persists credential fields keyed by server name and plugin name.
type Store interface {
	Get(serverName, plugin string) (map[string]string, error)
	Set(serverName, plugin string, fields map[string]string) error
}

// KeyringStore stores credentials in the operating system keyring. The server
// name is the keyring service and the plugin name is the account, so several
// plugins against the same server keep separate entries. Fields are stored
// together as one JSON document.
type KeyringStore struct{}

// NewKeyringStore creates a keyring-backed credential store.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

// Get implements Store.Get.
func (s *KeyringStore) Get(serverName, plugin string) (map[string]string, error) {
	secret, err := keyring.Get(serverName, plugin)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("reading keyring entry: %w", err)
	}

	var fields map[string]string

	if err := json.Unmarshal([]byte(secret), &fields); err != nil {
		return nil, fmt.Errorf("parsing keyring entry: %w", err)
	}

	return fields, nil
}

// Set implements Store.Set.
func (s *KeyringStore) Set(serverName, plugin string, fields map[string]string) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encoding keyring entry: %w", err)
	}

	if err := keyring.Set(serverName, plugin, string(data)); err != nil {
		return fmt.Errorf("writing keyring entry: %w", err)
	}

	return nil
}
