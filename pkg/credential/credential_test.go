package credential

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore records every Set call in order.
type fakeStore struct {
	fields map[string]string
	getErr error
	sets   []map[string]string
}

func (s *fakeStore) Get(serverName, plugin string) (map[string]string, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}

	copied := make(map[string]string, len(s.fields))
	for key, value := range s.fields {
		copied[key] = value
	}

	return copied, nil
}

func (s *fakeStore) Set(serverName, plugin string, fields map[string]string) error {
	copied := make(map[string]string, len(fields))
	for key, value := range fields {
		copied[key] = value
	}

	s.sets = append(s.sets, copied)

	return nil
}

// fakePrompter hands out scripted answers.
type fakePrompter struct {
	ids     []string
	secrets []string
	prompts int
}

func (p *fakePrompter) Prompt(label string) (string, error) {
	p.prompts++

	value := p.ids[0]
	if len(p.ids) > 1 {
		p.ids = p.ids[1:]
	}

	return value, nil
}

func (p *fakePrompter) PromptSecret(label string) (string, error) {
	p.prompts++

	value := p.secrets[0]
	if len(p.secrets) > 1 {
		p.secrets = p.secrets[1:]
	}

	return value, nil
}

func tokenServer(t *testing.T, validID, validSecret string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/oauth/access_token", request.URL.Path)

		id, secret, ok := request.BasicAuth()
		if !ok || id != validID || secret != validSecret {
			writer.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(writer).Encode(map[string]string{
				"error":             "invalid_client",
				"error_description": "Client authentication failed",
			})

			return
		}

		_ = json.NewEncoder(writer).Encode(map[string]string{
			"access_token": "fresh-token",
			"token_type":   "bearer",
			"expires_in":   "3600",
		})
	}))
}

func TestNormalizeServerAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"bare host", "myschool.powerschool.com", "https://myschool.powerschool.com"},
		{"https scheme", "https://myschool.powerschool.com", "https://myschool.powerschool.com"},
		{"http scheme replaced", "http://myschool.powerschool.com", "https://myschool.powerschool.com"},
		{"trailing slashes", "myschool.powerschool.com///", "https://myschool.powerschool.com"},
		{"surrounding space", "  myschool.powerschool.com ", "https://myschool.powerschool.com"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			normalized := NormalizeServerAddress(tt.input)
			assert.Equal(t, tt.expected, normalized)

			// Normalizing twice changes nothing.
			assert.Equal(t, normalized, NormalizeServerAddress(normalized))
		})
	}
}

func TestAcquire(t *testing.T) {
	t.Parallel()

	t.Run("stored credentials need no prompting", func(t *testing.T) {
		t.Parallel()

		server := tokenServer(t, "stored-id", "stored-secret")
		defer server.Close()

		store := &fakeStore{fields: map[string]string{
			FieldClientID:     "stored-id",
			FieldClientSecret: "stored-secret",
		}}
		prompter := &fakePrompter{}

		cred, err := Acquire(context.Background(), "test-server", server.URL, "test_plugin", store, prompter, nil)
		require.NoError(t, err)
		assert.True(t, cred.Loaded)
		assert.Equal(t, 0, prompter.prompts)
		assert.Equal(t, "fresh-token", cred.Fields[FieldAccessToken])
	})

	t.Run("prompts exactly twice and persists before validating", func(t *testing.T) {
		t.Parallel()

		server := tokenServer(t, "typed-id", "typed-secret")
		defer server.Close()

		store := &fakeStore{getErr: ErrNotFound}
		prompter := &fakePrompter{ids: []string{"typed-id"}, secrets: []string{"typed-secret"}}

		cred, err := Acquire(context.Background(), "test-server", server.URL, "test_plugin", store, prompter, nil)
		require.NoError(t, err)
		assert.True(t, cred.Loaded)
		assert.Equal(t, 2, prompter.prompts)

		// First persist happens before the token exchange and carries only
		// the typed pair; the second adds the validated token.
		require.Len(t, store.sets, 2)
		assert.Equal(t, "typed-id", store.sets[0][FieldClientID])
		assert.Empty(t, store.sets[0][FieldAccessToken])
		assert.Equal(t, "fresh-token", store.sets[1][FieldAccessToken])
	})

	t.Run("rejected pair is cleared without retrying", func(t *testing.T) {
		t.Parallel()

		server := tokenServer(t, "good-id", "good-secret")
		defer server.Close()

		store := &fakeStore{fields: map[string]string{
			FieldClientID:     "bad-id",
			FieldClientSecret: "bad-secret",
		}}
		prompter := &fakePrompter{ids: []string{"good-id"}, secrets: []string{"good-secret"}}

		_, err := Acquire(context.Background(), "test-server", server.URL, "test_plugin", store, prompter, nil)
		require.Error(t, err)

		// The single exchange failed, so nothing was prompted in this call,
		// and the rejected pair was wiped from the store so the next
		// acquisition asks fresh.
		assert.Equal(t, 0, prompter.prompts)
		require.Len(t, store.sets, 1)
		assert.Empty(t, store.sets[0][FieldClientID])
		assert.Empty(t, store.sets[0][FieldClientSecret])
	})

	t.Run("transient failures keep the stored pair", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		store := &fakeStore{fields: map[string]string{
			FieldClientID:     "stored-id",
			FieldClientSecret: "stored-secret",
		}}

		_, err := Acquire(context.Background(), "test-server", server.URL, "test_plugin", store, &fakePrompter{}, nil)
		require.Error(t, err)

		// A server error is not a verdict on the pair; it stays stored.
		assert.Empty(t, store.sets)
	})

	t.Run("no prompter with incomplete credentials", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{getErr: ErrNotFound}

		_, err := Acquire(context.Background(), "myschool.test", "https://myschool.test", "test_plugin", store, nil, nil)
		require.ErrorIs(t, err, ErrNoPrompter)
	})
}

func TestCredential_SaveAccessToken(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	cred := &Credential{
		ServerName: "myschool.test",
		Plugin:     "test_plugin",
		Fields:     map[string]string{FieldClientID: "id"},
		store:      store,
	}

	err := cred.SaveAccessToken("rotated-token", time.Time{})
	require.NoError(t, err)

	require.Len(t, store.sets, 1)
	assert.Equal(t, "rotated-token", store.sets[0][FieldAccessToken])
}
