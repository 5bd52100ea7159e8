package psclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/schaubda/psdatahelper/pkg/credential"
	"github.com/schaubda/psdatahelper/pkg/psclient"
	"github.com/schaubda/psdatahelper/pkg/psdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(msg string, fields map[string]interface{}) {}
func (nopLogger) Info(msg string, fields map[string]interface{})  {}
func (nopLogger) Warn(msg string, fields map[string]interface{})  {}
func (nopLogger) Error(msg string, fields map[string]interface{}) {}

type memStore struct {
	fields map[string]string
}

func (s *memStore) Get(serverName, plugin string) (map[string]string, error) {
	if s.fields == nil {
		return nil, credential.ErrNotFound
	}

	return s.fields, nil
}

func (s *memStore) Set(serverName, plugin string, fields map[string]string) error {
	s.fields = fields

	return nil
}

type scriptedPrompter struct {
	id     string
	secret string
}

func (p *scriptedPrompter) Prompt(label string) (string, error) {
	return p.id, nil
}

func (p *scriptedPrompter) PromptSecret(label string) (string, error) {
	return p.secret, nil
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	_, err := psclient.New(ctx, nil)
	assert.ErrorIs(t, err, psdata.ErrConfigRequired)

	_, err = psclient.New(ctx, &psdata.Config{})
	assert.ErrorIs(t, err, psdata.ErrServerAddressRequired)

	_, err = psclient.New(ctx, &psdata.Config{ServerAddress: "myschool.test"})
	assert.ErrorIs(t, err, psdata.ErrPluginRequired)

	_, err = psclient.New(ctx, &psdata.Config{ServerAddress: "myschool.test", Plugin: "p"})
	assert.ErrorIs(t, err, psdata.ErrLoggerRequired)
}

func TestNew_ClientCredentials(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		switch request.URL.Path {
		case "/oauth/access_token":
			id, secret, ok := request.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "plugin-id", id)
			assert.Equal(t, "plugin-secret", secret)

			_ = json.NewEncoder(writer).Encode(map[string]string{
				"access_token": "issued-token",
				"token_type":   "bearer",
				"expires_in":   "3600",
			})
		case "/ws/schema/table/u_demo/count":
			assert.Equal(t, "Bearer issued-token", request.Header.Get("Authorization"))
			_, _ = writer.Write([]byte(`{"count":3}`))
		default:
			t.Errorf("unexpected path %s", request.URL.Path)
		}
	}))
	defer server.Close()

	client, err := psclient.NewWithClientCredentials(context.Background(),
		server.URL, "test_plugin", "plugin-id", "plugin-secret", nopLogger{},
		psclient.WithEndpoint(server.URL))
	require.NoError(t, err)
	require.True(t, client.Connected())

	count := client.GetRecordCount(context.Background(), "u_demo", "")
	assert.Equal(t, 3, count)

	client.Close()
	assert.False(t, client.Connected())
}

func TestNew_StaticToken(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "Bearer static-token", request.Header.Get("Authorization"))
		_, _ = writer.Write([]byte(`{"count":1}`))
	}))
	defer server.Close()

	client, err := psclient.NewWithToken(context.Background(),
		server.URL, "test_plugin", "static-token", nopLogger{},
		psclient.WithEndpoint(server.URL))
	require.NoError(t, err)

	count := client.GetRecordCount(context.Background(), "u_demo", "")
	assert.Equal(t, 1, count)
}

func TestNew_InteractiveAcquire(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		switch request.URL.Path {
		case "/oauth/access_token":
			_ = json.NewEncoder(writer).Encode(map[string]string{
				"access_token": "acquired-token",
				"token_type":   "bearer",
				"expires_in":   "3600",
			})
		case "/ws/schema/table/u_demo/count":
			assert.Equal(t, "Bearer acquired-token", request.Header.Get("Authorization"))
			_, _ = writer.Write([]byte(`{"count":9}`))
		}
	}))
	defer server.Close()

	store := &memStore{}
	client, err := psclient.New(context.Background(), &psdata.Config{
		ServerAddress: server.URL,
		Plugin:        "test_plugin",
		Logger:        nopLogger{},
	},
		psclient.WithStore(store),
		psclient.WithPrompter(&scriptedPrompter{id: "typed-id", secret: "typed-secret"}),
		psclient.WithEndpoint(server.URL),
	)
	require.NoError(t, err)
	require.True(t, client.Connected())

	count := client.GetRecordCount(context.Background(), "u_demo", "")
	assert.Equal(t, 9, count)

	// Acquired credentials were persisted for the next session.
	assert.Equal(t, "typed-id", store.fields[credential.FieldClientID])
	assert.Equal(t, "acquired-token", store.fields[credential.FieldAccessToken])
}

func TestNew_AcquireFailureYieldsUnconnectedClient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(writer).Encode(map[string]string{
			"error":             "invalid_client",
			"error_description": "Client authentication failed",
		})
	}))
	defer server.Close()

	client, err := psclient.New(context.Background(), &psdata.Config{
		ServerAddress: server.URL,
		Plugin:        "test_plugin",
		Logger:        nopLogger{},
	},
		psclient.WithStore(&memStore{}),
		psclient.WithPrompter(&scriptedPrompter{id: "bad", secret: "bad"}),
		psclient.WithEndpoint(server.URL),
	)
	require.NoError(t, err)
	assert.False(t, client.Connected())

	// Operations on the unconnected client come back empty instead of
	// panicking or erroring.
	result := client.GetRecords(context.Background(), "u_demo", "", nil)
	assert.True(t, result.Empty())
}
