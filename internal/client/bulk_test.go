package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/schaubda/psdatahelper/pkg/psdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func demoRecords(count int) *psdata.RecordSet {
	records := psdata.NewRecordSet("id", "lastfirst")

	for i := 0; i < count; i++ {
		records.Append(psdata.Row{
			"id":        json.Number(string(rune('1' + i))),
			"lastfirst": "Student, Test",
		})
	}

	return records
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_InsertRecords(t *testing.T) {
	t.Parallel()

	t.Run("one request per row, status columns appended", func(t *testing.T) {
		t.Parallel()

		var calls int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			atomic.AddInt32(&calls, 1)
			assert.Equal(t, "POST", request.Method)
			assert.Equal(t, "/ws/schema/table/u_demo", request.URL.Path)

			var body map[string]interface{}

			err := json.NewDecoder(request.Body).Decode(&body)
			require.NoError(t, err)
			assert.Contains(t, body, "tables")

			writer.WriteHeader(http.StatusOK)
			_, _ = writer.Write([]byte(`{"insert_count":1}`))
		}))
		defer server.Close()

		client := NewTestClient(server.URL, &recordingLogger{})
		records := demoRecords(3)

		result := client.InsertRecords(context.Background(), "u_demo", records)

		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
		require.Equal(t, 3, result.Len())

		// Input is unchanged; the result is a new set with two extra columns.
		assert.Equal(t, []string{"id", "lastfirst"}, records.Columns())
		assert.Equal(t, []string{
			"id", "lastfirst",
			psdata.ColumnResponseStatusCode, psdata.ColumnResponseText,
		}, result.Columns())

		status, ok := result.Value(0, psdata.ColumnResponseStatusCode)
		assert.True(t, ok)
		assert.Equal(t, json.Number("200"), status)

		text, _ := result.Value(2, psdata.ColumnResponseText)
		assert.Equal(t, `{"insert_count":1}`, text)
	})

	t.Run("empty input makes no requests", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			t.Error("no request expected")
		}))
		defer server.Close()

		logger := &recordingLogger{}
		client := NewTestClient(server.URL, logger)

		result := client.InsertRecords(context.Background(), "u_demo", psdata.NewRecordSet())
		assert.True(t, result.Empty())
		assert.Equal(t, 1, logger.count("debug"))
	})

	t.Run("nil input makes no requests", func(t *testing.T) {
		t.Parallel()

		client := NewTestClient("http://localhost:0", &recordingLogger{})

		result := client.InsertRecords(context.Background(), "u_demo", nil)
		assert.True(t, result.Empty())
	})

	t.Run("access denied logs directives once", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusForbidden)
			_, _ = writer.Write([]byte(`{"errors":[{"resource":"u_demo","field":"lastfirst"}]}`))
		}))
		defer server.Close()

		logger := &recordingLogger{}
		client := NewTestClient(server.URL, logger)

		result := client.InsertRecords(context.Background(), "u_demo", demoRecords(5))
		assert.Equal(t, 5, result.Len())

		// One access request line for the first row; later rows are
		// suppressed, and no aggregate line piles on top.
		assert.Equal(t, 1, logger.count("error"))

		status, _ := result.Value(4, psdata.ColumnResponseStatusCode)
		assert.Equal(t, json.Number("403"), status)
	})

	t.Run("non-200 success statuses count as failures", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusCreated)
		}))
		defer server.Close()

		logger := &recordingLogger{}
		client := NewTestClient(server.URL, logger)

		result := client.InsertRecords(context.Background(), "u_demo", demoRecords(1))
		require.Equal(t, 1, result.Len())

		status, _ := result.Value(0, psdata.ColumnResponseStatusCode)
		assert.Equal(t, json.Number("201"), status)

		// A 201 is not logged by the dispatcher, but the aggregate line
		// still reports the failed row.
		assert.Equal(t, 1, logger.count("error"))
	})

	t.Run("directives survive an earlier unrelated failure", func(t *testing.T) {
		t.Parallel()

		var calls int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			switch atomic.AddInt32(&calls, 1) {
			case 1:
				writer.WriteHeader(http.StatusConflict)
			case 2:
				writer.WriteHeader(http.StatusForbidden)
				_, _ = writer.Write([]byte(`{"errors":[{"resource":"u_demo","field":"lastfirst"}]}`))
			default:
				writer.WriteHeader(http.StatusOK)
			}
		}))
		defer server.Close()

		logger := &recordingLogger{}
		client := NewTestClient(server.URL, logger)

		result := client.InsertRecords(context.Background(), "u_demo", demoRecords(3))
		require.Equal(t, 3, result.Len())

		// The 409 arms suppression, but the first 403 of the batch still
		// gets its access request line, exactly once.
		directives := 0

		for _, entry := range logger.entries {
			if entry.Level == "error" && entry.Fields["fields"] != nil {
				directives++
			}
		}

		assert.Equal(t, 1, directives)
		assert.Equal(t, 2, logger.count("error"))
	})

	t.Run("mixed failures log one aggregate line", func(t *testing.T) {
		t.Parallel()

		var calls int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			n := atomic.AddInt32(&calls, 1)
			if n == 2 {
				writer.WriteHeader(http.StatusConflict)

				return
			}

			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		logger := &recordingLogger{}
		client := NewTestClient(server.URL, logger)

		result := client.InsertRecords(context.Background(), "u_demo", demoRecords(3))
		require.Equal(t, 3, result.Len())

		status, _ := result.Value(1, psdata.ColumnResponseStatusCode)
		assert.Equal(t, json.Number("409"), status)

		// First failure logged by the dispatcher plus the aggregate count.
		assert.Equal(t, 2, logger.count("error"))
	})
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_UpdateRecords(t *testing.T) {
	t.Parallel()

	t.Run("puts each row to its record id", func(t *testing.T) {
		t.Parallel()

		var paths []string

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "PUT", request.Method)
			paths = append(paths, request.URL.Path)

			var body map[string]interface{}

			err := json.NewDecoder(request.Body).Decode(&body)
			require.NoError(t, err)

			fields := body["tables"].(map[string]interface{})["u_demo"].(map[string]interface{})
			assert.NotContains(t, fields, "id")

			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewTestClient(server.URL, &recordingLogger{})

		result := client.UpdateRecords(context.Background(), "u_demo", "id", demoRecords(2))
		require.Equal(t, 2, result.Len())
		assert.Equal(t, []string{"/ws/schema/table/u_demo/1", "/ws/schema/table/u_demo/2"}, paths)
	})

	t.Run("missing id column rejects the whole set", func(t *testing.T) {
		t.Parallel()

		logger := &recordingLogger{}
		client := NewTestClient("http://localhost:0", logger)

		result := client.UpdateRecords(context.Background(), "u_demo", "dcid", demoRecords(2))
		assert.True(t, result.Empty())
		assert.Equal(t, 1, logger.count("error"))
	})

	t.Run("row without id value fails in place", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewTestClient(server.URL, &recordingLogger{})

		records := psdata.NewRecordSet("id", "lastfirst")
		records.Append(psdata.Row{"id": json.Number("1"), "lastfirst": "Doe, Jane"})
		records.Append(psdata.Row{"lastfirst": "No Id, Row"})

		result := client.UpdateRecords(context.Background(), "u_demo", "id", records)
		require.Equal(t, 2, result.Len())

		status, _ := result.Value(0, psdata.ColumnResponseStatusCode)
		assert.Equal(t, json.Number("200"), status)

		status, _ = result.Value(1, psdata.ColumnResponseStatusCode)
		assert.Equal(t, json.Number("0"), status)

		text, _ := result.Value(1, psdata.ColumnResponseText)
		assert.Equal(t, "row has no value for the id column", text)
	})

	t.Run("fallback reinsert on failed put", func(t *testing.T) {
		t.Parallel()

		var methods []string

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			methods = append(methods, request.Method)

			switch request.Method {
			case "PUT":
				writer.WriteHeader(http.StatusMethodNotAllowed)
			case "DELETE":
				writer.WriteHeader(http.StatusNoContent)
			case "POST":
				var body map[string]interface{}

				err := json.NewDecoder(request.Body).Decode(&body)
				require.NoError(t, err)

				// The reinsert keeps the id so the record comes back
				// under the same key.
				fields := body["tables"].(map[string]interface{})["u_demo"].(map[string]interface{})
				assert.Contains(t, fields, "id")

				writer.WriteHeader(http.StatusOK)
			}
		}))
		defer server.Close()

		logger := &recordingLogger{}
		client := NewTestClient(server.URL, logger)
		client.fallbackReinsert = true

		result := client.UpdateRecords(context.Background(), "u_demo", "id", demoRecords(1))
		require.Equal(t, 1, result.Len())

		assert.Equal(t, []string{"PUT", "DELETE", "POST"}, methods)

		status, _ := result.Value(0, psdata.ColumnResponseStatusCode)
		assert.Equal(t, json.Number("200"), status)
	})
}

func TestClient_DeleteRecords(t *testing.T) {
	t.Parallel()

	t.Run("missing records count as deleted", func(t *testing.T) {
		t.Parallel()

		var calls int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			n := atomic.AddInt32(&calls, 1)
			if n == 1 {
				writer.WriteHeader(http.StatusNoContent)
			} else {
				writer.WriteHeader(http.StatusNotFound)
			}
		}))
		defer server.Close()

		logger := &recordingLogger{}
		client := NewTestClient(server.URL, logger)

		result := client.DeleteRecords(context.Background(), "u_demo", "id", demoRecords(2))
		require.Equal(t, 2, result.Len())

		status, _ := result.Value(0, psdata.ColumnResponseStatusCode)
		assert.Equal(t, json.Number("204"), status)

		status, _ = result.Value(1, psdata.ColumnResponseStatusCode)
		assert.Equal(t, json.Number("404"), status)

		// Neither outcome is an error.
		assert.Equal(t, 0, logger.count("error"))
	})

	t.Run("a 200 from a delete is a failure", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		logger := &recordingLogger{}
		client := NewTestClient(server.URL, logger)

		result := client.DeleteRecords(context.Background(), "u_demo", "id", demoRecords(1))
		require.Equal(t, 1, result.Len())

		status, _ := result.Value(0, psdata.ColumnResponseStatusCode)
		assert.Equal(t, json.Number("200"), status)
		assert.Equal(t, 1, logger.count("error"))
	})

	t.Run("missing id column rejects the whole set", func(t *testing.T) {
		t.Parallel()

		logger := &recordingLogger{}
		client := NewTestClient("http://localhost:0", logger)

		result := client.DeleteRecords(context.Background(), "u_demo", "dcid", demoRecords(1))
		assert.True(t, result.Empty())
		assert.Equal(t, 1, logger.count("error"))
	})
}
