package client

import (
	pshttp "github.com/schaubda/psdatahelper/internal/http"
	"github.com/schaubda/psdatahelper/pkg/psdata"
)

// recordingLogger captures log output for assertions.
type recordingLogger struct {
	entries []logEntry
}

type logEntry struct {
	Level  string
	Msg    string
	Fields map[string]interface{}
}

func (l *recordingLogger) Debug(msg string, fields map[string]interface{}) {
	l.entries = append(l.entries, logEntry{Level: "debug", Msg: msg, Fields: fields})
}

func (l *recordingLogger) Info(msg string, fields map[string]interface{}) {
	l.entries = append(l.entries, logEntry{Level: "info", Msg: msg, Fields: fields})
}

func (l *recordingLogger) Warn(msg string, fields map[string]interface{}) {
	l.entries = append(l.entries, logEntry{Level: "warn", Msg: msg, Fields: fields})
}

func (l *recordingLogger) Error(msg string, fields map[string]interface{}) {
	l.entries = append(l.entries, logEntry{Level: "error", Msg: msg, Fields: fields})
}

func (l *recordingLogger) count(level string) int {
	total := 0

	for _, entry := range l.entries {
		if entry.Level == level {
			total++
		}
	}

	return total
}

// NewTestClient creates a connected client against the given server with no
// authentication and the given logger.
func NewTestClient(baseURL string, logger psdata.Logger) *Client {
	httpClient := pshttp.NewClient(baseURL, nil, pshttp.WithLogger(logger))

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		logger:     logger,
		connected:  true,
	}
}
