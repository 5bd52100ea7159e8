package psdata

import (
	"fmt"
	"time"
)

// Columns appended to every row of a bulk operation result.
const (
	// ColumnResponseStatusCode holds the HTTP status code of the row's
	// remote call.
	ColumnResponseStatusCode = "response_status_code"

	// ColumnResponseText holds the raw response body of the row's remote
	// call.
	ColumnResponseText = "response_text"
)

// AccessLevel is the permission level named by an access-request directive.
type AccessLevel string

const (
	// AccessViewOnly is requested for read attempts.
	AccessViewOnly AccessLevel = "ViewOnly"

	// AccessFullAccess is requested for write attempts.
	AccessFullAccess AccessLevel = "FullAccess"
)

// AccessRequest names a table and field the plugin needs access to but is not
// currently granted. It is derived from a 403 response and intended for
// inclusion in the plugin's access manifest.
type AccessRequest struct {
	Table  string
	Field  string
	Access AccessLevel
}

// String renders the canonical directive form used in plugin manifests:
// double-quoted attributes, no surrounding whitespace.
func (r AccessRequest) String() string {
	return fmt.Sprintf(`<field table=%q field=%q access=%q/>`, r.Table, r.Field, r.Access)
}

// Logger is the leveled logging capability the client requires at
// construction. There is no default implementation wired in implicitly; see
// pkg/pslog for one.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// TableReadOptions carries the optional query parameters of a multi-record
// table read. Zero values mean "omit the parameter and let the server default
// apply".
type TableReadOptions struct {
	// Projection is a comma-separated list of fields to return. Empty means
	// all fields ("*").
	Projection string

	// Page is the 1-based page number to retrieve.
	Page int

	// PageSize is the number of records per page.
	PageSize int

	// Sort is a comma-separated list of fields to sort by.
	Sort string

	// SortDescending reverses the sort order. Only sent when Sort is set.
	SortDescending bool
}

// Config carries everything needed to build a client.
type Config struct {
	// ServerAddress is the server host, with or without a scheme. It is
	// normalized to "https://<host>" before use.
	ServerAddress string

	// Plugin is the name of the plugin whose credentials authenticate the
	// client. Together with ServerAddress it keys the secret store.
	Plugin string

	// ClientID and ClientSecret, when both set, are used directly for the
	// client-credentials token exchange, bypassing the secret store.
	ClientID     string
	ClientSecret string

	// AccessToken, when set, is used as a static bearer token and no token
	// exchange is performed.
	AccessToken string

	// Logger is required. Construction fails without one.
	Logger Logger

	// QueryPrefix is prepended (dot-separated) to names passed to RunQuery.
	QueryPrefix string

	// UpdateFallbackReinsert enables the legacy update-failure strategy:
	// rows whose PUT fails are retried as delete-then-reinsert, accepting a
	// changed record identifier. Off by default.
	UpdateFallbackReinsert bool

	// Debug enables verbose HTTP request/response logging.
	Debug bool

	// UserAgent overrides the default User-Agent header.
	UserAgent string

	// HTTPTimeout bounds each HTTP round trip. Zero means the transport
	// default.
	HTTPTimeout time.Duration

	// RetryMax is the maximum number of transport-level retries for
	// connection errors and 5xx responses. The default of zero disables
	// retries; row operations are never retried above the transport.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}
