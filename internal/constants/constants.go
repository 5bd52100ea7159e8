package constants

import "time"

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for quick operations such as the token
	// exchange.
	ShortHTTPTimeout = 10 * time.Second
)

// Retry limits. Transport-level retries are disabled by default; row-level
// operations are never retried above the transport.
const (
	// DefaultRetryWaitMin is the minimum wait time between retries when
	// retries are enabled.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait time between retries when
	// retries are enabled.
	DefaultRetryWaitMax = 10 * time.Second
)

// Token handling.
const (
	// TokenExpirationBuffer is the buffer time before token expiration
	// within which a token is treated as already expired.
	TokenExpirationBuffer = 30 * time.Second
)

// Vendor API paths.
const (
	// TokenEndpointPath is the OAuth2 client-credentials token endpoint,
	// relative to the server address.
	TokenEndpointPath = "/oauth/access_token"

	// TablePathPrefix is the prefix of all table resources.
	TablePathPrefix = "/ws/schema/table/"

	// QueryPathPrefix is the prefix of all named query resources.
	QueryPathPrefix = "/ws/schema/query/"

	// StudentPathPrefix is the prefix of the core student resource.
	StudentPathPrefix = "/ws/v1/student/"
)

// File permissions.
const (
	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)
