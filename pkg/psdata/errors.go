package psdata

import "errors"

// Static errors shared across the client packages.
var (
	ErrConfigRequired        = errors.New("config is required")
	ErrServerAddressRequired = errors.New("server address is required")
	ErrPluginRequired        = errors.New("plugin name is required")
	ErrLoggerRequired        = errors.New("logger is required")

	// ErrNotConnected is returned by the dispatcher when the session never
	// obtained a bearer token. No network call is issued in that state.
	ErrNotConnected = errors.New("api session is not connected")

	// ErrCredentialsNotLoaded indicates the credential acquire flow finished
	// without a usable access token.
	ErrCredentialsNotLoaded = errors.New("credentials are not loaded")
)
