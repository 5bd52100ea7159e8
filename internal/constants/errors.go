package constants

import "errors"

// CLI validation errors.
var (
	ErrInvalidParameter    = errors.New("parameters must be key=value pairs")
	ErrRowsFileRequired    = errors.New("a rows file is required")
	ErrUnsupportedOutput   = errors.New("unsupported output format")
	ErrIDColumnRequired    = errors.New("--id-column is required")
	ErrQueryExprRequired   = errors.New("--query is required")
	ErrServerNotConfigured = errors.New("no server configured, pass --server or set it in the config file")
)
