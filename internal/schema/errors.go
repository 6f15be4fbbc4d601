package schema

import "errors"

var (
	// ErrProviderUnavailable means a provider could not be started or reached
	// during bootstrap.
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrDuplicateProvider   = errors.New("provider already exists")
	// ErrProviderCrashed means the provider process exited; calls in flight
	// and all later calls fail with it.
	ErrProviderCrashed = errors.New("provider crashed")
	ErrUnknownTool     = errors.New("unknown tool")
	ErrCallTimeout     = errors.New("tool call timed out")
	ErrInvalidTool     = errors.New("invalid tool definition")
	ErrInvalidConfig   = errors.New("invalid provider config")
)
