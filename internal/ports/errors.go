package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Aggregation Errors
	// ErrInvalidTick marks a malformed or unparseable tick. Policy: discard
	// without mutating state, count for observability, never fatal.
	ErrInvalidTick = errors.New("invalid tick payload")
	// ErrStaleBucket marks a tick whose bucket key regresses past the last
	// committed bucket. Policy: silent discard, expected noise from imperfect
	// sources.
	ErrStaleBucket = errors.New("tick bucket key regresses past last committed bucket")
	// ErrSessionUnavailable marks exchange calendar/timezone data that cannot
	// be resolved. Fatal for equities: there is no safe default session.
	ErrSessionUnavailable = errors.New("exchange session calendar unavailable")

	// Source Errors
	// ErrSourceUnavailable marks a failed or timed-out pull request. Policy:
	// skip the poll cycle, retry on the next scheduled one.
	ErrSourceUnavailable = errors.New("tick source unavailable")
	ErrConnectionFailed  = errors.New("failed to connect to the data source")
	ErrRateLimited       = errors.New("API rate limit exceeded")

	// Database Specific Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
	ErrUpdateFailed = errors.New("database update failed")
)
