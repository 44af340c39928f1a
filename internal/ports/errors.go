package ports

import "errors"

// Standard application-level errors.
// Adapters wrap underlying infrastructure errors with these sentinels so
// the core can classify failures with errors.Is without knowing the vendor.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Exchange Specific Errors
	ErrExchangeUnavailable  = errors.New("exchange API is unavailable")
	ErrConnectionFailed     = errors.New("failed to connect to the exchange")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("exchange authentication failed (check API keys)")
	ErrInvalidAPIKeys       = errors.New("invalid API keys or permissions")
	ErrInsufficientFunds    = errors.New("insufficient funds for operation")
	ErrOrderRejected        = errors.New("order rejected by the exchange")
	ErrOrderNotFound        = errors.New("order not found on the exchange")

	// Execution Errors
	ErrCircuitOpen      = errors.New("execution circuit breaker is open")
	ErrRetriesExhausted = errors.New("retry attempts exhausted")

	// Observation / Infrastructure Errors
	ErrNoPriceData      = errors.New("no price data available for symbol")
	ErrScoreUnavailable = errors.New("sentiment score unavailable")
	ErrNotificationSend = errors.New("failed to deliver notification")
	ErrStoreUnavailable = errors.New("position store unavailable")
	ErrPositionConflict = errors.New("conflicting position state in store")
)

// IsTransient reports whether an execution error is worth retrying.
// Timeouts, rate limiting and connectivity failures are transient; auth,
// validation and balance failures are not.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrConnectionFailed) ||
		errors.Is(err, ErrExchangeUnavailable)
}
