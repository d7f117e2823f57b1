package withdrawal

import "errors"

// Error taxonomy for the withdrawal engine. Every failed operation aborts
// atomically; callers classify failures with errors.Is and resubmit once the
// blocking condition clears.
var (
	// ErrUnauthorized: the caller does not hold the capability the
	// operation is gated on.
	ErrUnauthorized = errors.New("caller is not authorized")

	// ErrNotFound: unknown request or redemption identifier.
	ErrNotFound = errors.New("record not found")

	// ErrDelayNotElapsed: the global withdrawal delay has not passed since
	// request creation.
	ErrDelayNotElapsed = errors.New("withdrawal delay has not elapsed")

	// ErrNotReady: settlement has not been applied yet, or the treasury
	// does not hold enough of every requested asset. Both mean retry later.
	ErrNotReady = errors.New("withdrawal is not ready for payout")

	// ErrInvalid: malformed input, length mismatch, duplicate identifier,
	// or an out-of-range configuration value.
	ErrInvalid = errors.New("invalid input")
)
