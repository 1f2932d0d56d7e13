package errs

import "errors"

// Ledger error kinds. Handlers and callers distinguish retryable
// conditions (StaleQuote, InsufficientConfidence) from terminal ones
// with errors.Is; services wrap these with fmt.Errorf("%w: ...").
var (
	ErrUnauthorized           = errors.New("unauthorized")
	ErrInvalidParameter       = errors.New("invalid parameter")
	ErrStrategyNotActive      = errors.New("strategy not active")
	ErrBelowMinimumInvestment = errors.New("investment below minimum")
	ErrLockupActive           = errors.New("lockup period active")
	ErrInsufficientConfidence = errors.New("insufficient confidence")
	ErrStaleQuote             = errors.New("stale price quote")
	ErrPositionTooLarge       = errors.New("position size exceeds maximum")
	ErrArithmeticOverflow     = errors.New("arithmetic overflow")
	ErrRecordNotFound         = errors.New("record not found")
	ErrInvalidTradeRecord     = errors.New("invalid trade record")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrTradingPaused          = errors.New("trading paused")
	ErrAlertLimitReached      = errors.New("alert limit reached")
	ErrAlreadyExists          = errors.New("record already exists")
)

// Retryable reports whether the caller may succeed by retrying with
// fresher external data.
func Retryable(err error) bool {
	return errors.Is(err, ErrStaleQuote) || errors.Is(err, ErrInsufficientConfidence)
}
