package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"strategyfund/internal/errs"
)

// fail translates a service error into an HTTP response. Retryable
// rejections carry a meta flag so clients know a fresh attempt may
// succeed.
func fail(c *gin.Context, err error) {
	var meta map[string]any
	if errs.Retryable(err) {
		meta = map[string]any{"retryable": true}
	}
	Error(c, statusFor(err), err.Error(), meta)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, errs.ErrStrategyNotActive),
		errors.Is(err, errs.ErrBelowMinimumInvestment),
		errors.Is(err, errs.ErrLockupActive),
		errors.Is(err, errs.ErrTradingPaused),
		errors.Is(err, errs.ErrPositionTooLarge),
		errors.Is(err, errs.ErrInvalidTradeRecord),
		errors.Is(err, errs.ErrAlertLimitReached),
		errors.Is(err, errs.ErrInsufficientFunds),
		errors.Is(err, errs.ErrArithmeticOverflow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrStaleQuote),
		errors.Is(err, errs.ErrInsufficientConfidence):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
