package oracle

import (
	"fmt"
	"time"

	"strategyfund/internal/errs"
)

// DefaultMaxQuoteAge is the staleness policy applied to every quote
// that gates a trade or NAV update.
const DefaultMaxQuoteAge = 30 * time.Second

// Quote is an ephemeral price observation from the external oracle.
// Price is scaled by 10^Expo; Conf is the confidence interval on the
// same scale. Quotes are consumed and discarded, never persisted.
type Quote struct {
	Price       int64 `json:"price"`
	Conf        int64 `json:"conf"`
	Expo        int32 `json:"expo"`
	PublishTime int64 `json:"publish_time"` // unix seconds
}

// MinConfidence returns the confidence floor (percent) for a risk
// tier: conservative tiers demand high confidence, aggressive tiers
// accept less.
func MinConfidence(riskTier int) int {
	switch {
	case riskTier <= 3:
		return 80
	case riskTier <= 7:
		return 65
	default:
		return 50
	}
}

// Validate applies the staleness and confidence policy to a quote.
// Returns nil, ErrStaleQuote or ErrInsufficientConfidence. Pure; must
// be called before any trade or NAV update that depends on the quote.
func Validate(q Quote, confidence int, maxAge time.Duration, riskTier int, now time.Time) error {
	age := now.Unix() - q.PublishTime
	if age > int64(maxAge/time.Second) {
		return fmt.Errorf("%w: quote age %ds exceeds %s", errs.ErrStaleQuote, age, maxAge)
	}
	if min := MinConfidence(riskTier); confidence < min {
		return fmt.Errorf("%w: confidence %d below %d for tier %d",
			errs.ErrInsufficientConfidence, confidence, min, riskTier)
	}
	return nil
}
