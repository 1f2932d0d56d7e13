package oracle

import (
	"errors"
	"testing"
	"time"

	"strategyfund/internal/errs"
)

func TestMinConfidence(t *testing.T) {
	cases := []struct {
		tier int
		want int
	}{
		{1, 80}, {2, 80}, {3, 80},
		{4, 65}, {7, 65},
		{8, 50}, {10, 50},
	}
	for _, c := range cases {
		if got := MinConfidence(c.tier); got != c.want {
			t.Fatalf("tier=%d got=%d want=%d", c.tier, got, c.want)
		}
	}
}

func TestValidateStale(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	q := Quote{Price: 15_000_000_000, Expo: -8, PublishTime: now.Unix() - 31}
	err := Validate(q, 90, DefaultMaxQuoteAge, 2, now)
	if !errors.Is(err, errs.ErrStaleQuote) {
		t.Fatalf("want stale, got %v", err)
	}

	// Exactly at the boundary is still fresh.
	q.PublishTime = now.Unix() - 30
	if err := Validate(q, 90, DefaultMaxQuoteAge, 2, now); err != nil {
		t.Fatalf("want accept, got %v", err)
	}
}

func TestValidateLowConfidence(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	q := Quote{Price: 15_000_000_000, Expo: -8, PublishTime: now.Unix()}

	err := Validate(q, 70, DefaultMaxQuoteAge, 2, now)
	if !errors.Is(err, errs.ErrInsufficientConfidence) {
		t.Fatalf("want low confidence, got %v", err)
	}
	if err := Validate(q, 70, DefaultMaxQuoteAge, 5, now); err != nil {
		t.Fatalf("tier 5 accepts 70, got %v", err)
	}
	if err := Validate(q, 50, DefaultMaxQuoteAge, 9, now); err != nil {
		t.Fatalf("tier 9 accepts 50, got %v", err)
	}
}
