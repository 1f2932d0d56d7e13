// Package ledger manages subscriptions: opening and closing positions
// and applying NAV updates, keeping the strategy aggregates (TVL,
// subscriber count) consistent with the live subscription set.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"strategyfund/internal/errs"
	"strategyfund/internal/models"
	"strategyfund/internal/notify"
	"strategyfund/internal/registry"
	"strategyfund/internal/repository"
	"strategyfund/internal/safemath"
	"strategyfund/internal/transfer"
)

// significantChangeBps is the NAV move, in basis points of the old
// value, above which subscribers are notified.
const significantChangeBps = 500

type Service struct {
	Repo     repository.Repository
	Transfer transfer.Service
	Sink     notify.Sink
	Logger   *zap.Logger
}

// CustodyAccount is the custodial account holding a strategy's funds.
func CustodyAccount(strategyID string) string {
	return "custody:" + strategyID
}

// Subscribe opens a position. The value transfer into custody is
// instructed only after the position and aggregates have committed.
func (s *Service) Subscribe(ctx context.Context, subscriber, strategyID string, amount int64, now time.Time) (*models.Subscription, error) {
	subscriber = strings.TrimSpace(subscriber)
	if subscriber == "" || len(subscriber) > registry.MaxIdentityLen {
		return nil, fmt.Errorf("%w: subscriber identity", errs.ErrInvalidParameter)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", errs.ErrInvalidParameter)
	}
	strat, err := s.strategy(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	if strat.Status != models.StrategyActive {
		return nil, fmt.Errorf("%w: strategy %s is %s", errs.ErrStrategyNotActive, strat.ID, strat.Status)
	}
	if amount < strat.MinInvestment {
		return nil, fmt.Errorf("%w: %d below minimum %d", errs.ErrBelowMinimumInvestment, amount, strat.MinInvestment)
	}
	existing, err := s.Repo.GetSubscription(ctx, strat.ID, subscriber)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: already subscribed to %s", errs.ErrAlreadyExists, strat.ID)
	}

	tvl, err := safemath.Add(strat.TVL, amount)
	if err != nil {
		return nil, fmt.Errorf("tvl: %w", err)
	}
	strat.TVL = tvl
	strat.SubscriberCount++

	sub := &models.Subscription{
		StrategyID:        strat.ID,
		Subscriber:        subscriber,
		InitialInvestment: amount,
		CurrentValue:      amount,
		HighWaterMark:     amount,
		SubscribedAt:      now,
		LastFeeCollection: now,
	}
	if err := s.Repo.CreateSubscriptionWithStrategy(ctx, sub, strat); err != nil {
		return nil, err
	}
	if err := s.Transfer.Transfer(ctx, subscriber, CustodyAccount(strat.ID), amount); err != nil {
		// A position with no funds in custody must not survive a
		// failed funding transfer.
		strat.TVL = safemath.SubClamped(strat.TVL, amount)
		if strat.SubscriberCount > 0 {
			strat.SubscriberCount--
		}
		if derr := s.Repo.DeleteSubscriptionWithStrategy(ctx, sub.ID, strat); derr != nil && s.Logger != nil {
			s.Logger.Error("subscribe rollback failed",
				zap.String("strategy_id", strat.ID),
				zap.String("subscriber", subscriber),
				zap.Error(derr),
			)
		}
		return nil, fmt.Errorf("custody transfer: %w", err)
	}

	s.emit(ctx, notify.Event{
		Recipient:  subscriber,
		Type:       notify.EventStrategyUpdated,
		Priority:   notify.PriorityLow,
		Title:      "Subscription Confirmed",
		Message:    fmt.Sprintf("You subscribed %d units to %q", amount, strat.Name),
		StrategyID: strat.ID,
		Data:       map[string]any{"amount": amount},
		Timestamp:  now,
	})
	if s.Logger != nil {
		s.Logger.Info("subscribed",
			zap.String("strategy_id", strat.ID),
			zap.String("subscriber", subscriber),
			zap.Int64("amount", amount),
		)
	}
	return sub, nil
}

// Unsubscribe closes a position and returns the residual value.
// Aggregate decrements clamp at zero rather than underflowing; the
// aggregates are recoverable by reconciliation, a position is not.
func (s *Service) Unsubscribe(ctx context.Context, subscriber, strategyID string, now time.Time) (int64, error) {
	strat, err := s.strategy(ctx, strategyID)
	if err != nil {
		return 0, err
	}
	sub, err := s.subscription(ctx, strat.ID, subscriber)
	if err != nil {
		return 0, err
	}
	if strat.LockupDays > 0 {
		unlock := sub.SubscribedAt.Add(time.Duration(strat.LockupDays) * 24 * time.Hour)
		if now.Before(unlock) {
			return 0, fmt.Errorf("%w: until %s", errs.ErrLockupActive, unlock.UTC().Format(time.RFC3339))
		}
	}

	payout := sub.CurrentValue
	strat.TVL = safemath.SubClamped(strat.TVL, payout)
	if strat.SubscriberCount > 0 {
		strat.SubscriberCount--
	}
	if err := s.Repo.DeleteSubscriptionWithStrategy(ctx, sub.ID, strat); err != nil {
		return 0, err
	}
	if payout > 0 {
		if err := s.Transfer.Transfer(ctx, CustodyAccount(strat.ID), sub.Subscriber, payout); err != nil {
			// Reinstate the position so the value owed is still on
			// the books when the payout cannot be delivered.
			if restored, aerr := safemath.Add(strat.TVL, payout); aerr == nil {
				strat.TVL = restored
			}
			strat.SubscriberCount++
			if cerr := s.Repo.CreateSubscriptionWithStrategy(ctx, sub, strat); cerr != nil && s.Logger != nil {
				s.Logger.Error("unsubscribe rollback failed",
					zap.String("strategy_id", strat.ID),
					zap.String("subscriber", sub.Subscriber),
					zap.Error(cerr),
				)
			}
			return 0, fmt.Errorf("payout transfer: %w", err)
		}
	}

	s.emit(ctx, notify.Event{
		Recipient:  sub.Subscriber,
		Type:       notify.EventStrategyUpdated,
		Priority:   notify.PriorityLow,
		Title:      "Subscription Closed",
		Message:    fmt.Sprintf("Your position in %q was closed, %d units returned", strat.Name, payout),
		StrategyID: strat.ID,
		Data:       map[string]any{"payout": payout},
		Timestamp:  now,
	})
	if s.Logger != nil {
		s.Logger.Info("unsubscribed",
			zap.String("strategy_id", strat.ID),
			zap.String("subscriber", sub.Subscriber),
			zap.Int64("payout", payout),
		)
	}
	return payout, nil
}

// UpdateValue applies a NAV mark to one position. Authority-only: the
// mark arrives over the oracle/admin channel, never from the
// subscriber. returnsBps is the reported period return folded into the
// strategy's running average.
func (s *Service) UpdateValue(ctx context.Context, authority, strategyID, subscriber string, newValue int64, returnsBps int64, now time.Time) (*models.Subscription, error) {
	if newValue < 0 {
		return nil, fmt.Errorf("%w: negative value", errs.ErrInvalidParameter)
	}
	reg, err := s.Repo.GetRegistry(ctx)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, fmt.Errorf("%w: registry not initialized", errs.ErrRecordNotFound)
	}
	if reg.Authority != strings.TrimSpace(authority) {
		return nil, fmt.Errorf("%w: value updates are authority-only", errs.ErrUnauthorized)
	}
	strat, err := s.strategy(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	sub, err := s.subscription(ctx, strat.ID, subscriber)
	if err != nil {
		return nil, err
	}

	oldValue := sub.CurrentValue
	sub.CurrentValue = newValue
	if newValue > sub.HighWaterMark {
		sub.HighWaterMark = newValue
	}
	tvl, err := safemath.Add(safemath.SubClamped(strat.TVL, oldValue), newValue)
	if err != nil {
		return nil, fmt.Errorf("tvl: %w", err)
	}
	strat.TVL = tvl
	// Simple running average, not TVL-weighted. Kept for parity with
	// the reporting channel that consumes it.
	strat.TotalReturnsBps = (strat.TotalReturnsBps + returnsBps) / 2
	strat.UpdatedAt = now

	if err := s.Repo.SaveSubscriptionWithStrategy(ctx, sub, strat); err != nil {
		return nil, err
	}

	if ev, significant := valueChangeEvent(strat, sub, oldValue, newValue, now); significant {
		s.emit(ctx, ev)
	}
	return sub, nil
}

// valueChangeEvent builds the subscriber notification for a NAV move
// of at least 5% of the old value.
func valueChangeEvent(strat *models.Strategy, sub *models.Subscription, oldValue, newValue int64, now time.Time) (notify.Event, bool) {
	if oldValue <= 0 {
		return notify.Event{}, false
	}
	delta := newValue - oldValue
	abs := delta
	if abs < 0 {
		abs = -abs
	}
	changeBps := abs * 10000 / oldValue
	if changeBps < significantChangeBps {
		return notify.Event{}, false
	}
	ev := notify.Event{
		Recipient:  sub.Subscriber,
		StrategyID: strat.ID,
		Data: map[string]any{
			"old_value":  oldValue,
			"new_value":  newValue,
			"change_bps": changeBps,
		},
		Timestamp: now,
	}
	if delta >= 0 {
		ev.Type = notify.EventPortfolioRebalanced
		ev.Priority = notify.PriorityLow
		ev.Title = "Portfolio Value Increased"
		ev.Message = fmt.Sprintf("Your position in %q grew %d.%02d%%", strat.Name, changeBps/100, changeBps%100)
	} else {
		ev.Type = notify.EventHighExposureWarning
		ev.Priority = notify.PriorityMedium
		ev.Title = "Portfolio Value Decreased"
		ev.Message = fmt.Sprintf("Your position in %q dropped %d.%02d%%", strat.Name, changeBps/100, changeBps%100)
	}
	return ev, true
}

func (s *Service) strategy(ctx context.Context, id string) (*models.Strategy, error) {
	strat, err := s.Repo.GetStrategy(ctx, id)
	if err != nil {
		return nil, err
	}
	if strat == nil {
		return nil, fmt.Errorf("%w: strategy %s", errs.ErrRecordNotFound, id)
	}
	return strat, nil
}

func (s *Service) subscription(ctx context.Context, strategyID, subscriber string) (*models.Subscription, error) {
	sub, err := s.Repo.GetSubscription(ctx, strategyID, subscriber)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, fmt.Errorf("%w: no subscription for %s in %s", errs.ErrRecordNotFound, subscriber, strategyID)
	}
	return sub, nil
}

func (s *Service) emit(ctx context.Context, ev notify.Event) {
	if s.Sink != nil {
		s.Sink.Emit(ctx, ev)
	}
}
