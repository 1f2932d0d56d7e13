// Package fees implements the two fee sweeps: time-prorated management
// fees and high-water-mark performance fees. Both are idempotent and
// may be invoked at any time; economic gating is internal.
package fees

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"strategyfund/internal/errs"
	"strategyfund/internal/ledger"
	"strategyfund/internal/models"
	"strategyfund/internal/notify"
	"strategyfund/internal/repository"
	"strategyfund/internal/safemath"
	"strategyfund/internal/transfer"
)

const (
	// MinAccrualWindow is the shortest elapsed time that accrues a
	// management fee. Calls inside the window are no-ops.
	MinAccrualWindow = 24 * time.Hour

	secondsPerYear = 365 * 86400
	bpsDenominator = 10000
)

type Engine struct {
	Repo     repository.Repository
	Transfer transfer.Service
	Sink     notify.Sink
	Logger   *zap.Logger
}

// CollectManagementFee accrues the time-prorated management fee on one
// position. Returns the fee charged, zero when inside the accrual
// window or when the rate rounds to nothing.
func (e *Engine) CollectManagementFee(ctx context.Context, strategyID, subscriber string, now time.Time) (int64, error) {
	strat, sub, reg, err := e.load(ctx, strategyID, subscriber)
	if err != nil {
		return 0, err
	}

	elapsed := now.Sub(sub.LastFeeCollection)
	if elapsed < MinAccrualWindow {
		return 0, nil
	}

	fee := ManagementFee(sub.CurrentValue, strat.ManagementFeeBps, elapsed)
	if fee > sub.CurrentValue {
		fee = sub.CurrentValue
	}
	sub.CurrentValue = safemath.SubClamped(sub.CurrentValue, fee)
	sub.LastFeeCollection = now
	strat.TVL = safemath.SubClamped(strat.TVL, fee)

	if err := e.Repo.SaveSubscriptionWithStrategy(ctx, sub, strat); err != nil {
		return 0, err
	}
	if err := e.forward(ctx, strat, reg, fee); err != nil {
		return 0, err
	}
	if fee > 0 && e.Logger != nil {
		e.Logger.Info("management fee collected",
			zap.String("strategy_id", strat.ID),
			zap.String("subscriber", sub.Subscriber),
			zap.Int64("fee", fee),
			zap.Duration("elapsed", elapsed),
		)
	}
	return fee, nil
}

// CollectPerformanceFee charges the performance fee on profit above
// the high-water mark and re-levels the mark to the post-fee value so
// the same profit band is never charged twice.
func (e *Engine) CollectPerformanceFee(ctx context.Context, strategyID, subscriber string, now time.Time) (int64, error) {
	strat, sub, reg, err := e.load(ctx, strategyID, subscriber)
	if err != nil {
		return 0, err
	}

	if sub.CurrentValue <= sub.HighWaterMark {
		return 0, nil
	}
	profit := sub.CurrentValue - sub.HighWaterMark
	fee := PerformanceFee(profit, strat.PerformanceFeeBps)
	sub.CurrentValue = safemath.SubClamped(sub.CurrentValue, fee)
	sub.HighWaterMark = sub.CurrentValue
	strat.TVL = safemath.SubClamped(strat.TVL, fee)

	if err := e.Repo.SaveSubscriptionWithStrategy(ctx, sub, strat); err != nil {
		return 0, err
	}
	if err := e.forward(ctx, strat, reg, fee); err != nil {
		return 0, err
	}
	if fee > 0 && e.Logger != nil {
		e.Logger.Info("performance fee collected",
			zap.String("strategy_id", strat.ID),
			zap.String("subscriber", sub.Subscriber),
			zap.Int64("profit", profit),
			zap.Int64("fee", fee),
		)
	}
	return fee, nil
}

// SweepStrategy runs both sweeps over every live position of one
// strategy. Per-position failures are logged and do not stop the
// sweep.
func (e *Engine) SweepStrategy(ctx context.Context, strategyID string, now time.Time) (int64, error) {
	subs, err := e.Repo.ListSubscriptionsByStrategy(ctx, strategyID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, sub := range subs {
		mgmt, err := e.CollectManagementFee(ctx, strategyID, sub.Subscriber, now)
		if err != nil {
			e.logSweepErr(strategyID, sub.Subscriber, "management", err)
			continue
		}
		perf, err := e.CollectPerformanceFee(ctx, strategyID, sub.Subscriber, now)
		if err != nil {
			e.logSweepErr(strategyID, sub.Subscriber, "performance", err)
			continue
		}
		total += mgmt + perf
	}
	return total, nil
}

// SweepAll runs SweepStrategy over every active strategy. This is the
// cron entry point.
func (e *Engine) SweepAll(ctx context.Context, now time.Time) error {
	status := models.StrategyActive
	strategies, err := e.Repo.ListStrategies(ctx, repository.ListStrategiesParams{Status: &status})
	if err != nil {
		return err
	}
	for _, strat := range strategies {
		if _, err := e.SweepStrategy(ctx, strat.ID, now); err != nil {
			e.logSweepErr(strat.ID, "", "strategy", err)
		}
	}
	return nil
}

// ManagementFee computes floor(value * bps/10000 * elapsed/year).
// Exact decimal arithmetic, truncated toward zero.
func ManagementFee(value int64, bps int, elapsed time.Duration) int64 {
	if value <= 0 || bps <= 0 || elapsed <= 0 {
		return 0
	}
	fee := decimal.NewFromInt(value).
		Mul(decimal.NewFromInt(int64(bps))).
		Mul(decimal.NewFromInt(int64(elapsed / time.Second))).
		Div(decimal.NewFromInt(bpsDenominator)).
		Div(decimal.NewFromInt(secondsPerYear))
	return fee.Floor().IntPart()
}

// PerformanceFee computes floor(profit * bps / 10000).
func PerformanceFee(profit int64, bps int) int64 {
	if profit <= 0 || bps <= 0 {
		return 0
	}
	return decimal.NewFromInt(profit).
		Mul(decimal.NewFromInt(int64(bps))).
		Div(decimal.NewFromInt(bpsDenominator)).
		Floor().IntPart()
}

func (e *Engine) load(ctx context.Context, strategyID, subscriber string) (*models.Strategy, *models.Subscription, *models.Registry, error) {
	reg, err := e.Repo.GetRegistry(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	if reg == nil {
		return nil, nil, nil, fmt.Errorf("%w: registry not initialized", errs.ErrRecordNotFound)
	}
	strat, err := e.Repo.GetStrategy(ctx, strategyID)
	if err != nil {
		return nil, nil, nil, err
	}
	if strat == nil {
		return nil, nil, nil, fmt.Errorf("%w: strategy %s", errs.ErrRecordNotFound, strategyID)
	}
	sub, err := e.Repo.GetSubscription(ctx, strategyID, subscriber)
	if err != nil {
		return nil, nil, nil, err
	}
	if sub == nil {
		return nil, nil, nil, fmt.Errorf("%w: no subscription for %s in %s", errs.ErrRecordNotFound, subscriber, strategyID)
	}
	return strat, sub, reg, nil
}

// forward moves the charged fee from strategy custody to the protocol
// fee recipient.
func (e *Engine) forward(ctx context.Context, strat *models.Strategy, reg *models.Registry, fee int64) error {
	if fee <= 0 {
		return nil
	}
	if err := e.Transfer.Transfer(ctx, ledger.CustodyAccount(strat.ID), reg.FeeRecipient, fee); err != nil {
		return fmt.Errorf("fee transfer: %w", err)
	}
	return nil
}

func (e *Engine) logSweepErr(strategyID, subscriber, kind string, err error) {
	if e.Logger == nil {
		return
	}
	e.Logger.Warn("fee sweep failure",
		zap.String("strategy_id", strategyID),
		zap.String("subscriber", subscriber),
		zap.String("kind", kind),
		zap.Error(err),
	)
}
