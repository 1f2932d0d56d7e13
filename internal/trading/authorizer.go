// Package trading gates trade execution per strategy: pause state,
// authority check, oracle validation and position sizing, in that
// order. Authorized trades produce immutable records reconciled later
// against their realized outcome.
package trading

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"strategyfund/internal/errs"
	"strategyfund/internal/models"
	"strategyfund/internal/notify"
	"strategyfund/internal/oracle"
	"strategyfund/internal/repository"
)

// Risk tier bounds; the tier selects the oracle confidence floor.
const (
	MinRiskTier = 1
	MaxRiskTier = 10
)

type Authorizer struct {
	Repo        repository.Repository
	Oracle      oracle.Source
	Sink        notify.Sink
	Logger      *zap.Logger
	MaxQuoteAge time.Duration
}

func (a *Authorizer) maxQuoteAge() time.Duration {
	if a.MaxQuoteAge > 0 {
		return a.MaxQuoteAge
	}
	return oracle.DefaultMaxQuoteAge
}

// InitState sets up trading for a strategy. Only the strategy creator
// may do this; the authority recorded here is the identity allowed to
// execute trades afterwards.
func (a *Authorizer) InitState(ctx context.Context, caller, strategyID, authority string, maxPositionSize int64, riskTier int, now time.Time) (*models.TradingState, error) {
	authority = strings.TrimSpace(authority)
	if authority == "" {
		return nil, fmt.Errorf("%w: trade authority required", errs.ErrInvalidParameter)
	}
	if maxPositionSize <= 0 {
		return nil, fmt.Errorf("%w: max position size must be positive", errs.ErrInvalidParameter)
	}
	if riskTier < MinRiskTier || riskTier > MaxRiskTier {
		return nil, fmt.Errorf("%w: risk tier %d out of range %d-%d", errs.ErrInvalidParameter, riskTier, MinRiskTier, MaxRiskTier)
	}
	strat, err := a.Repo.GetStrategy(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	if strat == nil {
		return nil, fmt.Errorf("%w: strategy %s", errs.ErrRecordNotFound, strategyID)
	}
	if strat.Creator != strings.TrimSpace(caller) {
		return nil, fmt.Errorf("%w: only the creator may enable trading", errs.ErrUnauthorized)
	}
	existing, err := a.Repo.GetTradingState(ctx, strat.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: trading already enabled for %s", errs.ErrAlreadyExists, strat.ID)
	}
	state := &models.TradingState{
		StrategyID:      strat.ID,
		Authority:       authority,
		MaxPositionSize: maxPositionSize,
		RiskTier:        riskTier,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := a.Repo.SaveTradingState(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// TradeRequest is one trade authorization attempt.
type TradeRequest struct {
	StrategyID string
	AssetID    string
	Amount     int64
	Side       string
	Confidence int // percent, 0-100
}

// ExecuteTrade authorizes a trade. Gate order is fixed: pause,
// authority, oracle, position size. Only after every gate passes is
// the record appended and the counters bumped, atomically.
func (a *Authorizer) ExecuteTrade(ctx context.Context, caller string, req TradeRequest, now time.Time) (*models.TradeRecord, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", errs.ErrInvalidParameter)
	}
	if req.Side != models.TradeBuy && req.Side != models.TradeSell {
		return nil, fmt.Errorf("%w: side %q", errs.ErrInvalidParameter, req.Side)
	}
	state, err := a.state(ctx, req.StrategyID)
	if err != nil {
		return nil, err
	}
	if state.Paused {
		return nil, fmt.Errorf("%w: strategy %s", errs.ErrTradingPaused, state.StrategyID)
	}
	if state.Authority != strings.TrimSpace(caller) {
		return nil, fmt.Errorf("%w: caller is not the trade authority", errs.ErrUnauthorized)
	}
	quote, err := a.Oracle.GetQuote(ctx, req.AssetID)
	if err != nil {
		return nil, fmt.Errorf("oracle: %w", err)
	}
	if err := oracle.Validate(quote, req.Confidence, a.maxQuoteAge(), state.RiskTier, now); err != nil {
		return nil, err
	}
	if req.Amount > state.MaxPositionSize {
		return nil, fmt.Errorf("%w: %d exceeds max %d", errs.ErrPositionTooLarge, req.Amount, state.MaxPositionSize)
	}

	rec := &models.TradeRecord{
		ID:         uuid.NewString(),
		StrategyID: state.StrategyID,
		Authority:  state.Authority,
		Amount:     req.Amount,
		Side:       req.Side,
		Price:      quote.Price,
		PriceExpo:  quote.Expo,
		Confidence: req.Confidence,
		ExecutedAt: now,
	}
	state.TotalTrades++
	state.UpdatedAt = now
	if err := a.Repo.CreateTradeWithState(ctx, rec, state); err != nil {
		return nil, err
	}

	a.emit(ctx, notify.Event{
		Recipient:  state.Authority,
		Type:       notify.EventTradeExecuted,
		Priority:   notify.PriorityMedium,
		Title:      "Trade Executed",
		Message:    fmt.Sprintf("%s %d units at price %d (expo %d)", req.Side, req.Amount, quote.Price, quote.Expo),
		StrategyID: state.StrategyID,
		Data:       map[string]any{"trade_id": rec.ID},
		Timestamp:  now,
	})
	if a.Logger != nil {
		a.Logger.Info("trade authorized",
			zap.String("strategy_id", state.StrategyID),
			zap.String("trade_id", rec.ID),
			zap.String("side", req.Side),
			zap.Int64("amount", req.Amount),
		)
	}
	return rec, nil
}

// UpdateParameters adjusts the trading gates. Pause/resume rides the
// same call; all fields are optional.
func (a *Authorizer) UpdateParameters(ctx context.Context, caller, strategyID string, paused *bool, maxPositionSize *int64, riskTier *int, now time.Time) (*models.TradingState, error) {
	state, err := a.state(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	if state.Authority != strings.TrimSpace(caller) {
		return nil, fmt.Errorf("%w: caller is not the trade authority", errs.ErrUnauthorized)
	}
	if paused != nil {
		state.Paused = *paused
	}
	if maxPositionSize != nil {
		if *maxPositionSize <= 0 {
			return nil, fmt.Errorf("%w: max position size must be positive", errs.ErrInvalidParameter)
		}
		state.MaxPositionSize = *maxPositionSize
	}
	if riskTier != nil {
		if *riskTier < MinRiskTier || *riskTier > MaxRiskTier {
			return nil, fmt.Errorf("%w: risk tier %d out of range %d-%d", errs.ErrInvalidParameter, *riskTier, MinRiskTier, MaxRiskTier)
		}
		state.RiskTier = *riskTier
	}
	state.UpdatedAt = now
	if err := a.Repo.SaveTradingState(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// UpdateTradeOutcome reconciles a trade's realized result against the
// running counters. Idempotent per record: a second reconciliation of
// the same trade fails with InvalidTradeRecord instead of
// double-counting.
func (a *Authorizer) UpdateTradeOutcome(ctx context.Context, caller, strategyID, tradeID string, successful bool, profitLossBps int64, now time.Time) (*models.TradeRecord, error) {
	state, err := a.state(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	if state.Authority != strings.TrimSpace(caller) {
		return nil, fmt.Errorf("%w: caller is not the trade authority", errs.ErrUnauthorized)
	}
	rec, err := a.Repo.GetTradeRecord(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: trade %s", errs.ErrRecordNotFound, tradeID)
	}
	if rec.StrategyID != state.StrategyID {
		return nil, fmt.Errorf("%w: trade %s belongs to another strategy", errs.ErrInvalidTradeRecord, tradeID)
	}
	if rec.Reconciled {
		return nil, fmt.Errorf("%w: trade %s already reconciled", errs.ErrInvalidTradeRecord, tradeID)
	}

	rec.Reconciled = true
	rec.Successful = successful
	rec.ProfitLossBps = profitLossBps
	if successful {
		state.SuccessfulTrades++
	}
	state.TotalProfitLossBps += profitLossBps
	state.UpdatedAt = now
	if err := a.Repo.SaveTradeWithState(ctx, rec, state); err != nil {
		return nil, err
	}

	eventType := notify.EventTradeCompleted
	priority := notify.PriorityLow
	title := "Trade Completed"
	if !successful {
		eventType = notify.EventTradeFailed
		priority = notify.PriorityMedium
		title = "Trade Failed"
	}
	a.emit(ctx, notify.Event{
		Recipient:  state.Authority,
		Type:       eventType,
		Priority:   priority,
		Title:      title,
		Message:    fmt.Sprintf("Trade %s settled with %d bps P&L", rec.ID, profitLossBps),
		StrategyID: state.StrategyID,
		Data:       map[string]any{"trade_id": rec.ID, "profit_loss_bps": profitLossBps},
		Timestamp:  now,
	})
	return rec, nil
}

func (a *Authorizer) state(ctx context.Context, strategyID string) (*models.TradingState, error) {
	state, err := a.Repo.GetTradingState(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("%w: trading state for %s", errs.ErrRecordNotFound, strategyID)
	}
	return state, nil
}

func (a *Authorizer) emit(ctx context.Context, ev notify.Event) {
	if a.Sink != nil {
		a.Sink.Emit(ctx, ev)
	}
}
