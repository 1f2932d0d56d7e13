// Package notify delivers state-change notifications to external
// consumers. Delivery is fire-and-forget: a failed emit is logged and
// never fails the operation that produced the event.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Event types.
const (
	EventPriceAlert          = "price_alert"
	EventTradeExecuted       = "trade_executed"
	EventTradeCompleted      = "trade_completed"
	EventTradeFailed         = "trade_failed"
	EventPortfolioRebalanced = "portfolio_rebalanced"
	EventHighExposureWarning = "high_exposure_warning"
	EventStrategyUpdated     = "strategy_updated"
	EventPermissionsChanged  = "permissions_changed"
)

// Priorities.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Event describes a committed state change. Events are constructed
// only after all mutation has succeeded, so they always describe
// persisted state.
type Event struct {
	Recipient  string         `json:"recipient"`
	Type       string         `json:"type"`
	Priority   string         `json:"priority"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	StrategyID string         `json:"strategy_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Sink receives events. Implementations must not block and must not
// return delivery failures to the caller.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// LogSink writes events to the service log.
type LogSink struct {
	Logger *zap.Logger
}

func (s *LogSink) Emit(ctx context.Context, ev Event) {
	if s == nil || s.Logger == nil {
		return
	}
	s.Logger.Info("notification",
		zap.String("recipient", ev.Recipient),
		zap.String("type", ev.Type),
		zap.String("priority", ev.Priority),
		zap.String("title", ev.Title),
		zap.String("strategy_id", ev.StrategyID),
	)
}

// MultiSink fans an event out to several sinks.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, ev Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, ev)
		}
	}
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Emit(context.Context, Event) {}
