package repository

import (
	"context"

	"strategyfund/internal/models"
)

// ListStrategiesParams filters the strategy catalog.
type ListStrategiesParams struct {
	Status   *string
	Creator  *string
	Verified *bool
	Limit    int
	Offset   int
}

// Repository is the keyed store behind the ledger. Lookup misses
// return (nil, nil); services translate that into ErrRecordNotFound.
//
// The composite *With* methods update both records in one atomic unit.
// Operations touching a Strategy together with a Subscription, or a
// TradeRecord together with its TradingState, must go through them so
// no intermediate state is ever observable.
type Repository interface {
	// Registry (singleton).
	GetRegistry(ctx context.Context) (*models.Registry, error)
	SaveRegistry(ctx context.Context, reg *models.Registry) error

	// Strategies.
	CreateStrategyWithRegistry(ctx context.Context, strat *models.Strategy, reg *models.Registry) error
	GetStrategy(ctx context.Context, id string) (*models.Strategy, error)
	SaveStrategy(ctx context.Context, strat *models.Strategy) error
	ListStrategies(ctx context.Context, params ListStrategiesParams) ([]models.Strategy, error)
	CountStrategies(ctx context.Context, params ListStrategiesParams) (int64, error)

	// Subscriptions, keyed by (strategy, subscriber).
	GetSubscription(ctx context.Context, strategyID, subscriber string) (*models.Subscription, error)
	ListSubscriptionsByStrategy(ctx context.Context, strategyID string) ([]models.Subscription, error)
	ListSubscriptionsBySubscriber(ctx context.Context, subscriber string) ([]models.Subscription, error)
	SaveSubscription(ctx context.Context, sub *models.Subscription) error
	CreateSubscriptionWithStrategy(ctx context.Context, sub *models.Subscription, strat *models.Strategy) error
	SaveSubscriptionWithStrategy(ctx context.Context, sub *models.Subscription, strat *models.Strategy) error
	DeleteSubscriptionWithStrategy(ctx context.Context, subID uint64, strat *models.Strategy) error

	// Trading state and records.
	GetTradingState(ctx context.Context, strategyID string) (*models.TradingState, error)
	SaveTradingState(ctx context.Context, state *models.TradingState) error
	CreateTradeWithState(ctx context.Context, rec *models.TradeRecord, state *models.TradingState) error
	SaveTradeWithState(ctx context.Context, rec *models.TradeRecord, state *models.TradingState) error
	GetTradeRecord(ctx context.Context, id string) (*models.TradeRecord, error)
	ListTradesByStrategy(ctx context.Context, strategyID string, limit int) ([]models.TradeRecord, error)

	// Price alerts.
	CreatePriceAlert(ctx context.Context, alert *models.PriceAlert) error
	GetPriceAlert(ctx context.Context, id string) (*models.PriceAlert, error)
	ListPriceAlertsByUser(ctx context.Context, user string) ([]models.PriceAlert, error)
	ListActivePriceAlerts(ctx context.Context) ([]models.PriceAlert, error)
	CountActiveAlertsByUser(ctx context.Context, user string) (int64, error)
	SavePriceAlert(ctx context.Context, alert *models.PriceAlert) error
	DeletePriceAlert(ctx context.Context, id string) error
}
