// Package memory provides an in-process Repository used by tests and
// by dry-run deployments that do not want a database.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"strategyfund/internal/models"
	"strategyfund/internal/repository"
)

type Store struct {
	mu sync.Mutex

	registry      *models.Registry
	strategies    map[string]models.Strategy
	subscriptions map[string]models.Subscription // key: strategyID + "/" + subscriber
	tradingStates map[string]models.TradingState
	trades        map[string]models.TradeRecord
	alerts        map[string]models.PriceAlert

	nextSubID uint64
}

func New() *Store {
	return &Store{
		strategies:    map[string]models.Strategy{},
		subscriptions: map[string]models.Subscription{},
		tradingStates: map[string]models.TradingState{},
		trades:        map[string]models.TradeRecord{},
		alerts:        map[string]models.PriceAlert{},
	}
}

var _ repository.Repository = (*Store)(nil)

func subKey(strategyID, subscriber string) string {
	return strings.TrimSpace(strategyID) + "/" + strings.TrimSpace(subscriber)
}

// --- Registry ----------------------------------------------------------------

func (s *Store) GetRegistry(ctx context.Context) (*models.Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registry == nil {
		return nil, nil
	}
	cp := *s.registry
	return &cp, nil
}

func (s *Store) SaveRegistry(ctx context.Context, reg *models.Registry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *reg
	cp.ID = models.RegistryID
	s.registry = &cp
	return nil
}

// --- Strategies ----------------------------------------------------------------

func (s *Store) CreateStrategyWithRegistry(ctx context.Context, strat *models.Strategy, reg *models.Registry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strategies[strat.ID] = *strat
	cp := *reg
	s.registry = &cp
	return nil
}

func (s *Store) GetStrategy(ctx context.Context, id string) (*models.Strategy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.strategies[strings.TrimSpace(id)]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *Store) SaveStrategy(ctx context.Context, strat *models.Strategy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strategies[strat.ID] = *strat
	return nil
}

func matchStrategy(item models.Strategy, params repository.ListStrategiesParams) bool {
	if params.Status != nil && item.Status != *params.Status {
		return false
	}
	if params.Creator != nil && item.Creator != *params.Creator {
		return false
	}
	if params.Verified != nil && item.Verified != *params.Verified {
		return false
	}
	return true
}

func (s *Store) ListStrategies(ctx context.Context, params repository.ListStrategiesParams) ([]models.Strategy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []models.Strategy
	for _, item := range s.strategies {
		if matchStrategy(item, params) {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *Store) CountStrategies(ctx context.Context, params repository.ListStrategiesParams) (int64, error) {
	items, _ := s.ListStrategies(ctx, params)
	return int64(len(items)), nil
}

// --- Subscriptions -------------------------------------------------------------

func (s *Store) GetSubscription(ctx context.Context, strategyID, subscriber string) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.subscriptions[subKey(strategyID, subscriber)]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *Store) ListSubscriptionsByStrategy(ctx context.Context, strategyID string) ([]models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []models.Subscription
	for _, item := range s.subscriptions {
		if item.StrategyID == strings.TrimSpace(strategyID) {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *Store) ListSubscriptionsBySubscriber(ctx context.Context, subscriber string) ([]models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []models.Subscription
	for _, item := range s.subscriptions {
		if item.Subscriber == strings.TrimSpace(subscriber) {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *Store) SaveSubscription(ctx context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveSubLocked(sub)
	return nil
}

func (s *Store) saveSubLocked(sub *models.Subscription) {
	if sub.ID == 0 {
		s.nextSubID++
		sub.ID = s.nextSubID
	}
	s.subscriptions[subKey(sub.StrategyID, sub.Subscriber)] = *sub
}

func (s *Store) CreateSubscriptionWithStrategy(ctx context.Context, sub *models.Subscription, strat *models.Strategy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveSubLocked(sub)
	s.strategies[strat.ID] = *strat
	return nil
}

func (s *Store) SaveSubscriptionWithStrategy(ctx context.Context, sub *models.Subscription, strat *models.Strategy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveSubLocked(sub)
	s.strategies[strat.ID] = *strat
	return nil
}

func (s *Store) DeleteSubscriptionWithStrategy(ctx context.Context, subID uint64, strat *models.Strategy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, item := range s.subscriptions {
		if item.ID == subID {
			delete(s.subscriptions, key)
			break
		}
	}
	s.strategies[strat.ID] = *strat
	return nil
}

// --- Trading --------------------------------------------------------------------

func (s *Store) GetTradingState(ctx context.Context, strategyID string) (*models.TradingState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.tradingStates[strings.TrimSpace(strategyID)]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *Store) SaveTradingState(ctx context.Context, state *models.TradingState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tradingStates[state.StrategyID] = *state
	return nil
}

func (s *Store) CreateTradeWithState(ctx context.Context, rec *models.TradeRecord, state *models.TradingState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades[rec.ID] = *rec
	s.tradingStates[state.StrategyID] = *state
	return nil
}

func (s *Store) SaveTradeWithState(ctx context.Context, rec *models.TradeRecord, state *models.TradingState) error {
	return s.CreateTradeWithState(ctx, rec, state)
}

func (s *Store) GetTradeRecord(ctx context.Context, id string) (*models.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.trades[strings.TrimSpace(id)]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *Store) ListTradesByStrategy(ctx context.Context, strategyID string, limit int) ([]models.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []models.TradeRecord
	for _, item := range s.trades {
		if item.StrategyID == strings.TrimSpace(strategyID) {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ExecutedAt.After(items[j].ExecutedAt) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// --- Price alerts ----------------------------------------------------------------

func (s *Store) CreatePriceAlert(ctx context.Context, alert *models.PriceAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[alert.ID] = *alert
	return nil
}

func (s *Store) GetPriceAlert(ctx context.Context, id string) (*models.PriceAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.alerts[strings.TrimSpace(id)]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *Store) ListPriceAlertsByUser(ctx context.Context, user string) ([]models.PriceAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []models.PriceAlert
	for _, item := range s.alerts {
		if item.User == strings.TrimSpace(user) {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func (s *Store) ListActivePriceAlerts(ctx context.Context) ([]models.PriceAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []models.PriceAlert
	for _, item := range s.alerts {
		if item.Active {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *Store) CountActiveAlertsByUser(ctx context.Context, user string) (int64, error) {
	items, _ := s.ListPriceAlertsByUser(ctx, user)
	var count int64
	for _, item := range items {
		if item.Active {
			count++
		}
	}
	return count, nil
}

func (s *Store) SavePriceAlert(ctx context.Context, alert *models.PriceAlert) error {
	return s.CreatePriceAlert(ctx, alert)
}

func (s *Store) DeletePriceAlert(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.alerts, strings.TrimSpace(id))
	return nil
}
