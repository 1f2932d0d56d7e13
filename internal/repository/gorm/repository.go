package gormrepository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"strategyfund/internal/models"
	"strategyfund/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- Registry ----------------------------------------------------------------

func (s *Store) GetRegistry(ctx context.Context) (*models.Registry, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Registry
	err := s.db.WithContext(ctx).First(&item, "id = ?", models.RegistryID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) SaveRegistry(ctx context.Context, reg *models.Registry) error {
	if s == nil || s.db == nil || reg == nil {
		return nil
	}
	reg.ID = models.RegistryID
	return s.db.WithContext(ctx).Save(reg).Error
}

// --- Strategies ----------------------------------------------------------------

func (s *Store) CreateStrategyWithRegistry(ctx context.Context, strat *models.Strategy, reg *models.Registry) error {
	if s == nil || s.db == nil || strat == nil || reg == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(strat).Error; err != nil {
			return err
		}
		return tx.Save(reg).Error
	})
}

func (s *Store) GetStrategy(ctx context.Context, id string) (*models.Strategy, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Strategy
	err := s.db.WithContext(ctx).First(&item, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) SaveStrategy(ctx context.Context, strat *models.Strategy) error {
	if s == nil || s.db == nil || strat == nil {
		return nil
	}
	return s.db.WithContext(ctx).Save(strat).Error
}

func (s *Store) listStrategiesQuery(ctx context.Context, params repository.ListStrategiesParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Strategy{})
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.Creator != nil && strings.TrimSpace(*params.Creator) != "" {
		query = query.Where("creator = ?", strings.TrimSpace(*params.Creator))
	}
	if params.Verified != nil {
		query = query.Where("verified = ?", *params.Verified)
	}
	return query
}

func (s *Store) ListStrategies(ctx context.Context, params repository.ListStrategiesParams) ([]models.Strategy, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit := params.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}
	var items []models.Strategy
	err := s.listStrategiesQuery(ctx, params).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountStrategies(ctx context.Context, params repository.ListStrategiesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	if err := s.listStrategiesQuery(ctx, params).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// --- Subscriptions -------------------------------------------------------------

func (s *Store) GetSubscription(ctx context.Context, strategyID, subscriber string) (*models.Subscription, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Subscription
	err := s.db.WithContext(ctx).
		First(&item, "strategy_id = ? AND subscriber = ?", strings.TrimSpace(strategyID), strings.TrimSpace(subscriber)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSubscriptionsByStrategy(ctx context.Context, strategyID string) ([]models.Subscription, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Subscription
	err := s.db.WithContext(ctx).
		Where("strategy_id = ?", strings.TrimSpace(strategyID)).
		Order("subscribed_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListSubscriptionsBySubscriber(ctx context.Context, subscriber string) ([]models.Subscription, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Subscription
	err := s.db.WithContext(ctx).
		Where("subscriber = ?", strings.TrimSpace(subscriber)).
		Order("subscribed_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) SaveSubscription(ctx context.Context, sub *models.Subscription) error {
	if s == nil || s.db == nil || sub == nil {
		return nil
	}
	return s.db.WithContext(ctx).Save(sub).Error
}

func (s *Store) CreateSubscriptionWithStrategy(ctx context.Context, sub *models.Subscription, strat *models.Strategy) error {
	if s == nil || s.db == nil || sub == nil || strat == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sub).Error; err != nil {
			return err
		}
		return tx.Save(strat).Error
	})
}

func (s *Store) SaveSubscriptionWithStrategy(ctx context.Context, sub *models.Subscription, strat *models.Strategy) error {
	if s == nil || s.db == nil || sub == nil || strat == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(sub).Error; err != nil {
			return err
		}
		return tx.Save(strat).Error
	})
}

func (s *Store) DeleteSubscriptionWithStrategy(ctx context.Context, subID uint64, strat *models.Strategy) error {
	if s == nil || s.db == nil || strat == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Subscription{}, "id = ?", subID).Error; err != nil {
			return err
		}
		return tx.Save(strat).Error
	})
}

// --- Trading --------------------------------------------------------------------

func (s *Store) GetTradingState(ctx context.Context, strategyID string) (*models.TradingState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.TradingState
	err := s.db.WithContext(ctx).First(&item, "strategy_id = ?", strings.TrimSpace(strategyID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) SaveTradingState(ctx context.Context, state *models.TradingState) error {
	if s == nil || s.db == nil || state == nil {
		return nil
	}
	return s.db.WithContext(ctx).Save(state).Error
}

func (s *Store) CreateTradeWithState(ctx context.Context, rec *models.TradeRecord, state *models.TradingState) error {
	if s == nil || s.db == nil || rec == nil || state == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		return tx.Save(state).Error
	})
}

func (s *Store) SaveTradeWithState(ctx context.Context, rec *models.TradeRecord, state *models.TradingState) error {
	if s == nil || s.db == nil || rec == nil || state == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(rec).Error; err != nil {
			return err
		}
		return tx.Save(state).Error
	})
}

func (s *Store) GetTradeRecord(ctx context.Context, id string) (*models.TradeRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.TradeRecord
	err := s.db.WithContext(ctx).First(&item, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListTradesByStrategy(ctx context.Context, strategyID string, limit int) ([]models.TradeRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	var items []models.TradeRecord
	err := s.db.WithContext(ctx).
		Where("strategy_id = ?", strings.TrimSpace(strategyID)).
		Order("executed_at DESC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- Price alerts ----------------------------------------------------------------

func (s *Store) CreatePriceAlert(ctx context.Context, alert *models.PriceAlert) error {
	if s == nil || s.db == nil || alert == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(alert).Error
}

func (s *Store) GetPriceAlert(ctx context.Context, id string) (*models.PriceAlert, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.PriceAlert
	err := s.db.WithContext(ctx).First(&item, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListPriceAlertsByUser(ctx context.Context, user string) ([]models.PriceAlert, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.PriceAlert
	err := s.db.WithContext(ctx).
		Where(`"user" = ?`, strings.TrimSpace(user)).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListActivePriceAlerts(ctx context.Context) ([]models.PriceAlert, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.PriceAlert
	err := s.db.WithContext(ctx).
		Where("active").
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountActiveAlertsByUser(ctx context.Context, user string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&models.PriceAlert{}).
		Where(`"user" = ? AND active`, strings.TrimSpace(user)).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) SavePriceAlert(ctx context.Context, alert *models.PriceAlert) error {
	if s == nil || s.db == nil || alert == nil {
		return nil
	}
	return s.db.WithContext(ctx).Save(alert).Error
}

func (s *Store) DeletePriceAlert(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Delete(&models.PriceAlert{}, "id = ?", strings.TrimSpace(id)).Error
}
