package db

import (
	"strategyfund/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Registry{},
		&models.Strategy{},
		&models.Subscription{},
		&models.TradingState{},
		&models.TradeRecord{},
		&models.PriceAlert{},
	)
}
