package models

import "time"

// Subscription is one subscriber's position in a strategy. One row per
// (strategy, subscriber) pair; deleted when the position is closed.
// InitialInvestment never changes after creation.
type Subscription struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	StrategyID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_subscriptions_strategy_subscriber"`
	Subscriber string `gorm:"type:varchar(64);not null;uniqueIndex:idx_subscriptions_strategy_subscriber;index"`

	InitialInvestment int64 `gorm:"not null"`
	CurrentValue      int64 `gorm:"not null"`
	HighWaterMark     int64 `gorm:"not null"`

	SubscribedAt      time.Time `gorm:"type:timestamptz;not null"`
	LastFeeCollection time.Time `gorm:"type:timestamptz;not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}
