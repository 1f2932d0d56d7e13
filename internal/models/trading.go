package models

import "time"

// Trade sides.
const (
	TradeBuy  = "buy"
	TradeSell = "sell"
)

// TradingState holds the per-strategy trade authorization parameters
// and running counters. RiskTier (1-10) drives the minimum oracle
// confidence required for a trade.
type TradingState struct {
	StrategyID string `gorm:"type:varchar(64);primaryKey"`
	Authority  string `gorm:"type:varchar(64);not null"`

	Paused          bool  `gorm:"not null;default:false"`
	MaxPositionSize int64 `gorm:"not null"`
	RiskTier        int   `gorm:"not null"`

	TotalTrades        int64 `gorm:"not null;default:0"`
	SuccessfulTrades   int64 `gorm:"not null;default:0"`
	TotalProfitLossBps int64 `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (TradingState) TableName() string {
	return "trading_states"
}

// TradeRecord is an immutable record of an authorized trade. Outcome
// fields are written exactly once by the reconciliation call.
type TradeRecord struct {
	ID         string `gorm:"type:varchar(36);primaryKey"`
	StrategyID string `gorm:"type:varchar(64);not null;index"`
	Authority  string `gorm:"type:varchar(64);not null"`

	Amount     int64  `gorm:"not null"`
	Side       string `gorm:"type:varchar(10);not null"`
	Price      int64  `gorm:"not null"`
	PriceExpo  int32  `gorm:"not null;default:0"`
	Confidence int    `gorm:"not null"`

	ExecutedAt time.Time `gorm:"type:timestamptz;not null"`

	Reconciled     bool  `gorm:"not null;default:false"`
	Successful     bool  `gorm:"not null;default:false"`
	ProfitLossBps  int64 `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (TradeRecord) TableName() string {
	return "trade_records"
}
