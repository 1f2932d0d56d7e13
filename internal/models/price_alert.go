package models

import "time"

// Alert directions.
const (
	AlertAbove = "above"
	AlertBelow = "below"
)

// MaxAlertsPerUser bounds each user's alert list.
const MaxAlertsPerUser = 10

// PriceAlert is a one-shot user price alert, deactivated on trigger.
type PriceAlert struct {
	ID   string `gorm:"type:varchar(36);primaryKey"`
	User string `gorm:"type:varchar(64);not null;index"`

	Asset     string `gorm:"type:varchar(64);not null"`
	Direction string `gorm:"type:varchar(10);not null"`
	Threshold int64  `gorm:"not null"`

	Active      bool       `gorm:"not null;default:true"`
	TriggeredAt *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (PriceAlert) TableName() string {
	return "price_alerts"
}
