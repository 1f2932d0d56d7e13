package models

import "time"

// Registry is the singleton protocol record: platform authority,
// global fee policy and the running counter strategy IDs derive from.
type Registry struct {
	ID             uint64 `gorm:"primaryKey"`
	Authority      string `gorm:"type:varchar(64);not null"`
	StrategyCount  int64  `gorm:"not null;default:0"`
	ProtocolFeeBps int    `gorm:"not null;default:0"`
	FeeRecipient   string `gorm:"type:varchar(64);not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Registry) TableName() string {
	return "registry"
}

// RegistryID is the fixed primary key of the singleton row.
const RegistryID uint64 = 1
