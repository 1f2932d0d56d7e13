package models

import (
	"time"

	"gorm.io/datatypes"
)

// Strategy status values. Deprecated is terminal.
const (
	StrategyActive     = "active"
	StrategyPaused     = "paused"
	StrategyDeprecated = "deprecated"
)

// Risk levels, ordinal.
const (
	RiskConservative = 0
	RiskModerate     = 1
	RiskAggressive   = 2
	RiskExperimental = 3
)

// Time horizons.
const (
	HorizonShortTerm  = 0
	HorizonMediumTerm = 1
	HorizonLongTerm   = 2
)

// Token support coverage.
const (
	TokenSupportMajorOnly    = 0
	TokenSupportMajorMedium  = 1
	TokenSupportWideCoverage = 2
	TokenSupportCustomBasket = 3
)

// Strategy is a managed investment strategy. Aggregates (TVL,
// SubscriberCount) are kept in sync with the live subscriptions by the
// ledger; handlers never write them directly.
type Strategy struct {
	ID      string `gorm:"type:varchar(64);primaryKey"`
	Creator string `gorm:"type:varchar(64);not null;index"`

	Name        string `gorm:"type:varchar(32);not null"`
	Description string `gorm:"type:varchar(200)"`

	RiskLevel    int   `gorm:"not null;default:0"`
	TimeHorizon  int   `gorm:"not null;default:0"`
	AIModels     int64 `gorm:"column:ai_models;not null;default:0"`
	TokenSupport int   `gorm:"not null;default:0"`

	ManagementFeeBps  int   `gorm:"not null;default:0"`
	PerformanceFeeBps int   `gorm:"not null;default:0"`
	MinInvestment     int64 `gorm:"not null;default:0"`
	LockupDays        int   `gorm:"not null;default:0"`
	EstimatedAPYBps   int   `gorm:"column:estimated_apy_bps;not null;default:0"`

	TVL             int64 `gorm:"column:tvl;not null;default:0"`
	SubscriberCount int64 `gorm:"not null;default:0"`
	TotalReturnsBps int64 `gorm:"not null;default:0"`

	Status   string `gorm:"type:varchar(20);not null;default:'active';index"`
	Verified bool   `gorm:"not null;default:false"`

	TokenAllocations datatypes.JSON `gorm:"type:jsonb"`
	ProtocolConfig   datatypes.JSON `gorm:"type:jsonb"`
	Tags             datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Strategy) TableName() string {
	return "strategies"
}

// TokenAllocation is one entry of a strategy's bounded allocation list.
type TokenAllocation struct {
	Mint       string `json:"mint"`
	Symbol     string `json:"symbol"`
	Allocation int    `json:"allocation"` // percent, 0-100
}

// Protocol types for the execution-side configuration.
const (
	ProtocolLending            = "lending"
	ProtocolYieldFarming       = "yield_farming"
	ProtocolLiquidityProviding = "liquidity_providing"
	ProtocolStaking            = "staking"
	ProtocolOptions            = "options"
)

// ProtocolConfig is a tagged union: Type names the variant and exactly
// one matching field is set. The ledger stores it opaquely; only the
// external strategy executor interprets the fields.
type ProtocolConfig struct {
	Type string `json:"type"`

	Lending            *LendingConfig            `json:"lending,omitempty"`
	YieldFarming       *YieldFarmingConfig       `json:"yield_farming,omitempty"`
	LiquidityProviding *LiquidityProvidingConfig `json:"liquidity_providing,omitempty"`
	Staking            *StakingConfig            `json:"staking,omitempty"`
	Options            *OptionsConfig            `json:"options,omitempty"`
}

type LendingConfig struct {
	Platform          string `json:"platform"`
	CollateralFactor  int    `json:"collateral_factor"` // percent
	MaxUtilization    int    `json:"max_utilization"`   // percent
	AutoCompound      bool   `json:"auto_compound"`
	AutoRebalance     bool   `json:"auto_rebalance"`
	LiquidationBuffer int    `json:"liquidation_buffer"` // percent
	EnableLeverage    bool   `json:"enable_leverage"`
	MaxLeverageTenths int    `json:"max_leverage_tenths"` // 15 = 1.5x
}

type YieldFarmingConfig struct {
	Platform          string `json:"platform"`
	PoolAddress       string `json:"pool_address"`
	HarvestFrequency  int64  `json:"harvest_frequency"` // seconds
	AutoCompound      bool   `json:"auto_compound"`
	ReinvestThreshold int64  `json:"reinvest_threshold"`
	MaxSlippageBps    int    `json:"max_slippage_bps"`
	MinAPRPct         int    `json:"min_apr_pct"`
}

type LiquidityProvidingConfig struct {
	Platform            string `json:"platform"`
	PoolAddress         string `json:"pool_address"`
	RangeWidthBps       *int   `json:"range_width_bps,omitempty"`
	RebalanceThreshold  int    `json:"rebalance_threshold_bps"`
	MaxSlippageBps      int    `json:"max_slippage_bps"`
	AutoCompound        bool   `json:"auto_compound"`
	ImpermanentLossProt bool   `json:"impermanent_loss_protection"`
}

type StakingConfig struct {
	Platform        string `json:"platform"`
	AutoCompound    bool   `json:"auto_compound"`
	LockupSeconds   *int64 `json:"lockup_seconds,omitempty"`
	CooldownSeconds *int64 `json:"unstake_cooldown_seconds,omitempty"`
	Validator       string `json:"validator,omitempty"`
}

type OptionsConfig struct {
	Platform             string `json:"platform"`
	StrategyType         string `json:"strategy_type"` // covered_call, cash_secured_put, ...
	ExpiryTargetDays     int    `json:"expiry_target_days"`
	StrikeMethod         string `json:"strike_selection_method"`
	StrikeValue          int    `json:"strike_selection_value"`
	RollDaysBeforeExpiry int    `json:"roll_days_before_expiry"`
	MaxNotionalValue     int64  `json:"max_notional_value"`
}
