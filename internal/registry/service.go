// Package registry owns the strategy catalog and the global protocol
// fee policy.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"strategyfund/internal/errs"
	"strategyfund/internal/models"
	"strategyfund/internal/notify"
	"strategyfund/internal/repository"
)

// Policy caps, in basis points.
const (
	MaxManagementFeeBps  = 500
	MaxPerformanceFeeBps = 3000
	MaxProtocolFeeBps    = 1000
)

// Structural bounds.
const (
	MaxNameLen        = 32
	MaxDescriptionLen = 200
	MaxTokenAllocs    = 10
	MaxTags           = 5
	MaxTagLen         = 20
	MaxIdentityLen    = 64
)

type Service struct {
	Repo   repository.Repository
	Sink   notify.Sink
	Logger *zap.Logger
}

// InitRegistry creates the singleton registry row. The platform
// authority is supplied here, never compiled in.
func (s *Service) InitRegistry(ctx context.Context, authority string, protocolFeeBps int, feeRecipient string) (*models.Registry, error) {
	if strings.TrimSpace(authority) == "" || strings.TrimSpace(feeRecipient) == "" {
		return nil, fmt.Errorf("%w: authority and fee recipient required", errs.ErrInvalidParameter)
	}
	if protocolFeeBps < 0 || protocolFeeBps > MaxProtocolFeeBps {
		return nil, fmt.Errorf("%w: protocol fee %d bps exceeds cap %d", errs.ErrInvalidParameter, protocolFeeBps, MaxProtocolFeeBps)
	}
	existing, err := s.Repo.GetRegistry(ctx)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: registry already initialized", errs.ErrAlreadyExists)
	}
	reg := &models.Registry{
		ID:             models.RegistryID,
		Authority:      strings.TrimSpace(authority),
		ProtocolFeeBps: protocolFeeBps,
		FeeRecipient:   strings.TrimSpace(feeRecipient),
	}
	if err := s.Repo.SaveRegistry(ctx, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// CreateStrategyParams carries the creation request.
type CreateStrategyParams struct {
	Name              string
	Description       string
	RiskLevel         int
	TimeHorizon       int
	AIModels          int64
	TokenSupport      int
	ManagementFeeBps  int
	PerformanceFeeBps int
	MinInvestment     int64
	LockupDays        int
	EstimatedAPYBps   int
	TokenAllocations  []models.TokenAllocation
	ProtocolConfig    *models.ProtocolConfig
	Tags              []string
}

func (s *Service) CreateStrategy(ctx context.Context, creator string, params CreateStrategyParams, now time.Time) (*models.Strategy, error) {
	if strings.TrimSpace(creator) == "" || len(creator) > MaxIdentityLen {
		return nil, fmt.Errorf("%w: creator identity", errs.ErrInvalidParameter)
	}
	if err := validateParams(params); err != nil {
		return nil, err
	}
	reg, err := s.registry(ctx)
	if err != nil {
		return nil, err
	}

	allocs, err := json.Marshal(params.TokenAllocations)
	if err != nil {
		return nil, fmt.Errorf("%w: token allocations: %v", errs.ErrInvalidParameter, err)
	}
	tags, err := json.Marshal(params.Tags)
	if err != nil {
		return nil, fmt.Errorf("%w: tags: %v", errs.ErrInvalidParameter, err)
	}
	var protoCfg datatypes.JSON
	if params.ProtocolConfig != nil {
		raw, err := json.Marshal(params.ProtocolConfig)
		if err != nil {
			return nil, fmt.Errorf("%w: protocol config: %v", errs.ErrInvalidParameter, err)
		}
		protoCfg = raw
	}

	reg.StrategyCount++
	strat := &models.Strategy{
		ID:                fmt.Sprintf("strat-%06d", reg.StrategyCount),
		Creator:           strings.TrimSpace(creator),
		Name:              params.Name,
		Description:       params.Description,
		RiskLevel:         params.RiskLevel,
		TimeHorizon:       params.TimeHorizon,
		AIModels:          params.AIModels,
		TokenSupport:      params.TokenSupport,
		ManagementFeeBps:  params.ManagementFeeBps,
		PerformanceFeeBps: params.PerformanceFeeBps,
		MinInvestment:     params.MinInvestment,
		LockupDays:        params.LockupDays,
		EstimatedAPYBps:   params.EstimatedAPYBps,
		Status:            models.StrategyActive,
		TokenAllocations:  allocs,
		ProtocolConfig:    protoCfg,
		Tags:              tags,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.Repo.CreateStrategyWithRegistry(ctx, strat, reg); err != nil {
		return nil, err
	}

	s.emit(ctx, notify.Event{
		Recipient:  strat.Creator,
		Type:       notify.EventStrategyUpdated,
		Priority:   notify.PriorityLow,
		Title:      "Strategy Created",
		Message:    fmt.Sprintf("Your strategy %q has been created successfully", strat.Name),
		StrategyID: strat.ID,
		Timestamp:  now,
	})
	if s.Logger != nil {
		s.Logger.Info("strategy created",
			zap.String("strategy_id", strat.ID),
			zap.String("creator", strat.Creator),
		)
	}
	return strat, nil
}

// StrategyPatch applies per-field updates; nil fields are untouched.
// Validation matches creation.
type StrategyPatch struct {
	Name              *string
	Description       *string
	RiskLevel         *int
	TimeHorizon       *int
	AIModels          *int64
	TokenSupport      *int
	ManagementFeeBps  *int
	PerformanceFeeBps *int
	MinInvestment     *int64
	LockupDays        *int
	EstimatedAPYBps   *int
	TokenAllocations  []models.TokenAllocation
	ProtocolConfig    *models.ProtocolConfig
	Tags              []string
}

func (s *Service) UpdateStrategy(ctx context.Context, creator, strategyID string, patch StrategyPatch, now time.Time) (*models.Strategy, error) {
	strat, err := s.strategy(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	if strat.Creator != strings.TrimSpace(creator) {
		return nil, fmt.Errorf("%w: only the creator may update strategy %s", errs.ErrUnauthorized, strategyID)
	}
	if err := applyPatch(strat, patch); err != nil {
		return nil, err
	}
	strat.UpdatedAt = now
	if err := s.Repo.SaveStrategy(ctx, strat); err != nil {
		return nil, err
	}
	s.emit(ctx, notify.Event{
		Recipient:  strat.Creator,
		Type:       notify.EventStrategyUpdated,
		Priority:   notify.PriorityLow,
		Title:      "Strategy Updated",
		Message:    fmt.Sprintf("Your strategy %q has been updated successfully", strat.Name),
		StrategyID: strat.ID,
		Timestamp:  now,
	})
	return strat, nil
}

func (s *Service) VerifyStrategy(ctx context.Context, authority, strategyID string, verified bool, now time.Time) (*models.Strategy, error) {
	reg, err := s.registry(ctx)
	if err != nil {
		return nil, err
	}
	if reg.Authority != strings.TrimSpace(authority) {
		return nil, fmt.Errorf("%w: verification is authority-only", errs.ErrUnauthorized)
	}
	strat, err := s.strategy(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	strat.Verified = verified
	strat.UpdatedAt = now
	if err := s.Repo.SaveStrategy(ctx, strat); err != nil {
		return nil, err
	}
	outcome := "denied"
	if verified {
		outcome = "granted"
	}
	s.emit(ctx, notify.Event{
		Recipient:  strat.Creator,
		Type:       notify.EventStrategyUpdated,
		Priority:   notify.PriorityMedium,
		Title:      "Strategy Verification Update",
		Message:    fmt.Sprintf("Your strategy %q has been %s verification", strat.Name, outcome),
		StrategyID: strat.ID,
		Data:       map[string]any{"verified": verified},
		Timestamp:  now,
	})
	return strat, nil
}

// SetStatus moves a strategy through Active -> Paused -> Deprecated.
// Deprecated is terminal. Creator or platform authority may call.
func (s *Service) SetStatus(ctx context.Context, caller, strategyID, status string, now time.Time) (*models.Strategy, error) {
	switch status {
	case models.StrategyActive, models.StrategyPaused, models.StrategyDeprecated:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", errs.ErrInvalidParameter, status)
	}
	reg, err := s.registry(ctx)
	if err != nil {
		return nil, err
	}
	strat, err := s.strategy(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	caller = strings.TrimSpace(caller)
	if caller != strat.Creator && caller != reg.Authority {
		return nil, fmt.Errorf("%w: status change requires creator or authority", errs.ErrUnauthorized)
	}
	if strat.Status == models.StrategyDeprecated {
		return nil, fmt.Errorf("%w: strategy %s is deprecated", errs.ErrInvalidParameter, strategyID)
	}
	strat.Status = status
	strat.UpdatedAt = now
	if err := s.Repo.SaveStrategy(ctx, strat); err != nil {
		return nil, err
	}
	return strat, nil
}

func (s *Service) UpdateProtocolFee(ctx context.Context, authority string, protocolFeeBps int, feeRecipient *string) (*models.Registry, error) {
	reg, err := s.registry(ctx)
	if err != nil {
		return nil, err
	}
	if reg.Authority != strings.TrimSpace(authority) {
		return nil, fmt.Errorf("%w: protocol fee is authority-only", errs.ErrUnauthorized)
	}
	if protocolFeeBps < 0 || protocolFeeBps > MaxProtocolFeeBps {
		return nil, fmt.Errorf("%w: protocol fee %d bps exceeds cap %d", errs.ErrInvalidParameter, protocolFeeBps, MaxProtocolFeeBps)
	}
	reg.ProtocolFeeBps = protocolFeeBps
	if feeRecipient != nil && strings.TrimSpace(*feeRecipient) != "" {
		reg.FeeRecipient = strings.TrimSpace(*feeRecipient)
	}
	if err := s.Repo.SaveRegistry(ctx, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// TransferOwnership reassigns a strategy to a new creator and notifies
// both parties.
func (s *Service) TransferOwnership(ctx context.Context, creator, strategyID, newOwner string, now time.Time) (*models.Strategy, error) {
	newOwner = strings.TrimSpace(newOwner)
	if newOwner == "" || len(newOwner) > MaxIdentityLen {
		return nil, fmt.Errorf("%w: new owner identity", errs.ErrInvalidParameter)
	}
	strat, err := s.strategy(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	if strat.Creator != strings.TrimSpace(creator) {
		return nil, fmt.Errorf("%w: only the creator may transfer ownership", errs.ErrUnauthorized)
	}
	previous := strat.Creator
	strat.Creator = newOwner
	strat.UpdatedAt = now
	if err := s.Repo.SaveStrategy(ctx, strat); err != nil {
		return nil, err
	}
	s.emit(ctx, notify.Event{
		Recipient:  previous,
		Type:       notify.EventPermissionsChanged,
		Priority:   notify.PriorityHigh,
		Title:      "Strategy Ownership Transferred",
		Message:    fmt.Sprintf("Ownership of %q strategy has been transferred", strat.Name),
		StrategyID: strat.ID,
		Data:       map[string]any{"new_owner": newOwner},
		Timestamp:  now,
	})
	s.emit(ctx, notify.Event{
		Recipient:  newOwner,
		Type:       notify.EventPermissionsChanged,
		Priority:   notify.PriorityHigh,
		Title:      "Strategy Ownership Received",
		Message:    fmt.Sprintf("You are now the owner of %q strategy", strat.Name),
		StrategyID: strat.ID,
		Timestamp:  now,
	})
	return strat, nil
}

// --- helpers -------------------------------------------------------------------

func (s *Service) registry(ctx context.Context) (*models.Registry, error) {
	reg, err := s.Repo.GetRegistry(ctx)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, fmt.Errorf("%w: registry not initialized", errs.ErrRecordNotFound)
	}
	return reg, nil
}

func (s *Service) strategy(ctx context.Context, id string) (*models.Strategy, error) {
	strat, err := s.Repo.GetStrategy(ctx, id)
	if err != nil {
		return nil, err
	}
	if strat == nil {
		return nil, fmt.Errorf("%w: strategy %s", errs.ErrRecordNotFound, id)
	}
	return strat, nil
}

func (s *Service) emit(ctx context.Context, ev notify.Event) {
	if s.Sink != nil {
		s.Sink.Emit(ctx, ev)
	}
}

func validateParams(params CreateStrategyParams) error {
	name := strings.TrimSpace(params.Name)
	if name == "" || len(name) > MaxNameLen {
		return fmt.Errorf("%w: name length 1-%d required", errs.ErrInvalidParameter, MaxNameLen)
	}
	if len(params.Description) > MaxDescriptionLen {
		return fmt.Errorf("%w: description exceeds %d chars", errs.ErrInvalidParameter, MaxDescriptionLen)
	}
	if params.RiskLevel < models.RiskConservative || params.RiskLevel > models.RiskExperimental {
		return fmt.Errorf("%w: risk level %d", errs.ErrInvalidParameter, params.RiskLevel)
	}
	if params.TimeHorizon < models.HorizonShortTerm || params.TimeHorizon > models.HorizonLongTerm {
		return fmt.Errorf("%w: time horizon %d", errs.ErrInvalidParameter, params.TimeHorizon)
	}
	if params.TokenSupport < models.TokenSupportMajorOnly || params.TokenSupport > models.TokenSupportCustomBasket {
		return fmt.Errorf("%w: token support %d", errs.ErrInvalidParameter, params.TokenSupport)
	}
	if params.ManagementFeeBps < 0 || params.ManagementFeeBps > MaxManagementFeeBps {
		return fmt.Errorf("%w: management fee %d bps exceeds cap %d", errs.ErrInvalidParameter, params.ManagementFeeBps, MaxManagementFeeBps)
	}
	if params.PerformanceFeeBps < 0 || params.PerformanceFeeBps > MaxPerformanceFeeBps {
		return fmt.Errorf("%w: performance fee %d bps exceeds cap %d", errs.ErrInvalidParameter, params.PerformanceFeeBps, MaxPerformanceFeeBps)
	}
	if params.MinInvestment < 0 {
		return fmt.Errorf("%w: negative minimum investment", errs.ErrInvalidParameter)
	}
	if params.LockupDays < 0 {
		return fmt.Errorf("%w: negative lockup", errs.ErrInvalidParameter)
	}
	if err := validateAllocations(params.TokenAllocations); err != nil {
		return err
	}
	if err := validateTags(params.Tags); err != nil {
		return err
	}
	if params.ProtocolConfig != nil {
		if err := validateProtocolConfig(*params.ProtocolConfig); err != nil {
			return err
		}
	}
	return nil
}

// validateAllocations enforces the fixed-capacity allocation list.
func validateAllocations(allocs []models.TokenAllocation) error {
	if len(allocs) > MaxTokenAllocs {
		return fmt.Errorf("%w: %d token allocations exceed max %d", errs.ErrInvalidParameter, len(allocs), MaxTokenAllocs)
	}
	total := 0
	for _, a := range allocs {
		if strings.TrimSpace(a.Mint) == "" {
			return fmt.Errorf("%w: token allocation missing mint", errs.ErrInvalidParameter)
		}
		if len(a.Symbol) > 10 {
			return fmt.Errorf("%w: token symbol %q too long", errs.ErrInvalidParameter, a.Symbol)
		}
		if a.Allocation < 0 || a.Allocation > 100 {
			return fmt.Errorf("%w: allocation %d%% out of range", errs.ErrInvalidParameter, a.Allocation)
		}
		total += a.Allocation
	}
	if total > 100 {
		return fmt.Errorf("%w: allocations sum to %d%%", errs.ErrInvalidParameter, total)
	}
	return nil
}

func validateTags(tags []string) error {
	if len(tags) > MaxTags {
		return fmt.Errorf("%w: %d tags exceed max %d", errs.ErrInvalidParameter, len(tags), MaxTags)
	}
	for _, tag := range tags {
		if len(tag) > MaxTagLen {
			return fmt.Errorf("%w: tag %q too long", errs.ErrInvalidParameter, tag)
		}
	}
	return nil
}

// validateProtocolConfig checks that exactly the variant named by Type
// is populated. The ledger never reads the variant fields.
func validateProtocolConfig(cfg models.ProtocolConfig) error {
	variants := map[string]bool{
		models.ProtocolLending:            cfg.Lending != nil,
		models.ProtocolYieldFarming:       cfg.YieldFarming != nil,
		models.ProtocolLiquidityProviding: cfg.LiquidityProviding != nil,
		models.ProtocolStaking:            cfg.Staking != nil,
		models.ProtocolOptions:            cfg.Options != nil,
	}
	set, known := variants[cfg.Type]
	if !known {
		return fmt.Errorf("%w: unknown protocol type %q", errs.ErrInvalidParameter, cfg.Type)
	}
	if !set {
		return fmt.Errorf("%w: protocol config missing %s variant", errs.ErrInvalidParameter, cfg.Type)
	}
	count := 0
	for _, present := range variants {
		if present {
			count++
		}
	}
	if count != 1 {
		return fmt.Errorf("%w: protocol config must carry exactly one variant", errs.ErrInvalidParameter)
	}
	return nil
}

func applyPatch(strat *models.Strategy, patch StrategyPatch) error {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" || len(name) > MaxNameLen {
			return fmt.Errorf("%w: name length 1-%d required", errs.ErrInvalidParameter, MaxNameLen)
		}
		strat.Name = name
	}
	if patch.Description != nil {
		if len(*patch.Description) > MaxDescriptionLen {
			return fmt.Errorf("%w: description exceeds %d chars", errs.ErrInvalidParameter, MaxDescriptionLen)
		}
		strat.Description = *patch.Description
	}
	if patch.RiskLevel != nil {
		if *patch.RiskLevel < models.RiskConservative || *patch.RiskLevel > models.RiskExperimental {
			return fmt.Errorf("%w: risk level %d", errs.ErrInvalidParameter, *patch.RiskLevel)
		}
		strat.RiskLevel = *patch.RiskLevel
	}
	if patch.TimeHorizon != nil {
		if *patch.TimeHorizon < models.HorizonShortTerm || *patch.TimeHorizon > models.HorizonLongTerm {
			return fmt.Errorf("%w: time horizon %d", errs.ErrInvalidParameter, *patch.TimeHorizon)
		}
		strat.TimeHorizon = *patch.TimeHorizon
	}
	if patch.AIModels != nil {
		strat.AIModels = *patch.AIModels
	}
	if patch.TokenSupport != nil {
		if *patch.TokenSupport < models.TokenSupportMajorOnly || *patch.TokenSupport > models.TokenSupportCustomBasket {
			return fmt.Errorf("%w: token support %d", errs.ErrInvalidParameter, *patch.TokenSupport)
		}
		strat.TokenSupport = *patch.TokenSupport
	}
	if patch.ManagementFeeBps != nil {
		if *patch.ManagementFeeBps < 0 || *patch.ManagementFeeBps > MaxManagementFeeBps {
			return fmt.Errorf("%w: management fee %d bps exceeds cap %d", errs.ErrInvalidParameter, *patch.ManagementFeeBps, MaxManagementFeeBps)
		}
		strat.ManagementFeeBps = *patch.ManagementFeeBps
	}
	if patch.PerformanceFeeBps != nil {
		if *patch.PerformanceFeeBps < 0 || *patch.PerformanceFeeBps > MaxPerformanceFeeBps {
			return fmt.Errorf("%w: performance fee %d bps exceeds cap %d", errs.ErrInvalidParameter, *patch.PerformanceFeeBps, MaxPerformanceFeeBps)
		}
		strat.PerformanceFeeBps = *patch.PerformanceFeeBps
	}
	if patch.MinInvestment != nil {
		if *patch.MinInvestment < 0 {
			return fmt.Errorf("%w: negative minimum investment", errs.ErrInvalidParameter)
		}
		strat.MinInvestment = *patch.MinInvestment
	}
	if patch.LockupDays != nil {
		if *patch.LockupDays < 0 {
			return fmt.Errorf("%w: negative lockup", errs.ErrInvalidParameter)
		}
		strat.LockupDays = *patch.LockupDays
	}
	if patch.EstimatedAPYBps != nil {
		strat.EstimatedAPYBps = *patch.EstimatedAPYBps
	}
	if patch.TokenAllocations != nil {
		if err := validateAllocations(patch.TokenAllocations); err != nil {
			return err
		}
		raw, err := json.Marshal(patch.TokenAllocations)
		if err != nil {
			return fmt.Errorf("%w: token allocations: %v", errs.ErrInvalidParameter, err)
		}
		strat.TokenAllocations = raw
	}
	if patch.ProtocolConfig != nil {
		if err := validateProtocolConfig(*patch.ProtocolConfig); err != nil {
			return err
		}
		raw, err := json.Marshal(patch.ProtocolConfig)
		if err != nil {
			return fmt.Errorf("%w: protocol config: %v", errs.ErrInvalidParameter, err)
		}
		strat.ProtocolConfig = raw
	}
	if patch.Tags != nil {
		if err := validateTags(patch.Tags); err != nil {
			return err
		}
		raw, err := json.Marshal(patch.Tags)
		if err != nil {
			return fmt.Errorf("%w: tags: %v", errs.ErrInvalidParameter, err)
		}
		strat.Tags = raw
	}
	return nil
}
