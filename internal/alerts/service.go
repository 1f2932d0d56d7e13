// Package alerts manages one-shot user price alerts: bounded per
// user, evaluated against oracle quotes and deactivated on trigger.
package alerts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"strategyfund/internal/errs"
	"strategyfund/internal/models"
	"strategyfund/internal/notify"
	"strategyfund/internal/oracle"
	"strategyfund/internal/repository"
)

type Service struct {
	Repo   repository.Repository
	Oracle oracle.Source
	Sink   notify.Sink
	Logger *zap.Logger
}

// Create registers a price alert. Each user holds at most
// models.MaxAlertsPerUser active alerts.
func (s *Service) Create(ctx context.Context, user, asset, direction string, threshold int64, now time.Time) (*models.PriceAlert, error) {
	user = strings.TrimSpace(user)
	asset = strings.TrimSpace(asset)
	if user == "" || asset == "" {
		return nil, fmt.Errorf("%w: user and asset required", errs.ErrInvalidParameter)
	}
	if direction != models.AlertAbove && direction != models.AlertBelow {
		return nil, fmt.Errorf("%w: direction %q", errs.ErrInvalidParameter, direction)
	}
	if threshold <= 0 {
		return nil, fmt.Errorf("%w: threshold must be positive", errs.ErrInvalidParameter)
	}
	count, err := s.Repo.CountActiveAlertsByUser(ctx, user)
	if err != nil {
		return nil, err
	}
	if count >= models.MaxAlertsPerUser {
		return nil, fmt.Errorf("%w: max %d active alerts", errs.ErrAlertLimitReached, models.MaxAlertsPerUser)
	}
	alert := &models.PriceAlert{
		ID:        uuid.NewString(),
		User:      user,
		Asset:     asset,
		Direction: direction,
		Threshold: threshold,
		Active:    true,
		CreatedAt: now,
	}
	if err := s.Repo.CreatePriceAlert(ctx, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

// Delete removes an alert. Owner-only.
func (s *Service) Delete(ctx context.Context, user, alertID string) error {
	alert, err := s.Repo.GetPriceAlert(ctx, alertID)
	if err != nil {
		return err
	}
	if alert == nil {
		return fmt.Errorf("%w: alert %s", errs.ErrRecordNotFound, alertID)
	}
	if alert.User != strings.TrimSpace(user) {
		return fmt.Errorf("%w: alert belongs to another user", errs.ErrUnauthorized)
	}
	return s.Repo.DeletePriceAlert(ctx, alert.ID)
}

// List returns a user's alerts, active and triggered.
func (s *Service) List(ctx context.Context, user string) ([]models.PriceAlert, error) {
	return s.Repo.ListPriceAlertsByUser(ctx, user)
}

// Trigger fires one alert against a reported price. Authority-only:
// the price arrives over the oracle/admin channel, never from the
// alert's owner, and must actually cross the threshold.
func (s *Service) Trigger(ctx context.Context, authority, user, alertID string, price int64, now time.Time) (*models.PriceAlert, error) {
	reg, err := s.Repo.GetRegistry(ctx)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, fmt.Errorf("%w: registry not initialized", errs.ErrRecordNotFound)
	}
	if reg.Authority != strings.TrimSpace(authority) {
		return nil, fmt.Errorf("%w: alert triggers are authority-only", errs.ErrUnauthorized)
	}
	alert, err := s.Repo.GetPriceAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, fmt.Errorf("%w: alert %s", errs.ErrRecordNotFound, alertID)
	}
	if alert.User != strings.TrimSpace(user) {
		return nil, fmt.Errorf("%w: alert does not belong to %s", errs.ErrInvalidParameter, user)
	}
	if !alert.Active {
		return nil, fmt.Errorf("%w: alert %s already triggered", errs.ErrInvalidParameter, alertID)
	}
	if !crossed(*alert, price) {
		return nil, fmt.Errorf("%w: price %d does not cross threshold %d", errs.ErrInvalidParameter, price, alert.Threshold)
	}
	if err := s.trigger(ctx, *alert, oracle.Quote{Price: price}, now); err != nil {
		return nil, err
	}
	return s.Repo.GetPriceAlert(ctx, alertID)
}

// CheckAll evaluates every active alert against a fresh quote and
// fires the ones whose threshold crossed. This is the cron entry
// point; per-alert oracle failures are skipped, not fatal.
func (s *Service) CheckAll(ctx context.Context, now time.Time) error {
	alerts, err := s.Repo.ListActivePriceAlerts(ctx)
	if err != nil {
		return err
	}
	quotes := map[string]oracle.Quote{}
	for _, alert := range alerts {
		quote, ok := quotes[alert.Asset]
		if !ok {
			quote, err = s.Oracle.GetQuote(ctx, alert.Asset)
			if err != nil {
				if s.Logger != nil {
					s.Logger.Warn("alert quote fetch failed",
						zap.String("asset", alert.Asset),
						zap.Error(err),
					)
				}
				continue
			}
			quotes[alert.Asset] = quote
		}
		if !crossed(alert, quote.Price) {
			continue
		}
		if err := s.trigger(ctx, alert, quote, now); err != nil && s.Logger != nil {
			s.Logger.Warn("alert trigger failed",
				zap.String("alert_id", alert.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func crossed(alert models.PriceAlert, price int64) bool {
	switch alert.Direction {
	case models.AlertAbove:
		return price >= alert.Threshold
	case models.AlertBelow:
		return price <= alert.Threshold
	default:
		return false
	}
}

// trigger deactivates the alert before emitting so a slow notification
// can never fire it twice.
func (s *Service) trigger(ctx context.Context, alert models.PriceAlert, quote oracle.Quote, now time.Time) error {
	alert.Active = false
	alert.TriggeredAt = &now
	if err := s.Repo.SavePriceAlert(ctx, &alert); err != nil {
		return err
	}
	direction := "above"
	if alert.Direction == models.AlertBelow {
		direction = "below"
	}
	if s.Sink != nil {
		s.Sink.Emit(ctx, notify.Event{
			Recipient: alert.User,
			Type:      notify.EventPriceAlert,
			Priority:  notify.PriorityHigh,
			Title:     "Price Alert Triggered",
			Message:   fmt.Sprintf("%s is %s your threshold %d (price %d, expo %d)", alert.Asset, direction, alert.Threshold, quote.Price, quote.Expo),
			Data: map[string]any{
				"alert_id":  alert.ID,
				"asset":     alert.Asset,
				"price":     quote.Price,
				"threshold": alert.Threshold,
			},
			Timestamp: now,
		})
	}
	return nil
}
