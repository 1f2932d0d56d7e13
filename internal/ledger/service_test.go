package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"strategyfund/internal/errs"
	"strategyfund/internal/models"
	"strategyfund/internal/notify"
	"strategyfund/internal/repository/memory"
	"strategyfund/internal/transfer"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingSink struct {
	events []notify.Event
}

func (r *recordingSink) Emit(_ context.Context, ev notify.Event) {
	r.events = append(r.events, ev)
}

type fixture struct {
	svc   *Service
	store *memory.Store
	funds *transfer.Ledger
	sink  *recordingSink
}

func newFixture(t *testing.T, strat models.Strategy) *fixture {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	if err := store.SaveRegistry(ctx, &models.Registry{Authority: "authority-1", FeeRecipient: "treasury-1"}); err != nil {
		t.Fatalf("SaveRegistry: %v", err)
	}
	if err := store.SaveStrategy(ctx, &strat); err != nil {
		t.Fatalf("SaveStrategy: %v", err)
	}
	funds := transfer.NewLedger(nil)
	sink := &recordingSink{}
	return &fixture{
		svc:   &Service{Repo: store, Transfer: funds, Sink: sink},
		store: store,
		funds: funds,
		sink:  sink,
	}
}

func activeStrategy() models.Strategy {
	return models.Strategy{
		ID:            "strat-000001",
		Creator:       "creator-1",
		Name:          "Momentum Alpha",
		MinInvestment: 500,
		Status:        models.StrategyActive,
	}
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t, activeStrategy())
	f.funds.Fund("alice", 5000)

	sub, err := f.svc.Subscribe(context.Background(), "alice", "strat-000001", 1000, testNow)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if sub.InitialInvestment != 1000 || sub.CurrentValue != 1000 || sub.HighWaterMark != 1000 {
		t.Fatalf("unexpected subscription: %+v", sub)
	}
	if !sub.SubscribedAt.Equal(testNow) || !sub.LastFeeCollection.Equal(testNow) {
		t.Fatalf("timestamps not set to now: %+v", sub)
	}

	strat, _ := f.store.GetStrategy(context.Background(), "strat-000001")
	if strat.TVL != 1000 || strat.SubscriberCount != 1 {
		t.Fatalf("aggregates: tvl=%d count=%d", strat.TVL, strat.SubscriberCount)
	}
	if got := f.funds.Balance("alice"); got != 4000 {
		t.Fatalf("alice balance = %d", got)
	}
	if got := f.funds.Balance(CustodyAccount("strat-000001")); got != 1000 {
		t.Fatalf("custody balance = %d", got)
	}
}

func TestSubscribeBelowMinimum(t *testing.T) {
	f := newFixture(t, activeStrategy())
	f.funds.Fund("alice", 5000)

	_, err := f.svc.Subscribe(context.Background(), "alice", "strat-000001", 100, testNow)
	if !errors.Is(err, errs.ErrBelowMinimumInvestment) {
		t.Fatalf("got %v, want ErrBelowMinimumInvestment", err)
	}
	strat, _ := f.store.GetStrategy(context.Background(), "strat-000001")
	if strat.TVL != 0 || strat.SubscriberCount != 0 {
		t.Fatalf("state changed on rejected subscribe: %+v", strat)
	}
	if got := f.funds.Balance("alice"); got != 5000 {
		t.Fatalf("funds moved on rejected subscribe: %d", got)
	}
}

func TestSubscribeIdentityTooLong(t *testing.T) {
	f := newFixture(t, activeStrategy())
	if _, err := f.svc.Subscribe(context.Background(), strings.Repeat("x", 65), "strat-000001", 1000, testNow); !errors.Is(err, errs.ErrInvalidParameter) {
		t.Fatalf("got %v, want ErrInvalidParameter", err)
	}
}

func TestSubscribeTransferFailure(t *testing.T) {
	f := newFixture(t, activeStrategy())
	// Funding the account makes it tracked, so the custody transfer
	// fails when the balance cannot cover the amount.
	f.funds.Fund("alice", 600)

	_, err := f.svc.Subscribe(context.Background(), "alice", "strat-000001", 1000, testNow)
	if !errors.Is(err, errs.ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}
	if sub, _ := f.store.GetSubscription(context.Background(), "strat-000001", "alice"); sub != nil {
		t.Fatalf("position survived a failed funding: %+v", sub)
	}
	strat, _ := f.store.GetStrategy(context.Background(), "strat-000001")
	if strat.TVL != 0 || strat.SubscriberCount != 0 {
		t.Fatalf("aggregates after rollback: %+v", strat)
	}
	if got := f.funds.Balance("alice"); got != 600 {
		t.Fatalf("alice balance = %d", got)
	}
}

func TestSubscribeNotActive(t *testing.T) {
	for _, status := range []string{models.StrategyPaused, models.StrategyDeprecated} {
		strat := activeStrategy()
		strat.Status = status
		f := newFixture(t, strat)
		f.funds.Fund("alice", 5000)
		if _, err := f.svc.Subscribe(context.Background(), "alice", "strat-000001", 1000, testNow); !errors.Is(err, errs.ErrStrategyNotActive) {
			t.Fatalf("status %s: got %v, want ErrStrategyNotActive", status, err)
		}
	}
}

func TestSubscribeDuplicate(t *testing.T) {
	f := newFixture(t, activeStrategy())
	f.funds.Fund("alice", 5000)
	if _, err := f.svc.Subscribe(context.Background(), "alice", "strat-000001", 1000, testNow); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := f.svc.Subscribe(context.Background(), "alice", "strat-000001", 1000, testNow); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("got %v, want ErrAlreadyExists", err)
	}
}

func TestUnsubscribe(t *testing.T) {
	f := newFixture(t, activeStrategy())
	f.funds.Fund("alice", 5000)
	if _, err := f.svc.Subscribe(context.Background(), "alice", "strat-000001", 1000, testNow); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	payout, err := f.svc.Unsubscribe(context.Background(), "alice", "strat-000001", testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if payout != 1000 {
		t.Fatalf("payout = %d", payout)
	}
	strat, _ := f.store.GetStrategy(context.Background(), "strat-000001")
	if strat.TVL != 0 || strat.SubscriberCount != 0 {
		t.Fatalf("aggregates after close: %+v", strat)
	}
	if sub, _ := f.store.GetSubscription(context.Background(), "strat-000001", "alice"); sub != nil {
		t.Fatal("subscription still present")
	}
	if got := f.funds.Balance("alice"); got != 5000 {
		t.Fatalf("alice balance = %d", got)
	}
}

func TestUnsubscribeLockup(t *testing.T) {
	strat := activeStrategy()
	strat.LockupDays = 7
	f := newFixture(t, strat)
	f.funds.Fund("alice", 5000)
	if _, err := f.svc.Subscribe(context.Background(), "alice", "strat-000001", 1000, testNow); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if _, err := f.svc.Unsubscribe(context.Background(), "alice", "strat-000001", testNow.Add(6*24*time.Hour)); !errors.Is(err, errs.ErrLockupActive) {
		t.Fatalf("got %v, want ErrLockupActive", err)
	}
	if _, err := f.svc.Unsubscribe(context.Background(), "alice", "strat-000001", testNow.Add(7*24*time.Hour)); err != nil {
		t.Fatalf("after lockup: %v", err)
	}
}

type failingTransfer struct {
	*transfer.Ledger
	failNext bool
}

func (f *failingTransfer) Transfer(ctx context.Context, from, to string, amount int64) error {
	if f.failNext {
		f.failNext = false
		return fmt.Errorf("%w: custody unavailable", errs.ErrInsufficientFunds)
	}
	return f.Ledger.Transfer(ctx, from, to, amount)
}

func TestUnsubscribeTransferFailure(t *testing.T) {
	f := newFixture(t, activeStrategy())
	flaky := &failingTransfer{Ledger: f.funds}
	f.svc.Transfer = flaky
	f.funds.Fund("alice", 5000)
	if _, err := f.svc.Subscribe(context.Background(), "alice", "strat-000001", 1000, testNow); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	flaky.failNext = true
	if _, err := f.svc.Unsubscribe(context.Background(), "alice", "strat-000001", testNow.Add(time.Hour)); !errors.Is(err, errs.ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}
	// The position is reinstated; the value owed stays on the books.
	sub, _ := f.store.GetSubscription(context.Background(), "strat-000001", "alice")
	if sub == nil || sub.CurrentValue != 1000 {
		t.Fatalf("position not reinstated: %+v", sub)
	}
	strat, _ := f.store.GetStrategy(context.Background(), "strat-000001")
	if strat.TVL != 1000 || strat.SubscriberCount != 1 {
		t.Fatalf("aggregates after rollback: %+v", strat)
	}

	// A retry once custody recovers completes the close.
	if payout, err := f.svc.Unsubscribe(context.Background(), "alice", "strat-000001", testNow.Add(time.Hour)); err != nil || payout != 1000 {
		t.Fatalf("retry: payout=%d err=%v", payout, err)
	}
	if got := f.funds.Balance("alice"); got != 5000 {
		t.Fatalf("alice balance = %d", got)
	}
}

func TestUnsubscribeNoSubscription(t *testing.T) {
	f := newFixture(t, activeStrategy())
	if _, err := f.svc.Unsubscribe(context.Background(), "alice", "strat-000001", testNow); !errors.Is(err, errs.ErrRecordNotFound) {
		t.Fatalf("got %v, want ErrRecordNotFound", err)
	}
}

func TestConservation(t *testing.T) {
	f := newFixture(t, activeStrategy())
	for _, name := range []string{"alice", "bob", "carol"} {
		f.funds.Fund(name, 10000)
		if _, err := f.svc.Subscribe(context.Background(), name, "strat-000001", 1000, testNow); err != nil {
			t.Fatalf("Subscribe %s: %v", name, err)
		}
	}
	if _, err := f.svc.UpdateValue(context.Background(), "authority-1", "strat-000001", "bob", 1500, 5000, testNow); err != nil {
		t.Fatalf("UpdateValue: %v", err)
	}
	if _, err := f.svc.Unsubscribe(context.Background(), "carol", "strat-000001", testNow.Add(time.Hour)); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}

	strat, _ := f.store.GetStrategy(context.Background(), "strat-000001")
	subs, _ := f.store.ListSubscriptionsByStrategy(context.Background(), "strat-000001")
	var sum int64
	for _, sub := range subs {
		sum += sub.CurrentValue
	}
	if strat.TVL != sum {
		t.Fatalf("tvl %d != sum of positions %d", strat.TVL, sum)
	}
	if strat.SubscriberCount != int64(len(subs)) {
		t.Fatalf("count %d != live subscriptions %d", strat.SubscriberCount, len(subs))
	}
}

func TestUpdateValue(t *testing.T) {
	f := newFixture(t, activeStrategy())
	f.funds.Fund("alice", 5000)
	if _, err := f.svc.Subscribe(context.Background(), "alice", "strat-000001", 1000, testNow); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	sub, err := f.svc.UpdateValue(context.Background(), "authority-1", "strat-000001", "alice", 1200, 2000, testNow)
	if err != nil {
		t.Fatalf("UpdateValue: %v", err)
	}
	if sub.CurrentValue != 1200 || sub.HighWaterMark != 1200 {
		t.Fatalf("after gain: %+v", sub)
	}
	strat, _ := f.store.GetStrategy(context.Background(), "strat-000001")
	if strat.TVL != 1200 {
		t.Fatalf("tvl = %d", strat.TVL)
	}
	if strat.TotalReturnsBps != 1000 {
		t.Fatalf("running average = %d, want (0+2000)/2", strat.TotalReturnsBps)
	}

	// A drawdown lowers value but not the mark.
	sub, err = f.svc.UpdateValue(context.Background(), "authority-1", "strat-000001", "alice", 900, -2500, testNow)
	if err != nil {
		t.Fatalf("UpdateValue down: %v", err)
	}
	if sub.CurrentValue != 900 || sub.HighWaterMark != 1200 {
		t.Fatalf("after loss: %+v", sub)
	}
}

func TestUpdateValueUnauthorized(t *testing.T) {
	f := newFixture(t, activeStrategy())
	f.funds.Fund("alice", 5000)
	if _, err := f.svc.Subscribe(context.Background(), "alice", "strat-000001", 1000, testNow); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := f.svc.UpdateValue(context.Background(), "alice", "strat-000001", "alice", 99999, 0, testNow); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}
}

func TestUpdateValueNotifications(t *testing.T) {
	f := newFixture(t, activeStrategy())
	f.funds.Fund("alice", 5000)
	if _, err := f.svc.Subscribe(context.Background(), "alice", "strat-000001", 1000, testNow); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	f.sink.events = nil

	// 4% move: below the 5% threshold, silent.
	if _, err := f.svc.UpdateValue(context.Background(), "authority-1", "strat-000001", "alice", 1040, 0, testNow); err != nil {
		t.Fatalf("UpdateValue: %v", err)
	}
	if len(f.sink.events) != 0 {
		t.Fatalf("unexpected events: %+v", f.sink.events)
	}

	// +10% move notifies as a positive event.
	if _, err := f.svc.UpdateValue(context.Background(), "authority-1", "strat-000001", "alice", 1144, 0, testNow); err != nil {
		t.Fatalf("UpdateValue: %v", err)
	}
	if len(f.sink.events) != 1 || f.sink.events[0].Type != notify.EventPortfolioRebalanced {
		t.Fatalf("events after gain: %+v", f.sink.events)
	}

	// -10% move warns.
	f.sink.events = nil
	if _, err := f.svc.UpdateValue(context.Background(), "authority-1", "strat-000001", "alice", 1029, 0, testNow); err != nil {
		t.Fatalf("UpdateValue: %v", err)
	}
	if len(f.sink.events) != 1 || f.sink.events[0].Type != notify.EventHighExposureWarning {
		t.Fatalf("events after loss: %+v", f.sink.events)
	}
	if f.sink.events[0].Priority != notify.PriorityMedium {
		t.Fatalf("loss priority = %q", f.sink.events[0].Priority)
	}
}
