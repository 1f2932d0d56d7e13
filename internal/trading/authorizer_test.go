package trading

import (
	"context"
	"errors"
	"testing"
	"time"

	"strategyfund/internal/errs"
	"strategyfund/internal/models"
	"strategyfund/internal/notify"
	"strategyfund/internal/oracle"
	"strategyfund/internal/repository/memory"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeOracle struct {
	quote oracle.Quote
	err   error
}

func (f *fakeOracle) GetQuote(context.Context, string) (oracle.Quote, error) {
	return f.quote, f.err
}

func freshQuote() oracle.Quote {
	return oracle.Quote{Price: 15000, Conf: 10, Expo: -2, PublishTime: testNow.Unix()}
}

type fixture struct {
	auth   *Authorizer
	store  *memory.Store
	oracle *fakeOracle
}

func newFixture(t *testing.T, riskTier int) *fixture {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	if err := store.SaveStrategy(ctx, &models.Strategy{ID: "strat-000001", Creator: "creator-1", Status: models.StrategyActive}); err != nil {
		t.Fatalf("SaveStrategy: %v", err)
	}
	src := &fakeOracle{quote: freshQuote()}
	auth := &Authorizer{Repo: store, Oracle: src, Sink: notify.NopSink{}}
	if _, err := auth.InitState(ctx, "creator-1", "strat-000001", "trader-1", 10_000, riskTier, testNow); err != nil {
		t.Fatalf("InitState: %v", err)
	}
	return &fixture{auth: auth, store: store, oracle: src}
}

func request() TradeRequest {
	return TradeRequest{
		StrategyID: "strat-000001",
		AssetID:    "asset-sol",
		Amount:     5000,
		Side:       models.TradeBuy,
		Confidence: 90,
	}
}

func TestInitState(t *testing.T) {
	f := newFixture(t, 5)
	state, _ := f.store.GetTradingState(context.Background(), "strat-000001")
	if state.Authority != "trader-1" || state.MaxPositionSize != 10_000 || state.RiskTier != 5 {
		t.Fatalf("unexpected state: %+v", state)
	}
	// Second init is rejected.
	if _, err := f.auth.InitState(context.Background(), "creator-1", "strat-000001", "trader-2", 1, 1, testNow); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("got %v, want ErrAlreadyExists", err)
	}
}

func TestInitStateOnlyCreator(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	if err := store.SaveStrategy(ctx, &models.Strategy{ID: "strat-000001", Creator: "creator-1", Status: models.StrategyActive}); err != nil {
		t.Fatalf("SaveStrategy: %v", err)
	}
	auth := &Authorizer{Repo: store, Oracle: &fakeOracle{}, Sink: notify.NopSink{}}
	if _, err := auth.InitState(ctx, "intruder", "strat-000001", "trader-1", 10_000, 5, testNow); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}
}

func TestExecuteTrade(t *testing.T) {
	f := newFixture(t, 5)
	rec, err := f.auth.ExecuteTrade(context.Background(), "trader-1", request(), testNow)
	if err != nil {
		t.Fatalf("ExecuteTrade: %v", err)
	}
	if rec.Price != 15000 || rec.PriceExpo != -2 || rec.Side != models.TradeBuy {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Reconciled {
		t.Fatal("new record must be unreconciled")
	}
	state, _ := f.store.GetTradingState(context.Background(), "strat-000001")
	if state.TotalTrades != 1 {
		t.Fatalf("total trades = %d", state.TotalTrades)
	}
}

func TestExecuteTradePaused(t *testing.T) {
	f := newFixture(t, 5)
	paused := true
	if _, err := f.auth.UpdateParameters(context.Background(), "trader-1", "strat-000001", &paused, nil, nil, testNow); err != nil {
		t.Fatalf("UpdateParameters: %v", err)
	}
	if _, err := f.auth.ExecuteTrade(context.Background(), "trader-1", request(), testNow); !errors.Is(err, errs.ErrTradingPaused) {
		t.Fatalf("got %v, want ErrTradingPaused", err)
	}

	paused = false
	if _, err := f.auth.UpdateParameters(context.Background(), "trader-1", "strat-000001", &paused, nil, nil, testNow); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if _, err := f.auth.ExecuteTrade(context.Background(), "trader-1", request(), testNow); err != nil {
		t.Fatalf("after resume: %v", err)
	}
}

func TestExecuteTradeUnauthorized(t *testing.T) {
	f := newFixture(t, 5)
	if _, err := f.auth.ExecuteTrade(context.Background(), "intruder", request(), testNow); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}
	state, _ := f.store.GetTradingState(context.Background(), "strat-000001")
	if state.TotalTrades != 0 {
		t.Fatalf("counter moved on rejection: %d", state.TotalTrades)
	}
}

func TestExecuteTradeStaleQuote(t *testing.T) {
	f := newFixture(t, 5)
	f.oracle.quote.PublishTime = testNow.Add(-31 * time.Second).Unix()
	_, err := f.auth.ExecuteTrade(context.Background(), "trader-1", request(), testNow)
	if !errors.Is(err, errs.ErrStaleQuote) {
		t.Fatalf("got %v, want ErrStaleQuote", err)
	}
	if !errs.Retryable(err) {
		t.Fatal("stale quote should be retryable")
	}
}

func TestExecuteTradeConfidenceByTier(t *testing.T) {
	cases := []struct {
		tier       int
		confidence int
		ok         bool
	}{
		{2, 79, false},
		{2, 80, true},
		{5, 64, false},
		{5, 65, true},
		{9, 49, false},
		{9, 50, true},
	}
	for _, tc := range cases {
		f := newFixture(t, tc.tier)
		req := request()
		req.Confidence = tc.confidence
		_, err := f.auth.ExecuteTrade(context.Background(), "trader-1", req, testNow)
		if tc.ok && err != nil {
			t.Fatalf("tier %d conf %d: %v", tc.tier, tc.confidence, err)
		}
		if !tc.ok && !errors.Is(err, errs.ErrInsufficientConfidence) {
			t.Fatalf("tier %d conf %d: got %v, want ErrInsufficientConfidence", tc.tier, tc.confidence, err)
		}
	}
}

func TestExecuteTradePositionTooLarge(t *testing.T) {
	f := newFixture(t, 5)
	req := request()
	req.Amount = 10_001
	if _, err := f.auth.ExecuteTrade(context.Background(), "trader-1", req, testNow); !errors.Is(err, errs.ErrPositionTooLarge) {
		t.Fatalf("got %v, want ErrPositionTooLarge", err)
	}
}

func TestUpdateTradeOutcome(t *testing.T) {
	f := newFixture(t, 5)
	rec, err := f.auth.ExecuteTrade(context.Background(), "trader-1", request(), testNow)
	if err != nil {
		t.Fatalf("ExecuteTrade: %v", err)
	}

	settled, err := f.auth.UpdateTradeOutcome(context.Background(), "trader-1", "strat-000001", rec.ID, true, 150, testNow)
	if err != nil {
		t.Fatalf("UpdateTradeOutcome: %v", err)
	}
	if !settled.Reconciled || !settled.Successful || settled.ProfitLossBps != 150 {
		t.Fatalf("unexpected record: %+v", settled)
	}
	state, _ := f.store.GetTradingState(context.Background(), "strat-000001")
	if state.SuccessfulTrades != 1 || state.TotalProfitLossBps != 150 {
		t.Fatalf("counters: %+v", state)
	}

	// Second reconciliation of the same record is rejected and the
	// counters stay put.
	if _, err := f.auth.UpdateTradeOutcome(context.Background(), "trader-1", "strat-000001", rec.ID, true, 150, testNow); !errors.Is(err, errs.ErrInvalidTradeRecord) {
		t.Fatalf("got %v, want ErrInvalidTradeRecord", err)
	}
	state, _ = f.store.GetTradingState(context.Background(), "strat-000001")
	if state.SuccessfulTrades != 1 || state.TotalProfitLossBps != 150 {
		t.Fatalf("counters moved on repeat: %+v", state)
	}
}

func TestUpdateTradeOutcomeWrongStrategy(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	if err := f.store.SaveStrategy(ctx, &models.Strategy{ID: "strat-000002", Creator: "creator-1", Status: models.StrategyActive}); err != nil {
		t.Fatalf("SaveStrategy: %v", err)
	}
	if _, err := f.auth.InitState(ctx, "creator-1", "strat-000002", "trader-1", 10_000, 5, testNow); err != nil {
		t.Fatalf("InitState: %v", err)
	}
	rec, err := f.auth.ExecuteTrade(ctx, "trader-1", request(), testNow)
	if err != nil {
		t.Fatalf("ExecuteTrade: %v", err)
	}
	if _, err := f.auth.UpdateTradeOutcome(ctx, "trader-1", "strat-000002", rec.ID, true, 0, testNow); !errors.Is(err, errs.ErrInvalidTradeRecord) {
		t.Fatalf("got %v, want ErrInvalidTradeRecord", err)
	}
}

func TestUpdateParametersValidation(t *testing.T) {
	f := newFixture(t, 5)
	badTier := 11
	if _, err := f.auth.UpdateParameters(context.Background(), "trader-1", "strat-000001", nil, nil, &badTier, testNow); !errors.Is(err, errs.ErrInvalidParameter) {
		t.Fatalf("got %v, want ErrInvalidParameter", err)
	}
	badSize := int64(0)
	if _, err := f.auth.UpdateParameters(context.Background(), "trader-1", "strat-000001", nil, &badSize, nil, testNow); !errors.Is(err, errs.ErrInvalidParameter) {
		t.Fatalf("got %v, want ErrInvalidParameter", err)
	}
	if _, err := f.auth.UpdateParameters(context.Background(), "intruder", "strat-000001", nil, nil, nil, testNow); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}
}
