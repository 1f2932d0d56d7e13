package alerts

import (
	"context"
	"errors"
	"fmt"
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
	prices map[string]int64
}

func (f *fakeOracle) GetQuote(_ context.Context, assetID string) (oracle.Quote, error) {
	price, ok := f.prices[assetID]
	if !ok {
		return oracle.Quote{}, fmt.Errorf("no quote for %s", assetID)
	}
	return oracle.Quote{Price: price, Expo: -2, PublishTime: testNow.Unix()}, nil
}

type recordingSink struct {
	events []notify.Event
}

func (r *recordingSink) Emit(_ context.Context, ev notify.Event) {
	r.events = append(r.events, ev)
}

func newService() (*Service, *fakeOracle, *recordingSink) {
	src := &fakeOracle{prices: map[string]int64{}}
	sink := &recordingSink{}
	return &Service{Repo: memory.New(), Oracle: src, Sink: sink}, src, sink
}

func TestCreate(t *testing.T) {
	svc, _, _ := newService()
	alert, err := svc.Create(context.Background(), "alice", "asset-sol", models.AlertAbove, 20000, testNow)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !alert.Active || alert.Threshold != 20000 {
		t.Fatalf("unexpected alert: %+v", alert)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newService()
	if _, err := svc.Create(context.Background(), "alice", "asset-sol", "sideways", 20000, testNow); !errors.Is(err, errs.ErrInvalidParameter) {
		t.Fatalf("bad direction: got %v", err)
	}
	if _, err := svc.Create(context.Background(), "alice", "asset-sol", models.AlertAbove, 0, testNow); !errors.Is(err, errs.ErrInvalidParameter) {
		t.Fatalf("zero threshold: got %v", err)
	}
	if _, err := svc.Create(context.Background(), "", "asset-sol", models.AlertAbove, 1, testNow); !errors.Is(err, errs.ErrInvalidParameter) {
		t.Fatalf("empty user: got %v", err)
	}
}

func TestCreateLimit(t *testing.T) {
	svc, _, _ := newService()
	for i := 0; i < models.MaxAlertsPerUser; i++ {
		if _, err := svc.Create(context.Background(), "alice", fmt.Sprintf("asset-%d", i), models.AlertAbove, 100, testNow); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}
	if _, err := svc.Create(context.Background(), "alice", "asset-extra", models.AlertAbove, 100, testNow); !errors.Is(err, errs.ErrAlertLimitReached) {
		t.Fatalf("got %v, want ErrAlertLimitReached", err)
	}
	// Other users are unaffected.
	if _, err := svc.Create(context.Background(), "bob", "asset-sol", models.AlertAbove, 100, testNow); err != nil {
		t.Fatalf("bob create: %v", err)
	}
}

func TestDelete(t *testing.T) {
	svc, _, _ := newService()
	alert, err := svc.Create(context.Background(), "alice", "asset-sol", models.AlertAbove, 20000, testNow)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Delete(context.Background(), "bob", alert.ID); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("foreign delete: got %v", err)
	}
	if err := svc.Delete(context.Background(), "alice", alert.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(context.Background(), "alice", alert.ID); !errors.Is(err, errs.ErrRecordNotFound) {
		t.Fatalf("repeat delete: got %v", err)
	}
}

func TestCheckAll(t *testing.T) {
	svc, src, sink := newService()
	above, err := svc.Create(context.Background(), "alice", "asset-sol", models.AlertAbove, 20000, testNow)
	if err != nil {
		t.Fatalf("Create above: %v", err)
	}
	if _, err := svc.Create(context.Background(), "alice", "asset-sol", models.AlertBelow, 10000, testNow); err != nil {
		t.Fatalf("Create below: %v", err)
	}

	// Price between both thresholds: nothing fires.
	src.prices["asset-sol"] = 15000
	if err := svc.CheckAll(context.Background(), testNow); err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	if len(sink.events) != 0 {
		t.Fatalf("unexpected events: %+v", sink.events)
	}

	// Price crosses the upper threshold: the above alert fires once
	// and deactivates.
	src.prices["asset-sol"] = 21000
	if err := svc.CheckAll(context.Background(), testNow); err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	if len(sink.events) != 1 || sink.events[0].Type != notify.EventPriceAlert {
		t.Fatalf("events: %+v", sink.events)
	}
	got, _ := svc.Repo.GetPriceAlert(context.Background(), above.ID)
	if got.Active || got.TriggeredAt == nil {
		t.Fatalf("alert not deactivated: %+v", got)
	}

	// Re-checking at the same price does not re-fire.
	if err := svc.CheckAll(context.Background(), testNow); err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	if len(sink.events) != 1 {
		t.Fatalf("alert fired twice: %+v", sink.events)
	}
}

func TestTrigger(t *testing.T) {
	svc, _, sink := newService()
	if err := svc.Repo.SaveRegistry(context.Background(), &models.Registry{Authority: "authority-1", FeeRecipient: "treasury-1"}); err != nil {
		t.Fatalf("SaveRegistry: %v", err)
	}
	alert, err := svc.Create(context.Background(), "alice", "asset-sol", models.AlertAbove, 20000, testNow)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// The owner cannot fire their own alert with a self-reported price.
	if _, err := svc.Trigger(context.Background(), "alice", "alice", alert.ID, 21000, testNow); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("owner trigger: got %v", err)
	}
	if _, err := svc.Trigger(context.Background(), "authority-1", "bob", alert.ID, 21000, testNow); !errors.Is(err, errs.ErrInvalidParameter) {
		t.Fatalf("wrong user: got %v", err)
	}
	if _, err := svc.Trigger(context.Background(), "authority-1", "alice", alert.ID, 19000, testNow); !errors.Is(err, errs.ErrInvalidParameter) {
		t.Fatalf("uncrossed trigger: got %v", err)
	}
	fired, err := svc.Trigger(context.Background(), "authority-1", "alice", alert.ID, 21000, testNow)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if fired.Active || fired.TriggeredAt == nil {
		t.Fatalf("alert still active: %+v", fired)
	}
	if len(sink.events) != 1 {
		t.Fatalf("events: %+v", sink.events)
	}
	// One-shot: a second trigger is rejected.
	if _, err := svc.Trigger(context.Background(), "authority-1", "alice", alert.ID, 21000, testNow); !errors.Is(err, errs.ErrInvalidParameter) {
		t.Fatalf("repeat trigger: got %v", err)
	}
}

func TestCheckAllOracleFailure(t *testing.T) {
	svc, src, sink := newService()
	if _, err := svc.Create(context.Background(), "alice", "asset-unknown", models.AlertAbove, 100, testNow); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(context.Background(), "alice", "asset-sol", models.AlertBelow, 20000, testNow); err != nil {
		t.Fatalf("Create: %v", err)
	}
	src.prices["asset-sol"] = 15000

	// The unknown asset is skipped; the rest still evaluate.
	if err := svc.CheckAll(context.Background(), testNow); err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	if len(sink.events) != 1 {
		t.Fatalf("events: %+v", sink.events)
	}
}
