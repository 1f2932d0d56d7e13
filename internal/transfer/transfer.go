// Package transfer abstracts the custodial value-transfer service the
// ledger instructs after its own state transitions commit.
package transfer

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"strategyfund/internal/errs"
)

// Service moves value between custodial accounts. Implementations are
// external; the ledger only issues instructions after validation and
// state mutation have succeeded.
type Service interface {
	Transfer(ctx context.Context, from, to string, amount int64) error
}

// Ledger is an in-process Service with explicit balances. It backs
// tests and dry-run deployments; accounts unknown to it are treated as
// unlimited sources so that external custody accounts do not need
// seeding.
type Ledger struct {
	Logger *zap.Logger

	mu       sync.Mutex
	balances map[string]int64
}

func NewLedger(logger *zap.Logger) *Ledger {
	return &Ledger{Logger: logger, balances: map[string]int64{}}
}

// Fund seeds an account balance.
func (l *Ledger) Fund(account string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] += amount
}

// Balance reports a seeded account's balance.
func (l *Ledger) Balance(account string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account]
}

func (l *Ledger) Transfer(ctx context.Context, from, to string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("negative transfer amount %d", amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if bal, tracked := l.balances[from]; tracked {
		if bal < amount {
			return fmt.Errorf("%w: %s has %d, needs %d", errs.ErrInsufficientFunds, from, bal, amount)
		}
		l.balances[from] = bal - amount
	}
	l.balances[to] += amount
	if l.Logger != nil {
		l.Logger.Debug("transfer",
			zap.String("from", from),
			zap.String("to", to),
			zap.Int64("amount", amount),
		)
	}
	return nil
}
