package bot

import (
	"fmt"
	"sync"

	"github.com/alanyoungcy/copybot/internal/domain"
)

// Ledger is a bot's in-memory portfolio: token key -> held quantity. Every
// mutation is applied atomically under the ledger's own lock so concurrent
// event handlers never observe a half-applied trade, and no entry ever goes
// negative. Each bot owns exactly one Ledger; nothing is persisted.
type Ledger struct {
	mu        sync.RWMutex
	positions map[domain.TokenKey]float64
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		positions: make(map[domain.TokenKey]float64),
	}
}

// Position returns the quantity held for key, 0 when absent.
func (l *Ledger) Position(key domain.TokenKey) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.positions[key]
}

// Set overwrites the quantity for key. Negative quantities are rejected.
func (l *Ledger) Set(key domain.TokenKey, quantity float64) error {
	if quantity < 0 {
		return fmt.Errorf("set %s to %f: %w", key, quantity, domain.ErrNegativeQuantity)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.positions[key] = quantity
	return nil
}

// Add applies a signed delta to the position for key. It fails without
// mutating when the result would be negative.
func (l *Ledger) Add(key domain.TokenKey, delta float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addLocked(key, delta)
}

func (l *Ledger) addLocked(key domain.TokenKey, delta float64) error {
	next := l.positions[key] + delta
	if next < 0 {
		return fmt.Errorf("add %f to %s (held %f): %w", delta, key, l.positions[key], domain.ErrNegativeQuantity)
	}
	l.positions[key] = next
	return nil
}

// ApplyBuy debits cost from base and credits quantity to token in one
// critical section. It fails without mutating when the base balance cannot
// cover the cost.
func (l *Ledger) ApplyBuy(base domain.TokenKey, cost float64, token domain.TokenKey, quantity float64) error {
	if quantity <= 0 {
		return fmt.Errorf("buy %s quantity %f: %w", token, quantity, domain.ErrNegativeQuantity)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.positions[base]
	if balance < cost {
		return fmt.Errorf("buy %s costs %f, base %s holds %f: %w", token, cost, base, balance, domain.ErrInsufficientBalance)
	}
	l.positions[base] = balance - cost
	l.positions[token] += quantity
	return nil
}

// ApplySell debits up to quantity from token, clamped to the held position,
// and credits the proceeds (sold * price) to base in one critical section.
// It returns the quantity actually sold, or ErrNoPosition when nothing is
// held.
func (l *Ledger) ApplySell(token domain.TokenKey, quantity float64, base domain.TokenKey, price float64) (float64, error) {
	if quantity <= 0 {
		return 0, fmt.Errorf("sell %s quantity %f: %w", token, quantity, domain.ErrNegativeQuantity)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	held := l.positions[token]
	if held <= 0 {
		return 0, fmt.Errorf("sell %s: %w", token, domain.ErrNoPosition)
	}
	sold := quantity
	if sold > held {
		sold = held
	}
	l.positions[token] = held - sold
	l.positions[base] += sold * price
	return sold, nil
}

// Snapshot returns a copy of all positions, for logging and status reports.
func (l *Ledger) Snapshot() map[domain.TokenKey]float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[domain.TokenKey]float64, len(l.positions))
	for k, v := range l.positions {
		out[k] = v
	}
	return out
}
