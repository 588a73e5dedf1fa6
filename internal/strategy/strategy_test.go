package strategy

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/alanyoungcy/copybot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBot implements domain.BotHandle with an in-memory position map and a
// recording action table.
type fakeBot struct {
	mu        sync.Mutex
	positions map[domain.TokenKey]float64
	actions   map[string]domain.Action
}

func newFakeBot() *fakeBot {
	return &fakeBot{
		positions: make(map[domain.TokenKey]float64),
		actions:   make(map[string]domain.Action),
	}
}

func (b *fakeBot) Name() string         { return "fake" }
func (b *fakeBot) Logger() *slog.Logger { return testLogger() }

func (b *fakeBot) Position(key domain.TokenKey) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.positions[key]
}

func (b *fakeBot) setPosition(key domain.TokenKey, qty float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.positions[key] = qty
}

func (b *fakeBot) Action(name string) (domain.Action, bool) {
	a, ok := b.actions[strings.ToUpper(name)]
	return a, ok
}

func (b *fakeBot) ApplyBuy(base domain.TokenKey, cost float64, token domain.TokenKey, quantity float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.positions[base] -= cost
	b.positions[token] += quantity
	return nil
}

func (b *fakeBot) ApplySell(token domain.TokenKey, quantity float64, base domain.TokenKey, price float64) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	held := b.positions[token]
	if quantity > held {
		quantity = held
	}
	b.positions[token] = held - quantity
	b.positions[base] += quantity * price
	return quantity, nil
}

// recordingAction captures every intent handed to it.
type recordingAction struct {
	name string
	mu   sync.Mutex
	got  []domain.TradeIntent
	err  error
}

func (a *recordingAction) Name() string { return a.name }

func (a *recordingAction) Execute(_ context.Context, intent domain.TradeIntent, _ domain.BotHandle) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.got = append(a.got, intent)
	return a.err
}

func (a *recordingAction) intents() []domain.TradeIntent {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.TradeIntent, len(a.got))
	copy(out, a.got)
	return out
}
