// Package bot implements the trading bot: an in-memory ledger, a registry of
// one strategy per event kind and named actions, and the event-handling
// failure boundary between the bus and the strategies.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/alanyoungcy/copybot/internal/bus"
	"github.com/alanyoungcy/copybot/internal/domain"
)

// Bot routes events delivered by the bus to its registered strategies and
// owns the ledger the strategies' actions mutate. At most one strategy is
// held per event kind.
type Bot struct {
	name   string
	bus    *bus.Bus
	ledger *Ledger
	logger *slog.Logger

	mu         sync.RWMutex
	strategies map[domain.EventKind]domain.Strategy
	subs       map[domain.EventKind]*bus.Subscription
	actions    map[string]domain.Action
}

// New creates a bot attached to the given bus.
func New(name string, b *bus.Bus, logger *slog.Logger) *Bot {
	bot := &Bot{
		name:       name,
		bus:        b,
		ledger:     NewLedger(),
		logger:     logger.With(slog.String("component", "bot"), slog.String("bot", name)),
		strategies: make(map[domain.EventKind]domain.Strategy),
		subs:       make(map[domain.EventKind]*bus.Subscription),
		actions:    make(map[string]domain.Action),
	}
	bot.logger.Info("bot initialized")
	return bot
}

// Name returns the bot's unique name.
func (b *Bot) Name() string { return b.name }

// Logger returns the bot-scoped logger.
func (b *Bot) Logger() *slog.Logger { return b.logger }

// Ledger returns the bot's portfolio ledger.
func (b *Bot) Ledger() *Ledger { return b.ledger }

// Position returns the held quantity for key.
func (b *Bot) Position(key domain.TokenKey) float64 {
	return b.ledger.Position(key)
}

// AddToPortfolio applies a signed delta to a position, failing without
// mutation when the result would be negative.
func (b *Bot) AddToPortfolio(key domain.TokenKey, delta float64) error {
	return b.ledger.Add(key, delta)
}

// ApplyBuy implements domain.BotHandle.
func (b *Bot) ApplyBuy(base domain.TokenKey, cost float64, token domain.TokenKey, quantity float64) error {
	return b.ledger.ApplyBuy(base, cost, token, quantity)
}

// ApplySell implements domain.BotHandle.
func (b *Bot) ApplySell(token domain.TokenKey, quantity float64, base domain.TokenKey, price float64) (float64, error) {
	return b.ledger.ApplySell(token, quantity, base, price)
}

// SetStrategy registers a strategy for an event kind and subscribes the
// bot's handler on the bus. Replacing an existing strategy reuses the
// existing subscription.
func (b *Bot) SetStrategy(kind domain.EventKind, s domain.Strategy) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.strategies[kind] = s
	if _, subscribed := b.subs[kind]; !subscribed {
		b.subs[kind] = b.bus.Subscribe(kind, b.handleEvent)
	}
	b.logger.Info("strategy registered",
		slog.String("kind", string(kind)),
		slog.String("strategy", s.Name()),
	)
}

// Strategy returns the strategy registered for kind, nil when none.
func (b *Bot) Strategy(kind domain.EventKind) domain.Strategy {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.strategies[kind]
}

// RemoveStrategy deregisters the strategy for kind and removes the exact bus
// subscription so the bus retains no dangling reference.
func (b *Bot) RemoveStrategy(kind domain.EventKind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeStrategyLocked(kind)
}

func (b *Bot) removeStrategyLocked(kind domain.EventKind) {
	if _, ok := b.strategies[kind]; !ok {
		return
	}
	delete(b.strategies, kind)
	if sub := b.subs[kind]; sub != nil {
		b.bus.Unsubscribe(sub)
		delete(b.subs, kind)
	}
	b.logger.Info("strategy removed", slog.String("kind", string(kind)))
}

// UnsubscribeAll removes every strategy and bus subscription. Called when
// the bot is decommissioned by the manager.
func (b *Bot) UnsubscribeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for kind := range b.strategies {
		b.removeStrategyLocked(kind)
	}
	b.logger.Info("unsubscribed from all events")
}

// SetAction registers an action under a case-insensitive name.
func (b *Bot) SetAction(name string, a domain.Action) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.actions[strings.ToUpper(name)] = a
	b.logger.Info("action registered", slog.String("action", strings.ToUpper(name)))
}

// Action implements domain.BotHandle.
func (b *Bot) Action(name string) (domain.Action, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.actions[strings.ToUpper(name)]
	return a, ok
}

// handleEvent is the bus-facing failure boundary. Any strategy error or
// panic is logged with event context and forfeits that event for this bot
// only; nothing propagates back to the bus or other subscribers.
func (b *Bot) handleEvent(ctx context.Context, event domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("strategy panicked",
				slog.String("kind", string(event.Kind)),
				slog.Any("panic", r),
			)
			err = fmt.Errorf("bot %s: strategy panic on %s: %v", b.name, event.Kind, r)
		}
	}()

	b.mu.RLock()
	s := b.strategies[event.Kind]
	b.mu.RUnlock()

	if s == nil {
		b.logger.Warn("no strategy registered for event", slog.String("kind", string(event.Kind)))
		return nil
	}

	if execErr := s.Execute(ctx, event.Payload, b); execErr != nil {
		b.logger.Error("strategy execution failed",
			slog.String("kind", string(event.Kind)),
			slog.String("strategy", s.Name()),
			slog.String("error", execErr.Error()),
		)
		return fmt.Errorf("bot %s: %s: %w", b.name, s.Name(), execErr)
	}

	b.logger.Debug("event handled",
		slog.String("kind", string(event.Kind)),
		slog.String("strategy", s.Name()),
	)
	return nil
}
