package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/alanyoungcy/copybot/internal/bus"
	"github.com/alanyoungcy/copybot/internal/domain"
)

// TokenFeed is the market-data subscription surface the manager drives. The
// poller implements it.
type TokenFeed interface {
	Subscribe(network, address string)
	Unsubscribe(network, address string)
}

// tokenSub identifies a subscribed (network, address) pair.
type tokenSub struct {
	Network string
	Address string
}

// Manager is the registry of bots plus the reference-counted token
// subscription table that drives the poller. The feed is told to start
// tracking a pair on the 0 -> 1 transition and to stop on 1 -> 0.
type Manager struct {
	bus    *bus.Bus
	feed   TokenFeed
	logger *slog.Logger

	mu       sync.Mutex
	bots     map[string]*Bot
	refcount map[tokenSub]int
	// held tracks which bots contribute to which subscriptions so removing
	// a bot drops exactly its own interest.
	held map[string][]tokenSub
}

// NewManager creates a Manager over the given bus and token feed.
func NewManager(b *bus.Bus, feed TokenFeed, logger *slog.Logger) *Manager {
	return &Manager{
		bus:      b,
		feed:     feed,
		logger:   logger.With(slog.String("component", "bot_manager")),
		bots:     make(map[string]*Bot),
		refcount: make(map[tokenSub]int),
		held:     make(map[string][]tokenSub),
	}
}

// RegisterBot adds a bot to the manager. Registering a second bot under the
// same name is rejected.
func (m *Manager) RegisterBot(b *Bot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bots[b.Name()]; ok {
		return fmt.Errorf("register %q: %w", b.Name(), domain.ErrBotExists)
	}
	m.bots[b.Name()] = b
	m.logger.Info("bot registered", slog.String("bot", b.Name()))
	return nil
}

// GetBot returns the bot registered under name.
func (m *Manager) GetBot(name string) (*Bot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bots[name]
	return b, ok
}

// BotNames returns all registered bot names in sorted order.
func (m *Manager) BotNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.bots))
	for n := range m.bots {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RemoveBot deregisters the bot, tears down its bus subscriptions, and drops
// every token subscription held on its behalf.
func (m *Manager) RemoveBot(name string) {
	m.mu.Lock()
	b, ok := m.bots[name]
	if !ok {
		m.mu.Unlock()
		m.logger.Warn("remove: bot not found", slog.String("bot", name))
		return
	}
	delete(m.bots, name)
	subs := m.held[name]
	delete(m.held, name)
	m.mu.Unlock()

	b.UnsubscribeAll()
	for _, s := range subs {
		m.release(s)
	}
	m.logger.Info("bot removed", slog.String("bot", name))
}

// SubscribeToken records interest in market data for a (network, address)
// pair on behalf of a bot. The first interested bot starts the underlying
// poller subscription.
func (m *Manager) SubscribeToken(botName, network, address string) {
	s := tokenSub{Network: network, Address: address}

	m.mu.Lock()
	m.refcount[s]++
	first := m.refcount[s] == 1
	m.held[botName] = append(m.held[botName], s)
	m.mu.Unlock()

	if first {
		m.feed.Subscribe(network, address)
		m.logger.Info("poller subscription started",
			slog.String("network", network),
			slog.String("address", address),
		)
	}
}

// UnsubscribeToken drops one bot's interest in a pair. The poller
// subscription ends only when no bot remains interested. The refcount is
// released only when the named bot actually held the subscription, so a
// duplicate or misdirected unsubscribe cannot drop another bot's interest.
func (m *Manager) UnsubscribeToken(botName, network, address string) {
	s := tokenSub{Network: network, Address: address}

	m.mu.Lock()
	subs := m.held[botName]
	held := false
	for i, h := range subs {
		if h == s {
			m.held[botName] = append(subs[:i], subs[i+1:]...)
			held = true
			break
		}
	}
	m.mu.Unlock()

	if !held {
		m.logger.Warn("unsubscribe: bot holds no subscription for pair",
			slog.String("bot", botName),
			slog.String("network", network),
			slog.String("address", address),
		)
		return
	}
	m.release(s)
}

// release decrements the refcount for a pair and stops the poller
// subscription on the 1 -> 0 transition, purging the table entry.
func (m *Manager) release(s tokenSub) {
	m.mu.Lock()
	count, ok := m.refcount[s]
	if !ok {
		m.mu.Unlock()
		return
	}
	count--
	last := count <= 0
	if last {
		delete(m.refcount, s)
	} else {
		m.refcount[s] = count
	}
	m.mu.Unlock()

	if last {
		m.feed.Unsubscribe(s.Network, s.Address)
		m.logger.Info("poller subscription stopped",
			slog.String("network", s.Network),
			slog.String("address", s.Address),
		)
	}
}

// SubscriberCount returns the number of bots interested in a pair.
func (m *Manager) SubscriberCount(network, address string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refcount[tokenSub{Network: network, Address: address}]
}

// DispatchEvent publishes an event on the bus on behalf of the orchestrator.
// Aggregate handler failures are logged here; individual bots have already
// isolated them.
func (m *Manager) DispatchEvent(ctx context.Context, event domain.Event) {
	if err := m.bus.Publish(ctx, event); err != nil {
		m.logger.Error("event dispatch reported handler errors",
			slog.String("kind", string(event.Kind)),
			slog.String("error", err.Error()),
		)
	}
}
