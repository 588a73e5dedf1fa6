package bot

import (
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/copybot/internal/action"
	"github.com/alanyoungcy/copybot/internal/bus"
	"github.com/alanyoungcy/copybot/internal/domain"
	"github.com/alanyoungcy/copybot/internal/strategy"
)

// Builder assembles a fully wired copy-trading bot: seeded base balance,
// copy and stop-loss strategies subscribed on the bus, and BUY/SELL actions.
type Builder struct {
	name     string
	bus      *bus.Bus
	registry *domain.TokenRegistry
	logger   *slog.Logger
	notifier action.Notifier

	initialBalance float64
	baseToken      domain.Token
	traderWeights  map[string]float64
	buyThreshold   float64
	sellThreshold  float64
	maxMarketCap   float64
	maxQuantity    float64
	stopLossPct    float64
}

// NewBuilder creates a Builder with the defaults the original bots shipped
// with: 1000 base units, SOL base token, 2.0 thresholds, 10% stop loss.
func NewBuilder(name string, b *bus.Bus, registry *domain.TokenRegistry, logger *slog.Logger) *Builder {
	return &Builder{
		name:     name,
		bus:      b,
		registry: registry,
		logger:   logger,
		baseToken: domain.Token{
			Address:   "So11111111111111111111111111111111111111112",
			Network:   "solana",
			Name:      "Sol",
			Symbol:    "SOL",
			Price:     1.0,
			MarketCap: 1_000_000,
		},
		initialBalance: 1000.0,
		buyThreshold:   2.0,
		sellThreshold:  2.0,
		maxMarketCap:   10_000_000,
		maxQuantity:    10.0,
		stopLossPct:    10.0,
	}
}

// WithInitialBalance sets the starting base-token balance.
func (b *Builder) WithInitialBalance(balance float64) *Builder {
	b.initialBalance = balance
	return b
}

// WithBaseToken sets the token used to denominate cost and proceeds.
func (b *Builder) WithBaseToken(t domain.Token) *Builder {
	b.baseToken = t
	return b
}

// WithTraderWeights sets the trader -> weight copy map.
func (b *Builder) WithTraderWeights(weights map[string]float64) *Builder {
	b.traderWeights = weights
	return b
}

// WithThresholds sets the buy and sell weight thresholds.
func (b *Builder) WithThresholds(buy, sell float64) *Builder {
	b.buyThreshold = buy
	b.sellThreshold = sell
	return b
}

// WithSizing sets the market-cap ceiling and the base notional allocated at
// that ceiling.
func (b *Builder) WithSizing(maxMarketCap, maxQuantity float64) *Builder {
	b.maxMarketCap = maxMarketCap
	b.maxQuantity = maxQuantity
	return b
}

// WithStopLoss sets the drawdown percentage that forces a sell.
func (b *Builder) WithStopLoss(pct float64) *Builder {
	b.stopLossPct = pct
	return b
}

// WithNotifier attaches a trade notifier to the bot's actions.
func (b *Builder) WithNotifier(n action.Notifier) *Builder {
	b.notifier = n
	return b
}

// Build wires and returns the bot.
func (b *Builder) Build() (*Bot, error) {
	if len(b.traderWeights) == 0 {
		return nil, fmt.Errorf("build bot %q: no trader weights configured", b.name)
	}
	if b.buyThreshold <= 0 || b.sellThreshold <= 0 {
		return nil, fmt.Errorf("build bot %q: thresholds must be positive", b.name)
	}

	bt := New(b.name, b.bus, b.logger)

	b.registry.Set(b.baseToken)
	baseKey := b.baseToken.Key()
	if err := bt.AddToPortfolio(baseKey, b.initialBalance); err != nil {
		return nil, fmt.Errorf("build bot %q: seed balance: %w", b.name, err)
	}

	sizer := strategy.NewSizingStrategy(b.maxMarketCap, b.maxQuantity, bt.Logger())
	bt.SetStrategy(domain.EventSignal, strategy.NewCopyStrategy(
		b.traderWeights, b.buyThreshold, b.sellThreshold, sizer, b.registry, bt.Logger(),
	))
	bt.SetStrategy(domain.EventMarketCapUpdate, strategy.NewStopLossStrategy(
		b.stopLossPct, b.registry, bt.Logger(),
	))

	bt.SetAction("BUY", action.NewBuy(baseKey, b.registry, b.notifier))
	bt.SetAction("SELL", action.NewSell(baseKey, b.registry, b.notifier))

	return bt, nil
}
