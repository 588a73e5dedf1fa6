package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/copybot/internal/domain"
)

// tokenAccumulator tracks the weighted buy/sell evidence gathered for one
// token. It belongs to exactly one CopyStrategy instance and is never shared
// across bots.
type tokenAccumulator struct {
	token      domain.Token
	buyWeight  float64
	sellWeight float64
}

// CopyStrategy accumulates weighted trade signals from followed traders and
// emits a buy or sell intent when the accumulated weight for a token crosses
// the configured threshold. Crossing is edge-triggered: the weight resets to
// zero and the excess above the threshold is discarded.
type CopyStrategy struct {
	traderWeights map[string]float64
	buyThreshold  float64
	sellThreshold float64
	sizer         *SizingStrategy
	registry      *domain.TokenRegistry
	logger        *slog.Logger

	mu           sync.Mutex
	accumulators map[domain.TokenKey]*tokenAccumulator
}

// NewCopyStrategy creates a copy strategy for the given trader weight map.
// The sizer converts market cap into a target notional for buy intents.
func NewCopyStrategy(
	traderWeights map[string]float64,
	buyThreshold, sellThreshold float64,
	sizer *SizingStrategy,
	registry *domain.TokenRegistry,
	logger *slog.Logger,
) *CopyStrategy {
	return &CopyStrategy{
		traderWeights: traderWeights,
		buyThreshold:  buyThreshold,
		sellThreshold: sellThreshold,
		sizer:         sizer,
		registry:      registry,
		logger:        logger.With(slog.String("component", "copy_strategy")),
		accumulators:  make(map[domain.TokenKey]*tokenAccumulator),
	}
}

// Name returns the strategy identifier.
func (c *CopyStrategy) Name() string { return "copy" }

// Execute processes one trade signal. Invalid signals are logged and dropped
// without touching any accumulator.
func (c *CopyStrategy) Execute(ctx context.Context, payload any, bot domain.BotHandle) error {
	sig, ok := payload.(domain.Signal)
	if !ok {
		return fmt.Errorf("copy: unexpected payload %T", payload)
	}

	if !sig.Valid() {
		c.logger.Warn("dropping incomplete signal", slog.String("trader", sig.Trader))
		return nil
	}
	weight, known := c.traderWeights[sig.Trader]
	if !known {
		c.logger.Warn("dropping signal from untracked trader", slog.String("trader", sig.Trader))
		return nil
	}

	token := c.registry.GetOrCreate(sig.Token)
	// Signals carry fresher price data than the registry; keep it current.
	if sig.Token.Price > 0 || sig.Token.MarketCap > 0 {
		upd := domain.TokenUpdate{}
		if sig.Token.Price > 0 {
			upd.Price = domain.Float64Ptr(sig.Token.Price)
		}
		if sig.Token.MarketCap > 0 {
			upd.MarketCap = domain.Float64Ptr(sig.Token.MarketCap)
		}
		if t, err := c.registry.Update(token.Address, token.Network, upd); err == nil {
			token = t
		}
	}

	side, crossed := c.accumulate(sig, token, weight, bot)
	if !crossed {
		return nil
	}

	switch side {
	case domain.SideBuy:
		return c.emitBuy(ctx, token, bot)
	case domain.SideSell:
		return c.emitSell(ctx, token, bot)
	}
	return nil
}

// accumulate applies the trader's weight to the token's accumulator under
// the strategy lock and reports whether a threshold was crossed. Concurrent
// signals for the same token are serialized here so no increment is lost.
func (c *CopyStrategy) accumulate(sig domain.Signal, token domain.Token, weight float64, bot domain.BotHandle) (domain.TradeSide, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := token.Key()
	acc, ok := c.accumulators[key]
	if !ok {
		acc = &tokenAccumulator{token: token}
		c.accumulators[key] = acc
	}
	acc.token = token

	switch sig.Side {
	case domain.SideBuy:
		acc.buyWeight += weight
		if acc.buyWeight >= c.buyThreshold {
			acc.buyWeight = 0
			return domain.SideBuy, true
		}
		c.logger.Debug("buy threshold not met",
			slog.String("token", key.String()),
			slog.Float64("buy_weight", acc.buyWeight),
			slog.Float64("threshold", c.buyThreshold),
		)

	case domain.SideSell:
		// Sell evidence only counts while a position is held.
		if bot.Position(key) <= 0 {
			c.logger.Debug("ignoring sell signal without position",
				slog.String("token", key.String()),
			)
			return "", false
		}
		acc.sellWeight += weight
		if acc.sellWeight >= c.sellThreshold {
			acc.sellWeight = 0
			return domain.SideSell, true
		}
		c.logger.Debug("sell threshold not met",
			slog.String("token", key.String()),
			slog.Float64("sell_weight", acc.sellWeight),
			slog.Float64("threshold", c.sellThreshold),
		)
	}
	return "", false
}

// emitBuy sizes a buy against the token's market cap and hands the intent to
// the bot's BUY action. Non-positive price or sizing drops the intent.
func (c *CopyStrategy) emitBuy(ctx context.Context, token domain.Token, bot domain.BotHandle) error {
	if token.Price <= 0 {
		c.logger.Warn("dropping buy intent without price", slog.String("token", token.Key().String()))
		return nil
	}
	notional := c.sizer.TargetNotional(token.MarketCap)
	if notional <= 0 {
		c.logger.Warn("sizing returned zero notional, dropping buy intent",
			slog.String("token", token.Key().String()),
		)
		return nil
	}
	quantity := notional / token.Price

	action, ok := bot.Action(string(domain.SideBuy))
	if !ok {
		return fmt.Errorf("copy: %w: BUY", domain.ErrActionNotRegistered)
	}
	intent := domain.NewTradeIntent(domain.SideBuy, token, token.Price, quantity, "copy_threshold")
	c.logger.Info("buy threshold crossed",
		slog.String("token", token.Key().String()),
		slog.Float64("notional", notional),
		slog.Float64("quantity", quantity),
	)
	return action.Execute(ctx, intent, bot)
}

// emitSell liquidates the bot's entire position for the token.
func (c *CopyStrategy) emitSell(ctx context.Context, token domain.Token, bot domain.BotHandle) error {
	held := bot.Position(token.Key())
	if held <= 0 {
		c.logger.Warn("position closed before sell intent could run",
			slog.String("token", token.Key().String()),
		)
		return nil
	}
	if token.Price <= 0 {
		c.logger.Warn("dropping sell intent without price", slog.String("token", token.Key().String()))
		return nil
	}

	action, ok := bot.Action(string(domain.SideSell))
	if !ok {
		return fmt.Errorf("copy: %w: SELL", domain.ErrActionNotRegistered)
	}
	intent := domain.NewTradeIntent(domain.SideSell, token, token.Price, held, "copy_threshold")
	c.logger.Info("sell threshold crossed, liquidating position",
		slog.String("token", token.Key().String()),
		slog.Float64("quantity", held),
	)
	return action.Execute(ctx, intent, bot)
}

// Weights returns the accumulated buy and sell weight for a token, for
// status inspection and tests.
func (c *CopyStrategy) Weights(key domain.TokenKey) (buy, sell float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if acc, ok := c.accumulators[key]; ok {
		return acc.buyWeight, acc.sellWeight
	}
	return 0, 0
}
