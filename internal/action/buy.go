// Package action implements the ledger-mutating trade actions a bot resolves
// by name when a strategy emits a trade intent.
package action

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/copybot/internal/domain"
)

// Notifier receives trade execution notices. The notify package implements
// it; a nil notifier disables notifications.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Buy debits the base token by price*quantity and credits the bought token.
// The mutation is atomic: an insufficient base balance rejects the intent
// without touching the ledger.
type Buy struct {
	baseToken domain.TokenKey
	registry  *domain.TokenRegistry
	notifier  Notifier
}

// NewBuy creates a buy action funded from the given base token.
func NewBuy(baseToken domain.TokenKey, registry *domain.TokenRegistry, notifier Notifier) *Buy {
	return &Buy{baseToken: baseToken, registry: registry, notifier: notifier}
}

// Name returns the action identifier.
func (a *Buy) Name() string { return "BUY" }

// Execute applies the buy to the bot's ledger.
func (a *Buy) Execute(ctx context.Context, intent domain.TradeIntent, bot domain.BotHandle) error {
	if intent.Quantity <= 0 {
		bot.Logger().Warn("buy rejected: quantity must be positive",
			slog.Float64("quantity", intent.Quantity),
		)
		return nil
	}

	token := a.registry.GetOrCreate(intent.Token)
	price := intent.Price
	if price <= 0 {
		price = token.Price
	}
	if price <= 0 {
		bot.Logger().Warn("buy rejected: no price available",
			slog.String("token", token.Key().String()),
		)
		return nil
	}

	cost := price * intent.Quantity
	if err := bot.ApplyBuy(a.baseToken, cost, token.Key(), intent.Quantity); err != nil {
		bot.Logger().Warn("buy rejected",
			slog.String("token", token.Key().String()),
			slog.Float64("cost", cost),
			slog.String("error", err.Error()),
		)
		return nil
	}

	bot.Logger().Info("buy executed",
		slog.String("intent_id", intent.ID),
		slog.String("token", token.Key().String()),
		slog.String("symbol", token.Symbol),
		slog.Float64("quantity", intent.Quantity),
		slog.Float64("price", price),
		slog.Float64("cost", cost),
		slog.String("reason", intent.Reason),
	)

	if a.notifier != nil {
		msg := fmt.Sprintf("%s bought %.4f %s at %.6f (cost %.4f)",
			bot.Name(), intent.Quantity, token.Symbol, price, cost)
		if err := a.notifier.Notify(ctx, "trade_executed", "Buy executed", msg); err != nil {
			bot.Logger().Warn("trade notification failed", slog.String("error", err.Error()))
		}
	}
	return nil
}
