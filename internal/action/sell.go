package action

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/copybot/internal/domain"
)

// Sell debits the sold token and credits the proceeds to the base token. The
// sold quantity is clamped to the held position rather than erroring when
// the intent asks for more than is held.
type Sell struct {
	baseToken domain.TokenKey
	registry  *domain.TokenRegistry
	notifier  Notifier
}

// NewSell creates a sell action crediting proceeds to the given base token.
func NewSell(baseToken domain.TokenKey, registry *domain.TokenRegistry, notifier Notifier) *Sell {
	return &Sell{baseToken: baseToken, registry: registry, notifier: notifier}
}

// Name returns the action identifier.
func (a *Sell) Name() string { return "SELL" }

// Execute applies the sell to the bot's ledger.
func (a *Sell) Execute(ctx context.Context, intent domain.TradeIntent, bot domain.BotHandle) error {
	if intent.Quantity <= 0 {
		bot.Logger().Warn("sell rejected: quantity must be positive",
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
		bot.Logger().Warn("sell rejected: no price available",
			slog.String("token", token.Key().String()),
		)
		return nil
	}

	sold, err := bot.ApplySell(token.Key(), intent.Quantity, a.baseToken, price)
	if err != nil {
		bot.Logger().Warn("sell rejected",
			slog.String("token", token.Key().String()),
			slog.String("error", err.Error()),
		)
		return nil
	}

	proceeds := sold * price
	bot.Logger().Info("sell executed",
		slog.String("intent_id", intent.ID),
		slog.String("token", token.Key().String()),
		slog.String("symbol", token.Symbol),
		slog.Float64("requested", intent.Quantity),
		slog.Float64("sold", sold),
		slog.Float64("price", price),
		slog.Float64("proceeds", proceeds),
		slog.String("reason", intent.Reason),
	)

	if a.notifier != nil {
		event := "trade_executed"
		title := "Sell executed"
		if intent.Reason == "stop_loss" {
			event = "stop_loss"
			title = "Stop loss sell"
		}
		msg := fmt.Sprintf("%s sold %.4f %s at %.6f (proceeds %.4f)",
			bot.Name(), sold, token.Symbol, price, proceeds)
		if err := a.notifier.Notify(ctx, event, title, msg); err != nil {
			bot.Logger().Warn("trade notification failed", slog.String("error", err.Error()))
		}
	}
	return nil
}
