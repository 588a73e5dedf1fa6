package domain

import (
	"context"
	"log/slog"
)

// BotHandle is the view of a bot that strategies and actions are given. It
// exposes the ledger operations and the named-action lookup without leaking
// the bot's event plumbing.
type BotHandle interface {
	// Name returns the bot's unique name.
	Name() string
	// Logger returns the bot-scoped structured logger.
	Logger() *slog.Logger
	// Position returns the quantity currently held for a token, 0 if none.
	Position(key TokenKey) float64
	// Action returns the action registered under name (case-insensitive).
	Action(name string) (Action, bool)
	// ApplyBuy atomically debits cost from the base token and credits
	// quantity to token. It fails without mutating when the base balance
	// is insufficient.
	ApplyBuy(base TokenKey, cost float64, token TokenKey, quantity float64) error
	// ApplySell atomically debits up to quantity from token (clamped to the
	// held position) and credits soldQuantity*price to the base token. It
	// returns the quantity actually sold.
	ApplySell(token TokenKey, quantity float64, base TokenKey, price float64) (float64, error)
}

// Strategy consumes event payloads routed by a bot and decides whether to
// trade. Implementations own any per-token state they need; that state is
// never shared across bots.
type Strategy interface {
	Name() string
	Execute(ctx context.Context, payload any, bot BotHandle) error
}

// Action performs a ledger mutation for a trade intent.
type Action interface {
	Name() string
	Execute(ctx context.Context, intent TradeIntent, bot BotHandle) error
}
