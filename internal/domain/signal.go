package domain

import (
	"time"

	"github.com/google/uuid"
)

// TradeSide is the direction of a signal or intent.
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// Signal is the payload of EventSignal: a report that a tracked trader
// performed a trade. It is produced by the external parsing collaborator and
// treated as opaque input by the engine.
type Signal struct {
	Trader string    `json:"trader"`
	Side   TradeSide `json:"side"`
	Token  Token     `json:"token"`
	Amount float64   `json:"amount"`
}

// Valid reports whether all required fields are present.
func (s Signal) Valid() bool {
	if s.Trader == "" || s.Amount == 0 {
		return false
	}
	if s.Side != SideBuy && s.Side != SideSell {
		return false
	}
	return s.Token.Address != "" && s.Token.Network != ""
}

// TradeIntent is an internal decision record handed to an action for ledger
// mutation once a strategy decides to trade.
type TradeIntent struct {
	ID        string
	Side      TradeSide
	Token     Token
	Price     float64
	Quantity  float64
	Reason    string // "copy_threshold", "stop_loss", ...
	CreatedAt time.Time
}

// NewTradeIntent builds an intent with a fresh UUID and timestamp.
func NewTradeIntent(side TradeSide, token Token, price, quantity float64, reason string) TradeIntent {
	return TradeIntent{
		ID:        uuid.NewString(),
		Side:      side,
		Token:     token,
		Price:     price,
		Quantity:  quantity,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
}
