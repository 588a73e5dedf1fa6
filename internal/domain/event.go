package domain

// EventKind discriminates the payload carried by an Event.
type EventKind string

const (
	// EventSignal carries a Signal payload produced by the signal feed.
	EventSignal EventKind = "SIGNAL"
	// EventMarketCapUpdate carries a MarketCapUpdate from the poller.
	EventMarketCapUpdate EventKind = "MARKET_CAP_UPDATE"
	// EventPriceUpdate carries a price refresh for a registered token.
	EventPriceUpdate EventKind = "PRICE_UPDATE"
	// EventOrderFilled carries a fill confirmation for a simulated order.
	EventOrderFilled EventKind = "ORDER_FILLED"
)

// Event is a tagged union delivered through the bus. Payload is immutable
// once published; subscribers must not mutate it.
type Event struct {
	Kind    EventKind
	Payload any
}

// MarketCapUpdate is the payload of EventMarketCapUpdate. It reports the
// freshest market capitalization observed for a token.
type MarketCapUpdate struct {
	Network   string
	Address   string
	MarketCap float64
}

// Key returns the token key the update refers to.
func (u MarketCapUpdate) Key() TokenKey {
	return TokenKey{Address: u.Address, Network: u.Network}
}
