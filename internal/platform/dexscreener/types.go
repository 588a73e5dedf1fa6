package dexscreener

// APIToken is the token object embedded in a pair response.
type APIToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// Liquidity is the liquidity block of a pair response.
type Liquidity struct {
	USD   float64 `json:"usd"`
	Base  float64 `json:"base"`
	Quote float64 `json:"quote"`
}

// Pair is one trading pair as returned by the DexScreener pairs endpoints.
// Only the fields the poller consumes are decoded.
type Pair struct {
	ChainID     string    `json:"chainId"`
	DexID       string    `json:"dexId"`
	PairAddress string    `json:"pairAddress"`
	BaseToken   APIToken  `json:"baseToken"`
	QuoteToken  APIToken  `json:"quoteToken"`
	PriceNative string    `json:"priceNative"`
	PriceUSD    string    `json:"priceUsd"`
	Liquidity   Liquidity `json:"liquidity"`
	// FDV is the fully diluted valuation, used as the market cap proxy.
	FDV       float64 `json:"fdv"`
	MarketCap float64 `json:"marketCap"`
}

// EffectiveMarketCap prefers the explicit market cap and falls back to FDV,
// matching how the upstream screener reports small tokens.
func (p Pair) EffectiveMarketCap() float64 {
	if p.MarketCap > 0 {
		return p.MarketCap
	}
	return p.FDV
}

// searchResponse wraps the /latest/dex/search and /latest/dex/pairs payloads.
type searchResponse struct {
	Pairs []Pair `json:"pairs"`
}
