// Package strategy implements the decision side of the trading engine: the
// weighted copy-trading accumulator, the drawdown stop-loss tracker, and the
// market-cap position sizing used by both.
package strategy

import "log/slog"

// SizingStrategy maps a token's market capitalization to a target notional in
// base token units. The target scales linearly with market cap and clamps at
// MaxQuantity once the cap reaches MaxMarketCap.
type SizingStrategy struct {
	MaxMarketCap float64
	MaxQuantity  float64
	logger       *slog.Logger
}

// NewSizingStrategy creates a sizing strategy. maxMarketCap is the cap at
// which the full maxQuantity is allocated.
func NewSizingStrategy(maxMarketCap, maxQuantity float64, logger *slog.Logger) *SizingStrategy {
	return &SizingStrategy{
		MaxMarketCap: maxMarketCap,
		MaxQuantity:  maxQuantity,
		logger:       logger.With(slog.String("component", "sizing")),
	}
}

// Name returns the strategy identifier.
func (s *SizingStrategy) Name() string { return "sizing" }

// TargetNotional returns the base-token notional to allocate for a token
// with the given market cap. It returns 0 and logs when the market cap is
// missing or non-positive.
func (s *SizingStrategy) TargetNotional(marketCap float64) float64 {
	if marketCap <= 0 {
		s.logger.Warn("missing or non-positive market cap, sizing to zero",
			slog.Float64("market_cap", marketCap),
		)
		return 0
	}
	if s.MaxMarketCap <= 0 {
		s.logger.Warn("max market cap not configured, sizing to zero")
		return 0
	}
	capped := marketCap
	if capped > s.MaxMarketCap {
		capped = s.MaxMarketCap
	}
	return s.MaxQuantity * capped / s.MaxMarketCap
}
