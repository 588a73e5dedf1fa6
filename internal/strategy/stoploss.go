package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/copybot/internal/domain"
)

// drawdownTracker records the high-water and most recent market cap for one
// token while the owning bot holds a position in it.
type drawdownTracker struct {
	high float64
	last float64
}

// update records a new market cap. The high-water mark only ratchets upward,
// which keeps the tracker idempotent against duplicate or out-of-order
// updates.
func (t *drawdownTracker) update(marketCap float64) {
	t.last = marketCap
	if marketCap > t.high {
		t.high = marketCap
	}
}

// drawdownPct returns the percentage decline from the high-water mark. A
// non-positive high never reports a drawdown (guards the division).
func (t *drawdownTracker) drawdownPct() float64 {
	if t.high <= 0 {
		return 0
	}
	return (t.high - t.last) / t.high * 100
}

// StopLossStrategy consumes market-cap updates and forces a full-position
// sell once the drawdown from the observed high reaches the configured
// percentage. Trackers exist only while a position is held and are removed
// after they trigger.
type StopLossStrategy struct {
	stopLossPct float64
	registry    *domain.TokenRegistry
	logger      *slog.Logger

	mu       sync.Mutex
	trackers map[domain.TokenKey]*drawdownTracker
}

// NewStopLossStrategy creates a stop-loss strategy triggering at the given
// percentage drop from the high-water market cap.
func NewStopLossStrategy(stopLossPct float64, registry *domain.TokenRegistry, logger *slog.Logger) *StopLossStrategy {
	return &StopLossStrategy{
		stopLossPct: stopLossPct,
		registry:    registry,
		logger:      logger.With(slog.String("component", "stop_loss")),
		trackers:    make(map[domain.TokenKey]*drawdownTracker),
	}
}

// Name returns the strategy identifier.
func (s *StopLossStrategy) Name() string { return "stop_loss" }

// Execute processes one market-cap update for the owning bot.
func (s *StopLossStrategy) Execute(ctx context.Context, payload any, bot domain.BotHandle) error {
	upd, ok := payload.(domain.MarketCapUpdate)
	if !ok {
		return fmt.Errorf("stop_loss: unexpected payload %T", payload)
	}
	key := upd.Key()

	// Keep the shared registry current regardless of position.
	_, _ = s.registry.Update(upd.Address, upd.Network, domain.TokenUpdate{
		MarketCap: domain.Float64Ptr(upd.MarketCap),
	})

	triggered := s.track(key, upd.MarketCap, bot)
	if !triggered {
		return nil
	}
	return s.forceSell(ctx, key, bot)
}

// track updates the token's tracker under the strategy lock and reports
// whether the stop-loss condition fired. Trackers for tokens the bot no
// longer holds are discarded.
func (s *StopLossStrategy) track(key domain.TokenKey, marketCap float64, bot domain.BotHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bot.Position(key) <= 0 {
		if _, ok := s.trackers[key]; ok {
			delete(s.trackers, key)
			s.logger.Debug("position closed, tracker removed", slog.String("token", key.String()))
		}
		return false
	}

	tracker, ok := s.trackers[key]
	if !ok {
		s.trackers[key] = &drawdownTracker{high: marketCap, last: marketCap}
		s.logger.Info("tracking token for stop loss",
			slog.String("token", key.String()),
			slog.Float64("market_cap", marketCap),
		)
		return false
	}

	tracker.update(marketCap)
	dd := tracker.drawdownPct()
	s.logger.Debug("market cap tracked",
		slog.String("token", key.String()),
		slog.Float64("last", tracker.last),
		slog.Float64("high", tracker.high),
		slog.Float64("drawdown_pct", dd),
	)

	if tracker.high > 0 && dd >= s.stopLossPct {
		delete(s.trackers, key)
		s.logger.Warn("stop loss triggered",
			slog.String("token", key.String()),
			slog.Float64("drawdown_pct", dd),
			slog.Float64("threshold_pct", s.stopLossPct),
		)
		return true
	}
	return false
}

// forceSell liquidates the bot's full position for the token via its SELL
// action.
func (s *StopLossStrategy) forceSell(ctx context.Context, key domain.TokenKey, bot domain.BotHandle) error {
	held := bot.Position(key)
	if held <= 0 {
		s.logger.Warn("no position to sell after trigger", slog.String("token", key.String()))
		return nil
	}

	token, ok := s.registry.Get(key.Address, key.Network)
	if !ok {
		return fmt.Errorf("stop_loss: token %s: %w", key, domain.ErrNotFound)
	}
	if token.Price <= 0 {
		s.logger.Warn("no price for forced sell, dropping intent", slog.String("token", key.String()))
		return nil
	}

	action, actionOK := bot.Action(string(domain.SideSell))
	if !actionOK {
		return fmt.Errorf("stop_loss: %w: SELL", domain.ErrActionNotRegistered)
	}
	intent := domain.NewTradeIntent(domain.SideSell, token, token.Price, held, "stop_loss")
	return action.Execute(ctx, intent, bot)
}

// Tracking reports whether a tracker currently exists for the token.
func (s *StopLossStrategy) Tracking(key domain.TokenKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.trackers[key]
	return ok
}
