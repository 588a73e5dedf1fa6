package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/copybot/internal/domain"
)

func newStopLossFixture(t *testing.T, pct float64) (*StopLossStrategy, *fakeBot, *recordingAction) {
	t.Helper()
	registry := domain.NewTokenRegistry()
	registry.Set(domain.Token{Address: "0xabc", Network: "solana", Price: 2.0, MarketCap: 100})
	strat := NewStopLossStrategy(pct, registry, testLogger())
	bot := newFakeBot()
	sell := &recordingAction{name: "SELL"}
	bot.actions["SELL"] = sell
	return strat, bot, sell
}

func capUpdate(marketCap float64) domain.MarketCapUpdate {
	return domain.MarketCapUpdate{Network: "solana", Address: "0xabc", MarketCap: marketCap}
}

func TestStopLossTriggersOnDrawdown(t *testing.T) {
	strat, bot, sell := newStopLossFixture(t, 20)
	ctx := context.Background()
	key := capUpdate(0).Key()
	bot.setPosition(key, 5)

	// High-water ratchets to 150; 120 is a 20% drawdown from it.
	require.NoError(t, strat.Execute(ctx, capUpdate(100), bot))
	require.NoError(t, strat.Execute(ctx, capUpdate(150), bot))
	assert.Empty(t, sell.intents())

	require.NoError(t, strat.Execute(ctx, capUpdate(120), bot))
	require.Len(t, sell.intents(), 1)

	intent := sell.intents()[0]
	assert.Equal(t, domain.SideSell, intent.Side)
	assert.InDelta(t, 5.0, intent.Quantity, 1e-9)
	assert.Equal(t, "stop_loss", intent.Reason)

	// The tracker is discarded after firing.
	assert.False(t, strat.Tracking(key))
}

func TestStopLossHoldsAboveThreshold(t *testing.T) {
	strat, bot, sell := newStopLossFixture(t, 20)
	ctx := context.Background()
	key := capUpdate(0).Key()
	bot.setPosition(key, 5)

	// 135 from a 150 high is a 10% drawdown, below the 20% trigger.
	require.NoError(t, strat.Execute(ctx, capUpdate(100), bot))
	require.NoError(t, strat.Execute(ctx, capUpdate(150), bot))
	require.NoError(t, strat.Execute(ctx, capUpdate(135), bot))

	assert.Empty(t, sell.intents())
	assert.True(t, strat.Tracking(key))
}

func TestStopLossIgnoresTokensWithoutPosition(t *testing.T) {
	strat, bot, sell := newStopLossFixture(t, 20)
	ctx := context.Background()
	key := capUpdate(0).Key()

	require.NoError(t, strat.Execute(ctx, capUpdate(100), bot))
	require.NoError(t, strat.Execute(ctx, capUpdate(50), bot))

	assert.Empty(t, sell.intents())
	assert.False(t, strat.Tracking(key))
}

func TestStopLossDropsTrackerWhenPositionCloses(t *testing.T) {
	strat, bot, sell := newStopLossFixture(t, 20)
	ctx := context.Background()
	key := capUpdate(0).Key()

	bot.setPosition(key, 5)
	require.NoError(t, strat.Execute(ctx, capUpdate(100), bot))
	assert.True(t, strat.Tracking(key))

	// Position closed elsewhere: the next update removes the tracker and a
	// later re-entry starts a fresh high-water mark.
	bot.setPosition(key, 0)
	require.NoError(t, strat.Execute(ctx, capUpdate(150), bot))
	assert.False(t, strat.Tracking(key))

	bot.setPosition(key, 5)
	require.NoError(t, strat.Execute(ctx, capUpdate(60), bot))
	require.NoError(t, strat.Execute(ctx, capUpdate(55), bot))
	// 55 from a 60 high is under 20%; the stale 150 high is gone.
	assert.Empty(t, sell.intents())
}

func TestStopLossHighWaterOnlyRatchets(t *testing.T) {
	tr := &drawdownTracker{high: 100, last: 100}
	tr.update(80)
	assert.InDelta(t, 100.0, tr.high, 1e-9)
	assert.InDelta(t, 20.0, tr.drawdownPct(), 1e-9)

	tr.update(120)
	assert.InDelta(t, 120.0, tr.high, 1e-9)
	assert.Zero(t, tr.drawdownPct())
}

func TestStopLossUnexpectedPayloadIsError(t *testing.T) {
	strat, bot, _ := newStopLossFixture(t, 20)
	err := strat.Execute(context.Background(), 42, bot)
	require.Error(t, err)
}
