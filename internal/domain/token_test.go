package domain

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = Token{
	Address:   "0xabc",
	Network:   "solana",
	Name:      "Token X",
	Symbol:    "TKX",
	Price:     2.0,
	MarketCap: 5_000_000,
}

func TestTokenKeyString(t *testing.T) {
	key := TokenKey{Address: "0xabc", Network: "solana"}
	assert.Equal(t, "solana:0xabc", key.String())
}

func TestRegistrySetAndGet(t *testing.T) {
	r := NewTokenRegistry()
	r.Set(sample)

	got, ok := r.Get("0xabc", "solana")
	require.True(t, ok)
	assert.Equal(t, sample, got)

	_, ok = r.Get("0xabc", "base")
	assert.False(t, ok)
}

func TestRegistryUpdatePartialFields(t *testing.T) {
	r := NewTokenRegistry()
	r.Set(sample)

	updated, err := r.Update("0xabc", "solana", TokenUpdate{
		Price:     Float64Ptr(3.0),
		MarketCap: Float64Ptr(6_000_000),
	})
	require.NoError(t, err)
	assert.InDelta(t, 3.0, updated.Price, 1e-9)
	assert.InDelta(t, 6_000_000.0, updated.MarketCap, 1e-9)
	// Untouched fields survive the partial update.
	assert.Equal(t, "TKX", updated.Symbol)
	assert.Equal(t, "Token X", updated.Name)
}

func TestRegistryUpdateUnknownToken(t *testing.T) {
	r := NewTokenRegistry()
	_, err := r.Update("0xmissing", "solana", TokenUpdate{Price: Float64Ptr(1)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryGetOrCreate(t *testing.T) {
	r := NewTokenRegistry()

	created := r.GetOrCreate(sample)
	assert.Equal(t, sample, created)
	assert.Equal(t, 1, r.Len())

	// An existing entry wins over the candidate.
	richer := sample
	richer.Price = 99
	existing := r.GetOrCreate(richer)
	assert.InDelta(t, 2.0, existing.Price, 1e-9)
	assert.Equal(t, 1, r.Len())
}

func TestRegistrySnapshotsDoNotAlias(t *testing.T) {
	r := NewTokenRegistry()
	r.Set(sample)

	got, ok := r.Get("0xabc", "solana")
	require.True(t, ok)
	got.Price = 123

	again, _ := r.Get("0xabc", "solana")
	assert.InDelta(t, 2.0, again.Price, 1e-9)
}

func TestRegistryLastWriteWins(t *testing.T) {
	r := NewTokenRegistry()
	r.Set(sample)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(price float64) {
			defer wg.Done()
			_, _ = r.Update("0xabc", "solana", TokenUpdate{Price: Float64Ptr(price)})
		}(float64(i + 1))
	}
	wg.Wait()

	got, ok := r.Get("0xabc", "solana")
	require.True(t, ok)
	assert.Greater(t, got.Price, 0.0)
	assert.LessOrEqual(t, got.Price, 50.0)
}

func TestSignalValid(t *testing.T) {
	good := Signal{Trader: "alice", Side: SideBuy, Token: sample, Amount: 1}
	assert.True(t, good.Valid())

	for name, mutate := range map[string]func(*Signal){
		"empty trader":    func(s *Signal) { s.Trader = "" },
		"zero amount":     func(s *Signal) { s.Amount = 0 },
		"bad side":        func(s *Signal) { s.Side = "HOLD" },
		"missing address": func(s *Signal) { s.Token.Address = "" },
		"missing network": func(s *Signal) { s.Token.Network = "" },
	} {
		t.Run(name, func(t *testing.T) {
			sig := good
			mutate(&sig)
			assert.False(t, sig.Valid())
		})
	}
}

func TestNewTradeIntent(t *testing.T) {
	intent := NewTradeIntent(SideBuy, sample, 2.0, 5, "copy_threshold")
	assert.NotEmpty(t, intent.ID)
	assert.Equal(t, SideBuy, intent.Side)
	assert.False(t, intent.CreatedAt.IsZero())

	other := NewTradeIntent(SideSell, sample, 2.0, 5, "stop_loss")
	assert.NotEqual(t, intent.ID, other.ID)
}

func TestMarketCapUpdateKey(t *testing.T) {
	upd := MarketCapUpdate{Network: "solana", Address: "0xabc", MarketCap: 100}
	assert.Equal(t, TokenKey{Address: "0xabc", Network: "solana"}, upd.Key())
}
