// Package marketdata runs the background polling loop that turns the
// subscribed token set into MARKET_CAP_UPDATE events on the bus.
package marketdata

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/copybot/internal/bus"
	"github.com/alanyoungcy/copybot/internal/domain"
	"github.com/alanyoungcy/copybot/internal/platform/dexscreener"
)

// PairFetcher fetches pair data for up to dexscreener.MaxAddressesPerRequest
// addresses on one network. The dexscreener client implements it.
type PairFetcher interface {
	GetPairsByToken(ctx context.Context, network string, addresses []string) ([]dexscreener.Pair, error)
}

// Poller batches the subscribed (network, address) pairs, fetches market
// data for all batches concurrently each cycle, and publishes one market-cap
// update per returned pair. Cycles are spaced a fixed interval apart,
// measured from cycle completion; a slow cycle starts its successor
// immediately after finishing.
type Poller struct {
	fetcher  PairFetcher
	bus      *bus.Bus
	interval time.Duration
	logger   *slog.Logger

	mu         sync.Mutex
	subscribed map[domain.TokenKey]struct{}
}

// NewPoller creates a poller publishing on the given bus.
func NewPoller(fetcher PairFetcher, b *bus.Bus, interval time.Duration, logger *slog.Logger) *Poller {
	return &Poller{
		fetcher:    fetcher,
		bus:        b,
		interval:   interval,
		logger:     logger.With(slog.String("component", "marketdata_poller")),
		subscribed: make(map[domain.TokenKey]struct{}),
	}
}

// Subscribe starts tracking a (network, address) pair.
func (p *Poller) Subscribe(network, address string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribed[domain.TokenKey{Address: address, Network: network}] = struct{}{}
}

// Unsubscribe stops tracking a pair and purges its internal state.
func (p *Poller) Unsubscribe(network, address string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.subscribed, domain.TokenKey{Address: address, Network: network})
}

// IsSubscribed reports whether the pair is currently tracked.
func (p *Poller) IsSubscribed(network, address string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.subscribed[domain.TokenKey{Address: address, Network: network}]
	return ok
}

// Run executes poll cycles until ctx is cancelled. It returns only after
// the in-flight cycle has fully completed or been cancelled, so no orphaned
// work survives a stop.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("market data poller started", slog.Duration("interval", p.interval))
	defer p.logger.Info("market data poller stopped")

	for {
		p.pollOnce(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.interval):
		}
	}
}

// pollOnce runs a single cycle: group by network, chunk into API-sized
// batches, fetch all batches concurrently, publish updates. A failing batch
// is logged and isolated; it never blocks or cancels the others.
func (p *Poller) pollOnce(ctx context.Context) {
	byNetwork := p.snapshotByNetwork()
	if len(byNetwork) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	batches := 0
	for network, addresses := range byNetwork {
		network := network
		for start := 0; start < len(addresses); start += dexscreener.MaxAddressesPerRequest {
			end := min(start+dexscreener.MaxAddressesPerRequest, len(addresses))
			batch := addresses[start:end]
			batches++
			g.Go(func() error {
				p.processBatch(gctx, network, batch)
				return nil
			})
		}
	}
	_ = g.Wait()

	p.logger.Debug("poll cycle complete",
		slog.Int("networks", len(byNetwork)),
		slog.Int("batches", batches),
	)
}

// snapshotByNetwork copies the subscription set grouped by network so the
// cycle runs against a stable view.
func (p *Poller) snapshotByNetwork() map[string][]string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string][]string)
	for key := range p.subscribed {
		out[key.Network] = append(out[key.Network], key.Address)
	}
	return out
}

// processBatch fetches one batch and publishes a market-cap update per
// returned pair. Fetch errors are batch-local: logged and dropped.
func (p *Poller) processBatch(ctx context.Context, network string, addresses []string) {
	pairs, err := p.fetcher.GetPairsByToken(ctx, network, addresses)
	if err != nil {
		p.logger.Error("batch fetch failed",
			slog.String("network", network),
			slog.Int("addresses", len(addresses)),
			slog.String("error", err.Error()),
		)
		return
	}

	for _, pair := range pairs {
		if pair.BaseToken.Address == "" {
			continue
		}
		marketCap := pair.EffectiveMarketCap()
		if marketCap <= 0 {
			continue
		}
		event := domain.Event{
			Kind: domain.EventMarketCapUpdate,
			Payload: domain.MarketCapUpdate{
				Network:   network,
				Address:   pair.BaseToken.Address,
				MarketCap: marketCap,
			},
		}
		if err := p.bus.Publish(ctx, event); err != nil {
			p.logger.Warn("market cap update handlers reported errors",
				slog.String("address", pair.BaseToken.Address),
				slog.String("error", err.Error()),
			)
		}
	}
}
