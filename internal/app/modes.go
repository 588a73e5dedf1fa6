package app

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/copybot/internal/feed"
)

// TradeMode runs the live signal feed and the market data poller until the
// context is cancelled.
func (a *App) TradeMode(ctx context.Context, deps *Deps) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("starting signal feed", slog.String("url", a.cfg.Feed.WSURL))
		err := feed.NewSignalWSFeed(a.cfg.Feed.WSURL, deps.Bus, a.logger).Run(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("signal feed: %w", err)
	})

	g.Go(func() error {
		a.logger.Info("starting market data poller")
		err := deps.Poller.Run(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("market data poller: %w", err)
	})

	return g.Wait()
}

// ReplayMode feeds recorded signals from a file while the poller runs, then
// logs each bot's final portfolio. The poller is stopped once the replay
// finishes.
func (a *App) ReplayMode(ctx context.Context, deps *Deps) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := deps.Poller.Run(gctx)
		if gctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("market data poller: %w", err)
	})

	g.Go(func() error {
		replay := feed.NewReplayFeed(a.cfg.Feed.ReplayPath, a.cfg.Feed.ReplayDelay.Duration, deps.Bus, a.logger)
		err := replay.Run(gctx)
		interrupted := gctx.Err() != nil
		cancel() // replay finished, wind down the poller
		if err != nil && !interrupted {
			return fmt.Errorf("replay feed: %w", err)
		}
		return nil
	})

	err := g.Wait()

	for _, name := range deps.Manager.BotNames() {
		b, ok := deps.Manager.GetBot(name)
		if !ok {
			continue
		}
		for key, qty := range b.Ledger().Snapshot() {
			a.logger.Info("final position",
				slog.String("bot", name),
				slog.String("token", key.String()),
				slog.Float64("quantity", qty),
			)
		}
	}
	return err
}
