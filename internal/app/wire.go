package app

import (
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/copybot/internal/bot"
	"github.com/alanyoungcy/copybot/internal/bus"
	"github.com/alanyoungcy/copybot/internal/config"
	"github.com/alanyoungcy/copybot/internal/domain"
	"github.com/alanyoungcy/copybot/internal/marketdata"
	"github.com/alanyoungcy/copybot/internal/notify"
	"github.com/alanyoungcy/copybot/internal/platform/dexscreener"
)

// Deps holds the wired dependency graph shared by all operating modes.
type Deps struct {
	Registry *domain.TokenRegistry
	Bus      *bus.Bus
	Poller   *marketdata.Poller
	Manager  *bot.Manager
	Notifier *notify.Notifier
}

// Wire constructs the single bus, registry, poller, manager, and all
// configured bots, and records each bot's watched-token subscriptions.
func Wire(cfg *config.Config, logger *slog.Logger) (*Deps, error) {
	registry := domain.NewTokenRegistry()
	eventBus := bus.New(logger)

	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	notifier := notify.New(senders, cfg.Notify.Events, logger)

	client := dexscreener.NewClient(
		dexscreener.WithBaseURL(cfg.DexScreener.BaseURL),
		dexscreener.WithTimeout(cfg.DexScreener.Timeout.Duration),
	)
	poller := marketdata.NewPoller(client, eventBus, cfg.DexScreener.PollInterval.Duration, logger)
	manager := bot.NewManager(eventBus, poller, logger)

	for _, bc := range cfg.Bots {
		baseToken := domain.Token{
			Address:   bc.BaseToken.Address,
			Network:   bc.BaseToken.Network,
			Name:      bc.BaseToken.Name,
			Symbol:    bc.BaseToken.Symbol,
			Price:     bc.BaseToken.Price,
			MarketCap: 0,
		}
		b, err := bot.NewBuilder(bc.Name, eventBus, registry, logger).
			WithInitialBalance(bc.InitialBalance).
			WithBaseToken(baseToken).
			WithTraderWeights(bc.TraderWeights).
			WithThresholds(bc.BuyThreshold, bc.SellThreshold).
			WithSizing(bc.MaxMarketCap, bc.MaxQuantity).
			WithStopLoss(bc.StopLossPct).
			WithNotifier(notifier).
			Build()
		if err != nil {
			return nil, fmt.Errorf("wire bot %q: %w", bc.Name, err)
		}
		if err := manager.RegisterBot(b); err != nil {
			return nil, fmt.Errorf("wire bot %q: %w", bc.Name, err)
		}
		for _, t := range bc.Tokens {
			manager.SubscribeToken(bc.Name, t.Network, t.Address)
		}
	}

	return &Deps{
		Registry: registry,
		Bus:      eventBus,
		Poller:   poller,
		Manager:  manager,
		Notifier: notifier,
	}, nil
}
