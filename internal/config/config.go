// Package config defines the copybot configuration and validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by COPYBOT_* environment
// variables.
type Config struct {
	Feed        FeedConfig        `toml:"feed"`
	DexScreener DexScreenerConfig `toml:"dexscreener"`
	Notify      NotifyConfig      `toml:"notify"`
	Bots        []BotConfig       `toml:"bots"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// FeedConfig selects where trade signals come from.
type FeedConfig struct {
	// WSURL is the WebSocket endpoint streaming parsed trade signals
	// (trade mode).
	WSURL string `toml:"ws_url"`
	// ReplayPath is a JSON-lines signal file (replay mode).
	ReplayPath string `toml:"replay_path"`
	// ReplayDelay spaces replayed signals apart.
	ReplayDelay duration `toml:"replay_delay"`
}

// DexScreenerConfig holds market-data polling parameters.
type DexScreenerConfig struct {
	BaseURL      string   `toml:"base_url"`
	Timeout      duration `toml:"timeout"`
	PollInterval duration `toml:"poll_interval"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// BotConfig configures one trading bot.
type BotConfig struct {
	Name           string             `toml:"name"`
	InitialBalance float64            `toml:"initial_balance"`
	BaseToken      BaseTokenConfig    `toml:"base_token"`
	TraderWeights  map[string]float64 `toml:"trader_weights"`
	BuyThreshold   float64            `toml:"buy_threshold"`
	SellThreshold  float64            `toml:"sell_threshold"`
	MaxMarketCap   float64            `toml:"max_market_cap"`
	MaxQuantity    float64            `toml:"max_quantity"`
	StopLossPct    float64            `toml:"stop_loss_pct"`
	// Tokens lists (network, address) pairs to watch for stop-loss market
	// data from startup. Positions opened later reuse the same table.
	Tokens []WatchedToken `toml:"tokens"`
}

// BaseTokenConfig identifies the token cost and proceeds are denominated in.
type BaseTokenConfig struct {
	Address string  `toml:"address"`
	Network string  `toml:"network"`
	Name    string  `toml:"name"`
	Symbol  string  `toml:"symbol"`
	Price   float64 `toml:"price"`
}

// WatchedToken is a (network, address) pair subscribed for market data.
type WatchedToken struct {
	Network string `toml:"network"`
	Address string `toml:"address"`
}

// duration wraps time.Duration so the TOML decoder accepts strings like
// "30s" or "5m".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Feed: FeedConfig{
			ReplayDelay: duration{0},
		},
		DexScreener: DexScreenerConfig{
			BaseURL:      "https://api.dexscreener.com",
			Timeout:      duration{10 * time.Second},
			PollInterval: duration{60 * time.Second},
		},
		Notify: NotifyConfig{
			Events: []string{"trade_executed", "stop_loss", "error"},
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":  true,
	"replay": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration and returns a combined error describing
// every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, replay)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	switch strings.ToLower(c.Mode) {
	case "trade":
		if c.Feed.WSURL == "" {
			errs = append(errs, "feed: ws_url must be set for trade mode")
		}
	case "replay":
		if c.Feed.ReplayPath == "" {
			errs = append(errs, "feed: replay_path must be set for replay mode")
		}
	}

	if c.DexScreener.BaseURL == "" {
		errs = append(errs, "dexscreener: base_url must not be empty")
	}
	if c.DexScreener.PollInterval.Duration <= 0 {
		errs = append(errs, "dexscreener: poll_interval must be positive")
	}
	if c.DexScreener.Timeout.Duration <= 0 {
		errs = append(errs, "dexscreener: timeout must be positive")
	}

	// Telegram credentials must come as a pair.
	tt := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tt != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(c.Bots) == 0 {
		errs = append(errs, "bots: at least one bot must be configured")
	}
	seen := make(map[string]bool, len(c.Bots))
	for i, b := range c.Bots {
		prefix := fmt.Sprintf("bots[%d]", i)
		if b.Name == "" {
			errs = append(errs, prefix+": name must not be empty")
		} else if seen[b.Name] {
			errs = append(errs, fmt.Sprintf("%s: duplicate bot name %q", prefix, b.Name))
		} else {
			seen[b.Name] = true
		}
		if b.InitialBalance < 0 {
			errs = append(errs, prefix+": initial_balance must not be negative")
		}
		if len(b.TraderWeights) == 0 {
			errs = append(errs, prefix+": trader_weights must not be empty")
		}
		for trader, w := range b.TraderWeights {
			if w <= 0 {
				errs = append(errs, fmt.Sprintf("%s: weight for trader %q must be positive", prefix, trader))
			}
		}
		if b.BuyThreshold <= 0 || b.SellThreshold <= 0 {
			errs = append(errs, prefix+": buy_threshold and sell_threshold must be positive")
		}
		if b.MaxMarketCap <= 0 {
			errs = append(errs, prefix+": max_market_cap must be positive")
		}
		if b.MaxQuantity <= 0 {
			errs = append(errs, prefix+": max_quantity must be positive")
		}
		if b.StopLossPct <= 0 || b.StopLossPct > 100 {
			errs = append(errs, prefix+": stop_loss_pct must be in (0, 100]")
		}
		if b.BaseToken.Address == "" || b.BaseToken.Network == "" {
			errs = append(errs, prefix+": base_token address and network must be set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
