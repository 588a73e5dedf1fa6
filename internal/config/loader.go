package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies COPYBOT_* environment variable overrides, and
// returns the final Config. The caller should invoke Config.Validate()
// afterwards.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env if present so secrets can live outside the TOML file.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known COPYBOT_* environment variables and
// overwrites the corresponding fields when set. This lets operators inject
// secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "COPYBOT_MODE")
	setStr(&cfg.LogLevel, "COPYBOT_LOG_LEVEL")

	setStr(&cfg.Feed.WSURL, "COPYBOT_FEED_WS_URL")
	setStr(&cfg.Feed.ReplayPath, "COPYBOT_FEED_REPLAY_PATH")

	setStr(&cfg.DexScreener.BaseURL, "COPYBOT_DEXSCREENER_BASE_URL")
	setDur(&cfg.DexScreener.PollInterval, "COPYBOT_DEXSCREENER_POLL_INTERVAL")
	setDur(&cfg.DexScreener.Timeout, "COPYBOT_DEXSCREENER_TIMEOUT")

	setStr(&cfg.Notify.TelegramToken, "COPYBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "COPYBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "COPYBOT_NOTIFY_DISCORD_WEBHOOK_URL")
}

// setStr assigns the environment variable to dst when it is non-empty.
func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setDur parses the environment variable as a duration when set; invalid
// values are ignored so a typo cannot zero out a default.
func setDur(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
