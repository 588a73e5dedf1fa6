package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alanyoungcy/copybot/internal/bus"
	"github.com/alanyoungcy/copybot/internal/domain"
)

// ReplayFeed reads JSON-lines signals from a file and publishes them in
// order, one per configured delay. Useful for dry runs and parameter sweeps
// without a live signal source.
type ReplayFeed struct {
	path   string
	delay  time.Duration
	bus    *bus.Bus
	logger *slog.Logger
}

// NewReplayFeed creates a replay feed over the given JSONL file.
func NewReplayFeed(path string, delay time.Duration, b *bus.Bus, logger *slog.Logger) *ReplayFeed {
	return &ReplayFeed{
		path:   path,
		delay:  delay,
		bus:    b,
		logger: logger.With(slog.String("component", "replay_feed")),
	}
}

// Run publishes every signal in the file, then returns. Publishing awaits
// each event's handlers before reading the next line, so per-bot delivery
// order matches file order.
func (f *ReplayFeed) Run(ctx context.Context) error {
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("replay: open %s: %w", f.path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	line := 0
	published := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var sig domain.Signal
		if err := json.Unmarshal([]byte(text), &sig); err != nil {
			f.logger.Warn("skipping malformed line",
				slog.Int("line", line),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !sig.Valid() {
			f.logger.Warn("skipping incomplete signal", slog.Int("line", line))
			continue
		}

		if err := f.bus.Publish(ctx, domain.Event{Kind: domain.EventSignal, Payload: sig}); err != nil {
			f.logger.Warn("signal handlers reported errors",
				slog.Int("line", line),
				slog.String("error", err.Error()),
			)
		}
		published++

		if f.delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(f.delay):
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("replay: read %s: %w", f.path, err)
	}

	f.logger.Info("replay complete",
		slog.Int("lines", line),
		slog.Int("signals", published),
	)
	return nil
}
