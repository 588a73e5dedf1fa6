// Package feed ingests externally parsed trade signals and publishes them on
// the event bus. The chat-message parsing itself happens upstream; this
// package only consumes the structured signal schema.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/copybot/internal/bus"
	"github.com/alanyoungcy/copybot/internal/domain"
)

const (
	reconnectDelay   = 2 * time.Second
	handshakeTimeout = 15 * time.Second
	readLimit        = 1 << 20
)

// SignalWSFeed connects to a WebSocket endpoint that streams JSON-encoded
// trade signals and publishes each valid signal as a SIGNAL event. It
// reconnects with a fixed delay on disconnect.
type SignalWSFeed struct {
	wsURL  string
	bus    *bus.Bus
	logger *slog.Logger
}

// NewSignalWSFeed creates a feed reading from wsURL.
func NewSignalWSFeed(wsURL string, b *bus.Bus, logger *slog.Logger) *SignalWSFeed {
	return &SignalWSFeed{
		wsURL:  wsURL,
		bus:    b,
		logger: logger.With(slog.String("component", "signal_ws_feed")),
	}
}

// Run connects and pumps signals until ctx is cancelled.
func (f *SignalWSFeed) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("signal feed disconnected, reconnecting",
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (f *SignalWSFeed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	conn.SetReadLimit(readLimit)

	f.logger.Info("signal feed connected", slog.String("url", f.wsURL))

	// Unblock the read loop when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		f.publish(ctx, raw)
	}
}

// publish decodes one raw message and publishes it as a SIGNAL event.
// Malformed or incomplete messages are logged and dropped; handler errors
// have already been isolated per bot and are only logged here.
func (f *SignalWSFeed) publish(ctx context.Context, raw []byte) {
	var sig domain.Signal
	if err := json.Unmarshal(raw, &sig); err != nil {
		f.logger.Warn("dropping malformed signal", slog.String("error", err.Error()))
		return
	}
	if !sig.Valid() {
		f.logger.Warn("dropping incomplete signal", slog.String("trader", sig.Trader))
		return
	}

	if err := f.bus.Publish(ctx, domain.Event{Kind: domain.EventSignal, Payload: sig}); err != nil {
		f.logger.Warn("signal handlers reported errors",
			slog.String("trader", sig.Trader),
			slog.String("error", err.Error()),
		)
	}
	f.logger.Debug("signal published",
		slog.String("trader", sig.Trader),
		slog.String("side", string(sig.Side)),
		slog.String("symbol", sig.Token.Symbol),
	)
}
