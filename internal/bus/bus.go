// Package bus implements the in-process publish/subscribe core that connects
// the signal feed, the market data poller, and the bots. One Bus instance is
// constructed at startup and injected into every component that needs it.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/copybot/internal/domain"
)

// Handler processes a delivered event. A handler error is reported to the
// publisher in aggregate but never prevents delivery to other handlers.
type Handler func(ctx context.Context, event domain.Event) error

// Subscription identifies a single registration on the bus. Function values
// are not comparable in Go, so Subscribe hands back a token that Unsubscribe
// uses to remove exactly that registration.
type Subscription struct {
	kind domain.EventKind
	id   uint64
}

// Kind returns the event kind the subscription is registered for.
func (s *Subscription) Kind() domain.EventKind {
	return s.kind
}

// Bus delivers typed events to all current subscribers for the event's kind.
// It is safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[domain.EventKind]map[uint64]Handler
	logger *slog.Logger
}

// New returns an empty Bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[domain.EventKind]map[uint64]Handler),
		logger: logger.With(slog.String("component", "event_bus")),
	}
}

// Subscribe registers a handler for an event kind and returns the
// subscription token needed to remove it again.
func (b *Bus) Subscribe(kind domain.EventKind, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	if b.subs[kind] == nil {
		b.subs[kind] = make(map[uint64]Handler)
	}
	b.subs[kind][b.nextID] = handler

	b.logger.Debug("subscribed", slog.String("kind", string(kind)), slog.Uint64("id", b.nextID))
	return &Subscription{kind: kind, id: b.nextID}
}

// Unsubscribe removes the registration identified by sub. Removing an
// already-removed subscription is a no-op.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if handlers, ok := b.subs[sub.kind]; ok {
		delete(handlers, sub.id)
		if len(handlers) == 0 {
			delete(b.subs, sub.kind)
		}
		b.logger.Debug("unsubscribed", slog.String("kind", string(sub.kind)), slog.Uint64("id", sub.id))
	}
}

// SubscriberCount returns the number of handlers registered for kind.
func (b *Bus) SubscriberCount(kind domain.EventKind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[kind])
}

// Publish delivers the event to every handler subscribed for its kind at
// call time. Handlers run concurrently and independently; a failing or slow
// handler does not delay or affect the others. Publish returns only once all
// handlers have finished, with their errors joined for the caller to log.
func (b *Bus) Publish(ctx context.Context, event domain.Event) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[event.Kind]))
	for _, h := range b.subs[event.Kind] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return nil
	}

	errs := make([]error, len(handlers))
	var wg sync.WaitGroup
	for i, h := range handlers {
		wg.Add(1)
		go func(i int, h Handler) {
			defer wg.Done()
			errs[i] = h(ctx, event)
		}(i, h)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("publish %s: %w", event.Kind, err)
	}
	return nil
}
