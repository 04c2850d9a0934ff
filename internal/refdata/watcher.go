package refdata

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Refresher is anything holding a cached reference snapshot.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Watcher subscribes to the invalidation channel and refreshes the cached
// reference data when the administration side announces a change. Reference
// data is never mutated in place; a refresh swaps whole snapshots.
type Watcher struct {
	client     *redis.Client
	channel    string
	refreshers []Refresher
	logger     *slog.Logger
}

func NewWatcher(client *redis.Client, channel string, logger *slog.Logger, refreshers ...Refresher) *Watcher {
	return &Watcher{
		client:     client,
		channel:    channel,
		refreshers: refreshers,
		logger:     logger,
	}
}

// Run blocks on the subscription until ctx is cancelled. A failed refresh is
// logged and retried on the next signal; the previous snapshot stays live.
func (w *Watcher) Run(ctx context.Context) error {
	sub := w.client.Subscribe(ctx, w.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			w.refreshAll(ctx, msg.Payload)
		}
	}
}

func (w *Watcher) refreshAll(ctx context.Context, payload string) {
	for _, r := range w.refreshers {
		if err := r.Refresh(ctx); err != nil {
			if w.logger != nil {
				w.logger.ErrorContext(ctx, "reference data refresh failed",
					"channel", w.channel,
					"payload", payload,
					"error", err,
				)
			}
			continue
		}
	}
	if w.logger != nil {
		w.logger.InfoContext(ctx, "reference data invalidation handled", "payload", payload)
	}
}
