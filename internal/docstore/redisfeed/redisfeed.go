// Package redisfeed is a docstore.Notifier over Redis pub/sub, so writers
// and subscribers in different processes see each other's changes.
package redisfeed

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "tourney:doc:"

type Feed struct {
	rdb    *redis.Client
	prefix string
}

type Option func(*Feed)

// WithPrefix namespaces the pub/sub channels, e.g. per test.
func WithPrefix(prefix string) Option { return func(f *Feed) { f.prefix = prefix } }

func New(rdb *redis.Client, opts ...Option) *Feed {
	f := &Feed{rdb: rdb, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Open parses rawURL and pings the server before returning the client.
func Open(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

func (f *Feed) channel(id string) string { return f.prefix + id }

func (f *Feed) Notify(ctx context.Context, id string) error {
	if err := f.rdb.Publish(ctx, f.channel(id), "changed").Err(); err != nil {
		return fmt.Errorf("publishing change of %s: %w", id, err)
	}
	return nil
}

// Listen returns once the subscription is confirmed by the server, so no
// Notify issued afterwards is missed.
func (f *Feed) Listen(ctx context.Context, id string) (<-chan struct{}, error) {
	ps := f.rdb.Subscribe(ctx, f.channel(id))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", id, err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

func (f *Feed) Check(ctx context.Context) error { return f.rdb.Ping(ctx).Err() }
