package docstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

type Getter func(ctx context.Context, id string) (Document, error)

// Subscription streams document snapshots. C is closed when the
// subscription ends; Err then tells why (nil after the caller's ctx ended).
type Subscription struct {
	C <-chan Document

	mu  sync.Mutex
	err error
}

func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Watch is the subscription loop shared by every backend: it starts
// listening, sends the current document, then re-reads the document on each
// signal. A consumer that falls behind gets the latest revision only.
func Watch(ctx context.Context, get Getter, n Notifier, id string) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	signals, err := n.Listen(ctx, id)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("listening for %s: %w", id, err)
	}
	first, err := get(ctx, id)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan Document)
	sub := &Subscription{C: out}

	go func() {
		defer cancel()
		defer close(out)

		last := first.Revision
		pending := &first
		for {
			var send chan Document
			var next Document
			if pending != nil {
				send = out
				next = *pending
			}

			select {
			case <-ctx.Done():
				return

			case _, ok := <-signals:
				if !ok {
					if ctx.Err() == nil {
						sub.fail(errors.New("change feed closed"))
					}
					return
				}
				doc, err := get(ctx, id)
				if err != nil {
					if ctx.Err() == nil {
						sub.fail(err)
					}
					return
				}
				if doc.Revision > last {
					last = doc.Revision
					pending = &doc
				}

			case send <- next:
				pending = nil
			}
		}
	}()
	return sub, nil
}
