package docstore

import (
	"context"
	"sync"
)

// Feed is an in-process Notifier, keyed by document id. Signals to a slow
// listener coalesce into one.
type Feed struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[string]map[chan struct{}]struct{})}
}

func (f *Feed) Listen(ctx context.Context, id string) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	f.mu.Lock()
	if f.subs[id] == nil {
		f.subs[id] = make(map[chan struct{}]struct{})
	}
	f.subs[id][ch] = struct{}{}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs[id], ch)
		if len(f.subs[id]) == 0 {
			delete(f.subs, id)
		}
		close(ch)
		f.mu.Unlock()
	}()
	return ch, nil
}

func (f *Feed) Notify(_ context.Context, id string) error {
	f.mu.Lock()
	for ch := range f.subs[id] {
		select {
		case ch <- struct{}{}:
		default:
			// a signal is already pending
		}
	}
	f.mu.Unlock()
	return nil
}

// Listeners reports how many listeners id has.
func (f *Feed) Listeners(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[id])
}
