package peer

import (
	"context"
	"sync"

	"github.com/DoyleJ11/tourney/internal/protocol"
	"github.com/DoyleJ11/tourney/internal/tournament"
)

// stream turns inbound protocol messages into a snapshot channel. Snapshots
// coalesce: a slow reader gets the newest one. Chat and error frames go to
// events and are dropped when nobody keeps up.
type stream struct {
	updates chan tournament.State
	events  chan protocol.Message

	mu      sync.Mutex
	err     error
	version int
}

func newStream() *stream {
	return &stream{
		updates: make(chan tournament.State),
		events:  make(chan protocol.Message, 16),
		version: -1,
	}
}

// run consumes in until it is closed or ctx ends, then records the reason
// from cause and closes the output channels.
func (s *stream) run(ctx context.Context, in <-chan protocol.Message, cause func() error) {
	defer close(s.events)
	defer close(s.updates)

	var pending *tournament.State
	for {
		var out chan tournament.State
		var next tournament.State
		if pending != nil {
			out = s.updates
			next = *pending
		}

		select {
		case <-ctx.Done():
			return

		case m, ok := <-in:
			if !ok {
				if pending != nil {
					select {
					case s.updates <- *pending:
					case <-ctx.Done():
					}
				}
				s.mu.Lock()
				s.err = cause()
				s.mu.Unlock()
				return
			}
			switch m := m.(type) {
			case protocol.StateUpdate:
				if m.Version <= s.version {
					continue
				}
				s.version = m.Version
				st := m.State
				pending = &st
			case protocol.ChatMessage, protocol.Error:
				select {
				case s.events <- m:
				default:
				}
			}

		case out <- next:
			pending = nil
		}
	}
}

func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
