package replicated

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/DoyleJ11/tourney/internal/tournament"
)

// Stream is a decoded subscription to one tournament document.
type Stream struct {
	C <-chan tournament.State

	mu  sync.Mutex
	err error
}

// Err is set once C is closed: nil when the caller's context ended,
// tournament.ErrConnection when the subscription failed.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (c *Client) Watch(ctx context.Context, id string) (*Stream, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	sub, err := c.store.Subscribe(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}

	out := make(chan tournament.State)
	st := &Stream{C: out}
	go func() {
		defer close(out)
		for doc := range sub.C {
			s, err := decode(doc)
			if err != nil {
				c.logger.Warnw("skipping undecodable snapshot", "tournament", id, "revision", doc.Revision, "error", err)
				continue
			}
			select {
			case out <- s:
			case <-ctx.Done():
				return
			}
		}
		if err := sub.Err(); err != nil {
			st.mu.Lock()
			st.err = fmt.Errorf("%w: watching %s: %v", tournament.ErrConnection, id, err)
			st.mu.Unlock()
		}
	}()
	return st, nil
}

// Session is one participant's view of a stored tournament. It satisfies
// the sync engine's transport.
type Session struct {
	client *Client
	id     string
	stream *Stream
	cancel context.CancelFunc
}

// Open starts watching tournament id.
func (c *Client) Open(ctx context.Context, id string) (*Session, error) {
	ctx, cancel := context.WithCancel(ctx)
	st, err := c.Watch(ctx, id)
	if err != nil {
		cancel()
		return nil, err
	}
	return &Session{client: c, id: id, stream: st, cancel: cancel}, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Join(ctx context.Context, name string) error {
	_, err := s.client.Join(ctx, s.id, name)
	return err
}

func (s *Session) Start(ctx context.Context, playerID string) error {
	_, err := s.client.Start(ctx, s.id, playerID)
	return err
}

func (s *Session) Submit(ctx context.Context, playerID, answer string, timeTakenMs int64) error {
	_, err := s.client.SubmitAnswer(ctx, s.id, playerID, answer, timeTakenMs)
	return err
}

// Leave drops playerID from a tournament that has not finished.
func (s *Session) Leave(ctx context.Context, playerID string) error {
	_, err := s.client.Leave(ctx, s.id, playerID)
	if errors.Is(err, tournament.ErrTournamentFinished) {
		return nil
	}
	return err
}

func (s *Session) Updates() <-chan tournament.State { return s.stream.C }

func (s *Session) Err() error { return s.stream.Err() }

func (s *Session) Close() error {
	s.cancel()
	return nil
}
