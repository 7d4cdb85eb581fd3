package peer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/DoyleJ11/tourney/internal/protocol"
	"github.com/DoyleJ11/tourney/internal/tournament"
	"github.com/DoyleJ11/tourney/internal/ws"
)

// Follower plays through a host it reaches over a websocket. Requests are
// fire-and-forget: the host answers with the next snapshot, or with an
// ERROR frame that shows up on Events.
type Follower struct {
	conn   *ws.Conn
	code   string
	stream *stream
	cancel context.CancelFunc

	mu      sync.Mutex
	readErr error
	closed  bool
}

// Dial connects to room code on the server at baseURL.
func Dial(ctx context.Context, baseURL, code string) (*Follower, error) {
	conn, err := ws.Dial(ctx, baseURL, code)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	f := &Follower{
		conn:   conn,
		code:   strings.ToUpper(strings.TrimSpace(code)),
		stream: newStream(),
		cancel: cancel,
	}

	in := make(chan protocol.Message, 16)
	go f.read(runCtx, in)
	go f.stream.run(runCtx, in, f.cause)
	return f, nil
}

func (f *Follower) read(ctx context.Context, in chan<- protocol.Message) {
	defer close(in)
	for {
		m, err := f.conn.Receive(ctx)
		if err != nil {
			f.mu.Lock()
			f.readErr = err
			f.mu.Unlock()
			return
		}
		select {
		case in <- m:
		case <-ctx.Done():
			return
		}
	}
}

func (f *Follower) cause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	if f.readErr != nil && !errors.Is(f.readErr, tournament.ErrConnection) {
		return fmt.Errorf("%w: %v", tournament.ErrConnection, f.readErr)
	}
	return f.readErr
}

func (f *Follower) Code() string { return f.code }

func (f *Follower) Join(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name is required", tournament.ErrValidation)
	}
	return f.conn.Send(ctx, protocol.JoinRequest{Name: name})
}

func (f *Follower) Start(ctx context.Context, playerID string) error {
	return f.conn.Send(ctx, protocol.StartRequest{PlayerID: playerID})
}

func (f *Follower) Submit(ctx context.Context, playerID, answer string, timeTakenMs int64) error {
	return f.conn.Send(ctx, protocol.SubmitAnswer{PlayerID: playerID, Answer: answer, TimeTakenMs: timeTakenMs})
}

func (f *Follower) Chat(ctx context.Context, text string) error {
	return f.conn.Send(ctx, protocol.ChatMessage{Message: text})
}

func (f *Follower) Updates() <-chan tournament.State { return f.stream.updates }

// Events carries chat messages and rejection notices.
func (f *Follower) Events() <-chan protocol.Message { return f.stream.events }

// Err is nil after Close and tournament.ErrConnection when the host went
// away.
func (f *Follower) Err() error { return f.stream.Err() }

// Close leaves the tournament; the host drops this player.
func (f *Follower) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	err := f.conn.Close()
	f.cancel()
	return err
}
