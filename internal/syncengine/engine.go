// Package syncengine is what a participant's UI talks to. It hides which
// transport carries the tournament and keeps the local lifecycle in step
// with the snapshots that arrive.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/DoyleJ11/tourney/internal/lifecycle"
	"github.com/DoyleJ11/tourney/internal/logging"
	"github.com/DoyleJ11/tourney/internal/tournament"
)

var ErrNotJoined = errors.New("join the tournament first")

// Transport is implemented by peer.Host, peer.Follower and
// replicated.Session.
type Transport interface {
	Join(ctx context.Context, name string) error
	Start(ctx context.Context, playerID string) error
	Submit(ctx context.Context, playerID, answer string, timeTakenMs int64) error
	Updates() <-chan tournament.State
	Err() error
	Close() error
}

type Engine struct {
	t            Transport
	logger       *zap.SugaredLogger
	onTransition func(lifecycle.Transition, tournament.State)

	mu    sync.Mutex
	me    string
	lc    *lifecycle.Controller
	state tournament.State
	have  bool

	ui chan tournament.State
}

type Option func(*Engine)

func WithClock(now lifecycle.Clock) Option {
	return func(e *Engine) { e.lc = lifecycle.NewController(e.me, now) }
}

func WithLogger(logger *zap.SugaredLogger) Option { return func(e *Engine) { e.logger = logger } }

// OnTransition is called from Run for every lifecycle change, after the
// snapshot that caused it is stored.
func OnTransition(fn func(lifecycle.Transition, tournament.State)) Option {
	return func(e *Engine) { e.onTransition = fn }
}

func New(t Transport, opts ...Option) *Engine {
	e := &Engine{
		t:      t,
		logger: logging.DefaultLogger(),
		lc:     lifecycle.NewController("", nil),
		ui:     make(chan tournament.State, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Join asks to enter under name. Blank names fail before anything is sent.
func (e *Engine) Join(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name is required", tournament.ErrValidation)
	}
	if err := e.t.Join(ctx, name); err != nil {
		return err
	}
	e.mu.Lock()
	e.me = name
	e.lc.SetPlayer(name)
	e.mu.Unlock()
	return nil
}

// Start begins the tournament if the local player created it.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	me, s, have := e.me, e.state, e.have
	e.mu.Unlock()
	if me == "" {
		return ErrNotJoined
	}
	if have {
		if err := lifecycle.CanStart(s, me); err != nil {
			return err
		}
	}
	return e.t.Start(ctx, me)
}

// Answer submits answer for the local player's current question, timed from
// when that question was shown.
func (e *Engine) Answer(ctx context.Context, answer string) error {
	e.mu.Lock()
	me := e.me
	elapsed := e.lc.ElapsedMs()
	e.mu.Unlock()
	if me == "" {
		return ErrNotJoined
	}
	return e.t.Submit(ctx, me, answer, elapsed)
}

// Run applies incoming snapshots until the transport ends or ctx is done.
// It returns the transport's terminal error, nil on a clean close.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.ui)
	updates := e.t.Updates()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-updates:
			if !ok {
				return e.t.Err()
			}
			e.apply(s)
		}
	}
}

func (e *Engine) apply(s tournament.State) {
	e.mu.Lock()
	transitions := e.lc.Observe(s)
	if len(transitions) == 0 && e.have && s.Status.Rank() < e.state.Status.Rank() {
		// stale snapshot
		e.mu.Unlock()
		return
	}
	e.state = s
	e.have = true
	e.mu.Unlock()

	for _, tr := range transitions {
		e.logger.Debugw("tournament transition", "tournament", s.ID, "from", tr.From, "to", tr.To)
		if e.onTransition != nil {
			e.onTransition(tr, s)
		}
	}

	// the UI only ever needs the newest snapshot
	select {
	case <-e.ui:
	default:
	}
	e.ui <- s
}

// Updates delivers the latest applied snapshot. It is closed when Run returns.
func (e *Engine) Updates() <-chan tournament.State { return e.ui }

func (e *Engine) State() (tournament.State, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.have
}

func (e *Engine) Me() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.me
}

// Status is the phase as the local lifecycle controller last saw it.
func (e *Engine) Status() tournament.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lc.Status()
}

func (e *Engine) Close() error { return e.t.Close() }
