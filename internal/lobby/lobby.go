package lobby

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/DoyleJ11/tourney/internal/logging"
	"github.com/DoyleJ11/tourney/internal/protocol"
	"github.com/DoyleJ11/tourney/internal/tournament"
)

var ErrClosed = errors.New("lobby closed")

type Msg interface{ isLobbyMsg() }

// Connect registers a participant connection. PlayerID binds the connection
// to an existing player up front (the host's own connection); followers leave
// it empty and are bound by their JOIN_REQUEST.
type Connect struct {
	ConnID   string
	PlayerID string
	Outbox   chan protocol.Message
}

func (Connect) isLobbyMsg() {}

type Disconnect struct{ ConnID string }

func (Disconnect) isLobbyMsg() {}

// FromPeer hands the lobby one inbound message. With Reply set the outcome
// goes there instead of an ERROR frame to the connection; in-process
// participants use it to get rejections synchronously. Reply must have room
// for one value.
type FromPeer struct {
	ConnID string
	Msg    protocol.Message
	Reply  chan<- error
}

func (FromPeer) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type View struct {
	Version    int
	NumClients int
	State      tournament.State
	// connection id -> player key
	Bindings map[string]string
}

type Lobby struct {
	id      string
	inbox   chan Msg
	snap    Snapshot
	clients map[string]chan protocol.Message
	players map[string]string
	logger  *zap.SugaredLogger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

type Option func(*Lobby)

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(l *Lobby) { l.logger = logger }
}

func NewLobby(parent context.Context, initial tournament.State, opts ...Option) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	l := &Lobby{
		id:      initial.ID,
		inbox:   make(chan Msg, 64),
		snap:    Snapshot{Version: 0, State: initial},
		clients: make(map[string]chan protocol.Message),
		players: make(map[string]string),
		logger:  logging.FromContext(parent),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("tournament", initial.ID)

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Connect:
				l.clients[msg.ConnID] = msg.Outbox
				if msg.PlayerID != "" {
					l.players[msg.ConnID] = msg.PlayerID
				}
				// New connections start from the current snapshot.
				l.sendTo(msg.ConnID, l.snap.Update())

			case Disconnect:
				l.disconnect(msg.ConnID)

			case FromPeer:
				err := l.handle(msg.ConnID, msg.Msg)
				if msg.Reply != nil {
					select {
					case msg.Reply <- err:
					default:
						l.logger.Warnw("reply channel full, verdict dropped", "conn", msg.ConnID, "type", msg.Msg.Kind())
					}
				} else if err != nil {
					l.sendTo(msg.ConnID, protocol.Error{Reason: err.Error()})
				}

			case GetState:
				bindings := make(map[string]string, len(l.players))
				for c, p := range l.players {
					bindings[c] = p
				}
				msg.Reply <- View{
					Version:    l.snap.Version,
					NumClients: len(l.clients),
					State:      l.snap.State.Clone(),
					Bindings:   bindings,
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) handle(connID string, in protocol.Message) error {
	sender := l.players[connID]
	next, out, err := ApplyAndBroadcast(l.snap, sender, in)
	if err != nil {
		l.logger.Debugw("rejected message", "conn", connID, "player", sender, "type", in.Kind(), "error", err)
		return err
	}

	if join, ok := in.(protocol.JoinRequest); ok {
		l.players[connID] = strings.TrimSpace(join.Name)
		l.logger.Infow("player joined", "conn", connID, "player", l.players[connID])
	}
	l.snap = next
	l.broadcast(out)
	return nil
}

func (l *Lobby) disconnect(connID string) {
	if _, ok := l.clients[connID]; !ok {
		return
	}
	delete(l.clients, connID)

	player, bound := l.players[connID]
	delete(l.players, connID)
	if !bound {
		return
	}
	// A duplicate name may still be held by another live connection.
	for _, other := range l.players {
		if other == player {
			return
		}
	}

	_, newState, err := tournament.Apply(l.snap.State, tournament.Command{Type: tournament.CmdLeave, PlayerID: player})
	if err != nil {
		l.logger.Debugw("disconnect left state unchanged", "conn", connID, "player", player, "error", err)
		return
	}
	l.logger.Infow("player left", "conn", connID, "player", player)
	l.snap = Snapshot{Version: l.snap.Version + 1, State: newState}
	l.broadcast([]protocol.Message{l.snap.Update()})
}

func (l *Lobby) shutdown() {
	for id, ch := range l.clients {
		close(ch) // Tell client no more messages
		delete(l.clients, id)
	}
	clear(l.players)
	l.cancel()
}

// broadcast is best effort: a follower whose outbox is full misses the
// message and is not retried.
func (l *Lobby) broadcast(msgs []protocol.Message) {
	for _, m := range msgs {
		for id := range l.clients {
			l.sendTo(id, m)
		}
	}
}

func (l *Lobby) sendTo(connID string, m protocol.Message) {
	ch, ok := l.clients[connID]
	if !ok {
		return
	}
	select {
	case ch <- m:
	default:
		l.logger.Debugw("outbox full, message skipped", "conn", connID, "type", m.Kind())
	}
}

// Expose the inbox so tests or WS layer can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Done is closed once the lobby loop has exited.
func (l *Lobby) Done() <-chan struct{} { return l.done }

func (l *Lobby) ID() string { return l.id }

// Close stops the loop without going through the inbox. Outboxes are closed
// the same way as on Shutdown.
func (l *Lobby) Close() { l.cancel() }

// Send delivers m to the loop unless ctx ends or the lobby is gone first.
func (l *Lobby) Send(ctx context.Context, m Msg) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}
	select {
	case l.inbox <- m:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// View asks the loop for a consistent copy of its state.
func (l *Lobby) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := l.Send(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-l.done:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}
