package hub

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/DoyleJ11/tourney/internal/logging"
	"github.com/DoyleJ11/tourney/internal/lobby"
	"github.com/DoyleJ11/tourney/internal/tournament"
)

var ErrCodeTaken = errors.New("room code already in use")
var ErrClosed = errors.New("hub closed")

type HubMsg interface{ isHubMsg() }

// CreateLobby starts a lobby for State under State.ID. It fails with
// ErrCodeTaken when the code already has a lobby.
type CreateLobby struct {
	State tournament.State
	Reply chan CreateResult
}

type CreateResult struct {
	Lobby *lobby.Lobby
	Err   error
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

type RemoveLobby struct {
	Code string
}

type ListLobbies struct {
	Reply chan []string
}

type ShutdownHub struct{}

func (CreateLobby) isHubMsg() {}
func (GetLobby) isHubMsg()    {}
func (RemoveLobby) isHubMsg() {}
func (ListLobbies) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	logger  *zap.SugaredLogger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewHub(parent context.Context) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		logger:  logging.FromContext(parent).Named("hub"),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				code := msg.State.ID
				if h.lobbies[code] != nil {
					msg.Reply <- CreateResult{Err: fmt.Errorf("%w: %s", ErrCodeTaken, code)}
					break
				}
				lb := lobby.NewLobby(h.ctx, msg.State, lobby.WithLogger(h.logger))
				h.lobbies[code] = lb
				go h.reap(code, lb)
				h.logger.Infow("lobby created", "code", code, "creator", msg.State.CreatorID)
				msg.Reply <- CreateResult{Lobby: lb}

			case GetLobby:
				msg.Reply <- h.lobbies[msg.Code] // May be nil

			case RemoveLobby:
				if lb := h.lobbies[msg.Code]; lb != nil {
					lb.Close()
					delete(h.lobbies, msg.Code)
					h.logger.Infow("lobby removed", "code", msg.Code)
				}

			case ListLobbies:
				codes := make([]string, 0, len(h.lobbies))
				for code := range h.lobbies {
					codes = append(codes, code)
				}
				sort.Strings(codes)
				msg.Reply <- codes

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

// reap drops a lobby from the registry once its loop has exited on its own.
func (h *Hub) reap(code string, lb *lobby.Lobby) {
	select {
	case <-lb.Done():
	case <-h.ctx.Done():
		return
	}
	select {
	case h.inbox <- RemoveLobby{Code: code}:
	case <-h.ctx.Done():
	}
}

func (h *Hub) shutdown() {
	for _, lb := range h.lobbies {
		lb.Close()
	}
	clear(h.lobbies)
	h.cancel()
}

func (h *Hub) send(ctx context.Context, m HubMsg) error {
	select {
	case <-h.done:
		return ErrClosed
	default:
	}
	select {
	case h.inbox <- m:
		return nil
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Create registers a lobby for s under s.ID.
func (h *Hub) Create(ctx context.Context, s tournament.State) (*lobby.Lobby, error) {
	reply := make(chan CreateResult, 1)
	if err := h.send(ctx, CreateLobby{State: s, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case res := <-reply:
		return res.Lobby, res.Err
	case <-h.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get returns the lobby for code or tournament.ErrNotFound.
func (h *Hub) Get(ctx context.Context, code string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	if err := h.send(ctx, GetLobby{Code: code, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case lb := <-reply:
		if lb == nil {
			return nil, fmt.Errorf("%w: room %s", tournament.ErrNotFound, code)
		}
		return lb, nil
	case <-h.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) List(ctx context.Context) ([]string, error) {
	reply := make(chan []string, 1)
	if err := h.send(ctx, ListLobbies{Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case codes := <-reply:
		return codes, nil
	case <-h.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) Remove(ctx context.Context, code string) error {
	return h.send(ctx, RemoveLobby{Code: code})
}
