// Package peer holds the two ends of the host-authoritative transport: the
// Host runs the lobby in its own process and plays through it, a Follower
// plays over a websocket.
package peer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tourney/internal/hub"
	"github.com/DoyleJ11/tourney/internal/lobby"
	"github.com/DoyleJ11/tourney/internal/logging"
	"github.com/DoyleJ11/tourney/internal/protocol"
	"github.com/DoyleJ11/tourney/internal/tournament"
)

var ErrNotHostName = fmt.Errorf("%w: the host plays under the creator name", tournament.ErrValidation)

// Host is the authority. Its own participant is an in-process connection
// to the lobby, so it sees exactly what followers see.
type Host struct {
	hub     *hub.Hub
	lobby   *lobby.Lobby
	code    string
	creator string
	connID  string
	stream  *stream
	cancel  context.CancelFunc
	logger  *zap.SugaredLogger

	closeOnce sync.Once
	closed    chan struct{}
}

// NewHost registers a new tournament with h under a fresh room code and
// connects the creator to it.
func NewHost(ctx context.Context, h *hub.Hub, creator string, gameType tournament.GameType, questions []tournament.Question) (*Host, error) {
	creator = strings.TrimSpace(creator)
	var (
		lb  *lobby.Lobby
		err error
	)
	for attempt := 0; attempt < 5; attempt++ {
		code, genErr := hub.GenerateCode()
		if genErr != nil {
			return nil, fmt.Errorf("generating room code: %w", genErr)
		}
		s, newErr := tournament.New(code, gameType, creator, questions, time.Now())
		if newErr != nil {
			return nil, newErr
		}
		lb, err = h.Create(ctx, s)
		if !errors.Is(err, hub.ErrCodeTaken) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: opening lobby: %v", tournament.ErrConnection, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	host := &Host{
		hub:     h,
		lobby:   lb,
		code:    lb.ID(),
		creator: creator,
		connID:  "host-" + uuid.NewString(),
		stream:  newStream(),
		cancel:  cancel,
		logger:  logging.FromContext(ctx).With("code", lb.ID()),
		closed:  make(chan struct{}),
	}

	out := make(chan protocol.Message, 64)
	if err := lb.Send(ctx, lobby.Connect{ConnID: host.connID, PlayerID: creator, Outbox: out}); err != nil {
		cancel()
		_ = h.Remove(context.Background(), host.code)
		return nil, fmt.Errorf("%w: connecting host: %v", tournament.ErrConnection, err)
	}
	go host.stream.run(runCtx, out, host.cause)

	host.logger.Infow("hosting tournament", "creator", creator, "questions", len(questions))
	return host, nil
}

func (h *Host) cause() error {
	select {
	case <-h.closed:
		return nil
	default:
		return fmt.Errorf("%w: lobby closed", tournament.ErrConnection)
	}
}

// Code is the room code followers dial, and the tournament id.
func (h *Host) Code() string { return h.code }

func (h *Host) Creator() string { return h.creator }

// Join is a no-op for the creator, who is seeded into the tournament.
func (h *Host) Join(_ context.Context, name string) error {
	if strings.TrimSpace(name) != h.creator {
		return ErrNotHostName
	}
	return nil
}

func (h *Host) Start(ctx context.Context, playerID string) error {
	return h.send(ctx, protocol.StartRequest{PlayerID: playerID})
}

func (h *Host) Submit(ctx context.Context, playerID, answer string, timeTakenMs int64) error {
	return h.send(ctx, protocol.SubmitAnswer{PlayerID: playerID, Answer: answer, TimeTakenMs: timeTakenMs})
}

func (h *Host) Chat(ctx context.Context, text string) error {
	return h.send(ctx, protocol.ChatMessage{Message: text})
}

// send goes through the same mutation path as a follower's message but gets
// the verdict back directly.
func (h *Host) send(ctx context.Context, m protocol.Message) error {
	reply := make(chan error, 1)
	if err := h.lobby.Send(ctx, lobby.FromPeer{ConnID: h.connID, Msg: m, Reply: reply}); err != nil {
		return fmt.Errorf("%w: %v", tournament.ErrConnection, err)
	}
	select {
	case err := <-reply:
		return err
	case <-h.lobby.Done():
		return fmt.Errorf("%w: lobby closed", tournament.ErrConnection)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot reads the authoritative state.
func (h *Host) Snapshot(ctx context.Context) (lobby.View, error) {
	return h.lobby.View(ctx)
}

func (h *Host) Updates() <-chan tournament.State { return h.stream.updates }

// Events carries chat messages and rejection notices.
func (h *Host) Events() <-chan protocol.Message { return h.stream.events }

func (h *Host) Err() error { return h.stream.Err() }

// Close ends the tournament for everyone: the lobby shuts down and every
// follower sees its connection drop.
func (h *Host) Close() error {
	h.closeOnce.Do(func() {
		close(h.closed)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := h.hub.Remove(ctx, h.code); err != nil {
			h.lobby.Close()
		}
		h.cancel()
		h.logger.Infow("stopped hosting")
	})
	return nil
}
