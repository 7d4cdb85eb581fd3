// Package replicated plays a tournament through a shared docstore.Store:
// every participant writes field updates to one document and watches it for
// the merged result.
package replicated

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/tourney/internal/docstore"
	"github.com/DoyleJ11/tourney/internal/lifecycle"
	"github.com/DoyleJ11/tourney/internal/logging"
	"github.com/DoyleJ11/tourney/internal/tournament"
)

// DefaultLobbyLimit caps discovery results.
const DefaultLobbyLimit = 20

type Client struct {
	store  docstore.Store
	now    func() time.Time
	logger *zap.SugaredLogger
}

type Option func(*Client)

func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

func WithLogger(logger *zap.SugaredLogger) Option { return func(c *Client) { c.logger = logger } }

func NewClient(store docstore.Store, opts ...Option) *Client {
	c := &Client{store: store, now: time.Now, logger: logging.DefaultLogger()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create writes a new tournament with the creator as its only player. The
// store assigns the id.
func (c *Client) Create(ctx context.Context, creator string, gameType tournament.GameType, questions []tournament.Question) (tournament.State, error) {
	s, err := tournament.New("", gameType, strings.TrimSpace(creator), questions, c.now())
	if err != nil {
		return tournament.State{}, err
	}
	data, err := docstore.From(s)
	if err != nil {
		return tournament.State{}, fmt.Errorf("encoding tournament: %w", err)
	}
	doc, err := c.store.Create(ctx, data)
	if err != nil {
		return tournament.State{}, fmt.Errorf("%w: creating tournament: %v", tournament.ErrConnection, err)
	}
	c.logger.Infow("tournament created", "tournament", doc.ID, "creator", s.CreatorID)
	return decode(doc)
}

func (c *Client) Get(ctx context.Context, id string) (tournament.State, error) {
	if err := requireID(id); err != nil {
		return tournament.State{}, err
	}
	doc, err := c.store.Get(ctx, id)
	if err != nil {
		return tournament.State{}, storeErr(err)
	}
	return decode(doc)
}

// Join adds name to a waiting tournament. A name already present is reset.
func (c *Client) Join(ctx context.Context, id, name string) (tournament.State, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return tournament.State{}, fmt.Errorf("%w: name is required", tournament.ErrValidation)
	}
	if err := requireID(id); err != nil {
		return tournament.State{}, err
	}
	return c.apply(ctx, id, tournament.Command{Type: tournament.CmdJoin, PlayerID: name}, diff)
}

func (c *Client) Start(ctx context.Context, id, playerID string) (tournament.State, error) {
	return c.apply(ctx, id, tournament.Command{Type: tournament.CmdStart, PlayerID: playerID}, diff)
}

// SubmitAnswer writes only the answering player's score, index and finished
// flag, then runs the finish check when it is due.
func (c *Client) SubmitAnswer(ctx context.Context, id, playerID, answer string, timeTakenMs int64) (tournament.State, error) {
	s, err := c.apply(ctx, id, tournament.Command{
		Type:        tournament.CmdSubmitAnswer,
		PlayerID:    playerID,
		Answer:      answer,
		TimeTakenMs: timeTakenMs,
	}, playerFields(playerID))
	if err != nil {
		return s, err
	}
	if lifecycle.ShouldFinish(s) {
		return c.CheckFinished(ctx, id)
	}
	return s, nil
}

// Leave removes a player. The finish check runs in the same write.
func (c *Client) Leave(ctx context.Context, id, playerID string) (tournament.State, error) {
	return c.apply(ctx, id, tournament.Command{Type: tournament.CmdLeave, PlayerID: playerID}, diff)
}

// CheckFinished moves the tournament to finished if every player is done.
// Running it any number of times, from any participant, is safe.
func (c *Client) CheckFinished(ctx context.Context, id string) (tournament.State, error) {
	if err := requireID(id); err != nil {
		return tournament.State{}, err
	}
	var decodeErr error
	doc, err := c.store.Update(ctx, id, func(cur docstore.Document) ([]docstore.FieldUpdate, error) {
		s, err := decode(cur)
		if err != nil {
			decodeErr = err
			return nil, err
		}
		if _, ok := tournament.CheckFinished(s); !ok {
			return nil, nil
		}
		return []docstore.FieldUpdate{docstore.Set(docstore.P("status"), tournament.StatusFinished)}, nil
	})
	if err != nil {
		if decodeErr != nil {
			return tournament.State{}, decodeErr
		}
		return tournament.State{}, storeErr(err)
	}
	return decode(doc)
}

// ListWaiting lists joinable tournaments, newest first.
func (c *Client) ListWaiting(ctx context.Context, limit int) ([]tournament.State, error) {
	if limit <= 0 {
		limit = DefaultLobbyLimit
	}
	docs, err := c.store.ListByStatus(ctx, string(tournament.StatusWaiting), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: listing tournaments: %v", tournament.ErrConnection, err)
	}
	out := make([]tournament.State, 0, len(docs))
	for _, doc := range docs {
		s, err := decode(doc)
		if err != nil {
			c.logger.Warnw("skipping undecodable tournament", "tournament", doc.ID, "error", err)
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

type diffFunc func(prev, next tournament.State) []docstore.FieldUpdate

// apply runs cmd through tournament.Apply against the document as read
// inside the store transaction and writes back the fields that changed.
func (c *Client) apply(ctx context.Context, id string, cmd tournament.Command, fields diffFunc) (tournament.State, error) {
	if err := requireID(id); err != nil {
		return tournament.State{}, err
	}

	var applyErr error
	doc, err := c.store.Update(ctx, id, func(cur docstore.Document) ([]docstore.FieldUpdate, error) {
		s, err := decode(cur)
		if err != nil {
			applyErr = err
			return nil, err
		}
		_, next, err := tournament.Apply(s, cmd)
		if err != nil {
			applyErr = err
			return nil, err
		}
		return fields(s, next), nil
	})
	if err != nil {
		if applyErr != nil {
			c.logger.Debugw("mutation rejected", "tournament", id, "command", cmd.Type, "player", cmd.PlayerID, "error", applyErr)
			return tournament.State{}, applyErr
		}
		return tournament.State{}, storeErr(err)
	}
	return decode(doc)
}

func decode(doc docstore.Document) (tournament.State, error) {
	s, err := docstore.As[tournament.State](doc.Data)
	if err != nil {
		return tournament.State{}, fmt.Errorf("decoding tournament %s: %w", doc.ID, err)
	}
	if s.ID == "" {
		s.ID = doc.ID
	}
	if s.Players == nil {
		s.Players = map[string]tournament.PlayerState{}
	}
	return s, nil
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: tournament id is required", tournament.ErrValidation)
	}
	return nil
}

func storeErr(err error) error {
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return fmt.Errorf("%w: %v", tournament.ErrNotFound, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", tournament.ErrConnection, err)
	}
}
