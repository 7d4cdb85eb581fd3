package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tourney/internal/hub"
	"github.com/DoyleJ11/tourney/internal/replicated"
	"github.com/DoyleJ11/tourney/internal/tournament"
)

type createRequest struct {
	Creator   string          `json:"creator"`
	GameType  string          `json:"gameType"`
	Questions json.RawMessage `json:"questions"`
}

type createResponse struct {
	Code      string `json:"code"`
	CreatorID string `json:"creatorId"`
}

// CreateTournament opens a hosted lobby. The creator then connects to /ws
// like everyone else and is the only one allowed to start.
func CreateTournament(h *hub.Hub, logger *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, fmt.Errorf("%w: %v", tournament.ErrValidation, err))
			return
		}
		gameType, err := tournament.ParseGameType(req.GameType)
		if err != nil {
			writeError(w, err)
			return
		}
		questions, err := tournament.ParseQuestions(bytes.NewReader(req.Questions))
		if err != nil {
			writeError(w, err)
			return
		}

		for {
			code, err := hub.GenerateCode()
			if err != nil {
				writeError(w, fmt.Errorf("generating code: %w", err))
				return
			}
			s, err := tournament.New(code, gameType, strings.TrimSpace(req.Creator), questions, time.Now())
			if err != nil {
				writeError(w, err)
				return
			}
			_, err = h.Create(r.Context(), s)
			if errors.Is(err, hub.ErrCodeTaken) {
				logger.Debugw("collision on code, regenerating", "code", code)
				continue
			}
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, createResponse{Code: code, CreatorID: s.CreatorID})
			return
		}
	}
}

type snapshotResponse struct {
	Version int              `json:"version"`
	Clients int              `json:"clients"`
	State   tournament.State `json:"state"`
}

func GetTournament(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.ToUpper(chi.URLParam(r, "code"))
		if !hub.ValidCode(code) {
			writeError(w, fmt.Errorf("%w: bad room code %q", tournament.ErrValidation, code))
			return
		}
		lb, err := h.Get(r.Context(), code)
		if err != nil {
			writeError(w, err)
			return
		}
		v, err := lb.View(r.Context())
		if err != nil {
			writeError(w, fmt.Errorf("%w: %v", tournament.ErrNotFound, err))
			return
		}
		writeJSON(w, http.StatusOK, snapshotResponse{Version: v.Version, Clients: v.NumClients, State: v.State})
	}
}

type lobbyEntry struct {
	ID        string              `json:"id"`
	CreatorID string              `json:"creatorId"`
	GameType  tournament.GameType `json:"gameType"`
	Players   int                 `json:"players"`
	Questions int                 `json:"questions"`
	CreatedAt time.Time           `json:"createdAt"`
}

// ListLobby is discovery for the replicated-store transport: tournaments
// still waiting for players, newest first.
func ListLobby(c *replicated.Client, limit int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		states, err := c.ListWaiting(r.Context(), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]lobbyEntry, 0, len(states))
		for _, s := range states {
			out = append(out, lobbyEntry{
				ID:        s.ID,
				CreatorID: s.CreatorID,
				GameType:  s.GameType,
				Players:   len(s.Players),
				Questions: len(s.Questions),
				CreatedAt: s.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// Checker verifies that an infrastructure dependency is reachable.
type Checker interface {
	Check(ctx context.Context) error
}

type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Check(ctx context.Context) error { return f(ctx) }

type healthResult struct {
	Status string `json:"status"`
}

func Healthz(logger *zap.SugaredLogger, checks map[string]Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		results := make(map[string]healthResult, len(checks))
		status := http.StatusOK

		for name, c := range checks {
			if err := c.Check(ctx); err != nil {
				logger.Errorw("health check failed", "name", name, "error", err)
				results[name] = healthResult{Status: "error"}
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = healthResult{Status: "ok"}
		}

		writeJSON(w, status, results)
	}
}

// HubChecker reports whether the lobby registry still answers.
func HubChecker(h *hub.Hub) Checker {
	return CheckerFunc(func(ctx context.Context) error {
		_, err := h.List(ctx)
		return err
	})
}
