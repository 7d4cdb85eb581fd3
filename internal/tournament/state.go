package tournament

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sort"
	"time"
)

// Status is the tournament phase. It only ever moves forward.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Rank orders statuses so callers can detect stale snapshots.
func (s Status) Rank() int {
	switch s {
	case StatusWaiting:
		return 0
	case StatusPlaying:
		return 1
	case StatusFinished:
		return 2
	default:
		return -1
	}
}

// GameType selects how every card in the tournament is answered.
type GameType string

const (
	GameMatch GameType = "match"
	GameSpeak GameType = "speak"
	GameTyped GameType = "type"
)

// ParseGameType accepts the wire names; empty means GameMatch.
func ParseGameType(s string) (GameType, error) {
	switch GameType(s) {
	case "":
		return GameMatch, nil
	case GameMatch, GameSpeak, GameTyped:
		return GameType(s), nil
	default:
		return "", fmt.Errorf("%w: unknown game type %q", ErrValidation, s)
	}
}

// Question is one flashcard. Its ID is the answer in match mode.
type Question struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	AudioURL string `json:"audioUrl"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// PlayerState is keyed by display name, which doubles as the ID.
type PlayerState struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Score                int    `json:"score"`
	CurrentQuestionIndex int    `json:"currentQuestionIndex"`
	IsFinished           bool   `json:"isFinished"`
}

// State is one snapshot of a tournament. Treat it as a value: every
// operation in this package returns a fresh copy.
type State struct {
	ID        string                 `json:"id"`
	GameType  GameType               `json:"gameType"`
	Questions []Question             `json:"questions"`
	Players   map[string]PlayerState `json:"players"`
	CreatorID string                 `json:"creatorId"`
	Status    Status                 `json:"status"`
	CreatedAt time.Time              `json:"createdAt"`
}

// New seeds a tournament with its creator as the only player.
func New(id string, gameType GameType, creator string, questions []Question, createdAt time.Time) (State, error) {
	if creator == "" {
		return State{}, fmt.Errorf("%w: creator name is required", ErrValidation)
	}
	if len(questions) == 0 {
		return State{}, fmt.Errorf("%w: at least one question is required", ErrValidation)
	}
	qs := make([]Question, len(questions))
	copy(qs, questions)

	return State{
		ID:        id,
		GameType:  gameType,
		Questions: qs,
		Players: map[string]PlayerState{
			creator: newPlayer(creator),
		},
		CreatorID: creator,
		Status:    StatusWaiting,
		CreatedAt: createdAt.UTC(),
	}, nil
}

func newPlayer(name string) PlayerState {
	return PlayerState{ID: name, Name: name}
}

// Clone deep-copies the player map. Questions are never mutated after
// creation so the slice is shared.
func (s State) Clone() State {
	out := s
	out.Players = make(map[string]PlayerState, len(s.Players))
	for id, p := range s.Players {
		out.Players[id] = p
	}
	return out
}

func (s State) Equal(o State) bool {
	return s.ID == o.ID &&
		s.GameType == o.GameType &&
		s.CreatorID == o.CreatorID &&
		s.Status == o.Status &&
		s.CreatedAt.Equal(o.CreatedAt) &&
		reflect.DeepEqual(s.Questions, o.Questions) &&
		reflect.DeepEqual(s.Players, o.Players)
}

// CurrentQuestion returns the question the player is on, or false once they
// are done.
func (s State) CurrentQuestion(playerID string) (Question, bool) {
	p, ok := s.Players[playerID]
	if !ok || p.CurrentQuestionIndex >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[p.CurrentQuestionIndex], true
}

// Leaderboard lists players by score, ties broken by name.
func (s State) Leaderboard() []PlayerState {
	out := make([]PlayerState, 0, len(s.Players))
	for _, p := range s.Players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ParseQuestions reads a deck exported as a JSON list of questions.
func ParseQuestions(r io.Reader) ([]Question, error) {
	var qs []Question
	if err := json.NewDecoder(r).Decode(&qs); err != nil {
		return nil, fmt.Errorf("%w: decoding questions: %v", ErrValidation, err)
	}
	if len(qs) == 0 {
		return nil, fmt.Errorf("%w: deck has no questions", ErrValidation)
	}
	seen := make(map[string]bool, len(qs))
	for i, q := range qs {
		if q.ID == "" {
			return nil, fmt.Errorf("%w: question %d has no id", ErrValidation, i)
		}
		if seen[q.ID] {
			return nil, fmt.Errorf("%w: duplicate question id %q", ErrValidation, q.ID)
		}
		seen[q.ID] = true
	}
	return qs, nil
}
