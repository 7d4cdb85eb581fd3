package tournament

import (
	"fmt"
	"strings"

	"github.com/DoyleJ11/tourney/internal/scoring"
)

type CommandType string

const (
	CmdJoin         CommandType = "Join"
	CmdStart        CommandType = "Start"
	CmdSubmitAnswer CommandType = "SubmitAnswer"
	CmdLeave        CommandType = "Leave"
)

type Command struct {
	Type        CommandType
	PlayerID    string
	Answer      string
	TimeTakenMs int64
}

type EventType string

const (
	EvtPlayerJoined       EventType = "PlayerJoined"
	EvtPlayerRejoined     EventType = "PlayerRejoined"
	EvtTournamentStarted  EventType = "TournamentStarted"
	EvtAnswerScored       EventType = "AnswerScored"
	EvtPlayerFinished     EventType = "PlayerFinished"
	EvtPlayerLeft         EventType = "PlayerLeft"
	EvtTournamentFinished EventType = "TournamentFinished"
)

type Event struct {
	Type     EventType
	PlayerID string
	Correct  bool
	Points   int
}

// Apply validates cmd against s and returns the resulting snapshot. On error
// the returned state is s, untouched.
func Apply(s State, cmd Command) ([]Event, State, error) {
	if s.Status == StatusFinished {
		return nil, s, ErrTournamentFinished
	}

	switch cmd.Type {
	case CmdJoin:
		name := strings.TrimSpace(cmd.PlayerID)
		if name == "" {
			return nil, s, fmt.Errorf("%w: name is required", ErrValidation)
		}
		if s.Status != StatusWaiting {
			return nil, s, ErrJoinClosed
		}

		newState := s.Clone()
		evt := EvtPlayerJoined
		if _, exists := newState.Players[name]; exists {
			// Same display name: the later join replaces the earlier entry.
			evt = EvtPlayerRejoined
		}
		newState.Players[name] = newPlayer(name)
		return []Event{{Type: evt, PlayerID: name}}, newState, nil

	case CmdStart:
		if cmd.PlayerID != s.CreatorID {
			return nil, s, ErrNotCreator
		}
		if s.Status != StatusWaiting {
			return nil, s, ErrNotWaiting
		}

		newState := s.Clone()
		newState.Status = StatusPlaying
		return []Event{{Type: EvtTournamentStarted, PlayerID: cmd.PlayerID}}, newState, nil

	case CmdSubmitAnswer:
		if s.Status != StatusPlaying {
			return nil, s, ErrNotPlaying
		}
		p, ok := s.Players[cmd.PlayerID]
		if !ok {
			return nil, s, ErrUnknownPlayer
		}
		if p.IsFinished || p.CurrentQuestionIndex >= len(s.Questions) {
			return nil, s, ErrPlayerFinished
		}

		correct := Judge(s.Questions[p.CurrentQuestionIndex], cmd.Answer)
		points := scoring.Increment(correct, cmd.TimeTakenMs)

		p.Score += points
		p.CurrentQuestionIndex++
		events := []Event{{Type: EvtAnswerScored, PlayerID: p.ID, Correct: correct, Points: points}}
		if p.CurrentQuestionIndex >= len(s.Questions) {
			p.IsFinished = true
			events = append(events, Event{Type: EvtPlayerFinished, PlayerID: p.ID})
		}

		newState := s.Clone()
		newState.Players[p.ID] = p

		if finished, ok := CheckFinished(newState); ok {
			newState = finished
			events = append(events, Event{Type: EvtTournamentFinished})
		}
		return events, newState, nil

	case CmdLeave:
		if _, ok := s.Players[cmd.PlayerID]; !ok {
			return nil, s, ErrUnknownPlayer
		}
		// Only the creator can start, so a waiting tournament keeps them.
		// They rejoin under the same name after a reconnect.
		if s.Status == StatusWaiting && cmd.PlayerID == s.CreatorID {
			return nil, s, ErrCreatorStays
		}

		newState := s.Clone()
		delete(newState.Players, cmd.PlayerID)
		events := []Event{{Type: EvtPlayerLeft, PlayerID: cmd.PlayerID}}

		if finished, ok := CheckFinished(newState); ok {
			newState = finished
			events = append(events, Event{Type: EvtTournamentFinished})
		}
		return events, newState, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

// CheckFinished moves a playing tournament to finished once every player is
// done. It reports false, returning s as is, in every other case, so it is
// safe to run repeatedly from any participant.
func CheckFinished(s State) (State, bool) {
	if s.Status != StatusPlaying || len(s.Players) == 0 {
		return s, false
	}
	for _, p := range s.Players {
		if !p.IsFinished {
			return s, false
		}
	}
	newState := s.Clone()
	newState.Status = StatusFinished
	return newState, true
}

// Judge decides whether answer matches q. Multiple choice answers carry the
// selected question id; spoken and typed answers are compared to the card text.
func Judge(q Question, answer string) bool {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return false
	}
	if answer == q.ID {
		return true
	}
	return normalize(answer) == normalize(q.Text)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
