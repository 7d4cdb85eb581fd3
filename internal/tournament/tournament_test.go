package tournament

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fiveQuestions() []Question {
	qs := make([]Question, 5)
	for i := range qs {
		qs[i] = Question{
			ID:       fmt.Sprintf("q%d", i+1),
			Text:     fmt.Sprintf("word %d", i+1),
			AudioURL: fmt.Sprintf("https://cdn.example/audio/%d.mp3", i+1),
		}
	}
	return qs
}

func newState(t *testing.T) State {
	t.Helper()
	s, err := New("ROOM42", GameMatch, "host", fiveQuestions(), time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)
	return s
}

func mustApply(t *testing.T, s State, cmd Command) State {
	t.Helper()
	_, next, err := Apply(s, cmd)
	require.NoError(t, err)
	return next
}

func containsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

func TestNew_SeedsCreator(t *testing.T) {
	s := newState(t)

	assert.Equal(t, StatusWaiting, s.Status)
	assert.Equal(t, "host", s.CreatorID)
	require.Len(t, s.Players, 1)
	assert.Equal(t, PlayerState{ID: "host", Name: "host"}, s.Players["host"])

	_, err := New("X", GameMatch, "", fiveQuestions(), time.Now())
	assert.ErrorIs(t, err, ErrValidation)

	_, err = New("X", GameMatch, "host", nil, time.Now())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestJoin_DistinctNamesCount(t *testing.T) {
	cases := []struct {
		name  string
		joins []string
		want  int
	}{
		{name: "no joins", joins: nil, want: 1},
		{name: "two new players", joins: []string{"ana", "bo"}, want: 3},
		{name: "duplicates overwrite", joins: []string{"ana", "ana", "bo", "ana"}, want: 3},
		{name: "creator name rejoins", joins: []string{"host"}, want: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newState(t)
			for _, name := range tc.joins {
				s = mustApply(t, s, Command{Type: CmdJoin, PlayerID: name})
			}
			assert.Len(t, s.Players, tc.want)
		})
	}
}

func TestJoin_Rejections(t *testing.T) {
	s := newState(t)

	_, got, err := Apply(s, Command{Type: CmdJoin, PlayerID: "   "})
	assert.ErrorIs(t, err, ErrValidation)
	assert.True(t, got.Equal(s))

	playing := mustApply(t, s, Command{Type: CmdStart, PlayerID: "host"})
	_, got, err = Apply(playing, Command{Type: CmdJoin, PlayerID: "late"})
	assert.ErrorIs(t, err, ErrJoinClosed)
	assert.ErrorIs(t, err, ErrRejected)
	assert.True(t, got.Equal(playing))
}

func TestJoin_DoesNotAliasPreviousSnapshot(t *testing.T) {
	s := newState(t)
	next := mustApply(t, s, Command{Type: CmdJoin, PlayerID: "ana"})

	assert.Len(t, s.Players, 1)
	assert.Len(t, next.Players, 2)
}

func TestStart(t *testing.T) {
	s := mustApply(t, newState(t), Command{Type: CmdJoin, PlayerID: "ana"})

	_, _, err := Apply(s, Command{Type: CmdStart, PlayerID: "ana"})
	assert.ErrorIs(t, err, ErrNotCreator)

	events, playing, err := Apply(s, Command{Type: CmdStart, PlayerID: "host"})
	require.NoError(t, err)
	assert.Equal(t, StatusPlaying, playing.Status)
	assert.True(t, containsEvent(events, EvtTournamentStarted))

	_, _, err = Apply(playing, Command{Type: CmdStart, PlayerID: "host"})
	assert.ErrorIs(t, err, ErrNotWaiting)
}

func TestSubmitAnswer_ScenarioA(t *testing.T) {
	s := mustApply(t, newState(t), Command{Type: CmdJoin, PlayerID: "ana"})
	s = mustApply(t, s, Command{Type: CmdStart, PlayerID: "host"})

	events, s, err := Apply(s, Command{Type: CmdSubmitAnswer, PlayerID: "ana", Answer: "q1", TimeTakenMs: 500})
	require.NoError(t, err)

	ana := s.Players["ana"]
	assert.Equal(t, 975, ana.Score)
	assert.Equal(t, 1, ana.CurrentQuestionIndex)
	assert.False(t, ana.IsFinished)
	assert.Equal(t, StatusPlaying, s.Status)
	require.Len(t, events, 1)
	assert.Equal(t, Event{Type: EvtAnswerScored, PlayerID: "ana", Correct: true, Points: 975}, events[0])
}

func TestSubmitAnswer_WrongAnswerAdvancesWithoutPoints(t *testing.T) {
	s := mustApply(t, newState(t), Command{Type: CmdStart, PlayerID: "host"})
	s = mustApply(t, s, Command{Type: CmdSubmitAnswer, PlayerID: "host", Answer: "q4", TimeTakenMs: 10})

	assert.Equal(t, 0, s.Players["host"].Score)
	assert.Equal(t, 1, s.Players["host"].CurrentQuestionIndex)
}

func TestSubmitAnswer_ScenarioB_SinglePlayerFinishes(t *testing.T) {
	s := mustApply(t, newState(t), Command{Type: CmdStart, PlayerID: "host"})

	var events []Event
	var err error
	for i, q := range s.Questions {
		events, s, err = Apply(s, Command{Type: CmdSubmitAnswer, PlayerID: "host", Answer: q.ID, TimeTakenMs: 0})
		require.NoError(t, err)
		if i < len(s.Questions)-1 {
			assert.Equal(t, StatusPlaying, s.Status)
		}
	}

	host := s.Players["host"]
	assert.True(t, host.IsFinished)
	assert.Equal(t, 5, host.CurrentQuestionIndex)
	assert.Equal(t, 5000, host.Score)
	assert.Equal(t, StatusFinished, s.Status)
	assert.True(t, containsEvent(events, EvtPlayerFinished))
	assert.True(t, containsEvent(events, EvtTournamentFinished))
}

func TestSubmitAnswer_Rejections(t *testing.T) {
	waiting := mustApply(t, newState(t), Command{Type: CmdJoin, PlayerID: "ana"})
	playing := mustApply(t, waiting, Command{Type: CmdStart, PlayerID: "host"})

	done := playing
	for _, q := range playing.Questions {
		done = mustApply(t, done, Command{Type: CmdSubmitAnswer, PlayerID: "ana", Answer: q.ID})
	}

	cases := []struct {
		name    string
		setup   State
		cmd     Command
		wantErr error
	}{
		{
			name:    "before start",
			setup:   waiting,
			cmd:     Command{Type: CmdSubmitAnswer, PlayerID: "ana", Answer: "q1"},
			wantErr: ErrNotPlaying,
		},
		{
			name:    "unknown player",
			setup:   playing,
			cmd:     Command{Type: CmdSubmitAnswer, PlayerID: "ghost", Answer: "q1"},
			wantErr: ErrUnknownPlayer,
		},
		{
			name:    "player already done",
			setup:   done,
			cmd:     Command{Type: CmdSubmitAnswer, PlayerID: "ana", Answer: "q1"},
			wantErr: ErrPlayerFinished,
		},
		{
			name:    "unsupported",
			setup:   playing,
			cmd:     Command{Type: "Dance"},
			wantErr: ErrUnsupportedCommand,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, got, err := Apply(tc.setup, tc.cmd)
			if err == nil || !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
			assert.ErrorIs(t, err, ErrRejected)
			assert.True(t, got.Equal(tc.setup))
		})
	}
}

func TestFinished_IsTerminal(t *testing.T) {
	s := mustApply(t, newState(t), Command{Type: CmdStart, PlayerID: "host"})
	for _, q := range s.Questions {
		s = mustApply(t, s, Command{Type: CmdSubmitAnswer, PlayerID: "host", Answer: q.ID, TimeTakenMs: 700})
	}
	require.Equal(t, StatusFinished, s.Status)

	before, err := json.Marshal(s)
	require.NoError(t, err)

	for _, cmd := range []Command{
		{Type: CmdSubmitAnswer, PlayerID: "host", Answer: "q1"},
		{Type: CmdJoin, PlayerID: "late"},
		{Type: CmdStart, PlayerID: "host"},
		{Type: CmdLeave, PlayerID: "host"},
	} {
		_, got, err := Apply(s, cmd)
		assert.ErrorIs(t, err, ErrTournamentFinished)

		after, err := json.Marshal(got)
		require.NoError(t, err)
		assert.Equal(t, string(before), string(after))
	}
}

func TestLeave_CompletesTournamentWhenRemainingPlayersAreDone(t *testing.T) {
	s := mustApply(t, newState(t), Command{Type: CmdJoin, PlayerID: "ana"})
	s = mustApply(t, s, Command{Type: CmdStart, PlayerID: "host"})
	for _, q := range s.Questions {
		s = mustApply(t, s, Command{Type: CmdSubmitAnswer, PlayerID: "host", Answer: q.ID})
	}
	require.Equal(t, StatusPlaying, s.Status)

	events, s, err := Apply(s, Command{Type: CmdLeave, PlayerID: "ana"})
	require.NoError(t, err)
	assert.True(t, containsEvent(events, EvtPlayerLeft))
	assert.True(t, containsEvent(events, EvtTournamentFinished))
	assert.Equal(t, StatusFinished, s.Status)
}

func TestCheckFinished_Idempotent(t *testing.T) {
	s := mustApply(t, newState(t), Command{Type: CmdStart, PlayerID: "host"})

	_, ok := CheckFinished(s)
	assert.False(t, ok)

	host := s.Players["host"]
	host.IsFinished = true
	host.CurrentQuestionIndex = len(s.Questions)
	s.Players["host"] = host

	first, ok := CheckFinished(s)
	require.True(t, ok)
	assert.Equal(t, StatusFinished, first.Status)

	second, ok := CheckFinished(first)
	assert.False(t, ok)
	assert.True(t, second.Equal(first))
}

func TestState_JSONRoundTrip(t *testing.T) {
	s := mustApply(t, newState(t), Command{Type: CmdJoin, PlayerID: "ana"})
	s.Questions[2].ImageURL = "https://cdn.example/img/3.png"
	states := []State{s}

	s = mustApply(t, s, Command{Type: CmdStart, PlayerID: "host"})
	states = append(states, s)
	s = mustApply(t, s, Command{Type: CmdSubmitAnswer, PlayerID: "ana", Answer: "q1", TimeTakenMs: 1234})
	states = append(states, s)

	for i, want := range states {
		data, err := json.Marshal(want)
		require.NoError(t, err)

		var got State
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Truef(t, want.Equal(got), "state %d did not survive a round trip", i)
	}
}

func TestJudge(t *testing.T) {
	q := Question{ID: "q7", Text: "Guten  Morgen"}

	assert.True(t, Judge(q, "q7"))
	assert.True(t, Judge(q, " guten morgen "))
	assert.False(t, Judge(q, "q8"))
	assert.False(t, Judge(q, ""))
}

func TestLeaderboard(t *testing.T) {
	s := newState(t)
	s.Players["bo"] = PlayerState{ID: "bo", Name: "bo", Score: 900}
	s.Players["al"] = PlayerState{ID: "al", Name: "al", Score: 900}
	s.Players["cy"] = PlayerState{ID: "cy", Name: "cy", Score: 1900}

	var names []string
	for _, p := range s.Leaderboard() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"cy", "al", "bo", "host"}, names)
}

func TestParseQuestions(t *testing.T) {
	qs, err := ParseQuestions(strings.NewReader(`[{"id":"a","text":"Apfel","audioUrl":"a.mp3"},{"id":"b","text":"Birne","audioUrl":"b.mp3","imageUrl":"b.png"}]`))
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, "b.png", qs[1].ImageURL)

	_, err = ParseQuestions(strings.NewReader(`[]`))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ParseQuestions(strings.NewReader(`[{"id":"a"},{"id":"a"}]`))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ParseQuestions(strings.NewReader(`{`))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParseGameType(t *testing.T) {
	for in, want := range map[string]GameType{"": GameMatch, "match": GameMatch, "speak": GameSpeak, "type": GameTyped} {
		got, err := ParseGameType(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseGameType("chess")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLeave_CreatorStaysWhileWaiting(t *testing.T) {
	s := mustApply(t, newState(t), Command{Type: CmdJoin, PlayerID: "ana"})

	_, got, err := Apply(s, Command{Type: CmdLeave, PlayerID: "host"})
	assert.ErrorIs(t, err, ErrCreatorStays)
	assert.ErrorIs(t, err, ErrRejected)
	assert.True(t, got.Equal(s))

	// other players may still leave, and the creator may once playing
	s = mustApply(t, s, Command{Type: CmdLeave, PlayerID: "ana"})
	assert.NotContains(t, s.Players, "ana")
	s = mustApply(t, s, Command{Type: CmdStart, PlayerID: "host"})
	s = mustApply(t, s, Command{Type: CmdLeave, PlayerID: "host"})
	assert.Empty(t, s.Players)
}
