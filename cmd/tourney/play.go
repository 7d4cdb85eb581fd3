package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pterm/pterm"

	"github.com/DoyleJ11/tourney/internal/choices"
	"github.com/DoyleJ11/tourney/internal/syncengine"
	"github.com/DoyleJ11/tourney/internal/tournament"
)

var errTransportClosed = errors.New("tournament connection closed")

// play drives one participant through a tournament: join, wait for the
// start, answer every card, then show the final leaderboard.
func play(ctx context.Context, e *syncengine.Engine, name string, creator bool, stdout io.Writer) error {
	defer e.Close()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- e.Run(ctx) }()

	err := session{e: e, out: stdout}.run(ctx, name, creator)
	if errors.Is(err, errTransportClosed) {
		if rerr := <-runErr; rerr != nil {
			return rerr
		}
	}
	return err
}

type session struct {
	e   *syncengine.Engine
	out io.Writer
}

func (u session) run(ctx context.Context, name string, creator bool) error {
	if err := u.e.Join(ctx, name); err != nil {
		return err
	}
	me := u.e.Me()

	s, err := u.next(ctx, func(s tournament.State) bool {
		_, joined := s.Players[me]
		return joined || s.Status != tournament.StatusWaiting
	})
	if err != nil {
		return err
	}

	if s.Status == tournament.StatusWaiting {
		if creator {
			err = u.startWhenReady(ctx)
		} else {
			err = u.waitForStart(ctx)
		}
		if err != nil {
			return err
		}
	}

	for {
		s, _ = u.e.State()
		if s.Status == tournament.StatusFinished {
			break
		}
		p, ok := s.Players[me]
		if !ok {
			return fmt.Errorf("%w: %s is no longer in the tournament", tournament.ErrRejected, me)
		}
		q, ok := s.CurrentQuestion(me)
		if !ok {
			break
		}

		pterm.DefaultSection.Printfln("Card %d of %d", p.CurrentQuestionIndex+1, len(s.Questions))
		answer, err := ask(s, q)
		if err != nil {
			return err
		}
		if err := u.e.Answer(ctx, answer); err != nil {
			if errors.Is(err, tournament.ErrRejected) {
				pterm.Warning.Println(err)
				continue
			}
			return err
		}

		s, err = u.next(ctx, func(n tournament.State) bool {
			cur, ok := n.Players[me]
			return !ok || cur.CurrentQuestionIndex > p.CurrentQuestionIndex || n.Status == tournament.StatusFinished
		})
		if err != nil {
			return err
		}
		if cur, ok := s.Players[me]; ok {
			pterm.Info.Printfln("Score: %d", cur.Score)
		}
	}

	if s.Status != tournament.StatusFinished {
		spinner, _ := pterm.DefaultSpinner.Start("Waiting for the others to finish")
		s, err = u.next(ctx, func(n tournament.State) bool { return n.Status == tournament.StatusFinished })
		if err != nil {
			spinner.Fail(err.Error())
			return err
		}
		spinner.Success("Everyone is done")
	}

	pterm.DefaultHeader.Println("Final leaderboard")
	return pterm.DefaultTable.WithHasHeader().WithWriter(u.out).WithData(leaderboardTable(s)).Render()
}

func (u session) startWhenReady(ctx context.Context) error {
	for {
		s, _ := u.e.State()
		pterm.Info.Printfln("Players: %s", playerNames(s))
		start, err := pterm.DefaultInteractiveConfirm.
			WithDefaultText("Start the tournament now? (no refreshes the player list)").
			Show()
		if err != nil {
			return err
		}
		if !start {
			continue
		}
		if err := u.e.Start(ctx); err != nil {
			if errors.Is(err, tournament.ErrRejected) {
				pterm.Warning.Println(err)
				continue
			}
			return err
		}
		_, err = u.next(ctx, func(n tournament.State) bool { return n.Status != tournament.StatusWaiting })
		return err
	}
}

func (u session) waitForStart(ctx context.Context) error {
	spinner, _ := pterm.DefaultSpinner.Start("Waiting for the creator to start")
	for {
		s, err := u.next(ctx, func(tournament.State) bool { return true })
		if err != nil {
			spinner.Fail(err.Error())
			return err
		}
		if s.Status != tournament.StatusWaiting {
			spinner.Success("Started")
			return nil
		}
		spinner.UpdateText("Waiting for the creator to start. Players: " + playerNames(s))
	}
}

// next returns the first snapshot, the current one included, that satisfies
// ok.
func (u session) next(ctx context.Context, ok func(tournament.State) bool) (tournament.State, error) {
	if s, have := u.e.State(); have && ok(s) {
		return s, nil
	}
	for {
		select {
		case <-ctx.Done():
			return tournament.State{}, ctx.Err()
		case s, open := <-u.e.Updates():
			if !open {
				return tournament.State{}, errTransportClosed
			}
			if ok(s) {
				return s, nil
			}
		}
	}
}

func ask(s tournament.State, q tournament.Question) (string, error) {
	if q.AudioURL != "" {
		pterm.Info.Printfln("Listen: %s", q.AudioURL)
	}

	switch s.GameType {
	case tournament.GameMatch:
		opts := choices.Options(s.Questions, q, choices.Default)
		labels := optionLabels(opts)
		picked, err := pterm.DefaultInteractiveSelect.
			WithDefaultText("Which card matches?").
			WithOptions(labels).
			Show()
		if err != nil {
			return "", err
		}
		for i, l := range labels {
			if l == picked {
				return opts[i].ID, nil
			}
		}
		return "", nil

	default:
		prompt := "Type what you hear"
		if s.GameType == tournament.GameSpeak {
			prompt = "Say it, then type what you said"
		}
		return pterm.DefaultInteractiveTextInput.WithDefaultText(prompt).Show()
	}
}
