// Package lifecycle tracks tournament phase changes as one participant sees
// them, and times that participant's current question.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/DoyleJ11/tourney/internal/tournament"
)

type Transition struct {
	From tournament.Status
	To   tournament.Status
}

// Clock is swapped out in tests.
type Clock func() time.Time

type Controller struct {
	playerID string
	now      Clock

	status        tournament.Status
	observed      bool
	questionIndex int
	questionStart time.Time
}

func NewController(playerID string, now Clock) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{playerID: playerID, now: now}
}

// SetPlayer changes whose question is being timed, e.g. once a join is
// accepted under a name.
func (c *Controller) SetPlayer(playerID string) { c.playerID = playerID }

func (c *Controller) Status() tournament.Status { return c.status }

// Observe feeds the next snapshot. Snapshots that would move the status
// backwards are ignored and produce no transitions.
func (c *Controller) Observe(s tournament.State) []Transition {
	if c.observed && s.Status.Rank() < c.status.Rank() {
		return nil
	}

	var out []Transition
	prev := c.status
	if !c.observed {
		prev = tournament.StatusWaiting
	}

	if prev != s.Status {
		if prev == tournament.StatusWaiting && s.Status == tournament.StatusFinished {
			out = append(out,
				Transition{From: tournament.StatusWaiting, To: tournament.StatusPlaying},
				Transition{From: tournament.StatusPlaying, To: tournament.StatusFinished})
		} else {
			out = append(out, Transition{From: prev, To: s.Status})
		}
	}

	idx := 0
	if p, ok := s.Players[c.playerID]; ok {
		idx = p.CurrentQuestionIndex
	}

	switch {
	case s.Status == tournament.StatusPlaying && prev == tournament.StatusWaiting:
		c.questionStart = c.now()
	case s.Status == tournament.StatusPlaying && idx > c.questionIndex:
		c.questionStart = c.now()
	}

	c.status = s.Status
	c.questionIndex = idx
	c.observed = true
	return out
}

// Elapsed is the time spent on the current question. It is zero until the
// tournament has been seen playing.
func (c *Controller) Elapsed() time.Duration {
	if c.questionStart.IsZero() {
		return 0
	}
	return c.now().Sub(c.questionStart)
}

func (c *Controller) ElapsedMs() int64 { return c.Elapsed().Milliseconds() }

// CanStart checks a start request locally before it is sent anywhere.
func CanStart(s tournament.State, requester string) error {
	if requester != s.CreatorID {
		return tournament.ErrNotCreator
	}
	if s.Status != tournament.StatusWaiting {
		return fmt.Errorf("%w (status %s)", tournament.ErrNotWaiting, s.Status)
	}
	return nil
}

// ShouldFinish reports whether the finish transition is due for s.
func ShouldFinish(s tournament.State) bool {
	_, ok := tournament.CheckFinished(s)
	return ok
}
