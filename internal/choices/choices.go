// Package choices builds the multiple-choice options shown for a card.
package choices

import (
	"github.com/valyala/fastrand"

	"github.com/DoyleJ11/tourney/internal/tournament"
)

// Distractors is how many wrong options accompany the right one.
const Distractors = 3

// Rand is satisfied by *fastrand.RNG.
type Rand interface {
	Uint32n(maxN uint32) uint32
}

type globalRand struct{}

func (globalRand) Uint32n(maxN uint32) uint32 { return fastrand.Uint32n(maxN) }

// Default draws from the package-level fastrand generator and is safe for
// concurrent use.
var Default Rand = globalRand{}

// Options returns current and up to Distractors other questions that have an
// image, in random order. Small decks give fewer options.
func Options(questions []tournament.Question, current tournament.Question, rng Rand) []tournament.Question {
	if rng == nil {
		rng = Default
	}

	pool := make([]tournament.Question, 0, len(questions))
	for _, q := range questions {
		if q.ID == current.ID || q.ImageURL == "" {
			continue
		}
		pool = append(pool, q)
	}

	n := min(Distractors, len(pool))
	// partial Fisher-Yates: the first n entries become the picks
	for i := 0; i < n; i++ {
		j := i + int(rng.Uint32n(uint32(len(pool)-i)))
		pool[i], pool[j] = pool[j], pool[i]
	}

	opts := append(pool[:n:n], current)
	shuffle(opts, rng)
	return opts
}

func shuffle(qs []tournament.Question, rng Rand) {
	for i := len(qs) - 1; i > 0; i-- {
		j := int(rng.Uint32n(uint32(i + 1)))
		qs[i], qs[j] = qs[j], qs[i]
	}
}

// IsCorrect compares identifiers only; two cards with the same text are
// still different answers.
func IsCorrect(selectedID string, current tournament.Question) bool {
	return selectedID != "" && selectedID == current.ID
}
