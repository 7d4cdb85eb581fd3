package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIncrement(t *testing.T) {
	cases := []struct {
		name    string
		correct bool
		ms      int64
		want    int
	}{
		{name: "instant", correct: true, ms: 0, want: 1000},
		{name: "half a second", correct: true, ms: 500, want: 975},
		{name: "floors partial steps", correct: true, ms: 39, want: 999},
		{name: "exactly zero at 20s", correct: true, ms: 20000, want: 0},
		{name: "never negative", correct: true, ms: 90000, want: 0},
		{name: "negative elapsed clamps", correct: true, ms: -300, want: 1000},
		{name: "wrong answer", correct: false, ms: 0, want: 0},
		{name: "wrong slow answer", correct: false, ms: 45000, want: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Increment(tc.correct, tc.ms))
		})
	}
}

func TestIncrement_NonIncreasingAndBounded(t *testing.T) {
	prev := Increment(true, 0)
	for ms := int64(0); ms <= 25000; ms += 7 {
		got := Increment(true, ms)
		if got > prev {
			t.Fatalf("increment rose from %d to %d at %dms", prev, got, ms)
		}
		if got < 0 || got > MaxPoints {
			t.Fatalf("increment %d out of range at %dms", got, ms)
		}
		if Increment(false, ms) != 0 {
			t.Fatalf("wrong answer scored at %dms", ms)
		}
		prev = got
	}
}
