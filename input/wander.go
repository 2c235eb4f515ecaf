package input

import (
	"math/rand/v2"

	"github.com/automoto/warband-mp/shared/netconfig"
)

var wanderActions = []netconfig.ActionID{
	netconfig.ActionMoveLeft,
	netconfig.ActionMoveRight,
	netconfig.ActionMoveUp,
	netconfig.ActionMoveDown,
}

// Wander drives a KeyTracker like a bored player: every Period ticks it
// releases its keys and holds a new random direction. Used by headless bot
// peers.
type Wander struct {
	Tracker *KeyTracker
	Period  int

	rng   *rand.Rand
	ticks int
}

func NewWander(tracker *KeyTracker, period int, seed uint64) *Wander {
	if period < 1 {
		period = 1
	}
	return &Wander{
		Tracker: tracker,
		Period:  period,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Step advances one tick.
func (w *Wander) Step() {
	if w.ticks%w.Period == 0 {
		for _, a := range wanderActions {
			w.Tracker.Release(a)
		}
		w.Tracker.Press(wanderActions[w.rng.IntN(len(wanderActions))])
		if w.rng.IntN(2) == 0 {
			w.Tracker.Press(wanderActions[w.rng.IntN(len(wanderActions))])
		}
	}
	w.ticks++
}
