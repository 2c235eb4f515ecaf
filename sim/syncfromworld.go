package sim

import (
	"github.com/automoto/warband-mp/physics"
	"github.com/automoto/warband-mp/shared/state"
)

// SyncFromWorld returns the next state: a copy of cur whose participant and
// soldier positions are read from their bodies. Entities without a resolving
// body keep their previous position. Units are never read from physics. cur is
// left untouched.
func SyncFromWorld(world *physics.World, refs *RefTable, cur *state.State) *state.State {
	next := cur.Clone()

	for id, p := range next.Participants {
		if b, ok := resolve(world, refs, CategoryParticipant, id); ok {
			p.Position = b.Translation()
			next.Participants[id] = p
		}
	}
	for id, so := range next.Soldiers {
		if b, ok := resolve(world, refs, CategorySoldier, id); ok {
			so.Position = b.Translation()
			next.Soldiers[id] = so
		}
	}
	return next
}

func resolve(world *physics.World, refs *RefTable, c Category, id string) (*physics.Body, bool) {
	h, ok := refs.Lookup(c, id)
	if !ok {
		return nil, false
	}
	return world.Body(h)
}
