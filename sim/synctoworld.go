package sim

import (
	"github.com/automoto/warband-mp/config"
	"github.com/automoto/warband-mp/physics"
	"github.com/automoto/warband-mp/shared/gamemath"
	"github.com/automoto/warband-mp/shared/state"
)

// SyncToWorld pushes logical positions and this tick's forces into world,
// then drops bodies whose entities left the state. Logical state owns position
// truth at the start of a tick, so every body is teleported first.
func SyncToWorld(world *physics.World, s *state.State, refs *RefTable, cfg config.Config) {
	liveParticipants := make(map[string]struct{}, len(s.Participants))
	for _, id := range s.ParticipantIDs() {
		p := s.Participants[id]
		liveParticipants[id] = struct{}{}

		b, ok := placeBody(world, refs, CategoryParticipant, id, p.Position)
		if !ok {
			continue
		}
		in := s.Inputs[id]
		b.AddForce(ParticipantForce(in, b.Mass(), cfg.Movement), true)
	}

	soldiers := s.SoldierIDs()
	liveSoldiers := make(map[string]struct{}, len(soldiers))
	for _, id := range soldiers {
		liveSoldiers[id] = struct{}{}
		placeBody(world, refs, CategorySoldier, id, s.Soldiers[id].Position)
	}

	// Steering runs after every soldier is placed so neighbour queries see
	// this tick's positions.
	avoidRadius := cfg.AvoidanceRadius()
	for _, id := range soldiers {
		so := s.Soldiers[id]
		h, ok := refs.Lookup(CategorySoldier, id)
		if !ok {
			continue
		}
		b, ok := world.Body(h)
		if !ok {
			continue
		}
		unit, ok := s.Units[so.UnitID]
		if !ok {
			continue
		}
		dir := SteeringDirection(world, h, so.Position, unit.Position, avoidRadius, cfg.SoldierAI.AvoidanceWeight)
		b.AddForce(dir.Scale(cfg.SoldierAI.SteerAccel*b.Mass()), true)
	}

	refs.Reconcile(world, CategoryParticipant, liveParticipants)
	refs.Reconcile(world, CategorySoldier, liveSoldiers)
}

func placeBody(world *physics.World, refs *RefTable, c Category, id string, pos gamemath.Vec2) (*physics.Body, bool) {
	h := refs.GetOrCreateBody(world, c, id, pos)
	b, ok := world.Body(h)
	if !ok {
		return nil, false
	}
	b.SetTranslation(pos, true)
	b.ResetForces(true)
	return b, true
}

// ParticipantForce returns direction * accel * mass for the walk or run
// profile. A zero or degenerate direction yields no force.
func ParticipantForce(in state.Input, mass float64, m config.MovementConfig) gamemath.Vec2 {
	accel := m.WalkAccel
	if in.Running {
		accel = m.RunAccel
	}
	return in.MovingDirection.Normalize().Scale(accel * mass)
}

// SteeringDirection computes a soldier's unit-length steering direction. It
// heads toward target; once any other soldier body is inside avoidRadius the
// direction blends in a repulsion away from the nearest one, with weight
// applied as a switch rather than scaled by distance.
func SteeringDirection(world *physics.World, self physics.Handle, pos, target gamemath.Vec2, avoidRadius, weight float64) gamemath.Vec2 {
	toTarget := target.Sub(pos).Normalize()

	nearest, found := nearestNeighbour(world, self, pos, avoidRadius)
	if !found {
		return toTarget
	}

	away := pos.Sub(nearest).Normalize()
	if away.IsZero() {
		return toTarget
	}
	return toTarget.Scale(1 - weight).Add(away.Scale(weight)).Normalize()
}

func nearestNeighbour(world *physics.World, self physics.Handle, pos gamemath.Vec2, radius float64) (gamemath.Vec2, bool) {
	var best gamemath.Vec2
	bestD := radius * radius
	found := false
	for _, h := range world.QueryCircle(pos, radius, TagSoldier) {
		if h == self {
			continue
		}
		b, ok := world.Body(h)
		if !ok {
			continue
		}
		p := b.Translation()
		if d := p.DistanceSq(pos); d < bestD {
			best, bestD, found = p, d, true
		}
	}
	return best, found
}
