package sim

import (
	"fmt"
	"sort"

	"github.com/automoto/warband-mp/config"
	"github.com/automoto/warband-mp/physics"
	"github.com/automoto/warband-mp/shared/gamemath"
)

// Category selects which entity kind a reference belongs to.
type Category int

const (
	CategoryParticipant Category = iota
	CategorySoldier
	categoryCount
)

// Resolv tags for body categories
const (
	TagParticipant = "participant"
	TagSoldier     = "soldier"
)

func (c Category) String() string {
	switch c {
	case CategoryParticipant:
		return TagParticipant
	case CategorySoldier:
		return TagSoldier
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// RefTable maps logical entity ids to physics handles and back. It is a
// lookup aid only: the Logical State decides which entities exist and bodies
// are derived from it.
type RefTable struct {
	byID     [categoryCount]map[string]physics.Handle
	byHandle [categoryCount]map[physics.Handle]string
	profiles [categoryCount]config.BodyProfile
}

func NewRefTable(cfg config.Config) *RefTable {
	r := &RefTable{}
	for c := range r.byID {
		r.byID[c] = make(map[string]physics.Handle)
		r.byHandle[c] = make(map[physics.Handle]string)
	}
	r.profiles[CategoryParticipant] = cfg.Participant
	r.profiles[CategorySoldier] = cfg.Soldier
	return r
}

// GetOrCreateBody returns the body handle for id, creating a body at pos if
// none is mapped. A mapped handle that no longer resolves in world is stale and
// is replaced transparently.
func (r *RefTable) GetOrCreateBody(world *physics.World, c Category, id string, pos gamemath.Vec2) physics.Handle {
	if h, ok := r.byID[c][id]; ok {
		if world.Contains(h) {
			return h
		}
		delete(r.byHandle[c], h)
		delete(r.byID[c], id)
	}

	p := r.profiles[c]
	h := world.CreateBody(physics.BodyDesc{
		Position:      pos,
		Radius:        p.Radius,
		Density:       p.Density,
		LinearDamping: p.LinearDamping,
		Friction:      p.Friction,
		Restitution:   p.Restitution,
		Tags:          []string{c.String()},
	})
	if h == 0 {
		// world already freed
		return 0
	}
	if owner, taken := r.byHandle[c][h]; taken {
		panic(fmt.Sprintf("sim: %s handle %d already owned by %q, cannot alias to %q", c, h, owner, id))
	}
	r.byID[c][id] = h
	r.byHandle[c][h] = id
	return h
}

// Reconcile removes bodies whose owning id is absent from live and drops both
// directions of their mapping. It returns the number of bodies removed.
func (r *RefTable) Reconcile(world *physics.World, c Category, live map[string]struct{}) int {
	removed := 0
	for id, h := range r.byID[c] {
		if _, ok := live[id]; ok {
			continue
		}
		world.RemoveBody(h)
		delete(r.byID[c], id)
		delete(r.byHandle[c], h)
		removed++
	}
	return removed
}

// Lookup returns the handle mapped to id.
func (r *RefTable) Lookup(c Category, id string) (physics.Handle, bool) {
	h, ok := r.byID[c][id]
	return h, ok
}

// IDFor returns the entity id owning handle h.
func (r *RefTable) IDFor(c Category, h physics.Handle) (string, bool) {
	id, ok := r.byHandle[c][h]
	return id, ok
}

func (r *RefTable) Len(c Category) int {
	return len(r.byID[c])
}

// IDs returns the mapped ids of category c in lexical order.
func (r *RefTable) IDs(c Category) []string {
	ids := make([]string, 0, len(r.byID[c]))
	for id := range r.byID[c] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clear removes every mapped body from world and empties the table.
func (r *RefTable) Clear(world *physics.World) {
	for c := range r.byID {
		for id, h := range r.byID[c] {
			world.RemoveBody(h)
			delete(r.byID[c], id)
		}
		clear(r.byHandle[c])
	}
}

// CheckInvariants verifies that both directions agree and that every mapped
// handle resolves to a live body.
func (r *RefTable) CheckInvariants(world *physics.World) error {
	for c := Category(0); c < categoryCount; c++ {
		if len(r.byID[c]) != len(r.byHandle[c]) {
			return fmt.Errorf("%s: %d ids but %d handles", c, len(r.byID[c]), len(r.byHandle[c]))
		}
		for id, h := range r.byID[c] {
			back, ok := r.byHandle[c][h]
			if !ok || back != id {
				return fmt.Errorf("%s: id %q -> handle %d -> %q", c, id, h, back)
			}
			if !world.Contains(h) {
				return fmt.Errorf("%s: id %q maps to dead handle %d", c, id, h)
			}
		}
	}
	return nil
}
