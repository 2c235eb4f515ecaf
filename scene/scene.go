// Package scene mirrors Logical State snapshots into a donburi world for
// rendering. It reads state and never writes it back.
package scene

import (
	"github.com/automoto/warband-mp/config"
	"github.com/automoto/warband-mp/shared/gamemath"
	"github.com/automoto/warband-mp/shared/state"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/filter"
)

type Kind int

const (
	KindParticipant Kind = iota
	KindUnit
	KindSoldier
)

func (k Kind) tag() donburi.IComponentType {
	switch k {
	case KindUnit:
		return UnitTag
	case KindSoldier:
		return SoldierTag
	default:
		return ParticipantTag
	}
}

type key struct {
	kind Kind
	id   string
}

const unitMarkerRadius = 4

var smoothingQuery = donburi.NewQuery(filter.Contains(Smoothing))

// Scene owns the render-side world.
type Scene struct {
	cfg      config.Config
	world    donburi.World
	entities map[key]donburi.Entity
}

func New(cfg config.Config) *Scene {
	return &Scene{
		cfg:      cfg,
		world:    donburi.NewWorld(),
		entities: make(map[key]donburi.Entity),
	}
}

func (s *Scene) World() donburi.World {
	return s.world
}

// Apply brings the world in line with st. Entities that are no longer in st
// are removed.
func (s *Scene) Apply(st *state.State) {
	seen := make(map[key]struct{}, len(s.entities))

	for id, p := range st.Participants {
		k := key{KindParticipant, id}
		seen[k] = struct{}{}
		s.upsert(k, p.Position, AppearanceData{
			ID:      id,
			OwnerID: id,
			Color:   p.Color,
			Radius:  s.cfg.Participant.Radius,
		})
	}
	for id, u := range st.Units {
		k := key{KindUnit, id}
		seen[k] = struct{}{}
		s.upsert(k, u.Position, AppearanceData{
			ID:      id,
			OwnerID: u.OwnerID,
			Color:   st.Participants[u.OwnerID].Color,
			Radius:  unitMarkerRadius,
		})
	}
	for id, sd := range st.Soldiers {
		k := key{KindSoldier, id}
		seen[k] = struct{}{}
		owner := st.Units[sd.UnitID].OwnerID
		s.upsert(k, sd.Position, AppearanceData{
			ID:      id,
			OwnerID: owner,
			Color:   st.Participants[owner].Color,
			Radius:  s.cfg.Soldier.Radius,
		})
	}

	for k, e := range s.entities {
		if _, ok := seen[k]; ok {
			continue
		}
		if s.world.Valid(e) {
			s.world.Remove(e)
		}
		delete(s.entities, k)
	}
}

func (s *Scene) upsert(k key, pos gamemath.Vec2, look AppearanceData) {
	e, ok := s.entities[k]
	if !ok || !s.world.Valid(e) {
		e = s.world.Create(k.kind.tag(), Position, Appearance, Smoothing)
		s.entities[k] = e
		entry := s.world.Entry(e)
		Position.Set(entry, &PositionData{X: pos.X, Y: pos.Y})
		Appearance.Set(entry, &look)
		Smoothing.Set(entry, &SmoothingData{TargetX: pos.X, TargetY: pos.Y})
		return
	}

	entry := s.world.Entry(e)
	Appearance.Set(entry, &look)

	cur := Position.Get(entry)
	sm := Smoothing.Get(entry)
	if sm.TargetX == pos.X && sm.TargetY == pos.Y {
		return
	}
	sm.TargetX, sm.TargetY = pos.X, pos.Y

	// Units are rally points: they jump.
	if !s.cfg.Smoothing.Enabled || s.cfg.Smoothing.Duration <= 0 || k.kind == KindUnit {
		cur.X, cur.Y = pos.X, pos.Y
		sm.X, sm.Y = nil, nil
		return
	}
	d := s.cfg.Smoothing.Duration
	sm.X = gween.New(float32(cur.X), float32(pos.X), d, ease.Linear)
	sm.Y = gween.New(float32(cur.Y), float32(pos.Y), d, ease.Linear)
}

// Update advances position smoothing by dt seconds.
func (s *Scene) Update(dt float64) {
	smoothingQuery.Each(s.world, func(entry *donburi.Entry) {
		sm := Smoothing.Get(entry)
		if !sm.active() {
			return
		}
		pos := Position.Get(entry)

		x, doneX := sm.X.Update(float32(dt))
		y, doneY := sm.Y.Update(float32(dt))
		pos.X, pos.Y = float64(x), float64(y)

		if doneX && doneY {
			pos.X, pos.Y = sm.TargetX, sm.TargetY
			sm.X, sm.Y = nil, nil
		}
	})
}

// PositionOf returns the rendered position of an entity.
func (s *Scene) PositionOf(kind Kind, id string) (gamemath.Vec2, bool) {
	e, ok := s.entities[key{kind, id}]
	if !ok || !s.world.Valid(e) {
		return gamemath.Vec2{}, false
	}
	p := Position.Get(s.world.Entry(e))
	return gamemath.V(p.X, p.Y), true
}

// AppearanceOf returns the appearance of an entity.
func (s *Scene) AppearanceOf(kind Kind, id string) (AppearanceData, bool) {
	e, ok := s.entities[key{kind, id}]
	if !ok || !s.world.Valid(e) {
		return AppearanceData{}, false
	}
	return *Appearance.Get(s.world.Entry(e)), true
}

// Count returns how many entities of kind are in the scene.
func (s *Scene) Count(kind Kind) int {
	n := 0
	for k := range s.entities {
		if k.kind == kind {
			n++
		}
	}
	return n
}
