package sim

import (
	"encoding/binary"
	"image/color"
	"math"
	"math/rand/v2"

	"github.com/automoto/warband-mp/config"
	"github.com/automoto/warband-mp/shared/gamemath"
	"github.com/automoto/warband-mp/shared/state"
	"github.com/google/uuid"
	"lukechampine.com/blake3"
)

// Factory builds participants and their armies.
type Factory struct {
	cfg    config.Config
	spawns []gamemath.Vec2
	newID  func() string
}

type FactoryOption func(*Factory)

// WithSpawnPoints makes the first slots use fixed spawn points (e.g. from an
// arena map) before falling back to the X axis layout.
func WithSpawnPoints(points []gamemath.Vec2) FactoryOption {
	return func(f *Factory) {
		f.spawns = append([]gamemath.Vec2(nil), points...)
	}
}

// WithIDGenerator replaces the uuid generator for spawned units and soldiers.
func WithIDGenerator(fn func() string) FactoryOption {
	return func(f *Factory) {
		f.newID = fn
	}
}

func NewFactory(cfg config.Config, opts ...FactoryOption) *Factory {
	f := &Factory{
		cfg:   cfg,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateInitialState builds a state holding one participant (with army) per id.
// Duplicate ids are ignored; an empty roster gives an empty aggregate.
func CreateInitialState(cfg config.Config, ids []string) *state.State {
	return NewFactory(cfg).CreateInitialState(ids)
}

func (f *Factory) CreateInitialState(ids []string) *state.State {
	s := state.New()
	for _, id := range ids {
		f.EnsureParticipant(s, id)
	}
	return s
}

// EnsureParticipant adds participant id and its army to s unless it is already
// present. It reports whether anything was created, so replayed joins are
// harmless.
func (f *Factory) EnsureParticipant(s *state.State, id string) bool {
	if s.HasParticipant(id) {
		return false
	}

	slot := f.freeSlot(s)
	spawn := f.spawnPosition(slot)
	seed := ColorSeed(id)

	s.Participants[id] = state.Participant{
		ID:        id,
		Position:  spawn,
		Color:     PaletteColor(f.cfg.Palette, seed),
		ColorSeed: seed,
		Slot:      slot,
	}
	f.spawnArmy(s, id, spawn)
	return true
}

// freeSlot returns the lowest slot not taken by a participant in s.
func (f *Factory) freeSlot(s *state.State) int {
	taken := make(map[int]bool, len(s.Participants))
	for _, p := range s.Participants {
		taken[p.Slot] = true
	}
	slot := 0
	for taken[slot] {
		slot++
	}
	return slot
}

// spawnPosition places slots left to right from the spawn origin, wrapping to
// a new row before an army would cross the world edge. When the world is
// full, rows wrap back to the top.
func (f *Factory) spawnPosition(slot int) gamemath.Vec2 {
	if slot < len(f.spawns) {
		return f.spawns[slot]
	}
	sp := f.cfg.Spawn
	if sp.Spacing <= 0 {
		return gamemath.V(sp.OriginX, sp.OriginY)
	}

	margin := f.armyExtent() + edgeClearance
	perRow := fitCount(float64(f.cfg.World.Width)-margin-sp.OriginX, sp.Spacing)
	rows := fitCount(float64(f.cfg.World.Height)-margin-sp.OriginY, sp.Spacing)

	col, row := slot%perRow, (slot/perRow)%rows
	return gamemath.V(sp.OriginX+float64(col)*sp.Spacing, sp.OriginY+float64(row)*sp.Spacing)
}

// fitCount returns how many positions spaced by spacing fit in span, at
// least one.
func fitCount(span, spacing float64) int {
	if span <= 0 {
		return 1
	}
	return int(span/spacing) + 1
}

// edgeClearance keeps armies off the boundary walls.
const edgeClearance = 32

// soldierGrid returns the soldier pitch and grid shape of one unit.
func (f *Factory) soldierGrid() (pitch float64, cols, rows int) {
	army := f.cfg.Army
	pitch = math.Max(army.SoldierPitch, 2*f.cfg.Soldier.Radius)
	cols = int(math.Ceil(math.Sqrt(float64(army.SoldiersPerUnit))))
	if cols < 1 {
		cols = 1
	}
	rows = (army.SoldiersPerUnit + cols - 1) / cols
	return pitch, cols, rows
}

// armyExtent is the distance from a spawn point to the farthest body edge of
// its army.
func (f *Factory) armyExtent() float64 {
	pitch, cols, rows := f.soldierGrid()
	grid := pitch * float64(max(cols, rows)) / 2
	extent := f.cfg.Army.UnitRingRadius + grid + f.cfg.Soldier.Radius
	return math.Max(extent, f.cfg.Participant.Radius)
}

func (f *Factory) spawnArmy(s *state.State, ownerID string, spawn gamemath.Vec2) {
	army := f.cfg.Army
	if army.UnitsPerParticipant <= 0 {
		return
	}

	pitch, cols, rows := f.soldierGrid()

	for k := 0; k < army.UnitsPerParticipant; k++ {
		angle := 2 * math.Pi * float64(k) / float64(army.UnitsPerParticipant)
		unitPos := spawn.Add(gamemath.V(army.UnitRingRadius, 0).Rotate(angle))
		unitID := f.newID()
		s.Units[unitID] = state.Unit{ID: unitID, OwnerID: ownerID, Position: unitPos}

		for i := 0; i < army.SoldiersPerUnit; i++ {
			col, row := i%cols, i/cols
			offset := gamemath.V(
				(float64(col)-float64(cols-1)/2)*pitch,
				(float64(row)-float64(rows-1)/2)*pitch,
			)
			soldierID := f.newID()
			s.Soldiers[soldierID] = state.Soldier{
				ID:       soldierID,
				UnitID:   unitID,
				Position: unitPos.Add(offset),
			}
		}
	}
}

// ColorSeed derives the deterministic color seed for a participant id.
func ColorSeed(id string) uint64 {
	sum := blake3.Sum256([]byte(id))
	return binary.LittleEndian.Uint64(sum[:8])
}

// PaletteColor picks a palette entry with a PCG stream seeded by seed.
func PaletteColor(palette []color.RGBA, seed uint64) color.RGBA {
	if len(palette) == 0 {
		return color.RGBA{A: 255}
	}
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))
	return palette[rng.IntN(len(palette))]
}
