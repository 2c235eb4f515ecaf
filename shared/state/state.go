// Package state defines the Logical State: the single authoritative aggregate
// of participants, units, soldiers and input records for one tick. It is plain
// data so it can be cloned, encoded and handed to rendering without sharing
// mutable structure.
package state

import (
	"image/color"
	"sort"

	"github.com/automoto/warband-mp/shared/gamemath"
)

// Participant is a connected peer's in-game controller.
type Participant struct {
	ID        string
	Position  gamemath.Vec2
	Color     color.RGBA
	ColorSeed uint64
	Slot      int // spawn slot along the X axis
}

// Unit is a rally point owned by one participant. Its position only changes
// through explicit instructions, never through simulation.
type Unit struct {
	ID       string
	OwnerID  string
	Position gamemath.Vec2
}

// Soldier belongs to one unit and steers toward it every tick.
type Soldier struct {
	ID       string
	UnitID   string
	Position gamemath.Vec2
}

type InstructionKind uint8

const (
	InstructionNone InstructionKind = iota
	InstructionMoveUnit
)

func (k InstructionKind) String() string {
	switch k {
	case InstructionMoveUnit:
		return "move_unit"
	default:
		return "none"
	}
}

// Instruction is a discrete command queued by input capture.
type Instruction struct {
	Kind   InstructionKind
	UnitID string
	Target gamemath.Vec2
}

// MoveUnit builds an instruction that relocates unitID to target.
func MoveUnit(unitID string, target gamemath.Vec2) Instruction {
	return Instruction{Kind: InstructionMoveUnit, UnitID: unitID, Target: target}
}

// Input is the per-participant Input Record: the last movement direction (a
// unit vector or zero) and the instructions submitted with it.
type Input struct {
	MovingDirection gamemath.Vec2
	Running         bool
	Instructions    []Instruction
}

func (in Input) clone() Input {
	if in.Instructions != nil {
		in.Instructions = append([]Instruction(nil), in.Instructions...)
	}
	return in
}

// State is the Logical State. All maps are keyed by globally unique ids.
type State struct {
	Tick         uint64
	Participants map[string]Participant
	Units        map[string]Unit
	Soldiers     map[string]Soldier
	Inputs       map[string]Input
}

func New() *State {
	return &State{
		Participants: make(map[string]Participant),
		Units:        make(map[string]Unit),
		Soldiers:     make(map[string]Soldier),
		Inputs:       make(map[string]Input),
	}
}

// Normalize replaces nil maps with empty ones. Decoders call it so an empty
// aggregate round-trips into a usable value.
func (s *State) Normalize() {
	if s.Participants == nil {
		s.Participants = make(map[string]Participant)
	}
	if s.Units == nil {
		s.Units = make(map[string]Unit)
	}
	if s.Soldiers == nil {
		s.Soldiers = make(map[string]Soldier)
	}
	if s.Inputs == nil {
		s.Inputs = make(map[string]Input)
	}
}

// Clone returns an independent copy. Mutating the copy never affects s, so a
// snapshot handed to a reader stays valid while the next tick is built.
func (s *State) Clone() *State {
	c := &State{
		Tick:         s.Tick,
		Participants: make(map[string]Participant, len(s.Participants)),
		Units:        make(map[string]Unit, len(s.Units)),
		Soldiers:     make(map[string]Soldier, len(s.Soldiers)),
		Inputs:       make(map[string]Input, len(s.Inputs)),
	}
	for id, p := range s.Participants {
		c.Participants[id] = p
	}
	for id, u := range s.Units {
		c.Units[id] = u
	}
	for id, so := range s.Soldiers {
		c.Soldiers[id] = so
	}
	for id, in := range s.Inputs {
		c.Inputs[id] = in.clone()
	}
	return c
}

func (s *State) HasParticipant(id string) bool {
	_, ok := s.Participants[id]
	return ok
}

// ParticipantIDs returns participant ids in lexical order.
func (s *State) ParticipantIDs() []string {
	return sortedKeys(s.Participants)
}

// SoldierIDs returns soldier ids in lexical order.
func (s *State) SoldierIDs() []string {
	return sortedKeys(s.Soldiers)
}

// UnitsOwnedBy returns the ids of units owned by participant id, sorted.
func (s *State) UnitsOwnedBy(id string) []string {
	var out []string
	for uid, u := range s.Units {
		if u.OwnerID == id {
			out = append(out, uid)
		}
	}
	sort.Strings(out)
	return out
}

// SoldiersOf returns the ids of soldiers belonging to unit id, sorted.
func (s *State) SoldiersOf(unitID string) []string {
	var out []string
	for sid, so := range s.Soldiers {
		if so.UnitID == unitID {
			out = append(out, sid)
		}
	}
	sort.Strings(out)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
