package sim

import (
	"testing"

	"github.com/automoto/warband-mp/config"
	"github.com/automoto/warband-mp/shared/gamemath"
	"github.com/automoto/warband-mp/shared/leveldata"
	"github.com/automoto/warband-mp/shared/state"
)

func newTestSimulation(cfg config.Config, ids ...string) *Simulation {
	s := New(cfg)
	for _, id := range ids {
		s.Dispatch(Join{ParticipantID: id})
	}
	return s
}

func TestSimulateMovesParticipantAlongInput(t *testing.T) {
	s := newTestSimulation(config.Default(), "p1", "p2")
	defer s.Close()

	before := s.State().Participants["p1"].Position.X
	s.Dispatch(Move{ParticipantID: "p1", Input: state.Input{MovingDirection: gamemath.V(1, 0)}})
	s.Dispatch(Tick{})

	after := s.State().Participants["p1"].Position.X
	if after <= before {
		t.Fatalf("p1 x = %f after tick, want > %f", after, before)
	}

	for i := 0; i < 10; i++ {
		s.Dispatch(Tick{})
	}
	if later := s.State().Participants["p1"].Position.X; later <= after {
		t.Fatalf("p1 stopped advancing under sustained input: %f -> %f", after, later)
	}
	if s.State().Tick != 11 {
		t.Fatalf("tick = %d, want 11", s.State().Tick)
	}
}

func TestPublishedSnapshotIsNeverMutated(t *testing.T) {
	s := newTestSimulation(config.Default(), "p1")
	defer s.Close()

	snap := s.State()
	pos := snap.Participants["p1"].Position
	unitID := snap.UnitsOwnedBy("p1")[0]
	unitPos := snap.Units[unitID].Position

	s.Dispatch(Move{ParticipantID: "p1", Input: state.Input{
		MovingDirection: gamemath.V(0, 1),
		Instructions:    []state.Instruction{state.MoveUnit(unitID, gamemath.V(1, 1))},
	}})
	s.Dispatch(Join{ParticipantID: "p2"})
	s.Dispatch(Tick{})

	if snap.Participants["p1"].Position != pos {
		t.Fatalf("snapshot participant moved")
	}
	if snap.Units[unitID].Position != unitPos {
		t.Fatalf("snapshot unit moved")
	}
	if _, ok := snap.Inputs["p1"]; ok {
		t.Fatalf("snapshot gained an input record")
	}
	if len(snap.Participants) != 1 {
		t.Fatalf("snapshot gained a participant")
	}
}

func TestUnitsAreNotMovedBySimulation(t *testing.T) {
	s := newTestSimulation(config.Default(), "p1")
	defer s.Close()
	units := s.State().Clone().Units

	for i := 0; i < 20; i++ {
		s.Dispatch(Tick{})
	}
	for id, u := range units {
		if s.State().Units[id].Position != u.Position {
			t.Fatalf("unit %s moved by simulation", id)
		}
	}
}

func TestMoveFromUnknownParticipantIgnored(t *testing.T) {
	s := newTestSimulation(config.Default(), "p1")
	defer s.Close()

	if s.Dispatch(Move{ParticipantID: "ghost", Input: state.Input{MovingDirection: gamemath.V(1, 0)}}) {
		t.Fatalf("move from unknown participant applied")
	}
	if _, ok := s.State().Inputs["ghost"]; ok {
		t.Fatalf("input record created for unknown participant")
	}
}

func TestLeaveWithoutCascadeOrphansArmy(t *testing.T) {
	cfg := config.Default()
	s := newTestSimulation(cfg, "p1", "p2")
	defer s.Close()
	s.Dispatch(Move{ParticipantID: "p2", Input: state.Input{}})
	s.Dispatch(Tick{})
	soldiers := len(s.State().Soldiers)

	if !s.Dispatch(Leave{ParticipantID: "p2"}) {
		t.Fatalf("leave reported no change")
	}
	if s.Dispatch(Leave{ParticipantID: "p2"}) {
		t.Fatalf("second leave reported a change")
	}
	st := s.State()
	if st.HasParticipant("p2") {
		t.Fatalf("p2 still present")
	}
	if _, ok := st.Inputs["p2"]; ok {
		t.Fatalf("p2 input record still present")
	}
	if len(st.Soldiers) != soldiers {
		t.Fatalf("soldiers = %d, want %d (no cascade)", len(st.Soldiers), soldiers)
	}

	s.Dispatch(Tick{})
	if _, ok := s.Refs().Lookup(CategoryParticipant, "p2"); ok {
		t.Fatalf("p2 body not reconciled")
	}
	if s.Refs().Len(CategorySoldier) != soldiers {
		t.Fatalf("orphan soldier bodies removed")
	}
}

func TestLeaveWithCascadeRemovesArmy(t *testing.T) {
	cfg := config.Default()
	cfg.Sim.CascadeLeave = true
	s := newTestSimulation(cfg, "p1", "p2")
	defer s.Close()
	s.Dispatch(Tick{})

	s.Dispatch(Leave{ParticipantID: "p2"})
	st := s.State()
	if n := len(st.UnitsOwnedBy("p2")); n != 0 {
		t.Fatalf("p2 still owns %d units", n)
	}
	want := cfg.Army.UnitsPerParticipant * cfg.Army.SoldiersPerUnit
	if len(st.Soldiers) != want {
		t.Fatalf("soldiers = %d, want %d", len(st.Soldiers), want)
	}

	s.Dispatch(Tick{})
	if got := s.Refs().Len(CategorySoldier); got != want {
		t.Fatalf("soldier bodies = %d, want %d", got, want)
	}
	if err := s.Refs().CheckInvariants(s.World()); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

func TestCloseFreesWorld(t *testing.T) {
	s := newTestSimulation(config.Default(), "p1")
	s.Dispatch(Tick{})
	s.Close()
	if !s.World().Freed() {
		t.Fatalf("world not freed")
	}
	if s.Refs().Len(CategoryParticipant) != 0 || s.Refs().Len(CategorySoldier) != 0 {
		t.Fatalf("refs not cleared")
	}
}

func TestArenaProvidesSpawnsAndWalls(t *testing.T) {
	cfg := config.Default()
	cfg.World.Bounded = false
	arena := &leveldata.Arena{
		Width:       800,
		Height:      600,
		Walls:       []leveldata.SolidRect{{X: 0, Y: 0, W: 800, H: 16}},
		SpawnPoints: []leveldata.SpawnPoint{{X: 400, Y: 300}},
	}
	s := New(cfg, WithArena(arena))
	defer s.Close()
	s.Dispatch(Join{ParticipantID: "p1"})

	if got := s.State().Participants["p1"].Position; got != gamemath.V(400, 300) {
		t.Fatalf("p1 spawned at %+v, want arena spawn", got)
	}
	if w, h := s.World().Size(); w != 800 || h != 600 {
		t.Fatalf("world size = %dx%d, want arena size", w, h)
	}

	// Past the arena's spawn points, fallback slots stay inside the arena.
	for _, id := range []string{"p2", "p3", "p4"} {
		s.Dispatch(Join{ParticipantID: id})
		p := s.State().Participants[id].Position
		if p.X <= 0 || p.Y <= 0 || p.X >= 800 || p.Y >= 600 {
			t.Fatalf("%s spawned at %+v, outside the 800x600 arena", id, p)
		}
	}
}

func TestSchedulerFixedSteps(t *testing.T) {
	sc := &Scheduler{Step: 0.01, MaxSteps: 3}
	if n := sc.Advance(0.005); n != 0 {
		t.Fatalf("half step gave %d steps", n)
	}
	if n := sc.Advance(0.005); n != 1 {
		t.Fatalf("accumulated step gave %d steps", n)
	}
	if n := sc.Advance(0.025); n != 2 {
		t.Fatalf("2.5 steps gave %d", n)
	}
	if n := sc.Advance(1); n != 3 {
		t.Fatalf("stall gave %d steps, want clamp 3", n)
	}
	if n := sc.Advance(0.001); n != 0 {
		t.Fatalf("backlog not dropped after clamp: %d", n)
	}
}

func TestDispatchPanicsOnForeignAction(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("nil action did not panic")
		}
	}()
	s := New(config.Default())
	defer s.Close()
	s.Dispatch(nil)
}
