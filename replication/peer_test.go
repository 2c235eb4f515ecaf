package replication

import (
	"errors"
	"testing"

	"github.com/automoto/warband-mp/config"
	"github.com/automoto/warband-mp/input"
	"github.com/automoto/warband-mp/network"
	"github.com/automoto/warband-mp/shared/gamemath"
	"github.com/automoto/warband-mp/shared/netconfig"
	"github.com/automoto/warband-mp/shared/protocol"
	"github.com/automoto/warband-mp/shared/state"
	"github.com/automoto/warband-mp/sim"
)

type session struct {
	cfg        config.Config
	hub        *network.LocalHub
	sim        *sim.Simulation
	host       *Peer
	client     *Peer
	hostKeys   *input.KeyTracker
	clientKeys *input.KeyTracker
}

func newSession(t *testing.T) *session {
	t.Helper()
	cfg := config.Default()
	ss := &session{cfg: cfg, hub: network.NewLocalHub()}

	ht, err := ss.hub.Host("host")
	if err != nil {
		t.Fatal(err)
	}
	ss.hostKeys = input.NewKeyTracker()
	ss.sim = sim.New(cfg)
	ss.host = NewHost(cfg, ht, ss.hostKeys, ss.sim)

	ct, err := ss.hub.Connect("c1")
	if err != nil {
		t.Fatal(err)
	}
	ss.clientKeys = input.NewKeyTracker()
	ss.client = NewClient(cfg, ct, ss.clientKeys)

	t.Cleanup(func() {
		_ = ss.client.Close()
		_ = ss.host.Close()
	})
	return ss
}

// round runs one host tick then one client tick.
func (ss *session) round(t *testing.T) {
	t.Helper()
	ss.roundWith(t, ss.client)
}

func (ss *session) roundWith(t *testing.T, client *Peer) {
	t.Helper()
	if err := ss.host.Tick(ss.cfg.FixedStep()); err != nil {
		t.Fatalf("host tick: %v", err)
	}
	if err := client.Tick(ss.cfg.FixedStep()); err != nil {
		t.Fatalf("client tick: %v", err)
	}
}

func TestHostJoinsItselfOnStart(t *testing.T) {
	ss := newSession(t)
	st := ss.host.State()
	if !st.HasParticipant("host") {
		t.Fatalf("host participant missing")
	}
	if ss.host.Role() != RoleHost || ss.client.Role() != RoleClient {
		t.Fatalf("roles = %v, %v", ss.host.Role(), ss.client.Role())
	}
}

func TestClientReceivesStateAfterJoin(t *testing.T) {
	ss := newSession(t)
	if len(ss.client.State().Participants) != 0 {
		t.Fatalf("client state not empty before first snapshot")
	}

	ss.round(t)

	st := ss.client.State()
	if !st.HasParticipant("host") || !st.HasParticipant("c1") {
		t.Fatalf("client participants = %v", st.ParticipantIDs())
	}
	if st.Tick != ss.host.State().Tick {
		t.Fatalf("client tick %d, host tick %d", st.Tick, ss.host.State().Tick)
	}
	want := ss.cfg.Army.UnitsPerParticipant * 2
	if len(st.Units) != want {
		t.Fatalf("units = %d, want %d", len(st.Units), want)
	}
}

func TestClientInputMovesParticipantOnHost(t *testing.T) {
	ss := newSession(t)
	ss.round(t)
	before := ss.host.State().Participants["c1"].Position

	ss.clientKeys.Press(netconfig.ActionMoveRight)
	for i := 0; i < 10; i++ {
		ss.round(t)
	}

	hostState := ss.host.State()
	if got := hostState.Inputs["c1"].MovingDirection; got != gamemath.V(1, 0) {
		t.Fatalf("host input record = %+v", got)
	}
	after := hostState.Participants["c1"].Position
	if after.X <= before.X {
		t.Fatalf("c1 x %v -> %v, want increase", before.X, after.X)
	}
	if got := ss.client.State().Participants["c1"].Position.X; got <= before.X {
		t.Fatalf("client view x = %v, want > %v", got, before.X)
	}
}

func TestHostInputMovesHost(t *testing.T) {
	ss := newSession(t)
	before := ss.host.State().Participants["host"].Position
	ss.hostKeys.Press(netconfig.ActionMoveDown)
	for i := 0; i < 5; i++ {
		ss.round(t)
	}
	if got := ss.host.State().Participants["host"].Position.Y; got <= before.Y {
		t.Fatalf("host y %v -> %v, want increase", before.Y, got)
	}
}

func TestMoveUnitInstructionAppliesLocallyThenOnHost(t *testing.T) {
	ss := newSession(t)
	ss.round(t)

	units := ss.client.State().UnitsOwnedBy("c1")
	if len(units) == 0 {
		t.Fatalf("c1 owns no units")
	}
	target := gamemath.V(1234, 567)
	ss.clientKeys.Click(state.MoveUnit(units[0], target))

	if err := ss.client.Tick(ss.cfg.FixedStep()); err != nil {
		t.Fatal(err)
	}
	if got := ss.client.State().Units[units[0]].Position; got != target {
		t.Fatalf("client unit = %+v, want %+v", got, target)
	}

	ss.round(t)
	if got := ss.host.State().Units[units[0]].Position; got != target {
		t.Fatalf("host unit = %+v, want %+v", got, target)
	}
	if got := ss.client.State().Units[units[0]].Position; got != target {
		t.Fatalf("client unit after snapshot = %+v", got)
	}
}

func TestClientLeaveRemovesParticipant(t *testing.T) {
	ss := newSession(t)
	ss.round(t)

	if err := ss.client.Close(); err != nil {
		t.Fatal(err)
	}
	if err := ss.client.Tick(0); !errors.Is(err, ErrClosed) {
		t.Fatalf("tick after close: %v", err)
	}
	if !ss.clientKeys.Closed() {
		t.Fatalf("input source still attached")
	}

	if err := ss.host.Tick(ss.cfg.FixedStep()); err != nil {
		t.Fatal(err)
	}
	st := ss.host.State()
	if st.HasParticipant("c1") {
		t.Fatalf("c1 still present")
	}
	if _, ok := st.Inputs["c1"]; ok {
		t.Fatalf("c1 input record still present")
	}
	if _, ok := ss.sim.Refs().Lookup(sim.CategoryParticipant, "c1"); ok {
		t.Fatalf("c1 body still mapped")
	}
}

func TestHostCloseFreesWorld(t *testing.T) {
	ss := newSession(t)
	ss.round(t)

	if err := ss.host.Close(); err != nil {
		t.Fatal(err)
	}
	if err := ss.host.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !ss.sim.World().Freed() {
		t.Fatalf("physics world not freed")
	}
	if !ss.hostKeys.Closed() {
		t.Fatalf("input source still attached")
	}
	if err := ss.host.Tick(ss.cfg.FixedStep()); !errors.Is(err, ErrClosed) {
		t.Fatalf("tick after close: %v", err)
	}
}

func TestClientDropsStaleSnapshots(t *testing.T) {
	for _, drop := range []bool{true, false} {
		cfg := config.Default()
		cfg.Net.DropStaleSnapshots = drop

		hub := network.NewLocalHub()
		ht, _ := hub.Host("host")
		ct, _ := hub.Connect("c1")
		client := NewClient(cfg, ct, input.NewKeyTracker())

		send := func(tick uint64) {
			s := state.New()
			s.Tick = tick
			msg, err := protocol.EncodeState(s, false)
			if err != nil {
				t.Fatal(err)
			}
			if err := ht.SendState(msg, ""); err != nil {
				t.Fatal(err)
			}
			if err := client.Tick(0); err != nil {
				t.Fatal(err)
			}
		}

		send(5)
		send(3)
		want := uint64(3)
		if drop {
			want = 5
		}
		if got := client.State().Tick; got != want {
			t.Fatalf("drop=%v: tick = %d, want %d", drop, got, want)
		}
		_ = client.Close()
	}
}

func TestClientIgnoresCorruptSnapshot(t *testing.T) {
	cfg := config.Default()
	hub := network.NewLocalHub()
	ht, _ := hub.Host("host")
	ct, _ := hub.Connect("c1")
	client := NewClient(cfg, ct, input.NewKeyTracker())
	defer client.Close()

	s := state.New()
	s.Tick = 9
	msg, err := protocol.EncodeState(s, false)
	if err != nil {
		t.Fatal(err)
	}
	msg.Digest = "00"
	if err := ht.SendState(msg, ""); err != nil {
		t.Fatal(err)
	}
	if err := client.Tick(0); err != nil {
		t.Fatal(err)
	}
	if client.State().Tick != 0 {
		t.Fatalf("corrupt snapshot applied")
	}
}

func TestSchedulerGatesBroadcast(t *testing.T) {
	ss := newSession(t)
	// Join snapshot is sent regardless of elapsed time.
	if err := ss.host.Tick(0); err != nil {
		t.Fatal(err)
	}
	if err := ss.client.Tick(0); err != nil {
		t.Fatal(err)
	}
	if ss.host.State().Tick != 0 {
		t.Fatalf("host simulated without elapsed time")
	}
	if !ss.client.State().HasParticipant("c1") {
		t.Fatalf("join snapshot not delivered")
	}
}

func TestClientKeepsNewestSnapshotWithinOneTick(t *testing.T) {
	for _, drop := range []bool{true, false} {
		cfg := config.Default()
		cfg.Net.DropStaleSnapshots = drop

		hub := network.NewLocalHub()
		ht, _ := hub.Host("host")
		ct, _ := hub.Connect("c1")
		client := NewClient(cfg, ct, input.NewKeyTracker())

		for _, tick := range []uint64{5, 3} {
			s := state.New()
			s.Tick = tick
			msg, err := protocol.EncodeState(s, false)
			if err != nil {
				t.Fatal(err)
			}
			if err := ht.SendState(msg, ""); err != nil {
				t.Fatal(err)
			}
		}
		if err := client.Tick(0); err != nil {
			t.Fatal(err)
		}

		want := uint64(3)
		if drop {
			want = 5
		}
		if got := client.State().Tick; got != want {
			t.Fatalf("drop=%v: tick after receiving 5 then 3 in one frame = %d, want %d", drop, got, want)
		}
		_ = client.Close()
	}
}

func TestJoinAndLeaveInOneFrame(t *testing.T) {
	ss := newSession(t)

	ct, err := ss.hub.Connect("c2")
	if err != nil {
		t.Fatal(err)
	}
	if err := ct.Close(); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err := ss.host.Tick(ss.cfg.FixedStep()); err != nil {
			t.Fatal(err)
		}
	}

	st := ss.host.State()
	if st.HasParticipant("c2") {
		t.Fatalf("participants = %v, c2 left before the host ticked", st.ParticipantIDs())
	}
	if !st.HasParticipant("c1") || !st.HasParticipant("host") {
		t.Fatalf("participants = %v", st.ParticipantIDs())
	}
	if n := ss.sim.Refs().Len(sim.CategoryParticipant); n != 2 {
		t.Fatalf("participant bodies = %d, want 2", n)
	}
}

func TestLeaveThenRejoinInOneFrame(t *testing.T) {
	ss := newSession(t)
	ss.round(t)

	if err := ss.client.Close(); err != nil {
		t.Fatal(err)
	}
	ct, err := ss.hub.Connect("c1")
	if err != nil {
		t.Fatal(err)
	}
	again := NewClient(ss.cfg, ct, input.NewKeyTracker())
	defer again.Close()

	ss.roundWith(t, again)
	if !ss.host.State().HasParticipant("c1") {
		t.Fatalf("rejoined participant missing")
	}
	if !again.State().HasParticipant("c1") {
		t.Fatalf("rejoined client got no snapshot")
	}
}
