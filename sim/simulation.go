// Package sim is the host-authoritative simulation: it builds the initial
// state, routes inputs into it, pushes it through the physics world and reads
// the next state back out.
package sim

import (
	"github.com/automoto/warband-mp/config"
	"github.com/automoto/warband-mp/physics"
	"github.com/automoto/warband-mp/shared/gamemath"
	"github.com/automoto/warband-mp/shared/leveldata"
	"github.com/automoto/warband-mp/shared/state"
)

const wallThickness = 16

// Simulation owns the physics world, the reference table and the current
// Logical State. Only the tick loop may call into it.
type Simulation struct {
	cfg     config.Config
	world   *physics.World
	refs    *RefTable
	factory *Factory
	state   *state.State
	step    float64

	// published is set once the current state has been handed out; the next
	// mutation then works on a copy.
	published bool
}

type Option func(*simOptions)

type simOptions struct {
	arena       *leveldata.Arena
	factoryOpts []FactoryOption
	initial     *state.State
}

// WithArena adds the arena's walls to the world and uses its spawn points.
func WithArena(a *leveldata.Arena) Option {
	return func(o *simOptions) {
		o.arena = a
	}
}

func WithFactoryOptions(opts ...FactoryOption) Option {
	return func(o *simOptions) {
		o.factoryOpts = append(o.factoryOpts, opts...)
	}
}

// WithInitialState starts from a copy of st instead of an empty state.
func WithInitialState(st *state.State) Option {
	return func(o *simOptions) {
		o.initial = st
	}
}

func New(cfg config.Config, opts ...Option) *Simulation {
	var o simOptions
	for _, opt := range opts {
		opt(&o)
	}

	wc := cfg.World
	if o.arena != nil && o.arena.Width > 0 && o.arena.Height > 0 {
		wc.Width, wc.Height = o.arena.Width, o.arena.Height
	}
	world := physics.NewWorld(wc.Width, wc.Height, wc.CellSize, wc.MaxSpeed)
	if wc.Bounded {
		world.AddBounds(wallThickness)
	}

	factoryOpts := o.factoryOpts
	if o.arena != nil {
		for _, r := range o.arena.Walls {
			world.AddWall(r.X, r.Y, r.W, r.H)
		}
		spawns := make([]gamemath.Vec2, 0, len(o.arena.SpawnPoints))
		for _, sp := range o.arena.SpawnPoints {
			spawns = append(spawns, gamemath.V(sp.X, sp.Y))
		}
		factoryOpts = append([]FactoryOption{WithSpawnPoints(spawns)}, factoryOpts...)
	}

	// Fallback spawn rows are laid out inside the world actually built.
	fcfg := cfg
	fcfg.World = wc

	st := state.New()
	if o.initial != nil {
		st = o.initial.Clone()
		st.Normalize()
	}

	return &Simulation{
		cfg:     cfg,
		world:   world,
		refs:    NewRefTable(cfg),
		factory: NewFactory(fcfg, factoryOpts...),
		state:   st,
		step:    cfg.FixedStep(),
	}
}

// State returns the current snapshot. Callers must treat it as read-only; the
// simulation never mutates a snapshot after handing it out.
func (s *Simulation) State() *state.State {
	s.published = true
	return s.state
}

func (s *Simulation) World() *physics.World {
	return s.world
}

func (s *Simulation) Refs() *RefTable {
	return s.refs
}

func (s *Simulation) Factory() *Factory {
	return s.factory
}

func (s *Simulation) mutable() *state.State {
	if s.published {
		s.state = s.state.Clone()
		s.published = false
	}
	return s.state
}

// simulate runs one fixed step: logical state -> world, step, world -> next
// state.
func (s *Simulation) simulate() {
	cur := s.state
	SyncToWorld(s.world, cur, s.refs, s.cfg)
	s.world.Step(s.step)
	next := SyncFromWorld(s.world, s.refs, cur)
	next.Tick = cur.Tick + 1
	s.state = next
	s.published = false
}

func (s *Simulation) removeParticipant(id string) {
	st := s.mutable()
	delete(st.Participants, id)
	delete(st.Inputs, id)
	if !s.cfg.Sim.CascadeLeave {
		return
	}
	for _, uid := range st.UnitsOwnedBy(id) {
		for _, sid := range st.SoldiersOf(uid) {
			delete(st.Soldiers, sid)
		}
		delete(st.Units, uid)
	}
}

// Close releases the physics world. The simulation must not be used after.
func (s *Simulation) Close() {
	s.refs.Clear(s.world)
	s.world.Free()
}

// Scheduler turns variable frame times into whole fixed steps.
type Scheduler struct {
	Step     float64
	MaxSteps int
	acc      float64
}

func NewScheduler(cfg config.Config) *Scheduler {
	return &Scheduler{Step: cfg.FixedStep(), MaxSteps: cfg.Sim.MaxStepsPerTick}
}

// Advance accumulates dt and returns how many fixed steps are due. When more
// than MaxSteps are due the rest of the backlog is dropped.
func (sc *Scheduler) Advance(dt float64) int {
	if sc.Step <= 0 || dt <= 0 {
		return 0
	}
	sc.acc += dt
	n := int((sc.acc + 1e-9) / sc.Step)
	if sc.MaxSteps > 0 && n > sc.MaxSteps {
		n = sc.MaxSteps
		sc.acc = 0
		return n
	}
	sc.acc -= float64(n) * sc.Step
	if sc.acc < 0 {
		sc.acc = 0
	}
	return n
}
