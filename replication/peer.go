// Package replication runs one peer of a session. The host simulates and
// broadcasts the whole Logical State every tick; clients apply their own
// input locally for feedback, forward it to the host and replace their state
// with whatever the host last sent.
package replication

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/automoto/warband-mp/config"
	"github.com/automoto/warband-mp/input"
	"github.com/automoto/warband-mp/network"
	"github.com/automoto/warband-mp/shared/messages"
	"github.com/automoto/warband-mp/shared/protocol"
	"github.com/automoto/warband-mp/shared/state"
	"github.com/automoto/warband-mp/sim"
)

type Role int

const (
	RoleHost Role = iota
	RoleClient
)

func (r Role) String() string {
	if r == RoleHost {
		return "host"
	}
	return "client"
}

var ErrClosed = errors.New("replication: peer closed")

type remoteInput struct {
	from string
	msg  messages.InputMessage
}

// membership is a join or leave, kept in arrival order.
type membership struct {
	id     string
	joined bool
}

// inbox buffers everything transport callbacks deliver between ticks.
type inbox struct {
	members  []membership
	inputs   []remoteInput
	snapshot *messages.StateMessage
}

// Peer is a participant's replication state machine.
type Peer struct {
	cfg       config.Config
	role      Role
	id        string
	transport network.Transport
	source    input.Source

	inboxMu sync.Mutex
	inbox   inbox

	// tickMu serializes Tick and Close.
	tickMu sync.Mutex
	closed bool

	// host
	sim   *sim.Simulation
	sched *sim.Scheduler

	// client
	state       *state.State
	lastTick    uint64
	haveApplied bool
	seq         uint32
}

// NewHost starts a host peer that owns simulation s. The local participant
// is joined immediately.
func NewHost(cfg config.Config, t network.Transport, src input.Source, s *sim.Simulation) *Peer {
	p := &Peer{
		cfg:       cfg,
		role:      RoleHost,
		id:        t.LocalID(),
		transport: t,
		source:    src,
		sim:       s,
		sched:     sim.NewScheduler(cfg),
	}
	s.Dispatch(sim.Join{ParticipantID: p.id})
	p.attach()
	return p
}

// NewClient starts a client peer. Its state stays empty until the first
// snapshot from the host arrives.
func NewClient(cfg config.Config, t network.Transport, src input.Source) *Peer {
	p := &Peer{
		cfg:       cfg,
		role:      RoleClient,
		id:        t.LocalID(),
		transport: t,
		source:    src,
		state:     state.New(),
	}
	p.attach()
	return p
}

func (p *Peer) attach() {
	p.transport.OnPeerJoin(func(id string) {
		p.inboxMu.Lock()
		defer p.inboxMu.Unlock()
		p.inbox.members = append(p.inbox.members, membership{id: id, joined: true})
	})
	p.transport.OnPeerLeave(func(id string) {
		p.inboxMu.Lock()
		defer p.inboxMu.Unlock()
		p.inbox.members = append(p.inbox.members, membership{id: id})
	})
	p.transport.OnReceiveInput(func(from string, msg messages.InputMessage) {
		p.inboxMu.Lock()
		defer p.inboxMu.Unlock()
		p.inbox.inputs = append(p.inbox.inputs, remoteInput{from: from, msg: msg})
	})
	p.transport.OnReceiveState(func(msg messages.StateMessage) {
		p.inboxMu.Lock()
		defer p.inboxMu.Unlock()
		if p.cfg.Net.DropStaleSnapshots && p.inbox.snapshot != nil && msg.Tick < p.inbox.snapshot.Tick {
			return
		}
		p.inbox.snapshot = &msg
	})
}

func (p *Peer) drain() inbox {
	p.inboxMu.Lock()
	defer p.inboxMu.Unlock()
	in := p.inbox
	p.inbox = inbox{}
	return in
}

func (p *Peer) Role() Role { return p.role }
func (p *Peer) ID() string { return p.id }

// State returns the latest Logical State. Callers must treat it as read-only.
func (p *Peer) State() *state.State {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()
	if p.role == RoleHost {
		if p.closed {
			return nil
		}
		return p.sim.State()
	}
	return p.state
}

// Tick advances the peer by dt seconds of wall time. Within a tick, input is
// always applied before the physics sync, and the physics sync always runs
// before the broadcast.
func (p *Peer) Tick(dt float64) error {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()
	if p.closed {
		return ErrClosed
	}

	if p.role == RoleHost {
		return p.tickHost(dt)
	}
	return p.tickClient()
}

func (p *Peer) tickHost(dt float64) error {
	in := p.drain()

	for _, m := range in.members {
		if !m.joined {
			if p.sim.Dispatch(sim.Leave{ParticipantID: m.id}) {
				log.Printf("[host] participant %s left", m.id)
			}
			continue
		}
		if p.sim.Dispatch(sim.Join{ParticipantID: m.id}) {
			log.Printf("[host] participant %s joined", m.id)
		}
		if leftLater(in.members, m.id) {
			continue
		}
		// Late joiners get the current state now, not next tick.
		if err := p.send(m.id); err != nil {
			log.Printf("[host] initial snapshot for %s: %v", m.id, err)
		}
	}
	for _, ri := range in.inputs {
		p.sim.Dispatch(sim.Move{ParticipantID: ri.from, Input: ri.msg.Input})
	}

	p.sim.Dispatch(sim.Move{ParticipantID: p.id, Input: input.Capture(p.source)})

	steps := p.sched.Advance(dt)
	for i := 0; i < steps; i++ {
		p.sim.Dispatch(sim.Tick{})
	}
	if steps == 0 {
		return nil
	}
	return p.send("")
}

// leftLater reports whether the last membership event for id is a leave.
func leftLater(members []membership, id string) bool {
	for i := len(members) - 1; i >= 0; i-- {
		if members[i].id == id {
			return !members[i].joined
		}
	}
	return false
}

func (p *Peer) send(target string) error {
	msg, err := protocol.EncodeState(p.sim.State(), p.cfg.Net.Compress)
	if err != nil {
		return err
	}
	if err := p.transport.SendState(msg, target); err != nil {
		return fmt.Errorf("send state: %w", err)
	}
	return nil
}

func (p *Peer) tickClient() error {
	in := p.drain()

	if in.snapshot != nil {
		p.applySnapshot(*in.snapshot)
	}

	local := input.Capture(p.source)
	next := p.state.Clone()
	sim.ApplyInput(next, p.id, local)
	p.state = next

	p.seq++
	err := p.transport.SendInput(messages.InputMessage{
		ParticipantID: p.id,
		Sequence:      p.seq,
		Input:         local,
	})
	if err != nil && !errors.Is(err, network.ErrNotConnected) {
		return fmt.Errorf("send input: %w", err)
	}
	return nil
}

func (p *Peer) applySnapshot(msg messages.StateMessage) {
	if p.cfg.Net.DropStaleSnapshots && p.haveApplied && msg.Tick < p.lastTick {
		return
	}
	st, err := protocol.DecodeState(msg)
	if err != nil {
		log.Printf("[client] dropping snapshot %d: %v", msg.Tick, err)
		return
	}
	p.state = st
	p.lastTick = msg.Tick
	p.haveApplied = true
}

// Close detaches input, frees the physics world and closes the transport.
// Once it returns, none of those resources are in use.
func (p *Peer) Close() error {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	p.source.Close()
	if p.sim != nil {
		p.sim.Close()
	}
	if err := p.transport.Close(); err != nil {
		return fmt.Errorf("close transport: %w", err)
	}
	return nil
}
