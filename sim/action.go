package sim

import (
	"fmt"

	"github.com/automoto/warband-mp/shared/state"
)

// Action is the closed set of commands a Simulation accepts. The set is sealed
// by an unexported method; Dispatch handles every member.
type Action interface {
	isAction()
}

// Move submits a participant's input for this tick.
type Move struct {
	ParticipantID string
	Input         state.Input
}

// Join adds a participant and its army if absent.
type Join struct {
	ParticipantID string
}

// Leave removes a participant and its input record.
type Leave struct {
	ParticipantID string
}

// Tick advances the simulation by one fixed step.
type Tick struct{}

func (Move) isAction()  {}
func (Join) isAction()  {}
func (Leave) isAction() {}
func (Tick) isAction()  {}

// Dispatch applies a to the simulation and reports whether it changed the
// state. Join of a present participant, Leave of an absent one and a Move from
// an unknown participant are no-ops.
func (s *Simulation) Dispatch(a Action) bool {
	switch a := a.(type) {
	case Move:
		if !s.state.HasParticipant(a.ParticipantID) {
			return false
		}
		ApplyInput(s.mutable(), a.ParticipantID, a.Input)
		return true
	case Join:
		if s.state.HasParticipant(a.ParticipantID) {
			return false
		}
		return s.factory.EnsureParticipant(s.mutable(), a.ParticipantID)
	case Leave:
		if !s.state.HasParticipant(a.ParticipantID) {
			return false
		}
		s.removeParticipant(a.ParticipantID)
		return true
	case Tick:
		s.simulate()
		return true
	default:
		panic(fmt.Sprintf("sim: unhandled action %T", a))
	}
}
