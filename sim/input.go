package sim

import "github.com/automoto/warband-mp/shared/state"

// ApplyInput stores in as the participant's Input Record, replacing whatever
// was there, then executes its move-unit instructions. Instructions naming a
// unit that is not in s are dropped. It returns the number of instructions
// applied.
func ApplyInput(s *state.State, participantID string, in state.Input) int {
	s.Inputs[participantID] = in

	applied := 0
	for _, inst := range in.Instructions {
		switch inst.Kind {
		case state.InstructionMoveUnit:
			u, ok := s.Units[inst.UnitID]
			if !ok {
				continue
			}
			u.Position = inst.Target
			s.Units[inst.UnitID] = u
			applied++
		}
	}
	return applied
}
