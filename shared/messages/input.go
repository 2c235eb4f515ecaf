package messages

import "github.com/automoto/warband-mp/shared/state"

// InputMessage is sent from a client to the host each tick with the
// participant's latest Input Record.
type InputMessage struct {
	ParticipantID string
	Sequence      uint32 // incrementing per sender, for diagnostics
	Input         state.Input
}
