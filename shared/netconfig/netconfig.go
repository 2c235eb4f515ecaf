// Package netconfig defines lightweight identifiers shared between peers. It
// must have zero dependencies on any graphics library so the peer binary
// stays headless.
package netconfig

// ProtocolVersion is sent in every JoinRequest. A host with a non-empty
// required version rejects clients that do not match.
const ProtocolVersion = "1"

// ActionID represents a logical input action.
type ActionID int

const (
	ActionNone ActionID = iota
	ActionMoveLeft
	ActionMoveRight
	ActionMoveUp
	ActionMoveDown
	ActionRun
	ActionCount // Must be last - used for array sizing
)

var actionNames = [ActionCount]string{
	ActionNone:      "none",
	ActionMoveLeft:  "move_left",
	ActionMoveRight: "move_right",
	ActionMoveUp:    "move_up",
	ActionMoveDown:  "move_down",
	ActionRun:       "run",
}

func (a ActionID) String() string {
	if a < 0 || a >= ActionCount {
		return "unknown"
	}
	return actionNames[a]
}
