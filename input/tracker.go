// Package input turns key state and click events into Input Records. The
// KeyTracker is owned by whoever drives the tick loop and must be closed with
// it; there is no package-level key state.
package input

import (
	"sync"

	"github.com/automoto/warband-mp/shared/gamemath"
	"github.com/automoto/warband-mp/shared/netconfig"
	"github.com/automoto/warband-mp/shared/state"
)

// Source is what the tick loop reads input from once per tick.
type Source interface {
	IsDown(a netconfig.ActionID) bool
	DrainInstructions() []state.Instruction
	Close()
}

// KeyTracker records which logical actions are held and queues discrete
// instructions. Event handlers may call it from any goroutine.
type KeyTracker struct {
	mu     sync.Mutex
	down   [netconfig.ActionCount]bool
	queue  []state.Instruction
	closed bool
}

func NewKeyTracker() *KeyTracker {
	return &KeyTracker{}
}

func (k *KeyTracker) Press(a netconfig.ActionID) {
	k.set(a, true)
}

func (k *KeyTracker) Release(a netconfig.ActionID) {
	k.set(a, false)
}

func (k *KeyTracker) set(a netconfig.ActionID, down bool) {
	if a <= netconfig.ActionNone || a >= netconfig.ActionCount {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return
	}
	k.down[a] = down
}

func (k *KeyTracker) IsDown(a netconfig.ActionID) bool {
	if a <= netconfig.ActionNone || a >= netconfig.ActionCount {
		return false
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.down[a]
}

// Click queues an instruction for the next capture.
func (k *KeyTracker) Click(inst state.Instruction) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return
	}
	k.queue = append(k.queue, inst)
}

// DrainInstructions returns and clears the queued instructions.
func (k *KeyTracker) DrainInstructions() []state.Instruction {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := k.queue
	k.queue = nil
	return out
}

// Close releases all keys and stops accepting events.
func (k *KeyTracker) Close() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.closed = true
	k.down = [netconfig.ActionCount]bool{}
	k.queue = nil
}

func (k *KeyTracker) Closed() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.closed
}

// Capture builds this tick's Input Record from src. The instruction queue is
// drained exactly once. Screen coordinates: +Y points down.
func Capture(src Source) state.Input {
	var dir gamemath.Vec2
	if src.IsDown(netconfig.ActionMoveLeft) {
		dir.X--
	}
	if src.IsDown(netconfig.ActionMoveRight) {
		dir.X++
	}
	if src.IsDown(netconfig.ActionMoveUp) {
		dir.Y--
	}
	if src.IsDown(netconfig.ActionMoveDown) {
		dir.Y++
	}
	return state.Input{
		MovingDirection: dir.Normalize(),
		Running:         src.IsDown(netconfig.ActionRun),
		Instructions:    src.DrainInstructions(),
	}
}
