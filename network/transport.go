// Package network moves Input Records and state snapshots between peers.
// Handlers registered on a Transport may be invoked from transport
// goroutines; they must only buffer.
package network

import (
	"errors"

	"github.com/automoto/warband-mp/shared/messages"
)

var (
	ErrNotConnected = errors.New("network: not connected")
	ErrNotHost      = errors.New("network: only the host sends state")
	ErrClosed       = errors.New("network: transport closed")
)

// Transport is the peer-to-peer boundary. SendState with an empty target
// broadcasts to every connected peer.
type Transport interface {
	LocalID() string
	IsHost() bool
	SendInput(msg messages.InputMessage) error
	SendState(msg messages.StateMessage, target string) error
	OnReceiveInput(fn func(from string, msg messages.InputMessage))
	OnReceiveState(fn func(msg messages.StateMessage))
	OnPeerJoin(fn func(id string))
	OnPeerLeave(fn func(id string))
	Close() error
}

// handlers is the callback set shared by the implementations.
type handlers struct {
	input func(from string, msg messages.InputMessage)
	state func(msg messages.StateMessage)
	join  func(id string)
	leave func(id string)
}

func (h *handlers) emitInput(from string, msg messages.InputMessage) {
	if h.input != nil {
		h.input(from, msg)
	}
}

func (h *handlers) emitState(msg messages.StateMessage) {
	if h.state != nil {
		h.state(msg)
	}
}

func (h *handlers) emitJoin(id string) {
	if h.join != nil {
		h.join(id)
	}
}

func (h *handlers) emitLeave(id string) {
	if h.leave != nil {
		h.leave(id)
	}
}
