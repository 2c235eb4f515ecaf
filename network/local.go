package network

import (
	"fmt"
	"sync"

	"github.com/automoto/warband-mp/shared/messages"
)

// LocalHub connects transports inside one process. Messages are delivered
// synchronously on the sender's goroutine.
type LocalHub struct {
	mu    sync.Mutex
	host  *LocalTransport
	peers map[string]*LocalTransport
}

func NewLocalHub() *LocalHub {
	return &LocalHub{peers: make(map[string]*LocalTransport)}
}

// Host creates the hub's host transport.
func (h *LocalHub) Host(id string) (*LocalTransport, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.host != nil {
		return nil, fmt.Errorf("local hub already has host %q", h.host.id)
	}
	h.host = &LocalTransport{hub: h, id: id, host: true}
	return h.host, nil
}

// Connect creates a client transport and announces it to the host.
func (h *LocalHub) Connect(id string) (*LocalTransport, error) {
	h.mu.Lock()
	host := h.host
	if host == nil || host.closed {
		h.mu.Unlock()
		return nil, ErrNotConnected
	}
	if _, exists := h.peers[id]; exists || id == host.id {
		h.mu.Unlock()
		return nil, fmt.Errorf("participant %q already connected", id)
	}
	t := &LocalTransport{hub: h, id: id}
	h.peers[id] = t
	join := host.handlers.join
	h.mu.Unlock()

	if join != nil {
		join(id)
	}
	return t, nil
}

// Peers returns the number of connected clients.
func (h *LocalHub) Peers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

func (h *LocalHub) disconnect(t *LocalTransport) {
	h.mu.Lock()
	if t.host {
		h.host.closed = true
		h.mu.Unlock()
		return
	}
	if h.peers[t.id] != t {
		h.mu.Unlock()
		return
	}
	delete(h.peers, t.id)
	var leave func(string)
	if h.host != nil && !h.host.closed {
		leave = h.host.handlers.leave
	}
	h.mu.Unlock()

	if leave != nil {
		leave(t.id)
	}
}

// LocalTransport is one endpoint of a LocalHub.
type LocalTransport struct {
	hub      *LocalHub
	id       string
	host     bool
	closed   bool
	handlers handlers
}

func (t *LocalTransport) LocalID() string { return t.id }
func (t *LocalTransport) IsHost() bool    { return t.host }

func (t *LocalTransport) SendInput(msg messages.InputMessage) error {
	if t.host {
		return nil
	}
	t.hub.mu.Lock()
	host := t.hub.host
	if t.closed || host == nil || host.closed {
		t.hub.mu.Unlock()
		return ErrNotConnected
	}
	fn := host.handlers.input
	t.hub.mu.Unlock()

	if fn != nil {
		fn(t.id, msg)
	}
	return nil
}

func (t *LocalTransport) SendState(msg messages.StateMessage, target string) error {
	if !t.host {
		return ErrNotHost
	}
	t.hub.mu.Lock()
	if t.closed {
		t.hub.mu.Unlock()
		return ErrClosed
	}
	var fns []func(messages.StateMessage)
	if target != "" {
		p, ok := t.hub.peers[target]
		if !ok {
			t.hub.mu.Unlock()
			return fmt.Errorf("send state to %q: %w", target, ErrNotConnected)
		}
		fns = append(fns, p.handlers.state)
	} else {
		for _, p := range t.hub.peers {
			fns = append(fns, p.handlers.state)
		}
	}
	t.hub.mu.Unlock()

	for _, fn := range fns {
		if fn != nil {
			fn(msg)
		}
	}
	return nil
}

func (t *LocalTransport) OnReceiveInput(fn func(from string, msg messages.InputMessage)) {
	t.hub.mu.Lock()
	defer t.hub.mu.Unlock()
	t.handlers.input = fn
}

func (t *LocalTransport) OnReceiveState(fn func(msg messages.StateMessage)) {
	t.hub.mu.Lock()
	defer t.hub.mu.Unlock()
	t.handlers.state = fn
}

func (t *LocalTransport) OnPeerJoin(fn func(id string)) {
	t.hub.mu.Lock()
	defer t.hub.mu.Unlock()
	t.handlers.join = fn
}

func (t *LocalTransport) OnPeerLeave(fn func(id string)) {
	t.hub.mu.Lock()
	defer t.hub.mu.Unlock()
	t.handlers.leave = fn
}

func (t *LocalTransport) Close() error {
	t.hub.mu.Lock()
	if t.closed {
		t.hub.mu.Unlock()
		return nil
	}
	if !t.host {
		t.closed = true
	}
	t.hub.mu.Unlock()

	t.hub.disconnect(t)
	return nil
}
