package network

import (
	"fmt"
	"log"
	"sync"

	"github.com/automoto/warband-mp/config"
	"github.com/automoto/warband-mp/shared/messages"
	"github.com/leap-fish/necs/router"
	"github.com/leap-fish/necs/transports"
	"golang.org/x/time/rate"
)

// HostTransport accepts websocket peers through the necs router. The router
// is process-global, so only one host or client transport may exist at a time.
type HostTransport struct {
	localID  string
	net      config.NetConfig
	tickRate int

	mu       sync.RWMutex
	handlers handlers
	ids      map[*router.NetworkClient]string
	peers    map[string]*router.NetworkClient
	limiters map[string]*rate.Limiter
	closed   bool

	transport *transports.WsServerTransport
}

func NewHostTransport(localID string, cfg config.Config) *HostTransport {
	h := &HostTransport{
		localID:  localID,
		net:      cfg.Net,
		tickRate: cfg.Sim.TickRate,
		ids:      make(map[*router.NetworkClient]string),
		peers:    make(map[string]*router.NetworkClient),
		limiters: make(map[string]*rate.Limiter),
	}
	h.setupRouterCallbacks()
	return h
}

// Start listens on the configured port. It blocks until the server exits.
func (h *HostTransport) Start() error {
	h.transport = transports.NewWsServerTransport(h.net.Port, "", nil)
	return h.transport.Start()
}

func (h *HostTransport) setupRouterCallbacks() {
	router.OnConnect(func(client *router.NetworkClient) {
		log.Printf("[host] client connected: %s", client.Id())
	})

	router.OnDisconnect(func(client *router.NetworkClient, err error) {
		h.onDisconnect(client, err)
	})

	router.On(func(client *router.NetworkClient, msg messages.JoinRequest) {
		h.onJoinRequest(client, msg)
	})

	router.On(func(client *router.NetworkClient, msg messages.InputMessage) {
		h.onInput(client, msg)
	})

	router.OnError(func(client *router.NetworkClient, err error) {
		log.Printf("[host] client error: %v", err)
	})
}

func (h *HostTransport) onJoinRequest(client *router.NetworkClient, msg messages.JoinRequest) {
	if reason := h.admit(client, msg); reason != "" {
		log.Printf("[host] rejected %s: %s", client.Id(), reason)
		if err := client.SendMessage(messages.JoinRejected{Reason: reason}); err != nil {
			log.Printf("[host] send rejection: %v", err)
		}
		return
	}

	log.Printf("[host] participant %s joined via %s", msg.ParticipantID, client.Id())
	err := client.SendMessage(messages.JoinAccepted{
		ParticipantID: msg.ParticipantID,
		HostID:        h.localID,
		ServerName:    h.net.ServerName,
		TickRate:      h.tickRate,
	})
	if err != nil {
		log.Printf("[host] send join accepted: %v", err)
	}

	h.mu.RLock()
	fn := h.handlers.join
	h.mu.RUnlock()
	if fn != nil {
		fn(msg.ParticipantID)
	}
}

// admit registers client under the requested id, or returns why it cannot.
func (h *HostTransport) admit(client *router.NetworkClient, msg messages.JoinRequest) string {
	if h.net.Version != "" && msg.Version != h.net.Version {
		return fmt.Sprintf("version mismatch: host %s, client %s", h.net.Version, msg.Version)
	}
	if msg.ParticipantID == "" {
		return "missing participant id"
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return "host shutting down"
	}
	if _, joined := h.ids[client]; joined {
		return "already joined"
	}
	if _, taken := h.peers[msg.ParticipantID]; taken || msg.ParticipantID == h.localID {
		return "participant id in use"
	}
	h.ids[client] = msg.ParticipantID
	h.peers[msg.ParticipantID] = client
	return ""
}

func (h *HostTransport) onDisconnect(client *router.NetworkClient, err error) {
	if err != nil {
		log.Printf("[host] client %s disconnected with error: %v", client.Id(), err)
	} else {
		log.Printf("[host] client %s disconnected", client.Id())
	}

	h.mu.Lock()
	id, joined := h.ids[client]
	if joined {
		delete(h.ids, client)
		delete(h.peers, id)
		delete(h.limiters, id)
	}
	fn := h.handlers.leave
	h.mu.Unlock()

	if joined && fn != nil {
		fn(id)
	}
}

func (h *HostTransport) onInput(client *router.NetworkClient, msg messages.InputMessage) {
	h.mu.RLock()
	id, joined := h.ids[client]
	fn := h.handlers.input
	h.mu.RUnlock()

	if !joined {
		return
	}
	if !h.getLimiter(id).Allow() {
		return
	}
	// The connection decides who is speaking, not the payload.
	msg.ParticipantID = id
	if fn != nil {
		fn(id, msg)
	}
}

func (h *HostTransport) getLimiter(id string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()

	limiter, exists := h.limiters[id]
	if !exists {
		limiter = rate.NewLimiter(rate.Limit(h.net.InputRate), h.net.InputBurst)
		h.limiters[id] = limiter
	}
	return limiter
}

func (h *HostTransport) LocalID() string { return h.localID }
func (h *HostTransport) IsHost() bool    { return true }

// SendInput is a no-op: the host applies its own input directly.
func (h *HostTransport) SendInput(messages.InputMessage) error { return nil }

func (h *HostTransport) SendState(msg messages.StateMessage, target string) error {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return ErrClosed
	}
	var clients []*router.NetworkClient
	if target != "" {
		c, ok := h.peers[target]
		if !ok {
			h.mu.RUnlock()
			return fmt.Errorf("send state to %q: %w", target, ErrNotConnected)
		}
		clients = append(clients, c)
	} else {
		for _, c := range h.peers {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	var firstErr error
	for _, c := range clients {
		if err := c.SendMessage(msg); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("send state: %w", err)
		}
	}
	return firstErr
}

func (h *HostTransport) OnReceiveInput(fn func(from string, msg messages.InputMessage)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers.input = fn
}

// OnReceiveState is never invoked on a host.
func (h *HostTransport) OnReceiveState(fn func(msg messages.StateMessage)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers.state = fn
}

func (h *HostTransport) OnPeerJoin(fn func(id string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers.join = fn
}

func (h *HostTransport) OnPeerLeave(fn func(id string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers.leave = fn
}

// PeerCount returns the number of joined peers.
func (h *HostTransport) PeerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Close stops routing messages and refuses further joins. The necs server
// transport exposes no shutdown, so its listener and any open sockets stay up
// until the process exits; nothing they receive is routed.
func (h *HostTransport) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.handlers = handlers{}
	h.mu.Unlock()

	router.ResetRouter()
	return nil
}
