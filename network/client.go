package network

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/automoto/warband-mp/shared/messages"
	"github.com/coder/websocket"
	"github.com/leap-fish/necs/router"
	"github.com/leap-fish/necs/transports"
)

type ClientState int

const (
	StateDisconnected ClientState = iota
	StateConnecting
	StateConnected
	StateJoinedGame
	StateError
)

func (s ClientState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateJoinedGame:
		return "joined"
	case StateError:
		return "error"
	default:
		return "disconnected"
	}
}

// ClientTransport manages a WebSocket connection to the host.
// All shared fields are protected by mu (router callbacks run on necs goroutines).
type ClientTransport struct {
	localID string
	version string

	mu         sync.RWMutex
	state      ClientState
	lastError  error
	hostID     string
	serverName string
	tickRate   int
	conn       *websocket.Conn
	handlers   handlers

	joined   chan struct{}
	joinOnce sync.Once
}

func NewClientTransport(localID, version string) *ClientTransport {
	return &ClientTransport{
		localID: localID,
		version: version,
		state:   StateDisconnected,
		joined:  make(chan struct{}),
	}
}

// Connect dials the host in a background goroutine and initiates the join handshake.
func (c *ClientTransport) Connect(address string) {
	c.mu.Lock()
	c.state = StateConnecting
	c.lastError = nil
	c.mu.Unlock()

	router.OnConnect(func(_ *router.NetworkClient) {
		log.Println("[client] connected to host")
		c.mu.Lock()
		c.state = StateConnected
		c.mu.Unlock()

		err := c.write(messages.JoinRequest{
			Version:       c.version,
			ParticipantID: c.localID,
		})
		if err != nil {
			c.setError(fmt.Errorf("failed to send join request: %w", err))
		}
	})

	router.On(func(_ *router.NetworkClient, msg messages.JoinAccepted) {
		log.Printf("[client] join accepted: id=%s host=%s server=%s tickRate=%d",
			msg.ParticipantID, msg.HostID, msg.ServerName, msg.TickRate)
		c.mu.Lock()
		c.hostID = msg.HostID
		c.serverName = msg.ServerName
		c.tickRate = msg.TickRate
		c.state = StateJoinedGame
		fn := c.handlers.join
		c.mu.Unlock()

		c.joinOnce.Do(func() { close(c.joined) })
		if fn != nil {
			fn(msg.HostID)
		}
	})

	router.On(func(_ *router.NetworkClient, msg messages.JoinRejected) {
		log.Printf("[client] join rejected: %s", msg.Reason)
		c.setError(fmt.Errorf("join rejected: %s", msg.Reason))
	})

	router.On(func(_ *router.NetworkClient, msg messages.StateMessage) {
		c.mu.RLock()
		fn := c.handlers.state
		c.mu.RUnlock()
		if fn != nil {
			fn(msg)
		}
	})

	router.OnDisconnect(func(_ *router.NetworkClient, err error) {
		log.Printf("[client] disconnected: %v", err)
		c.mu.Lock()
		if c.state != StateError {
			c.state = StateDisconnected
		}
		c.conn = nil
		hostID := c.hostID
		fn := c.handlers.leave
		c.mu.Unlock()

		if fn != nil && hostID != "" {
			fn(hostID)
		}
	})

	router.OnError(func(_ *router.NetworkClient, err error) {
		log.Printf("[client] error: %v", err)
	})

	go func() {
		transport := transports.NewWsClientTransport("ws://" + address)
		err := transport.Start(func(conn *websocket.Conn) {
			c.mu.Lock()
			c.conn = conn
			c.mu.Unlock()
		})
		if err != nil {
			c.setError(fmt.Errorf("connection failed: %w", err))
		}
	}()
}

// WaitJoined blocks until the host accepts the join, the join fails, or ctx
// is done.
func (c *ClientTransport) WaitJoined(ctx context.Context) error {
	select {
	case <-c.joined:
		return nil
	case <-ctx.Done():
		if err := c.LastError(); err != nil {
			return err
		}
		return fmt.Errorf("waiting for join: %w", ctx.Err())
	}
}

func (c *ClientTransport) State() ClientState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *ClientTransport) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

func (c *ClientTransport) HostID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hostID
}

func (c *ClientTransport) ServerName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverName
}

func (c *ClientTransport) TickRate() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tickRate
}

func (c *ClientTransport) LocalID() string { return c.localID }
func (c *ClientTransport) IsHost() bool    { return false }

func (c *ClientTransport) SendInput(msg messages.InputMessage) error {
	if c.State() != StateJoinedGame {
		return ErrNotConnected
	}
	return c.write(msg)
}

func (c *ClientTransport) SendState(messages.StateMessage, string) error {
	return ErrNotHost
}

func (c *ClientTransport) OnReceiveInput(fn func(from string, msg messages.InputMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers.input = fn
}

func (c *ClientTransport) OnReceiveState(fn func(msg messages.StateMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers.state = fn
}

func (c *ClientTransport) OnPeerJoin(fn func(id string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers.join = fn
}

func (c *ClientTransport) OnPeerLeave(fn func(id string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers.leave = fn
}

func (c *ClientTransport) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.state = StateDisconnected
	c.conn = nil
	c.handlers = handlers{}
	c.mu.Unlock()

	if conn != nil {
		_ = conn.CloseNow()
	}

	router.ResetRouter()
	return nil
}

func (c *ClientTransport) write(msg any) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	payload, err := router.Serialize(msg)
	if err != nil {
		return fmt.Errorf("serialize: %w", err)
	}

	return conn.Write(context.Background(), websocket.MessageBinary, payload)
}

func (c *ClientTransport) setError(err error) {
	c.mu.Lock()
	c.state = StateError
	c.lastError = err
	c.mu.Unlock()
}
