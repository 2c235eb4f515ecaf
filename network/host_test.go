package network

import (
	"errors"
	"testing"

	"github.com/automoto/warband-mp/config"
	"github.com/automoto/warband-mp/shared/messages"
	"github.com/leap-fish/necs/router"
)

func newTestHost(t *testing.T, mutate func(*config.Config)) (*HostTransport, *recorder) {
	t.Helper()
	cfg := config.Default()
	cfg.Net.Version = "1"
	if mutate != nil {
		mutate(&cfg)
	}
	h := NewHostTransport("host", cfg)
	var r recorder
	r.attach(h)
	t.Cleanup(func() { _ = h.Close() })
	return h, &r
}

func TestHostAdmitRejects(t *testing.T) {
	h, _ := newTestHost(t, nil)
	first := &router.NetworkClient{}
	if reason := h.admit(first, messages.JoinRequest{Version: "1", ParticipantID: "c1"}); reason != "" {
		t.Fatalf("valid join rejected: %s", reason)
	}

	tests := []struct {
		name   string
		client *router.NetworkClient
		req    messages.JoinRequest
	}{
		{"version mismatch", &router.NetworkClient{}, messages.JoinRequest{Version: "2", ParticipantID: "c2"}},
		{"missing id", &router.NetworkClient{}, messages.JoinRequest{Version: "1"}},
		{"duplicate id", &router.NetworkClient{}, messages.JoinRequest{Version: "1", ParticipantID: "c1"}},
		{"host id", &router.NetworkClient{}, messages.JoinRequest{Version: "1", ParticipantID: "host"}},
		{"same connection twice", first, messages.JoinRequest{Version: "1", ParticipantID: "c3"}},
	}
	for _, tt := range tests {
		if reason := h.admit(tt.client, tt.req); reason == "" {
			t.Fatalf("%s: admitted", tt.name)
		}
	}
	if n := h.PeerCount(); n != 1 {
		t.Fatalf("peer count = %d, want 1", n)
	}
}

func TestHostAdmitAnyVersionWhenUnset(t *testing.T) {
	h, _ := newTestHost(t, func(c *config.Config) { c.Net.Version = "" })
	if reason := h.admit(&router.NetworkClient{}, messages.JoinRequest{Version: "ancient", ParticipantID: "c1"}); reason != "" {
		t.Fatalf("rejected: %s", reason)
	}
}

func TestHostInputUsesConnectionIdentity(t *testing.T) {
	h, r := newTestHost(t, nil)
	c := &router.NetworkClient{}
	if reason := h.admit(c, messages.JoinRequest{Version: "1", ParticipantID: "c1"}); reason != "" {
		t.Fatal(reason)
	}

	h.onInput(c, messages.InputMessage{ParticipantID: "someone-else", Sequence: 1})
	if len(r.inputs) != 1 {
		t.Fatalf("inputs = %d, want 1", len(r.inputs))
	}
	if r.from[0] != "c1" || r.inputs[0].ParticipantID != "c1" {
		t.Fatalf("input attributed to %q / %q, want c1", r.from[0], r.inputs[0].ParticipantID)
	}

	h.onInput(&router.NetworkClient{}, messages.InputMessage{ParticipantID: "c1"})
	if len(r.inputs) != 1 {
		t.Fatalf("input from an unjoined connection was delivered")
	}
}

func TestHostInputLimiter(t *testing.T) {
	h, r := newTestHost(t, func(c *config.Config) {
		c.Net.InputRate = 1
		c.Net.InputBurst = 2
	})
	c := &router.NetworkClient{}
	if reason := h.admit(c, messages.JoinRequest{Version: "1", ParticipantID: "c1"}); reason != "" {
		t.Fatal(reason)
	}

	for i := 0; i < 5; i++ {
		h.onInput(c, messages.InputMessage{Sequence: uint32(i)})
	}
	if len(r.inputs) != 2 {
		t.Fatalf("delivered %d inputs, want burst of 2", len(r.inputs))
	}
}

func TestHostDisconnect(t *testing.T) {
	h, r := newTestHost(t, nil)
	c := &router.NetworkClient{}
	if reason := h.admit(c, messages.JoinRequest{Version: "1", ParticipantID: "c1"}); reason != "" {
		t.Fatal(reason)
	}
	h.getLimiter("c1")

	h.onDisconnect(&router.NetworkClient{}, nil)
	if len(r.leaves) != 0 {
		t.Fatalf("unjoined disconnect reported a leave")
	}

	h.onDisconnect(c, errors.New("reset"))
	if len(r.leaves) != 1 || r.leaves[0] != "c1" {
		t.Fatalf("leaves = %v", r.leaves)
	}
	if h.PeerCount() != 0 || len(h.limiters) != 0 {
		t.Fatalf("peer state not cleared: peers=%d limiters=%d", h.PeerCount(), len(h.limiters))
	}

	// The id is free again.
	if reason := h.admit(&router.NetworkClient{}, messages.JoinRequest{Version: "1", ParticipantID: "c1"}); reason != "" {
		t.Fatalf("rejoin rejected: %s", reason)
	}
}

func TestHostSendStateErrors(t *testing.T) {
	h, _ := newTestHost(t, nil)
	if err := h.SendState(messages.StateMessage{}, "nobody"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
	if err := h.SendState(messages.StateMessage{}, ""); err != nil {
		t.Fatalf("broadcast with no peers: %v", err)
	}
	if err := h.SendInput(messages.InputMessage{}); err != nil {
		t.Fatalf("host SendInput: %v", err)
	}

	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if err := h.SendState(messages.StateMessage{}, ""); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
	if reason := h.admit(&router.NetworkClient{}, messages.JoinRequest{Version: "1", ParticipantID: "late"}); reason == "" {
		t.Fatalf("closed host admitted a peer")
	}
}
