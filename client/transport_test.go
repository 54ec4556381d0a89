/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package client

import (
	"context"
	"testing"
	"time"

	"github.com/Seednode/junta/protocol"
)

func TestShimStateString(t *testing.T) {
	tests := []struct {
		state ShimState
		want  string
	}{
		{StateUnconnected, "unconnected"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateReconnecting, "reconnecting"},
		{StateDegraded, "degraded"},
	}

	for _, tc := range tests {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}

func TestShimDegradesWithoutEndpoint(t *testing.T) {
	bus := NewLocalBus()

	var received []protocol.Envelope
	shim := NewShim("", bus, func(env protocol.Envelope) {
		received = append(received, env)
	})

	shim.Run(context.Background())

	if got := shim.State(); got != StateDegraded {
		t.Fatalf("State() = %v, want degraded", got)
	}

	// Degraded sends are published locally and echoed back, matching
	// the relay's echo-to-self contract.
	shim.Send(protocol.Envelope{Event: protocol.EventPing})
	if len(received) != 1 || received[0].Event != protocol.EventPing {
		t.Errorf("received = %v, want local echo of ping", received)
	}
}

func TestShimDegradesAfterRetryBudget(t *testing.T) {
	shim := NewShim("ws://127.0.0.1:1/ws", NewLocalBus(), nil)
	shim.retryBudget = 1
	shim.retryDelay = time.Millisecond

	done := make(chan struct{})
	go func() {
		shim.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after exhausting retries")
	}

	if got := shim.State(); got != StateDegraded {
		t.Errorf("State() = %v, want degraded", got)
	}
}

func TestLocalBusEchoesToPublisher(t *testing.T) {
	bus := NewLocalBus()

	var first, second int
	bus.Subscribe(func(protocol.Envelope) { first++ })
	cancel := bus.Subscribe(func(protocol.Envelope) { second++ })

	bus.Publish(protocol.Envelope{Event: protocol.EventPing})
	if first != 1 || second != 1 {
		t.Fatalf("delivery counts = %d/%d, want 1/1", first, second)
	}

	cancel()
	bus.Publish(protocol.Envelope{Event: protocol.EventPing})
	if first != 2 || second != 1 {
		t.Errorf("delivery counts after cancel = %d/%d, want 2/1", first, second)
	}
}
