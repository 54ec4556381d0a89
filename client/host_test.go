/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package client

import (
	"testing"

	"github.com/Seednode/junta/engine"
	"github.com/Seednode/junta/protocol"
)

type recordingSender struct {
	sent []protocol.Envelope
}

func (r *recordingSender) Send(env protocol.Envelope) {
	r.sent = append(r.sent, env)
}

func (r *recordingSender) gameMessages() []protocol.GameMessage {
	var out []protocol.GameMessage
	for _, env := range r.sent {
		if env.Event != protocol.EventGameMessage {
			continue
		}
		if msg, err := protocol.DecodeGameMessage(env.Data); err == nil {
			out = append(out, msg)
		}
	}
	return out
}

func lobby(n int) []string {
	names := []string{"Alice", "Bob", "Carol", "Dave", "Erin", "Frank", "Grace", "Heidi"}
	return names[:n]
}

func TestHostCreateSession(t *testing.T) {
	sender := &recordingSender{}
	host := NewHost(sender, 6, false)

	var created string
	host.OnSessionCreated = func(code string) { created = code }

	host.CreateSession()
	if len(sender.sent) != 1 || sender.sent[0].Event != protocol.EventCreateSession {
		t.Fatalf("sent = %v, want single CREATE_SESSION", sender.sent)
	}

	host.Handle(protocol.MustEnvelope(protocol.EventSessionCreate, protocol.SessionCreated{Code: "GAME"}))
	if created != "GAME" || host.SessionCode() != "GAME" {
		t.Errorf("code = %q/%q, want GAME", created, host.SessionCode())
	}
}

func TestHostAutoBegin(t *testing.T) {
	sender := &recordingSender{}
	host := NewHost(sender, 6, true)

	host.Handle(protocol.MustEnvelope(protocol.EventStateUpdate, protocol.StateUpdate{
		PlayerCount: 6,
		Players:     lobby(6),
	}))

	state := host.State()
	if state.Phase != engine.PhaseAllocation {
		t.Fatalf("Phase = %q, want auto-begun ALLOCATION", state.Phase)
	}
	if !state.Revealed {
		t.Error("roles not revealed after auto-begin")
	}

	types := make(map[string]int)
	for _, msg := range sender.gameMessages() {
		types[msg.Type()]++
	}
	if types[protocol.TypeStartRound] != 1 {
		t.Errorf("START_ROUND count = %d, want 1", types[protocol.TypeStartRound])
	}
	if types[protocol.TypeRoleAssignment] != 6 {
		t.Errorf("ROLE_ASSIGNMENT count = %d, want 6", types[protocol.TypeRoleAssignment])
	}
	if types[protocol.TypeRolesAssigned] != 1 {
		t.Errorf("ROLES_ASSIGNED count = %d, want 1", types[protocol.TypeRolesAssigned])
	}
}

func TestHostWaitsBelowMinimum(t *testing.T) {
	sender := &recordingSender{}
	host := NewHost(sender, 6, true)

	host.Handle(protocol.MustEnvelope(protocol.EventStateUpdate, protocol.StateUpdate{
		PlayerCount: 3,
		Players:     lobby(3),
	}))

	if got := host.State().Phase; got != engine.PhaseLobby {
		t.Errorf("Phase = %q, want LOBBY below minimum", got)
	}
}

func TestHostManualBegin(t *testing.T) {
	sender := &recordingSender{}
	host := NewHost(sender, 6, false)

	host.Handle(protocol.MustEnvelope(protocol.EventStateUpdate, protocol.StateUpdate{
		PlayerCount: 3,
		Players:     lobby(3),
	}))

	if got := host.State().Phase; got != engine.PhaseLobby {
		t.Fatalf("Phase = %q, wait mode must not auto-begin", got)
	}

	if err := host.Begin(false); err == nil {
		t.Error("Begin() below minimum without override succeeded")
	}
	if err := host.Begin(true); err != nil {
		t.Fatalf("Begin(override) error = %v", err)
	}
	if got := host.State().Phase; got != engine.PhaseAllocation {
		t.Errorf("Phase = %q, want ALLOCATION", got)
	}
}

func TestHostAppliesRelayedAllocation(t *testing.T) {
	sender := &recordingSender{}
	host := NewHost(sender, 6, true)

	host.Handle(protocol.MustEnvelope(protocol.EventStateUpdate, protocol.StateUpdate{
		PlayerCount: 6,
		Players:     lobby(6),
	}))

	leader := host.State().Leader()
	if leader == "" {
		t.Fatal("no leader seated after begin")
	}

	sender.sent = nil
	host.Handle(protocol.MustEnvelope(protocol.EventGameMessage, protocol.GameMessage{
		"type":   protocol.TypeAllocationSubmit,
		"sender": leader,
		"allocation": map[string]int{
			"military":     30,
			"intelligence": 30,
			"interior":     20,
			"economy":      10,
			"media":        5,
			"personal":     5,
		},
	}))

	if got := host.State().Phase; got != engine.PhaseVoting {
		t.Fatalf("Phase = %q, want VOTING after leader allocation", got)
	}

	msgs := sender.gameMessages()
	if len(msgs) != 1 || msgs[0].Type() != protocol.TypeAllocationSubmit {
		t.Errorf("rebroadcast = %v, want single ALLOCATION_SUBMIT", msgs)
	}
}

func TestHostIgnoresUnstampedMessages(t *testing.T) {
	sender := &recordingSender{}
	host := NewHost(sender, 6, true)

	host.Handle(protocol.MustEnvelope(protocol.EventStateUpdate, protocol.StateUpdate{
		PlayerCount: 6,
		Players:     lobby(6),
	}))

	before := host.State().Phase
	sender.sent = nil

	// No sender stamp: either the host's own echo or forged. Dropped.
	host.Handle(protocol.MustEnvelope(protocol.EventGameMessage, protocol.GameMessage{
		"type": protocol.TypeAllocationSubmit,
		"allocation": map[string]int{
			"military": 100,
		},
	}))

	if got := host.State().Phase; got != before {
		t.Errorf("Phase = %q, unstamped message mutated state", got)
	}
	if len(sender.sent) != 0 {
		t.Errorf("sent = %v, want nothing", sender.sent)
	}
}

func TestHostRosterFrozenAfterBegin(t *testing.T) {
	sender := &recordingSender{}
	host := NewHost(sender, 6, true)

	host.Handle(protocol.MustEnvelope(protocol.EventStateUpdate, protocol.StateUpdate{
		PlayerCount: 6,
		Players:     lobby(6),
	}))

	host.Handle(protocol.MustEnvelope(protocol.EventStateUpdate, protocol.StateUpdate{
		PlayerCount: 7,
		Players:     lobby(7),
	}))

	if got := len(host.State().Players); got != 6 {
		t.Errorf("player count = %d, late joiners must not reseat a running round", got)
	}
}
