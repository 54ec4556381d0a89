/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package client

import (
	"encoding/json"
	"sync"

	"github.com/Seednode/junta/engine"
	"github.com/Seednode/junta/protocol"
)

// Sender is the outbound half of a transport; satisfied by *Shim.
type Sender interface {
	Send(protocol.Envelope)
}

// Host drives the authoritative state machine. It owns the only
// writable copy of the round state; every other participant submits
// candidate events through the relay and mirrors the broadcasts this
// driver emits.
//
// The host deliberately consumes its own relayed messages the same way
// other clients do for roster updates, but commands are only accepted
// from stamped senders, so the host's own unstamped echoes never loop
// back into the engine.
type Host struct {
	mu sync.Mutex

	sender Sender
	state  engine.State
	code   string

	autoBegin bool
	begun     bool

	OnSessionCreated func(code string)
	OnError          func(err error)
}

func NewHost(sender Sender, minPlayers int, autoBegin bool) *Host {
	return &Host{
		sender:    sender,
		state:     engine.NewState(minPlayers),
		autoBegin: autoBegin,
	}
}

// CreateSession asks the relay for a fresh session code.
func (h *Host) CreateSession() {
	h.sender.Send(protocol.MustEnvelope(protocol.EventCreateSession, protocol.CreateSession{}))
}

// Handle folds one inbound envelope into the machine. Outbound
// envelopes are sent after the lock is released: on a local bus the
// transport delivers synchronously, straight back into Handle.
func (h *Host) Handle(env protocol.Envelope) {
	for _, out := range h.consume(env) {
		h.sender.Send(out)
	}
}

func (h *Host) consume(env protocol.Envelope) []protocol.Envelope {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch env.Event {
	case protocol.EventSessionCreate:
		var created protocol.SessionCreated
		if json.Unmarshal(env.Data, &created) != nil {
			return nil
		}
		// Duplicate acknowledgements from retried create requests are
		// ignored.
		if h.code == created.Code {
			return nil
		}
		h.code = created.Code
		if h.OnSessionCreated != nil {
			h.OnSessionCreated(created.Code)
		}
		return nil

	case protocol.EventStateUpdate:
		var update protocol.StateUpdate
		if json.Unmarshal(env.Data, &update) != nil {
			return nil
		}
		return h.handleRoster(update)

	case protocol.EventGameMessage:
		msg, err := protocol.DecodeGameMessage(env.Data)
		if err != nil {
			return nil
		}
		if cmd, ok := toCommand(msg); ok {
			out, _ := h.apply(cmd)
			return out
		}
	}

	return nil
}

// handleRoster syncs lobby membership from the registry's broadcast.
// Mid-game roster changes do not reshuffle a running round; the roster
// is only authoritative for seating before begin. Callers hold h.mu.
func (h *Host) handleRoster(update protocol.StateUpdate) []protocol.Envelope {
	if h.state.Phase != engine.PhaseLobby {
		return nil
	}

	players := make([]string, len(update.Players))
	copy(players, update.Players)
	h.state.Players = players

	if h.autoBegin && !h.begun && len(players) >= h.state.MinPlayers {
		h.begun = true
		out, err := h.apply(engine.Command{Type: engine.CmdBegin})
		if err != nil {
			return out
		}
		reveal, _ := h.apply(engine.Command{Type: engine.CmdRevealRoles})
		return append(out, reveal...)
	}

	return nil
}

// Host-initiated actions, driven by whatever fronts this driver.

func (h *Host) Begin(override bool) error {
	h.mu.Lock()
	out, err := h.apply(engine.Command{Type: engine.CmdBegin, Override: override})
	if err == nil {
		h.begun = true
	}
	h.mu.Unlock()

	h.send(out)
	return err
}

func (h *Host) RevealRoles() {
	h.command(engine.Command{Type: engine.CmdRevealRoles})
}

func (h *Host) AdvancePhase() {
	h.command(engine.Command{Type: engine.CmdAdvancePhase})
}

func (h *Host) NextRound() {
	h.command(engine.Command{Type: engine.CmdNextRound})
}

func (h *Host) EndGame() {
	h.command(engine.Command{Type: engine.CmdEndGame})
}

func (h *Host) State() engine.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Host) SessionCode() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.code
}

func (h *Host) command(cmd engine.Command) {
	h.mu.Lock()
	out, _ := h.apply(cmd)
	h.mu.Unlock()

	h.send(out)
}

func (h *Host) send(envs []protocol.Envelope) {
	for _, env := range envs {
		h.sender.Send(env)
	}
}

// apply advances the engine and encodes whatever it emits. Callers
// hold h.mu.
func (h *Host) apply(cmd engine.Command) ([]protocol.Envelope, error) {
	next, msgs, err := engine.Apply(h.state, cmd)
	if err != nil {
		if h.OnError != nil {
			h.OnError(err)
		}
		return nil, err
	}

	h.state = next

	out := make([]protocol.Envelope, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, encodeMessage(msg, h.code))
	}
	return out, nil
}

// toCommand translates a relayed player message into a candidate
// engine command. Messages without a stamped sender are either the
// host's own echoes or forged, and carry no authority either way.
func toCommand(msg protocol.GameMessage) (engine.Command, bool) {
	sender := msg.Sender()
	if sender == "" {
		return engine.Command{}, false
	}

	switch msg.Type() {
	case protocol.TypeAllocationSubmit:
		alloc, ok := msg["allocation"].(map[string]any)
		if !ok {
			return engine.Command{}, false
		}
		allocation := make(engine.Allocation, len(alloc))
		for bucket, v := range alloc {
			f, ok := v.(float64)
			if !ok {
				return engine.Command{}, false
			}
			allocation[bucket] = int(f)
		}
		return engine.Command{
			Type:       engine.CmdSubmitAllocation,
			Actor:      sender,
			Allocation: allocation,
		}, true

	case protocol.TypeVoteSubmit:
		return engine.Command{
			Type:      engine.CmdSubmitVote,
			Actor:     sender,
			Choice:    engine.Choice(msg.String("vote")),
			CoupType:  engine.CoupType(msg.String("coupType")),
			Candidate: msg.String("candidate"),
		}, true

	case protocol.TypeProtest:
		return engine.Command{Type: engine.CmdProtest, Actor: sender}, true

	case protocol.TypeExecutionOrder:
		return engine.Command{
			Type:    engine.CmdExecute,
			Actor:   sender,
			Targets: msg.Strings("targets"),
		}, true
	}

	return engine.Command{}, false
}

// encodeMessage maps an engine message onto the wire vocabulary.
func encodeMessage(msg engine.Message, code string) protocol.Envelope {
	payload := protocol.GameMessage{"code": code}

	switch msg.Type {
	case engine.MsgStartRound:
		payload["type"] = protocol.TypeStartRound
		payload["round"] = msg.Round

	case engine.MsgRoleAssignment:
		payload["type"] = protocol.TypeRoleAssignment
		payload["target"] = msg.Target
		payload["role"] = string(msg.Role)
		payload["weight"] = msg.Weight
		if msg.Class != "" {
			payload["class"] = string(msg.Class)
		}

	case engine.MsgRolesAssigned:
		roles := make(map[string]string, len(msg.Roles))
		for name, role := range msg.Roles {
			roles[name] = string(role)
		}
		payload["type"] = protocol.TypeRolesAssigned
		payload["roles"] = roles

	case engine.MsgAllocationSet:
		payload["type"] = protocol.TypeAllocationSubmit
		payload["allocation"] = msg.Allocation

	case engine.MsgProtestLevel:
		payload["type"] = protocol.TypeProtestLevel
		payload["level"] = msg.Level

	case engine.MsgGameResult:
		payload["type"] = protocol.TypeGameResult
		payload["winner"] = msg.Result.Winner
		payload["newLeader"] = msg.Result.NewLeader
		payload["purged"] = msg.Result.Purged
		payload["pardoned"] = msg.Result.Pardoned
		payload["loyal"] = msg.Result.LoyalPercent
		payload["betray"] = msg.Result.BetrayPercent

	case engine.MsgExecutionOrder:
		payload["type"] = protocol.TypeExecutionOrder
		payload["targets"] = msg.Targets

	case engine.MsgGameOver:
		payload["type"] = protocol.TypeGameOver
		payload["winner"] = msg.Winner
		payload["round"] = msg.Round
	}

	return protocol.MustEnvelope(protocol.EventGameMessage, payload)
}
