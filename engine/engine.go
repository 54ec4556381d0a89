/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package engine

import (
	"maps"
	"slices"
)

type CommandType string

const (
	CmdBegin            CommandType = "Begin"
	CmdRevealRoles      CommandType = "RevealRoles"
	CmdSubmitAllocation CommandType = "SubmitAllocation"
	CmdSubmitVote       CommandType = "SubmitVote"
	CmdProtest          CommandType = "Protest"
	CmdAdvancePhase     CommandType = "AdvancePhase"
	CmdExecute          CommandType = "Execute"
	CmdNextRound        CommandType = "NextRound"
	CmdEndGame          CommandType = "EndGame"
)

// Command is a candidate event submitted to the state machine. Actor
// is the display name the relay stamped on the originating message;
// the machine, not the relay, decides whether the actor may act.
type Command struct {
	Type       CommandType
	Actor      string
	Override   bool
	Allocation Allocation
	Choice     Choice
	CoupType   CoupType
	Candidate  string
	Targets    []string
}

type MessageType string

const (
	MsgRoleAssignment MessageType = "RoleAssignment"
	MsgRolesAssigned  MessageType = "RolesAssigned"
	MsgAllocationSet  MessageType = "AllocationSet"
	MsgProtestLevel   MessageType = "ProtestLevel"
	MsgGameResult     MessageType = "GameResult"
	MsgExecutionOrder MessageType = "ExecutionOrder"
	MsgStartRound     MessageType = "StartRound"
	MsgGameOver       MessageType = "GameOver"
)

// Message is an outbound broadcast produced by Apply. Target, when
// set, addresses a single player; otherwise the whole session.
type Message struct {
	Type       MessageType
	Target     string
	Role       Role
	Class      Class
	Weight     float64
	Roles      map[string]Role
	Allocation Allocation
	Level      int
	Round      int
	Result     *Result
	Targets    []string
	Winner     string
}

// Apply advances the state machine by one command. Out-of-phase and
// unauthorized commands are dropped silently (nil error, no messages,
// unchanged state): the relay performs no phase validation, so stray
// messages are expected traffic, not faults. Only genuine validation
// failures the submitting user must fix return an error.
func Apply(s State, cmd Command) (State, []Message, error) {
	switch cmd.Type {
	case CmdBegin:
		return applyBegin(s, cmd)
	case CmdRevealRoles:
		return applyReveal(s)
	case CmdSubmitAllocation:
		return applyAllocation(s, cmd)
	case CmdSubmitVote:
		return applyVote(s, cmd)
	case CmdProtest:
		return applyProtest(s, cmd)
	case CmdAdvancePhase:
		return applyAdvance(s)
	case CmdExecute:
		return applyExecute(s, cmd)
	case CmdNextRound:
		return applyNextRound(s)
	case CmdEndGame:
		return applyEndGame(s)
	default:
		return s, nil, nil
	}
}

func applyBegin(s State, cmd Command) (State, []Message, error) {
	if s.Phase != PhaseLobby || len(s.Players) == 0 {
		return s, nil, nil
	}

	// Soft floor: the host may push through with fewer players.
	if len(s.Players) < s.MinPlayers && !cmd.Override {
		return s, nil, ErrNotEnoughPlayers
	}

	newState := s
	newState.Roles, newState.Classes = assignRoles(s.Players)
	newState.Round = 1
	newState.Phase = PhaseAllocation
	newState.Revealed = false
	newState.Allocation = nil
	newState.Votes = nil
	newState.ProtestLevel = 0
	newState.Result = nil

	return newState, []Message{{Type: MsgStartRound, Round: 1}}, nil
}

// applyReveal broadcasts the already-committed role assignment. Roles
// are computed and stored at begin; revealing is a separate explicit
// step so presentation delays never sit inside game logic.
func applyReveal(s State) (State, []Message, error) {
	if s.Phase == PhaseLobby || s.Revealed || len(s.Roles) == 0 {
		return s, nil, nil
	}

	msgs := make([]Message, 0, len(s.Players)+1)
	for _, p := range s.Players {
		role := s.Roles[p]
		msg := Message{
			Type:   MsgRoleAssignment,
			Target: p,
			Role:   role,
			Weight: role.Weight(),
		}
		if role == RoleCitizen {
			msg.Class = s.Classes[p]
		}
		msgs = append(msgs, msg)
	}
	msgs = append(msgs, Message{Type: MsgRolesAssigned, Roles: maps.Clone(s.Roles)})

	newState := s
	newState.Revealed = true

	return newState, msgs, nil
}

func applyAllocation(s State, cmd Command) (State, []Message, error) {
	if s.Phase != PhaseAllocation || s.Roles[cmd.Actor] != RoleLeader {
		return s, nil, nil
	}

	for _, v := range cmd.Allocation {
		if v < 0 {
			return s, nil, ErrAllocationSum
		}
	}
	if cmd.Allocation.Total() != 100 {
		return s, nil, ErrAllocationSum
	}

	newState := s
	newState.Allocation = maps.Clone(cmd.Allocation)
	newState.Votes = nil
	newState.ProtestLevel = 0
	newState.Phase = PhaseVoting

	return newState, []Message{{Type: MsgAllocationSet, Allocation: newState.Allocation}}, nil
}

func applyVote(s State, cmd Command) (State, []Message, error) {
	if s.Phase != PhaseVoting {
		return s, nil, nil
	}
	if !s.Roles[cmd.Actor].IsElite() || s.Eliminated[cmd.Actor] {
		return s, nil, nil
	}

	vote := Vote{
		Voter:     cmd.Actor,
		Choice:    cmd.Choice,
		CoupType:  cmd.CoupType,
		Candidate: cmd.Candidate,
	}
	if vote.CoupType == "" {
		vote.CoupType = CoupNone
	}

	newState := s
	newState.Votes = slices.Clone(s.Votes)

	// Last write wins per voter.
	replaced := false
	for i, v := range newState.Votes {
		if v.Voter == vote.Voter {
			newState.Votes[i] = vote
			replaced = true
			break
		}
	}
	if !replaced {
		newState.Votes = append(newState.Votes, vote)
	}

	if len(newState.Votes) >= newState.LivingElites() {
		return resolve(newState)
	}

	return newState, nil, nil
}

func applyProtest(s State, cmd Command) (State, []Message, error) {
	switch s.Phase {
	case PhaseLobby, PhaseGameOver:
		return s, nil, nil
	}
	if s.Roles[cmd.Actor] != RoleCitizen || s.Eliminated[cmd.Actor] {
		return s, nil, nil
	}

	newState := s
	newState.ProtestLevel = min(s.ProtestLevel+protestStep, protestMax)

	return newState, []Message{{Type: MsgProtestLevel, Level: newState.ProtestLevel}}, nil
}

func applyAdvance(s State) (State, []Message, error) {
	switch s.Phase {
	case PhaseVoting:
		// Host-forced resolution with however many votes arrived.
		return resolve(s)
	case PhaseResolution:
		newState := s
		newState.Phase = PhaseJudgment
		return newState, nil, nil
	}
	return s, nil, nil
}

// applyExecute handles the surviving leader's judgment: named
// betrayers or protesters are confirmed for execution and merged into
// the eliminated set. A deposed leader has no such privilege.
func applyExecute(s State, cmd Command) (State, []Message, error) {
	if s.Phase != PhaseJudgment && s.Phase != PhaseResolution {
		return s, nil, nil
	}
	if s.Result == nil || s.Result.Winner != WinnerLeader {
		return s, nil, nil
	}
	if s.Roles[cmd.Actor] != RoleLeader || s.Eliminated[cmd.Actor] {
		return s, nil, nil
	}

	newState := s
	newState.Eliminated = maps.Clone(s.Eliminated)
	newState.Roles = maps.Clone(s.Roles)

	confirmed := make([]string, 0, len(cmd.Targets))
	for _, target := range cmd.Targets {
		if !slices.Contains(s.Players, target) {
			continue
		}
		if target == cmd.Actor || newState.Eliminated[target] {
			continue
		}
		newState.Eliminated[target] = true
		newState.Roles[target] = RoleSpectator
		confirmed = append(confirmed, target)
	}

	if len(confirmed) == 0 {
		return s, nil, nil
	}

	return newState, []Message{{Type: MsgExecutionOrder, Targets: confirmed}}, nil
}

func applyNextRound(s State) (State, []Message, error) {
	if s.Phase != PhaseResolution && s.Phase != PhaseJudgment {
		return s, nil, nil
	}

	newState := s

	if newState.LivingCount() <= gameOverFloor {
		newState.Phase = PhaseGameOver
		winner := ""
		if s.Result != nil {
			winner = s.Result.Winner
		}
		return newState, []Message{{Type: MsgGameOver, Winner: winner, Round: s.Round}}, nil
	}

	roles, changed := repairVacancies(newState)
	newState.Roles = roles

	newState.Round++
	newState.Phase = PhaseAllocation
	newState.Allocation = nil
	newState.Votes = nil
	newState.Result = nil
	newState.ProtestLevel = 0

	msgs := []Message{{Type: MsgStartRound, Round: newState.Round}}
	if changed {
		msgs = append(msgs, Message{Type: MsgRolesAssigned, Roles: maps.Clone(newState.Roles)})
	}

	return newState, msgs, nil
}

func applyEndGame(s State) (State, []Message, error) {
	if s.Phase == PhaseGameOver {
		return s, nil, nil
	}

	newState := s
	newState.Phase = PhaseGameOver

	winner := ""
	if s.Result != nil {
		winner = s.Result.Winner
	}

	return newState, []Message{{Type: MsgGameOver, Winner: winner, Round: s.Round}}, nil
}
