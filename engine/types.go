/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package engine is the authoritative game state machine. It is pure:
// Apply consumes a state and a command and returns the next state plus
// the messages to broadcast, without touching any transport. The host
// client is the sole caller; everyone else only mirrors the output.
package engine

import (
	"errors"
	"hash/fnv"
)

var (
	ErrAllocationSum    = errors.New("allocation must sum to exactly 100")
	ErrNotEnoughPlayers = errors.New("not enough players to begin")
)

type Phase string

const (
	PhaseLobby      Phase = "LOBBY"
	PhaseAllocation Phase = "ALLOCATION"
	PhaseVoting     Phase = "VOTING"
	PhaseResolution Phase = "RESOLUTION"
	PhaseJudgment   Phase = "JUDGMENT"
	PhaseGameOver   Phase = "GAME_OVER"
)

type Role string

const (
	RoleLeader            Role = "LEADER"
	RoleEliteMilitary     Role = "ELITE_MILITARY"
	RoleEliteIntelligence Role = "ELITE_INTELLIGENCE"
	RoleEliteInterior     Role = "ELITE_INTERIOR"
	RoleEliteEconomy      Role = "ELITE_ECONOMY"
	RoleEliteMedia        Role = "ELITE_MEDIA"
	RoleCitizen           Role = "CITIZEN"
	RoleSpectator         Role = "SPECTATOR"
)

// EliteSeats in assignment order; the first seats go to the first
// shuffled players after the leader.
var EliteSeats = []Role{
	RoleEliteMilitary,
	RoleEliteIntelligence,
	RoleEliteInterior,
	RoleEliteEconomy,
	RoleEliteMedia,
}

func (r Role) IsElite() bool {
	switch r {
	case RoleEliteMilitary, RoleEliteIntelligence, RoleEliteInterior, RoleEliteEconomy, RoleEliteMedia:
		return true
	}
	return false
}

// Weight is an elite seat's vote weight. Non-elites carry none.
func (r Role) Weight() float64 {
	switch r {
	case RoleEliteMilitary:
		return 3
	case RoleEliteIntelligence, RoleEliteInterior:
		return 2
	case RoleEliteEconomy, RoleEliteMedia:
		return 1
	}
	return 0
}

type Class string

const (
	ClassUpper  Class = "Upper Class"
	ClassMiddle Class = "Middle Class"
	ClassLower  Class = "Lower Class"
)

// ClassOf derives a citizen's social class from a hash of their name,
// so the classification is stable across rounds and reconnects without
// anyone storing it.
func ClassOf(name string) Class {
	h := fnv.New32a()
	h.Write([]byte(name))

	switch h.Sum32() % 3 {
	case 0:
		return ClassUpper
	case 1:
		return ClassMiddle
	default:
		return ClassLower
	}
}

type Choice string

const (
	ChoiceLoyal  Choice = "LOYAL"
	ChoiceBetray Choice = "BETRAY"
)

type CoupType string

const (
	CoupNone     CoupType = "NONE"
	CoupInternal CoupType = "INTERNAL"
	CoupExternal CoupType = "EXTERNAL"
)

// Vote is one elite's standing choice for the round. Resubmission
// replaces, never accumulates.
type Vote struct {
	Voter     string
	Choice    Choice
	CoupType  CoupType
	Candidate string
}

// Allocation buckets. Values are integer percentages summing to 100.
var Buckets = []string{"military", "intelligence", "interior", "economy", "media", "personal"}

type Allocation map[string]int

func (a Allocation) Total() int {
	total := 0
	for _, v := range a {
		total += v
	}
	return total
}

const (
	WinnerLeader    = "LEADER"
	WinnerRebellion = "REBELLION"

	// FallbackLeader stands in when a coup succeeds with nobody to
	// crown, matching the classic outcome of such affairs.
	FallbackLeader = "The Military"

	// externalBonus is the extra effective weight granted to a
	// betrayal backed by a foreign sponsor.
	externalBonus = 1.5

	// gameOverFloor ends the game once the living population can no
	// longer sustain a full court.
	gameOverFloor = 6

	// purgeLimit caps how many failed betrayers the regime executes
	// outright; the rest are pardoned and remembered.
	purgeLimit = 2

	protestStep = 5
	protestMax  = 100
)

// Result of one round's vote resolution.
type Result struct {
	Winner        string
	NewLeader     string
	Purged        []string
	Pardoned      []string
	LoyalWeight   float64
	BetrayWeight  float64
	LoyalPercent  int
	BetrayPercent int
}

// State is the full authoritative round state. Owned exclusively by
// the host; mutated only through Apply.
type State struct {
	Phase        Phase
	Round        int
	MinPlayers   int
	Players      []string
	Roles        map[string]Role
	Classes      map[string]Class
	Allocation   Allocation
	Votes        []Vote
	Eliminated   map[string]bool
	ProtestLevel int
	Revealed     bool
	Result       *Result
}

func NewState(minPlayers int) State {
	return State{
		Phase:      PhaseLobby,
		MinPlayers: minPlayers,
		Roles:      make(map[string]Role),
		Classes:    make(map[string]Class),
		Eliminated: make(map[string]bool),
	}
}

// Living reports whether a player is still in the game.
func (s State) Living(name string) bool {
	return !s.Eliminated[name] && s.Roles[name] != RoleSpectator
}

// LivingCount counts players not yet eliminated. Spectators who were
// merely deposed, not executed, still count as alive.
func (s State) LivingCount() int {
	count := 0
	for _, p := range s.Players {
		if !s.Eliminated[p] {
			count++
		}
	}
	return count
}

// LivingElites counts seated, non-eliminated elites; the voting quorum.
func (s State) LivingElites() int {
	count := 0
	for _, p := range s.Players {
		if s.Roles[p].IsElite() && !s.Eliminated[p] {
			count++
		}
	}
	return count
}

// Leader returns the current leader's name, if one is seated.
func (s State) Leader() string {
	for _, p := range s.Players {
		if s.Roles[p] == RoleLeader {
			return p
		}
	}
	return ""
}
