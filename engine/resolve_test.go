/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package engine

import (
	"slices"
	"testing"
)

func votingState() State {
	s := courtState()
	s.Phase = PhaseVoting
	return s
}

func TestResolveCoupWeights(t *testing.T) {
	// Military (3) plus externally backed media (1 + 1.5) outweighs
	// intelligence and interior loyalists (4).
	s := votingState()
	s.Votes = []Vote{
		{Voter: "Bob", Choice: ChoiceBetray, CoupType: CoupInternal},
		{Voter: "Carol", Choice: ChoiceLoyal, CoupType: CoupNone},
		{Voter: "Dave", Choice: ChoiceLoyal, CoupType: CoupNone},
		{Voter: "Frank", Choice: ChoiceBetray, CoupType: CoupExternal},
	}

	next, msgs, err := resolve(s)
	if err != nil {
		t.Fatalf("resolve error = %v", err)
	}

	result := next.Result
	if result == nil {
		t.Fatal("Result = nil")
	}
	if result.Winner != WinnerRebellion {
		t.Fatalf("Winner = %q, want %q", result.Winner, WinnerRebellion)
	}
	if result.BetrayWeight != 5.5 {
		t.Errorf("BetrayWeight = %v, want 5.5", result.BetrayWeight)
	}
	if result.LoyalWeight != 4 {
		t.Errorf("LoyalWeight = %v, want 4", result.LoyalWeight)
	}
	if result.LoyalPercent+result.BetrayPercent != 100 {
		t.Errorf("percents = %d + %d, want 100", result.LoyalPercent, result.BetrayPercent)
	}

	if next.Roles["Alice"] != RoleSpectator {
		t.Errorf("deposed leader role = %q, want SPECTATOR", next.Roles["Alice"])
	}
	// No candidate named: the external traitor takes the throne.
	if result.NewLeader != "Frank" {
		t.Errorf("NewLeader = %q, want Frank", result.NewLeader)
	}
	if next.Roles["Frank"] != RoleLeader {
		t.Errorf("Frank role = %q, want LEADER", next.Roles["Frank"])
	}

	if len(msgs) != 1 || msgs[0].Type != MsgGameResult {
		t.Errorf("messages = %v, want single GameResult", msgs)
	}
}

func TestResolveCoupCandidate(t *testing.T) {
	s := votingState()
	s.Votes = []Vote{
		{Voter: "Bob", Choice: ChoiceBetray, CoupType: CoupInternal, Candidate: "Carol"},
		{Voter: "Carol", Choice: ChoiceBetray, CoupType: CoupInternal},
		{Voter: "Erin", Choice: ChoiceLoyal, CoupType: CoupNone},
	}

	next, _, err := resolve(s)
	if err != nil {
		t.Fatalf("resolve error = %v", err)
	}

	if next.Result.NewLeader != "Carol" {
		t.Errorf("NewLeader = %q, want named candidate Carol", next.Result.NewLeader)
	}
	if next.Roles["Carol"] != RoleLeader {
		t.Errorf("Carol role = %q, want LEADER", next.Roles["Carol"])
	}
	// Carol's old seat is vacated, repaired at next round start.
	for _, p := range next.Players {
		if p != "Carol" && next.Roles[p] == RoleEliteIntelligence {
			t.Errorf("intelligence seat unexpectedly held by %q", p)
		}
	}
}

func TestResolveCoupOutsideCandidate(t *testing.T) {
	// A betrayal candidate from outside the roster wins the coup but
	// cannot be seated.
	s := votingState()
	s.Votes = []Vote{
		{Voter: "Bob", Choice: ChoiceBetray, CoupType: CoupInternal, Candidate: "Pinochet"},
		{Voter: "Erin", Choice: ChoiceLoyal, CoupType: CoupNone},
	}

	next, _, err := resolve(s)
	if err != nil {
		t.Fatalf("resolve error = %v", err)
	}

	if next.Result.NewLeader != "Pinochet" {
		t.Errorf("NewLeader = %q, want Pinochet", next.Result.NewLeader)
	}
	if next.Leader() != "" {
		t.Errorf("Leader() = %q, want no seated leader", next.Leader())
	}
}

func TestResolveTieGoesLoyal(t *testing.T) {
	// Military betrayal (3) against intelligence plus economy (3).
	s := votingState()
	s.Votes = []Vote{
		{Voter: "Bob", Choice: ChoiceBetray, CoupType: CoupInternal},
		{Voter: "Carol", Choice: ChoiceLoyal, CoupType: CoupNone},
		{Voter: "Erin", Choice: ChoiceLoyal, CoupType: CoupNone},
	}

	next, _, err := resolve(s)
	if err != nil {
		t.Fatalf("resolve error = %v", err)
	}

	if next.Result.Winner != WinnerLeader {
		t.Errorf("Winner = %q, want %q on a tie", next.Result.Winner, WinnerLeader)
	}
	if next.Roles["Alice"] != RoleLeader {
		t.Errorf("leader role = %q, want LEADER retained", next.Roles["Alice"])
	}
}

func TestResolvePurgeTopTwo(t *testing.T) {
	// Three failed betrayers with weights 1, 1, and 2 against military
	// and interior loyalists (5). The two heaviest are purged, weight
	// ties broken by vote arrival, and the last is pardoned.
	s := votingState()
	s.Votes = []Vote{
		{Voter: "Erin", Choice: ChoiceBetray, CoupType: CoupInternal},
		{Voter: "Frank", Choice: ChoiceBetray, CoupType: CoupInternal},
		{Voter: "Carol", Choice: ChoiceBetray, CoupType: CoupInternal},
		{Voter: "Bob", Choice: ChoiceLoyal, CoupType: CoupNone},
		{Voter: "Dave", Choice: ChoiceLoyal, CoupType: CoupNone},
	}

	next, _, err := resolve(s)
	if err != nil {
		t.Fatalf("resolve error = %v", err)
	}

	result := next.Result
	if result.Winner != WinnerLeader {
		t.Fatalf("Winner = %q, want %q", result.Winner, WinnerLeader)
	}

	if !slices.Equal(result.Purged, []string{"Carol", "Erin"}) {
		t.Errorf("Purged = %v, want [Carol Erin]", result.Purged)
	}
	if !slices.Equal(result.Pardoned, []string{"Frank"}) {
		t.Errorf("Pardoned = %v, want [Frank]", result.Pardoned)
	}

	for _, name := range result.Purged {
		if !next.Eliminated[name] || next.Roles[name] != RoleSpectator {
			t.Errorf("purged %q not eliminated", name)
		}
	}
	if next.Eliminated["Frank"] {
		t.Error("pardoned player eliminated")
	}
}

func TestResolvePurgeFewerThanLimit(t *testing.T) {
	s := votingState()
	s.Votes = []Vote{
		{Voter: "Erin", Choice: ChoiceBetray, CoupType: CoupInternal},
		{Voter: "Bob", Choice: ChoiceLoyal, CoupType: CoupNone},
		{Voter: "Carol", Choice: ChoiceLoyal, CoupType: CoupNone},
	}

	next, _, err := resolve(s)
	if err != nil {
		t.Fatalf("resolve error = %v", err)
	}

	result := next.Result
	if !slices.Equal(result.Purged, []string{"Erin"}) {
		t.Errorf("Purged = %v, want [Erin]", result.Purged)
	}
	if len(result.Pardoned) != 0 {
		t.Errorf("Pardoned = %v, want none", result.Pardoned)
	}
}

func TestResolvePurgeWeightTieArrivalOrder(t *testing.T) {
	// Carol and Dave both carry weight 2; whoever voted first ranks
	// first, so repeated runs stay deterministic.
	s := votingState()
	s.Votes = []Vote{
		{Voter: "Dave", Choice: ChoiceBetray, CoupType: CoupInternal},
		{Voter: "Carol", Choice: ChoiceBetray, CoupType: CoupInternal},
		{Voter: "Bob", Choice: ChoiceLoyal, CoupType: CoupNone},
		{Voter: "Erin", Choice: ChoiceLoyal, CoupType: CoupNone},
		{Voter: "Frank", Choice: ChoiceLoyal, CoupType: CoupNone},
	}

	next, _, err := resolve(s)
	if err != nil {
		t.Fatalf("resolve error = %v", err)
	}

	if !slices.Equal(next.Result.Purged, []string{"Dave", "Carol"}) {
		t.Errorf("Purged = %v, want arrival order [Dave Carol]", next.Result.Purged)
	}
}

func TestResolveNoVotes(t *testing.T) {
	s := votingState()

	next, _, err := resolve(s)
	if err != nil {
		t.Fatalf("resolve error = %v", err)
	}

	result := next.Result
	if result.Winner != WinnerLeader {
		t.Errorf("Winner = %q, want %q with no ballots", result.Winner, WinnerLeader)
	}
	if result.LoyalPercent != 0 || result.BetrayPercent != 0 {
		t.Errorf("percents = %d/%d, want 0/0", result.LoyalPercent, result.BetrayPercent)
	}
}
