/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package engine

import (
	"maps"
	"math"
	"slices"
)

// resolve tallies the round's votes and applies the outcome: a
// successful coup crowns a new leader, a failed one gets its ringleaders
// purged. Ties in total weight go to the loyalists.
func resolve(s State) (State, []Message, error) {
	newState := s
	newState.Roles = maps.Clone(s.Roles)
	newState.Eliminated = maps.Clone(s.Eliminated)
	newState.Phase = PhaseResolution

	var loyalWeight, betrayWeight float64
	var candidate string
	var betrayers []Vote

	for _, v := range s.Votes {
		weight := s.Roles[v.Voter].Weight()

		switch v.Choice {
		case ChoiceBetray:
			if v.CoupType == CoupExternal {
				weight += externalBonus
			}
			betrayWeight += weight
			if v.Candidate != "" {
				candidate = v.Candidate
			}
			betrayers = append(betrayers, v)
		default:
			loyalWeight += weight
		}
	}

	result := &Result{
		LoyalWeight:  loyalWeight,
		BetrayWeight: betrayWeight,
	}

	if total := loyalWeight + betrayWeight; total > 0 {
		result.BetrayPercent = int(math.Round(betrayWeight / total * 100))
		result.LoyalPercent = 100 - result.BetrayPercent
	}

	if betrayWeight > loyalWeight {
		resolveCoup(&newState, result, betrayers, candidate)
	} else {
		resolvePurge(&newState, result, betrayers)
	}

	newState.Result = result

	return newState, []Message{{Type: MsgGameResult, Result: result}}, nil
}

// resolveCoup deposes the leader and seats a successor: the named
// candidate first, then the externally sponsored traitor, then a
// random betrayer, and failing all of those a placeholder.
func resolveCoup(s *State, result *Result, betrayers []Vote, candidate string) {
	result.Winner = WinnerRebellion

	if old := s.Leader(); old != "" {
		s.Roles[old] = RoleSpectator
	}

	newLeader := candidate

	if newLeader == "" {
		for _, v := range betrayers {
			if v.CoupType == CoupExternal {
				newLeader = v.Voter
				break
			}
		}
	}

	if newLeader == "" && len(betrayers) > 0 {
		names := make([]string, 0, len(betrayers))
		for _, v := range betrayers {
			names = append(names, v.Voter)
		}
		newLeader = pickRandom(names)
	}

	if newLeader == "" {
		newLeader = FallbackLeader
	}

	result.NewLeader = newLeader

	// The placeholder never holds a seat; only real living players are
	// crowned. An elite taking the throne vacates their seat, repaired
	// at next round start.
	if slices.Contains(s.Players, newLeader) && !s.Eliminated[newLeader] {
		s.Roles[newLeader] = RoleLeader
	}
}

// resolvePurge eliminates the top betrayers by seat weight and pardons
// the rest. Order of arrival breaks weight ties, so the tally is
// deterministic for a given vote sequence.
func resolvePurge(s *State, result *Result, betrayers []Vote) {
	result.Winner = WinnerLeader

	ranked := slices.Clone(betrayers)
	slices.SortStableFunc(ranked, func(a, b Vote) int {
		wa := s.Roles[a.Voter].Weight()
		wb := s.Roles[b.Voter].Weight()
		switch {
		case wb > wa:
			return 1
		case wb < wa:
			return -1
		}
		return 0
	})

	for i, v := range ranked {
		if i < purgeLimit {
			s.Eliminated[v.Voter] = true
			s.Roles[v.Voter] = RoleSpectator
			result.Purged = append(result.Purged, v.Voter)
		} else {
			result.Pardoned = append(result.Pardoned, v.Voter)
		}
	}
}
