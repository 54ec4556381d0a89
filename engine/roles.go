/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package engine

import (
	"crypto/rand"
	"maps"
)

// shuffled returns a Fisher-Yates shuffle of names using crypto/rand.
func shuffled(names []string) []string {
	out := make([]string, len(names))
	copy(out, names)

	for i := len(out) - 1; i > 0; i-- {
		var b [1]byte
		if _, err := rand.Read(b[:]); err != nil {
			continue
		}
		j := int(b[0]) % (i + 1)
		out[i], out[j] = out[j], out[i]
	}

	return out
}

func pickRandom(names []string) string {
	if len(names) == 0 {
		return ""
	}

	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		return names[0]
	}
	return names[int(b[0])%len(names)]
}

// assignRoles deals one leader, up to five elite seats in fixed seat
// order, and citizens with a name-stable class for everyone else.
func assignRoles(players []string) (map[string]Role, map[string]Class) {
	order := shuffled(players)

	roles := make(map[string]Role, len(order))
	classes := make(map[string]Class)

	for i, name := range order {
		switch {
		case i == 0:
			roles[name] = RoleLeader
		case i <= len(EliteSeats):
			roles[name] = EliteSeats[i-1]
		default:
			roles[name] = RoleCitizen
			classes[name] = ClassOf(name)
		}
	}

	return roles, classes
}

// repairVacancies refills elite seats left empty by death or
// promotion. Dead seat-holders are demoted to spectator, then each
// empty seat goes to a random living citizen. Leaders and spectators
// are never drafted; with no candidates the seat stays vacant.
func repairVacancies(s State) (map[string]Role, bool) {
	roles := maps.Clone(s.Roles)
	changed := false

	for _, p := range s.Players {
		if roles[p].IsElite() && s.Eliminated[p] {
			roles[p] = RoleSpectator
			changed = true
		}
	}

	for _, seat := range EliteSeats {
		if holderOf(s.Players, roles, seat) != "" {
			continue
		}

		var candidates []string
		for _, p := range s.Players {
			if roles[p] == RoleCitizen && !s.Eliminated[p] {
				candidates = append(candidates, p)
			}
		}

		replacement := pickRandom(candidates)
		if replacement == "" {
			continue
		}

		roles[replacement] = seat
		changed = true
	}

	return roles, changed
}

func holderOf(players []string, roles map[string]Role, seat Role) string {
	for _, p := range players {
		if roles[p] == seat {
			return p
		}
	}
	return ""
}
