package domain

import "fmt"

// Team identifies one of the two competing squads.
type Team string

const (
	TeamA Team = "A"
	TeamB Team = "B"
)

// AllTeams lists the two teams in a fixed order.
var AllTeams = [2]Team{TeamA, TeamB}

// Valid reports whether t is one of the two known teams.
func (t Team) Valid() bool {
	return t == TeamA || t == TeamB
}

// Opponent returns the other team.
func (t Team) Opponent() Team {
	if t == TeamA {
		return TeamB
	}
	return TeamA
}

// String returns the string representation of the team.
func (t Team) String() string {
	return string(t)
}

// PairKey builds the "X_about_Y" key used for cross-team submissions
// (tguesses, tconf, collab_tguesses, typing).
func PairKey(from, about Team) string {
	return fmt.Sprintf("%s_about_%s", from, about)
}

// Teams holds both rosters. List order is the turn rotation order.
type Teams struct {
	A []string `json:"A"`
	B []string `json:"B"`
}

// List returns the roster for the given team.
func (ts Teams) List(t Team) []string {
	if t == TeamA {
		return ts.A
	}
	return ts.B
}

// Contains reports whether playerID is on the given team.
func (ts Teams) Contains(t Team, playerID string) bool {
	for _, id := range ts.List(t) {
		if id == playerID {
			return true
		}
	}
	return false
}

// TeamOf returns the team playerID currently belongs to, if any.
func (ts Teams) TeamOf(playerID string) (Team, bool) {
	for _, t := range AllTeams {
		if ts.Contains(t, playerID) {
			return t, true
		}
	}
	return "", false
}

// Remove strips playerID from both rosters and returns the updated set.
func (ts Teams) Remove(playerID string) Teams {
	out := Teams{}
	for _, id := range ts.A {
		if id != playerID {
			out.A = append(out.A, id)
		}
	}
	for _, id := range ts.B {
		if id != playerID {
			out.B = append(out.B, id)
		}
	}
	return out
}

// Append adds playerID to the end of the given roster if not already present.
func (ts Teams) Append(t Team, playerID string) Teams {
	if ts.Contains(t, playerID) {
		return ts
	}
	if t == TeamA {
		ts.A = append(ts.A, playerID)
	} else {
		ts.B = append(ts.B, playerID)
	}
	return ts
}
