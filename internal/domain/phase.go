package domain

// Phase represents one team's position in the per-round state machine.
type Phase string

const (
	PhaseLobby     Phase = "lobby"
	PhaseClues     Phase = "clues"
	PhaseGuessUs   Phase = "guess_us"
	PhaseConfUs    Phase = "conf_us"
	PhaseGuessThem Phase = "guess_them"
	PhaseConfThem  Phase = "conf_them"
	PhaseReview    Phase = "review_round"

	// PhaseFinished is a room-level terminal phase set once the round
	// cycle is exhausted. It never appears in the per-team graph.
	PhaseFinished Phase = "finished"
)

// validTransitions is the canonical transition table. A transition absent
// from this table must be rejected as a no-op, even if a client asks for it.
var validTransitions = map[Phase][]Phase{
	PhaseLobby:     {PhaseClues},
	PhaseClues:     {PhaseGuessUs},
	PhaseGuessUs:   {PhaseConfUs},
	PhaseConfUs:    {PhaseLobby, PhaseClues, PhaseGuessThem},
	PhaseGuessThem: {PhaseConfThem},
	PhaseConfThem:  {PhaseLobby, PhaseClues, PhaseReview},
	PhaseReview:    {PhaseClues},
}

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// Known reports whether p is a per-team phase the machine understands.
func (p Phase) Known() bool {
	_, ok := validTransitions[p]
	return ok
}

// CanTransitionTo reports whether moving from p to target is allowed.
func (p Phase) CanTransitionTo(target Phase) bool {
	for _, next := range validTransitions[p] {
		if next == target {
			return true
		}
	}
	return false
}

// ActivePlayerIndex computes the roster index of the active player for a
// round: rotation by round number modulo current team size.
func ActivePlayerIndex(round, teamSize int) int {
	if teamSize <= 0 {
		return -1
	}
	if round < 1 {
		round = 1
	}
	return (round - 1) % teamSize
}

// ActivePlayer returns the playerID whose turn it is for the given round,
// or "" for an empty roster.
func ActivePlayer(roster []string, round int) string {
	idx := ActivePlayerIndex(round, len(roster))
	if idx < 0 {
		return ""
	}
	return roster[idx]
}
