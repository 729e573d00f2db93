package app

import (
	"context"
	"encoding/json"

	"decrypto/internal/domain"
	"decrypto/internal/store"
)

// attachListeners subscribes the session to every room subtree it mirrors.
// Detach handles accumulate in s.detaches and are released by Leave, so a
// session never keeps listeners on a room it has left.
func (s *Session) attachListeners() error {
	s.detachListenersLocked()

	bindings := []struct {
		path string
		fn   store.ListenFunc
	}{
		{s.roomPath("players"), s.onPlayers},
		{s.roomPath("language"), s.onLanguage},
		{s.roomPath("teams"), s.onTeams},
		{s.roomPath("words"), s.onWords},
		{s.roomPath("codes"), s.onCodes},
		{s.roomPath("state"), s.onState},
		{s.roomPath("clues"), s.onClues},
		{s.roomPath("guesses"), s.onGuesses},
		{s.roomPath("conf"), s.onConf},
		{s.roomPath("tguesses"), s.onTGuesses},
		{s.roomPath("tconf"), s.onTConf},
		{s.roomPath("collab_tguesses"), s.onCollabTGuesses},
		{s.roomPath("collab_guess_us"), s.onCollabGuessUs},
		{s.roomPath("typing"), s.onTyping},
		{s.roomPath("hints"), s.onHints},
		{s.roomPath("logs", "clues"), s.onClueLogs},
	}
	for _, b := range bindings {
		detach, err := s.store.Listen(b.path, b.fn)
		if err != nil {
			s.detachListenersLocked()
			return err
		}
		s.detaches = append(s.detaches, detach)
	}
	return nil
}

func (s *Session) detachListenersLocked() {
	for _, detach := range s.detaches {
		detach()
	}
	s.detaches = nil
}

// decode unmarshals a subtree snapshot, treating a missing subtree or a
// malformed payload as empty. Other clients are not trusted to write
// well-formed data; a bad subtree must not wedge the whole session.
func (s *Session) decode(snapshot json.RawMessage, into any, subtree string) bool {
	if len(snapshot) == 0 {
		return false
	}
	if err := json.Unmarshal(snapshot, into); err != nil {
		s.logger.Warn("discarding malformed snapshot", "subtree", subtree, "error", err)
		return false
	}
	return true
}

// --- snapshot handlers ---
//
// Every handler runs on its listener's delivery goroutine: lock, merge the
// snapshot into local state, apply any data-arrival advancement rules
// (which may write back to the store), unlock, then notify subscribers.

func (s *Session) onPlayers(snapshot json.RawMessage) {
	s.mu.Lock()
	players := make(map[string]domain.Player)
	s.decode(snapshot, &players, "players")
	s.players = players

	if s.creatorID == "" && s.roomID != "" {
		if raw, err := s.store.Get(context.Background(), s.roomPath("creatorId")); err == nil && len(raw) > 0 {
			var cid string
			if json.Unmarshal(raw, &cid) == nil && cid != "" {
				s.creatorID = cid
				s.isCreator = cid == s.playerID
			}
		}
	}

	// A started game no longer accepts new identities: if our record is
	// gone mid-game we were either kicked or never admitted.
	if s.phase != domain.PhaseLobby && s.roomID != "" {
		if _, ok := s.players[s.playerID]; !ok {
			room := s.roomID
			s.logger.Warn("membership lost in active game, leaving", "room", room)
			s.leaveLocked()
			s.mu.Unlock()
			s.emit()
			return
		}
	}
	s.mu.Unlock()
	s.emit()
}

func (s *Session) onLanguage(snapshot json.RawMessage) {
	s.mu.Lock()
	var lang string
	if s.decode(snapshot, &lang, "language") && lang != "" {
		s.roomLanguage = lang
		s.language = lang
		s.storage.Set(storageKeyLanguage, lang)
	}
	s.mu.Unlock()
	s.emit()
}

func (s *Session) onTeams(snapshot json.RawMessage) {
	s.mu.Lock()
	var teams domain.Teams
	if s.decode(snapshot, &teams, "teams") {
		s.teams = teams
	}
	if s.phase != domain.PhaseLobby {
		s.updateActivePlayersLocked(s.round)
	}
	s.mu.Unlock()
	s.emit()
}

func (s *Session) onWords(snapshot json.RawMessage) {
	s.mu.Lock()
	words := make(map[domain.Team][]string)
	s.decode(snapshot, &words, "words")
	s.teamWords = map[domain.Team][]string{
		domain.TeamA: words[domain.TeamA],
		domain.TeamB: words[domain.TeamB],
	}
	s.mu.Unlock()
	s.emit()
}

func (s *Session) onCodes(snapshot json.RawMessage) {
	s.mu.Lock()
	codes := make(map[domain.Team]map[string]string)
	if s.decode(snapshot, &codes, "codes") {
		for _, t := range domain.AllTeams {
			if codes[t] == nil {
				codes[t] = map[string]string{}
			}
		}
		s.codes = codes
	}
	s.mu.Unlock()
	s.emit()
}

func (s *Session) onState(snapshot json.RawMessage) {
	s.mu.Lock()
	var st domain.RoomState
	if s.decode(snapshot, &st, "state") {
		if !s.userSelectedRound && st.Round >= 1 {
			s.round = st.Round
		}
		if st.Phase != "" {
			s.phase = st.Phase
		}
		s.roundPhases = domain.NormalizeRoundPhases(st.RoundPhases)
		s.unlockedRounds = domain.NormalizeUnlockedRounds(st.UnlockedRounds)
		if st.ResetAt > s.resetAt {
			// Remote reset: drop any manual round selection.
			s.resetAt = st.ResetAt
			s.userSelectedRound = false
			s.round = 1
			if st.Round >= 1 {
				s.round = st.Round
			}
		}
		s.syncTeamPhaseAliasLocked(s.round)
	}
	s.mu.Unlock()
	s.emit()
}

func (s *Session) onClues(snapshot json.RawMessage) {
	s.mu.Lock()
	clues := make(map[string]map[domain.Team]domain.ClueSet)
	s.decode(snapshot, &clues, "clues")
	s.clues = clues

	// A clue submission moves its team from clues to guess_us. The guess
	// completion rule is re-checked right away: a one-member team has no
	// non-active guessers, so it falls straight through to conf_us.
	for rk, byTeam := range clues {
		round, err := domain.ParseRoundKey(rk)
		if err != nil {
			continue
		}
		for _, team := range domain.AllTeams {
			if cs, ok := byTeam[team]; ok && len(cs.Clues) > 0 {
				if s.roundPhaseLocked(team, round) == domain.PhaseClues {
					s.advanceTeamPhaseLocked(team, domain.PhaseGuessUs, round)
					s.checkGuessesCompleteLocked(team, round)
				}
			}
		}
	}
	s.mu.Unlock()
	s.emit()
}

func (s *Session) onGuesses(snapshot json.RawMessage) {
	s.mu.Lock()
	guesses := make(map[string]map[domain.Team]map[string]domain.Submission)
	s.decode(snapshot, &guesses, "guesses")
	s.guesses = guesses

	// Once every non-active member has guessed, the team moves to conf_us.
	for rk := range guesses {
		round, err := domain.ParseRoundKey(rk)
		if err != nil {
			continue
		}
		for _, team := range domain.AllTeams {
			s.checkGuessesCompleteLocked(team, round)
		}
	}
	s.mu.Unlock()
	s.emit()
}

// checkGuessesCompleteLocked advances a team from guess_us to conf_us once
// every non-active member has submitted a guess. With one member the active
// player is the whole team, zero guesses are required and the team advances
// immediately.
func (s *Session) checkGuessesCompleteLocked(team domain.Team, round int) {
	if s.roundPhaseLocked(team, round) != domain.PhaseGuessUs {
		return
	}
	roster := s.teams.List(team)
	if len(roster) == 0 {
		return
	}
	active := s.activePlayerLocked(team, round)
	nonActive := 0
	for _, id := range roster {
		if id != active {
			nonActive++
		}
	}
	submitted := 0
	for id, g := range s.guesses[domain.RoundKey(round)][team] {
		if id != active && g.Present() {
			submitted++
		}
	}
	if submitted >= nonActive {
		s.advanceTeamPhaseLocked(team, domain.PhaseConfUs, round)
	}
}

func (s *Session) onConf(snapshot json.RawMessage) {
	s.mu.Lock()
	conf := make(map[string]map[domain.Team]domain.Submission)
	s.decode(snapshot, &conf, "conf")
	s.conf = conf

	// The active player's confirmation closes the own-code half of the
	// round: the team starts guessing the opponent and its next round
	// unlocks. Without an opponent there is nobody to guess about, so the
	// team stays put.
	for rk, byTeam := range conf {
		round, err := domain.ParseRoundKey(rk)
		if err != nil {
			continue
		}
		for _, team := range domain.AllTeams {
			if sub, ok := byTeam[team]; !ok || !sub.Present() {
				continue
			}
			if s.roundPhaseLocked(team, round) != domain.PhaseConfUs {
				continue
			}
			if len(s.teams.List(team.Opponent())) > 0 {
				s.advanceTeamPhaseLocked(team, domain.PhaseGuessThem, round)
			}
			s.unlockNextRoundLocked(team, round)
		}
	}
	s.mu.Unlock()
	s.emit()
}

func (s *Session) onTGuesses(snapshot json.RawMessage) {
	s.mu.Lock()
	tguesses := make(map[string]map[string]domain.Submission)
	s.decode(snapshot, &tguesses, "tguesses")
	s.tguesses = tguesses

	// A guess from X about Y means Y must now confirm its real code: the
	// guessed-about team advances to conf_them, and its active player's
	// confirmation fields are pre-populated with what the opponents sent.
	received := make(map[domain.Team]bool)
	for rk, byPair := range tguesses {
		round, err := domain.ParseRoundKey(rk)
		if err != nil {
			continue
		}
		for _, from := range domain.AllTeams {
			about := from.Opponent()
			sub, ok := byPair[domain.PairKey(from, about)]
			if !ok || !sub.Present() {
				continue
			}
			s.receivedTGuesses[about] = append([]int(nil), sub.Values...)
			received[about] = true
			if s.roundPhaseLocked(about, round) == domain.PhaseGuessThem {
				s.advanceTeamPhaseLocked(about, domain.PhaseConfThem, round)
			}
		}
	}
	// A reset empties the subtree; stale pre-populated guesses must not
	// survive it.
	for _, team := range domain.AllTeams {
		if !received[team] {
			delete(s.receivedTGuesses, team)
		}
	}
	s.mu.Unlock()
	s.emit()
}

func (s *Session) onTConf(snapshot json.RawMessage) {
	s.mu.Lock()
	tconf := make(map[string]map[string]domain.Submission)
	s.decode(snapshot, &tconf, "tconf")
	s.tconf = tconf

	// Both cross-team confirmations present while both teams sit in
	// conf_them ends the round for everyone.
	for rk, byPair := range tconf {
		round, err := domain.ParseRoundKey(rk)
		if err != nil {
			continue
		}
		confAB, okAB := byPair[domain.PairKey(domain.TeamA, domain.TeamB)]
		confBA, okBA := byPair[domain.PairKey(domain.TeamB, domain.TeamA)]
		if !okAB || !confAB.Present() || !okBA || !confBA.Present() {
			continue
		}
		if s.roundPhaseLocked(domain.TeamA, round) == domain.PhaseConfThem &&
			s.roundPhaseLocked(domain.TeamB, round) == domain.PhaseConfThem {
			s.logger.Info("round complete, both teams to review", "round", round)
			s.advanceTeamPhaseLocked(domain.TeamA, domain.PhaseReview, round)
			s.advanceTeamPhaseLocked(domain.TeamB, domain.PhaseReview, round)
		}
	}
	s.mu.Unlock()
	s.emit()
}

func (s *Session) onCollabTGuesses(snapshot json.RawMessage) {
	s.mu.Lock()
	collab := make(map[string]map[string]domain.CollabEntry)
	s.decode(snapshot, &collab, "collab_tguesses")
	s.collabTG = collab
	s.mu.Unlock()
	s.emit()
}

func (s *Session) onCollabGuessUs(snapshot json.RawMessage) {
	s.mu.Lock()
	collab := make(map[string]map[domain.Team]domain.CollabEntry)
	s.decode(snapshot, &collab, "collab_guess_us")
	s.collabGuess = collab
	s.mu.Unlock()
	s.emit()
}

func (s *Session) onTyping(snapshot json.RawMessage) {
	s.mu.Lock()
	typing := make(map[string]map[string]map[string]domain.TypingStatus)
	s.decode(snapshot, &typing, "typing")
	s.typing = typing
	s.mu.Unlock()
	s.emit()
}

func (s *Session) onHints(snapshot json.RawMessage) {
	s.mu.Lock()
	hints := make(map[string]map[domain.Team]map[string]domain.Hint)
	s.decode(snapshot, &hints, "hints")
	s.hints = hints
	s.mu.Unlock()
	s.emit()
}

func (s *Session) onClueLogs(snapshot json.RawMessage) {
	s.mu.Lock()
	logs := make(map[string]map[domain.Team]domain.ClueLog)
	s.decode(snapshot, &logs, "logs/clues")
	s.clueLogs = logs
	s.mu.Unlock()
	s.emit()
}

// --- phase machinery ---

// AdvanceTeamPhase requests one transition of a team's phase machine for
// the given round (0 means the selected round). Requests outside the
// transition table are dropped, which makes repeated calls safe: a second
// identical request finds the machine already past the transition and
// does nothing.
func (s *Session) AdvanceTeamPhase(team domain.Team, target domain.Phase, round int) {
	s.mu.Lock()
	round = s.effectiveRoundLocked(round)
	s.advanceTeamPhaseLocked(team, target, round)
	s.mu.Unlock()
	s.emit()
}

// advanceTeamPhaseLocked applies one transition of the per-team phase
// machine. Invalid transitions are logged no-ops: every client replays
// the same advancement rules against the same snapshots, so a transition
// already taken elsewhere simply finds the machine past it and does
// nothing. That idempotency is what makes concurrent writers converge.
func (s *Session) advanceTeamPhaseLocked(team domain.Team, target domain.Phase, round int) {
	if !team.Valid() || !target.Known() {
		return
	}
	if round < 1 || round > domain.TotalRounds {
		return
	}
	current := s.roundPhaseLocked(team, round)
	if !current.CanTransitionTo(target) {
		s.logger.Warn("phase advance blocked",
			"team", team, "from", current, "to", target, "round", round)
		return
	}
	s.logger.Info("phase advance",
		"team", team, "from", current, "to", target, "round", round)
	s.setRoundPhaseLocked(team, round, target)
}

// setRoundPhaseLocked records a phase unconditionally, locally and in the
// store. The selected-round alias under state/teamPhases is kept in step.
func (s *Session) setRoundPhaseLocked(team domain.Team, round int, phase domain.Phase) {
	if !team.Valid() || phase == "" || round < 1 || round > domain.TotalRounds {
		return
	}
	key := domain.RoundKey(round)
	if s.roundPhases[team] == nil {
		s.roundPhases[team] = make(map[string]domain.Phase)
	}
	s.roundPhases[team][key] = phase
	if round == s.round {
		s.teamPhases[team] = phase
	}
	if s.roomID == "" {
		return
	}
	err := s.store.Update(context.Background(), map[string]any{
		s.roomPath("state", "roundPhases", team.String(), key): phase,
		s.roomPath("state", "teamPhases", team.String()):       s.teamPhases[team],
	})
	if err != nil {
		s.logger.Error("round phase write failed",
			"team", team, "round", round, "phase", phase, "error", err)
	}
}

// unlockNextRoundLocked raises a team's unlock level to currentRound+1.
// Unlock levels only move forward. A client on the unlocking team follows
// its team into the new round automatically.
func (s *Session) unlockNextRoundLocked(team domain.Team, currentRound int) {
	if !team.Valid() {
		return
	}
	next := currentRound + 1
	if next > domain.TotalRounds {
		return
	}
	if next <= s.unlockedRoundLocked(team) {
		return
	}
	s.unlockedRounds[team] = next
	if s.roomID != "" {
		err := s.store.Set(context.Background(), s.roomPath("state", "unlockedRounds", team.String()), next)
		if err != nil {
			s.logger.Error("unlock write failed", "team", team, "round", next, "error", err)
		}
	}
	if s.myTeamLocked() == team {
		s.selectRoundLocked(next)
	}
}

// SetSelectedRound switches the locally viewed round. The selection is
// sticky: remote round changes stop overriding it. Rounds above the
// caller's team unlock level are rejected.
func (s *Session) SetSelectedRound(round int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if round < 1 || round > domain.TotalRounds {
		return domain.ErrRoundOutOfRange
	}
	team := s.myTeamLocked()
	if team == "" {
		team = domain.TeamA
	}
	if round > s.unlockedRoundLocked(team) {
		return domain.ErrRoundLocked
	}
	s.selectRoundLocked(round)
	return nil
}

func (s *Session) selectRoundLocked(round int) {
	s.userSelectedRound = true
	s.round = round
	s.syncTeamPhaseAliasLocked(round)
}

// syncTeamPhaseAliasLocked rebuilds the per-team phase aliases for the
// selected round and refreshes turn holders.
func (s *Session) syncTeamPhaseAliasLocked(round int) {
	s.teamPhases = map[domain.Team]domain.Phase{
		domain.TeamA: s.roundPhaseLocked(domain.TeamA, round),
		domain.TeamB: s.roundPhaseLocked(domain.TeamB, round),
	}
	s.updateActivePlayersLocked(round)
}

// updateActivePlayersLocked recomputes who holds the turn on each team
// for the round and publishes the mapping only when it changed. The
// derivation is deterministic from roster order and round number, so
// concurrent writers all publish the same value.
func (s *Session) updateActivePlayersLocked(round int) {
	next := map[domain.Team]string{
		domain.TeamA: s.activePlayerLocked(domain.TeamA, round),
		domain.TeamB: s.activePlayerLocked(domain.TeamB, round),
	}
	changed := next[domain.TeamA] != s.activePlayers[domain.TeamA] ||
		next[domain.TeamB] != s.activePlayers[domain.TeamB]
	s.activePlayers = next
	if !changed || s.roomID == "" {
		return
	}
	stringKeyed := map[string]string{
		domain.TeamA.String(): next[domain.TeamA],
		domain.TeamB.String(): next[domain.TeamB],
	}
	if err := s.store.Set(context.Background(), s.roomPath("state", "activePlayers"), stringKeyed); err != nil {
		s.logger.Error("active player write failed", "error", err)
	}
}
