package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"decrypto/internal/domain"
	"decrypto/internal/store"
)

// roomDoc is the loosely-typed shape read back when inspecting a room
// before joining it.
type roomDoc struct {
	CreatedAt int64                    `json:"createdAt"`
	CreatorID string                   `json:"creatorId"`
	Language  string                   `json:"language"`
	Players   map[string]domain.Player `json:"players"`
	Teams     domain.Teams             `json:"teams"`
	State     struct {
		Phase domain.Phase `json:"phase"`
	} `json:"state"`
}

// CreateRoom creates a fresh room and joins it as host. The host lands on
// team A immediately and the host's language becomes the room's. A custom
// code is honored when well-formed; otherwise one is generated. Returns
// the room code.
func (s *Session) CreateRoom(ctx context.Context, customCode string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roomID := strings.ToUpper(strings.TrimSpace(customCode))
	if !domain.ValidRoomCode(roomID) {
		roomID = domain.GenerateRoomCode()
	}
	s.resetLocalStateLocked()
	s.roomID = roomID
	s.storage.Set(storageKeyRoom, roomID)
	if s.roomLanguage == "" {
		s.roomLanguage = s.language
	}
	s.isCreator = true
	s.creatorID = s.playerID
	s.players[s.playerID] = domain.Player{Name: s.playerName, Team: domain.TeamA}
	s.teams = domain.Teams{A: []string{s.playerID}, B: []string{}}

	doc := map[string]any{
		"createdAt": time.Now().UnixMilli(),
		"creatorId": s.playerID,
		"language":  s.roomLanguage,
		"players":   s.players,
		"teams":     s.teams,
		"codes": map[string]map[string]string{
			domain.TeamA.String(): {domain.RoundKey(1): domain.GenerateCode()},
			domain.TeamB.String(): {domain.RoundKey(1): domain.GenerateCode()},
		},
		"state": domain.RoomState{
			Round:          1,
			Phase:          domain.PhaseLobby,
			TeamPhases:     map[domain.Team]domain.Phase{domain.TeamA: domain.PhaseLobby, domain.TeamB: domain.PhaseLobby},
			RoundPhases:    s.roundPhases,
			UnlockedRounds: s.unlockedRounds,
			ActivePlayers:  map[domain.Team]string{domain.TeamA: s.playerID, domain.TeamB: ""},
		},
	}
	if err := s.store.Set(ctx, s.roomPath(), doc); err != nil {
		s.roomID = ""
		s.isCreator = false
		s.creatorID = ""
		s.storage.Delete(storageKeyRoom)
		return "", fmt.Errorf("create room: %w", err)
	}
	if err := s.attachListeners(); err != nil {
		s.roomID = ""
		s.isCreator = false
		s.creatorID = ""
		s.storage.Delete(storageKeyRoom)
		return "", fmt.Errorf("create room: %w", err)
	}
	s.logger.Info("room created", "room", roomID, "player", s.playerID)
	return roomID, nil
}

// JoinRoom joins an existing room by code.
//
// A started game admits no new identities: if our player id is unknown
// but a player with our name (case-insensitive) exists, that identity is
// adopted so a new device or tab continues the same seat. Otherwise the
// join is rejected. In the lobby a name collision is likewise resolved by
// adoption, keeping the name already registered. After listeners attach,
// membership is re-checked once after a short delay to close the race
// where the game starts between the initial read and attachment.
func (s *Session) JoinRoom(ctx context.Context, code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.store.Get(ctx, store.Join("rooms", code))
	if err != nil {
		return fmt.Errorf("join room %s: %w", code, err)
	}
	if len(raw) == 0 {
		return domain.ErrRoomNotFound
	}
	var room roomDoc
	if err := json.Unmarshal(raw, &room); err != nil {
		return fmt.Errorf("join room %s: %w", code, err)
	}

	s.resetLocalStateLocked()
	s.roomID = code
	s.storage.Set(storageKeyRoom, code)

	if room.Language != "" {
		s.roomLanguage = room.Language
		s.language = room.Language
		s.storage.Set(storageKeyLanguage, room.Language)
	}

	phase := room.State.Phase
	if phase == "" {
		phase = domain.PhaseLobby
	}
	started := phase != domain.PhaseLobby

	if started {
		if _, ok := room.Players[s.playerID]; !ok {
			adopted := s.adoptIdentityByNameLocked(room.Players, room.CreatorID)
			if !adopted {
				s.roomID = ""
				s.storage.Delete(storageKeyRoom)
				s.logger.Warn("late join with new name rejected", "room", code)
				return domain.ErrGameAlreadyStarted
			}
		}
	}

	s.creatorID = room.CreatorID
	if s.creatorID != "" && s.creatorID == s.playerID {
		s.isCreator = true
	}

	// Lobby-phase name collision with another id is also a rejoin from a
	// new device: adopt the existing identity rather than renaming.
	if s.playerName != "" {
		s.adoptIdentityByNameLocked(room.Players, room.CreatorID)
	}

	if existing, ok := room.Players[s.playerID]; ok {
		// Rejoin: the registered record wins, including any previously
		// chosen team. No write, so a refresh never renames anyone.
		if entered := strings.TrimSpace(s.playerName); entered != "" &&
			!strings.EqualFold(entered, existing.Name) {
			s.logger.Warn("registered name kept over entered name",
				"registered", existing.Name, "entered", entered)
		}
		s.playerName = existing.Name
		s.storage.Set(storageKeyName, s.playerName)
		s.players[s.playerID] = existing
	} else {
		record := domain.Player{Name: s.playerName}
		s.players[s.playerID] = record
		if err := s.store.Set(ctx, s.roomPath("players", s.playerID), record); err != nil {
			return fmt.Errorf("join room %s: %w", code, err)
		}
	}

	s.phase = phase
	s.teams = room.Teams
	if err := s.attachListeners(); err != nil {
		return fmt.Errorf("join room %s: %w", code, err)
	}

	// Second guard after attachment: if the game started meanwhile and we
	// were never admitted, back out.
	time.AfterFunc(s.joinRecheckDelay, func() {
		s.mu.Lock()
		if s.roomID == code && s.phase != domain.PhaseLobby {
			if _, ok := s.players[s.playerID]; !ok {
				s.logger.Warn("late join rejected after recheck", "room", code)
				s.leaveLocked()
				s.mu.Unlock()
				s.emit()
				return
			}
		}
		s.mu.Unlock()
	})

	s.logger.Info("joined room", "room", code, "player", s.playerID, "rejoin", started)
	return nil
}

// adoptIdentityByNameLocked switches this session to an existing player
// whose name matches ours case-insensitively. Reports whether adoption
// happened (an id match counts as already adopted).
func (s *Session) adoptIdentityByNameLocked(players map[string]domain.Player, creatorID string) bool {
	target := strings.TrimSpace(s.playerName)
	if target == "" {
		return false
	}
	for pid, p := range players {
		if !strings.EqualFold(p.Name, target) {
			continue
		}
		if pid != s.playerID {
			s.logger.Info("adopting existing identity", "from", s.playerID, "to", pid)
			s.playerID = pid
			s.storage.Set(storageKeyPlayerID, pid)
		}
		if pid == creatorID {
			s.isCreator = true
		}
		s.playerName = p.Name
		s.storage.Set(storageKeyName, p.Name)
		return true
	}
	return false
}

// CanJoin reports whether this session would be admitted to the room:
// always in the lobby, only as an existing player afterwards.
func (s *Session) CanJoin(ctx context.Context, code string) (bool, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	raw, err := s.store.Get(ctx, store.Join("rooms", code))
	if err != nil {
		return false, err
	}
	if len(raw) == 0 {
		return false, nil
	}
	var room roomDoc
	if err := json.Unmarshal(raw, &room); err != nil {
		return false, err
	}
	if room.State.Phase != "" && room.State.Phase != domain.PhaseLobby {
		s.mu.Lock()
		_, ok := room.Players[s.playerID]
		s.mu.Unlock()
		return ok, nil
	}
	return true, nil
}

// MoveToTeam puts this player on the given team, removing them from the
// other roster. Movers append to the end of the roster, which fixes their
// slot in the turn rotation.
func (s *Session) MoveToTeam(ctx context.Context, team domain.Team) error {
	if !team.Valid() {
		return domain.ErrInvalidTeam
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roomID == "" {
		return domain.ErrNotJoined
	}

	s.teams = s.teams.Remove(s.playerID).Append(team, s.playerID)
	p := s.players[s.playerID]
	if p.Name == "" {
		p.Name = s.playerName
	}
	p.Team = team
	s.players[s.playerID] = p

	return s.store.Update(ctx, map[string]any{
		s.roomPath("players", s.playerID, "team"): team,
		s.roomPath("teams"):                       s.teams,
	})
}

// ReassignPlayer moves another player between teams. Host-only, lobby
// only, and the host stays on team A.
func (s *Session) ReassignPlayer(ctx context.Context, playerID string, team domain.Team) error {
	if !team.Valid() {
		return domain.ErrInvalidTeam
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isCreator {
		return domain.ErrNotHost
	}
	if s.phase != domain.PhaseLobby {
		return domain.ErrNotInLobby
	}
	if playerID == s.creatorID && team != domain.TeamA {
		return domain.ErrInvalidTeam
	}
	p, ok := s.players[playerID]
	if !ok {
		return domain.ErrPlayerNotFound
	}

	s.teams = s.teams.Remove(playerID).Append(team, playerID)
	p.Team = team
	s.players[playerID] = p

	return s.store.Update(ctx, map[string]any{
		s.roomPath("players", playerID, "team"): team,
		s.roomPath("teams"):                     s.teams,
	})
}

// KickPlayer removes another player from the room. Host-only, lobby only,
// and the host cannot kick themselves.
func (s *Session) KickPlayer(ctx context.Context, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isCreator {
		return domain.ErrNotHost
	}
	if s.phase != domain.PhaseLobby {
		return domain.ErrNotInLobby
	}
	if playerID == "" || playerID == s.creatorID {
		return domain.ErrPlayerNotFound
	}
	if s.roomID == "" {
		return domain.ErrNotJoined
	}
	if _, ok := s.players[playerID]; !ok {
		return domain.ErrPlayerNotFound
	}

	s.teams = s.teams.Remove(playerID)
	delete(s.players, playerID)

	return s.store.Update(ctx, map[string]any{
		s.roomPath("players", playerID): nil,
		s.roomPath("teams"):             s.teams,
	})
}

// StartGame begins the 8-round cycle. Host-only, lobby-only, both teams
// non-empty. Codes for all 8 rounds are back-filled for any team missing
// them, the phase machine resets to round 1 clues for both teams, and the
// whole state subtree is written in one atomic update together with the
// codes, so no client ever observes a started game without codes.
func (s *Session) StartGame(ctx context.Context) error {
	// Double-starts are cheap to trigger from a double-clicked button.
	if !s.startInProgress.CompareAndSwap(false, true) {
		return domain.ErrStartInProgress
	}
	defer s.startInProgress.Store(false)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roomID == "" {
		return domain.ErrNotJoined
	}
	if !s.isCreator {
		return domain.ErrNotHost
	}
	if s.phase != domain.PhaseLobby {
		return domain.ErrNotInLobby
	}
	if len(s.teams.A) == 0 || len(s.teams.B) == 0 {
		return domain.ErrTeamsNotReady
	}

	updates := make(map[string]any)
	for _, t := range domain.AllTeams {
		if len(s.codes[t]) != domain.TotalRounds {
			cycle := domain.GenerateTeamCycle(s.logger)
			s.codes[t] = cycle
			updates[s.roomPath("codes", t.String())] = cycle
		}
	}

	s.round = 1
	s.userSelectedRound = false
	s.phase = domain.PhaseClues
	s.roundPhases = domain.DefaultRoundPhases()
	s.unlockedRounds = domain.DefaultUnlockedRounds()
	s.teamPhases = map[domain.Team]domain.Phase{domain.TeamA: domain.PhaseClues, domain.TeamB: domain.PhaseClues}
	s.activePlayers = map[domain.Team]string{
		domain.TeamA: s.activePlayerLocked(domain.TeamA, 1),
		domain.TeamB: s.activePlayerLocked(domain.TeamB, 1),
	}

	updates[s.roomPath("state")] = domain.RoomState{
		Round:          1,
		Phase:          domain.PhaseClues,
		TeamPhases:     s.teamPhases,
		RoundPhases:    s.roundPhases,
		UnlockedRounds: s.unlockedRounds,
		ActivePlayers:  s.activePlayers,
	}
	if err := s.store.Update(ctx, updates); err != nil {
		return fmt.Errorf("start game: %w", err)
	}
	s.logger.Info("game started", "room", s.roomID,
		"teamA", len(s.teams.A), "teamB", len(s.teams.B))
	return nil
}

// ResetGame starts a fresh 8-round cycle in the same room: new words from
// the language's word list, cleared submissions, a reset phase machine,
// and new round-1 codes (later rounds regenerate on advance). Everything
// lands in one atomic update so clients observe either the old cycle or
// the new one.
//
// Word fetching falls back twice (opposite-language list, then the legacy
// list) and finally to the words already in play. Total word-source
// exhaustion only fails the reset for English rooms; the Italian list
// doubles as the legacy default, so its absence degrades to reusing the
// current words instead.
func (s *Session) ResetGame(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roomID == "" {
		return domain.ErrNotJoined
	}
	if !s.isCreator {
		return domain.ErrNotHost
	}
	if s.roomLanguage == "" {
		s.roomLanguage = s.language
	}

	wordsA, wordsB, err := s.drawWordsLocked(ctx)
	if err != nil {
		return fmt.Errorf("reset game: %w", err)
	}
	if len(wordsA) != domain.WordsPerTeam {
		wordsA = fallbackWords(s.teamWords[domain.TeamA], domain.TeamA)
	}
	if len(wordsB) != domain.WordsPerTeam {
		wordsB = fallbackWords(s.teamWords[domain.TeamB], domain.TeamB)
	}

	s.roundPhases = domain.DefaultRoundPhases()
	s.unlockedRounds = domain.DefaultUnlockedRounds()
	resetAt := time.Now().UnixMilli()

	state := domain.RoomState{
		Round:          1,
		Phase:          domain.PhaseClues,
		TeamPhases:     map[domain.Team]domain.Phase{domain.TeamA: domain.PhaseClues, domain.TeamB: domain.PhaseClues},
		RoundPhases:    s.roundPhases,
		UnlockedRounds: s.unlockedRounds,
		ActivePlayers: map[domain.Team]string{
			domain.TeamA: s.activePlayerLocked(domain.TeamA, 1),
			domain.TeamB: s.activePlayerLocked(domain.TeamB, 1),
		},
		ResetAt: resetAt,
	}

	updates := map[string]any{
		s.roomPath("words", domain.TeamA.String()): wordsA,
		s.roomPath("words", domain.TeamB.String()): wordsB,
		s.roomPath("language"):                     s.roomLanguage,
		s.roomPath("hints"):                        nil,
		s.roomPath("clues"):                        nil,
		s.roomPath("guesses"):                      nil,
		s.roomPath("conf"):                         nil,
		s.roomPath("tguesses"):                     nil,
		s.roomPath("tconf"):                        nil,
		s.roomPath("collab_tguesses"):              nil,
		s.roomPath("collab_guess_us"):              nil,
		s.roomPath("typing"):                       nil,
		s.roomPath("state"):                        state,
		s.roomPath("codes"): map[string]map[string]string{
			domain.TeamA.String(): {domain.RoundKey(1): domain.GenerateCode()},
			domain.TeamB.String(): {domain.RoundKey(1): domain.GenerateCode()},
		},
	}
	if err := s.store.Update(ctx, updates); err != nil {
		return fmt.Errorf("reset game: %w", err)
	}
	s.logger.Info("game reset", "room", s.roomID, "language", s.roomLanguage)
	return nil
}

// drawWordsLocked draws 4+4 fresh words through the fallback chain. An
// empty result with nil error means the caller should reuse current words.
func (s *Session) drawWordsLocked(ctx context.Context) ([]string, []string, error) {
	if s.words == nil {
		return nil, nil, nil
	}
	lang := s.roomLanguage
	primary := wordlistFor(lang)
	var lines []string
	var lastErr error
	for _, name := range wordlistChain(primary) {
		var err error
		lines, err = s.words.Fetch(ctx, name)
		if err != nil {
			s.logger.Warn("word list fetch failed", "list", name, "error", err)
			lastErr = err
			continue
		}
		if len(lines) > 0 {
			break
		}
	}
	if len(lines) == 0 {
		// An unplayable English room is surfaced to the host; for
		// Italian the legacy list is the same content, so reuse the
		// words already on the board.
		if lastErr != nil && primary == WordlistEnglish {
			return nil, nil, lastErr
		}
		return nil, nil, nil
	}
	words := domain.DrawDistinctWords(lines, 2*domain.WordsPerTeam)
	if len(words) < 2*domain.WordsPerTeam {
		return nil, nil, nil
	}
	return words[:domain.WordsPerTeam], words[domain.WordsPerTeam : 2*domain.WordsPerTeam], nil
}

// fallbackWords reuses the words already in play, padding with
// placeholders when even those are missing.
func fallbackWords(current []string, team domain.Team) []string {
	out := make([]string, 0, domain.WordsPerTeam)
	for _, w := range current {
		if len(out) == domain.WordsPerTeam {
			break
		}
		out = append(out, w)
	}
	for i := len(out); i < domain.WordsPerTeam; i++ {
		out = append(out, fmt.Sprintf("%s%d", team, i+1))
	}
	return out
}

// AdvanceToNextRound moves the whole room into the next round. Host-only
// and only from review_round. On round 9 the room is finished instead.
// Codes for the new round are generated here, lazily, and the new round
// number, reset team phases, codes and rotated active players land in one
// atomic update; the local round then follows through the state echo.
func (s *Session) AdvanceToNextRound(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roomID == "" {
		return domain.ErrNotJoined
	}
	if !s.isCreator {
		return domain.ErrNotHost
	}
	team := s.myTeamLocked()
	if team == "" {
		return domain.ErrNoTeam
	}
	if s.teamPhases[team] != domain.PhaseReview {
		return domain.ErrInvalidPhase
	}

	next := s.round + 1
	if next > domain.TotalRounds {
		s.phase = domain.PhaseFinished
		err := s.store.Update(ctx, map[string]any{
			s.roomPath("state", "phase"): domain.PhaseFinished,
			s.roomPath("state", "round"): s.round,
		})
		if err != nil {
			return fmt.Errorf("finish game: %w", err)
		}
		s.logger.Info("game finished", "room", s.roomID)
		return nil
	}

	key := domain.RoundKey(next)
	err := s.store.Update(ctx, map[string]any{
		s.roomPath("state", "round"): next,
		s.roomPath("state", "teamPhases"): map[string]domain.Phase{
			domain.TeamA.String(): domain.PhaseClues,
			domain.TeamB.String(): domain.PhaseClues,
		},
		s.roomPath("state", "activePlayers"): map[string]string{
			domain.TeamA.String(): s.activePlayerLocked(domain.TeamA, next),
			domain.TeamB.String(): s.activePlayerLocked(domain.TeamB, next),
		},
		s.roomPath("codes", domain.TeamA.String(), key): domain.GenerateCode(),
		s.roomPath("codes", domain.TeamB.String(), key): domain.GenerateCode(),
	})
	if err != nil {
		return fmt.Errorf("advance round: %w", err)
	}
	s.logger.Info("advanced to next round", "room", s.roomID, "round", next)
	return nil
}

// Leave detaches every room listener and forgets the room. The player
// record remains in the store so they can rejoin.
func (s *Session) Leave() {
	s.mu.Lock()
	s.leaveLocked()
	s.mu.Unlock()
	s.emit()
}

func (s *Session) leaveLocked() {
	s.detachListenersLocked()
	s.roomID = ""
	s.isCreator = false
	s.creatorID = ""
	s.roomLanguage = ""
	s.storage.Delete(storageKeyRoom)
	s.resetLocalStateLocked()
}

// Close releases the session's listeners. The session is unusable after.
func (s *Session) Close() {
	s.mu.Lock()
	s.detachListenersLocked()
	s.mu.Unlock()
}
