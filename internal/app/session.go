// Package app is the client-side game core: a per-client session that
// mirrors one room document from the shared store, replays the per-team
// phase machine against it, and converges with every other client through
// the store's change notifications alone. There is no central arbiter;
// all invariants are enforced cooperatively by well-behaved sessions.
package app

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"decrypto/internal/domain"
	"decrypto/internal/store"
)

const (
	// DefaultLanguage is used until a room dictates its own.
	DefaultLanguage = "it"

	// DefaultJoinRecheckDelay is the grace period before a join is
	// re-validated against room membership (see Options).
	DefaultJoinRecheckDelay = 250 * time.Millisecond

	// DefaultTypingTTL is how long a typing indicator lives before it is
	// cleared automatically.
	DefaultTypingTTL = 3 * time.Second
)

// Options configures a Session.
type Options struct {
	// Store is the shared room store. Required.
	Store store.Store

	// Storage persists the per-client identity. Defaults to a fresh
	// MemoryStorage.
	Storage Storage

	// Words supplies secret words for game resets. Optional; without it
	// every reset falls back to the existing words.
	Words WordSource

	Logger *slog.Logger

	// Language is the user's preferred language, overridden by the
	// room's language once joined.
	Language string

	// JoinRecheckDelay overrides DefaultJoinRecheckDelay. The delay is a
	// race mitigation heuristic, not a correctness guarantee: it catches
	// the window where a room's phase flips from lobby to active between
	// the initial read and listener attachment.
	JoinRecheckDelay time.Duration

	// TypingTTL overrides DefaultTypingTTL.
	TypingTTL time.Duration
}

// Session is one client's view of a room: local replicated state, the
// derived phase machine, and the write path back to the store. Construct
// one per client with NewSession; all methods are safe for concurrent use.
type Session struct {
	store   store.Store
	storage Storage
	words   WordSource
	logger  *slog.Logger

	joinRecheckDelay time.Duration
	typingTTL        time.Duration

	bus             *bus
	startInProgress atomic.Bool

	mu sync.Mutex

	playerID     string
	playerName   string
	language     string
	roomLanguage string
	roomID       string
	isCreator    bool
	creatorID    string

	players     map[string]domain.Player
	teams       domain.Teams
	teamWords   map[domain.Team][]string
	codes       map[domain.Team]map[string]string
	hints       map[string]map[domain.Team]map[string]domain.Hint
	clues       map[string]map[domain.Team]domain.ClueSet
	guesses     map[string]map[domain.Team]map[string]domain.Submission
	conf        map[string]map[domain.Team]domain.Submission
	tguesses    map[string]map[string]domain.Submission
	tconf       map[string]map[string]domain.Submission
	collabTG    map[string]map[string]domain.CollabEntry
	collabGuess map[string]map[domain.Team]domain.CollabEntry
	typing      map[string]map[string]map[string]domain.TypingStatus
	clueLogs    map[string]map[domain.Team]domain.ClueLog

	receivedTGuesses map[domain.Team][]int

	round             int
	phase             domain.Phase
	teamPhases        map[domain.Team]domain.Phase
	roundPhases       map[domain.Team]map[string]domain.Phase
	unlockedRounds    map[domain.Team]int
	activePlayers     map[domain.Team]string
	resetAt           int64
	userSelectedRound bool

	detaches []store.DetachFunc
}

// NewSession builds a session around a store, restoring any persisted
// identity from storage.
func NewSession(opts Options) (*Session, error) {
	if opts.Store == nil {
		return nil, domain.ErrStoreUnavailable
	}
	if opts.Storage == nil {
		opts.Storage = NewMemoryStorage()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.JoinRecheckDelay <= 0 {
		opts.JoinRecheckDelay = DefaultJoinRecheckDelay
	}
	if opts.TypingTTL <= 0 {
		opts.TypingTTL = DefaultTypingTTL
	}

	s := &Session{
		store:            opts.Store,
		storage:          opts.Storage,
		words:            opts.Words,
		logger:           opts.Logger,
		joinRecheckDelay: opts.JoinRecheckDelay,
		typingTTL:        opts.TypingTTL,
		bus:              newBus(opts.Logger),
		playerID:         EnsurePlayerID(opts.Storage),
	}
	if name, ok := opts.Storage.Get(storageKeyName); ok {
		s.playerName = name
	}
	s.language = opts.Language
	if lang, ok := opts.Storage.Get(storageKeyLanguage); ok && s.language == "" {
		s.language = lang
	}
	if s.language == "" {
		s.language = DefaultLanguage
	}
	if room, ok := opts.Storage.Get(storageKeyRoom); ok {
		s.roomID = room
	}
	s.resetLocalStateLocked()
	return s, nil
}

// resetLocalStateLocked re-initializes the replicated-state mirror.
func (s *Session) resetLocalStateLocked() {
	s.players = make(map[string]domain.Player)
	s.teams = domain.Teams{}
	s.teamWords = map[domain.Team][]string{domain.TeamA: {}, domain.TeamB: {}}
	s.codes = map[domain.Team]map[string]string{domain.TeamA: {}, domain.TeamB: {}}
	s.hints = make(map[string]map[domain.Team]map[string]domain.Hint)
	s.clues = make(map[string]map[domain.Team]domain.ClueSet)
	s.guesses = make(map[string]map[domain.Team]map[string]domain.Submission)
	s.conf = make(map[string]map[domain.Team]domain.Submission)
	s.tguesses = make(map[string]map[string]domain.Submission)
	s.tconf = make(map[string]map[string]domain.Submission)
	s.collabTG = make(map[string]map[string]domain.CollabEntry)
	s.collabGuess = make(map[string]map[domain.Team]domain.CollabEntry)
	s.typing = make(map[string]map[string]map[string]domain.TypingStatus)
	s.clueLogs = make(map[string]map[domain.Team]domain.ClueLog)
	s.receivedTGuesses = make(map[domain.Team][]int)
	s.round = 1
	s.phase = domain.PhaseLobby
	s.teamPhases = map[domain.Team]domain.Phase{domain.TeamA: domain.PhaseLobby, domain.TeamB: domain.PhaseLobby}
	s.roundPhases = domain.DefaultRoundPhases()
	s.unlockedRounds = domain.DefaultUnlockedRounds()
	s.activePlayers = map[domain.Team]string{domain.TeamA: "", domain.TeamB: ""}
	s.resetAt = 0
	s.userSelectedRound = false
}

// OnChange registers a callback fired after every local-state mutation,
// whether it came from a local action or a remote snapshot. The returned
// function unsubscribes.
func (s *Session) OnChange(fn func()) func() {
	return s.bus.subscribe(fn)
}

func (s *Session) emit() {
	s.bus.emit()
}

// roomPath builds a store path under this session's room.
func (s *Session) roomPath(parts ...string) string {
	return store.Join(append([]string{"rooms", s.roomID}, parts...)...)
}

// --- identity accessors ---

// PlayerID returns the stable per-session player id.
func (s *Session) PlayerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerID
}

// PlayerName returns the current display name.
func (s *Session) PlayerName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerName
}

// SetName sets and persists the display name.
func (s *Session) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playerName = strings.TrimSpace(name)
	s.storage.Set(storageKeyName, s.playerName)
}

// Language returns the effective language (room's once joined).
func (s *Session) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roomLanguage != "" {
		return s.roomLanguage
	}
	return s.language
}

// RoomID returns the joined room code, or "".
func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// IsCreator reports whether this session is the room host.
func (s *Session) IsCreator() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isCreator
}

// --- room state accessors ---

// Players returns a copy of the player records.
func (s *Session) Players() map[string]domain.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.Player, len(s.players))
	for id, p := range s.players {
		out[id] = p
	}
	return out
}

// Teams returns the current rosters.
func (s *Session) Teams() domain.Teams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Teams{
		A: append([]string(nil), s.teams.A...),
		B: append([]string(nil), s.teams.B...),
	}
}

// TeamNames returns the display names of a roster, in rotation order.
func (s *Session) TeamNames(team domain.Team) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	roster := s.teams.List(team)
	out := make([]string, len(roster))
	for i, id := range roster {
		if p, ok := s.players[id]; ok {
			out[i] = p.Name
		} else {
			out[i] = "—"
		}
	}
	return out
}

// MyTeam returns the team this player is rostered on, or "".
func (s *Session) MyTeam() domain.Team {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.myTeamLocked()
}

func (s *Session) myTeamLocked() domain.Team {
	if t, ok := s.teams.TeamOf(s.playerID); ok {
		return t
	}
	return ""
}

// Round returns the locally selected round.
func (s *Session) Round() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.round
}

// Phase returns the room-level phase (lobby, clues, finished).
func (s *Session) Phase() domain.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// TeamPhase returns a team's phase for the selected round.
func (s *Session) TeamPhase(team domain.Team) domain.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.teamPhases[team]
}

// RoundPhase returns a team's phase for a given round.
func (s *Session) RoundPhase(team domain.Team, round int) domain.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roundPhaseLocked(team, round)
}

func (s *Session) roundPhaseLocked(team domain.Team, round int) domain.Phase {
	if !team.Valid() || round < 1 || round > domain.TotalRounds {
		return domain.PhaseClues
	}
	if p, ok := s.roundPhases[team][domain.RoundKey(round)]; ok && p != "" {
		return p
	}
	return domain.PhaseClues
}

// UnlockedRound returns the highest round a team may view.
func (s *Session) UnlockedRound(team domain.Team) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlockedRoundLocked(team)
}

func (s *Session) unlockedRoundLocked(team domain.Team) int {
	if !team.Valid() {
		return 1
	}
	if v, ok := s.unlockedRounds[team]; ok && v >= 1 {
		return v
	}
	return 1
}

// ActivePlayer returns who holds the turn for a team on a given round
// (rotation by round index over the roster).
func (s *Session) ActivePlayer(team domain.Team, round int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activePlayerLocked(team, round)
}

func (s *Session) activePlayerLocked(team domain.Team, round int) string {
	if !team.Valid() {
		return ""
	}
	return domain.ActivePlayer(s.teams.List(team), round)
}

// IsActivePlayer reports whether this player holds the turn on their team
// for the selected round.
func (s *Session) IsActivePlayer() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	team := s.myTeamLocked()
	if team == "" {
		return false
	}
	return s.activePlayerLocked(team, s.round) == s.playerID
}

// NextActivePlayer returns who would hold the turn after the current
// active player on the given team.
func (s *Session) NextActivePlayer(team domain.Team) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	roster := s.teams.List(team)
	if len(roster) == 0 {
		return ""
	}
	current := s.activePlayerLocked(team, s.round)
	for i, id := range roster {
		if id == current {
			return roster[(i+1)%len(roster)]
		}
	}
	return roster[0]
}

// MyTeamWords returns this team's four secret words.
func (s *Session) MyTeamWords() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	team := s.myTeamLocked()
	if team == "" {
		return nil
	}
	return append([]string(nil), s.teamWords[team]...)
}

// MyTeamCodes returns this team's codes as a slice indexed by round-1;
// rounds without a code yet yield "".
func (s *Session) MyTeamCodes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	team := s.myTeamLocked()
	if team == "" {
		return nil
	}
	out := make([]string, domain.TotalRounds)
	for r := 1; r <= domain.TotalRounds; r++ {
		out[r-1] = s.codes[team][domain.RoundKey(r)]
	}
	return out
}

// Clues returns the clue set for (round, team), if submitted.
func (s *Session) Clues(round int, team domain.Team) (domain.ClueSet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.clues[domain.RoundKey(round)][team]
	return cs, ok
}

// Guesses returns the per-player guesses for (round, team).
func (s *Session) Guesses(round int, team domain.Team) map[string]domain.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.Submission)
	for id, g := range s.guesses[domain.RoundKey(round)][team] {
		out[id] = g
	}
	return out
}

// Conf returns the confirmed code digits for (round, team), if present.
func (s *Session) Conf(round int, team domain.Team) (domain.Submission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.conf[domain.RoundKey(round)][team]
	return sub, ok
}

// TGuess returns a team's guess about the opposing team's code.
func (s *Session) TGuess(round int, from domain.Team) (domain.Submission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.tguesses[domain.RoundKey(round)][domain.PairKey(from, from.Opponent())]
	return sub, ok
}

// TConf returns the published confirmation keyed by pair.
func (s *Session) TConf(round int, pairKey string) (domain.Submission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.tconf[domain.RoundKey(round)][pairKey]
	return sub, ok
}

// ReceivedTGuesses returns the latest opponent guesses targeting the
// given team.
func (s *Session) ReceivedTGuesses(team domain.Team) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.receivedTGuesses[team]...)
}

// Hints returns a team's hints for a round, keyed by hint id.
func (s *Session) Hints(round int, team domain.Team) map[string]domain.Hint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.Hint)
	for id, h := range s.hints[domain.RoundKey(round)][team] {
		out[id] = h
	}
	return out
}

// ClueLog returns the audit record of a clue submission.
func (s *Session) ClueLog(round int, team domain.Team) (domain.ClueLog, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.clueLogs[domain.RoundKey(round)][team]
	return l, ok
}

// CollabTGuess returns the live collaborative buffer for a pair key.
func (s *Session) CollabTGuess(round int, pairKey string) (domain.CollabEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.collabTG[domain.RoundKey(round)][pairKey]
	return e, ok
}

// CollabGuessUs returns a team's live own-guess buffer.
func (s *Session) CollabGuessUs(round int, team domain.Team) (domain.CollabEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.collabGuess[domain.RoundKey(round)][team]
	return e, ok
}

// TypingPlayers returns the ids currently typing into the collaborative
// field identified by pairKey, ignoring stale indicators.
func (s *Session) TypingPlayers(round int, pairKey string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-s.typingTTL).UnixMilli()
	var out []string
	for id, st := range s.typing[domain.RoundKey(round)][pairKey] {
		if st.IsTyping && st.Timestamp >= cutoff {
			out = append(out, id)
		}
	}
	return out
}

// --- submission write path ---

// effectiveRound resolves a round argument: 0 means the selected round.
// The result is clamped to 1..TotalRounds so a stray argument cannot
// write a round subtree no listener will ever read.
func (s *Session) effectiveRoundLocked(round int) int {
	if round <= 0 {
		round = s.round
	}
	if round < 1 {
		round = 1
	}
	if round > domain.TotalRounds {
		round = domain.TotalRounds
	}
	return round
}

// memberTeamLocked returns the caller's team, erroring when unjoined or
// unassigned; every submission write requires both.
func (s *Session) memberTeamLocked() (domain.Team, error) {
	if s.roomID == "" {
		return "", domain.ErrNotJoined
	}
	me, ok := s.players[s.playerID]
	if !ok || !me.Team.Valid() {
		return "", domain.ErrNoTeam
	}
	return me.Team, nil
}

// SaveClues submits the active player's three clues for the round,
// alongside the audit log entry. Validation failures reject the write
// before anything is stored.
func (s *Session) SaveClues(ctx context.Context, clues []string, round int) error {
	if err := domain.ValidateClues(clues); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	team, err := s.memberTeamLocked()
	if err != nil {
		return err
	}
	round = s.effectiveRoundLocked(round)
	rk := domain.RoundKey(round)
	log := domain.ClueLog{
		Round:      round,
		Team:       team,
		PlayerName: s.players[s.playerID].Name,
		PlayerID:   s.playerID,
		Clues:      clues,
		Timestamp:  time.Now().UnixMilli(),
	}
	return s.store.Update(ctx, map[string]any{
		s.roomPath("clues", rk, team.String()):         domain.ClueSet{Clues: clues},
		s.roomPath("logs", "clues", rk, team.String()): log,
	})
}

// SaveGuess submits a non-active member's guess of their own team's code.
func (s *Session) SaveGuess(ctx context.Context, guess []int, round int) error {
	if err := domain.ValidateDigits(guess); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	team, err := s.memberTeamLocked()
	if err != nil {
		return err
	}
	rk := domain.RoundKey(s.effectiveRoundLocked(round))
	return s.store.Set(ctx, s.roomPath("guesses", rk, team.String(), s.playerID), guess)
}

// SaveConf publishes the active player's confirmation of the team's real
// code. It is dual-written as a same-team tconf so the opposing team can
// later see the confirmed mapping.
func (s *Session) SaveConf(ctx context.Context, conf []int, round int) error {
	if err := domain.ValidateDigits(conf); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	team, err := s.memberTeamLocked()
	if err != nil {
		return err
	}
	rk := domain.RoundKey(s.effectiveRoundLocked(round))
	return s.store.Update(ctx, map[string]any{
		s.roomPath("conf", rk, team.String()):               conf,
		s.roomPath("tconf", rk, domain.PairKey(team, team)): conf,
	})
}

// SaveTGuess submits the team's final guess of the opposing team's code.
func (s *Session) SaveTGuess(ctx context.Context, tguess []int, round int) error {
	if err := domain.ValidateDigits(tguess); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	team, err := s.memberTeamLocked()
	if err != nil {
		return err
	}
	rk := domain.RoundKey(s.effectiveRoundLocked(round))
	return s.store.Set(ctx, s.roomPath("tguesses", rk, domain.PairKey(team, team.Opponent())), tguess)
}

// SaveTConf publishes the opposing team's real code back to them, closing
// the round in that direction.
func (s *Session) SaveTConf(ctx context.Context, tconf []int, round int) error {
	if err := domain.ValidateDigits(tconf); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	team, err := s.memberTeamLocked()
	if err != nil {
		return err
	}
	rk := domain.RoundKey(s.effectiveRoundLocked(round))
	return s.store.Set(ctx, s.roomPath("tconf", rk, domain.PairKey(team, team.Opponent())), tconf)
}

// UpdateCollaborativeTGuess shares in-progress opponent-guess input with
// teammates. Last writer wins; no validation since values are partial.
func (s *Session) UpdateCollaborativeTGuess(ctx context.Context, values []string, round int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	team, err := s.memberTeamLocked()
	if err != nil {
		return err
	}
	rk := domain.RoundKey(s.effectiveRoundLocked(round))
	entry := domain.CollabEntry{Values: values, LastUpdated: time.Now().UnixMilli(), UpdatedBy: s.playerID}
	return s.store.Set(ctx, s.roomPath("collab_tguesses", rk, domain.PairKey(team, team.Opponent())), entry)
}

// UpdateCollaborativeGuessUs shares in-progress own-guess input.
func (s *Session) UpdateCollaborativeGuessUs(ctx context.Context, values []string, round int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	team, err := s.memberTeamLocked()
	if err != nil {
		return err
	}
	rk := domain.RoundKey(s.effectiveRoundLocked(round))
	entry := domain.CollabEntry{Values: values, LastUpdated: time.Now().UnixMilli(), UpdatedBy: s.playerID}
	return s.store.Set(ctx, s.roomPath("collab_guess_us", rk, team.String()), entry)
}

// SetTypingIndicator marks this player as typing into the collaborative
// opponent-guess field. A set indicator auto-clears after the TTL.
func (s *Session) SetTypingIndicator(ctx context.Context, isTyping bool, round int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	team, err := s.memberTeamLocked()
	if err != nil {
		return err
	}
	rk := domain.RoundKey(s.effectiveRoundLocked(round))
	path := s.roomPath("typing", rk, domain.PairKey(team, team.Opponent()), s.playerID)
	if !isTyping {
		return s.store.Delete(ctx, path)
	}
	if err := s.store.Set(ctx, path, domain.TypingStatus{IsTyping: true, Timestamp: time.Now().UnixMilli()}); err != nil {
		return err
	}
	time.AfterFunc(s.typingTTL, func() {
		if err := s.store.Delete(context.Background(), path); err != nil {
			s.logger.Debug("typing auto-clear failed", "path", path, "error", err)
		}
	})
	return nil
}

// AddHint records a note against an opponent panel, visible only to the
// caller's team. Returns the generated hint id.
func (s *Session) AddHint(ctx context.Context, text string, panel, round int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	team, err := s.memberTeamLocked()
	if err != nil {
		return "", err
	}
	rk := domain.RoundKey(s.effectiveRoundLocked(round))
	id := "h_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	hint := domain.Hint{
		Text:  text,
		Panel: panel,
		Team:  team,
		By:    s.playerID,
		Ts:    time.Now().UnixMilli(),
	}
	if err := s.store.Set(ctx, s.roomPath("hints", rk, team.String(), id), hint); err != nil {
		return "", err
	}
	return id, nil
}

// UpdateHintState toggles a hint's crossed-out flag.
func (s *Session) UpdateHintState(ctx context.Context, hintID string, crossed bool, round int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	team, err := s.memberTeamLocked()
	if err != nil {
		return err
	}
	rk := domain.RoundKey(s.effectiveRoundLocked(round))
	return s.store.Set(ctx, s.roomPath("hints", rk, team.String(), hintID, "crossed"), crossed)
}

// DeleteHint removes a hint.
func (s *Session) DeleteHint(ctx context.Context, hintID string, round int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	team, err := s.memberTeamLocked()
	if err != nil {
		return err
	}
	rk := domain.RoundKey(s.effectiveRoundLocked(round))
	return s.store.Delete(ctx, s.roomPath("hints", rk, team.String(), hintID))
}

// SetWords overwrites a team's four secret words.
func (s *Session) SetWords(ctx context.Context, team domain.Team, words []string) error {
	if !team.Valid() {
		return domain.ErrInvalidTeam
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roomID == "" {
		return domain.ErrNotJoined
	}
	if len(words) > domain.WordsPerTeam {
		words = words[:domain.WordsPerTeam]
	}
	return s.store.Set(ctx, s.roomPath("words", team.String()), words)
}
