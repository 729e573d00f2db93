package domain

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
)

const (
	// TotalRounds is the fixed number of rounds in one game cycle.
	TotalRounds = 8

	// WordsPerTeam is the number of secret words assigned to each team.
	WordsPerTeam = 4

	// RoomCodeLength is the length of a room code (uppercase letters).
	RoomCodeLength = 4

	roundKeyPrefix = "round_"
)

var roomCodePattern = regexp.MustCompile(`^[A-Z]{4}$`)

// RoundKey renders a round number as the document key used under every
// round-scoped subtree ("round_1".."round_8").
func RoundKey(round int) string {
	return roundKeyPrefix + strconv.Itoa(round)
}

// ParseRoundKey extracts the round number from a "round_n" key.
func ParseRoundKey(key string) (int, error) {
	rest, ok := strings.CutPrefix(key, roundKeyPrefix)
	if !ok {
		return 0, fmt.Errorf("malformed round key %q", key)
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 || n > TotalRounds {
		return 0, fmt.Errorf("malformed round key %q", key)
	}
	return n, nil
}

// ValidRoomCode reports whether code is a well-formed 4-uppercase-letter
// room code.
func ValidRoomCode(code string) bool {
	return roomCodePattern.MatchString(code)
}

// GenerateRoomCode returns a random 4-letter room code.
func GenerateRoomCode() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	b := make([]byte, RoomCodeLength)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}

// DrawDistinctWords shuffles candidates and returns up to n distinct
// words, uppercased. Fewer than n distinct candidates yields a short
// result; callers decide the fallback.
func DrawDistinctWords(candidates []string, n int) []string {
	shuffled := append([]string(nil), candidates...)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	for _, w := range shuffled {
		upper := strings.ToUpper(strings.TrimSpace(w))
		if upper == "" {
			continue
		}
		if _, dup := seen[upper]; dup {
			continue
		}
		seen[upper] = struct{}{}
		out = append(out, upper)
		if len(out) == n {
			break
		}
	}
	return out
}

// Player is one participant's record under players/{playerId}. Team is
// empty until the player picks a side in the lobby.
type Player struct {
	Name string `json:"name"`
	Team Team   `json:"team,omitempty"`
}

// ClueSet is the active player's clue submission for one (round, team).
type ClueSet struct {
	Clues []string `json:"clues"`
}

// Hint is a free-form note a team keeps against one of the opponent
// panels. Hints are only visible to the team that wrote them.
type Hint struct {
	Text    string `json:"text"`
	Panel   int    `json:"panel"`
	Team    Team   `json:"team"`
	By      string `json:"by"`
	Ts      int64  `json:"ts"`
	Crossed bool   `json:"crossed"`
}

// ClueLog is the audit record written alongside each clue submission.
type ClueLog struct {
	Round      int      `json:"round"`
	Team       Team     `json:"team"`
	PlayerName string   `json:"playerName"`
	PlayerID   string   `json:"playerId"`
	Clues      []string `json:"clues"`
	Timestamp  int64    `json:"timestamp"`
}

// CollabEntry is a shared live-input buffer (collaborative guess fields),
// last-writer-wins.
type CollabEntry struct {
	Values      []string `json:"values"`
	LastUpdated int64    `json:"lastUpdated"`
	UpdatedBy   string   `json:"updatedBy"`
}

// TypingStatus marks a player as currently editing a collaborative field.
type TypingStatus struct {
	IsTyping  bool  `json:"isTyping"`
	Timestamp int64 `json:"timestamp"`
}

// RoomState is the shared phase-machine snapshot under state/.
type RoomState struct {
	Round          int                       `json:"round"`
	Phase          Phase                     `json:"phase"`
	TeamPhases     map[Team]Phase            `json:"teamPhases"`
	RoundPhases    map[Team]map[string]Phase `json:"roundPhases"`
	UnlockedRounds map[Team]int              `json:"unlockedRounds"`
	ActivePlayers  map[Team]string           `json:"activePlayers"`
	ResetAt        int64                     `json:"resetAt,omitempty"`
}

// DefaultRoundPhases returns a fresh per-round phase map with every round
// of both teams at "clues".
func DefaultRoundPhases() map[Team]map[string]Phase {
	out := make(map[Team]map[string]Phase, 2)
	for _, t := range AllTeams {
		m := make(map[string]Phase, TotalRounds)
		for r := 1; r <= TotalRounds; r++ {
			m[RoundKey(r)] = PhaseClues
		}
		out[t] = m
	}
	return out
}

// DefaultUnlockedRounds returns the initial unlock levels (round 1 only).
func DefaultUnlockedRounds() map[Team]int {
	return map[Team]int{TeamA: 1, TeamB: 1}
}

// NormalizeRoundPhases overlays a possibly partial remote snapshot onto the
// defaults so lookups never miss.
func NormalizeRoundPhases(raw map[Team]map[string]Phase) map[Team]map[string]Phase {
	out := DefaultRoundPhases()
	for _, t := range AllTeams {
		for key, phase := range raw[t] {
			if phase != "" {
				out[t][key] = phase
			}
		}
	}
	return out
}

// NormalizeUnlockedRounds clamps remote unlock levels into [1, TotalRounds].
func NormalizeUnlockedRounds(raw map[Team]int) map[Team]int {
	out := DefaultUnlockedRounds()
	for _, t := range AllTeams {
		if v, ok := raw[t]; ok {
			if v < 1 {
				v = 1
			}
			if v > TotalRounds {
				v = TotalRounds
			}
			out[t] = v
		}
	}
	return out
}
