package domain

import (
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
)

const (
	// CodeLength is the number of digits in a secret code.
	CodeLength = 3

	// CodeDigits is the pool codes draw from (without repetition).
	CodeDigits = 4

	// codeRetries bounds the uniqueness retry loop in GenerateTeamCycle.
	codeRetries = 100
)

// GenerateCode returns a secret code of 3 distinct digits drawn from
// {1,2,3,4}, rendered as "d.d.d". Randomness is not cryptographic.
func GenerateCode() string {
	digits := []string{"1", "2", "3", "4"}
	rand.Shuffle(len(digits), func(i, j int) {
		digits[i], digits[j] = digits[j], digits[i]
	})
	return strings.Join(digits[:CodeLength], ".")
}

// GenerateTeamCycle produces one code per round for a full cycle, keyed by
// round key ("round_1".."round_8"). Uniqueness within the cycle is best
// effort: after the retry budget is exhausted a duplicate is accepted and
// logged rather than failing the game.
func GenerateTeamCycle(logger *slog.Logger) map[string]string {
	codes := make(map[string]string, TotalRounds)
	used := make(map[string]struct{}, TotalRounds)
	for round := 1; round <= TotalRounds; round++ {
		code := GenerateCode()
		for attempt := 1; attempt < codeRetries; attempt++ {
			if _, dup := used[code]; !dup {
				break
			}
			code = GenerateCode()
		}
		if _, dup := used[code]; dup && logger != nil {
			logger.Warn("accepting duplicate code after retry budget",
				"round", round, "code", code)
		}
		used[code] = struct{}{}
		codes[RoundKey(round)] = code
	}
	return codes
}

// ValidCode reports whether s is a well-formed code: 3 distinct digits
// from {1..4} joined by dots.
func ValidCode(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != CodeLength {
		return false
	}
	seen := make(map[string]struct{}, CodeLength)
	for _, p := range parts {
		if len(p) != 1 || p[0] < '1' || p[0] > '0'+CodeDigits {
			return false
		}
		if _, dup := seen[p]; dup {
			return false
		}
		seen[p] = struct{}{}
	}
	return true
}

// CodeDigitsOf parses a "d.d.d" code into its digits.
func CodeDigitsOf(s string) ([]int, error) {
	if !ValidCode(s) {
		return nil, fmt.Errorf("malformed code %q", s)
	}
	parts := strings.Split(s, ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		out[i] = int(p[0] - '0')
	}
	return out, nil
}
