package domain

import (
	"encoding/json"
	"sort"
)

// Submission is a round-scoped digit submission (guess, conf, tguess,
// tconf). On the wire it is normally a plain array of small integers, but
// rooms written by older clients may instead hold an object keyed by
// playerId. Decoding normalizes both shapes into one value instead of
// shape-sniffing at every use site.
type Submission struct {
	Values []int
	// Legacy is set when the value was decoded from the keyed-by-player
	// object form.
	Legacy bool
	// By is the submitting playerId when known (legacy form only).
	By string
}

// Present reports whether a submission has been made. Absence of the node
// means "not yet submitted"; an empty array is treated the same way.
func (s Submission) Present() bool {
	return len(s.Values) > 0
}

// MarshalJSON always emits the canonical array form.
func (s Submission) MarshalJSON() ([]byte, error) {
	if s.Values == nil {
		return []byte("null"), nil
	}
	return json.Marshal(s.Values)
}

// UnmarshalJSON accepts the array form or the legacy keyed-by-playerId
// object form. For the legacy form the entry with the lowest playerId is
// taken so every client normalizes to the same value.
func (s *Submission) UnmarshalJSON(data []byte) error {
	*s = Submission{}

	var arr []int
	if err := json.Unmarshal(data, &arr); err == nil {
		s.Values = arr
		return nil
	}

	var keyed map[string][]int
	if err := json.Unmarshal(data, &keyed); err != nil {
		return err
	}
	if len(keyed) == 0 {
		return nil
	}
	ids := make([]string, 0, len(keyed))
	for id := range keyed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	s.Values = keyed[ids[0]]
	s.Legacy = true
	s.By = ids[0]
	return nil
}

// ValidateDigits checks a digit submission before any write: exactly
// CodeLength values, each within [1, CodeDigits], no repeats.
func ValidateDigits(values []int) error {
	if len(values) != CodeLength {
		return ErrIncompleteSubmission
	}
	seen := make(map[int]struct{}, len(values))
	for _, v := range values {
		if v < 1 || v > CodeDigits {
			return ErrDigitOutOfRange
		}
		if _, dup := seen[v]; dup {
			return ErrDuplicateValues
		}
		seen[v] = struct{}{}
	}
	return nil
}

// ValidateClues checks a clue submission: exactly CodeLength non-empty
// words with no repeats.
func ValidateClues(clues []string) error {
	if len(clues) != CodeLength {
		return ErrIncompleteSubmission
	}
	seen := make(map[string]struct{}, len(clues))
	for _, c := range clues {
		if c == "" {
			return ErrIncompleteSubmission
		}
		if _, dup := seen[c]; dup {
			return ErrDuplicateValues
		}
		seen[c] = struct{}{}
	}
	return nil
}
