package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmissionDecode(t *testing.T) {
	t.Parallel()

	t.Run("array form", func(t *testing.T) {
		t.Parallel()
		var s Submission
		require.NoError(t, json.Unmarshal([]byte(`[3,1,4]`), &s))
		assert.Equal(t, []int{3, 1, 4}, s.Values)
		assert.False(t, s.Legacy)
		assert.True(t, s.Present())
	})

	t.Run("legacy keyed form takes lowest player id", func(t *testing.T) {
		t.Parallel()
		var s Submission
		require.NoError(t, json.Unmarshal([]byte(`{"p_zz":[4,2,1],"p_aa":[1,2,3]}`), &s))
		assert.Equal(t, []int{1, 2, 3}, s.Values)
		assert.True(t, s.Legacy)
		assert.Equal(t, "p_aa", s.By)
	})

	t.Run("null", func(t *testing.T) {
		t.Parallel()
		var s Submission
		require.NoError(t, json.Unmarshal([]byte(`null`), &s))
		assert.False(t, s.Present())
	})

	t.Run("garbage rejected", func(t *testing.T) {
		t.Parallel()
		var s Submission
		assert.Error(t, json.Unmarshal([]byte(`"1.2.3"`), &s))
	})
}

func TestSubmissionEncode(t *testing.T) {
	t.Parallel()

	// Legacy values re-encode in the canonical array form.
	raw, err := json.Marshal(Submission{Values: []int{2, 4, 1}, Legacy: true, By: "p_aa"})
	require.NoError(t, err)
	assert.JSONEq(t, `[2,4,1]`, string(raw))
}

func TestValidateDigits(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateDigits([]int{1, 2, 3}))
	assert.NoError(t, ValidateDigits([]int{4, 2, 1}))

	assert.ErrorIs(t, ValidateDigits([]int{1, 2}), ErrIncompleteSubmission)
	assert.ErrorIs(t, ValidateDigits(nil), ErrIncompleteSubmission)
	assert.ErrorIs(t, ValidateDigits([]int{1, 2, 5}), ErrDigitOutOfRange)
	assert.ErrorIs(t, ValidateDigits([]int{0, 2, 3}), ErrDigitOutOfRange)
	assert.ErrorIs(t, ValidateDigits([]int{1, 2, 2}), ErrDuplicateValues)
}

func TestValidateClues(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateClues([]string{"river", "bank", "note"}))

	assert.ErrorIs(t, ValidateClues([]string{"river", "bank"}), ErrIncompleteSubmission)
	assert.ErrorIs(t, ValidateClues([]string{"river", "", "note"}), ErrIncompleteSubmission)
	assert.ErrorIs(t, ValidateClues([]string{"river", "river", "note"}), ErrDuplicateValues)
}
