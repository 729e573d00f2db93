package domain

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	t.Parallel()

	for i := 0; i < 200; i++ {
		code := GenerateCode()
		require.True(t, ValidCode(code), "generated code %q must be valid", code)

		digits, err := CodeDigitsOf(code)
		require.NoError(t, err)
		require.Len(t, digits, CodeLength)

		seen := map[int]bool{}
		for _, d := range digits {
			assert.GreaterOrEqual(t, d, 1)
			assert.LessOrEqual(t, d, CodeDigits)
			assert.False(t, seen[d], "digits in %q must be distinct", code)
			seen[d] = true
		}
	}
}

func TestGenerateTeamCycle(t *testing.T) {
	t.Parallel()

	cycle := GenerateTeamCycle(slog.Default())
	require.Len(t, cycle, TotalRounds)

	seen := map[string]bool{}
	for r := 1; r <= TotalRounds; r++ {
		code, ok := cycle[RoundKey(r)]
		require.True(t, ok, "cycle must cover %s", RoundKey(r))
		require.True(t, ValidCode(code))
		// 24 permutations for 8 slots: uniqueness is expected in practice.
		assert.False(t, seen[code], "code %q repeated in cycle", code)
		seen[code] = true
	}
}

func TestValidCode(t *testing.T) {
	t.Parallel()

	valid := []string{"1.2.3", "4.2.1", "2.4.3"}
	for _, code := range valid {
		assert.True(t, ValidCode(code), code)
	}

	invalid := []string{"", "1.2", "1.2.3.4", "1.1.2", "0.1.2", "1.2.5", "a.b.c", "123"}
	for _, code := range invalid {
		assert.False(t, ValidCode(code), code)
	}
}

func TestCodeDigitsOf(t *testing.T) {
	t.Parallel()

	digits, err := CodeDigitsOf("3.1.4")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 4}, digits)

	_, err = CodeDigitsOf("3.1")
	assert.Error(t, err)
}
