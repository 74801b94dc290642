package uid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStudyUID(t *testing.T) {
	t.Run("uses default root when empty", func(t *testing.T) {
		got, err := NewStudyUID("")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(got, DefaultOrgRoot))
		assert.True(t, Valid(got), "generated UID should be valid: %s", got)
	})

	t.Run("appends dot to root without one", func(t *testing.T) {
		got, err := NewStudyUID("1.2.840.99999")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(got, "1.2.840.99999."))
		assert.True(t, Valid(got))
	})

	t.Run("stays within 64 characters", func(t *testing.T) {
		longRoot := "1.2.840.99999.1.2.3.4.5.6.7.8.9.10.11.12.13.14.15."
		got, err := NewStudyUID(longRoot)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(got), 64)
		assert.True(t, Valid(got), "truncated UID should still be valid: %s", got)
	})

	t.Run("root leaving one character still fits", func(t *testing.T) {
		root := "12." + strings.Repeat("1.", 30)
		require.Len(t, root, 63)
		got, err := NewStudyUID(root)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(got), 64)
		assert.True(t, Valid(got), "UID should be valid: %s", got)
	})

	t.Run("root at the limit is rejected", func(t *testing.T) {
		root := "123." + strings.Repeat("1.", 30)
		require.Len(t, root, 64)
		_, err := NewStudyUID(root)
		assert.ErrorContains(t, err, "no room for a suffix")
	})

	t.Run("root past the limit is rejected", func(t *testing.T) {
		_, err := NewStudyUID(strings.Repeat("1.", 40))
		assert.ErrorContains(t, err, "no room for a suffix")
	})

	t.Run("unique per call", func(t *testing.T) {
		seen := make(map[string]bool)
		for range 100 {
			got, err := NewStudyUID(DefaultOrgRoot)
			require.NoError(t, err)
			assert.False(t, seen[got], "duplicate UID generated: %s", got)
			seen[got] = true
		}
	})
}

func TestValid(t *testing.T) {
	tests := []struct {
		name string
		uid  string
		want bool
	}{
		{"typical study UID", "1.2.840.113619.2.55.3.604688119.971.1", true},
		{"single component", "1", true},
		{"empty", "", false},
		{"letters", "1.2.abc.4", false},
		{"trailing dot", "1.2.3.", false},
		{"leading dot", ".1.2.3", false},
		{"double dot", "1..2", false},
		{"too long", strings.Repeat("1.", 32) + "11", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Valid(tt.uid))
		})
	}
}
