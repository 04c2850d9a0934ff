package duplicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "muller", normalize("Müller"))
	assert.Equal(t, "de la tour", normalize("  De   La  Tour "))
	assert.Equal(t, "francois", normalize("FRANÇOIS"))
	assert.Equal(t, "", normalize("   "))
}

func TestFuzzyEqual(t *testing.T) {
	t.Run("diacritics and case fold away", func(t *testing.T) {
		assert.True(t, fuzzyEqual("Müller", "MULLER"))
	})

	t.Run("short values tolerate one edit", func(t *testing.T) {
		assert.True(t, fuzzyEqual("dupon", "dupont"))
		assert.False(t, fuzzyEqual("dupon", "duranx"))
	})

	t.Run("longer values tolerate two edits", func(t *testing.T) {
		assert.True(t, fuzzyEqual("lefebvre", "lefevbre"))
		assert.False(t, fuzzyEqual("lefebvre", "martinez"))
	})

	t.Run("empty never matches non-empty", func(t *testing.T) {
		assert.False(t, fuzzyEqual("", "dupont"))
		assert.True(t, fuzzyEqual("", ""))
	})
}

func TestLevenshteinCutoff(t *testing.T) {
	t.Run("distance within limit is exact", func(t *testing.T) {
		assert.Equal(t, 1, levenshtein("dupont", "dupond", 2))
		assert.Equal(t, 2, levenshtein("marie", "maria ", 2))
	})

	t.Run("distance beyond limit reports limit+1", func(t *testing.T) {
		assert.Equal(t, 3, levenshtein("dupont", "martinez", 2))
	})

	t.Run("length difference alone can exceed the limit", func(t *testing.T) {
		assert.Equal(t, 2, levenshtein("ab", "abcde", 1))
	})
}
