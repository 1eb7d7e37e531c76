package registry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	assert.Equal(t, "cool-world", Slugify("Cool World"))
	assert.Equal(t, "my-game-2", Slugify("  My  Game 2! "))
	assert.Equal(t, "cafe", Slugify("café"))
	assert.Equal(t, "", Slugify("!!!"))
	assert.Equal(t, "", Slugify(""))
}

func TestAllocateProbesSuffixes(t *testing.T) {
	taken := map[string]bool{"cool-world": true}
	a := &SlugAllocator{Exists: func(s string) (bool, error) { return taken[s], nil }}

	slug, err := a.Allocate("Cool World")
	require.NoError(t, err)
	assert.Equal(t, "cool-world-2", slug)

	taken["cool-world-2"] = true
	slug, err = a.Allocate("Cool World")
	require.NoError(t, err)
	assert.Equal(t, "cool-world-3", slug)
}

func TestAllocateFallbackToken(t *testing.T) {
	a := &SlugAllocator{Exists: func(string) (bool, error) { return false, nil }}
	slug, err := a.Allocate("!!!")
	require.NoError(t, err)
	assert.Equal(t, "world", slug)
}

func TestAllocateRandomSuffixWhenExhausted(t *testing.T) {
	a := &SlugAllocator{Exists: func(string) (bool, error) { return true, nil }}
	slug, err := a.Allocate("Cool World")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(slug, "cool-world-"))
}
