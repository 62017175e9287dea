package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func searchRegistry(t *testing.T, keys ...string) *Registry {
	t.Helper()
	r := &Registry{resources: map[string]*Resource{}, colorMaps: map[string][]ColorRule{}}
	for _, k := range keys {
		r.resources[k] = &Resource{Key: k, DisplayName: k}
	}
	return r
}

func TestSubsequenceScore(t *testing.T) {
	p, ok := subsequenceScore("vm", "vm-instances")
	require.True(t, ok)
	assert.Equal(t, 1, p) // positions 0 + 1

	p, ok = subsequenceScore("vi", "vm-instances")
	require.True(t, ok)
	assert.Equal(t, 3, p) // v at 0, i at 3

	_, ok = subsequenceScore("xyz", "vm-instances")
	assert.False(t, ok)

	p, ok = subsequenceScore("", "anything")
	require.True(t, ok)
	assert.Equal(t, 0, p)

	// case-insensitive
	_, ok = subsequenceScore("VM", "vm-instances")
	assert.True(t, ok)
}

func TestSearchOrdering(t *testing.T) {
	r := searchRegistry(t, "vm-instances", "disks", "snapshots", "subnets")

	got := r.Search("s")
	require.NotEmpty(t, got)
	// earliest match position wins: "snapshots"/"subnets" match at 0
	assert.Equal(t, "subnets", got[0].Key) // tie on score, shorter key first
	assert.Equal(t, "snapshots", got[1].Key)

	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
}

func TestSearchDeterministic(t *testing.T) {
	r := searchRegistry(t, "aa", "ab", "ba", "bb")

	first := r.Search("a")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, r.Search("a"))
	}
}

func TestSearchNoMatch(t *testing.T) {
	r := searchRegistry(t, "disks")
	assert.Empty(t, r.Search("zzz"))
}

func TestSearchScoreFloor(t *testing.T) {
	r := searchRegistry(t, "disks")
	got := r.Search("d")
	require.Len(t, got, 1)
	assert.GreaterOrEqual(t, got[0].Score, 1)
	assert.LessOrEqual(t, got[0].Score, maxScore)
}
