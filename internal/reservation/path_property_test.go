package reservation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// canonicalizePath must be idempotent: canonicalizing an already-canonical
// path is a no-op (spec property P2).
func TestProperty_CanonicalizePath_Idempotent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		segments := rapid.SliceOfN(rapid.StringMatching(`[a-zA-Z0-9_.-]{1,8}`), 0, 6).Draw(rt, "segments")
		raw := strings.Join(segments, "/")

		once := canonicalizePath(raw)
		twice := canonicalizePath(once)
		assert.Equal(t, once, twice)
	})
}

// A canonicalized path never contains a "." or ".." component and never
// carries a leading "./" or trailing slash (spec §4.6).
func TestProperty_CanonicalizePath_NoRelativeComponents(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		segments := rapid.SliceOfN(rapid.SampledFrom([]string{".", "..", "a", "b", "sub", ""}), 0, 8).Draw(rt, "segments")
		raw := strings.Join(segments, "/")

		got := canonicalizePath(raw)
		for _, seg := range strings.Split(got, "/") {
			assert.NotEqual(t, ".", seg)
			assert.NotEqual(t, "..", seg)
		}
		assert.False(t, strings.HasPrefix(got, "./"))
		assert.False(t, strings.HasSuffix(got, "/"))
	})
}

// canonicalizePaths never returns duplicate canonical entries, regardless
// of how many aliasing forms of the same path are supplied (spec property
// P3: reservation sets are deduplicated by canonical identity).
func TestProperty_CanonicalizePaths_Deduplicates(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		base := rapid.SliceOfN(rapid.StringMatching(`[a-z]{1,6}`), 1, 5).Draw(rt, "base")
		path := strings.Join(base, "/")

		aliases := []string{path, "./" + path, path + "/", path + "/."}
		got := canonicalizePaths(aliases)

		assert.Len(t, got, 1)
		assert.Equal(t, canonicalizePath(path), got[0])
	})
}
