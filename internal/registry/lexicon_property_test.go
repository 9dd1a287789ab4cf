package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// Every name the lexicon produces must already satisfy the explicit-name
// rule (spec §4.2): allocated names are camelCase ASCII by construction, so
// validateAgentName should never reject one.
func TestProperty_LexiconAt_AlwaysProducesValidName(t *testing.T) {
	lex, err := LoadLexicon()
	require.NoError(t, err)

	rapid.Check(t, func(rt *rapid.T) {
		i := rapid.IntRange(0, lex.Size()*3).Draw(rt, "i")
		name := lex.At(i)
		require.NoError(t, validateAgentName(name), "generated name %q failed validation", name)
	})
}

// At(i) is periodic with period Size(): walking past the end of the pair
// space wraps back to the same sequence of names.
func TestProperty_LexiconAt_WrapsModuloSize(t *testing.T) {
	lex, err := LoadLexicon()
	require.NoError(t, err)
	size := lex.Size()

	rapid.Check(t, func(rt *rapid.T) {
		i := rapid.IntRange(0, size*4).Draw(rt, "i")
		require.Equal(t, lex.At(i%size), lex.At(i))
	})
}
