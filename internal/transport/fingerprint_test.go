package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFingerprint_StableForSameInputs(t *testing.T) {
	a := Fingerprint("/home/agent/project", 7)
	b := Fingerprint("/home/agent/project", 7)
	require.Equal(t, a, b)
	require.Len(t, a, 12)
}

func TestFingerprint_DiffersOnRootOrSchema(t *testing.T) {
	base := Fingerprint("/home/agent/project", 7)
	require.NotEqual(t, base, Fingerprint("/home/agent/other", 7))
	require.NotEqual(t, base, Fingerprint("/home/agent/project", 8))
}
