package registry

import (
	"github.com/agentmaild/agentmail/internal/errs"
)

// validateAgentName checks a caller-supplied agent name: length 4-32 and
// ASCII letters only. Allocated names always satisfy this by construction
// (Lexicon.At). Either case is accepted at any position ("RedFox",
// "quietFalcon" and "redfox" all pass); word-boundary capitalization and
// membership in the lexicon are not checked.
func validateAgentName(name string) error {
	n := len(name)
	if n < 4 || n > 32 {
		return errs.Newf(errs.InvalidAgentName, "agent name must be 4-32 characters, got %d", n)
	}
	for i := 0; i < n; i++ {
		c := name[i]
		isLower := c >= 'a' && c <= 'z'
		isUpper := c >= 'A' && c <= 'Z'
		if !isLower && !isUpper {
			return errs.Newf(errs.InvalidAgentName, "agent name must be ASCII letters only, found %q", string(name[i]))
		}
	}
	return nil
}
