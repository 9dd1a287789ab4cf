package transport

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Fingerprint is a stable value derived from the project root path and the
// applied schema version, echoed on /health/liveness so a second process
// starting against the same store can detect and reuse a running instance
// by value rather than by PID (spec §4.8, §9).
func Fingerprint(projectRoot string, schemaVersion uint) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", projectRoot, schemaVersion)))
	return hex.EncodeToString(sum[:])[:12]
}
