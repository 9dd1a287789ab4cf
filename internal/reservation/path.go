package reservation

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// canonicalizePath normalizes one requested path per spec §4.6: NFC
// Unicode, no relative "." or ".." components, leading "./" stripped,
// trailing slash stripped.
func canonicalizePath(p string) string {
	p = norm.NFC.String(p)
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimSuffix(p, "/")

	var parts []string
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(parts) > 0 {
				parts = parts[:len(parts)-1]
			}
		default:
			parts = append(parts, seg)
		}
	}
	return strings.Join(parts, "/")
}

// canonicalizePaths canonicalizes and deduplicates, preserving first
// occurrence order.
func canonicalizePaths(paths []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range paths {
		c := canonicalizePath(p)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
