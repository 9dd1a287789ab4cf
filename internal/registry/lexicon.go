package registry

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed lexicon/adjectives.yaml lexicon/nouns.yaml
var lexiconFS embed.FS

// Lexicon is the closed word set agent name allocation draws from
// (spec §4.2). Both lists are loaded once at process start; order is
// preserved so allocation is deterministic for a given seed.
type Lexicon struct {
	Adjectives []string
	Nouns      []string
}

// LoadLexicon reads the embedded adjective and noun lists.
func LoadLexicon() (*Lexicon, error) {
	adjectives, err := loadWordList("lexicon/adjectives.yaml")
	if err != nil {
		return nil, fmt.Errorf("registry: load adjectives: %w", err)
	}
	nouns, err := loadWordList("lexicon/nouns.yaml")
	if err != nil {
		return nil, fmt.Errorf("registry: load nouns: %w", err)
	}
	if len(adjectives) == 0 || len(nouns) == 0 {
		return nil, fmt.Errorf("registry: lexicon must not be empty")
	}
	return &Lexicon{Adjectives: adjectives, Nouns: nouns}, nil
}

func loadWordList(path string) ([]string, error) {
	raw, err := lexiconFS.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var words []string
	if err := yaml.Unmarshal(raw, &words); err != nil {
		return nil, err
	}
	return words, nil
}

// Size returns the number of distinct adjective+noun pairs in the lexicon.
func (l *Lexicon) Size() int { return len(l.Adjectives) * len(l.Nouns) }

// At returns the camelCase name at position i (mod Size), used to walk
// the full pair space deterministically from a seeded starting index.
func (l *Lexicon) At(i int) string {
	n := len(l.Nouns)
	adjIdx := (i / n) % len(l.Adjectives)
	nounIdx := i % n
	adj := l.Adjectives[adjIdx]
	noun := l.Nouns[nounIdx]
	return adj + capitalize(noun)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
