package vocab

import (
	"fmt"
	"strings"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
)

// Lemmatizer supplies candidate base forms for a surface token. It is
// the pluggable linguistic-analysis collaborator behind Canonicalize;
// implementations must be deterministic for a given token.
type Lemmatizer interface {
	// Lemmas returns candidate lemmas, best first. An empty slice means
	// no confident lemma.
	Lemmas(token string) []string
}

// EnglishLemmatizer wraps the golem dictionary-backed lemmatizer.
type EnglishLemmatizer struct {
	inner *golem.Lemmatizer
}

// NewEnglishLemmatizer loads the bundled English dictionary.
func NewEnglishLemmatizer() (*EnglishLemmatizer, error) {
	l, err := golem.New(en.New())
	if err != nil {
		return nil, fmt.Errorf("load english lemma dictionary: %w", err)
	}
	return &EnglishLemmatizer{inner: l}, nil
}

// Lemmas returns every dictionary lemma for the token, lowercased.
func (e *EnglishLemmatizer) Lemmas(token string) []string {
	if !e.inner.InDict(token) {
		return nil
	}
	candidates := e.inner.Lemmas(token)
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, strings.ToLower(c))
	}
	return out
}

// NoopLemmatizer never produces a lemma; only exact surface matches
// succeed. Useful in tests and as a safe default.
type NoopLemmatizer struct{}

func (NoopLemmatizer) Lemmas(string) []string { return nil }

// StaticLemmatizer serves lemmas from a fixed table. Tests use it to
// exercise inflection handling without the full dictionary.
type StaticLemmatizer map[string]string

func (s StaticLemmatizer) Lemmas(token string) []string {
	if lemma, ok := s[strings.ToLower(token)]; ok {
		return []string{lemma}
	}
	return nil
}
