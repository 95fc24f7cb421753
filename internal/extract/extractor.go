// Package extract finds vocabulary-word occurrences in student text.
// Each occurrence carries the original sentence it appeared in; the
// classifier judges natural phrasing, never a normalized form.
package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/mohammad-safakhou/vocabmatch/internal/corpus"
	"github.com/mohammad-safakhou/vocabmatch/internal/vocab"
)

// Occurrence is a single sighting of a vocabulary word in one sentence
// of one student's text.
type Occurrence struct {
	Student  string
	Word     vocab.Word
	Sentence string
	Position int
	Source   string
}

var (
	sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]*`)
	tokenRe    = regexp.MustCompile(`[A-Za-z]+(?:'[A-Za-z]+)?`)
)

// SplitSentences breaks free text into trimmed sentences.
func SplitSentences(text string) []string {
	var out []string
	for _, s := range sentenceRe.FindAllString(text, -1) {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Tokenize returns the word tokens of a sentence in order. Case and
// punctuation normalization happens here, before the lemma lookup.
func Tokenize(sentence string) []string {
	return tokenRe.FindAllString(sentence, -1)
}

// Extract walks every text unit in source order and returns each
// student's occurrences, positions increasing per student. A token the
// lemmatizer cannot resolve is simply not a match.
func Extract(units []corpus.TextUnit, master *vocab.MasterList) map[string][]Occurrence {
	ordered := make([]corpus.TextUnit, len(units))
	copy(ordered, units)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })

	out := make(map[string][]Occurrence)
	positions := make(map[string]int)
	for _, unit := range ordered {
		for _, sentence := range SplitSentences(unit.Text) {
			for _, token := range Tokenize(sentence) {
				word, ok := master.Canonicalize(token)
				if !ok {
					continue
				}
				pos := positions[unit.Student]
				positions[unit.Student] = pos + 1
				out[unit.Student] = append(out[unit.Student], Occurrence{
					Student:  unit.Student,
					Word:     word,
					Sentence: sentence,
					Position: pos,
					Source:   unit.Source,
				})
			}
		}
	}
	return out
}
