// Package vocab owns the master vocabulary list and the mapping from
// surface-form tokens to canonical vocabulary words.
package vocab

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrEmptyMasterList indicates the engine was started without any
// vocabulary words. This is a configuration error and fatal to a run.
var ErrEmptyMasterList = errors.New("master vocabulary list is empty")

// MinGrade and MaxGrade bound the grade levels the master list accepts.
const (
	MinGrade = 5
	MaxGrade = 8
)

// Word is a canonical vocabulary entry: a lowercase lemma and the grade
// level it belongs to.
type Word struct {
	Lemma string `json:"lemma"`
	Grade int    `json:"grade"`
}

// MasterList is the immutable set of vocabulary words for a run.
type MasterList struct {
	words map[string]Word
	lem   Lemmatizer
}

// NewMasterList builds a master list from raw (word, grade) entries.
// Words are lowercased; a word appearing at several grades keeps the
// highest one.
func NewMasterList(entries []Word, lem Lemmatizer) (*MasterList, error) {
	words := make(map[string]Word, len(entries))
	for _, e := range entries {
		lemma := strings.ToLower(strings.TrimSpace(e.Lemma))
		if lemma == "" {
			continue
		}
		if e.Grade < MinGrade || e.Grade > MaxGrade {
			return nil, fmt.Errorf("word %q: grade %d outside %d-%d", lemma, e.Grade, MinGrade, MaxGrade)
		}
		if existing, ok := words[lemma]; !ok || e.Grade > existing.Grade {
			words[lemma] = Word{Lemma: lemma, Grade: e.Grade}
		}
	}
	if len(words) == 0 {
		return nil, ErrEmptyMasterList
	}
	if lem == nil {
		lem = NoopLemmatizer{}
	}
	return &MasterList{words: words, lem: lem}, nil
}

// Len returns the number of distinct vocabulary words.
func (m *MasterList) Len() int { return len(m.words) }

// Lookup returns the vocabulary word for an exact lemma.
func (m *MasterList) Lookup(lemma string) (Word, bool) {
	w, ok := m.words[strings.ToLower(lemma)]
	return w, ok
}

// Canonicalize maps a surface-form token to its master-list entry.
// A token that is itself a vocabulary word wins over its lemma, so
// irregular forms registered as distinct entries are preserved.
// Candidate lemmas are tried in order and the first one present in the
// master list is chosen. A token with no confident lemma is simply not
// a match.
func (m *MasterList) Canonicalize(token string) (Word, bool) {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return Word{}, false
	}
	if w, ok := m.words[token]; ok {
		return w, true
	}
	for _, lemma := range m.lem.Lemmas(token) {
		if w, ok := m.words[strings.ToLower(lemma)]; ok {
			return w, true
		}
	}
	return Word{}, false
}

// Words returns every vocabulary word sorted by (grade, lemma).
func (m *MasterList) Words() []Word {
	out := make([]Word, 0, len(m.words))
	for _, w := range m.words {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Grade != out[j].Grade {
			return out[i].Grade < out[j].Grade
		}
		return out[i].Lemma < out[j].Lemma
	})
	return out
}

// WordsAtOrBelow returns the words at or below a grade, sorted.
func (m *MasterList) WordsAtOrBelow(grade int) []Word {
	var out []Word
	for _, w := range m.Words() {
		if w.Grade <= grade {
			out = append(out, w)
		}
	}
	return out
}

// WordsAtGrade returns the words at exactly one grade, sorted.
func (m *MasterList) WordsAtGrade(grade int) []Word {
	var out []Word
	for _, w := range m.Words() {
		if w.Grade == grade {
			out = append(out, w)
		}
	}
	return out
}
