// Package corpus loads the student text corpus: the classroom
// transcript, per-student essays, the class roster, and the vocabulary
// seed files. Everything it returns is ordered and immutable for the
// duration of a run.
package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/mohammad-safakhou/vocabmatch/internal/vocab"
)

// TextUnit is one attributable span of student text: a transcript turn
// or an essay. Seq fixes a global source order so downstream occurrence
// lists are reproducible.
type TextUnit struct {
	Student string
	Text    string
	Seq     int
	Source  string // transcript or essay
}

const (
	SourceTranscript = "transcript"
	SourceEssay      = "essay"
)

// StudentInfo describes one student in the roster.
type StudentInfo struct {
	Name               string  `json:"name"`
	ActualReadingLevel float64 `json:"reading_level"`
	AssignedGrade      int     `json:"assigned_grade"`
}

// LoadRoster reads the student roster from a personas JSON file.
func LoadRoster(path string) ([]StudentInfo, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	var roster []StudentInfo
	if err := json.Unmarshal(b, &roster); err != nil {
		return nil, fmt.Errorf("parse roster %s: %w", path, err)
	}
	for i, s := range roster {
		if s.Name == "" {
			return nil, fmt.Errorf("roster entry %d has no name", i)
		}
	}
	return roster, nil
}

var gradeFiles = map[int]string{
	5: "5th_grade.json",
	6: "6th_grade.json",
	7: "7th_grade.json",
	8: "8th_grade.json",
}

// LoadVocabularyDir reads per-grade word files ({"words": [...]}) from
// a directory. Missing grade files are skipped; duplicate-word policy
// (keep highest grade) is applied later by vocab.NewMasterList.
func LoadVocabularyDir(dir string) ([]vocab.Word, error) {
	grades := make([]int, 0, len(gradeFiles))
	for g := range gradeFiles {
		grades = append(grades, g)
	}
	sort.Ints(grades)

	var entries []vocab.Word
	for _, grade := range grades {
		path := filepath.Join(dir, gradeFiles[grade])
		b, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read vocabulary file: %w", err)
		}
		var payload struct {
			Words []string `json:"words"`
		}
		if err := json.Unmarshal(b, &payload); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		for _, w := range payload.Words {
			entries = append(entries, vocab.Word{Lemma: w, Grade: grade})
		}
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no vocabulary words under %s: %w", dir, vocab.ErrEmptyMasterList)
	}
	return entries, nil
}
