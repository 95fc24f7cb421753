package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

type essayFile struct {
	StudentName  string  `json:"student_name"`
	ReadingLevel float64 `json:"reading_level"`
	Essay        string  `json:"essay"`
}

// LoadEssays reads every *.json essay under dir and returns one
// TextUnit per essay. Files are visited in lexicographic name order so
// sequence positions are stable across runs.
func LoadEssays(dir string, seq int) ([]TextUnit, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, seq, fmt.Errorf("read essays dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var units []TextUnit
	for _, name := range names {
		path := filepath.Join(dir, name)
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, seq, fmt.Errorf("read essay: %w", err)
		}
		var essay essayFile
		if err := json.Unmarshal(b, &essay); err != nil {
			return nil, seq, fmt.Errorf("parse essay %s: %w", path, err)
		}
		if essay.StudentName == "" {
			return nil, seq, fmt.Errorf("essay %s has no student_name", path)
		}
		units = append(units, TextUnit{
			Student: essay.StudentName,
			Text:    essay.Essay,
			Seq:     seq,
			Source:  SourceEssay,
		})
		seq++
	}
	return units, seq, nil
}

// LoadAll loads transcript turns followed by essays, preserving the
// transcript-then-essay ordering the profile pipeline depends on.
func LoadAll(transcriptPath, essaysDir string) ([]TextUnit, error) {
	units, seq, err := LoadTranscript(transcriptPath, 0)
	if err != nil {
		return nil, err
	}
	essays, _, err := LoadEssays(essaysDir, seq)
	if err != nil {
		return nil, err
	}
	return append(units, essays...), nil
}
