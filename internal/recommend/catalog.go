package recommend

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mohammad-safakhou/vocabmatch/internal/vocab"
)

// Book is one catalog entry with its vocabulary footprint: the
// master-list words it contains and their occurrence counts.
type Book struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Author       string         `json:"author,omitempty"`
	GutenbergID  int            `json:"gutenberg_id,omitempty"`
	ReadingLevel float64        `json:"reading_level"`
	Vocabulary   map[string]int `json:"vocabulary"`
}

// LoadCatalog reads a book catalog file and restricts every footprint
// to the master list. Footprint keys are canonicalized, so inflected
// forms in the catalog fold onto their lemmas. Books whose footprint
// ends up empty stay in the catalog; the scorer skips them.
func LoadCatalog(path string, master *vocab.MasterList) ([]Book, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read book catalog: %w", err)
	}
	var file struct {
		Books []Book `json:"books"`
	}
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse book catalog %s: %w", path, err)
	}

	seen := make(map[string]struct{}, len(file.Books))
	for i, b := range file.Books {
		if strings.TrimSpace(b.ID) == "" {
			return nil, fmt.Errorf("book catalog %s: entry %d has no id", path, i)
		}
		if _, dup := seen[b.ID]; dup {
			return nil, fmt.Errorf("book catalog %s: duplicate book id %q", path, b.ID)
		}
		seen[b.ID] = struct{}{}

		footprint := make(map[string]int, len(b.Vocabulary))
		for token, count := range b.Vocabulary {
			if count <= 0 {
				continue
			}
			if w, ok := master.Canonicalize(token); ok {
				footprint[w.Lemma] += count
			}
		}
		file.Books[i].Vocabulary = footprint
	}
	return file.Books, nil
}
