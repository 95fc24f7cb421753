package recommend

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/mohammad-safakhou/vocabmatch/config"
	"github.com/mohammad-safakhou/vocabmatch/internal/profile"
	"github.com/mohammad-safakhou/vocabmatch/internal/vocab"
)

func testScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		TargetRatio:   0.5,
		EasyThreshold: 0.8,
		HardThreshold: 0.3,
		PenaltyCurve:  "linear",
		PenaltySlope:  2.0,
		LevelBonus:    0.1,
		LevelBand:     1.0,
		TopK:          3,
		ClassTopK:     2,
	}
}

func profileKnowing(level float64, lemmas ...string) profile.Profile {
	words := make(map[string]profile.WordRecord, len(lemmas))
	for _, l := range lemmas {
		words[l] = profile.WordRecord{
			Word:              vocab.Word{Lemma: l, Grade: 6},
			UsageCount:        1,
			CorrectUsageCount: 1,
		}
	}
	return profile.Profile{Student: "Amy", ActualReadingLevel: level, Words: words}
}

func bookWith(id string, level float64, lemmas ...string) Book {
	foot := make(map[string]int, len(lemmas))
	for _, l := range lemmas {
		foot[l] = 1
	}
	return Book{ID: id, Title: "Book " + id, ReadingLevel: level, Vocabulary: foot}
}

func TestScorePrefersBalancedFootprint(t *testing.T) {
	s, err := NewScorer(testScoringConfig())
	if err != nil {
		t.Fatalf("NewScorer: %v", err)
	}
	// Far from the student's reading level so no bonus muddies the
	// comparison.
	p := profileKnowing(99, "a", "b", "c", "d", "e")

	balanced := bookWith("balanced", 6, "a", "b", "x", "y") // kf = 0.5
	tooEasy := bookWith("easy", 6, "a", "b", "c", "d")      // kf = 1.0
	tooHard := bookWith("hard", 6, "u", "v", "w", "x")      // kf = 0.0

	mb, _ := s.Score(p, balanced)
	me, _ := s.Score(p, tooEasy)
	mh, _ := s.Score(p, tooHard)

	if mb.Score <= me.Score || mb.Score <= mh.Score {
		t.Errorf("balanced book must outrank extremes: balanced=%f easy=%f hard=%f",
			mb.Score, me.Score, mh.Score)
	}
	if mb.KnownFraction != 0.5 || mb.NewWordCount != 2 {
		t.Errorf("balanced match = %+v", mb)
	}
	// kf=1.0 is 0.2 past the easy threshold: 0.5 * (1 - 2*0.2) = 0.3.
	if math.Abs(me.Score-0.3) > 1e-9 {
		t.Errorf("easy score = %f, want 0.3", me.Score)
	}
	// kf=0.0 is 0.3 below the hard threshold: 0.5 * (1 - 2*0.3) = 0.2.
	if math.Abs(mh.Score-0.2) > 1e-9 {
		t.Errorf("hard score = %f, want 0.2", mh.Score)
	}
}

func TestScoreReadingLevelBonus(t *testing.T) {
	s, _ := NewScorer(testScoringConfig())
	p := profileKnowing(6.0, "a")

	// kf = 1/3 keeps both scores inside the comfort band and away
	// from the clamp so the bonus shows up as a clean delta.
	inBand := bookWith("near", 6.8, "a", "x", "y")
	outOfBand := bookWith("far", 8.5, "a", "x", "y")

	mi, _ := s.Score(p, inBand)
	mo, _ := s.Score(p, outOfBand)
	if diff := mi.Score - mo.Score; math.Abs(diff-0.1) > 1e-9 {
		t.Errorf("bonus delta = %f, want 0.1", diff)
	}
}

func TestScoreClampsToUnitInterval(t *testing.T) {
	cfg := testScoringConfig()
	cfg.LevelBonus = 0.5
	s, _ := NewScorer(cfg)
	p := profileKnowing(6.0, "a", "b")

	m, _ := s.Score(p, bookWith("clamped", 6.0, "a", "b", "x", "y"))
	if m.Score > 1 {
		t.Errorf("score %f exceeds 1", m.Score)
	}
	if m.Score != 1 {
		t.Errorf("score = %f, want clamp to 1", m.Score)
	}
}

func TestScoreEmptyFootprintIneligible(t *testing.T) {
	s, _ := NewScorer(testScoringConfig())
	p := profileKnowing(6.0, "a")
	if _, ok := s.Score(p, Book{ID: "bare", ReadingLevel: 6}); ok {
		t.Error("book without vocabulary data must be skipped")
	}
}

func TestExponentialPenaltyCurve(t *testing.T) {
	cfg := testScoringConfig()
	cfg.PenaltyCurve = "exponential"
	s, err := NewScorer(cfg)
	if err != nil {
		t.Fatalf("NewScorer: %v", err)
	}
	p := profileKnowing(99, "a", "b", "c", "d")

	m, _ := s.Score(p, bookWith("easy", 6, "a", "b", "c", "d")) // kf = 1.0
	want := 0.5 * math.Exp(-2.0*0.2)
	if math.Abs(m.Score-want) > 1e-9 {
		t.Errorf("exponential score = %f, want %f", m.Score, want)
	}

	if _, err := NewScorer(config.ScoringConfig{PenaltyCurve: "cubic"}); err == nil {
		t.Error("unknown curve accepted")
	}
}

func TestRecommendTopKAndTieBreak(t *testing.T) {
	s, _ := NewScorer(testScoringConfig())
	p := profileKnowing(99, "a", "b")

	// Identical footprints score identically; order falls back to ID.
	books := []Book{
		bookWith("delta", 6, "a", "b", "x", "y"),
		bookWith("alpha", 6, "a", "b", "x", "y"),
		bookWith("carol", 6, "a", "b", "x", "y"),
		bookWith("bravo", 6, "a", "b", "x", "y"),
		{ID: "empty", ReadingLevel: 6},
	}
	matches := s.Recommend(p, books)
	if len(matches) != 3 {
		t.Fatalf("expected top 3, got %d", len(matches))
	}
	for i, want := range []string{"alpha", "bravo", "carol"} {
		if matches[i].Book.ID != want {
			t.Errorf("match %d = %s, want %s", i, matches[i].Book.ID, want)
		}
	}
}

func TestAggregateRanking(t *testing.T) {
	perStudent := map[string][]Match{
		"Amy":  {{Book: Book{ID: "b1", Title: "One"}, Score: 0.9}, {Book: Book{ID: "b2", Title: "Two"}, Score: 0.7}},
		"Bob":  {{Book: Book{ID: "b1", Title: "One"}, Score: 0.7}, {Book: Book{ID: "b3", Title: "Three"}, Score: 0.8}},
		"Cara": {{Book: Book{ID: "b1", Title: "One"}, Score: 0.65}, {Book: Book{ID: "b3", Title: "Three"}, Score: 0.8}},
	}
	top := Aggregate(perStudent, 2)
	if len(top) != 2 {
		t.Fatalf("expected 2 class picks, got %d", len(top))
	}
	if top[0].BookID != "b1" || top[0].StudentsRecommended != 3 {
		t.Errorf("top pick = %+v, want b1 with 3 students", top[0])
	}
	if math.Abs(top[0].AverageScore-0.75) > 1e-9 {
		t.Errorf("b1 average = %f, want 0.75", top[0].AverageScore)
	}
	if top[1].BookID != "b3" || top[1].StudentsRecommended != 2 {
		t.Errorf("second pick = %+v, want b3 with 2 students", top[1])
	}
}

func TestAggregateTieBreaks(t *testing.T) {
	perStudent := map[string][]Match{
		"Amy": {{Book: Book{ID: "zeta"}, Score: 0.6}, {Book: Book{ID: "beta"}, Score: 0.6}},
	}
	top := Aggregate(perStudent, 5)
	if top[0].BookID != "beta" || top[1].BookID != "zeta" {
		t.Errorf("equal count and score must break on ID: %v", top)
	}
}

func TestLoadCatalogCanonicalizesFootprints(t *testing.T) {
	master, err := vocab.NewMasterList([]vocab.Word{
		{Lemma: "endure", Grade: 5},
		{Lemma: "prevail", Grade: 6},
	}, vocab.StaticLemmatizer{"endured": "endure"})
	if err != nil {
		t.Fatalf("NewMasterList: %v", err)
	}

	path := filepath.Join(t.TempDir(), "books.json")
	data := `{"books":[{"id":"b1","title":"Trials","reading_level":6.1,
		"vocabulary":{"endured":3,"prevail":1,"banana":9}}]}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	books, err := LoadCatalog(path, master)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if len(books) != 1 {
		t.Fatalf("expected 1 book, got %d", len(books))
	}
	foot := books[0].Vocabulary
	if foot["endure"] != 3 || foot["prevail"] != 1 {
		t.Errorf("footprint = %v", foot)
	}
	if _, ok := foot["banana"]; ok {
		t.Error("off-list words must not survive catalog load")
	}
}

func TestLoadCatalogRejectsDuplicateIDs(t *testing.T) {
	master, _ := vocab.NewMasterList([]vocab.Word{{Lemma: "endure", Grade: 5}}, vocab.NoopLemmatizer{})
	path := filepath.Join(t.TempDir(), "books.json")
	data := `{"books":[{"id":"b1","title":"A","reading_level":6},{"id":"b1","title":"B","reading_level":7}]}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCatalog(path, master); err == nil {
		t.Error("duplicate book ids must be rejected")
	}
}
