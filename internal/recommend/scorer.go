package recommend

import (
	"fmt"
	"math"
	"sort"

	"github.com/mohammad-safakhou/vocabmatch/config"
	"github.com/mohammad-safakhou/vocabmatch/internal/profile"
)

// Match is one scored student-book pairing.
type Match struct {
	Book          Book    `json:"book"`
	Score         float64 `json:"score"`
	KnownFraction float64 `json:"known_fraction"`
	NewWordCount  int     `json:"new_word_count"`
}

// PenaltyFunc maps the distance beyond a comfort threshold to a
// multiplicative factor in [0, 1].
type PenaltyFunc func(excess float64) float64

// Scorer ranks books for a student. The sweet spot is a footprint the
// student half knows; books mostly known or mostly unknown decay
// through the penalty curve.
type Scorer struct {
	target  float64
	easy    float64
	hard    float64
	bonus   float64
	band    float64
	topK    int
	penalty PenaltyFunc
}

// NewScorer builds a scorer from validated config.
func NewScorer(cfg config.ScoringConfig) (*Scorer, error) {
	s := &Scorer{
		target: cfg.TargetRatio,
		easy:   cfg.EasyThreshold,
		hard:   cfg.HardThreshold,
		bonus:  cfg.LevelBonus,
		band:   cfg.LevelBand,
		topK:   cfg.TopK,
	}
	switch cfg.PenaltyCurve {
	case "linear":
		slope := cfg.PenaltySlope
		s.penalty = func(excess float64) float64 { return math.Max(0, 1-slope*excess) }
	case "exponential":
		slope := cfg.PenaltySlope
		s.penalty = func(excess float64) float64 { return math.Exp(-slope * excess) }
	default:
		return nil, fmt.Errorf("unknown penalty curve %q", cfg.PenaltyCurve)
	}
	return s, nil
}

// Score computes the match between one student and one book. The
// second return value is false for books with an empty vocabulary
// footprint, which are ineligible.
func (s *Scorer) Score(p profile.Profile, book Book) (Match, bool) {
	if len(book.Vocabulary) == 0 {
		return Match{}, false
	}

	known := 0
	for lemma := range book.Vocabulary {
		if rec, ok := p.Words[lemma]; ok && rec.Known() {
			known++
		}
	}
	kf := float64(known) / float64(len(book.Vocabulary))

	score := 1 - math.Abs(kf-s.target)
	switch {
	case kf > s.easy:
		score *= s.penalty(kf - s.easy)
	case kf < s.hard:
		score *= s.penalty(s.hard - kf)
	}
	if math.Abs(book.ReadingLevel-p.ActualReadingLevel) <= s.band {
		score += s.bonus
	}
	score = math.Max(0, math.Min(1, score))

	return Match{
		Book:          book,
		Score:         score,
		KnownFraction: kf,
		NewWordCount:  len(book.Vocabulary) - known,
	}, true
}

// Recommend scores the whole catalog for one student and returns the
// top matches, ordered by score descending with book ID as the
// tie-break.
func (s *Scorer) Recommend(p profile.Profile, books []Book) []Match {
	matches := make([]Match, 0, len(books))
	for _, b := range books {
		if m, ok := s.Score(p, b); ok {
			matches = append(matches, m)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Book.ID < matches[j].Book.ID
	})
	if len(matches) > s.topK {
		matches = matches[:s.topK]
	}
	return matches
}
