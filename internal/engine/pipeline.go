package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/vocabmatch/internal/classify"
	"github.com/mohammad-safakhou/vocabmatch/internal/corpus"
	"github.com/mohammad-safakhou/vocabmatch/internal/extract"
	"github.com/mohammad-safakhou/vocabmatch/internal/profile"
	"github.com/mohammad-safakhou/vocabmatch/internal/recommend"
	"github.com/mohammad-safakhou/vocabmatch/internal/vocab"
)

// Inputs is everything one analysis run consumes.
type Inputs struct {
	Students []corpus.StudentInfo
	Units    []corpus.TextUnit
	Books    []recommend.Book
}

// StudentResult is one student's slice of a run.
type StudentResult struct {
	Profile       profile.Profile   `json:"profile"`
	Matches       []recommend.Match `json:"matches"`
	DegradedWords []string          `json:"degraded_words,omitempty"`
	Err           error             `json:"-"`
}

// Result is a complete analysis run.
type Result struct {
	RunID       uuid.UUID                       `json:"run_id"`
	GeneratedAt time.Time                       `json:"generated_at"`
	Students    map[string]StudentResult        `json:"students"`
	Class       []recommend.ClassRecommendation `json:"class"`
	// OrphanUnits lists text attributed to names missing from the
	// roster; it is analyzed for nobody.
	OrphanUnits int `json:"orphan_units,omitempty"`
}

// Engine wires extraction, classification, profiling, and scoring into
// one run.
type Engine struct {
	master     *vocab.MasterList
	classifier *classify.Classifier
	builder    *profile.Builder
	scorer     *recommend.Scorer
	classTopK  int
	logger     *log.Logger
}

// New assembles an engine from its stages.
func New(master *vocab.MasterList, classifier *classify.Classifier, builder *profile.Builder, scorer *recommend.Scorer, classTopK int, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(log.Writer(), "[ENGINE] ", log.LstdFlags)
	}
	return &Engine{
		master:     master,
		classifier: classifier,
		builder:    builder,
		scorer:     scorer,
		classTopK:  classTopK,
		logger:     logger,
	}
}

// Run executes a full analysis. A bad roster entry fails only that
// student; an unusable master list fails the run. Two runs over the
// same inputs with the same judge verdicts produce identical results
// apart from RunID and timestamp.
func (e *Engine) Run(ctx context.Context, in Inputs) (*Result, error) {
	if e.master == nil || e.master.Len() == 0 {
		return nil, vocab.ErrEmptyMasterList
	}
	if len(in.Students) == 0 {
		return nil, errors.New("no students to analyze")
	}

	roster := make(map[string]corpus.StudentInfo, len(in.Students))
	names := make([]string, 0, len(in.Students))
	for _, s := range in.Students {
		if _, dup := roster[s.Name]; dup {
			return nil, fmt.Errorf("duplicate student %q in roster", s.Name)
		}
		roster[s.Name] = s
		names = append(names, s.Name)
	}
	sort.Strings(names)

	units := make([]corpus.TextUnit, 0, len(in.Units))
	orphans := 0
	for _, u := range in.Units {
		if _, ok := roster[u.Student]; !ok {
			orphans++
			continue
		}
		units = append(units, u)
	}
	if orphans > 0 {
		e.logger.Printf("dropping %d text unit(s) from names missing in the roster", orphans)
	}

	occurrences := extract.Extract(units, e.master)
	flat := make([]extract.Occurrence, 0)
	for _, name := range names {
		flat = append(flat, occurrences[name]...)
	}
	e.logger.Printf("extracted %d occurrence(s) across %d student(s)", len(flat), len(names))

	verdicts := e.classifier.Classify(ctx, flat)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	byStudent := make(map[string][]classify.Verdict, len(names))
	for _, v := range verdicts {
		byStudent[v.Occurrence.Student] = append(byStudent[v.Occurrence.Student], v)
	}

	res := &Result{
		RunID:       uuid.New(),
		GeneratedAt: time.Now().UTC(),
		Students:    make(map[string]StudentResult, len(names)),
		OrphanUnits: orphans,
	}
	perStudent := make(map[string][]recommend.Match, len(names))
	for _, name := range names {
		info := roster[name]
		if err := validateStudent(info); err != nil {
			e.logger.Printf("skipping %s: %v", name, err)
			res.Students[name] = StudentResult{Err: err}
			continue
		}
		prof, degraded := e.builder.Build(info, byStudent[name], e.master)
		matches := e.scorer.Recommend(prof, in.Books)
		res.Students[name] = StudentResult{
			Profile:       prof,
			Matches:       matches,
			DegradedWords: degraded,
		}
		perStudent[name] = matches
	}

	res.Class = recommend.Aggregate(perStudent, e.classTopK)
	return res, nil
}

func validateStudent(s corpus.StudentInfo) error {
	if s.Name == "" {
		return errors.New("student has no name")
	}
	if s.AssignedGrade < vocab.MinGrade || s.AssignedGrade > vocab.MaxGrade {
		return fmt.Errorf("assigned grade %d outside %d-%d", s.AssignedGrade, vocab.MinGrade, vocab.MaxGrade)
	}
	if s.ActualReadingLevel < 0 {
		return fmt.Errorf("negative reading level %f", s.ActualReadingLevel)
	}
	return nil
}
