package profile

import (
	"fmt"
	"sort"

	"github.com/mohammad-safakhou/vocabmatch/internal/classify"
	"github.com/mohammad-safakhou/vocabmatch/internal/corpus"
	"github.com/mohammad-safakhou/vocabmatch/internal/vocab"
)

// DenominatorPolicy selects which master-list words count toward a
// student's mastery denominator.
type DenominatorPolicy string

const (
	// DenominatorAtOrBelowGrade counts every word at or below the
	// student's assigned grade.
	DenominatorAtOrBelowGrade DenominatorPolicy = "at_or_below_grade"
	// DenominatorAssignedGrade counts only words at the assigned grade.
	DenominatorAssignedGrade DenominatorPolicy = "assigned_grade"
	// DenominatorAllGrades counts the whole master list.
	DenominatorAllGrades DenominatorPolicy = "all_grades"
)

// ParsePolicy validates a policy name from config.
func ParsePolicy(s string) (DenominatorPolicy, error) {
	switch p := DenominatorPolicy(s); p {
	case DenominatorAtOrBelowGrade, DenominatorAssignedGrade, DenominatorAllGrades:
		return p, nil
	}
	return "", fmt.Errorf("unknown mastery denominator policy %q", s)
}

// WordRecord accumulates one student's history with one word.
type WordRecord struct {
	Word              vocab.Word `json:"word"`
	UsageCount        int        `json:"usage_count"`
	CorrectUsageCount int        `json:"correct_usage_count"`
	MisuseExamples    []string   `json:"misuse_examples,omitempty"`
}

// Known reports whether the student has demonstrated the word at least
// once with a verified correct usage.
func (r WordRecord) Known() bool { return r.CorrectUsageCount >= 1 }

// Profile is one student's vocabulary state.
type Profile struct {
	Student            string                `json:"student"`
	ActualReadingLevel float64               `json:"actual_reading_level"`
	AssignedGrade      int                   `json:"assigned_grade"`
	Words              map[string]WordRecord `json:"words"`
	Mastery            float64               `json:"mastery"`
	MissingWords       []string              `json:"missing_words"`
}

// KnownWords returns the sorted lemmas the student knows.
func (p Profile) KnownWords() []string {
	out := make([]string, 0, len(p.Words))
	for lemma, rec := range p.Words {
		if rec.Known() {
			out = append(out, lemma)
		}
	}
	sort.Strings(out)
	return out
}

// Builder turns classified verdicts into profiles.
type Builder struct {
	misuseCap int
	policy    DenominatorPolicy
}

// NewBuilder builds a profile builder. A non-positive cap disables
// misuse example retention entirely.
func NewBuilder(misuseCap int, policy DenominatorPolicy) *Builder {
	return &Builder{misuseCap: misuseCap, policy: policy}
}

// Build folds a student's verdicts into a profile. Verdicts must
// belong to the named student and arrive in source order; unverified
// verdicts bump usage counts but neither correctness nor misuse
// examples. The second return value lists the lemmas whose judgment
// was degraded, sorted.
func (b *Builder) Build(student corpus.StudentInfo, verdicts []classify.Verdict, master *vocab.MasterList) (Profile, []string) {
	p := Profile{
		Student:            student.Name,
		ActualReadingLevel: student.ActualReadingLevel,
		AssignedGrade:      student.AssignedGrade,
		Words:              make(map[string]WordRecord),
	}

	degraded := make(map[string]struct{})
	for _, v := range verdicts {
		lemma := v.Occurrence.Word.Lemma
		rec, ok := p.Words[lemma]
		if !ok {
			rec = WordRecord{Word: v.Occurrence.Word}
		}
		rec.UsageCount++
		switch {
		case v.Unverified:
			degraded[lemma] = struct{}{}
		case v.Correct:
			rec.CorrectUsageCount++
		default:
			if len(rec.MisuseExamples) < b.misuseCap {
				rec.MisuseExamples = append(rec.MisuseExamples, v.Occurrence.Sentence)
			}
		}
		p.Words[lemma] = rec
	}

	// eligibleWords is already (grade, lemma) ordered; missing words
	// inherit that order, easiest grades first.
	eligible := b.eligibleWords(student, master)
	known := 0
	for _, w := range eligible {
		if rec, ok := p.Words[w.Lemma]; ok && rec.Known() {
			known++
			continue
		}
		p.MissingWords = append(p.MissingWords, w.Lemma)
	}
	if len(eligible) > 0 {
		p.Mastery = float64(known) / float64(len(eligible))
	}

	degradedList := make([]string, 0, len(degraded))
	for lemma := range degraded {
		degradedList = append(degradedList, lemma)
	}
	sort.Strings(degradedList)
	return p, degradedList
}

func (b *Builder) eligibleWords(student corpus.StudentInfo, master *vocab.MasterList) []vocab.Word {
	switch b.policy {
	case DenominatorAssignedGrade:
		return master.WordsAtGrade(student.AssignedGrade)
	case DenominatorAllGrades:
		return master.Words()
	default:
		return master.WordsAtOrBelow(student.AssignedGrade)
	}
}
