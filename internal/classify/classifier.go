package classify

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/mohammad-safakhou/vocabmatch/internal/extract"
)

// Verdict pairs one occurrence with its judgment. Unverified verdicts
// come from exhausted retries, malformed responses, or batch
// mismatches; they count toward usage but never toward correctness.
type Verdict struct {
	Occurrence extract.Occurrence
	Correct    bool
	Unverified bool
	Note       string
}

// Classifier fans occurrence groups out to a Judge with bounded
// concurrency and bounded retries, and guarantees exactly one Verdict
// per submitted occurrence.
type Classifier struct {
	judge       Judge
	cache       *VerdictCache
	logger      *log.Logger
	maxRetries  int
	backoff     time.Duration
	concurrency int
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithCache attaches a verdict cache.
func WithCache(cache *VerdictCache) Option {
	return func(c *Classifier) { c.cache = cache }
}

// WithConcurrency bounds the number of in-flight judge calls.
func WithConcurrency(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// New builds a Classifier around a judge.
func New(judge Judge, maxRetries int, backoff time.Duration, logger *log.Logger, opts ...Option) *Classifier {
	if logger == nil {
		logger = log.New(log.Writer(), "[CLASSIFY] ", log.LstdFlags)
	}
	c := &Classifier{
		judge:       judge,
		logger:      logger,
		maxRetries:  maxRetries,
		backoff:     backoff,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type groupKey struct {
	student string
	lemma   string
}

// Classify judges every occurrence and returns verdicts sorted by
// (student, position). Occurrences of the same word by the same
// student travel in one judge call.
func (c *Classifier) Classify(ctx context.Context, occs []extract.Occurrence) []Verdict {
	groups := make(map[groupKey][]extract.Occurrence)
	var order []groupKey
	for _, occ := range occs {
		k := groupKey{student: occ.Student, lemma: occ.Word.Lemma}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], occ)
	}

	results := make([][]Verdict, len(order))
	sem := make(chan struct{}, c.concurrency)
	var wg sync.WaitGroup
	for i, k := range order {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, k groupKey) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = c.classifyGroup(ctx, k.lemma, groups[k])
		}(i, k)
	}
	wg.Wait()

	out := make([]Verdict, 0, len(occs))
	for _, vs := range results {
		out = append(out, vs...)
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Occurrence.Student != out[b].Occurrence.Student {
			return out[a].Occurrence.Student < out[b].Occurrence.Student
		}
		return out[a].Occurrence.Position < out[b].Occurrence.Position
	})
	return out
}

func (c *Classifier) classifyGroup(ctx context.Context, word string, occs []extract.Occurrence) []Verdict {
	sentences := make([]string, len(occs))
	for i, occ := range occs {
		sentences[i] = occ.Sentence
	}

	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, word, sentences); ok {
			return c.assemble(word, occs, cached, true)
		}
	}

	var (
		verdicts []SentenceVerdict
		err      error
	)
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		verdicts, err = c.judge.ClassifyBatch(ctx, word, sentences)
		if err == nil {
			judgeCalls.WithLabelValues("ok").Inc()
			break
		}
		if !IsTransient(err) {
			judgeCalls.WithLabelValues("failed").Inc()
			break
		}
		judgeCalls.WithLabelValues("transient").Inc()
		if attempt == c.maxRetries {
			break
		}
		judgeRetries.Inc()
		c.logger.Printf("judge call for %q failed (attempt %d/%d), retrying: %v", word, attempt+1, c.maxRetries+1, err)
		select {
		case <-time.After(backoffDelay(c.backoff, attempt)):
		case <-ctx.Done():
			err = ctx.Err()
			attempt = c.maxRetries
		}
	}
	if err != nil {
		c.logger.Printf("judge call for %q exhausted, marking %d occurrence(s) unverified: %v", word, len(occs), err)
		degradedGroups.Inc()
		out := make([]Verdict, len(occs))
		for i, occ := range occs {
			out[i] = Verdict{Occurrence: occ, Unverified: true, Note: "judgment unavailable"}
		}
		return out
	}
	return c.assemble(word, occs, verdicts, false)
}

// assemble maps batch verdicts back onto occurrences. Any occurrence
// the response failed to cover degrades to unverified; extra or
// duplicate judgments are dropped.
func (c *Classifier) assemble(word string, occs []extract.Occurrence, verdicts []SentenceVerdict, fromCache bool) []Verdict {
	byIndex := make(map[int]SentenceVerdict, len(verdicts))
	for _, v := range verdicts {
		if v.Index < 0 || v.Index >= len(occs) {
			continue
		}
		if _, dup := byIndex[v.Index]; dup {
			continue
		}
		byIndex[v.Index] = v
	}

	out := make([]Verdict, len(occs))
	covered := 0
	for i, occ := range occs {
		if v, ok := byIndex[i]; ok {
			out[i] = Verdict{Occurrence: occ, Correct: v.Correct, Note: v.Note}
			covered++
			continue
		}
		out[i] = Verdict{Occurrence: occ, Unverified: true, Note: "no judgment returned for this sentence"}
	}

	if covered != len(occs) || len(verdicts) != len(occs) {
		c.logger.Printf("judge response for %q did not map 1:1 (%d verdicts for %d sentences)", word, len(verdicts), len(occs))
		degradedGroups.Inc()
		return out
	}
	if !fromCache && c.cache != nil {
		sentences := make([]string, len(occs))
		for i, occ := range occs {
			sentences[i] = occ.Sentence
		}
		c.cache.Put(context.Background(), word, sentences, verdicts)
	}
	return out
}
