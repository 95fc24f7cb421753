package server

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/vocabmatch/internal/profile"
	"github.com/mohammad-safakhou/vocabmatch/internal/recommend"
	"github.com/mohammad-safakhou/vocabmatch/internal/store"
)

// Scheduler periodically re-scores stored profiles against the stored
// catalog so recommendations track catalog and roster changes without
// re-running the judge.
type Scheduler struct {
	Store     *store.Store
	Scorer    *recommend.Scorer
	ClassTopK int
	CronSpec  string
	Rdb       *redis.Client
	Logger    *log.Logger
	Stop      chan struct{}
}

func (s *Scheduler) Start() {
	if s.Logger == nil {
		s.Logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	ticker := time.NewTicker(time.Minute)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	last, err := s.Store.LatestRunTime(ctx)
	if err != nil {
		s.Logger.Printf("read last run time: %v", err)
		return
	}
	if !isDue(s.CronSpec, last) {
		return
	}

	// Distributed lock so replica instances do not double-score.
	if s.Rdb != nil {
		ok, _ := s.Rdb.SetNX(ctx, "vocabmatch:sched:rescore", "1", 2*time.Minute).Result()
		if !ok {
			return
		}
		defer s.Rdb.Del(ctx, "vocabmatch:sched:rescore")
	}

	if err := s.Rescore(ctx); err != nil {
		s.Logger.Printf("rescore failed: %v", err)
	}
}

// Rescore recomputes every student's recommendations from stored
// profiles and persists a new run.
func (s *Scheduler) Rescore(ctx context.Context) error {
	students, err := s.Store.ListStudents(ctx)
	if err != nil {
		return err
	}
	books, err := s.Store.ListBooks(ctx)
	if err != nil {
		return err
	}
	if len(students) == 0 || len(books) == 0 {
		s.Logger.Printf("nothing to rescore (%d students, %d books)", len(students), len(books))
		return nil
	}

	runID := uuid.NewString()
	if err := s.Store.CreateRun(ctx, runID, time.Now().UTC(), 0); err != nil {
		return err
	}
	perStudent := make(map[string][]recommend.Match, len(students))
	for _, st := range students {
		words, err := s.Store.GetProfileWords(ctx, st.ID)
		if err != nil {
			return err
		}
		p := profile.Profile{
			Student:            st.Name,
			ActualReadingLevel: st.ActualReadingLevel,
			AssignedGrade:      st.AssignedGrade,
			Mastery:            st.Mastery,
			Words:              words,
		}
		matches := s.Scorer.Recommend(p, books)
		if err := s.Store.SaveStudentRecommendations(ctx, runID, st.ID, matches); err != nil {
			return err
		}
		perStudent[st.Name] = matches
	}
	picks := recommend.Aggregate(perStudent, s.ClassTopK)
	if err := s.Store.SaveClassRecommendations(ctx, runID, picks); err != nil {
		return err
	}
	s.Logger.Printf("rescored %d student(s), %d class pick(s)", len(students), len(picks))
	return nil
}

// isDue reports whether a new run should start now given the cron spec
// and the last run time. Supports "@daily", "@hourly", and standard
// cron expressions.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		return !expr.Next(*last).After(now)
	}
}
