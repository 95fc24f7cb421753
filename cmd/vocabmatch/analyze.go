package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/vocabmatch/config"
	"github.com/mohammad-safakhou/vocabmatch/internal/classify"
	"github.com/mohammad-safakhou/vocabmatch/internal/corpus"
	"github.com/mohammad-safakhou/vocabmatch/internal/engine"
	"github.com/mohammad-safakhou/vocabmatch/internal/profile"
	"github.com/mohammad-safakhou/vocabmatch/internal/recommend"
	"github.com/mohammad-safakhou/vocabmatch/internal/store"
	"github.com/mohammad-safakhou/vocabmatch/internal/vocab"
)

func analyzeCMD() *cobra.Command {
	var cfgPath string
	var save bool
	var outPath string

	var analyze = &cobra.Command{
		Use:   "analyze",
		Short: "Run the full pipeline: extract, judge, profile, recommend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			logger := log.New(log.Writer(), "[ANALYZE] ", log.LstdFlags)
			ctx := cmd.Context()

			eng, master, err := buildEngine(cfg, logger)
			if err != nil {
				return err
			}

			roster, err := corpus.LoadRoster(cfg.Corpus.RosterFile)
			if err != nil {
				return err
			}
			units, err := corpus.LoadAll(cfg.Corpus.TranscriptFile, cfg.Corpus.EssaysDir)
			if err != nil {
				return err
			}
			books, err := recommend.LoadCatalog(cfg.Corpus.BooksFile, master)
			if err != nil {
				return err
			}

			res, err := eng.Run(ctx, engine.Inputs{Students: roster, Units: units, Books: books})
			if err != nil {
				return err
			}
			printSummary(res)

			if outPath != "" {
				raw, err := json.MarshalIndent(res, "", "  ")
				if err != nil {
					return err
				}
				if err := os.WriteFile(outPath, raw, 0o644); err != nil {
					return fmt.Errorf("write results: %w", err)
				}
				logger.Printf("wrote results to %s", outPath)
			}
			if save {
				if err := persistRun(ctx, cfg, res); err != nil {
					return err
				}
				logger.Printf("persisted run %s", res.RunID)
			}
			return nil
		},
	}
	analyze.Flags().BoolVar(&save, "save", false, "persist the run to Postgres")
	analyze.Flags().StringVar(&outPath, "out", "", "write full results to a JSON file")
	analyze.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return analyze
}

// buildEngine assembles the pipeline from config: master list,
// lemmatizer, judge, classifier, profile builder, and scorer.
func buildEngine(cfg *config.Config, logger *log.Logger) (*engine.Engine, *vocab.MasterList, error) {
	words, err := corpus.LoadVocabularyDir(cfg.Corpus.VocabDir)
	if err != nil {
		return nil, nil, err
	}
	lem, err := vocab.NewEnglishLemmatizer()
	if err != nil {
		return nil, nil, err
	}
	master, err := vocab.NewMasterList(words, lem)
	if err != nil {
		return nil, nil, err
	}

	judge, err := classify.NewJudge(cfg.Judge)
	if err != nil {
		return nil, nil, err
	}
	opts := []classify.Option{classify.WithConcurrency(cfg.Engine.MaxConcurrentBatches)}
	if cfg.Storage.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr(),
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		opts = append(opts, classify.WithCache(classify.NewVerdictCache(rdb, cfg.Judge.CacheTTL, logger)))
	}
	classifier := classify.New(judge, cfg.Judge.MaxRetries, cfg.Judge.Backoff, logger, opts...)

	policy, err := profile.ParsePolicy(cfg.Profile.MasteryDenominator)
	if err != nil {
		return nil, nil, err
	}
	builder := profile.NewBuilder(cfg.Profile.MisuseExampleCap, policy)

	scorer, err := recommend.NewScorer(cfg.Scoring)
	if err != nil {
		return nil, nil, err
	}
	return engine.New(master, classifier, builder, scorer, cfg.Scoring.ClassTopK, logger), master, nil
}

func persistRun(ctx context.Context, cfg *config.Config, res *engine.Result) error {
	if err := cfg.Storage.Postgres.Validate(); err != nil {
		return err
	}
	st, err := store.New(ctx, cfg.Storage.Postgres)
	if err != nil {
		return err
	}
	defer st.DB.Close()

	if err := st.CreateRun(ctx, res.RunID.String(), res.GeneratedAt, res.OrphanUnits); err != nil {
		return err
	}
	names := make([]string, 0, len(res.Students))
	for name := range res.Students {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sr := res.Students[name]
		if sr.Err != nil {
			continue
		}
		id, err := st.UpsertStudent(ctx, corpus.StudentInfo{
			Name:               name,
			ActualReadingLevel: sr.Profile.ActualReadingLevel,
			AssignedGrade:      sr.Profile.AssignedGrade,
		})
		if err != nil {
			return err
		}
		if err := st.SaveProfile(ctx, id, sr.Profile); err != nil {
			return err
		}
		if err := st.SaveStudentRecommendations(ctx, res.RunID.String(), id, sr.Matches); err != nil {
			return err
		}
	}
	return st.SaveClassRecommendations(ctx, res.RunID.String(), res.Class)
}

func printSummary(res *engine.Result) {
	names := make([]string, 0, len(res.Students))
	for name := range res.Students {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("run %s (%d students)\n", res.RunID, len(names))
	for _, name := range names {
		sr := res.Students[name]
		if sr.Err != nil {
			fmt.Printf("  %-20s SKIPPED: %v\n", name, sr.Err)
			continue
		}
		fmt.Printf("  %-20s mastery %.1f%%", name, sr.Profile.Mastery*100)
		if len(sr.DegradedWords) > 0 {
			fmt.Printf(" (unverified: %v)", sr.DegradedWords)
		}
		fmt.Println()
		for i, m := range sr.Matches {
			fmt.Printf("      %d. %-40s score %.3f known %.0f%% new %d\n",
				i+1, m.Book.Title, m.Score, m.KnownFraction*100, m.NewWordCount)
		}
	}
	fmt.Println("class picks:")
	for i, p := range res.Class {
		fmt.Printf("  %d. %s (%d students, avg %.3f)\n", i+1, p.Title, p.StudentsRecommended, p.AverageScore)
	}
}
