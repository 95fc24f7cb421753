package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/vocabmatch/config"
	"github.com/mohammad-safakhou/vocabmatch/internal/recommend"
	srv "github.com/mohammad-safakhou/vocabmatch/internal/server"
	"github.com/mohammad-safakhou/vocabmatch/internal/store"
)

func recommendCMD() *cobra.Command {
	var cfgPath string
	var rec = &cobra.Command{
		Use:   "recommend",
		Short: "Re-score stored profiles against the stored catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if err := cfg.Storage.Postgres.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()

			st, err := store.New(ctx, cfg.Storage.Postgres)
			if err != nil {
				return err
			}
			defer st.DB.Close()

			scorer, err := recommend.NewScorer(cfg.Scoring)
			if err != nil {
				return err
			}
			sched := &srv.Scheduler{
				Store:     st,
				Scorer:    scorer,
				ClassTopK: cfg.Scoring.ClassTopK,
				Logger:    log.New(log.Writer(), "[RECOMMEND] ", log.LstdFlags),
			}
			if err := sched.Rescore(ctx); err != nil {
				return err
			}

			picks, err := st.LatestClassRecommendations(ctx)
			if err != nil {
				return err
			}
			fmt.Println("class picks:")
			for i, p := range picks {
				fmt.Printf("  %d. %s (%d students, avg %.3f)\n", i+1, p.Title, p.StudentsRecommended, p.AverageScore)
			}
			return nil
		},
	}
	rec.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return rec
}
