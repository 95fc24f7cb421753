package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/vocabmatch/config"
	"github.com/mohammad-safakhou/vocabmatch/internal/corpus"
	"github.com/mohammad-safakhou/vocabmatch/internal/recommend"
	"github.com/mohammad-safakhou/vocabmatch/internal/store"
	"github.com/mohammad-safakhou/vocabmatch/internal/vocab"
)

func seedCMD() *cobra.Command {
	var cfgPath string
	var seed = &cobra.Command{
		Use:   "seed",
		Short: "Load the roster, vocabulary list, and book catalog into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if err := cfg.Storage.Postgres.Validate(); err != nil {
				return err
			}
			logger := log.New(log.Writer(), "[SEED] ", log.LstdFlags)
			ctx := cmd.Context()

			st, err := store.New(ctx, cfg.Storage.Postgres)
			if err != nil {
				return err
			}
			defer st.DB.Close()

			words, err := corpus.LoadVocabularyDir(cfg.Corpus.VocabDir)
			if err != nil {
				return err
			}
			if err := st.SaveMasterList(ctx, words); err != nil {
				return err
			}
			logger.Printf("seeded %d vocabulary word(s)", len(words))

			roster, err := corpus.LoadRoster(cfg.Corpus.RosterFile)
			if err != nil {
				return err
			}
			for _, s := range roster {
				if _, err := st.UpsertStudent(ctx, s); err != nil {
					return err
				}
			}
			logger.Printf("seeded %d student(s)", len(roster))

			lem, err := vocab.NewEnglishLemmatizer()
			if err != nil {
				return err
			}
			master, err := vocab.NewMasterList(words, lem)
			if err != nil {
				return err
			}
			books, err := recommend.LoadCatalog(cfg.Corpus.BooksFile, master)
			if err != nil {
				return err
			}
			for _, b := range books {
				if err := st.UpsertBook(ctx, b); err != nil {
					return err
				}
			}
			logger.Printf("seeded %d book(s)", len(books))

			fmt.Println("seed complete")
			return nil
		},
	}
	seed.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return seed
}
