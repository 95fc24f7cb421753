package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mohammad-safakhou/vocabmatch/internal/corpus"
	"github.com/mohammad-safakhou/vocabmatch/internal/profile"
	"github.com/mohammad-safakhou/vocabmatch/internal/recommend"
	"github.com/mohammad-safakhou/vocabmatch/internal/vocab"
)

func TestStorePostgresRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "vocab",
			"POSTGRES_PASSWORD": "vocab",
			"POSTGRES_DB":       "vocabmatch",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	host, err := pg.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := pg.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatal(err)
	}
	dsn := fmt.Sprintf("postgres://vocab:vocab@%s:%s/vocabmatch?sslmode=disable", host, port.Port())

	m, err := migrate.New("file://../../migrations", dsn)
	if err != nil {
		t.Fatalf("migrate.New: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	s, err := NewWithDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("NewWithDSN: %v", err)
	}
	defer s.DB.Close()

	words := []vocab.Word{
		{Lemma: "endure", Grade: 5},
		{Lemma: "through", Grade: 5},
		{Lemma: "prevail", Grade: 6},
	}
	if err := s.SaveMasterList(ctx, words); err != nil {
		t.Fatalf("SaveMasterList: %v", err)
	}
	got, err := s.ListVocabularyWords(ctx)
	if err != nil || len(got) != 3 {
		t.Fatalf("ListVocabularyWords: %v (%d words)", err, len(got))
	}

	studentID, err := s.UpsertStudent(ctx, corpus.StudentInfo{
		Name: "Jane Doe", ActualReadingLevel: 6.2, AssignedGrade: 6,
	})
	if err != nil {
		t.Fatalf("UpsertStudent: %v", err)
	}
	// Upsert is idempotent on name.
	again, err := s.UpsertStudent(ctx, corpus.StudentInfo{
		Name: "Jane Doe", ActualReadingLevel: 6.5, AssignedGrade: 6,
	})
	if err != nil || again != studentID {
		t.Fatalf("second upsert: %v (id %s vs %s)", err, again, studentID)
	}

	p := profile.Profile{
		Student: "Jane Doe",
		Mastery: 1.0 / 3.0,
		Words: map[string]profile.WordRecord{
			"endure": {Word: words[0], UsageCount: 2, CorrectUsageCount: 2},
			"through": {
				Word:              words[1],
				UsageCount:        3,
				CorrectUsageCount: 1,
				MisuseExamples:    []string{"I was very through with my homework."},
			},
			// Unverified usages only: a usage gap but no misuse examples.
			"prevail": {Word: words[2], UsageCount: 2, CorrectUsageCount: 0},
		},
	}
	if err := s.SaveProfile(ctx, studentID, p); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	stored, err := s.GetProfileWords(ctx, studentID)
	if err != nil {
		t.Fatalf("GetProfileWords: %v", err)
	}
	if rec := stored["through"]; rec.UsageCount != 3 || len(rec.MisuseExamples) != 1 {
		t.Errorf("through record = %+v", rec)
	}

	book := recommend.Book{
		ID: "b1", Title: "Trials", Author: "A. Author", ReadingLevel: 6.0,
		Vocabulary: map[string]int{"endure": 2, "prevail": 1},
	}
	if err := s.UpsertBook(ctx, book); err != nil {
		t.Fatalf("UpsertBook: %v", err)
	}
	books, err := s.ListBooks(ctx)
	if err != nil || len(books) != 1 {
		t.Fatalf("ListBooks: %v (%d books)", err, len(books))
	}
	if books[0].Vocabulary["endure"] != 2 {
		t.Errorf("book footprint = %v", books[0].Vocabulary)
	}

	runID := uuid.NewString()
	if err := s.CreateRun(ctx, runID, time.Now().UTC(), 0); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	matches := []recommend.Match{{Book: book, Score: 0.9, KnownFraction: 0.5, NewWordCount: 1}}
	if err := s.SaveStudentRecommendations(ctx, runID, studentID, matches); err != nil {
		t.Fatalf("SaveStudentRecommendations: %v", err)
	}
	recs, err := s.LatestStudentRecommendations(ctx, studentID)
	if err != nil || len(recs) != 1 {
		t.Fatalf("LatestStudentRecommendations: %v (%d rows)", err, len(recs))
	}
	if recs[0].BookID != "b1" || recs[0].Rank != 1 {
		t.Errorf("recommendation = %+v", recs[0])
	}

	picks := []recommend.ClassRecommendation{{BookID: "b1", StudentsRecommended: 1, AverageScore: 0.9}}
	if err := s.SaveClassRecommendations(ctx, runID, picks); err != nil {
		t.Fatalf("SaveClassRecommendations: %v", err)
	}
	classPicks, err := s.LatestClassRecommendations(ctx)
	if err != nil || len(classPicks) != 1 {
		t.Fatalf("LatestClassRecommendations: %v (%d rows)", err, len(classPicks))
	}

	stats, err := s.ClassStats(ctx, 5)
	if err != nil {
		t.Fatalf("ClassStats: %v", err)
	}
	if stats.Students != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(stats.ReadingLevels) != 1 || stats.ReadingLevels[0].Level != 6 || stats.ReadingLevels[0].Students != 1 {
		t.Errorf("reading levels = %+v", stats.ReadingLevels)
	}
	if len(stats.TopMissing) != 3 || stats.TopMissing[0].Lemma != "prevail" || stats.TopMissing[0].StudentsMissing != 1 {
		t.Errorf("top missing = %+v", stats.TopMissing)
	}
	// "prevail" has a usage gap but no misuse examples, so only
	// "through" is on the misuse leaderboard.
	if len(stats.MostMisused) != 1 || stats.MostMisused[0].Lemma != "through" {
		t.Errorf("most misused = %+v", stats.MostMisused)
	}
}
