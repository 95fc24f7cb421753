package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/mohammad-safakhou/vocabmatch/config"
	"github.com/mohammad-safakhou/vocabmatch/internal/corpus"
	"github.com/mohammad-safakhou/vocabmatch/internal/profile"
	"github.com/mohammad-safakhou/vocabmatch/internal/recommend"
	"github.com/mohammad-safakhou/vocabmatch/internal/vocab"
)

// Store persists students, vocabulary, books, and run artifacts in
// Postgres.
type Store struct {
	DB *sql.DB
}

// StudentRecord is one roster row with its last computed mastery.
type StudentRecord struct {
	ID                 string
	Name               string
	ActualReadingLevel float64
	AssignedGrade      int
	Mastery            float64
	UpdatedAt          time.Time
}

// WordStat aggregates one word's class-wide usage.
type WordStat struct {
	Lemma        string
	Grade        int
	UsageCount   int
	MisuseCount  int
	StudentCount int
}

// MissingWordStat counts the students who never used a word correctly.
type MissingWordStat struct {
	Lemma           string
	Grade           int
	StudentsMissing int
}

// LevelCount is one bucket of the reading-level distribution, keyed by
// the whole-number reading level.
type LevelCount struct {
	Level    int
	Students int
}

// ClassStats is the class-wide dashboard summary.
type ClassStats struct {
	Students       int
	AverageMastery float64
	ReadingLevels  []LevelCount
	TopMissing     []MissingWordStat
	MostMisused    []WordStat
}

// StudentRecommendationRecord is one stored per-student match.
type StudentRecommendationRecord struct {
	RunID         string
	StudentID     string
	BookID        string
	Title         string
	Rank          int
	Score         float64
	KnownFraction float64
	NewWordCount  int
}

// New opens a Postgres-backed store from config.
func New(ctx context.Context, cfg config.PostgresConfig) (*Store, error) {
	return NewWithDSN(ctx, cfg.DSN())
}

// NewWithDSN opens the store with an explicit DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{DB: db}, nil
}

// User operations
func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2)`, email, hash)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return
}

// Roster operations

// UpsertStudent creates or refreshes a roster entry and returns its id.
func (s *Store) UpsertStudent(ctx context.Context, info corpus.StudentInfo) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO students (name, actual_reading_level, assigned_grade)
		VALUES ($1,$2,$3)
		ON CONFLICT (name) DO UPDATE SET
			actual_reading_level = EXCLUDED.actual_reading_level,
			assigned_grade = EXCLUDED.assigned_grade,
			updated_at = now()
		RETURNING id`,
		info.Name, info.ActualReadingLevel, info.AssignedGrade).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert student %q: %w", info.Name, err)
	}
	return id, nil
}

func (s *Store) ListStudents(ctx context.Context) ([]StudentRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, name, actual_reading_level, assigned_grade, mastery, updated_at
		FROM students ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StudentRecord
	for rows.Next() {
		var r StudentRecord
		if err := rows.Scan(&r.ID, &r.Name, &r.ActualReadingLevel, &r.AssignedGrade, &r.Mastery, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetStudentByName(ctx context.Context, name string) (StudentRecord, error) {
	var r StudentRecord
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, name, actual_reading_level, assigned_grade, mastery, updated_at
		FROM students WHERE name=$1`, name).
		Scan(&r.ID, &r.Name, &r.ActualReadingLevel, &r.AssignedGrade, &r.Mastery, &r.UpdatedAt)
	return r, err
}

// Vocabulary operations

// SaveMasterList upserts the master vocabulary. Words are keyed by
// lemma; a re-seed with a higher grade wins, matching list merge
// semantics.
func (s *Store) SaveMasterList(ctx context.Context, words []vocab.Word) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, w := range words {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO vocabulary_words (lemma, grade) VALUES ($1,$2)
			ON CONFLICT (lemma) DO UPDATE SET grade = GREATEST(vocabulary_words.grade, EXCLUDED.grade)`,
			w.Lemma, w.Grade); err != nil {
			return fmt.Errorf("upsert word %q: %w", w.Lemma, err)
		}
	}
	return tx.Commit()
}

func (s *Store) ListVocabularyWords(ctx context.Context) ([]vocab.Word, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT lemma, grade FROM vocabulary_words ORDER BY grade, lemma`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []vocab.Word
	for rows.Next() {
		var w vocab.Word
		if err := rows.Scan(&w.Lemma, &w.Grade); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Profile operations

// SaveProfile replaces a student's word records and refreshes the
// cached mastery on the roster row.
func (s *Store) SaveProfile(ctx context.Context, studentID string, p profile.Profile) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM student_vocabulary WHERE student_id=$1`, studentID); err != nil {
		return fmt.Errorf("clear profile: %w", err)
	}
	for lemma, rec := range p.Words {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO student_vocabulary (student_id, lemma, usage_count, correct_usage_count, misuse_examples)
			VALUES ($1,$2,$3,$4,$5)`,
			studentID, lemma, rec.UsageCount, rec.CorrectUsageCount, pq.Array(rec.MisuseExamples)); err != nil {
			return fmt.Errorf("save word record %q: %w", lemma, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE students SET mastery=$2, updated_at=now() WHERE id=$1`, studentID, p.Mastery); err != nil {
		return fmt.Errorf("update mastery: %w", err)
	}
	return tx.Commit()
}

// GetProfileWords loads a student's stored word records.
func (s *Store) GetProfileWords(ctx context.Context, studentID string) (map[string]profile.WordRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT sv.lemma, vw.grade, sv.usage_count, sv.correct_usage_count, sv.misuse_examples
		FROM student_vocabulary sv
		JOIN vocabulary_words vw ON vw.lemma = sv.lemma
		WHERE sv.student_id=$1 ORDER BY sv.lemma`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]profile.WordRecord)
	for rows.Next() {
		var rec profile.WordRecord
		var lemma string
		var examples pq.StringArray
		if err := rows.Scan(&lemma, &rec.Word.Grade, &rec.UsageCount, &rec.CorrectUsageCount, &examples); err != nil {
			return nil, err
		}
		rec.Word.Lemma = lemma
		rec.MisuseExamples = []string(examples)
		out[lemma] = rec
	}
	return out, rows.Err()
}

// Book operations

// UpsertBook writes a book and replaces its vocabulary footprint.
func (s *Store) UpsertBook(ctx context.Context, b recommend.Book) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO books (id, title, author, gutenberg_id, reading_level)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			author = EXCLUDED.author,
			gutenberg_id = EXCLUDED.gutenberg_id,
			reading_level = EXCLUDED.reading_level`,
		b.ID, b.Title, b.Author, b.GutenbergID, b.ReadingLevel); err != nil {
		return fmt.Errorf("upsert book %q: %w", b.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM book_vocabulary WHERE book_id=$1`, b.ID); err != nil {
		return fmt.Errorf("clear book footprint: %w", err)
	}
	for lemma, count := range b.Vocabulary {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO book_vocabulary (book_id, lemma, occurrence_count) VALUES ($1,$2,$3)`,
			b.ID, lemma, count); err != nil {
			return fmt.Errorf("save footprint word %q: %w", lemma, err)
		}
	}
	return tx.Commit()
}

// ListBooks loads the catalog with footprints attached.
func (s *Store) ListBooks(ctx context.Context) ([]recommend.Book, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, title, author, gutenberg_id, reading_level FROM books ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var books []recommend.Book
	index := make(map[string]int)
	for rows.Next() {
		var b recommend.Book
		var author sql.NullString
		var gutenberg sql.NullInt64
		if err := rows.Scan(&b.ID, &b.Title, &author, &gutenberg, &b.ReadingLevel); err != nil {
			return nil, err
		}
		b.Author = author.String
		b.GutenbergID = int(gutenberg.Int64)
		b.Vocabulary = make(map[string]int)
		index[b.ID] = len(books)
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	frows, err := s.DB.QueryContext(ctx, `SELECT book_id, lemma, occurrence_count FROM book_vocabulary`)
	if err != nil {
		return nil, err
	}
	defer frows.Close()
	for frows.Next() {
		var bookID, lemma string
		var count int
		if err := frows.Scan(&bookID, &lemma, &count); err != nil {
			return nil, err
		}
		if i, ok := index[bookID]; ok {
			books[i].Vocabulary[lemma] = count
		}
	}
	return books, frows.Err()
}

// Run artifacts

// CreateRun records a finished analysis run.
func (s *Store) CreateRun(ctx context.Context, runID string, generatedAt time.Time, orphanUnits int) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO runs (id, generated_at, orphan_units) VALUES ($1,$2,$3)`,
		runID, generatedAt, orphanUnits)
	return err
}

// LatestRunTime returns when the most recent run was generated, or
// nil when no run exists.
func (s *Store) LatestRunTime(ctx context.Context) (*time.Time, error) {
	var t sql.NullTime
	if err := s.DB.QueryRowContext(ctx, `SELECT MAX(generated_at) FROM runs`).Scan(&t); err != nil {
		return nil, err
	}
	if !t.Valid {
		return nil, nil
	}
	return &t.Time, nil
}

// SaveStudentRecommendations replaces one student's matches for a run.
func (s *Store) SaveStudentRecommendations(ctx context.Context, runID, studentID string, matches []recommend.Match) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for rank, m := range matches {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO student_recommendations (run_id, student_id, book_id, rank, match_score, known_fraction, new_word_count)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			runID, studentID, m.Book.ID, rank+1, m.Score, m.KnownFraction, m.NewWordCount); err != nil {
			return fmt.Errorf("save recommendation %q: %w", m.Book.ID, err)
		}
	}
	return tx.Commit()
}

// LatestStudentRecommendations loads a student's matches from the most
// recent run.
func (s *Store) LatestStudentRecommendations(ctx context.Context, studentID string) ([]StudentRecommendationRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT sr.run_id, sr.student_id, sr.book_id, b.title, sr.rank, sr.match_score, sr.known_fraction, sr.new_word_count
		FROM student_recommendations sr
		JOIN books b ON b.id = sr.book_id
		WHERE sr.student_id = $1
		  AND sr.run_id = (SELECT id FROM runs ORDER BY generated_at DESC LIMIT 1)
		ORDER BY sr.rank`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StudentRecommendationRecord
	for rows.Next() {
		var r StudentRecommendationRecord
		if err := rows.Scan(&r.RunID, &r.StudentID, &r.BookID, &r.Title, &r.Rank, &r.Score, &r.KnownFraction, &r.NewWordCount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveClassRecommendations replaces the class-wide picks for a run.
func (s *Store) SaveClassRecommendations(ctx context.Context, runID string, picks []recommend.ClassRecommendation) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for rank, p := range picks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO class_recommendations (run_id, book_id, rank, students_recommended, average_score)
			VALUES ($1,$2,$3,$4,$5)`,
			runID, p.BookID, rank+1, p.StudentsRecommended, p.AverageScore); err != nil {
			return fmt.Errorf("save class pick %q: %w", p.BookID, err)
		}
	}
	return tx.Commit()
}

// LatestClassRecommendations loads the class picks from the most
// recent run.
func (s *Store) LatestClassRecommendations(ctx context.Context) ([]recommend.ClassRecommendation, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT cr.book_id, b.title, cr.students_recommended, cr.average_score
		FROM class_recommendations cr
		JOIN books b ON b.id = cr.book_id
		WHERE cr.run_id = (SELECT id FROM runs ORDER BY generated_at DESC LIMIT 1)
		ORDER BY cr.rank`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []recommend.ClassRecommendation
	for rows.Next() {
		var r recommend.ClassRecommendation
		if err := rows.Scan(&r.BookID, &r.Title, &r.StudentsRecommended, &r.AverageScore); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ClassStats summarizes the class for the dashboard: roster size,
// average mastery, the reading-level distribution, the words the most
// students are missing, and the words misused by the most students.
// An unverified occurrence raises usage_count only, so misuse is
// derived from recorded misuse examples, never from the usage gap.
func (s *Store) ClassStats(ctx context.Context, wordLimit int) (ClassStats, error) {
	var stats ClassStats
	err := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(mastery), 0) FROM students`).
		Scan(&stats.Students, &stats.AverageMastery)
	if err != nil {
		return stats, err
	}

	levels, err := s.DB.QueryContext(ctx, `
		SELECT FLOOR(actual_reading_level)::int AS level, COUNT(*)
		FROM students GROUP BY level ORDER BY level`)
	if err != nil {
		return stats, err
	}
	defer levels.Close()
	for levels.Next() {
		var lc LevelCount
		if err := levels.Scan(&lc.Level, &lc.Students); err != nil {
			return stats, err
		}
		stats.ReadingLevels = append(stats.ReadingLevels, lc)
	}
	if err := levels.Err(); err != nil {
		return stats, err
	}

	missing, err := s.DB.QueryContext(ctx, `
		SELECT vw.lemma, vw.grade,
		       (SELECT COUNT(*) FROM students)
		       - (SELECT COUNT(*) FROM student_vocabulary sv
		          WHERE sv.lemma = vw.lemma AND sv.correct_usage_count > 0) AS students_missing
		FROM vocabulary_words vw
		ORDER BY students_missing DESC, vw.grade, vw.lemma
		LIMIT $1`, wordLimit)
	if err != nil {
		return stats, err
	}
	defer missing.Close()
	for missing.Next() {
		var m MissingWordStat
		if err := missing.Scan(&m.Lemma, &m.Grade, &m.StudentsMissing); err != nil {
			return stats, err
		}
		stats.TopMissing = append(stats.TopMissing, m)
	}
	if err := missing.Err(); err != nil {
		return stats, err
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT sv.lemma, vw.grade,
		       SUM(sv.usage_count),
		       SUM(cardinality(sv.misuse_examples)),
		       COUNT(DISTINCT sv.student_id)
		FROM student_vocabulary sv
		JOIN vocabulary_words vw ON vw.lemma = sv.lemma
		WHERE cardinality(sv.misuse_examples) > 0
		GROUP BY sv.lemma, vw.grade
		ORDER BY SUM(cardinality(sv.misuse_examples)) DESC, sv.lemma
		LIMIT $1`, wordLimit)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var w WordStat
		if err := rows.Scan(&w.Lemma, &w.Grade, &w.UsageCount, &w.MisuseCount, &w.StudentCount); err != nil {
			return stats, err
		}
		stats.MostMisused = append(stats.MostMisused, w)
	}
	return stats, rows.Err()
}
