package server

// HTTPError is the unified error payload.
type HTTPError struct {
	Error string `json:"error"`
}

// AuthSignupRequest is the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest is the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a signed JWT.
type TokenResponse struct {
	Token string `json:"token"`
}

// StudentSummary is one roster row on the dashboard.
type StudentSummary struct {
	Name               string  `json:"name"`
	ActualReadingLevel float64 `json:"actual_reading_level"`
	AssignedGrade      int     `json:"assigned_grade"`
	Mastery            float64 `json:"mastery"`
}

// WordDetail is one word record in a student detail response.
type WordDetail struct {
	Lemma             string   `json:"lemma"`
	Grade             int      `json:"grade"`
	UsageCount        int      `json:"usage_count"`
	CorrectUsageCount int      `json:"correct_usage_count"`
	Known             bool     `json:"known"`
	MisuseExamples    []string `json:"misuse_examples,omitempty"`
}

// RecommendationDetail is one stored book match.
type RecommendationDetail struct {
	BookID        string  `json:"book_id"`
	Title         string  `json:"title"`
	Rank          int     `json:"rank"`
	Score         float64 `json:"score"`
	KnownFraction float64 `json:"known_fraction"`
	NewWordCount  int     `json:"new_word_count"`
}

// StudentDetailResponse is the full per-student view.
type StudentDetailResponse struct {
	StudentSummary
	Words           []WordDetail           `json:"words"`
	Recommendations []RecommendationDetail `json:"recommendations"`
}

// ClassStatsResponse is the class dashboard summary.
type ClassStatsResponse struct {
	Students       int                  `json:"students"`
	AverageMastery float64              `json:"average_mastery"`
	ReadingLevels  []ReadingLevelBucket `json:"reading_level_distribution"`
	TopMissing     []MissingWordRow     `json:"top_missing_words"`
	MostMisused    []MisusedWordRow     `json:"most_misused"`
}

// ReadingLevelBucket counts the students at one whole-number reading
// level.
type ReadingLevelBucket struct {
	Level    int `json:"level"`
	Students int `json:"students"`
}

// MissingWordRow is one entry in the class missing-words leaderboard.
type MissingWordRow struct {
	Lemma           string `json:"lemma"`
	Grade           int    `json:"grade"`
	StudentsMissing int    `json:"students_missing"`
}

// MisusedWordRow is one entry in the class misuse leaderboard.
type MisusedWordRow struct {
	Lemma        string `json:"lemma"`
	Grade        int    `json:"grade"`
	UsageCount   int    `json:"usage_count"`
	MisuseCount  int    `json:"misuse_count"`
	StudentCount int    `json:"student_count"`
}

// ClassRecommendationRow is one class-wide book pick.
type ClassRecommendationRow struct {
	BookID              string  `json:"book_id"`
	Title               string  `json:"title"`
	StudentsRecommended int     `json:"students_recommended"`
	AverageScore        float64 `json:"average_score"`
}

// BookRow is one catalog entry in the plain book listing.
type BookRow struct {
	BookID          string  `json:"book_id"`
	Title           string  `json:"title"`
	Author          string  `json:"author,omitempty"`
	ReadingLevel    float64 `json:"reading_level"`
	VocabularyWords int     `json:"vocabulary_words"`
}

// BookSearchHit is one full-text search result over the catalog.
type BookSearchHit struct {
	BookID       string  `json:"book_id"`
	Title        string  `json:"title"`
	Author       string  `json:"author,omitempty"`
	ReadingLevel float64 `json:"reading_level"`
	SearchScore  float64 `json:"search_score"`
}
