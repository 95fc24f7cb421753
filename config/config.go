package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the vocabulary engine.
type Config struct {
	General GeneralConfig `mapstructure:"general"`
	Server  ServerConfig  `mapstructure:"server"`
	Judge   JudgeConfig   `mapstructure:"judge"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Profile ProfileConfig `mapstructure:"profile"`
	Scoring ScoringConfig `mapstructure:"scoring"`
	Corpus  CorpusConfig  `mapstructure:"corpus"`
	Storage StorageConfig `mapstructure:"storage"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server and auth settings.
type ServerConfig struct {
	Address     string `mapstructure:"address"`
	JWTSecret   string `mapstructure:"jwt_secret"`
	RescoreCron string `mapstructure:"rescore_cron"`
}

// JudgeConfig configures the external usage-judgment service.
type JudgeConfig struct {
	Provider    string        `mapstructure:"provider"` // openai or rule
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	Backoff     time.Duration `mapstructure:"backoff"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

func (j JudgeConfig) Validate() error {
	if j.Provider == "openai" && strings.TrimSpace(j.APIKey) == "" {
		return fmt.Errorf("judge.api_key required when judge.provider is openai")
	}
	if j.MaxRetries < 0 {
		return fmt.Errorf("judge.max_retries cannot be negative")
	}
	return nil
}

// Normalize applies defaults for unset judge values.
func (j JudgeConfig) Normalize() JudgeConfig {
	if j.Provider == "" {
		j.Provider = "openai"
	}
	if j.BaseURL == "" {
		j.BaseURL = "https://api.openai.com/v1/chat/completions"
	}
	if j.Model == "" {
		j.Model = "gpt-4o"
	}
	if j.MaxTokens <= 0 {
		j.MaxTokens = 1024
	}
	if j.Timeout <= 0 {
		j.Timeout = 30 * time.Second
	}
	if j.MaxRetries <= 0 {
		j.MaxRetries = 3
	}
	if j.Backoff <= 0 {
		j.Backoff = 500 * time.Millisecond
	}
	if j.CacheTTL <= 0 {
		j.CacheTTL = 24 * time.Hour
	}
	return j
}

// EngineConfig bounds the per-student pipeline fan-out.
type EngineConfig struct {
	MaxConcurrentStudents int `mapstructure:"max_concurrent_students"`
	MaxConcurrentBatches  int `mapstructure:"max_concurrent_batches"`
}

func (e EngineConfig) Normalize() EngineConfig {
	if e.MaxConcurrentStudents <= 0 {
		e.MaxConcurrentStudents = 4
	}
	if e.MaxConcurrentBatches <= 0 {
		e.MaxConcurrentBatches = 8
	}
	return e
}

// ProfileConfig controls mastery aggregation.
type ProfileConfig struct {
	MisuseExampleCap int `mapstructure:"misuse_example_cap"`
	// MasteryDenominator chooses which vocabulary words count as
	// eligible: at_or_below_grade, assigned_grade, or all_grades.
	MasteryDenominator string `mapstructure:"mastery_denominator"`
}

func (p ProfileConfig) Normalize() ProfileConfig {
	if p.MisuseExampleCap <= 0 {
		p.MisuseExampleCap = 5
	}
	if p.MasteryDenominator == "" {
		p.MasteryDenominator = "at_or_below_grade"
	}
	return p
}

func (p ProfileConfig) Validate() error {
	switch p.MasteryDenominator {
	case "at_or_below_grade", "assigned_grade", "all_grades":
		return nil
	}
	return fmt.Errorf("profile.mastery_denominator must be one of at_or_below_grade, assigned_grade, all_grades")
}

// ScoringConfig holds every constant the book scorer uses. Nothing in
// the scorer is allowed to hard-code these.
type ScoringConfig struct {
	TargetRatio   float64 `mapstructure:"target_ratio"`
	EasyThreshold float64 `mapstructure:"easy_threshold"`
	HardThreshold float64 `mapstructure:"hard_threshold"`
	PenaltyCurve  string  `mapstructure:"penalty_curve"` // linear or exponential
	PenaltySlope  float64 `mapstructure:"penalty_slope"`
	LevelBonus    float64 `mapstructure:"level_bonus"`
	LevelBand     float64 `mapstructure:"level_band"`
	TopK          int     `mapstructure:"top_k"`
	ClassTopK     int     `mapstructure:"class_top_k"`
}

func (s ScoringConfig) Normalize() ScoringConfig {
	if s.TargetRatio <= 0 {
		s.TargetRatio = 0.5
	}
	if s.EasyThreshold <= 0 {
		s.EasyThreshold = 0.8
	}
	if s.HardThreshold <= 0 {
		s.HardThreshold = 0.3
	}
	if s.PenaltyCurve == "" {
		s.PenaltyCurve = "linear"
	}
	if s.PenaltySlope <= 0 {
		s.PenaltySlope = 2.0
	}
	if s.LevelBonus <= 0 {
		s.LevelBonus = 0.1
	}
	if s.LevelBand <= 0 {
		s.LevelBand = 1.0
	}
	if s.TopK <= 0 {
		s.TopK = 3
	}
	if s.ClassTopK <= 0 {
		s.ClassTopK = 2
	}
	return s
}

func (s ScoringConfig) Validate() error {
	if s.HardThreshold >= s.EasyThreshold {
		return fmt.Errorf("scoring.hard_threshold must be below scoring.easy_threshold")
	}
	if s.TargetRatio < s.HardThreshold || s.TargetRatio > s.EasyThreshold {
		return fmt.Errorf("scoring.target_ratio must sit inside the comfort band")
	}
	switch s.PenaltyCurve {
	case "linear", "exponential":
	default:
		return fmt.Errorf("scoring.penalty_curve must be linear or exponential")
	}
	return nil
}

// CorpusConfig locates the input data on disk.
type CorpusConfig struct {
	DataDir        string `mapstructure:"data_dir"`
	TranscriptFile string `mapstructure:"transcript_file"`
	EssaysDir      string `mapstructure:"essays_dir"`
	RosterFile     string `mapstructure:"roster_file"`
	VocabDir       string `mapstructure:"vocab_dir"`
	BooksFile      string `mapstructure:"books_file"`
}

// Normalize resolves corpus paths relative to the data dir.
func (c CorpusConfig) Normalize() CorpusConfig {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	join := func(p, def string) string {
		if p == "" {
			p = def
		}
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(c.DataDir, p)
	}
	c.TranscriptFile = join(c.TranscriptFile, "classroom_transcript.txt")
	c.EssaysDir = join(c.EssaysDir, "student_essays")
	c.RosterFile = join(c.RosterFile, "student_personas.json")
	c.VocabDir = join(c.VocabDir, "vocab")
	c.BooksFile = join(c.BooksFile, "books.json")
	return c
}

// StorageConfig contains storage and persistence settings.
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings.
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a postgres connection string from the configured parts.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// RedisConfig contains Redis connection settings. Redis is optional;
// when disabled the verdict cache and scheduler lock are skipped.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Validate() error {
	if !r.Enabled {
		return nil
	}
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required when redis is enabled")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required when redis is enabled")
	}
	return nil
}

// Addr returns host:port for the redis client.
func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

// LoadConfig loads config from file and environment (VOCABMATCH_*).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")

	v.SetDefault("general.log_level", "info")
	v.SetDefault("server.address", ":10020")
	v.SetDefault("server.rescore_cron", "@daily")
	v.SetDefault("scoring.target_ratio", 0.5)
	v.SetDefault("scoring.easy_threshold", 0.8)
	v.SetDefault("scoring.hard_threshold", 0.3)
	v.SetDefault("scoring.penalty_curve", "linear")
	v.SetDefault("scoring.penalty_slope", 2.0)
	v.SetDefault("scoring.level_bonus", 0.1)
	v.SetDefault("scoring.level_band", 1.0)
	v.SetDefault("scoring.top_k", 3)
	v.SetDefault("scoring.class_top_k", 2)
	v.SetDefault("profile.misuse_example_cap", 5)
	v.SetDefault("profile.mastery_denominator", "at_or_below_grade")

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)
		v.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("VOCABMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional; env and defaults may be enough.
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Judge = cfg.Judge.Normalize()
	cfg.Engine = cfg.Engine.Normalize()
	cfg.Profile = cfg.Profile.Normalize()
	cfg.Scoring = cfg.Scoring.Normalize()
	cfg.Corpus = cfg.Corpus.Normalize()

	if err := cfg.Judge.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Profile.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Scoring.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.Redis.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
