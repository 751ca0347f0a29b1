// Package config loads and validates evaluation configuration from YAML files
// with environment-variable overrides. Every filesystem location is explicit;
// nothing is inferred from the working directory or the binary's path.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Corpus     CorpusConfig     `yaml:"corpus"`
	Questions  QuestionsConfig  `yaml:"questions"`
	Output     OutputConfig     `yaml:"output"`
	Ranking    RankingConfig    `yaml:"ranking"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Answer     AnswerConfig     `yaml:"answer"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Server     ServerConfig     `yaml:"server"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// CorpusConfig points at the directory whose files form the corpus, and
// optionally at an index snapshot built from it.
type CorpusConfig struct {
	Dir          string `yaml:"dir"`
	SnapshotPath string `yaml:"snapshotPath"`
}

// QuestionsConfig points at the question set (JSON, or YAML by extension).
type QuestionsConfig struct {
	Path string `yaml:"path"`
}

// OutputConfig controls where the detailed JSON report is written.
type OutputConfig struct {
	Path string `yaml:"path"`
}

// RankingConfig holds BM25 constants and the retrieval depth.
type RankingConfig struct {
	K1   float64 `yaml:"k1"`
	B    float64 `yaml:"b"`
	TopK int     `yaml:"topK"`
}

// ScoringConfig holds the coverage/overlap interpolation weight.
type ScoringConfig struct {
	Alpha float64 `yaml:"alpha"`
}

// AnswerConfig controls the stub answer derived from the top document.
type AnswerConfig struct {
	MaxChars int `yaml:"maxChars"`
}

// EvaluationConfig controls how many questions are evaluated concurrently.
type EvaluationConfig struct {
	Workers int `yaml:"workers"`
}

// ServerConfig holds HTTP server settings for the scoring service.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// RedisConfig holds Redis connection and retrieval-cache parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds broker settings for publishing result records.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// PostgresConfig holds PostgreSQL connection parameters for the result store.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with the documented evaluation defaults: k1 1.5,
// b 0.75, top 3 documents, alpha 0.5 and a 400 character answer budget.
func Default() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Dir: "data/corpus",
		},
		Questions: QuestionsConfig{
			Path: "data/eval_questions.json",
		},
		Output: OutputConfig{
			Path: "rag_eval_results.json",
		},
		Ranking: RankingConfig{
			K1:   1.5,
			B:    0.75,
			TopK: 3,
		},
		Scoring: ScoringConfig{
			Alpha: 0.5,
		},
		Answer: AnswerConfig{
			MaxChars: 400,
		},
		Evaluation: EvaluationConfig{
			Workers: 1,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "rag-eval-results",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "rageval",
			User:            "rageval",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// Validate rejects settings no evaluation run could use.
func (c *Config) Validate() error {
	var errs []error
	if c.Ranking.TopK < 1 {
		errs = append(errs, fmt.Errorf("ranking.topK must be >= 1, got %d", c.Ranking.TopK))
	}
	if c.Ranking.K1 < 0 {
		errs = append(errs, fmt.Errorf("ranking.k1 must be >= 0, got %v", c.Ranking.K1))
	}
	if c.Ranking.B < 0 || c.Ranking.B > 1 {
		errs = append(errs, fmt.Errorf("ranking.b must be within [0,1], got %v", c.Ranking.B))
	}
	if c.Answer.MaxChars < 1 {
		errs = append(errs, fmt.Errorf("answer.maxChars must be >= 1, got %d", c.Answer.MaxChars))
	}
	if c.Evaluation.Workers < 1 {
		errs = append(errs, fmt.Errorf("evaluation.workers must be >= 1, got %d", c.Evaluation.Workers))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// applyEnvOverrides reads RAG_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RAG_CORPUS_DIR"); v != "" {
		cfg.Corpus.Dir = v
	}
	if v := os.Getenv("RAG_CORPUS_SNAPSHOT"); v != "" {
		cfg.Corpus.SnapshotPath = v
	}
	if v := os.Getenv("RAG_QUESTIONS_PATH"); v != "" {
		cfg.Questions.Path = v
	}
	if v := os.Getenv("RAG_OUTPUT_PATH"); v != "" {
		cfg.Output.Path = v
	}
	if v := os.Getenv("RAG_RANKING_K1"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Ranking.K1 = f
		}
	}
	if v := os.Getenv("RAG_RANKING_B"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Ranking.B = f
		}
	}
	if v := os.Getenv("RAG_RANKING_TOPK"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ranking.TopK = n
		}
	}
	if v := os.Getenv("RAG_SCORING_ALPHA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Scoring.Alpha = f
		}
	}
	if v := os.Getenv("RAG_ANSWER_MAX_CHARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Answer.MaxChars = n
		}
	}
	if v := os.Getenv("RAG_EVALUATION_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Evaluation.Workers = n
		}
	}
	if v := os.Getenv("RAG_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RAG_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("RAG_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("RAG_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("RAG_KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	if v := os.Getenv("RAG_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
		cfg.Postgres.Enabled = true
	}
	if v := os.Getenv("RAG_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("RAG_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("RAG_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("RAG_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("RAG_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("RAG_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RAG_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("RAG_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
			cfg.Metrics.Enabled = true
		}
	}
}
