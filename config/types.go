package config

import "time"

// Config is the root configuration object for the proposalreview service,
// composed of per-component sections mirroring the teacher's layered
// ServerConfig/DatabaseConfig/... style.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Review    ReviewConfig    `yaml:"review"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"SERVER_ADDR"`
	MetricsAddr     string        `yaml:"metrics_addr" env:"METRICS_ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`

	// CORSAllowedOrigins, when non-empty, is echoed back in
	// Access-Control-Allow-Origin for requests whose Origin matches an
	// entry exactly; "*" is not treated as a wildcard.
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"SERVER_CORS_ALLOWED_ORIGINS"`

	// RateLimitRPS/RateLimitBurst bound the per-client token bucket the
	// HTTP middleware chain applies ahead of every handler. Zero disables
	// rate limiting.
	RateLimitRPS   float64 `yaml:"rate_limit_rps" env:"SERVER_RATE_LIMIT_RPS"`
	RateLimitBurst int     `yaml:"rate_limit_burst" env:"SERVER_RATE_LIMIT_BURST"`

	// APIKeys, when non-empty, are the set of keys accepted by the
	// X-API-Key header (or query parameter, if AllowQueryAPIKey). Empty
	// disables API key authentication entirely.
	APIKeys          []string `yaml:"api_keys" env:"SERVER_API_KEYS"`
	AllowQueryAPIKey bool     `yaml:"allow_query_api_key" env:"SERVER_ALLOW_QUERY_API_KEY"`

	// JWTSecret, when set, enables bearer-token auth as an alternative to
	// API keys for the admin surface.
	JWTSecret string `yaml:"jwt_secret" env:"SERVER_JWT_SECRET"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver" env:"DB_DRIVER"` // postgres | sqlite
	Host            string        `yaml:"host" env:"DB_HOST"`
	Port            int           `yaml:"port" env:"DB_PORT"`
	User            string        `yaml:"user" env:"DB_USER"`
	Password        string        `yaml:"password" env:"DB_PASSWORD"`
	Name            string        `yaml:"name" env:"DB_NAME"`
	SSLMode         string        `yaml:"ssl_mode" env:"DB_SSL_MODE"`
	Path            string        `yaml:"path" env:"DB_PATH"` // sqlite file path
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
}

// DSN builds the driver-specific data source name, following the
// teacher's DatabaseConfig.DSN() convention used in cmd/agentflow/main.go.
func (c DatabaseConfig) DSN() string {
	switch c.Driver {
	case "sqlite":
		return c.Path
	default: // postgres
		return "host=" + c.Host +
			" user=" + c.User +
			" password=" + c.Password +
			" dbname=" + c.Name +
			" sslmode=" + c.SSLMode
	}
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	Enabled  bool   `yaml:"enabled" env:"REDIS_ENABLED"`
}

type LLMConfig struct {
	BaseURL      string        `yaml:"base_url" env:"LLM_BASE_URL"`
	APIKey       string        `yaml:"api_key" env:"LLM_API_KEY"`
	Model        string        `yaml:"model" env:"LLM_MODEL"`
	Timeout      time.Duration `yaml:"timeout" env:"LLM_TIMEOUT"`
	QualityModel string        `yaml:"quality_model" env:"LLM_QUALITY_MODEL"`
}

type RetrievalConfig struct {
	BaseURL        string        `yaml:"base_url" env:"RETRIEVAL_BASE_URL"`
	Timeout        time.Duration `yaml:"timeout" env:"RETRIEVAL_TIMEOUT"`
	DefaultMethod  string        `yaml:"default_method" env:"RETRIEVAL_DEFAULT_METHOD"` // rrf | bm25 | knn | cc
	DefaultK       int           `yaml:"default_k" env:"RETRIEVAL_DEFAULT_K"`
}

type LogConfig struct {
	Level       string `yaml:"level" env:"LOG_LEVEL"`
	Development bool   `yaml:"development" env:"LOG_DEVELOPMENT"`
}

// TelemetryConfig controls OpenTelemetry tracing around each stage
// execution and each LLM/retrieval call. No OTLP endpoint is configured
// in this deployment shape (see DESIGN.md); when Enabled, spans are
// created and sampled but exported only if a processor is attached by
// the embedding application.
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled" env:"TELEMETRY_ENABLED"`
	ServiceName string  `yaml:"service_name" env:"TELEMETRY_SERVICE_NAME"`
	SampleRate  float64 `yaml:"sample_rate" env:"TELEMETRY_SAMPLE_RATE"`
}

// ReviewConfig tunes the orchestrator (C7) and stage library (C6)
// without touching code, per spec §4.5/§4.6/§7.
type ReviewConfig struct {
	MaxRetries       int           `yaml:"max_retries" env:"REVIEW_MAX_RETRIES"`
	FeedbackTimeout  time.Duration `yaml:"feedback_timeout" env:"REVIEW_FEEDBACK_TIMEOUT"`
	PromptCharBudget int           `yaml:"prompt_char_budget" env:"REVIEW_PROMPT_CHAR_BUDGET"`
	BPRecordCount    int           `yaml:"bp_record_count" env:"REVIEW_BP_RECORD_COUNT"`
	TitleMaxChars    int           `yaml:"title_max_chars" env:"REVIEW_TITLE_MAX_CHARS"`
}

// Default returns a Config with the spec-mandated defaults: MAX_RETRIES=3,
// a long HITL timeout (30 minutes), a prompt budget of 800 (the stage
// Truncator counts PromptCharBudget in tokenizer tokens, not characters),
// K≈5 BP records, and a 25-character title budget.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			MetricsAddr:     ":9090",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			Path:         "data/review.db",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Enabled: false,
		},
		LLM: LLMConfig{
			Model:   "gemma3:1b",
			Timeout: 60 * time.Second,
		},
		Retrieval: RetrievalConfig{
			Timeout:       10 * time.Second,
			DefaultMethod: "rrf",
			DefaultK:      5,
		},
		Log: LogConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "proposalreview",
			SampleRate:  0.1,
		},
		Review: ReviewConfig{
			MaxRetries:       3,
			FeedbackTimeout:  30 * time.Minute,
			PromptCharBudget: 800,
			BPRecordCount:    5,
			TitleMaxChars:    25,
		},
	}
}
