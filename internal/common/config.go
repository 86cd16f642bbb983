package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Crawler     CrawlerConfig   `toml:"crawler"`
	Reference   ReferenceConfig `toml:"reference"`
	Retrieval   RetrievalConfig `toml:"retrieval"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
	Chat        ChatConfig      `toml:"chat"`
	Finalize    FinalizeConfig  `toml:"finalize"`
	Blob        BlobConfig      `toml:"blob"`
	Drive       DriveConfig     `toml:"drive"`
	SMTP        SMTPConfig      `toml:"smtp"`
	Webhook     WebhookConfig   `toml:"webhook"`
	Jobs        JobsConfig      `toml:"jobs"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gte=0,lte=65535"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// CrawlerConfig controls the seed and ingest passes over web knowledge sources.
type CrawlerConfig struct {
	UserAgent         string         `toml:"user_agent"`
	RequestTimeout    time.Duration  `toml:"request_timeout"`
	RequestDelay      time.Duration  `toml:"request_delay"`      // Minimum delay between requests to same domain
	MaxPagesPerSource int            `toml:"max_pages_per_source" validate:"gte=0"`
	MaxPagesPerIngest int            `toml:"max_pages_per_ingest" validate:"gte=0"`
	SeedMaxDuration   time.Duration  `toml:"seed_max_duration"`   // Wall-clock budget for one seed run
	IngestMaxDuration time.Duration  `toml:"ingest_max_duration"` // Wall-clock budget for one ingest run
	ClaimWindow       time.Duration  `toml:"claim_window"`        // next_fetch_at bump while a page is being processed
	FollowRobotsTxt   bool           `toml:"follow_robots_txt"`
	ChunkMaxChars     int            `toml:"chunk_max_chars" validate:"gte=0"`
	ChunkMinChars     int            `toml:"chunk_min_chars" validate:"gte=0"`
	Sources           []SourceConfig `toml:"sources"`
}

// SourceConfig describes one crawlable web knowledge source.
type SourceConfig struct {
	Domain          string   `toml:"domain" validate:"required"`
	Name            string   `toml:"name"`
	Type            string   `toml:"type"` // "external" or "wix"
	Language        string   `toml:"language"`
	StartURLs       []string `toml:"start_urls"`
	AllowedPrefixes []string `toml:"allowed_prefixes"` // Inferred from start URLs when empty
	DenySubstrings  []string `toml:"deny_substrings"`  // Merged with the default deny list
}

// ReferenceConfig points at the curated internal knowledge base (./docs/*.md).
type ReferenceConfig struct {
	Dir        string   `toml:"dir"`
	Extensions []string `toml:"extensions"`
}

type RetrievalConfig struct {
	TopK       int      `toml:"top_k" validate:"gte=0"`
	MinScore   float64  `toml:"min_score"`
	WebDomains []string `toml:"web_domains"` // Optional domain allow-list for the web corpus
}

type GeminiConfig struct {
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`         // Default model for routine turns
	QualityModel   string  `toml:"quality_model"` // Model for turns routed to the quality tier
	EmbedModel     string  `toml:"embed_model"`
	EmbedDimension int     `toml:"embed_dimension" validate:"gte=0"`
	Timeout        string  `toml:"timeout"`
	Temperature    float64 `toml:"temperature"`
}

type ClaudeConfig struct {
	APIKey       string  `toml:"api_key"`
	Model        string  `toml:"model"`         // Default model for routine turns
	QualityModel string  `toml:"quality_model"` // Model for turns routed to the quality tier
	MaxTokens    int     `toml:"max_tokens"`
	Timeout      string  `toml:"timeout"`
	Temperature  float64 `toml:"temperature"`
}

// LLMProvider identifies which LLM provider to use
type LLMProvider string

const (
	LLMProviderGemini LLMProvider = "gemini"
	LLMProviderClaude LLMProvider = "claude"
)

type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"`
}

type ChatConfig struct {
	NamePrefix      string        `toml:"name_prefix"`
	SummaryEveryN   int           `toml:"summary_every_n" validate:"gte=0"`
	SummaryMaxChars int           `toml:"summary_max_chars" validate:"gte=0"`
	HistoryWindow   int           `toml:"history_window" validate:"gte=0"` // Recent turns included verbatim in the prompt
	UploadExpiry    time.Duration `toml:"upload_expiry"`                   // Retention for attachments uploaded mid-conversation
}

type FinalizeConfig struct {
	TargetLanguage    string        `toml:"target_language"` // Language of the internal transcript variant
	ArtifactExpiry    time.Duration `toml:"artifact_expiry"` // Shared expiry for the four artifacts of one finalization
	InternalRecipient string        `toml:"internal_recipient"`
	PreviewMaxWidth   int           `toml:"preview_max_width" validate:"gte=0"`
	PreviewMaxBytes   int           `toml:"preview_max_bytes" validate:"gte=0"`
}

// BlobConfig configures the S3-compatible object store for artifacts and previews.
type BlobConfig struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	UseSSL    bool   `toml:"use_ssl"`
	PublicURL string `toml:"public_url"` // Base URL prepended to object keys in returned links
}

type DriveConfig struct {
	CredentialsFile string `toml:"credentials_file"` // Service-account JSON
	FolderID        string `toml:"folder_id"`
}

type SMTPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
	FromName string `toml:"from_name"`
	UseTLS   bool   `toml:"use_tls"`
}

type WebhookConfig struct {
	Secret string `toml:"secret"` // Shared secret; empty disables the check
}

// JobsConfig holds the cron schedules for the scheduled passes.
type JobsConfig struct {
	SeedSchedule      string `toml:"seed_schedule"`
	IngestSchedule    string `toml:"ingest_schedule"`
	ReferenceSchedule string `toml:"reference_schedule"`
	CleanupSchedule   string `toml:"cleanup_schedule"`
}

// NewDefaultConfig returns a config populated with defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/facet",
				ResetOnStartup: false,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Crawler: CrawlerConfig{
			UserAgent:         "FacetBot/1.0 (+https://facet.example/bot)",
			RequestTimeout:    20 * time.Second,
			RequestDelay:      500 * time.Millisecond,
			MaxPagesPerSource: 200,
			MaxPagesPerIngest: 50,
			SeedMaxDuration:   4 * time.Minute,
			IngestMaxDuration: 4 * time.Minute,
			ClaimWindow:       5 * time.Minute,
			FollowRobotsTxt:   true,
			ChunkMaxChars:     2400,
			ChunkMinChars:     400,
		},
		Reference: ReferenceConfig{
			Dir:        "./docs",
			Extensions: []string{".md"},
		},
		Retrieval: RetrievalConfig{
			TopK:     5,
			MinScore: 0.0,
		},
		Gemini: GeminiConfig{
			Model:          "gemini-2.0-flash",
			QualityModel:   "gemini-2.5-pro",
			EmbedModel:     "gemini-embedding-001",
			EmbedDimension: 768,
			Timeout:        "2m",
			Temperature:    0.7,
		},
		Claude: ClaudeConfig{
			Model:        "claude-haiku-3-5-20241022",
			QualityModel: "claude-sonnet-4-20250514",
			MaxTokens:    8192,
			Timeout:      "2m",
			Temperature:  0.7,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
		},
		Chat: ChatConfig{
			NamePrefix:      "FP",
			SummaryEveryN:   10,
			SummaryMaxChars: 4000,
			HistoryWindow:   12,
			UploadExpiry:    30 * 24 * time.Hour,
		},
		Finalize: FinalizeConfig{
			TargetLanguage:  "en",
			ArtifactExpiry:  30 * 24 * time.Hour,
			PreviewMaxWidth: 800,
			PreviewMaxBytes: 200 * 1024,
		},
		Blob: BlobConfig{
			Bucket: "facet-artifacts",
		},
		Jobs: JobsConfig{
			SeedSchedule:      "0 3 * * *",
			IngestSchedule:    "*/15 * * * *",
			ReferenceSchedule: "30 3 * * *",
			CleanupSchedule:   "0 4 * * *",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier ones.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FACET_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("FACET_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("FACET_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}
	if secret := os.Getenv("FACET_WEBHOOK_SECRET"); secret != "" {
		config.Webhook.Secret = secret
	}
	if pw := os.Getenv("FACET_SMTP_PASSWORD"); pw != "" {
		config.SMTP.Password = pw
	}
	if key := os.Getenv("FACET_BLOB_ACCESS_KEY"); key != "" {
		config.Blob.AccessKey = key
	}
	if key := os.Getenv("FACET_BLOB_SECRET_KEY"); key != "" {
		config.Blob.SecretKey = key
	}
}
