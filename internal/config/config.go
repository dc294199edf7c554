package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"fiscora/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	DB         DBConfig
	S3         S3Config
	Redis      RedisConfig
	Cache      CacheConfig
	OCR        OCRConfig
	Preprocess PreprocessConfig
	Validation ValidationConfig
	Batch      BatchConfig
	CORS       CORSConfig
	Log        LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings. The database is optional:
// with Enabled false batches live in memory only and the built-in rule set
// runs at its defaults.
type DBConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// S3Config holds object storage settings for document fetching.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// RedisConfig holds Redis connection settings for the result cache.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig holds result cache settings. Backend is "redis" or "memory".
type CacheConfig struct {
	Backend        string `mapstructure:"backend"`
	DefaultTTLSecs int    `mapstructure:"default_ttl_secs"`
}

// OCRConfig holds engine defaults applied when a request leaves them unset.
type OCRConfig struct {
	DefaultEngine       string   `mapstructure:"default_engine"`
	FallbackEngines     []string `mapstructure:"fallback_engines"`
	Languages           []string `mapstructure:"languages"`
	ConfidenceThreshold float64  `mapstructure:"confidence_threshold"`
	TimeoutSecs         int      `mapstructure:"timeout_secs"`
	AutoSizeThresholdKB int      `mapstructure:"auto_size_threshold_kb"`
}

// PreprocessConfig holds default image cleanup toggles.
type PreprocessConfig struct {
	Deskew        bool    `mapstructure:"deskew"`
	Denoise       bool    `mapstructure:"denoise"`
	Contrast      bool    `mapstructure:"contrast"`
	Binarize      bool    `mapstructure:"binarize"`
	RemoveBorders bool    `mapstructure:"remove_borders"`
	Upscale       bool    `mapstructure:"upscale"`
	UpscaleFactor float64 `mapstructure:"upscale_factor"`
}

// ValidationConfig holds default validation stage toggles.
type ValidationConfig struct {
	ValidateFormat        bool `mapstructure:"validate_format"`
	ValidateBusinessRules bool `mapstructure:"validate_business_rules"`
	StrictMode            bool `mapstructure:"strict_mode"`
}

// BatchConfig holds batch coordinator settings.
type BatchConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultExtraction builds the extraction config a request starts from before
// its own overrides apply.
func (c *Config) DefaultExtraction() domain.ExtractionConfig {
	return domain.ExtractionConfig{
		Engine:          c.OCR.DefaultEngine,
		EnginesFallback: append([]string(nil), c.OCR.FallbackEngines...),
		Extract: domain.ExtractToggles{
			Mandat:    true,
			Bordereau: true,
			Exercice:  true,
			Dates:     true,
			Amounts:   true,
		},
		Preprocess: domain.PreprocessOptions{
			Deskew:        c.Preprocess.Deskew,
			Denoise:       c.Preprocess.Denoise,
			Contrast:      c.Preprocess.Contrast,
			Binarize:      c.Preprocess.Binarize,
			RemoveBorders: c.Preprocess.RemoveBorders,
			Upscale:       c.Preprocess.Upscale,
			UpscaleFactor: c.Preprocess.UpscaleFactor,
		},
		OCR: domain.OCROptions{
			Languages:           append([]string(nil), c.OCR.Languages...),
			ConfidenceThreshold: c.OCR.ConfidenceThreshold,
			TimeoutSecs:         c.OCR.TimeoutSecs,
		},
		Validation: domain.ValidationOptions{
			ValidateFormat:        c.Validation.ValidateFormat,
			ValidateBusinessRules: c.Validation.ValidateBusinessRules,
			StrictMode:            c.Validation.StrictMode,
		},
		Cache: domain.CacheOptions{
			UseCache:   true,
			TTLSeconds: c.Cache.DefaultTTLSecs,
		},
	}
}

// Load reads configuration from environment variables with the FISCORA_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FISCORA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.enabled", false)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "fiscora")
	v.SetDefault("db.password", "fiscora_secret")
	v.SetDefault("db.name", "fiscora_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// S3 defaults
	v.SetDefault("s3.region", "eu-central-1")
	v.SetDefault("s3.bucket", "fiscora-documents")
	v.SetDefault("s3.endpoint", "")

	// Redis defaults
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Cache defaults
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.default_ttl_secs", 3600)

	// OCR defaults
	v.SetDefault("ocr.default_engine", "auto")
	v.SetDefault("ocr.fallback_engines", "")
	v.SetDefault("ocr.languages", "fra,eng")
	v.SetDefault("ocr.confidence_threshold", 0.6)
	v.SetDefault("ocr.timeout_secs", 30)
	v.SetDefault("ocr.auto_size_threshold_kb", 2048)

	// Preprocess defaults
	v.SetDefault("preprocess.deskew", false)
	v.SetDefault("preprocess.denoise", false)
	v.SetDefault("preprocess.contrast", true)
	v.SetDefault("preprocess.binarize", false)
	v.SetDefault("preprocess.remove_borders", false)
	v.SetDefault("preprocess.upscale", false)
	v.SetDefault("preprocess.upscale_factor", 2.0)

	// Validation defaults
	v.SetDefault("validation.validate_format", true)
	v.SetDefault("validation.validate_business_rules", true)
	v.SetDefault("validation.strict_mode", false)

	// Batch defaults
	v.SetDefault("batch.concurrency", 4)

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                        "FISCORA_SERVER_PORT",
		"server.read_timeout":                "FISCORA_SERVER_READ_TIMEOUT",
		"server.write_timeout":               "FISCORA_SERVER_WRITE_TIMEOUT",
		"server.environment":                 "FISCORA_SERVER_ENVIRONMENT",
		"db.enabled":                         "FISCORA_DB_ENABLED",
		"db.host":                            "FISCORA_DB_HOST",
		"db.port":                            "FISCORA_DB_PORT",
		"db.user":                            "FISCORA_DB_USER",
		"db.password":                        "FISCORA_DB_PASSWORD",
		"db.name":                            "FISCORA_DB_NAME",
		"db.sslmode":                         "FISCORA_DB_SSLMODE",
		"db.max_open":                        "FISCORA_DB_MAX_OPEN",
		"db.max_idle":                        "FISCORA_DB_MAX_IDLE",
		"s3.region":                          "FISCORA_S3_REGION",
		"s3.bucket":                          "FISCORA_S3_BUCKET",
		"s3.endpoint":                        "FISCORA_S3_ENDPOINT",
		"s3.access_key":                      "FISCORA_S3_ACCESS_KEY",
		"s3.secret_key":                      "FISCORA_S3_SECRET_KEY",
		"redis.addr":                         "FISCORA_REDIS_ADDR",
		"redis.password":                     "FISCORA_REDIS_PASSWORD",
		"redis.db":                           "FISCORA_REDIS_DB",
		"cache.backend":                      "FISCORA_CACHE_BACKEND",
		"cache.default_ttl_secs":             "FISCORA_CACHE_DEFAULT_TTL_SECS",
		"ocr.default_engine":                 "FISCORA_OCR_DEFAULT_ENGINE",
		"ocr.fallback_engines":               "FISCORA_OCR_FALLBACK_ENGINES",
		"ocr.languages":                      "FISCORA_OCR_LANGUAGES",
		"ocr.confidence_threshold":           "FISCORA_OCR_CONFIDENCE_THRESHOLD",
		"ocr.timeout_secs":                   "FISCORA_OCR_TIMEOUT_SECS",
		"ocr.auto_size_threshold_kb":         "FISCORA_OCR_AUTO_SIZE_THRESHOLD_KB",
		"preprocess.deskew":                  "FISCORA_PREPROCESS_DESKEW",
		"preprocess.denoise":                 "FISCORA_PREPROCESS_DENOISE",
		"preprocess.contrast":                "FISCORA_PREPROCESS_CONTRAST",
		"preprocess.binarize":                "FISCORA_PREPROCESS_BINARIZE",
		"preprocess.remove_borders":          "FISCORA_PREPROCESS_REMOVE_BORDERS",
		"preprocess.upscale":                 "FISCORA_PREPROCESS_UPSCALE",
		"preprocess.upscale_factor":          "FISCORA_PREPROCESS_UPSCALE_FACTOR",
		"validation.validate_format":         "FISCORA_VALIDATION_VALIDATE_FORMAT",
		"validation.validate_business_rules": "FISCORA_VALIDATION_VALIDATE_BUSINESS_RULES",
		"validation.strict_mode":             "FISCORA_VALIDATION_STRICT_MODE",
		"batch.concurrency":                  "FISCORA_BATCH_CONCURRENCY",
		"cors.allowed_origins":               "FISCORA_CORS_ALLOWED_ORIGINS",
		"log.level":                          "FISCORA_LOG_LEVEL",
		"log.format":                         "FISCORA_LOG_FORMAT",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if FISCORA_SERVER_PORT
	// is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("FISCORA_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Enabled:  v.GetBool("db.enabled"),
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.S3 = S3Config{
		Region:    v.GetString("s3.region"),
		Bucket:    v.GetString("s3.bucket"),
		Endpoint:  v.GetString("s3.endpoint"),
		AccessKey: v.GetString("s3.access_key"),
		SecretKey: v.GetString("s3.secret_key"),
	}
	cfg.Redis = RedisConfig{
		Addr:     v.GetString("redis.addr"),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
	}
	cfg.Cache = CacheConfig{
		Backend:        v.GetString("cache.backend"),
		DefaultTTLSecs: v.GetInt("cache.default_ttl_secs"),
	}
	cfg.OCR = OCRConfig{
		DefaultEngine:       v.GetString("ocr.default_engine"),
		FallbackEngines:     splitList(v.GetString("ocr.fallback_engines")),
		Languages:           splitList(v.GetString("ocr.languages")),
		ConfidenceThreshold: v.GetFloat64("ocr.confidence_threshold"),
		TimeoutSecs:         v.GetInt("ocr.timeout_secs"),
		AutoSizeThresholdKB: v.GetInt("ocr.auto_size_threshold_kb"),
	}
	cfg.Preprocess = PreprocessConfig{
		Deskew:        v.GetBool("preprocess.deskew"),
		Denoise:       v.GetBool("preprocess.denoise"),
		Contrast:      v.GetBool("preprocess.contrast"),
		Binarize:      v.GetBool("preprocess.binarize"),
		RemoveBorders: v.GetBool("preprocess.remove_borders"),
		Upscale:       v.GetBool("preprocess.upscale"),
		UpscaleFactor: v.GetFloat64("preprocess.upscale_factor"),
	}
	cfg.Validation = ValidationConfig{
		ValidateFormat:        v.GetBool("validation.validate_format"),
		ValidateBusinessRules: v.GetBool("validation.validate_business_rules"),
		StrictMode:            v.GetBool("validation.strict_mode"),
	}
	cfg.Batch = BatchConfig{
		Concurrency: v.GetInt("batch.concurrency"),
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: splitList(v.GetString("cors.allowed_origins")),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
