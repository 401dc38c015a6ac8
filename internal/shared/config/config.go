package config

import (
	"log"
	"strings"
	"time"

	"github.com/gotify/configor"
)

// Config holds application configuration.
type Config struct {
	Port                 string `default:"8080" env:"PORT"`
	Env                  string `default:"dev" env:"ENV"`
	LogLevel             string `default:"info" env:"LOG_LEVEL"`
	CORSAllowOrigins     string `default:"http://localhost:8501" env:"CORS_ALLOW_ORIGINS"`
	ParserEndpoint       string `default:"" env:"PROMPTFLOW_ENDPOINT"`
	ParserAPIKey         string `default:"" env:"PROMPTFLOW_API_KEY"`
	ParserTimeoutSeconds int    `default:"60" env:"PARSER_TIMEOUT_SECONDS"`
	ParsedSchemaPath     string `default:"" env:"PARSED_SCHEMA_PATH"`
	TemplateStoreType    string `default:"local" env:"TEMPLATE_STORE"`
	TemplateDir          string `default:"templates" env:"TEMPLATE_DIR"`
	LocalStoreDir        string `default:"./data" env:"LOCAL_STORE_DIR"`
	AWSRegion            string `default:"" env:"AWS_REGION"`
	S3Bucket             string `default:"" env:"S3_BUCKET"`
	S3Prefix             string `default:"" env:"S3_PREFIX"`
	PreviewSanitize      *bool  `default:"true" env:"PREVIEW_SANITIZE"`
	DatabaseURL          string `default:"" env:"DATABASE_URL"`
}

func configFiles() []string {
	return []string{"config.yml"}
}

// Load reads configuration from config.yml and environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	var cfg Config
	if err := configor.New(&configor.Config{}).Load(&cfg, configFiles()...); err != nil {
		log.Printf("config: load failed, using defaults: %v", err)
	}
	return cfg.normalize()
}

func (c Config) normalize() Config {
	c.Env = normalizeEnv(c.Env)
	c.TemplateStoreType = normalizeStoreType(c.TemplateStoreType)
	c.ParserEndpoint = strings.TrimSpace(c.ParserEndpoint)
	c.ParserAPIKey = strings.TrimSpace(c.ParserAPIKey)
	if strings.TrimSpace(c.TemplateDir) == "" {
		c.TemplateDir = "templates"
	}
	if c.ParserTimeoutSeconds <= 0 {
		c.ParserTimeoutSeconds = 60
	}
	return c
}

// ParserTimeout returns the request timeout for the parsing endpoint.
func (c Config) ParserTimeout() time.Duration {
	if c.ParserTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.ParserTimeoutSeconds) * time.Second
}

// SanitizePreview reports whether rendered previews go through the HTML sanitizer.
func (c Config) SanitizePreview() bool {
	return c.PreviewSanitize == nil || *c.PreviewSanitize
}

// CORSOrigins splits the comma separated origin list.
func (c Config) CORSOrigins() []string {
	return splitAndTrim(c.CORSAllowOrigins)
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
