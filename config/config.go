package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/alvera-ai/interoperability-template-generator/internal/logger"
)

var (
	customLog = logger.NewLogger()
	validate  = validator.New()
)

// Store backends accepted in STORE_BACKEND.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
)

// Config holds application configuration values
type Config struct {
	ServerPort           string        `validate:"required"`
	StoreBackend         string        `validate:"oneof=sqlite postgres mysql"`
	DatabaseDir          string        `validate:"required_if=StoreBackend sqlite"`
	DatabaseFile         string        `validate:"required_if=StoreBackend sqlite"`
	DatabaseDSN          string        `validate:"required_unless=StoreBackend sqlite"`
	AnthropicAPIKey      string
	AnthropicModel       string        `validate:"required"`
	AnthropicBaseURL     string        `validate:"required,url"`
	HTTPTimeout          time.Duration `validate:"gt=0"`
	SandboxMaxSteps      uint64        `validate:"gt=0"`
	StrictSpecValidation bool
	RateLimitPerMinute   int      `validate:"gte=0"`
	CORSAllowedOrigins   []string `validate:"min=1"`
}

// DatabasePath is the sqlite file location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DatabaseDir, c.DatabaseFile)
}

// LoadConfig loads configuration from environment variables.
// It uses a .env file for local development if present (ignores it for production).
func LoadConfig() (*Config, error) {
	customLog.Println("Loading configuration from environment variables...")

	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			customLog.Warnf("Warning: Error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		ServerPort:           normalizePort(getEnv("SERVER_PORT", "8080")),
		StoreBackend:         strings.ToLower(getEnv("STORE_BACKEND", BackendSQLite)),
		DatabaseDir:          getEnv("DATABASE_DIRECTORY", "data"),
		DatabaseFile:         getEnv("DATABASE_FILE", "api_tester.db"),
		DatabaseDSN:          getEnv("DATABASE_DSN", ""),
		AnthropicAPIKey:      getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:       getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
		AnthropicBaseURL:     getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		HTTPTimeout:          time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,
		SandboxMaxSteps:      uint64(getEnvInt("SANDBOX_MAX_STEPS", 1000000)),
		StrictSpecValidation: getEnvBool("STRICT_SPEC_VALIDATION", false),
		RateLimitPerMinute:   getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		CORSAllowedOrigins:   splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	customLog.Printf("Configuration loaded successfully. Port: %s, Store: %s", cfg.ServerPort, cfg.StoreBackend)
	return cfg, nil
}

// Validate checks the struct tags and returns a readable error.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed '%s'", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// getEnv reads an environment variable or returns a default value.
// A variable set to blank counts as unset.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		customLog.Warnf("Invalid %s '%s'. Using default %d. Error: %v", key, raw, fallback, err)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		customLog.Warnf("Invalid %s '%s'. Using default %t.", key, raw, fallback)
		return fallback
	}
	return b
}

func normalizePort(port string) string {
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
