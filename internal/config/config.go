package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey   string
	GeminiBaseURL  string
	ChatModel      string
	ImageModel     string
	ImageEditModel string
	StorageBackend string
	DatabaseDriver string
	DatabaseURL    string
	HTTPPort       string
	LogLevel       string
	LogFormat      string
	JWTSecret      string
}

var AppConfig Config

// Load reads the environment (and a .env file when present) into a Config.
// GEMINI_API_KEY and JWT_SECRET are mandatory.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := Config{
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL:  getEnv("GEMINI_BASE_URL", ""),
		ChatModel:      getEnv("CHAT_MODEL", "gemini-2.5-flash"),
		ImageModel:     getEnv("IMAGE_MODEL", "imagen-4.0-generate-001"),
		ImageEditModel: getEnv("IMAGE_EDIT_MODEL", "gemini-2.5-flash-image"),
		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", "sqlite")),
		DatabaseDriver: getEnv("DATABASE_DRIVER", "sqlite3"),
		DatabaseURL:    getEnv("DATABASE_URL", "aura_chat.db"),
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "text")),
		JWTSecret:      getEnv("JWT_SECRET", ""),
	}

	if cfg.GeminiAPIKey == "" {
		return cfg, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	switch cfg.StorageBackend {
	case "sqlite", "memory":
	default:
		return cfg, fmt.Errorf("unsupported STORAGE_BACKEND %q", cfg.StorageBackend)
	}
	switch cfg.DatabaseDriver {
	case "sqlite3", "sqlite":
	default:
		return cfg, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}
	return cfg, nil
}

func LoadConfig() {
	cfg, err := Load()
	if err != nil {
		log.Fatal(err)
	}
	AppConfig = cfg
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
