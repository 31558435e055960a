package config

import (
	"errors"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

type Config struct {
	Env        string
	LogLevel   string
	ListenAddr string
	DBType     string
	DBDSN      string
	DataDir    string
	GeminiURL  string
}

var (
	cfg  *Config
	once sync.Once
)

func Load() *Config {
	once.Do(func() {
		_ = godotenv.Load()
		cfg = &Config{
			Env:        getEnv("APP_ENV", "development"),
			LogLevel:   getEnv("LOG_LEVEL", "info"),
			ListenAddr: getEnv("LISTEN_ADDR", ":8088"),
			DBType:     getEnv("STORAGE_BACKEND", "file"),
			DBDSN:      getEnv("POSTGRES_DSN", ""),
			DataDir:    getEnv("DATA_DIR", "data"),
			GeminiURL:  getEnv("GEMINI_URL", ""),
		}
		if err := cfg.Validate(); err != nil {
			panic("Invalid config: " + err.Error())
		}
	})
	return cfg
}

func (c *Config) Validate() error {
	if c.DBType != "file" && c.DBType != "postgres" {
		return errors.New("STORAGE_BACKEND must be one of: file, postgres")
	}
	if c.DBType == "postgres" && c.DBDSN == "" {
		return errors.New("POSTGRES_DSN is required when STORAGE_BACKEND=postgres")
	}
	if c.DBType == "file" && c.DataDir == "" {
		return errors.New("File storage requires DATA_DIR to be set")
	}
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return errors.New("APP_ENV must be one of: development, staging, production")
	}
	if c.Env != "development" && c.GeminiURL == "" {
		return errors.New("GEMINI_URL is required outside development")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
