package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ServerPort  string `yaml:"server_port"`
	DatabaseURL string `yaml:"database_url"`
	JWTSecret   string `yaml:"jwt_secret"`
}

// Load merges, in increasing precedence: built-in defaults, the optional
// YAML file named by RIPPLE_CONFIG, a .env file if present, and process
// env vars. An empty DatabaseURL selects the in-memory store.
func Load() (*Config, error) {
	// .env is a dev convenience; absence is fine.
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort: "8080",
		JWTSecret:  "dev-secret-change-me",
	}

	if path := os.Getenv("RIPPLE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	overrideEnv(&cfg.ServerPort, "SERVER_PORT")
	overrideEnv(&cfg.DatabaseURL, "DATABASE_URL")
	overrideEnv(&cfg.JWTSecret, "JWT_SECRET")

	return cfg, nil
}

func overrideEnv(dst *string, key string) {
	if val, exists := os.LookupEnv(key); exists {
		*dst = val
	}
}
