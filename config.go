package main

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultBackendURL = "http://localhost:8000"
const defaultHTTPTimeoutSeconds = 30

type Config struct {
	SlackBotToken string `yaml:"slack_bot_token"`
	SlackAppToken string `yaml:"slack_app_token"`

	BackendURL         string `yaml:"backend_url"`
	HTTPTimeoutSeconds int    `yaml:"http_timeout_seconds"`

	// Source is sent as the "source" field of every classify request so
	// the backend can tell Slack traffic from the web UI.
	Source string `yaml:"source"`

	DBPath                 string `yaml:"db_path"`
	CatalogRefreshSchedule string `yaml:"catalog_refresh_schedule"`
	Timezone               string `yaml:"timezone"`

	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML
}

func LoadConfig() Config {
	// A .env file next to the binary is convenient for local runs; real
	// deployments set the variables directly.
	_ = godotenv.Load()

	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackAppToken, "SLACK_APP_TOKEN")
	envOverride(&cfg.BackendURL, "BACKEND_URL")
	envOverrideInt(&cfg.HTTPTimeoutSeconds, "HTTP_TIMEOUT_SECONDS")
	envOverride(&cfg.Source, "SOURCE")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.CatalogRefreshSchedule, "CATALOG_REFRESH_SCHEDULE")
	envOverride(&cfg.Timezone, "TIMEZONE")

	if cfg.BackendURL == "" {
		cfg.BackendURL = defaultBackendURL
	}
	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")
	if cfg.HTTPTimeoutSeconds == 0 {
		cfg.HTTPTimeoutSeconds = defaultHTTPTimeoutSeconds
	}
	if cfg.Source == "" {
		cfg.Source = "slack_bot"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./ticketbot.db"
	}
	if cfg.CatalogRefreshSchedule == "" {
		cfg.CatalogRefreshSchedule = "@every 6h"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}

	required := map[string]string{
		"slack_bot_token": cfg.SlackBotToken,
		"slack_app_token": cfg.SlackAppToken,
	}
	for name, val := range required {
		if val == "" {
			log.Fatalf("Required config '%s' is not set (via config.yaml or env var)", name)
		}
	}

	if cfg.HTTPTimeoutSeconds < 5 {
		log.Fatalf("invalid http_timeout_seconds '%d': must be >= 5", cfg.HTTPTimeoutSeconds)
	}
	if !strings.HasPrefix(cfg.BackendURL, "http://") && !strings.HasPrefix(cfg.BackendURL, "https://") {
		log.Fatalf("invalid backend_url '%s': must start with http:// or https://", cfg.BackendURL)
	}

	if strings.EqualFold(cfg.Timezone, "Local") {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Fatalf("invalid timezone '%s': %v", cfg.Timezone, err)
		}
		cfg.Location = loc
	}

	return cfg
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}
