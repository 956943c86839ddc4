package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries all environment-derived settings for the service.
type Config struct {
	Addr          string
	PublicBaseURL string

	Registry RegistryConfig
	Airtable AirtableConfig

	PostgresDSN string

	FileDir string
	FileTTL time.Duration

	ChromiumPath string

	RateBurst  int
	RatePerSec int
}

// RegistryConfig holds the upstream company-registry settings.
type RegistryConfig struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string
}

// AirtableConfig holds the tabular-datastore settings.
type AirtableConfig struct {
	AccessToken string
	BaseID      string
	Table       string
	UsersTable  string
}

// FromEnv reads configuration from the process environment. Only the
// registry credentials are strictly required; the datastore backend is
// selected later from whichever settings are present.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:          getEnv("CLIENTFLOW_ADDR", ":8080"),
		PublicBaseURL: strings.TrimRight(getEnv("CLIENTFLOW_PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		Registry: RegistryConfig{
			BaseURL:      strings.TrimRight(os.Getenv("CLIENTFLOW_REGISTRY_BASE_URL"), "/"),
			TokenURL:     os.Getenv("CLIENTFLOW_REGISTRY_TOKEN_URL"),
			ClientID:     os.Getenv("CLIENTFLOW_REGISTRY_CLIENT_ID"),
			ClientSecret: os.Getenv("CLIENTFLOW_REGISTRY_CLIENT_SECRET"),
			Scope:        getEnv("CLIENTFLOW_REGISTRY_SCOPE", "vardefulla-datamangder:read vardefulla-datamangder:ping"),
		},
		Airtable: AirtableConfig{
			AccessToken: os.Getenv("CLIENTFLOW_AIRTABLE_ACCESS_TOKEN"),
			BaseID:      os.Getenv("CLIENTFLOW_AIRTABLE_BASE_ID"),
			Table:       getEnv("CLIENTFLOW_AIRTABLE_TABLE", "KUNDDATA"),
			UsersTable:  getEnv("CLIENTFLOW_AIRTABLE_USERS_TABLE", "Application Users"),
		},
		PostgresDSN:  os.Getenv("CLIENTFLOW_PG_DSN"),
		FileDir:      getEnv("CLIENTFLOW_FILE_DIR", "data/files"),
		ChromiumPath: os.Getenv("CLIENTFLOW_CHROMIUM_PATH"),
	}

	ttl, err := getDuration("CLIENTFLOW_FILE_TTL", 24*time.Hour)
	if err != nil {
		return Config{}, err
	}
	cfg.FileTTL = ttl

	cfg.RateBurst, err = getInt("CLIENTFLOW_RATE_BURST", 20)
	if err != nil {
		return Config{}, err
	}
	cfg.RatePerSec, err = getInt("CLIENTFLOW_RATE_PER_SEC", 10)
	if err != nil {
		return Config{}, err
	}

	if cfg.Registry.BaseURL == "" {
		return Config{}, fmt.Errorf("CLIENTFLOW_REGISTRY_BASE_URL is required")
	}
	if cfg.Registry.TokenURL == "" {
		return Config{}, fmt.Errorf("CLIENTFLOW_REGISTRY_TOKEN_URL is required")
	}
	if cfg.Registry.ClientID == "" || cfg.Registry.ClientSecret == "" {
		return Config{}, fmt.Errorf("registry client credentials are required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
