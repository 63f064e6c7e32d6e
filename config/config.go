package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"cratedig/models"
)

// Config is the full application configuration
type Config struct {
	Recommender Recommender `yaml:"recommender"`
	Database    Database    `yaml:"database"`
	HTTP        HTTPConfig  `yaml:"http"`
	YouTube     YouTube     `yaml:"youtube"`
	Redis       Redis       `yaml:"redis"`
	Log         Log         `yaml:"log"`
}

// Recommender holds the knobs consumed by the discovery and scoring pipeline
type Recommender struct {
	SearchCacheMaxAge    time.Duration         `yaml:"search_cache_max_age"`
	CollectionSyncMaxAge time.Duration         `yaml:"collection_sync_max_age"`
	QuotaLimits          map[models.Source]int `yaml:"quota_limits"`
	SearchUnitCost       int                   `yaml:"search_unit_cost"`
	FetchUnitCost        int                   `yaml:"fetch_unit_cost"`

	DefaultCollectionsPerSeed int `yaml:"default_collections_per_seed"`
	DefaultResultsToReturn    int `yaml:"default_results_to_return"`
	MaxCollectionsPerSeed     int `yaml:"max_collections_per_seed"`
	MaxResultsToReturn        int `yaml:"max_results_to_return"`
}

type Database struct {
	Type       string `yaml:"type"`
	Path       string `yaml:"path"`
	URL        string `yaml:"url"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Host       string `yaml:"host"`
	Port       string `yaml:"port"`
	Name       string `yaml:"name"`
	LogQueries bool   `yaml:"log_queries"`
}

type YouTube struct {
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	MetadataLookup    bool    `yaml:"metadata_lookup"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Log struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the built-in configuration
func Default() *Config {
	limits := make(map[models.Source]int, len(models.AllSources))
	for _, s := range models.AllSources {
		limits[s] = models.DefaultDailyLimit(s)
	}

	return &Config{
		Recommender: Recommender{
			SearchCacheMaxAge:         24 * time.Hour,
			CollectionSyncMaxAge:      7 * 24 * time.Hour,
			QuotaLimits:               limits,
			SearchUnitCost:            100,
			FetchUnitCost:             1,
			DefaultCollectionsPerSeed: 5,
			DefaultResultsToReturn:    20,
			MaxCollectionsPerSeed:     25,
			MaxResultsToReturn:        100,
		},
		Database: Database{
			Type: "sqlite",
			Path: "data/cratedig.db",
		},
		HTTP: defaultHTTPConfig(),
		YouTube: YouTube{
			BaseURL:           "https://www.googleapis.com/youtube/v3",
			RequestsPerSecond: 5,
			MetadataLookup:    true,
		},
		Log: Log{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file (CONFIG_FILE) and the environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	r := &c.Recommender

	if v := os.Getenv("SEARCH_CACHE_MAX_AGE_HOURS"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SEARCH_CACHE_MAX_AGE_HOURS %q: %w", v, err)
		}
		r.SearchCacheMaxAge = time.Duration(hours) * time.Hour
	}

	if v := os.Getenv("COLLECTION_SYNC_MAX_AGE_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid COLLECTION_SYNC_MAX_AGE_DAYS %q: %w", v, err)
		}
		r.CollectionSyncMaxAge = time.Duration(days) * 24 * time.Hour
	}

	for _, s := range models.AllSources {
		key := "QUOTA_LIMIT_" + strings.ToUpper(string(s))
		if v := os.Getenv(key); v != "" {
			limit, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
			if r.QuotaLimits == nil {
				r.QuotaLimits = make(map[models.Source]int)
			}
			r.QuotaLimits[s] = limit
		}
	}

	r.SearchUnitCost = getEnvInt("SEARCH_UNIT_COST", r.SearchUnitCost)
	r.FetchUnitCost = getEnvInt("FETCH_UNIT_COST", r.FetchUnitCost)
	r.DefaultCollectionsPerSeed = getEnvInt("DEFAULT_COLLECTIONS_PER_SEED", r.DefaultCollectionsPerSeed)
	r.DefaultResultsToReturn = getEnvInt("DEFAULT_RESULTS_TO_RETURN", r.DefaultResultsToReturn)

	d := &c.Database
	d.Type = getEnv("DB_TYPE", d.Type)
	d.Path = getEnv("DB_PATH", d.Path)
	d.URL = getEnv("DATABASE_URL", d.URL)
	d.User = getEnv("DB_USER", d.User)
	d.Password = getEnv("DB_PASS", d.Password)
	d.Host = getEnv("DB_HOST", d.Host)
	d.Port = getEnv("DB_PORT", d.Port)
	d.Name = getEnv("DB_NAME", d.Name)
	if v := os.Getenv("DB_LOG_QUERIES"); v != "" {
		d.LogQueries = v == "true" || v == "1"
	}

	c.HTTP.applyEnv()

	y := &c.YouTube
	y.APIKey = getEnv("YOUTUBE_API_KEY", y.APIKey)
	y.BaseURL = getEnv("YOUTUBE_API_BASE_URL", y.BaseURL)
	if v := os.Getenv("YOUTUBE_REQUESTS_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			y.RequestsPerSecond = f
		}
	}
	if v := os.Getenv("YOUTUBE_METADATA_LOOKUP"); v != "" {
		y.MetadataLookup = v == "true" || v == "1"
	}

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)

	l := &c.Log
	l.Level = getEnv("LOG_LEVEL", l.Level)
	l.File = getEnv("LOG_FILE", l.File)
	l.MaxSizeMB = getEnvInt("LOG_MAX_SIZE_MB", l.MaxSizeMB)
	l.MaxBackups = getEnvInt("LOG_MAX_BACKUPS", l.MaxBackups)
	l.MaxAgeDays = getEnvInt("LOG_MAX_AGE_DAYS", l.MaxAgeDays)
	if v := os.Getenv("LOG_COMPRESS"); v != "" {
		l.Compress = v == "true" || v == "1"
	}

	return nil
}

// Validate rejects configurations the pipeline cannot run with
func (c *Config) Validate() error {
	r := c.Recommender
	if r.SearchCacheMaxAge <= 0 {
		return fmt.Errorf("search cache max age must be positive")
	}
	if r.CollectionSyncMaxAge <= 0 {
		return fmt.Errorf("collection sync max age must be positive")
	}
	if r.SearchUnitCost <= 0 || r.FetchUnitCost <= 0 {
		return fmt.Errorf("unit costs must be positive")
	}
	for source, limit := range r.QuotaLimits {
		if !source.Valid() {
			return fmt.Errorf("quota limit configured for unknown source %q", source)
		}
		// zero is allowed and switches the source off
		if limit < 0 {
			return fmt.Errorf("quota limit for %s must not be negative", source)
		}
	}
	if c.Database.Type != "sqlite" && c.Database.Type != "mysql" {
		return fmt.Errorf("unsupported DB_TYPE %q", c.Database.Type)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}
