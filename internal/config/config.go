// Package config loads the client configuration from YAML with environment
// overrides.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DBPath           string `yaml:"db_path"`
	CacheDir         string `yaml:"cache_dir"`
	DecisionTreePath string `yaml:"decision_tree_path"`

	APIBaseURL string   `yaml:"api_base_url"`
	GroupIDs   []string `yaml:"group_ids"`

	MinCachedItems   int    `yaml:"min_cached_items"`
	PrefetchSchedule string `yaml:"prefetch_schedule"`

	ShowDiscussQuestion bool `yaml:"show_discuss_question"`

	ExternalHTTPTimeoutSeconds int `yaml:"external_http_timeout_seconds"`
}

func LoadConfig() Config {
	var cfg Config

	// Load from config.yaml if it exists
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

	// Env vars override YAML values
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.CacheDir, "CACHE_DIR")
	envOverride(&cfg.DecisionTreePath, "DECISION_TREE_PATH")
	envOverride(&cfg.APIBaseURL, "API_BASE_URL")
	envOverrideInt(&cfg.MinCachedItems, "MIN_CACHED_ITEMS")
	envOverride(&cfg.PrefetchSchedule, "PREFETCH_SCHEDULE")
	envOverrideBool(&cfg.ShowDiscussQuestion, "SHOW_DISCUSS_QUESTION")
	envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS")

	if ids := os.Getenv("GROUP_IDS"); ids != "" {
		cfg.GroupIDs = nil
		for _, id := range strings.Split(ids, ",") {
			id = strings.TrimSpace(id)
			if id != "" {
				cfg.GroupIDs = append(cfg.GroupIDs, id)
			}
		}
	}

	// Defaults
	if cfg.DBPath == "" {
		cfg.DBPath = "./zooclient.db"
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = "./cache"
	}
	if cfg.DecisionTreePath == "" {
		cfg.DecisionTreePath = "./decision_tree.yaml"
	}
	if cfg.MinCachedItems == 0 {
		cfg.MinCachedItems = 5
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = 30
	}

	// Validate required fields
	if cfg.APIBaseURL == "" {
		log.Fatalf("Required config 'api_base_url' is not set (via config.yaml or env var)")
	}
	if cfg.MinCachedItems < 1 {
		log.Fatalf("invalid min_cached_items '%d': must be >= 1", cfg.MinCachedItems)
	}
	if cfg.ExternalHTTPTimeoutSeconds < 1 {
		log.Fatalf("invalid external_http_timeout_seconds '%d': must be >= 1", cfg.ExternalHTTPTimeoutSeconds)
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

func envOverrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseBool(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}
