package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of configuration environment variables
const EnvPrefix = "WORKSHOPSYNC"

// Load loads configuration from .env, file, environment, and defaults.
// Uses the global viper instance to access CLI flag bindings.
func Load() (*Config, error) {
	cfg, err := load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(v *viper.Viper) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	setDefaults(v)

	// An explicit file set with SetConfigFile takes precedence
	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(ConfigDir())
		v.AddConfigPath(".")
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	// Environment variables (WORKSHOPSYNC_*)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.ExcludeFile != "" {
		ids, err := LoadExclusions(cfg.ExcludeFile)
		if err != nil {
			return nil, err
		}
		cfg.Exclude = MergeExclusions(cfg.Exclude, ids)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	// Paths defaults
	v.SetDefault("paths.snapshot", DefaultSnapshotPath)
	v.SetDefault("paths.public_snapshot", DefaultPublicSnapshotPath)
	v.SetDefault("paths.meta_snapshot", DefaultMetaSnapshotPath)
	v.SetDefault("paths.workshop_dir", DefaultWorkshopDir)
	v.SetDefault("paths.page_cache_dir", PageCacheDir())
	v.SetDefault("paths.response_cache_dir", ResponseCacheDir())

	// Catalog defaults
	v.SetDefault("catalog.app_id", DefaultAppID)
	v.SetDefault("catalog.browse_url", DefaultBrowseURL)
	v.SetDefault("catalog.details_url", DefaultDetailsURL)
	v.SetDefault("catalog.wait_selector", DefaultWaitSelector)
	v.SetDefault("catalog.max_pages", 0)
	v.SetDefault("catalog.timezone", DefaultTimezone)
	v.SetDefault("catalog.request_timeout", DefaultRequestTimeout)
	v.SetDefault("catalog.max_retries", DefaultMaxRetries)
	v.SetDefault("catalog.user_agent", "")
	v.SetDefault("catalog.page_delay", DefaultPageDelay)

	// Cache defaults
	v.SetDefault("cache.max_age", DefaultCacheMaxAge)
	v.SetDefault("cache.response_ttl", DefaultResponseTTL)
	v.SetDefault("cache.response_cache_enabled", DefaultResponseCacheEnabled)

	// Rendering defaults
	v.SetDefault("rendering.timeout", DefaultRenderTimeout)
	v.SetDefault("rendering.headless", DefaultHeadless)
	v.SetDefault("rendering.browser_path", "")
	v.SetDefault("rendering.stealth", DefaultStealth)
	v.SetDefault("rendering.max_tabs", DefaultMaxTabs)

	// Downloader defaults
	v.SetDefault("downloader.command", DefaultDownloaderCommand)
	v.SetDefault("downloader.args", DefaultDownloaderArgs)
	v.SetDefault("downloader.accounts", []string{})
	v.SetDefault("downloader.artifact_extensions", DefaultArtifactExtensions)
	v.SetDefault("downloader.rate_limit_marker", DefaultRateLimitMarker)
	v.SetDefault("downloader.timeout", DefaultDownloaderTimeout)
	v.SetDefault("downloader.retries", DefaultDownloaderRetries)

	// Ledger defaults
	v.SetDefault("ledger.hash_algorithm", DefaultHashAlgorithm)
	v.SetDefault("ledger.checkpoint_every", DefaultCheckpointEvery)
	v.SetDefault("ledger.max_item_failures", DefaultMaxItemFailures)

	// Exclusion defaults
	v.SetDefault("exclude", DefaultExclude)
	v.SetDefault("exclude_file", "")

	// Logging defaults
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)
}
