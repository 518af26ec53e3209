package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/quantmind-br/workshopsync/internal/domain"
	"github.com/quantmind-br/workshopsync/internal/hasher"
	"github.com/quantmind-br/workshopsync/internal/utils"
)

// Config represents the application configuration
type Config struct {
	Paths       PathsConfig      `mapstructure:"paths" yaml:"paths"`
	Catalog     CatalogConfig    `mapstructure:"catalog" yaml:"catalog"`
	Cache       CacheConfig      `mapstructure:"cache" yaml:"cache"`
	Rendering   RenderingConfig  `mapstructure:"rendering" yaml:"rendering"`
	Downloader  DownloaderConfig `mapstructure:"downloader" yaml:"downloader"`
	Ledger      LedgerConfig     `mapstructure:"ledger" yaml:"ledger"`
	Exclude     []string         `mapstructure:"exclude" yaml:"exclude"`
	ExcludeFile string           `mapstructure:"exclude_file" yaml:"exclude_file"`
	Logging     LoggingConfig    `mapstructure:"logging" yaml:"logging"`
}

// PathsConfig contains every file and directory the sync touches
type PathsConfig struct {
	Snapshot         string `mapstructure:"snapshot" yaml:"snapshot"`
	PublicSnapshot   string `mapstructure:"public_snapshot" yaml:"public_snapshot"`
	MetaSnapshot     string `mapstructure:"meta_snapshot" yaml:"meta_snapshot"`
	WorkshopDir      string `mapstructure:"workshop_dir" yaml:"workshop_dir"`
	PageCacheDir     string `mapstructure:"page_cache_dir" yaml:"page_cache_dir"`
	ResponseCacheDir string `mapstructure:"response_cache_dir" yaml:"response_cache_dir"`
}

// CatalogConfig describes the remote catalog
type CatalogConfig struct {
	AppID          int           `mapstructure:"app_id" yaml:"app_id"`
	BrowseURL      string        `mapstructure:"browse_url" yaml:"browse_url"`
	DetailsURL     string        `mapstructure:"details_url" yaml:"details_url"`
	WaitSelector   string        `mapstructure:"wait_selector" yaml:"wait_selector"`
	MaxPages       int           `mapstructure:"max_pages" yaml:"max_pages"`
	Timezone       string        `mapstructure:"timezone" yaml:"timezone"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries"`
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`
	// PageDelay spaces out listing page requests; zero disables it
	PageDelay      time.Duration `mapstructure:"page_delay" yaml:"page_delay"`
}

// BrowseStartURL returns the first listing page for the configured app
func (c CatalogConfig) BrowseStartURL() string {
	return strings.ReplaceAll(c.BrowseURL, "{app}", fmt.Sprint(c.AppID))
}

// Location returns the time zone used to parse catalog dates
func (c CatalogConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CacheConfig contains page and response cache settings
type CacheConfig struct {
	MaxAge               time.Duration `mapstructure:"max_age" yaml:"max_age"`
	ResponseTTL          time.Duration `mapstructure:"response_ttl" yaml:"response_ttl"`
	ResponseCacheEnabled bool          `mapstructure:"response_cache_enabled" yaml:"response_cache_enabled"`
}

// RenderingConfig contains browser settings for detail pages
type RenderingConfig struct {
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Headless    bool          `mapstructure:"headless" yaml:"headless"`
	BrowserPath string        `mapstructure:"browser_path" yaml:"browser_path"`
	Stealth     bool          `mapstructure:"stealth" yaml:"stealth"`
	MaxTabs     int           `mapstructure:"max_tabs" yaml:"max_tabs"`
}

// DownloaderConfig describes the external artifact downloader
type DownloaderConfig struct {
	Command string `mapstructure:"command" yaml:"command"`
	// Args may contain {app}, {id}, {user}, {password} and {dir}
	Args               []string      `mapstructure:"args" yaml:"args"`
	Accounts           []string      `mapstructure:"accounts" yaml:"accounts"`
	ArtifactExtensions []string      `mapstructure:"artifact_extensions" yaml:"artifact_extensions"`
	RateLimitMarker    string        `mapstructure:"rate_limit_marker" yaml:"rate_limit_marker"`
	Timeout            time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Retries            int           `mapstructure:"retries" yaml:"retries"`
}

// LedgerConfig contains item store settings
type LedgerConfig struct {
	HashAlgorithm   string `mapstructure:"hash_algorithm" yaml:"hash_algorithm"`
	CheckpointEvery int    `mapstructure:"checkpoint_every" yaml:"checkpoint_every"`
	MaxItemFailures int    `mapstructure:"max_item_failures" yaml:"max_item_failures"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Validate clamps out-of-range values back to defaults and rejects values
// that have no sensible default.
func (c *Config) Validate() error {
	if c.Paths.Snapshot == "" {
		return domain.NewValidationError("paths.snapshot", "is required")
	}
	if c.Paths.WorkshopDir == "" {
		c.Paths.WorkshopDir = DefaultWorkshopDir
	}
	if c.Paths.PageCacheDir == "" {
		c.Paths.PageCacheDir = PageCacheDir()
	}
	if c.Paths.ResponseCacheDir == "" {
		c.Paths.ResponseCacheDir = ResponseCacheDir()
	}

	if c.Catalog.AppID <= 0 {
		c.Catalog.AppID = DefaultAppID
	}
	if c.Catalog.BrowseURL == "" {
		c.Catalog.BrowseURL = DefaultBrowseURL
	}
	if !utils.IsHTTPURL(c.Catalog.BrowseURL) {
		return domain.NewValidationError("catalog.browse_url", "must be an http(s) URL")
	}
	if c.Catalog.DetailsURL == "" {
		c.Catalog.DetailsURL = DefaultDetailsURL
	}
	if !utils.IsHTTPURL(c.Catalog.DetailsURL) {
		return domain.NewValidationError("catalog.details_url", "must be an http(s) URL")
	}
	if !strings.Contains(c.Catalog.DetailsURL, "{id}") {
		return domain.NewValidationError("catalog.details_url", "must contain {id}")
	}
	if c.Catalog.WaitSelector == "" {
		c.Catalog.WaitSelector = DefaultWaitSelector
	}
	if c.Catalog.MaxPages < 0 {
		c.Catalog.MaxPages = 0
	}
	if c.Catalog.Timezone == "" {
		c.Catalog.Timezone = DefaultTimezone
	}
	if _, err := time.LoadLocation(c.Catalog.Timezone); err != nil {
		return domain.NewValidationError("catalog.timezone", err.Error())
	}
	if c.Catalog.RequestTimeout < time.Second {
		c.Catalog.RequestTimeout = DefaultRequestTimeout
	}
	if c.Catalog.PageDelay < 0 {
		c.Catalog.PageDelay = 0
	}
	if c.Catalog.MaxRetries < 0 {
		c.Catalog.MaxRetries = DefaultMaxRetries
	}

	if c.Cache.MaxAge < time.Second {
		c.Cache.MaxAge = DefaultCacheMaxAge
	}
	if c.Cache.ResponseTTL < time.Minute {
		c.Cache.ResponseTTL = DefaultResponseTTL
	}

	if c.Rendering.Timeout < time.Second {
		c.Rendering.Timeout = DefaultRenderTimeout
	}
	if c.Rendering.MaxTabs < 1 {
		c.Rendering.MaxTabs = DefaultMaxTabs
	}

	if c.Downloader.Command == "" {
		c.Downloader.Command = DefaultDownloaderCommand
	}
	if len(c.Downloader.Args) == 0 {
		c.Downloader.Args = append([]string(nil), DefaultDownloaderArgs...)
	}
	if len(c.Downloader.ArtifactExtensions) == 0 {
		c.Downloader.ArtifactExtensions = append([]string(nil), DefaultArtifactExtensions...)
	}
	if c.Downloader.RateLimitMarker == "" {
		c.Downloader.RateLimitMarker = DefaultRateLimitMarker
	}
	if c.Downloader.Timeout < time.Second {
		c.Downloader.Timeout = DefaultDownloaderTimeout
	}
	if c.Downloader.Retries < 0 {
		c.Downloader.Retries = 0
	}
	if _, err := ParseAccounts(c.Downloader.Accounts); err != nil {
		return err
	}

	if c.Ledger.HashAlgorithm == "" {
		c.Ledger.HashAlgorithm = hasher.DefaultAlgorithm
	}
	if !hasher.IsSupported(c.Ledger.HashAlgorithm) {
		return domain.NewValidationError("ledger.hash_algorithm",
			fmt.Sprintf("unsupported algorithm %q (want md5, sha256 or blake3)", c.Ledger.HashAlgorithm))
	}
	if c.Ledger.CheckpointEvery < 0 {
		c.Ledger.CheckpointEvery = 0
	}
	if c.Ledger.MaxItemFailures < 0 {
		c.Ledger.MaxItemFailures = 0
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format != utils.FormatPretty && c.Logging.Format != utils.FormatJSON {
		c.Logging.Format = DefaultLogFormat
	}
	return nil
}

// ParseAccounts parses "user:password" entries. The password may itself
// contain colons.
func ParseAccounts(entries []string) ([]domain.Account, error) {
	accounts := make([]domain.Account, 0, len(entries))
	for i, entry := range entries {
		user, password, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok || user == "" || password == "" {
			return nil, domain.NewValidationError(
				fmt.Sprintf("downloader.accounts[%d]", i),
				`must be "user:password"`)
		}
		accounts = append(accounts, domain.Account{User: user, Password: password})
	}
	return accounts, nil
}
