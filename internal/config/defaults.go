package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default values
const (
	// Paths defaults
	DefaultSnapshotPath       = "./build/workshop.json"
	DefaultPublicSnapshotPath = "./release/workshop.json"
	DefaultMetaSnapshotPath   = "./release/meta.json"
	DefaultWorkshopDir        = "./workshop"

	// Catalog defaults
	DefaultAppID          = 252950
	DefaultBrowseURL      = "https://steamcommunity.com/workshop/browse/?appid={app}&requiredtags%5B0%5D=Maps&actualsort=mostrecent&browsesort=mostrecent&p=1"
	DefaultDetailsURL     = "https://steamcommunity.com/sharedfiles/filedetails/?id={id}"
	DefaultWaitSelector   = "#rightContents"
	DefaultTimezone       = "UTC"
	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRetries     = 3
	DefaultPageDelay      = time.Second

	// Cache defaults
	DefaultCacheMaxAge          = 24 * time.Hour
	DefaultResponseTTL          = time.Hour
	DefaultResponseCacheEnabled = true

	// Rendering defaults
	DefaultRenderTimeout = 60 * time.Second
	DefaultHeadless      = true
	DefaultStealth       = true
	DefaultMaxTabs       = 1

	// Downloader defaults
	DefaultDownloaderCommand = "dotnet"
	DefaultRateLimitMarker   = "RateLimitExceeded"
	DefaultDownloaderTimeout = 30 * time.Minute
	DefaultDownloaderRetries = 1

	// Ledger defaults
	DefaultHashAlgorithm   = "md5"
	DefaultCheckpointEvery = 25
	DefaultMaxItemFailures = 0

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "pretty"
)

// DefaultDownloaderArgs invokes DepotDownloader for one published file
var DefaultDownloaderArgs = []string{
	"DepotDownloader.dll",
	"-app", "{app}",
	"-pubfile", "{id}",
	"-user", "{user}",
	"-password", "{password}",
	"-dir", "{dir}",
}

// DefaultArtifactExtensions are the map package extensions
var DefaultArtifactExtensions = []string{".udk", ".upk"}

// DefaultExclude lists items that are never synced
var DefaultExclude = []string{
	"1567601517",
	"817001158",
	"834478221",
	"2070733495",
	"941618511",
}

// ConfigDir returns the config directory path
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".workshopsync"
	}
	return filepath.Join(home, ".workshopsync")
}

// PageCacheDir returns the default page cache root
func PageCacheDir() string {
	return filepath.Join(ConfigDir(), "pages")
}

// ResponseCacheDir returns the default badger directory
func ResponseCacheDir() string {
	return filepath.Join(ConfigDir(), "responses")
}

// ConfigFilePath returns the config file path
func ConfigFilePath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Snapshot:         DefaultSnapshotPath,
			PublicSnapshot:   DefaultPublicSnapshotPath,
			MetaSnapshot:     DefaultMetaSnapshotPath,
			WorkshopDir:      DefaultWorkshopDir,
			PageCacheDir:     PageCacheDir(),
			ResponseCacheDir: ResponseCacheDir(),
		},
		Catalog: CatalogConfig{
			AppID:          DefaultAppID,
			BrowseURL:      DefaultBrowseURL,
			DetailsURL:     DefaultDetailsURL,
			WaitSelector:   DefaultWaitSelector,
			Timezone:       DefaultTimezone,
			RequestTimeout: DefaultRequestTimeout,
			MaxRetries:     DefaultMaxRetries,
			PageDelay:      DefaultPageDelay,
		},
		Cache: CacheConfig{
			MaxAge:               DefaultCacheMaxAge,
			ResponseTTL:          DefaultResponseTTL,
			ResponseCacheEnabled: DefaultResponseCacheEnabled,
		},
		Rendering: RenderingConfig{
			Timeout:  DefaultRenderTimeout,
			Headless: DefaultHeadless,
			Stealth:  DefaultStealth,
			MaxTabs:  DefaultMaxTabs,
		},
		Downloader: DownloaderConfig{
			Command:            DefaultDownloaderCommand,
			Args:               append([]string(nil), DefaultDownloaderArgs...),
			ArtifactExtensions: append([]string(nil), DefaultArtifactExtensions...),
			RateLimitMarker:    DefaultRateLimitMarker,
			Timeout:            DefaultDownloaderTimeout,
			Retries:            DefaultDownloaderRetries,
		},
		Ledger: LedgerConfig{
			HashAlgorithm:   DefaultHashAlgorithm,
			CheckpointEvery: DefaultCheckpointEvery,
			MaxItemFailures: DefaultMaxItemFailures,
		},
		Exclude: append([]string(nil), DefaultExclude...),
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
