package domain

import "time"

// Config carries every externally supplied knob of a run. It is built once by
// the config package and passed by value into the services.
type Config struct {
	// BaseURL is the listing root; pages are requested as BaseURL?page=N.
	BaseURL string `mapstructure:"base_url"`
	// ListingQuery is appended to every anime detail link before requesting it.
	ListingQuery string `mapstructure:"listing_query"`
	// DesiredSubs is a case-insensitive regular expression matched against
	// subtitle track labels.
	DesiredSubs string `mapstructure:"desired_subs"`
	// SubtitleSuffix is the suffix a track link must carry to be accepted.
	SubtitleSuffix string `mapstructure:"subtitle_suffix"`
	// PreferredProviders are ranked first, in this order, when present.
	PreferredProviders []string `mapstructure:"preferred_providers"`
	MaxReleaseSizeGB   float64  `mapstructure:"max_release_size_gb"`

	PageStart   int      `mapstructure:"page_start"`
	PageCount   int      `mapstructure:"page_count"`
	PageLimit   int      `mapstructure:"page_limit"`
	FilterLinks []string `mapstructure:"filter_links"`

	DownloadLimit      int `mapstructure:"download_limit"`
	MaxLinesPerEpisode int `mapstructure:"max_lines_per_episode"`
	MemberCut          int `mapstructure:"member_cut"`

	MemberMapPath     string `mapstructure:"member_map_path"`
	ProviderRulesPath string `mapstructure:"provider_rules_path"`

	Fetch FetchConfig `mapstructure:"fetch"`

	CacheDir     string `mapstructure:"cache_dir"`
	DataDir      string `mapstructure:"data_dir"`
	LinksDir     string `mapstructure:"links_dir"`
	DatabasePath string `mapstructure:"database_path"`

	DownloadWorkers int  `mapstructure:"download_workers"`
	InsertBatchSize int  `mapstructure:"insert_batch_size"`
	ClearSongs      bool `mapstructure:"clear_songs"`
	SaveLinksOnDB   bool `mapstructure:"save_links_on_db"`

	DiscordWebhookURL string `mapstructure:"discord_webhook_url"`
	LogLevel          string `mapstructure:"log_level"`
	LogFile           string `mapstructure:"log_file"`
}

// FetchConfig tunes the resilient fetcher.
type FetchConfig struct {
	MaxRetries        int           `mapstructure:"max_retries"`
	Timeout           time.Duration `mapstructure:"timeout"`
	WaitTime          time.Duration `mapstructure:"wait_time"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	RandomDelay       time.Duration `mapstructure:"random_delay"`
}
