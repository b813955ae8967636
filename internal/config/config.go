package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/varoOP/animequotes/internal/domain"
)

// SetDefaults registers a default for every configuration key so that
// environment variables are picked up for all of them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "https://animetosho.org/")
	v.SetDefault("listing_query", "?filter[0][t]=nyaa_class&filter[0][v]=trusted")
	v.SetDefault("desired_subs", "eng")
	v.SetDefault("subtitle_suffix", "ass.xz")
	v.SetDefault("preferred_providers", []string{"[SubsPlease]", "[Erai-raws]", "[HorribleSubs]"})
	v.SetDefault("max_release_size_gb", 16.0)

	v.SetDefault("page_start", 1)
	v.SetDefault("page_count", 1)
	v.SetDefault("page_limit", 50)
	v.SetDefault("filter_links", []string{})

	v.SetDefault("download_limit", 1)
	v.SetDefault("max_lines_per_episode", 600)
	v.SetDefault("member_cut", 0)
	v.SetDefault("member_map_path", "")
	v.SetDefault("provider_rules_path", "")

	v.SetDefault("fetch.max_retries", 5)
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.wait_time", 5*time.Second)
	v.SetDefault("fetch.requests_per_second", 0.0)
	v.SetDefault("fetch.random_delay", time.Duration(0))

	v.SetDefault("cache_dir", "")
	v.SetDefault("data_dir", "data")
	v.SetDefault("links_dir", "links")
	v.SetDefault("database_path", "animequotes.db")

	v.SetDefault("download_workers", 1)
	v.SetDefault("insert_batch_size", 500)
	v.SetDefault("clear_songs", true)
	v.SetDefault("save_links_on_db", true)

	v.SetDefault("discord_webhook_url", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
}

// Load builds the configuration from v (config file, environment and bound
// flags) and validates it.
func Load(v *viper.Viper) (*domain.Config, error) {
	cfg := &domain.Config{}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the values that would otherwise fail deep inside a run.
func Validate(cfg *domain.Config) error {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return fmt.Errorf("base_url is required")
	}

	if _, err := regexp.Compile("(?i)" + cfg.DesiredSubs); err != nil {
		return fmt.Errorf("invalid desired_subs pattern %q: %w", cfg.DesiredSubs, err)
	}

	positive := []struct {
		key   string
		value int
	}{
		{"page_start", cfg.PageStart},
		{"page_count", cfg.PageCount},
		{"page_limit", cfg.PageLimit},
		{"download_limit", cfg.DownloadLimit},
		{"max_lines_per_episode", cfg.MaxLinesPerEpisode},
		{"fetch.max_retries", cfg.Fetch.MaxRetries},
		{"download_workers", cfg.DownloadWorkers},
		{"insert_batch_size", cfg.InsertBatchSize},
	}
	for _, p := range positive {
		if p.value < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", p.key, p.value)
		}
	}

	if cfg.MemberCut < 0 {
		return fmt.Errorf("member_cut must not be negative, got %d", cfg.MemberCut)
	}
	if cfg.MaxReleaseSizeGB <= 0 {
		return fmt.Errorf("max_release_size_gb must be positive, got %v", cfg.MaxReleaseSizeGB)
	}
	if cfg.Fetch.RequestsPerSecond < 0 {
		return fmt.Errorf("fetch.requests_per_second must not be negative, got %v", cfg.Fetch.RequestsPerSecond)
	}
	if cfg.Fetch.Timeout < 0 || cfg.Fetch.WaitTime < 0 || cfg.Fetch.RandomDelay < 0 {
		return fmt.Errorf("fetch durations must not be negative")
	}

	return nil
}
