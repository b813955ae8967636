package app

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/varoOP/animequotes/internal/database"
	"github.com/varoOP/animequotes/internal/domain"
	"github.com/varoOP/animequotes/internal/fetch"
	"github.com/varoOP/animequotes/internal/links"
	"github.com/varoOP/animequotes/internal/notification"
	"github.com/varoOP/animequotes/internal/quotes"
	"github.com/varoOP/animequotes/internal/repository"
	"github.com/varoOP/animequotes/internal/scrape"
	"github.com/varoOP/animequotes/internal/subtitle"
	"github.com/varoOP/animequotes/internal/titles"
)

// Stage selects the parts of the pipeline a run executes.
type Stage int

const (
	StageLinks Stage = 1 << iota
	StageDownload
	StageLoad

	StageAll = StageLinks | StageDownload | StageLoad
)

// App represents the main application with all dependencies initialized
type App struct {
	log    zerolog.Logger
	config *domain.Config
	paths  *domain.Paths
	db     *database.DB

	linksRepo     *repository.FileRepository
	statusRepo    domain.StatusRepo
	referenceRepo domain.ReferenceRepo

	linksService        links.Service
	subtitleService     subtitle.Service
	quotesService       quotes.Service
	notificationService domain.NotificationService

	runID   string
	stats   domain.Statistics
	decoded []string
}

// NewApp creates a new application instance with all dependencies initialized
func NewApp(log zerolog.Logger, cfg *domain.Config) (*App, error) {
	paths := domain.NewPaths(cfg.DataDir, cfg.LinksDir)

	getter, err := fetch.NewCollyGetter(fetch.CollyOptions{
		Timeout:     cfg.Fetch.Timeout,
		RandomDelay: cfg.Fetch.RandomDelay,
		CacheDir:    cfg.CacheDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create http transport: %w", err)
	}

	fetcher := fetch.New(log, getter, fetch.Options{
		MaxRetries:        cfg.Fetch.MaxRetries,
		WaitTime:          cfg.Fetch.WaitTime,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
	})

	scraper, err := scrape.NewService(log, cfg, fetcher)
	if err != nil {
		return nil, fmt.Errorf("failed to create scraper: %w", err)
	}

	registry := titles.NewRegistry()
	if cfg.ProviderRulesPath != "" {
		n, err := registry.LoadRules(cfg.ProviderRulesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load provider rules: %w", err)
		}
		log.Info().Int("rules", n).Str("path", cfg.ProviderRulesPath).Msg("loaded provider rules")
	}

	relevance, err := links.LoadMemberIndex(cfg.MemberMapPath, cfg.MemberCut)
	if err != nil {
		return nil, fmt.Errorf("failed to load member map: %w", err)
	}
	if relevance != nil {
		log.Info().Int("anime", relevance.Len()).Int("member_cut", cfg.MemberCut).Msg("loaded member map")
	}

	db, err := database.NewDB(cfg.DatabasePath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &App{
		log:                 log,
		config:              cfg,
		paths:               paths,
		db:                  db,
		linksRepo:           repository.NewFileRepository(log),
		statusRepo:          database.NewStatusRepo(log, db),
		referenceRepo:       database.NewReferenceRepo(log, db),
		linksService:        links.NewService(log, cfg, scraper, registry, relevance),
		subtitleService:     subtitle.NewService(log, paths, fetcher, cfg.DownloadWorkers),
		quotesService:       quotes.NewService(log, cfg, paths),
		notificationService: notification.NewService(log, cfg.DiscordWebhookURL),
	}, nil
}

// Close releases the database.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Run executes the selected stages in order. filter, when set, restricts the
// download and load stages to anime whose key fuzzily matches it.
func (a *App) Run(ctx context.Context, stages Stage, filter string) (err error) {
	a.runID = uuid.NewString()
	a.stats = domain.Statistics{RunID: a.runID}
	a.decoded = nil

	log := a.log.With().Str("run_id", a.runID).Logger()

	// Send error notification if run fails
	defer func() {
		if err != nil {
			if notifyErr := a.notificationService.SendError(context.WithoutCancel(ctx), err); notifyErr != nil {
				log.Warn().Err(notifyErr).Msg("Failed to send error notification")
			}
		}
	}()

	unlock, err := a.lock()
	if err != nil {
		return err
	}
	defer unlock()

	match := NewMatch(filter)

	if stages&StageLinks != 0 {
		if err := a.CollectLinks(ctx); err != nil {
			return fmt.Errorf("failed to collect links: %w", err)
		}
	}

	if stages&StageDownload != 0 {
		if err := a.DownloadSubtitles(ctx, match); err != nil {
			return fmt.Errorf("failed to download subtitles: %w", err)
		}
		if err := a.DecodeSubtitles(ctx, match); err != nil {
			return fmt.Errorf("failed to decode subtitles: %w", err)
		}
	}

	if stages&StageLoad != 0 {
		if err := a.LoadQuotes(ctx, match); err != nil {
			return fmt.Errorf("failed to load quotes: %w", err)
		}
	}

	stats := a.stats
	log.Info().
		Int("pages_scanned", stats.PagesScanned).
		Int("anime_resolved", stats.AnimeResolved).
		Int("anime_skipped", stats.AnimeSkipped).
		Int("episodes_resolved", stats.EpisodesResolved).
		Int("files_downloaded", stats.FilesDownloaded).
		Int("download_failures", stats.DownloadFailures).
		Int("anime_loaded", stats.AnimeLoaded).
		Int("anime_rejected", stats.AnimeRejected).
		Int("quotes_written", stats.QuotesWritten).
		Msg("=== FINAL STATISTICS ===")

	if notifyErr := a.notificationService.SendSuccess(ctx, stats); notifyErr != nil {
		log.Warn().Err(notifyErr).Msg("Failed to send success notification")
	}

	return nil
}

// Statistics returns the counters of the last run.
func (a *App) Statistics() domain.Statistics {
	return a.stats
}

func (a *App) lock() (func(), error) {
	if err := os.MkdirAll(a.paths.DataDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create %s", a.paths.DataDir)
	}

	fl := flock.New(a.paths.LockFile())
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another run holds %s", a.paths.LockFile())
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			a.log.Warn().Err(err).Msg("failed to release lock")
		}
	}, nil
}

// NewMatch builds the anime filter used by the download and load stages. The
// filter is normalized like an anime key and matched fuzzily; an empty filter
// accepts every anime.
func NewMatch(filter string) subtitle.Match {
	if strings.TrimSpace(filter) == "" {
		return nil
	}

	needle := titles.Identifier(filter)
	return func(key string) bool {
		return fuzzy.MatchNormalizedFold(needle, key)
	}
}

// linksFiles returns the stored links documents the download and load stages
// work on, capped by DownloadLimit.
func (a *App) linksFiles(ctx context.Context) ([]string, error) {
	files, err := a.linksRepo.List(ctx, a.paths.LinksDir)
	if err != nil {
		return nil, err
	}

	if limit := a.config.DownloadLimit; limit > 0 && len(files) > limit {
		files = files[:limit]
	}

	return files, nil
}

func sortedKeys(doc domain.LinksDocument) []string {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
