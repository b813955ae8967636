package app

import (
	"context"
	"slices"

	"github.com/pkg/errors"

	"github.com/varoOP/animequotes/internal/database"
	"github.com/varoOP/animequotes/internal/domain"
	"github.com/varoOP/animequotes/internal/quotes"
	"github.com/varoOP/animequotes/internal/subtitle"
)

// CollectLinks resolves every configured listing page into a links document
// stored as page_<N>.json. With filter links configured a single document is
// produced.
func (a *App) CollectLinks(ctx context.Context) error {
	snapshot, err := a.statusRepo.GetAll(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to read anime status")
	}

	last := a.config.PageStart + a.config.PageCount - 1
	if len(a.config.FilterLinks) > 0 {
		last = a.config.PageStart
	}

	for page := a.config.PageStart; page <= last; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		log := a.log.With().Int("page", page).Logger()

		candidates, err := a.linksService.Candidates(ctx, page)
		if err != nil {
			return err
		}
		a.stats.PagesScanned++

		if len(candidates) == 0 {
			log.Warn().Msg("no anime found on page")
			continue
		}

		doc, res, err := a.linksService.Resolve(ctx, candidates, snapshot)
		if err != nil {
			return err
		}

		a.stats.AnimeResolved += res.Resolved
		a.stats.AnimeSkipped += res.Skipped
		a.stats.EpisodesResolved += res.Episodes

		if err := a.linksRepo.Store(ctx, a.paths.LinksPage(page), doc); err != nil {
			return err
		}

		if a.config.SaveLinksOnDB {
			n, err := a.referenceRepo.Append(ctx, a.runID, doc)
			if err != nil {
				return errors.Wrap(err, "failed to export links")
			}
			log.Debug().Int("rows", n).Msg("exported links")
		}

		log.Info().
			Int("resolved", res.Resolved).
			Int("skipped", res.Skipped).
			Int("episodes", res.Episodes).
			Msg("page done")
	}

	return nil
}

// DownloadSubtitles fetches the subtitle archives of the stored links
// documents.
func (a *App) DownloadSubtitles(ctx context.Context, match subtitle.Match) error {
	files, err := a.linksFiles(ctx)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		a.log.Warn().Str("dir", a.paths.LinksDir).Msg("no links documents to download")
		return nil
	}

	for _, path := range files {
		doc, err := a.linksRepo.Resolve(ctx, path)
		if err != nil {
			return err
		}

		res, err := a.subtitleService.Download(ctx, doc, match)
		if err != nil {
			return err
		}

		a.stats.FilesDownloaded += res.Downloaded
		a.stats.DownloadFailures += res.Failed

		a.log.Info().
			Str("file", path).
			Int("anime", res.Anime).
			Int("downloaded", res.Downloaded).
			Int("existing", res.Existing).
			Int("failed", res.Failed).
			Msg("links document downloaded")
	}

	return nil
}

// DecodeSubtitles decompresses downloaded archives and remembers which anime
// produced new files for the load stage.
func (a *App) DecodeSubtitles(ctx context.Context, match subtitle.Match) error {
	created, err := a.subtitleService.Decode(ctx, match)
	if err != nil {
		return err
	}

	a.decoded = created
	a.log.Info().Strs("anime", created).Msg("decoded subtitles")

	return nil
}

// LoadQuotes writes the quotes of every anime of the stored links documents.
// When this run decoded new subtitles only those anime are loaded.
func (a *App) LoadQuotes(ctx context.Context, match subtitle.Match) error {
	files, err := a.linksFiles(ctx)
	if err != nil {
		return err
	}

	for _, path := range files {
		doc, err := a.linksRepo.Resolve(ctx, path)
		if err != nil {
			return err
		}

		for _, key := range sortedKeys(doc) {
			if err := ctx.Err(); err != nil {
				return err
			}

			if match != nil && !match(key) {
				continue
			}
			if len(a.decoded) > 0 && !slices.Contains(a.decoded, key) {
				continue
			}

			if err := a.loadAnime(ctx, key, doc[key]); err != nil {
				return err
			}
		}
	}

	return nil
}

// loadAnime writes one anime through a dedicated connection. Rejected or
// unreadable anime are logged and skipped; storage failures are returned.
func (a *App) loadAnime(ctx context.Context, key string, record domain.AnimeRecord) error {
	log := a.log.With().Str("anime", key).Int("mal_id", record.Metadata.MalID).Logger()

	if len(record.Episodes) == 0 {
		log.Debug().Msg("no episodes to load")
		return nil
	}

	batch, err := a.quotesService.Build(ctx, key, record)
	if err != nil {
		if errors.Is(err, quotes.ErrTooManyLines) {
			a.stats.AnimeRejected++
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error().Err(err).Msg("could not build quotes, skipping")
		return nil
	}

	conn, err := a.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	repo := database.NewConnQuoteRepo(a.log, conn, a.config.InsertBatchSize)
	res, err := repo.Write(ctx, key, batch.Rows, domain.WriteReplace)
	if err != nil {
		log.Error().Err(err).Msg("failed to write quotes")
		return errors.Wrapf(err, "failed to write quotes of %s", key)
	}

	if res.Status == domain.WriteEmpty {
		log.Info().Msg("no quotes to write")
		return nil
	}

	episodes := distinctEpisodes(batch.Rows)
	status := domain.AnimeStatus{
		MalID:         record.Metadata.MalID,
		Key:           key,
		EpisodeAmount: episodes,
		Completed:     episodes >= record.Metadata.EpisodeCount,
	}
	if err := a.statusRepo.Upsert(ctx, status); err != nil {
		return errors.Wrapf(err, "failed to update status of %s", key)
	}

	a.stats.AnimeLoaded++
	a.stats.QuotesWritten += res.Rows

	log.Info().
		Int("rows", res.Rows).
		Int("episodes", episodes).
		Bool("completed", status.Completed).
		Msg("quotes written")

	return nil
}

func distinctEpisodes(rows []domain.QuoteRow) int {
	seen := make(map[int]struct{})
	for _, r := range rows {
		seen[r.Episode] = struct{}{}
	}
	return len(seen)
}
