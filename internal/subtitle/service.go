// Package subtitle downloads subtitle archives, decodes them and parses the
// resulting ASS scripts.
package subtitle

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/varoOP/animequotes/internal/domain"
	"github.com/varoOP/animequotes/internal/fetch"
)

// Match reports whether an anime key takes part in a stage. A nil Match
// accepts every key.
type Match func(key string) bool

func (m Match) accepts(key string) bool {
	return m == nil || m(key)
}

// DownloadResult counts the files of a download pass.
type DownloadResult struct {
	Anime      int
	Downloaded int
	Existing   int
	Failed     int
}

type Service interface {
	Download(ctx context.Context, doc domain.LinksDocument, match Match) (DownloadResult, error)
	Decode(ctx context.Context, match Match) ([]string, error)
}

type service struct {
	log     zerolog.Logger
	paths   *domain.Paths
	fetcher fetch.Source
	workers int
}

func NewService(log zerolog.Logger, paths *domain.Paths, fetcher fetch.Source, workers int) Service {
	if workers < 1 {
		workers = 1
	}

	return &service{
		log:     log.With().Str("module", "subtitle").Logger(),
		paths:   paths,
		fetcher: fetcher,
		workers: workers,
	}
}

// Download fetches the subtitle archive of every numbered episode that is not
// on disk yet. Failed files are counted, not returned.
func (s *service) Download(ctx context.Context, doc domain.LinksDocument, match Match) (DownloadResult, error) {
	var res DownloadResult

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if !match.accepts(key) {
			continue
		}

		record := doc[key]
		if len(record.Episodes) == 0 {
			s.log.Info().Str("anime", key).Msg("no links available, skipping")
			continue
		}

		r, err := s.downloadAnime(ctx, key, record)
		if err != nil {
			return res, err
		}

		res.Anime++
		res.Downloaded += r.Downloaded
		res.Existing += r.Existing
		res.Failed += r.Failed
	}

	return res, nil
}

func (s *service) downloadAnime(ctx context.Context, key string, record domain.AnimeRecord) (DownloadResult, error) {
	log := s.log.With().Str("anime", key).Logger()

	for _, dir := range []string{s.paths.RawDir(key), s.paths.ProcessedDir(key)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return DownloadResult{}, errors.Wrapf(err, "failed to create %s", dir)
		}
	}

	log.Info().Int("episodes", len(record.Episodes)).Msg("downloading subtitles")

	var downloaded, existing, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, ep := range record.Episodes {
		if ep.EpisodeNumber == 0 || ep.SubLink == "" {
			log.Debug().Str("title", ep.LinkTitle).Msg("episode has no number or subtitle link")
			continue
		}

		path := s.paths.RawEpisode(key, ep.EpisodeNumber)
		if _, err := os.Stat(path); err == nil {
			existing.Add(1)
			continue
		}

		g.Go(func() error {
			resp, err := s.fetcher.Fetch(gctx, ep.SubLink)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn().Err(err).Int("episode", ep.EpisodeNumber).Msg("failed to download subtitle")
				failed.Add(1)
				return nil
			}

			if err := writeFile(path, resp.Body); err != nil {
				log.Warn().Err(err).Int("episode", ep.EpisodeNumber).Msg("failed to save subtitle")
				failed.Add(1)
				return nil
			}

			downloaded.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return DownloadResult{}, err
	}

	res := DownloadResult{
		Downloaded: int(downloaded.Load()),
		Existing:   int(existing.Load()),
		Failed:     int(failed.Load()),
	}

	ev := log.Info().Int("downloaded", res.Downloaded).Int("existing", res.Existing)
	if res.Failed > 0 {
		ev = ev.Int("failed", res.Failed)
	}
	ev.Msg("finished downloading subtitles")

	return res, nil
}

// Decode decompresses the raw archives of every anime folder into its
// processed folder. Folders whose processed files already cover the raw ones
// are skipped. It returns the keys that produced at least one file.
func (s *service) Decode(ctx context.Context, match Match) ([]string, error) {
	entries, err := os.ReadDir(s.paths.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to read %s", s.paths.DataDir)
	}

	var created []string
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return created, err
		}

		key := e.Name()
		if !e.IsDir() || strings.HasPrefix(key, ".") || !match.accepts(key) {
			continue
		}

		n, err := s.decodeAnime(key)
		if err != nil {
			return created, err
		}
		if n > 0 {
			created = append(created, key)
		}
	}

	return created, nil
}

func (s *service) decodeAnime(key string) (int, error) {
	log := s.log.With().Str("anime", key).Logger()

	raw, err := listFiles(s.paths.RawDir(key), ".xz")
	if err != nil {
		return 0, err
	}

	processed, err := listFiles(s.paths.ProcessedDir(key), ".ass")
	if err != nil {
		return 0, err
	}

	if len(raw) == 0 || len(processed) >= len(raw) {
		log.Debug().Msg("subtitles already decoded")
		return 0, nil
	}

	log.Info().Int("files", len(raw)).Msg("decoding subtitles")

	var success, fails int
	for _, name := range raw {
		src := filepath.Join(s.paths.RawDir(key), name)
		dst := filepath.Join(s.paths.ProcessedDir(key), strings.TrimSuffix(name, ".xz")+".ass")

		if err := DecompressFile(src, dst); err != nil {
			log.Warn().Err(err).Str("file", name).Msg("failed to decode subtitle")
			fails++
			continue
		}
		success++
	}

	if success > 0 {
		log.Info().Int("files", success).Msg("decoded subtitles")
	}
	if fails > 0 {
		log.Warn().Int("files", fails).Msg("some subtitles could not be decoded")
	}

	return success, nil
}
