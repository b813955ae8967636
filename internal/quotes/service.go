package quotes

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/varoOP/animequotes/internal/domain"
	"github.com/varoOP/animequotes/internal/subtitle"
)

// ErrTooManyLines rejects an anime whose subtitles have more lines than the
// per-episode limit allows.
var ErrTooManyLines = errors.New("too many lines")

// Batch is the merged quote rows of one anime.
type Batch struct {
	Rows     []domain.QuoteRow
	Episodes int
	Unknown  int
}

type Service interface {
	Build(ctx context.Context, key string, record domain.AnimeRecord) (*Batch, error)
}

type service struct {
	log                zerolog.Logger
	paths              *domain.Paths
	maxLinesPerEpisode int
	clearSongs         bool
}

func NewService(log zerolog.Logger, cfg *domain.Config, paths *domain.Paths) Service {
	return &service{
		log:                log.With().Str("module", "quotes").Logger(),
		paths:              paths,
		maxLinesPerEpisode: cfg.MaxLinesPerEpisode,
		clearSongs:         cfg.ClearSongs,
	}
}

// Build reads the decoded subtitle of every numbered episode, extracts and
// merges the quote rows. Missing files are skipped.
func (s *service) Build(ctx context.Context, key string, record domain.AnimeRecord) (*Batch, error) {
	log := s.log.With().Str("anime", key).Logger()
	batch := &Batch{}

	for _, ep := range record.Episodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if ep.EpisodeNumber == 0 {
			continue
		}

		path := s.paths.ProcessedEpisode(key, ep.EpisodeNumber)
		events, err := readEvents(path)
		if err != nil {
			if os.IsNotExist(errors.Cause(err)) {
				log.Debug().Int("episode", ep.EpisodeNumber).Msg("no decoded subtitle for episode")
				continue
			}
			return nil, errors.Wrapf(err, "failed to read episode %d", ep.EpisodeNumber)
		}

		rows, unknown := Extract(events, record.Metadata.MalID, ep.EpisodeNumber)
		batch.Rows = append(batch.Rows, rows...)
		batch.Unknown += unknown
		batch.Episodes++
	}

	episodeCount := record.Metadata.EpisodeCount
	if ExceedsThreshold(len(batch.Rows), episodeCount, s.maxLinesPerEpisode) {
		log.Warn().
			Int("rows", len(batch.Rows)).
			Int("limit", episodeCount*s.maxLinesPerEpisode).
			Msg("anime exceeded the line threshold")
		return nil, errors.Wrapf(ErrTooManyLines, "%s has %d rows", key, len(batch.Rows))
	}

	log.Info().
		Int("rows", len(batch.Rows)).
		Int("with_speaker", len(batch.Rows)-batch.Unknown).
		Msg("extracted quotes")

	batch.Rows = Merge(batch.Rows)
	if s.clearSongs {
		batch.Rows = ConsolidateSongs(batch.Rows)
	}

	return batch, nil
}

func readEvents(path string) ([]subtitle.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	return subtitle.ParseASS(f)
}
