// Package links resolves listing candidates into links documents: provider
// selection, episode harvesting, deduplication, numbering and the incremental
// decision against stored progress.
package links

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/varoOP/animequotes/internal/domain"
	"github.com/varoOP/animequotes/internal/scrape"
	"github.com/varoOP/animequotes/internal/titles"
)

// Result summarises one resolution pass.
type Result struct {
	Resolved int
	Skipped  int
	Episodes int
}

type Service interface {
	Candidates(ctx context.Context, page int) ([]domain.AnimeCandidate, error)
	Resolve(ctx context.Context, candidates []domain.AnimeCandidate, snapshot domain.StatusSnapshot) (domain.LinksDocument, Result, error)
}

type service struct {
	log       zerolog.Logger
	cfg       *domain.Config
	scraper   scrape.Service
	registry  *titles.Registry
	relevance *MemberIndex
}

func NewService(log zerolog.Logger, cfg *domain.Config, scraper scrape.Service, registry *titles.Registry, relevance *MemberIndex) Service {
	return &service{
		log:       log.With().Str("module", "links").Logger(),
		cfg:       cfg,
		scraper:   scraper,
		registry:  registry,
		relevance: relevance,
	}
}

// Candidates returns the anime to resolve for a page. Configured filter links
// replace the page scan. At most PageLimit candidates are returned.
func (s *service) Candidates(ctx context.Context, page int) ([]domain.AnimeCandidate, error) {
	var (
		candidates []domain.AnimeCandidate
		err        error
	)

	if len(s.cfg.FilterLinks) > 0 {
		s.log.Info().Strs("links", s.cfg.FilterLinks).Msg("processing filter links only")
		candidates, err = s.scraper.FromLinks(ctx, s.cfg.FilterLinks)
	} else {
		candidates, err = s.scraper.Listing(ctx, page)
	}
	if err != nil {
		return nil, err
	}

	if s.cfg.PageLimit > 0 && len(candidates) > s.cfg.PageLimit {
		s.log.Info().Int("page", page).Int("limit", s.cfg.PageLimit).Int("candidates", len(candidates)).Msg("limiting candidates")
		candidates = candidates[:s.cfg.PageLimit]
	}

	return candidates, nil
}

// Resolve builds the links document of the candidates. Anime that cannot be
// resolved are logged and left out.
func (s *service) Resolve(ctx context.Context, candidates []domain.AnimeCandidate, snapshot domain.StatusSnapshot) (domain.LinksDocument, Result, error) {
	doc := domain.LinksDocument{}
	var res Result

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return doc, res, err
		}

		key, record, ok := s.resolveOne(ctx, c, snapshot)
		if !ok {
			res.Skipped++
			continue
		}

		if _, dup := doc[key]; dup {
			s.log.Warn().Str("key", key).Str("title", c.Title).Msg("identifier already used on this page, replacing")
		}

		doc[key] = record
		res.Resolved++
		res.Episodes += len(record.Episodes)
	}

	return doc, res, nil
}

func (s *service) resolveOne(ctx context.Context, c domain.AnimeCandidate, snapshot domain.StatusSnapshot) (string, domain.AnimeRecord, bool) {
	log := s.log.With().Str("title", c.Title).Logger()
	log.Info().Str("link", c.DetailLink).Msg("processing anime")

	detail, err := s.scraper.Detail(ctx, c.DetailLink)
	if err != nil {
		log.Warn().Err(err).Msg("could not read detail page, skipping")
		return "", domain.AnimeRecord{}, false
	}

	if snapshot.Lookup(detail.MalID).Completed {
		log.Info().Int("mal_id", detail.MalID).Msg("anime already completed, skipping")
		return "", domain.AnimeRecord{}, false
	}

	if detail.EpisodeCount == 0 || detail.MalID == 0 {
		log.Info().Int("episode_count", detail.EpisodeCount).Int("mal_id", detail.MalID).Msg("missing episode count or mal id, skipping")
		return "", domain.AnimeRecord{}, false
	}

	if len(detail.Providers) == 0 {
		log.Warn().Msg("no usable provider, skipping")
		return "", domain.AnimeRecord{}, false
	}

	if !s.relevance.Relevant(detail.MalID) {
		log.Info().Int("mal_id", detail.MalID).Int("member_cut", s.cfg.MemberCut).Msg("not enough members, skipping")
		return "", domain.AnimeRecord{}, false
	}

	ranked := Rank(detail.Providers, s.cfg.PreferredProviders)
	provider, ok := SelectProvider(ctx, s.scraper, ranked)
	if !ok {
		log.Warn().Msg("no provider with subtitles, skipping")
		return "", domain.AnimeRecord{}, false
	}
	log.Info().Str("provider", provider.Tag).Msg("selected provider")

	key := titles.Identifier(c.Title)
	if key == "" {
		log.Warn().Msg("title has no usable identifier, skipping")
		return "", domain.AnimeRecord{}, false
	}

	harvested, err := s.scraper.Harvest(ctx, c.DetailLink, provider.Tag)
	if err != nil {
		log.Warn().Err(err).Msg("harvest failed, skipping")
		return "", domain.AnimeRecord{}, false
	}

	filtered := FilterByTitle(log, s.registry, harvested, provider.Tag, detail.EpisodeCount)
	if len(filtered) == 0 {
		log.Info().Msg("no subtitles available")
	}

	record := domain.AnimeRecord{
		Metadata: domain.AnimeMetadata{
			EpisodeCount: detail.EpisodeCount,
			MalID:        detail.MalID,
			OriginalName: c.Title,
			Provider:     provider.Tag,
		},
		Episodes: NumberEpisodes(ctx, log, s.scraper, s.registry, filtered, provider.Tag, detail.EpisodeCount),
	}

	stored := snapshot.Lookup(detail.MalID)
	record, kept := ApplyIncremental(record, stored)
	if !kept && stored.EpisodeAmount > 0 {
		log.Info().Int("stored", stored.EpisodeAmount).Msg("stored episodes cover this run, episode list discarded")
	}

	log.Info().Str("key", key).Int("episodes", len(record.Episodes)).Msg("resolved anime")
	return key, record, true
}
