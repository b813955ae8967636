package links

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/varoOP/animequotes/internal/domain"
	"github.com/varoOP/animequotes/internal/titles"
)

// FilterByTitle drops links whose cleaned title was already seen. The first
// occurrence wins. A count that differs from episodeCount is only logged.
func FilterByTitle(log zerolog.Logger, reg *titles.Registry, links []domain.EpisodeLink, provider string, episodeCount int) []domain.EpisodeLink {
	seen := make(map[string]bool, len(links))
	filtered := make([]domain.EpisodeLink, 0, len(links))

	for _, l := range links {
		cleaned := reg.CleanTitle(l.LinkTitle, provider)
		if seen[cleaned] {
			continue
		}
		seen[cleaned] = true
		filtered = append(filtered, l)
	}

	if episodeCount > 0 && len(filtered) != episodeCount {
		log.Info().
			Int("links", len(filtered)).
			Int("episode_count", episodeCount).
			Int("excess", len(filtered)-episodeCount).
			Msg("link count differs from episode count")
	}

	log.Debug().Int("links", len(filtered)).Msg("links remaining after title filter")
	return filtered
}

// NumberEpisodes resolves the subtitle track and episode number of each link
// in order until episodeCount episodes are resolved. Links without a track,
// with a track already taken or with an episode number already taken are
// dropped. A link without a number counts as episode 1 when the anime has a
// single episode.
func NumberEpisodes(ctx context.Context, log zerolog.Logger, tracks TrackSelector, reg *titles.Registry, links []domain.EpisodeLink, provider string, episodeCount int) []domain.EpisodeLink {
	resolved := make([]domain.EpisodeLink, 0, episodeCount)
	usedLinks := make(map[string]bool)
	usedNumbers := make(map[int]bool)

	for i, l := range links {
		if (i+1)%10 == 0 || i+1 == len(links) {
			log.Debug().Int("progress", i+1).Int("total", len(links)).Msg("resolving subtitle tracks")
		}

		if len(resolved) == episodeCount {
			log.Info().Int("episode_count", episodeCount).Msg("all episodes resolved, ignoring remaining links")
			break
		}

		if ctx.Err() != nil {
			break
		}

		info, sub := tracks.SubtitleTrack(ctx, l.LinkURL)
		if sub == "" || usedLinks[sub] {
			continue
		}

		number, ok := titles.EpisodeNumber(l.LinkTitle)
		if ok && usedNumbers[number] {
			continue
		}

		if !ok {
			if episodeCount != 1 {
				log.Debug().Str("title", l.LinkTitle).Msg("no episode number found, skipping")
				continue
			}
			number = 1
		}

		l.SubInfo = info
		l.SubLink = sub
		l.EpisodeNumber = number
		l.Season = reg.Season(l.LinkTitle, provider)

		resolved = append(resolved, l)
		usedLinks[sub] = true
		usedNumbers[number] = true
	}

	return resolved
}

// ApplyIncremental discards the episode list when the stored progress already
// covers at least as many episodes, so stored counts never regress.
func ApplyIncremental(record domain.AnimeRecord, stored domain.AnimeStatus) (domain.AnimeRecord, bool) {
	if stored.EpisodeAmount >= len(record.Episodes) {
		record.Episodes = []domain.EpisodeLink{}
		return record, false
	}
	return record, true
}
