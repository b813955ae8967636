package links

import (
	"context"
	"sort"

	"github.com/varoOP/animequotes/internal/domain"
)

// Rank orders provider statistics: preferred providers first in the given
// order, then the rest by link count descending. Ties keep first-seen order
// and every provider appears exactly once.
func Rank(stats []domain.ProviderStat, preferred []string) []domain.ProviderStat {
	byTag := make(map[string]domain.ProviderStat, len(stats))
	for _, s := range stats {
		if _, ok := byTag[s.Tag]; !ok {
			byTag[s.Tag] = s
		}
	}

	ranked := make([]domain.ProviderStat, 0, len(byTag))
	taken := make(map[string]bool, len(byTag))

	for _, tag := range preferred {
		s, ok := byTag[tag]
		if !ok || taken[tag] {
			continue
		}
		ranked = append(ranked, s)
		taken[tag] = true
	}

	var rest []domain.ProviderStat
	for _, s := range stats {
		if taken[s.Tag] {
			continue
		}
		rest = append(rest, byTag[s.Tag])
		taken[s.Tag] = true
	}

	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].LinkCount > rest[j].LinkCount
	})

	return append(ranked, rest...)
}

// TrackSelector picks the subtitle track of an episode page.
type TrackSelector interface {
	SubtitleTrack(ctx context.Context, episodeLink string) (label, link string)
}

// SelectProvider probes the trial link of each ranked provider and returns
// the first one that offers a usable subtitle track.
func SelectProvider(ctx context.Context, tracks TrackSelector, ranked []domain.ProviderStat) (domain.ProviderStat, bool) {
	for _, p := range ranked {
		if ctx.Err() != nil {
			break
		}

		label, link := tracks.SubtitleTrack(ctx, p.TrialLink)
		if label != "" && link != "" {
			return p, true
		}
	}

	return domain.ProviderStat{}, false
}
