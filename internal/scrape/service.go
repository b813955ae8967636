// Package scrape reads the listing, detail and episode pages of the torrent
// index.
package scrape

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/varoOP/animequotes/internal/domain"
	"github.com/varoOP/animequotes/internal/fetch"
	"github.com/varoOP/animequotes/internal/titles"
)

// Fetcher is the part of fetch.Fetcher the scraper needs.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Response, error)
}

// Detail is what an anime detail page tells about the anime.
type Detail struct {
	// Providers in first-seen order.
	Providers    []domain.ProviderStat
	EpisodeCount int
	MalID        int
}

// Track is one subtitle attachment of an episode page.
type Track struct {
	Label string
	Link  string
}

type Service interface {
	Listing(ctx context.Context, page int) ([]domain.AnimeCandidate, error)
	FromLinks(ctx context.Context, links []string) ([]domain.AnimeCandidate, error)
	Detail(ctx context.Context, detailLink string) (*Detail, error)
	HarvestPage(ctx context.Context, detailLink, provider string, page int) ([]domain.EpisodeLink, int, error)
	Harvest(ctx context.Context, detailLink, provider string) ([]domain.EpisodeLink, error)
	SubtitleTrack(ctx context.Context, episodeLink string) (label, link string)
}

type service struct {
	log          zerolog.Logger
	fetcher      Fetcher
	baseURL      string
	listingQuery string
	maxSizeGB    float64
	desiredSubs  *regexp.Regexp
	suffix       string
}

func NewService(log zerolog.Logger, cfg *domain.Config, fetcher Fetcher) (Service, error) {
	desired, err := regexp.Compile("(?i)" + cfg.DesiredSubs)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid desired_subs pattern %q", cfg.DesiredSubs)
	}

	return &service{
		log:          log.With().Str("module", "scrape").Logger(),
		fetcher:      fetcher,
		baseURL:      cfg.BaseURL,
		listingQuery: cfg.ListingQuery,
		maxSizeGB:    cfg.MaxReleaseSizeGB,
		desiredSubs:  desired,
		suffix:       cfg.SubtitleSuffix,
	}, nil
}

func (s *service) document(ctx context.Context, url string) (*goquery.Document, error) {
	return fetch.Process(ctx, s.fetcher, url, parseDocument)
}

// Listing returns the finished anime and movies of a listing page. A page
// that cannot be fetched yields no candidates.
func (s *service) Listing(ctx context.Context, page int) ([]domain.AnimeCandidate, error) {
	url := fmt.Sprintf("%s?page=%d", s.baseURL, page)

	doc, err := s.document(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.Warn().Err(err).Int("page", page).Msg("could not fetch listing page")
		return []domain.AnimeCandidate{}, nil
	}

	candidates := ListingEntries(doc)
	s.log.Info().Int("page", page).Int("candidates", len(candidates)).Msg("processed listing page")

	return candidates, nil
}

// ListingEntries returns the finished or movie entries of a listing document.
func ListingEntries(doc *goquery.Document) []domain.AnimeCandidate {
	candidates := []domain.AnimeCandidate{}

	doc.Find("div.home_list_entry").Each(func(_ int, entry *goquery.Selection) {
		text := entry.Text()
		if !strings.Contains(text, "(finished)") && !strings.Contains(text, "(movie)") {
			return
		}

		href, ok := entry.Find("a[href]").First().Attr("href")
		if !ok {
			return
		}

		candidates = append(candidates, domain.AnimeCandidate{
			Title:      entry.Find("strong").First().Text(),
			DetailLink: href,
		})
	})

	return candidates
}

// FromLinks builds candidates straight from detail links, reading each title
// from the page header. Links whose page cannot be fetched are skipped.
func (s *service) FromLinks(ctx context.Context, links []string) ([]domain.AnimeCandidate, error) {
	candidates := make([]domain.AnimeCandidate, 0, len(links))

	for _, link := range links {
		doc, err := s.document(ctx, link)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Warn().Err(err).Str("link", link).Msg("could not fetch title page")
			continue
		}

		title := TitleFromPage(doc)
		if title == "" {
			s.log.Warn().Str("link", link).Msg("title page has no header")
			continue
		}

		candidates = append(candidates, domain.AnimeCandidate{Title: title, DetailLink: link})
	}

	return candidates, nil
}

// TitleFromPage reads the anime title from the header of a detail page.
func TitleFromPage(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("body > div > div > div > div > h2").First().Text())
}

// Detail fetches and parses an anime detail page.
func (s *service) Detail(ctx context.Context, detailLink string) (*Detail, error) {
	doc, err := s.document(ctx, detailLink+s.listingQuery)
	if err != nil {
		return nil, errors.Wrapf(err, "could not fetch detail page %s", detailLink)
	}

	return ParseDetail(doc, s.maxSizeGB), nil
}

// ParseDetail collects provider statistics over the usable releases of a
// detail page, plus the expected episode count and MAL id.
func ParseDetail(doc *goquery.Document, maxSizeGB float64) *Detail {
	d := &Detail{
		EpisodeCount: episodeCount(doc),
		MalID:        malID(doc),
	}

	index := make(map[string]int)
	doc.Find("div.home_list_entry").Each(func(_ int, entry *goquery.Selection) {
		r, ok := parseRelease(entry)
		if !ok || !r.usable(maxSizeGB) {
			return
		}

		provider := titles.Provider(r.Title)
		if provider == "" {
			return
		}

		if i, seen := index[provider]; seen {
			d.Providers[i].LinkCount++
			return
		}

		index[provider] = len(d.Providers)
		d.Providers = append(d.Providers, domain.ProviderStat{
			Tag:       provider,
			LinkCount: 1,
			TrialLink: r.URL,
		})
	})

	return d
}

// HarvestPage returns the usable releases of provider on one page of the
// detail listing, together with the number of raw entries on the page.
func (s *service) HarvestPage(ctx context.Context, detailLink, provider string, page int) ([]domain.EpisodeLink, int, error) {
	url := fmt.Sprintf("%s%s&page=%d", detailLink, s.listingQuery, page)

	doc, err := s.document(ctx, url)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "could not fetch page %d of %s", page, detailLink)
	}

	links, raw := ParseHarvestPage(doc, provider, s.maxSizeGB)
	return links, raw, nil
}

// ParseHarvestPage filters a detail listing page down to the usable releases
// of provider.
func ParseHarvestPage(doc *goquery.Document, provider string, maxSizeGB float64) ([]domain.EpisodeLink, int) {
	entries := doc.Find("div.home_list_entry")
	links := []domain.EpisodeLink{}

	entries.Each(func(_ int, entry *goquery.Selection) {
		r, ok := parseRelease(entry)
		if !ok || !r.usable(maxSizeGB) {
			return
		}

		if strings.Contains(r.Title, provider) {
			links = append(links, domain.EpisodeLink{LinkTitle: r.Title, LinkURL: r.URL})
		}
	})

	return links, entries.Length()
}

// Harvest walks the detail listing page by page until a page has no entries
// at all or cannot be fetched.
func (s *service) Harvest(ctx context.Context, detailLink, provider string) ([]domain.EpisodeLink, error) {
	var all []domain.EpisodeLink

	for page := 1; ; page++ {
		links, raw, err := s.HarvestPage(ctx, detailLink, provider, page)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Warn().Err(err).Int("page", page).Msg("stopping harvest")
			break
		}

		if raw == 0 {
			break
		}

		all = append(all, links...)
		s.log.Debug().Int("page", page).Int("links", len(links)).Str("provider", provider).Msg("harvested page")
	}

	return all, nil
}

// SubtitleTrack fetches an episode page and picks its first track whose label
// matches the desired language and whose link has the accepted suffix. It
// returns empty strings when there is none.
func (s *service) SubtitleTrack(ctx context.Context, episodeLink string) (string, string) {
	if episodeLink == "" {
		return "", ""
	}

	doc, err := s.document(ctx, episodeLink)
	if err != nil {
		s.log.Warn().Err(err).Str("link", episodeLink).Msg("could not fetch episode page")
		return "", ""
	}

	tracks := SubtitleTracks(doc)
	label, link := SelectTrack(tracks, s.desiredSubs, s.suffix)
	if label == "" {
		s.log.Debug().Str("link", episodeLink).Msg("no matching subtitle track")
	}

	return label, link
}

// SubtitleTracks returns the attachments of the first direct table of
// div#content whose last row is headed "Subtitles". Labels are unique; a
// repeated label keeps its first position and its last link.
func SubtitleTracks(doc *goquery.Document) []Track {
	var tracks []Track

	doc.Find("div#content").First().ChildrenFiltered("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		last := directRows(table).Last()
		if last.Length() == 0 || last.Find("th").First().Text() != "Subtitles" {
			return true
		}

		index := make(map[string]int)
		last.Find("td").First().Find("a").Each(func(_ int, a *goquery.Selection) {
			label := a.Text()
			href, _ := a.Attr("href")

			if i, ok := index[label]; ok {
				tracks[i].Link = href
				return
			}
			index[label] = len(tracks)
			tracks = append(tracks, Track{Label: label, Link: href})
		})

		return false
	})

	return tracks
}

// SelectTrack picks the first track matching lang whose link ends in suffix.
func SelectTrack(tracks []Track, lang *regexp.Regexp, suffix string) (string, string) {
	for _, t := range tracks {
		if lang.MatchString(t.Label) && strings.HasSuffix(t.Link, suffix) {
			return t.Label, t.Link
		}
	}
	return "", ""
}
