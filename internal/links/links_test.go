package links

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varoOP/animequotes/internal/domain"
	"github.com/varoOP/animequotes/internal/scrape"
	"github.com/varoOP/animequotes/internal/titles"
)

// fakeScraper serves canned scrape results. tracks maps episode links to
// subtitle links; the label is derived from the link.
type fakeScraper struct {
	listing  []domain.AnimeCandidate
	byLink   []domain.AnimeCandidate
	details  map[string]*scrape.Detail
	harvests map[string][]domain.EpisodeLink
	tracks   map[string]string
	probed   []string
}

func (f *fakeScraper) Listing(context.Context, int) ([]domain.AnimeCandidate, error) {
	return f.listing, nil
}

func (f *fakeScraper) FromLinks(context.Context, []string) ([]domain.AnimeCandidate, error) {
	return f.byLink, nil
}

func (f *fakeScraper) Detail(_ context.Context, link string) (*scrape.Detail, error) {
	d, ok := f.details[link]
	if !ok {
		return nil, fmt.Errorf("no detail for %s", link)
	}
	return d, nil
}

func (f *fakeScraper) HarvestPage(context.Context, string, string, int) ([]domain.EpisodeLink, int, error) {
	return nil, 0, nil
}

func (f *fakeScraper) Harvest(_ context.Context, link, provider string) ([]domain.EpisodeLink, error) {
	return f.harvests[link+provider], nil
}

func (f *fakeScraper) SubtitleTrack(_ context.Context, link string) (string, string) {
	f.probed = append(f.probed, link)
	sub, ok := f.tracks[link]
	if !ok {
		return "", ""
	}
	return "English [eng, ASS]", sub
}

func TestRank(t *testing.T) {
	stats := []domain.ProviderStat{
		{Tag: "[A]", LinkCount: 3},
		{Tag: "[Erai-raws]", LinkCount: 1},
		{Tag: "[B]", LinkCount: 7},
		{Tag: "[C]", LinkCount: 3},
		{Tag: "[SubsPlease]", LinkCount: 2},
	}
	preferred := []string{"[SubsPlease]", "[Erai-raws]", "[HorribleSubs]", "[SubsPlease]"}

	got := Rank(stats, preferred)

	var tags []string
	for _, s := range got {
		tags = append(tags, s.Tag)
	}
	assert.Equal(t, []string{"[SubsPlease]", "[Erai-raws]", "[B]", "[A]", "[C]"}, tags)
	assert.Len(t, got, len(stats))
}

func TestRank_Empty(t *testing.T) {
	assert.Empty(t, Rank(nil, []string{"[SubsPlease]"}))
}

func TestSelectProvider(t *testing.T) {
	f := &fakeScraper{tracks: map[string]string{"https://x/b": "https://x/b.ass.xz"}}
	ranked := []domain.ProviderStat{
		{Tag: "[A]", TrialLink: "https://x/a"},
		{Tag: "[B]", TrialLink: "https://x/b"},
		{Tag: "[C]", TrialLink: "https://x/c"},
	}

	p, ok := SelectProvider(context.Background(), f, ranked)
	require.True(t, ok)
	assert.Equal(t, "[B]", p.Tag)
	assert.Equal(t, []string{"https://x/a", "https://x/b"}, f.probed)

	_, ok = SelectProvider(context.Background(), &fakeScraper{}, ranked)
	assert.False(t, ok)
}

func TestFilterByTitle(t *testing.T) {
	reg := titles.NewRegistry()
	in := []domain.EpisodeLink{
		{LinkTitle: "[SubsPlease] Show - 01 (1080p) [AAAA0001].mkv", LinkURL: "1"},
		{LinkTitle: "[SubsPlease] Show - 01 (720p) [AAAA0002].mkv", LinkURL: "2"},
		{LinkTitle: "[SubsPlease] Show - 02 (1080p) [AAAA0003].mkv", LinkURL: "3"},
		{LinkTitle: "[SubsPlease] Show - 02 HEVC (1080p) [AAAA0004].mkv", LinkURL: "4"},
	}

	once := FilterByTitle(zerolog.Nop(), reg, in, "[SubsPlease]", 2)
	require.Len(t, once, 2)
	assert.Equal(t, "1", once[0].LinkURL)
	assert.Equal(t, "3", once[1].LinkURL)

	twice := FilterByTitle(zerolog.Nop(), reg, once, "[SubsPlease]", 2)
	assert.Equal(t, once, twice)
}

func TestNumberEpisodes(t *testing.T) {
	reg := titles.NewRegistry()
	links := []domain.EpisodeLink{
		{LinkTitle: "[SubsPlease] Show - 01 (1080p).mkv", LinkURL: "l1"},
		{LinkTitle: "[SubsPlease] Show - 02 (1080p).mkv", LinkURL: "l2"},
		{LinkTitle: "[SubsPlease] Show - 02 (720p).mkv", LinkURL: "l2b"},
		{LinkTitle: "[SubsPlease] Show - 03 (1080p).mkv", LinkURL: "l3"},
		{LinkTitle: "[SubsPlease] Show - 04 (1080p).mkv", LinkURL: "l4"},
		{LinkTitle: "[SubsPlease] Show - Special (1080p).mkv", LinkURL: "l5"},
		{LinkTitle: "[SubsPlease] Show - 05 (1080p).mkv", LinkURL: "l6"},
	}
	f := &fakeScraper{tracks: map[string]string{
		"l1":  "s1",
		"l2":  "s2",
		"l2b": "s2b",
		"l3":  "s2", // same attachment as episode 2
		"l5":  "s5",
		"l6":  "s6",
	}}

	got := NumberEpisodes(context.Background(), zerolog.Nop(), f, reg, links, "[SubsPlease]", 3)

	require.Len(t, got, 3)
	assert.Equal(t, 1, got[0].EpisodeNumber)
	assert.Equal(t, "s1", got[0].SubLink)
	assert.Equal(t, "English [eng, ASS]", got[0].SubInfo)
	assert.Equal(t, 2, got[1].EpisodeNumber)
	assert.Equal(t, 5, got[2].EpisodeNumber)
	assert.Equal(t, "s6", got[2].SubLink)
}

func TestNumberEpisodes_StopsAtEpisodeCount(t *testing.T) {
	reg := titles.NewRegistry()
	links := []domain.EpisodeLink{
		{LinkTitle: "[SubsPlease] Show - 01.mkv", LinkURL: "l1"},
		{LinkTitle: "[SubsPlease] Show - 02.mkv", LinkURL: "l2"},
		{LinkTitle: "[SubsPlease] Show - 03.mkv", LinkURL: "l3"},
	}
	f := &fakeScraper{tracks: map[string]string{"l1": "s1", "l2": "s2", "l3": "s3"}}

	got := NumberEpisodes(context.Background(), zerolog.Nop(), f, reg, links, "[SubsPlease]", 2)
	assert.Len(t, got, 2)
	assert.Equal(t, []string{"l1", "l2"}, f.probed)
}

func TestNumberEpisodes_SingleEpisodeDefaultsToOne(t *testing.T) {
	reg := titles.NewRegistry()
	links := []domain.EpisodeLink{
		{LinkTitle: "[SubsPlease] The Movie (1080p) [ABCD1234].mkv", LinkURL: "m"},
	}
	f := &fakeScraper{tracks: map[string]string{"m": "sm"}}

	got := NumberEpisodes(context.Background(), zerolog.Nop(), f, reg, links, "[SubsPlease]", 1)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].EpisodeNumber)
}

func TestNumberEpisodes_Season(t *testing.T) {
	reg := titles.NewRegistry()
	links := []domain.EpisodeLink{
		{LinkTitle: "[Erai-raws] Show Season 2 - 03 [1080p][Multiple Subtitle]", LinkURL: "l"},
	}
	f := &fakeScraper{tracks: map[string]string{"l": "s"}}

	got := NumberEpisodes(context.Background(), zerolog.Nop(), f, reg, links, "[Erai-raws]", 12)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].EpisodeNumber)
	assert.Equal(t, "2", got[0].Season)
}

func TestApplyIncremental(t *testing.T) {
	record := domain.AnimeRecord{Episodes: make([]domain.EpisodeLink, 10)}

	got, kept := ApplyIncremental(record, domain.AnimeStatus{EpisodeAmount: 12})
	assert.False(t, kept)
	assert.NotNil(t, got.Episodes)
	assert.Empty(t, got.Episodes)

	got, kept = ApplyIncremental(record, domain.AnimeStatus{EpisodeAmount: 10})
	assert.False(t, kept)
	assert.Empty(t, got.Episodes)

	got, kept = ApplyIncremental(record, domain.AnimeStatus{EpisodeAmount: 4})
	assert.True(t, kept)
	assert.Len(t, got.Episodes, 10)
}

func TestMemberIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "members.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"1": 5000, "2": "120", "3": 0}`), 0o644))

	idx, err := LoadMemberIndex(path, 100)
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())
	assert.True(t, idx.Relevant(1))
	assert.True(t, idx.Relevant(2))
	assert.False(t, idx.Relevant(3))
	assert.False(t, idx.Relevant(4))

	var none *MemberIndex
	assert.True(t, none.Relevant(4))

	idx, err = LoadMemberIndex("", 100)
	require.NoError(t, err)
	assert.Nil(t, idx)

	_, err = LoadMemberIndex(filepath.Join(t.TempDir(), "missing.json"), 0)
	assert.Error(t, err)
}

func showHarvest(n int) []domain.EpisodeLink {
	var out []domain.EpisodeLink
	for i := 1; i <= n; i++ {
		out = append(out, domain.EpisodeLink{
			LinkTitle: fmt.Sprintf("[SubsPlease] Show - %02d (1080p) [ABCD%04d].mkv", i, i),
			LinkURL:   fmt.Sprintf("https://x/ep%d", i),
		})
	}
	return out
}

func showTracks(n int) map[string]string {
	out := map[string]string{"https://x/trial": "https://x/trial.ass.xz"}
	for i := 1; i <= n; i++ {
		out[fmt.Sprintf("https://x/ep%d", i)] = fmt.Sprintf("https://x/sub%d.ass.xz", i)
	}
	return out
}

func newTestService(f *fakeScraper, cfg *domain.Config) Service {
	return NewService(zerolog.Nop(), cfg, f, titles.NewRegistry(), nil)
}

func TestService_Resolve(t *testing.T) {
	f := &fakeScraper{
		details: map[string]*scrape.Detail{
			"https://x/show": {
				EpisodeCount: 3,
				MalID:        42,
				Providers: []domain.ProviderStat{
					{Tag: "[Other]", LinkCount: 9, TrialLink: "https://x/none"},
					{Tag: "[SubsPlease]", LinkCount: 3, TrialLink: "https://x/trial"},
				},
			},
			"https://x/noid":  {EpisodeCount: 3, Providers: []domain.ProviderStat{{Tag: "[A]"}}},
			"https://x/nosub": {EpisodeCount: 3, MalID: 7, Providers: []domain.ProviderStat{{Tag: "[A]", TrialLink: "https://x/none"}}},
		},
		harvests: map[string][]domain.EpisodeLink{"https://x/show[SubsPlease]": showHarvest(3)},
		tracks:   showTracks(3),
	}
	cfg := &domain.Config{PreferredProviders: []string{"[SubsPlease]"}}

	candidates := []domain.AnimeCandidate{
		{Title: "Show: The Series", DetailLink: "https://x/show"},
		{Title: "No Id", DetailLink: "https://x/noid"},
		{Title: "No Sub", DetailLink: "https://x/nosub"},
		{Title: "Broken", DetailLink: "https://x/broken"},
	}

	doc, res, err := newTestService(f, cfg).Resolve(context.Background(), candidates, nil)
	require.NoError(t, err)
	assert.Equal(t, Result{Resolved: 1, Skipped: 3, Episodes: 3}, res)

	record, ok := doc["show___the_series"]
	require.True(t, ok)
	assert.Equal(t, domain.AnimeMetadata{
		EpisodeCount: 3,
		MalID:        42,
		OriginalName: "Show: The Series",
		Provider:     "[SubsPlease]",
	}, record.Metadata)
	require.Len(t, record.Episodes, 3)
	assert.Equal(t, "https://x/sub3.ass.xz", record.Episodes[2].SubLink)
}

func TestService_ResolveIncremental(t *testing.T) {
	f := &fakeScraper{
		details: map[string]*scrape.Detail{
			"https://x/show": {
				EpisodeCount: 12,
				MalID:        42,
				Providers:    []domain.ProviderStat{{Tag: "[SubsPlease]", LinkCount: 10, TrialLink: "https://x/trial"}},
			},
		},
		harvests: map[string][]domain.EpisodeLink{"https://x/show[SubsPlease]": showHarvest(10)},
		tracks:   showTracks(10),
	}
	candidates := []domain.AnimeCandidate{{Title: "Show", DetailLink: "https://x/show"}}
	svc := newTestService(f, &domain.Config{})

	doc, _, err := svc.Resolve(context.Background(), candidates, domain.StatusSnapshot{
		42: {MalID: 42, EpisodeAmount: 12},
	})
	require.NoError(t, err)
	require.Contains(t, doc, "show")
	assert.Empty(t, doc["show"].Episodes)

	doc, res, err := svc.Resolve(context.Background(), candidates, domain.StatusSnapshot{
		42: {MalID: 42, Completed: true, EpisodeAmount: 12},
	})
	require.NoError(t, err)
	assert.Empty(t, doc)
	assert.Equal(t, 1, res.Skipped)
}

func TestService_ResolveRelevance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "members.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"42": 10}`), 0o644))
	idx, err := LoadMemberIndex(path, 100)
	require.NoError(t, err)

	f := &fakeScraper{
		details: map[string]*scrape.Detail{
			"https://x/show": {
				EpisodeCount: 1,
				MalID:        42,
				Providers:    []domain.ProviderStat{{Tag: "[SubsPlease]", TrialLink: "https://x/trial"}},
			},
		},
		tracks: showTracks(0),
	}
	svc := NewService(zerolog.Nop(), &domain.Config{MemberCut: 100}, f, titles.NewRegistry(), idx)

	doc, res, err := svc.Resolve(context.Background(), []domain.AnimeCandidate{{Title: "Show", DetailLink: "https://x/show"}}, nil)
	require.NoError(t, err)
	assert.Empty(t, doc)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, f.probed)
}

func TestService_Candidates(t *testing.T) {
	f := &fakeScraper{
		listing: []domain.AnimeCandidate{{Title: "A"}, {Title: "B"}, {Title: "C"}},
		byLink:  []domain.AnimeCandidate{{Title: "Filtered"}},
	}

	got, err := newTestService(f, &domain.Config{PageLimit: 2}).Candidates(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []domain.AnimeCandidate{{Title: "A"}, {Title: "B"}}, got)

	got, err = newTestService(f, &domain.Config{FilterLinks: []string{"https://x/f"}}).Candidates(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []domain.AnimeCandidate{{Title: "Filtered"}}, got)
}
