package titles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"bracket provider", "[SubsPlease] Frieren - 05 (1080p) [ABCD1234].mkv", "[SubsPlease]"},
		{"hyphenated provider", "[Erai-raws] Show - 12 [1080p][Multiple Subtitle]", "[Erai-raws]"},
		{"crc is not a provider", "[ABCD1234] Show - 01.mkv", ""},
		{"batch range is not a provider", "[01-12] Show", ""},
		{"paren provider", "(Group) Show - 03.mkv", "(Group)"},
		{"no provider", "Show - 03 [1080p].mkv", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Provider(tt.title))
		})
	}
}

func TestEpisodeNumber(t *testing.T) {
	tests := []struct {
		name   string
		title  string
		want   int
		wantOK bool
	}{
		{"plain", "[SubsPlease] Frieren - 05 (1080p) [ABCD1234].mkv", 5, true},
		{"trailing number", "[Erai-raws] Show - 12 [1080p][Multiple Subtitle]", 12, true},
		{"three digits", "[Group] One Piece - 1071 [720p].mkv", 1071, true},
		{"version suffix", "[Group] Show - 07v2 [1080p].mkv", 7, true},
		{"season prefix skipped", "[Group] Show S02 - 04 [1080p].mkv", 4, true},
		{"season episode", "Show S01E09 1080p WEB.mkv", 9, true},
		{"resolution only", "[Group] Movie Title [1920x1080].mkv", 0, false},
		{"fractional", "[Group] Show - 12.5 [1080p].mkv", 0, false},
		{"file extension fallback", "[Group]Show 7.mkv", 7, true},
		{"no number", "[Group] Movie Title (BD 1080p).mkv", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EpisodeNumber(tt.title)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSeason(t *testing.T) {
	reg := NewRegistry()

	tests := []struct {
		name     string
		title    string
		provider string
		want     string
	}{
		{"season episode", "Show S02E05 1080p", "", "02"},
		{"bare season", "[Group] Show S3 - 05", "[Group]", "3"},
		{"erai season word", "[Erai-raws] Show Season 2 - 05 [1080p]", "[Erai-raws]", "2"},
		{"other provider has no fallback", "[Group] Show Season 2 - 05", "[Group]", ""},
		{"nothing", "[Group] Show - 05", "[Group]", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reg.Season(tt.title, tt.provider))
		})
	}
}

func TestSizeGB(t *testing.T) {
	got, err := SizeGB("12,884,901,888 bytes")
	require.NoError(t, err)
	assert.Equal(t, 12.0, got)

	got, err = SizeGB("Total size: 1,073,741,824 bytes")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	_, err = SizeGB("bytes")
	assert.Error(t, err)

	_, err = SizeGB("lots of bytes")
	assert.Error(t, err)
}

func TestIdentifier(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Sousou no Frieren", "sousou_no_frieren"},
		{"Nisekoi", "nisekoi"},
		{"Nisekoi:", "nisekoi__"},
		{"K-On!", "kon___"},
		{"86 Eighty-Six", "_86_eightysix"},
		{"Re:Zero", "re__zero"},
		{"Ｆｕｌｌ Ｗｉｄｔｈ", "full_width"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, Identifier(tt.title))
		})
	}
}

func TestRegistry_CleanTitle(t *testing.T) {
	reg := NewRegistry()

	a := reg.CleanTitle("[SubsPlease] Show - 05 (1080p) [ABCD1234].mkv", "[SubsPlease]")
	b := reg.CleanTitle("[SubsPlease] Show - 05 (720p) [1234ABCD].mkv", "[SubsPlease]")
	assert.Equal(t, a, b)

	c := reg.CleanTitle("[Erai-raws] Show - 05 [1080p][Multiple Subtitle][ENG]", "[Erai-raws]")
	d := reg.CleanTitle("[Erai-raws] Show - 05 [1080p] [HEVC][Multiple Subtitle]", "[Erai-raws]")
	assert.Equal(t, "[Erai-raws] Show - 05 ", c)
	assert.Equal(t, "[Erai-raws] Show - 05  ", d)
}

func TestRegistry_LoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	content := `providers:
  "[Judas]":
    cut_after: " [Uncensored]"
    season_keyword: "part"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	reg := NewRegistry()
	n, err := reg.LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, "[Judas] Show - 01", reg.CleanTitle("[Judas] Show - 01 [Uncensored]", "[Judas]"))
	assert.Equal(t, "2", reg.Season("[Judas] Show Part 2 - 01", "[Judas]"))

	_, err = reg.LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
