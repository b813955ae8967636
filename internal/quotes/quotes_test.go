package quotes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varoOP/animequotes/internal/domain"
	"github.com/varoOP/animequotes/internal/subtitle"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func row(name string, episode, start, end int, text string) domain.QuoteRow {
	return domain.QuoteRow{MalID: 1, Episode: episode, SpeakerName: name, Text: text, StartTime: ms(start), EndTime: ms(end)}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{\i1}Hello{\i0}`, "Hello"},
		{`Hello,\Nworld`, "Hello, world"},
		{`a\nb\hc`, "a b c"},
		{`  spaced   out  `, "spaced out"},
		{`{\pos(10,10)}`, ""},
		{`{\an8}Top \N {\b1}line`, "Top line"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}

func TestExtract(t *testing.T) {
	events := []subtitle.Event{
		{Style: "Default", Name: "Frieren", Text: "Let's go.", Start: ms(0), End: ms(1000)},
		{Style: "Signs", Name: "", Text: "TOWN", Start: ms(0), End: ms(1000)},
		{Style: "Default", Name: "Sign", Text: "INN", Start: ms(0), End: ms(1000)},
		{Style: "Default", Name: "Fern", Text: "flash", Start: ms(500), End: ms(500)},
		{Style: "Default", Name: "Fern", Text: `{\i1}{\i0}`, Start: ms(0), End: ms(1000)},
		{Style: "Default", Name: "", Text: "Who said this?", Start: ms(1000), End: ms(2000)},
		{Style: "Default", Name: "NTP", Text: "Narration", Start: ms(2000), End: ms(3000)},
	}

	rows, unknown := Extract(events, 52991, 3)
	assert.Equal(t, 2, unknown)
	require.Len(t, rows, 3)

	assert.Equal(t, domain.QuoteRow{
		MalID: 52991, Episode: 3, SpeakerName: "Frieren", Text: "Let's go.", StartTime: 0, EndTime: ms(1000),
	}, rows[0])
	assert.Equal(t, domain.UnknownSpeaker, rows[1].SpeakerName)
	assert.Equal(t, domain.UnknownSpeaker, rows[2].SpeakerName)
}

func TestExceedsThreshold(t *testing.T) {
	assert.True(t, ExceedsThreshold(1201, 2, 600))
	assert.False(t, ExceedsThreshold(1200, 2, 600))
	// single episode anime are never rejected
	assert.False(t, ExceedsThreshold(5000, 1, 600))
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name string
		in   []domain.QuoteRow
		want []domain.QuoteRow
	}{
		{
			name: "contiguous lines of the same speaker",
			in:   []domain.QuoteRow{row("A", 1, 10, 20, "hi"), row("A", 1, 20, 30, "there")},
			want: []domain.QuoteRow{row("A", 1, 10, 30, "hi there")},
		},
		{
			name: "unknown speakers are never merged",
			in:   []domain.QuoteRow{row("Unknown", 1, 10, 20, "hi"), row("Unknown", 1, 20, 30, "there")},
			want: []domain.QuoteRow{row("Unknown", 1, 10, 20, "hi"), row("Unknown", 1, 20, 30, "there")},
		},
		{
			name: "gap breaks the sequence",
			in:   []domain.QuoteRow{row("A", 1, 10, 20, "hi"), row("A", 1, 21, 30, "there")},
			want: []domain.QuoteRow{row("A", 1, 10, 20, "hi"), row("A", 1, 21, 30, "there")},
		},
		{
			name: "episode change breaks the sequence",
			in:   []domain.QuoteRow{row("A", 1, 10, 20, "hi"), row("A", 2, 20, 30, "there")},
			want: []domain.QuoteRow{row("A", 1, 10, 20, "hi"), row("A", 2, 20, 30, "there")},
		},
		{
			name: "three way chain and trailing row",
			in: []domain.QuoteRow{
				row("A", 1, 0, 10, "a"), row("A", 1, 10, 20, "b"), row("A", 1, 20, 30, "c"),
				row("B", 1, 30, 40, "d"),
			},
			want: []domain.QuoteRow{row("A", 1, 0, 30, "a b c"), row("B", 1, 30, 40, "d")},
		},
		{
			name: "single row",
			in:   []domain.QuoteRow{row("A", 1, 0, 10, "a")},
			want: []domain.QuoteRow{row("A", 1, 0, 10, "a")},
		},
		{
			name: "empty",
			in:   nil,
			want: []domain.QuoteRow{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Merge(tt.in))
		})
	}
}

func TestMerge_PreservesText(t *testing.T) {
	in := []domain.QuoteRow{
		row("A", 1, 0, 10, "one"), row("A", 1, 10, 20, "two"),
		row("Unknown", 1, 20, 30, "three"), row("B", 1, 40, 50, "four"),
		row("B", 1, 50, 60, "five"),
	}

	var before, after []string
	for _, r := range in {
		before = append(before, r.Text)
	}
	for _, r := range Merge(in) {
		after = append(after, r.Text)
	}

	assert.Equal(t, strings.Join(before, " "), strings.Join(after, " "))
}

func TestConsolidateSongs(t *testing.T) {
	in := []domain.QuoteRow{
		row("OP", 1, 0, 10, "la la"),
		row("A", 1, 10, 20, "hello"),
		row("OP", 2, 0, 10, "la la"),
		row("ED", 1, 90, 100, "bye bye"),
		row("B", 1, 20, 30, "hi"),
		row("Opening", 1, 0, 10, "la la"),
	}

	got := ConsolidateSongs(in)
	assert.Equal(t, []domain.QuoteRow{
		row("A", 1, 10, 20, "hello"),
		row("B", 1, 20, 30, "hi"),
		row("OP", 1, 0, 10, "la la"),
		row("ED", 1, 90, 100, "bye bye"),
		row("Opening", 1, 0, 10, "la la"),
	}, got)
}

func writeScript(t *testing.T, path string, lines ...string) {
	t.Helper()
	content := "[Events]\nFormat: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n" +
		strings.Join(lines, "\n") + "\n"
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func dialogue(start, end, name, text string) string {
	return fmt.Sprintf("Dialogue: 0,%s,%s,Default,%s,0,0,0,,%s", start, end, name, text)
}

func TestService_Build(t *testing.T) {
	dir := t.TempDir()
	paths := domain.NewPaths(dir, filepath.Join(dir, "links"))

	writeScript(t, paths.ProcessedEpisode("show", 1),
		dialogue("0:00:01.00", "0:00:02.00", "A", "Hello"),
		dialogue("0:00:02.00", "0:00:03.00", "A", "there"),
		dialogue("0:00:04.00", "0:00:05.00", "OP", "la la"),
	)
	writeScript(t, paths.ProcessedEpisode("show", 2),
		dialogue("0:00:01.00", "0:00:02.00", "", "Hm?"),
		dialogue("0:00:04.00", "0:00:05.00", "OP", "la la"),
	)

	record := domain.AnimeRecord{
		Metadata: domain.AnimeMetadata{MalID: 7, EpisodeCount: 3},
		Episodes: []domain.EpisodeLink{{EpisodeNumber: 1}, {EpisodeNumber: 2}, {EpisodeNumber: 3}},
	}

	svc := NewService(zerolog.Nop(), &domain.Config{MaxLinesPerEpisode: 600, ClearSongs: true}, paths)
	batch, err := svc.Build(context.Background(), "show", record)
	require.NoError(t, err)

	assert.Equal(t, 2, batch.Episodes)
	assert.Equal(t, 1, batch.Unknown)
	require.Len(t, batch.Rows, 3)
	assert.Equal(t, "Hello there", batch.Rows[0].Text)
	assert.Equal(t, 2, batch.Rows[1].Episode)
	assert.Equal(t, "OP", batch.Rows[2].SpeakerName)
}

func TestService_BuildRejectsNoisyAnime(t *testing.T) {
	dir := t.TempDir()
	paths := domain.NewPaths(dir, filepath.Join(dir, "links"))

	writeScript(t, paths.ProcessedEpisode("noisy", 1),
		dialogue("0:00:01.00", "0:00:02.00", "A", "one"),
		dialogue("0:00:03.00", "0:00:04.00", "A", "two"),
		dialogue("0:00:05.00", "0:00:06.00", "A", "three"),
	)

	record := domain.AnimeRecord{
		Metadata: domain.AnimeMetadata{MalID: 7, EpisodeCount: 2},
		Episodes: []domain.EpisodeLink{{EpisodeNumber: 1}},
	}

	svc := NewService(zerolog.Nop(), &domain.Config{MaxLinesPerEpisode: 1}, paths)
	_, err := svc.Build(context.Background(), "noisy", record)
	assert.True(t, errors.Is(err, ErrTooManyLines))
}

func TestService_BuildFailsOnBrokenScript(t *testing.T) {
	dir := t.TempDir()
	paths := domain.NewPaths(dir, filepath.Join(dir, "links"))
	writeScript(t, paths.ProcessedEpisode("broken", 1), "Dialogue: 0,bad")

	record := domain.AnimeRecord{
		Metadata: domain.AnimeMetadata{MalID: 7, EpisodeCount: 1},
		Episodes: []domain.EpisodeLink{{EpisodeNumber: 1}},
	}

	svc := NewService(zerolog.Nop(), &domain.Config{MaxLinesPerEpisode: 600}, paths)
	_, err := svc.Build(context.Background(), "broken", record)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrTooManyLines))
}
