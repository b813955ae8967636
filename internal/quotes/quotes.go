// Package quotes turns decoded subtitle events into quote rows.
package quotes

import (
	"regexp"
	"strings"

	"github.com/varoOP/animequotes/internal/domain"
	"github.com/varoOP/animequotes/internal/subtitle"
)

var (
	overrideRe  = regexp.MustCompile(`\{[^}]*\}`)
	lineBreakRe = strings.NewReplacer(`\N`, " ", `\n`, " ", `\h`, " ")
)

// noSpeaker is the marker some groups use for lines without a speaker.
const noSpeaker = "NTP"

// CleanText drops override blocks, turns line break markers into spaces and
// collapses double spaces.
func CleanText(s string) string {
	s = overrideRe.ReplaceAllString(s, "")
	s = lineBreakRe.Replace(s)
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return strings.TrimSpace(s)
}

func isSign(ev subtitle.Event) bool {
	return strings.Contains(strings.ToLower(ev.Style), "sign") ||
		strings.Contains(strings.ToLower(ev.Name), "sign")
}

// Extract converts the events of one episode into quote rows. Signs, zero
// length events and lines without text are dropped. It also returns how many
// rows have no speaker.
func Extract(events []subtitle.Event, malID, episode int) ([]domain.QuoteRow, int) {
	rows := make([]domain.QuoteRow, 0, len(events))
	unknown := 0

	for _, ev := range events {
		if isSign(ev) || ev.Start == ev.End {
			continue
		}

		text := CleanText(ev.Text)
		if text == "" {
			continue
		}

		name := ev.Name
		if name == "" || name == noSpeaker {
			name = domain.UnknownSpeaker
			unknown++
		}

		rows = append(rows, domain.QuoteRow{
			MalID:       malID,
			Episode:     episode,
			SpeakerName: name,
			Text:        text,
			StartTime:   ev.Start,
			EndTime:     ev.End,
		})
	}

	return rows, unknown
}

// ExceedsThreshold reports whether a multi-episode anime has more rows than
// episodeCount*maxLinesPerEpisode.
func ExceedsThreshold(rows, episodeCount, maxLinesPerEpisode int) bool {
	return episodeCount > 1 && rows > episodeCount*maxLinesPerEpisode
}

// Merge joins each row into the previous one when both share speaker and
// episode, the speaker is known, and the row starts exactly when the previous
// one ends.
func Merge(rows []domain.QuoteRow) []domain.QuoteRow {
	if len(rows) == 0 {
		return []domain.QuoteRow{}
	}

	merged := make([]domain.QuoteRow, 0, len(rows))
	current := rows[0]

	for _, row := range rows[1:] {
		if row.SpeakerName == current.SpeakerName &&
			current.SpeakerName != domain.UnknownSpeaker &&
			row.MalID == current.MalID &&
			row.Episode == current.Episode &&
			row.StartTime == current.EndTime {
			current.Text += " " + row.Text
			current.EndTime = row.EndTime
			continue
		}

		merged = append(merged, current)
		current = row
	}

	return append(merged, current)
}

var songSpeakers = map[string]bool{
	"ED":      true,
	"ed":      true,
	"Ending":  true,
	"OP":      true,
	"op":      true,
	"Opening": true,
}

// ConsolidateSongs removes opening and ending lines from their positions and
// appends each distinct (speaker, text) pair once at the end.
func ConsolidateSongs(rows []domain.QuoteRow) []domain.QuoteRow {
	type songKey struct{ name, text string }

	out := make([]domain.QuoteRow, 0, len(rows))
	var songs []domain.QuoteRow
	seen := make(map[songKey]bool)

	for _, row := range rows {
		if !songSpeakers[row.SpeakerName] {
			out = append(out, row)
			continue
		}

		k := songKey{row.SpeakerName, row.Text}
		if seen[k] {
			continue
		}
		seen[k] = true
		songs = append(songs, row)
	}

	return append(out, songs...)
}
