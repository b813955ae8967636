// Package titles extracts structured facts from noisy release titles and
// turns anime names into storage-safe identifiers.
package titles

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	// sequenceRe matches torrent sequence markers: CRC32 hashes, batch ranges
	// and version tags.
	sequenceRe = regexp.MustCompile(`(\[[0-9A-Fa-f]{8}\]|\[\d{1,4}\s*[-~]\s*\d{1,4}\]|\[v\d{1,2}\])`)
	qualityRe  = regexp.MustCompile(`([\[(]?(?:\d{3,4}x)?(?:360|480|540|576|720|1080|1440|2160)[pP][\])]?)`)
	asideRe    = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)`)
	spacesRe   = regexp.MustCompile(`\s{2,}`)
	episodeRe  = regexp.MustCompile(`(\d{2,4}(?:\.\d+)?)(?:v\d{1,2})?(?:\s|$)`)
	fileEpRe   = regexp.MustCompile(`\s(\d{1,3}(?:\.\d+)?)\.(?:mkv|mp4)`)
	seasonEpRe = regexp.MustCompile(`S([0-9]{1,2})E`)
	seasonRe   = regexp.MustCompile(`\bS([0-9]{1,2})\b`)
)

// disallowedBefore are characters that, directly in front of a digit run,
// mean the run is part of something else (a resolution, a season, a longer
// number).
const disallowedBefore = "0123456789xX.,:#vsS"

// Provider returns the leading release group tag of a title, brackets
// included. A leading bracket that is a torrent sequence marker is not a
// provider.
func Provider(title string) string {
	provider := ""

	if strings.HasPrefix(title, "[") {
		candidate := strings.SplitN(title, "]", 2)[0] + "]"
		if !sequenceRe.MatchString(candidate) {
			provider = candidate
		}
	}

	if strings.HasPrefix(title, "(") {
		provider = strings.SplitN(title, ")", 2)[0] + ")"
	}

	return provider
}

// Sequence returns the first torrent sequence marker in title.
func Sequence(title string) string {
	if m := sequenceRe.FindStringSubmatch(title); m != nil {
		return m[1]
	}
	return ""
}

// Quality returns the first resolution tag in title.
func Quality(title string) string {
	if m := qualityRe.FindStringSubmatch(title); m != nil {
		return m[1]
	}
	return ""
}

// RemoveAsides drops every bracketed or parenthesised part of s and
// collapses the whitespace left behind.
func RemoveAsides(s string) string {
	s = asideRe.ReplaceAllString(s, "")
	return spacesRe.ReplaceAllString(s, " ")
}

// EpisodeNumber extracts the episode number of a release title. It returns
// false when no number is found or the number is fractional.
func EpisodeNumber(title string) (int, bool) {
	if title == "" {
		return 0, false
	}

	text := RemoveAsides(title)
	number := ""
	for _, m := range episodeRe.FindAllStringSubmatchIndex(text, -1) {
		start := m[2]
		if start > 0 && strings.IndexByte(disallowedBefore, text[start-1]) >= 0 {
			continue
		}
		number = text[m[2]:m[3]]
		break
	}

	if number == "" {
		if m := fileEpRe.FindStringSubmatch(title); m != nil {
			number = m[1]
		}
	}

	if number == "" || strings.Contains(number, ".") {
		return 0, false
	}

	n, err := strconv.Atoi(number)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Season extracts a season number using the generic patterns first and the
// provider strategy as a fallback.
func Season(title string, strategy Strategy) string {
	if title == "" {
		return ""
	}

	if m := seasonEpRe.FindStringSubmatch(title); m != nil {
		return m[1]
	}

	if m := seasonRe.FindStringSubmatch(title); m != nil {
		return m[1]
	}

	if strategy.Season != nil {
		return strategy.Season(title)
	}
	return ""
}

// SizeGB converts a size label such as "Total: 12,884,901,888 bytes" to GiB.
func SizeGB(label string) (float64, error) {
	fields := strings.Fields(label)
	if len(fields) < 2 {
		return 0, errors.Errorf("unexpected size label %q", label)
	}

	raw := strings.ReplaceAll(fields[len(fields)-2], ",", "")
	bytes, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "unexpected size label %q", label)
	}

	return bytes / (1024 * 1024 * 1024), nil
}
