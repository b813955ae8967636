package domain

import (
	"errors"
	"time"
)

var (
	// ErrInvalidInput is returned when a loader receives an input it cannot handle.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
)

// AnimeCandidate is one anime found on a listing page.
type AnimeCandidate struct {
	Title      string
	DetailLink string
}

// ProviderStat counts the usable single-episode releases of one provider on
// an anime detail page.
type ProviderStat struct {
	Tag       string
	LinkCount int
	TrialLink string
}

// EpisodeLink is a release link progressively annotated by the pipeline:
// harvested, then numbered and given a subtitle track.
type EpisodeLink struct {
	LinkTitle     string `json:"link_title"`
	LinkURL       string `json:"link_url"`
	EpisodeNumber int    `json:"episode_number,omitempty"`
	Season        string `json:"season,omitempty"`
	SubLink       string `json:"sub_link,omitempty"`
	SubInfo       string `json:"sub_info,omitempty"`
}

// AnimeMetadata describes an anime independently of its resolved episodes.
type AnimeMetadata struct {
	EpisodeCount int    `json:"episode_count"`
	MalID        int    `json:"mal_id"`
	OriginalName string `json:"original_name"`
	Provider     string `json:"provider"`
}

// AnimeRecord is one value of the links document.
type AnimeRecord struct {
	Metadata AnimeMetadata `json:"metadata"`
	Episodes []EpisodeLink `json:"episodes"`
}

// LinksDocument maps normalized anime identifiers to their records. It is the
// interchange format between the links, download and load stages.
type LinksDocument map[string]AnimeRecord

// AnimeStatus is the stored progress of an anime.
type AnimeStatus struct {
	MalID         int
	Key           string
	Completed     bool
	EpisodeAmount int
	UpdatedAt     time.Time
}

// StatusSnapshot is a read-only view of stored progress keyed by MAL id.
type StatusSnapshot map[int]AnimeStatus

// Lookup returns the stored status for malID, or the zero value.
func (s StatusSnapshot) Lookup(malID int) AnimeStatus {
	if s == nil {
		return AnimeStatus{}
	}
	return s[malID]
}

// QuoteRow is one line of dialogue ready for storage.
type QuoteRow struct {
	MalID       int
	Episode     int
	SpeakerName string
	Text        string
	StartTime   time.Duration
	EndTime     time.Duration
}

// UnknownSpeaker is the speaker name used when an event carries none.
const UnknownSpeaker = "Unknown"
