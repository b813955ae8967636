package domain

import (
	"fmt"
	"path/filepath"
)

// Paths resolves every on-disk location used by a run.
type Paths struct {
	DataDir  string
	LinksDir string
}

// NewPaths creates a new Paths instance rooted at the configured directories
func NewPaths(dataDir, linksDir string) *Paths {
	return &Paths{
		DataDir:  dataDir,
		LinksDir: linksDir,
	}
}

// LinksPage is the links document written for a listing page.
func (p *Paths) LinksPage(page int) string {
	return filepath.Join(p.LinksDir, fmt.Sprintf("page_%d.json", page))
}

// AnimeDir is the folder holding every file of one anime.
func (p *Paths) AnimeDir(key string) string {
	return filepath.Join(p.DataDir, key)
}

// RawDir holds downloaded subtitle archives.
func (p *Paths) RawDir(key string) string {
	return filepath.Join(p.AnimeDir(key), "raw")
}

// ProcessedDir holds decompressed subtitle files.
func (p *Paths) ProcessedDir(key string) string {
	return filepath.Join(p.AnimeDir(key), "processed")
}

// RawEpisode is the archive path of one episode.
func (p *Paths) RawEpisode(key string, episode int) string {
	return filepath.Join(p.RawDir(key), fmt.Sprintf("ep_%d.xz", episode))
}

// ProcessedEpisode is the decoded subtitle path of one episode.
func (p *Paths) ProcessedEpisode(key string, episode int) string {
	return filepath.Join(p.ProcessedDir(key), fmt.Sprintf("ep_%d.ass", episode))
}

// LockFile guards the data directory against concurrent runs.
func (p *Paths) LockFile() string {
	return filepath.Join(p.DataDir, ".animequotes.lock")
}
