package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/varoOP/animequotes/internal/domain"
)

// FileRepository implements domain.LinksRepository using one JSON file per
// links document.
type FileRepository struct {
	log zerolog.Logger
}

func NewFileRepository(log zerolog.Logger) *FileRepository {
	return &FileRepository{
		log: log.With().Str("module", "repository").Logger(),
	}
}

var _ domain.LinksRepository = (*FileRepository)(nil)

// Get reads the links document stored at path.
func (r *FileRepository) Get(ctx context.Context, path string) (domain.LinksDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file does not exist: %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s: %w", path, domain.ErrInvalidInput)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer f.Close()

	body, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	doc := domain.LinksDocument{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal json from %s: %w", path, err)
	}

	return doc, nil
}

// Store writes doc to path, replacing any previous content.
func (r *FileRepository) Store(ctx context.Context, path string, doc domain.LinksDocument) error {
	j, err := json.MarshalIndent(doc, "", "   ")
	if err != nil {
		return fmt.Errorf("failed to marshal links document: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp := path + ".part"
	if err := os.WriteFile(tmp, j, 0644); err != nil {
		return fmt.Errorf("failed to write to file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}

	r.log.Debug().Str("path", path).Int("count", len(doc)).Msg("stored links document")
	return nil
}

// List returns the page_<N>.json files of dir ordered by page number.
func (r *FileRepository) List(ctx context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	type page struct {
		path string
		n    int
	}

	var pages []page
	for _, e := range entries {
		n, ok := pageNumber(e.Name())
		if e.IsDir() || !ok {
			continue
		}
		pages = append(pages, page{path: filepath.Join(dir, e.Name()), n: n})
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].n < pages[j].n })

	paths := make([]string, 0, len(pages))
	for _, p := range pages {
		paths = append(paths, p.path)
	}

	return paths, nil
}

func pageNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, "page_") || !strings.HasSuffix(name, ".json") {
		return 0, false
	}

	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "page_"), ".json"))
	if err != nil {
		return 0, false
	}

	return n, true
}

// Resolve accepts either a path to a stored document or an in-memory
// document. Anything else is rejected with domain.ErrInvalidInput.
func (r *FileRepository) Resolve(ctx context.Context, src any) (domain.LinksDocument, error) {
	switch v := src.(type) {
	case string:
		return r.Get(ctx, v)
	case domain.LinksDocument:
		return v, nil
	case map[string]domain.AnimeRecord:
		return domain.LinksDocument(v), nil
	default:
		return nil, errors.Wrapf(domain.ErrInvalidInput, "unsupported links source %T", src)
	}
}
