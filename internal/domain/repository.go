package domain

import (
	"context"
)

// LinksRepository stores links documents as files.
type LinksRepository interface {
	Get(ctx context.Context, path string) (LinksDocument, error)
	Store(ctx context.Context, path string, doc LinksDocument) error
	List(ctx context.Context, dir string) ([]string, error)
}

// WriteMode selects what happens to existing rows of a quote table.
type WriteMode string

const (
	WriteAppend  WriteMode = "append"
	WriteReplace WriteMode = "replace"
)

// WriteStatus tells an empty no-op apart from a successful write.
type WriteStatus int

const (
	WriteEmpty WriteStatus = iota
	WriteOK
)

// WriteResult is the outcome of a quote table write.
type WriteResult struct {
	Status WriteStatus
	Rows   int
}

// QuoteRepo writes quote rows into per-anime tables.
type QuoteRepo interface {
	Write(ctx context.Context, table string, rows []QuoteRow, mode WriteMode) (WriteResult, error)
	Read(ctx context.Context, table string) ([]QuoteRow, error)
}

// StatusRepo stores incremental progress per anime.
type StatusRepo interface {
	GetAll(ctx context.Context) (StatusSnapshot, error)
	Upsert(ctx context.Context, status AnimeStatus) error
}

// ReferenceRepo keeps a history of every links document collected.
type ReferenceRepo interface {
	Append(ctx context.Context, runID string, doc LinksDocument) (int, error)
}
