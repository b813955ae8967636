package database

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/varoOP/animequotes/internal/domain"
)

// ReferenceRepo keeps every collected links document in json_reference.
type ReferenceRepo struct {
	log zerolog.Logger
	db  *DB
	now func() time.Time
}

func NewReferenceRepo(log zerolog.Logger, db *DB) *ReferenceRepo {
	return &ReferenceRepo{
		log: log.With().Str("repo", "reference").Logger(),
		db:  db,
		now: time.Now,
	}
}

var _ domain.ReferenceRepo = (*ReferenceRepo)(nil)

// Append stores one row per anime of doc and returns how many were written.
func (r *ReferenceRepo) Append(ctx context.Context, runID string, doc domain.LinksDocument) (int, error) {
	if len(doc) == 0 {
		return 0, nil
	}

	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)

	date := r.now().UTC().Format(time.RFC3339)

	queryBuilder := r.db.squirrel.
		Insert("json_reference").
		Columns("run_id", "name", "info", "reference_date")

	for _, name := range names {
		info, err := json.Marshal(doc[name])
		if err != nil {
			return 0, errors.Wrapf(err, "failed to marshal %s", name)
		}
		queryBuilder = queryBuilder.Values(runID, name, string(info), date)
	}

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Int("rows", len(names)).Msg("Append")

	if _, err := r.db.handler.ExecContext(ctx, query, args...); err != nil {
		return 0, errors.Wrap(err, "error executing query")
	}

	return len(names), nil
}
