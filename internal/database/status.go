package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/varoOP/animequotes/internal/domain"
)

type StatusRepo struct {
	log zerolog.Logger
	db  *DB
}

func NewStatusRepo(log zerolog.Logger, db *DB) domain.StatusRepo {
	return &StatusRepo{
		log: log.With().Str("repo", "status").Logger(),
		db:  db,
	}
}

// GetAll returns the stored progress of every anime keyed by MAL id.
func (r *StatusRepo) GetAll(ctx context.Context) (domain.StatusSnapshot, error) {
	queryBuilder := r.db.squirrel.
		Select("mal_id", "key", "completed", "episode_amount", "updated_at").
		From("anime_status")

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("GetAll")

	rows, err := r.db.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	snapshot := make(domain.StatusSnapshot)
	for rows.Next() {
		var (
			s         domain.AnimeStatus
			updatedAt string
		)
		if err := rows.Scan(&s.MalID, &s.Key, &s.Completed, &s.EpisodeAmount, &updatedAt); err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}

		if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
			s.UpdatedAt = t
		}

		snapshot[s.MalID] = s
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	return snapshot, nil
}

// Upsert inserts or replaces the progress of one anime.
func (r *StatusRepo) Upsert(ctx context.Context, status domain.AnimeStatus) error {
	if status.MalID == 0 {
		return errors.Wrap(domain.ErrInvalidInput, "status without mal id")
	}

	updatedAt := status.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	queryBuilder := r.db.squirrel.
		Replace("anime_status").
		Columns("mal_id", "key", "completed", "episode_amount", "updated_at").
		Values(status.MalID, status.Key, status.Completed, status.EpisodeAmount, updatedAt.UTC().Format(time.RFC3339))

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Upsert")

	if _, err := r.db.handler.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "error executing query")
	}

	return nil
}
