package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/varoOP/animequotes/internal/domain"
)

const defaultInsertBatchSize = 500

type txQuerier interface {
	Querier
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// QuoteRepo writes quote rows into one table per anime, named quotes_<key>.
type QuoteRepo struct {
	log       zerolog.Logger
	db        *DB
	q         txQuerier
	batchSize int
}

// NewQuoteRepo returns a repository running on the shared connection pool.
func NewQuoteRepo(log zerolog.Logger, db *DB, batchSize int) *QuoteRepo {
	return newQuoteRepo(log, db, db.handler, batchSize)
}

// NewConnQuoteRepo returns a repository bound to a dedicated connection.
func NewConnQuoteRepo(log zerolog.Logger, conn *Conn, batchSize int) *QuoteRepo {
	return newQuoteRepo(log, conn.db, conn.conn, batchSize)
}

func newQuoteRepo(log zerolog.Logger, db *DB, q txQuerier, batchSize int) *QuoteRepo {
	if batchSize < 1 {
		batchSize = defaultInsertBatchSize
	}

	return &QuoteRepo{
		log:       log.With().Str("repo", "quote").Logger(),
		db:        db,
		q:         q,
		batchSize: batchSize,
	}
}

var _ domain.QuoteRepo = (*QuoteRepo)(nil)

// quoteTablePrefix keeps per-anime tables apart from the schema tables.
const quoteTablePrefix = "quotes_"

// quoteIdent quotes the table of an anime key for use in a statement.
func quoteIdent(key string) string {
	return `"` + strings.ReplaceAll(quoteTablePrefix+key, `"`, `""`) + `"`
}

func (r *QuoteRepo) createTable(ctx context.Context, table string) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	mal_id INTEGER,
	episode INTEGER,
	name VARCHAR(200),
	quote TEXT,
	start_time TIME,
	end_time TIME
)`, quoteIdent(table))

	r.log.Trace().Str("query", query).Msg("createTable")

	if _, err := r.q.ExecContext(ctx, query); err != nil {
		return errors.Wrapf(err, "error creating table %s", table)
	}

	return nil
}

// Write stores rows into table, creating it when missing. Replace mode drops
// the existing rows first. The delete and every insert run in one transaction.
func (r *QuoteRepo) Write(ctx context.Context, table string, rows []domain.QuoteRow, mode domain.WriteMode) (domain.WriteResult, error) {
	if len(rows) == 0 {
		return domain.WriteResult{Status: domain.WriteEmpty}, nil
	}

	if table == "" {
		return domain.WriteResult{}, errors.Wrap(domain.ErrInvalidInput, "empty table name")
	}

	if mode != domain.WriteAppend && mode != domain.WriteReplace {
		return domain.WriteResult{}, errors.Wrapf(domain.ErrInvalidInput, "unknown write mode %q", mode)
	}

	if err := r.createTable(ctx, table); err != nil {
		return domain.WriteResult{}, err
	}

	tx, err := r.q.BeginTx(ctx, nil)
	if err != nil {
		return domain.WriteResult{}, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if mode == domain.WriteReplace {
		query, args, err := r.db.squirrel.Delete(quoteIdent(table)).ToSql()
		if err != nil {
			return domain.WriteResult{}, errors.Wrap(err, "error building delete query")
		}

		r.log.Trace().Str("query", query).Interface("args", args).Msg("Write")

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return domain.WriteResult{}, errors.Wrap(err, "error executing delete query")
		}
	}

	for start := 0; start < len(rows); start += r.batchSize {
		end := min(start+r.batchSize, len(rows))

		queryBuilder := r.db.squirrel.
			Insert(quoteIdent(table)).
			Columns("mal_id", "episode", "name", "quote", "start_time", "end_time")

		for _, row := range rows[start:end] {
			queryBuilder = queryBuilder.Values(
				row.MalID,
				row.Episode,
				row.SpeakerName,
				row.Text,
				FormatTime(row.StartTime),
				FormatTime(row.EndTime),
			)
		}

		query, args, err := queryBuilder.ToSql()
		if err != nil {
			return domain.WriteResult{}, errors.Wrap(err, "error building query")
		}

		r.log.Trace().Str("query", query).Int("rows", end-start).Msg("Write")

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return domain.WriteResult{}, errors.Wrap(err, "error executing query")
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.WriteResult{}, errors.Wrap(err, "failed to commit transaction")
	}

	return domain.WriteResult{Status: domain.WriteOK, Rows: len(rows)}, nil
}

// Read returns every row of table in insertion order.
func (r *QuoteRepo) Read(ctx context.Context, table string) ([]domain.QuoteRow, error) {
	queryBuilder := r.db.squirrel.
		Select("mal_id", "episode", "name", "quote", "start_time", "end_time").
		From(quoteIdent(table)).
		OrderBy("rowid")

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Read")

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	var result []domain.QuoteRow
	for rows.Next() {
		var (
			row        domain.QuoteRow
			start, end string
		)
		if err := rows.Scan(&row.MalID, &row.Episode, &row.SpeakerName, &row.Text, &start, &end); err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}

		if row.StartTime, err = ParseTime(start); err != nil {
			return nil, err
		}
		if row.EndTime, err = ParseTime(end); err != nil {
			return nil, err
		}

		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	return result, nil
}

// FormatTime renders d as HH:MM:SS.mmm.
func FormatTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Millisecond)

	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second

	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, d/time.Millisecond)
}

// ParseTime reads a HH:MM:SS[.fff] value written by FormatTime.
func ParseTime(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, errors.Errorf("invalid time %q", s)
	}

	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, errors.Wrapf(err, "invalid hours in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, errors.Wrapf(err, "invalid minutes in %q", s)
	}
	sec, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid seconds in %q", s)
	}

	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(sec*float64(time.Second))

	return d.Round(time.Millisecond), nil
}
