package source

import (
	"context"
	"database/sql/driver"
	"encoding/hex"
	"time"

	"bulkctl/cli/internal/bulk"
	"bulkctl/cli/internal/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Postgres runs query and returns one record per row, keyed by column name.
// Column names become Salesforce field names, so alias them in SQL
// (SELECT name AS "Name") when they differ.
func Postgres(ctx context.Context, q Querier, query string, args ...any) ([]bulk.Record, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.Configuration, "run source query", err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, errors.Wrap(errors.Configuration, "read source rows", err)
	}
	out := make([]bulk.Record, len(maps))
	for i, m := range maps {
		rec := make(bulk.Record, len(m))
		for k, v := range m {
			rec[k] = normalize(v)
		}
		out[i] = rec
	}
	return out, nil
}

// normalize turns driver values into what the CSV and JSON encoders
// render the way Salesforce expects.
func normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case [16]byte:
		return uuid.UUID(t).String()
	case []byte:
		return `\x` + hex.EncodeToString(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case driver.Valuer:
		dv, err := t.Value()
		if err != nil {
			return nil
		}
		return normalize(dv)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	}
	return v
}
