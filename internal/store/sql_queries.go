package store

import (
	sq "github.com/Masterminds/squirrel"
)

const (
	kvTable       = "kv_entries"
	kvColumnKey   = "entry_key"
	kvColumnValue = "entry_value"
	kvColumnTTL   = "expires_at"

	// upsertKV relies on ON CONFLICT ... DO UPDATE, which PostgreSQL and
	// SQLite 3.24+ both accept with the same syntax.
	upsertKVSuffix = "ON CONFLICT (entry_key) DO UPDATE SET " +
		"entry_value = excluded.entry_value, expires_at = excluded.expires_at"

	// insertIfAbsentSuffix overwrites only a row that has already expired,
	// so an expired row counts as absent for compare-and-swap.
	insertIfAbsentSuffix = "ON CONFLICT (entry_key) DO UPDATE SET " +
		"entry_value = excluded.entry_value, expires_at = NULL " +
		"WHERE kv_entries.expires_at IS NOT NULL AND kv_entries.expires_at <= ?"
)

type kvQueries struct {
	builder sq.StatementBuilderType
}

func newKVQueries(placeholder sq.PlaceholderFormat) kvQueries {
	return kvQueries{builder: sq.StatementBuilder.PlaceholderFormat(placeholder)}
}

func (q kvQueries) get(key string) (string, []any, error) {
	return q.builder.
		Select(kvColumnValue, kvColumnTTL).
		From(kvTable).
		Where(sq.Eq{kvColumnKey: key}).
		ToSql()
}

func (q kvQueries) upsert(key, value string, expiresAt *int64) (string, []any, error) {
	return q.builder.
		Insert(kvTable).
		Columns(kvColumnKey, kvColumnValue, kvColumnTTL).
		Values(key, value, expiresAt).
		Suffix(upsertKVSuffix).
		ToSql()
}

func (q kvQueries) insertIfAbsent(key, value string, nowMillis int64) (string, []any, error) {
	return q.builder.
		Insert(kvTable).
		Columns(kvColumnKey, kvColumnValue, kvColumnTTL).
		Values(key, value, nil).
		Suffix(insertIfAbsentSuffix, nowMillis).
		ToSql()
}

func (q kvQueries) swap(key, old, value string, nowMillis int64) (string, []any, error) {
	return q.builder.
		Update(kvTable).
		Set(kvColumnValue, value).
		Set(kvColumnTTL, nil).
		Where(sq.Eq{kvColumnKey: key, kvColumnValue: old}).
		Where(sq.Or{sq.Eq{kvColumnTTL: nil}, sq.Gt{kvColumnTTL: nowMillis}}).
		ToSql()
}

func (q kvQueries) delete(key string) (string, []any, error) {
	return q.builder.
		Delete(kvTable).
		Where(sq.Eq{kvColumnKey: key}).
		ToSql()
}

func (q kvQueries) deleteExpired(nowMillis int64) (string, []any, error) {
	return q.builder.
		Delete(kvTable).
		Where(sq.NotEq{kvColumnTTL: nil}).
		Where(sq.LtOrEq{kvColumnTTL: nowMillis}).
		ToSql()
}
