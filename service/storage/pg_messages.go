package storage

import (
	"context"

	"jircord/tools/errs"

	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS chat_messages (
	id         BIGSERIAL PRIMARY KEY,
	channel    TEXT        NOT NULL,
	from_user  TEXT        NOT NULL,
	to_user    TEXT        NOT NULL DEFAULT '',
	body       TEXT        NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS chat_messages_channel_id ON chat_messages (channel, id);
`

// PgLog stores history in a single table ordered by its serial id.
type PgLog struct {
	pool *pgxpool.Pool
}

// NewPgPool connects a pgx pool and pings it.
func NewPgPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errs.WrapMsg(err, "pgxpool new")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.WrapMsg(err, "pgxpool ping")
	}
	return pool, nil
}

func NewPgLog(pool *pgxpool.Pool) *PgLog {
	return &PgLog{pool: pool}
}

func (l *PgLog) EnsureSchema(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, pgSchema)
	return errs.WrapMsg(err, "postgres ensure schema")
}

func (l *PgLog) Append(ctx context.Context, e Entry) error {
	key := e.Channel().Key()
	_, err := l.pool.Exec(ctx,
		`INSERT INTO chat_messages (channel, from_user, to_user, body, created_at) VALUES ($1, $2, $3, $4, $5)`,
		key, e.From, e.To, e.Text, e.CreatedAt)
	if err != nil {
		return errs.WrapCode(errs.ErrLogUnavailable, err, "postgres insert", "channel", key)
	}
	return nil
}

func (l *PgLog) Query(ctx context.Context, ch Channel) ([]Entry, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT from_user, to_user, body, created_at FROM chat_messages WHERE channel = $1 ORDER BY id`,
		ch.Key())
	if err != nil {
		return nil, errs.WrapCode(errs.ErrLogUnavailable, err, "postgres query", "channel", ch.Key())
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.From, &e.To, &e.Text, &e.CreatedAt); err != nil {
			return nil, errs.WrapCode(errs.ErrLogUnavailable, err, "postgres scan", "channel", ch.Key())
		}
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.WrapCode(errs.ErrLogUnavailable, err, "postgres rows", "channel", ch.Key())
	}
	return out, nil
}
