package storage

import (
	"context"
	"strconv"
	"time"

	"jircord/tools/errs"

	"github.com/redis/go-redis/v9"
)

// Conversation history: one Redis Stream per channel.

const defaultStreamMaxLen = 100_000

type RedisLog struct {
	rdb    redis.UniversalClient
	maxLen int64
}

// NewRedisLog stores history in streams trimmed to roughly maxLen entries
// (<=0: 100k).
func NewRedisLog(rdb redis.UniversalClient, maxLen int64) *RedisLog {
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return &RedisLog{rdb: rdb, maxLen: maxLen}
}

func (l *RedisLog) Append(ctx context.Context, e Entry) error {
	args := &redis.XAddArgs{
		Stream: e.Channel().Key(),
		Values: map[string]any{
			"from": e.From,
			"to":   e.To,
			"text": e.Text,
			"ts":   e.CreatedAt.UnixMilli(),
		},
		Approx: true,
		MaxLen: l.maxLen,
	}
	if err := l.rdb.XAdd(ctx, args).Err(); err != nil {
		return errs.WrapCode(errs.ErrLogUnavailable, err, "redis xadd", "stream", args.Stream)
	}
	return nil
}

func (l *RedisLog) Query(ctx context.Context, ch Channel) ([]Entry, error) {
	msgs, err := l.rdb.XRange(ctx, ch.Key(), "-", "+").Result()
	if err != nil {
		return nil, errs.WrapCode(errs.ErrLogUnavailable, err, "redis xrange", "stream", ch.Key())
	}
	out := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, entryFromStream(m.Values))
	}
	return out, nil
}

func entryFromStream(v map[string]any) Entry {
	e := Entry{
		From: streamString(v["from"]),
		To:   streamString(v["to"]),
		Text: streamString(v["text"]),
	}
	if ms, err := strconv.ParseInt(streamString(v["ts"]), 10, 64); err == nil {
		e.CreatedAt = time.UnixMilli(ms).UTC()
	}
	return e
}

func streamString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
