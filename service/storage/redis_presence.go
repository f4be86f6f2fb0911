package storage

import (
	"context"
	"time"

	"jircord/tools/errs"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// presence key: im:presence:<user>
// Value: node id, TTL bounds how long a crashed node leaves a user online.
func presenceKey(user string) string { return "im:presence:" + user }

type RedisPresence struct {
	rdb    redis.UniversalClient
	nodeID string
	ttl    time.Duration
}

func NewRedisPresence(rdb redis.UniversalClient, nodeID string, ttl time.Duration) *RedisPresence {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisPresence{rdb: rdb, nodeID: nodeID, ttl: ttl}
}

// Online marks the user as online on this node and renews the TTL.
func (p *RedisPresence) Online(ctx context.Context, user string) error {
	return errs.WrapMsg(p.rdb.Set(ctx, presenceKey(user), p.nodeID, p.ttl).Err(), "presence online", "user", user)
}

// Offline removes the presence key.
func (p *RedisPresence) Offline(ctx context.Context, user string) error {
	return errs.WrapMsg(p.rdb.Del(ctx, presenceKey(user)).Err(), "presence offline", "user", user)
}

// Lookup reports whether the user is online and on which node.
func (p *RedisPresence) Lookup(ctx context.Context, user string) (nodeID string, online bool, err error) {
	val, err := p.rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.WrapMsg(err, "presence lookup", "user", user)
	}
	return val, true, nil
}
