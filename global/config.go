package global

import (
	"context"
	"errors"
	"strconv"

	"jircord/data/database/mgo/mongoutil"
	"jircord/global/config"
	"jircord/logger"
	usersvc "jircord/module/user/service"
	"jircord/service/chat"
	"jircord/service/kafka"
	"jircord/service/natsx"
	"jircord/service/storage"
	redis "jircord/service/storage/redis"
	"jircord/tools/errs"
	"jircord/tools/ids"
	"jircord/tools/security"

	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Backends holds the live store connections opened by ConfigStore.
type Backends struct {
	Log   storage.MessageLog
	Redis *goredis.Client
	Mongo *mongo.Database

	closers []func(context.Context) error
}

func (b *Backends) onClose(f func(context.Context) error) {
	b.closers = append(b.closers, f)
}

// Close releases the connections in reverse opening order.
func (b *Backends) Close(ctx context.Context) error {
	var errList []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil {
			errList = append(errList, err)
		}
	}
	b.closers = nil
	return errors.Join(errList...)
}

func ConfigLogger(c config.LogConfig) error {
	return logger.Init(logger.Options{
		Level:      c.Level,
		File:       c.File,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		Colour:     c.Colour,
	})
}

func ConfigIds(nodeID int64) {
	ids.SetNodeID(nodeID)
}

func ConfigJWT(c config.JWTConfig) security.Options {
	opts := security.DefaultOptions([]byte(c.Secret))
	if c.TTL > 0 {
		opts.TTL = c.TTL
	}
	if c.Issuer != "" {
		opts.Issuer = c.Issuer
	}
	return opts
}

func ConfigAccounts(c config.AccountsConfig) *usersvc.Accounts {
	users := make(map[string]string, len(c.Users))
	for _, a := range c.Users {
		users[a.Username] = a.PasswordHash
	}
	a := usersvc.NewAccounts(users)
	if a.Open() {
		logger.Warn("[boot] no accounts configured, login accepts any username/password")
	}
	return a
}

// ConfigStore opens the message log named by c.Driver. On error every
// connection opened so far is closed.
func ConfigStore(ctx context.Context, c config.StoreConfig) (_ *Backends, err error) {
	b := &Backends{}
	defer func() {
		if err != nil {
			_ = b.Close(context.Background())
		}
	}()

	switch c.Driver {
	case config.StoreMemory, "":
		b.Log = storage.NewMemoryLog(c.MaxLen)

	case config.StoreRedis:
		rdb, err := redis.NewClient(ctx, c.Redis)
		if err != nil {
			return nil, err
		}
		b.Redis = rdb
		b.onClose(func(context.Context) error { return rdb.Close() })
		b.Log = storage.NewRedisLog(rdb, int64(c.MaxLen))

	case config.StoreMongo:
		mcfg := c.Mongo
		cli, err := mongoutil.NewMongoDB(ctx, &mcfg)
		if err != nil {
			return nil, err
		}
		b.onClose(cli.Close)
		b.Mongo = cli.GetDB()
		ml := storage.NewMongoLog(b.Mongo)
		if err := ml.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		b.Log = ml

	case config.StorePostgres:
		pool, err := storage.NewPgPool(ctx, c.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		b.onClose(func(context.Context) error { pool.Close(); return nil })
		pl := storage.NewPgLog(pool)
		if err := pl.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		b.Log = pl

	default:
		return nil, errs.ErrInternal.WrapMsg("unknown store driver", "driver", c.Driver)
	}
	logger.Info("[boot] message log ready", zap.String("driver", c.Driver))
	return b, nil
}

// ConfigDirectory keeps the directory next to the messages when they live
// in Mongo, in memory otherwise.
func ConfigDirectory(ctx context.Context, b *Backends) (usersvc.Directory, error) {
	if b == nil || b.Mongo == nil {
		return usersvc.NewMemoryDirectory(), nil
	}
	d := usersvc.NewMongoDirectory(b.Mongo)
	if err := d.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// ConfigPresenceMirror returns nil unless the mirror is on and redis is
// connected.
func ConfigPresenceMirror(b *Backends, c config.StoreConfig, nodeID int64) chat.PresenceSink {
	if !c.Presence.Mirror || b == nil || b.Redis == nil {
		return nil
	}
	return storage.NewRedisPresence(b.Redis, strconv.FormatInt(nodeID, 10), c.Presence.TTL)
}

// ConfigPublisher connects the entry tap. The returned close func is never
// nil.
func ConfigPublisher(c config.PublishConfig) (chat.EntrySink, func() error, error) {
	nop := func() error { return nil }
	switch c.Driver {
	case config.PublishNone, "":
		return nil, nop, nil

	case config.PublishNats:
		cli, err := natsx.NewClient(c.Nats)
		if err != nil {
			return nil, nop, err
		}
		logger.Info("[boot] nats tap ready", zap.Strings("servers", c.Nats.Servers))
		return natsx.NewPublisher(cli), cli.Close, nil

	case config.PublishKafka:
		p, err := kafka.NewPublisher(c.Kafka)
		if err != nil {
			return nil, nop, err
		}
		logger.Info("[boot] kafka tap ready", zap.Strings("brokers", c.Kafka.Brokers), zap.String("topic", c.Kafka.Topic))
		return p, p.Close, nil
	}
	return nil, nop, errs.ErrInternal.WrapMsg("unknown publish driver", "driver", c.Driver)
}
