package config

import (
	"fmt"
	"strings"
	"time"

	"jircord/data/database/mgo/mongoutil"
	"jircord/service/kafka"
	"jircord/service/natsx"
	redis "jircord/service/storage/redis"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Store and publish drivers.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StoreMongo    = "mongo"
	StorePostgres = "postgres"

	PublishNone  = "none"
	PublishNats  = "nats"
	PublishKafka = "kafka"
)

type Config struct {
	NodeID   int64          `mapstructure:"node_id"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	GRPC     GRPCConfig     `mapstructure:"grpc"`
	Log      LogConfig      `mapstructure:"log"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Relay    RelayConfig    `mapstructure:"relay"`
	Store    StoreConfig    `mapstructure:"store"`
	Publish  PublishConfig  `mapstructure:"publish"`
	Accounts AccountsConfig `mapstructure:"accounts"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type GRPCConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the health server
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	Colour     bool   `mapstructure:"colour"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type RelayConfig struct {
	EventQueue    int           `mapstructure:"event_queue"`
	SendQueue     int           `mapstructure:"send_queue"`
	StoreShards   int           `mapstructure:"store_shards"`
	StoreQueue    int           `mapstructure:"store_queue"`
	StoreTimeout  time.Duration `mapstructure:"store_timeout"`
	AuthTimeout   time.Duration `mapstructure:"auth_timeout"`
	PingInterval  time.Duration `mapstructure:"ping_interval"`
	PongWait      time.Duration `mapstructure:"pong_wait"`
	WriteWait     time.Duration `mapstructure:"write_wait"`
	MaxFrameBytes int64         `mapstructure:"max_frame_bytes"`
}

type StoreConfig struct {
	Driver   string           `mapstructure:"driver"`
	MaxLen   int              `mapstructure:"max_len"`
	Redis    redis.Config     `mapstructure:"redis"`
	Mongo    mongoutil.Config `mapstructure:"mongo"`
	Postgres PostgresConfig   `mapstructure:"postgres"`
	Presence PresenceConfig   `mapstructure:"presence"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type PresenceConfig struct {
	Mirror bool          `mapstructure:"mirror"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type PublishConfig struct {
	Driver string       `mapstructure:"driver"`
	Nats   natsx.Config `mapstructure:"nats"`
	Kafka  kafka.Config `mapstructure:"kafka"`
}

// AccountsConfig lists the accounts allowed to log in. With none, any
// non-empty username/password pair is accepted. A list rather than a map
// because viper lowercases map keys and usernames are case sensitive.
type AccountsConfig struct {
	Users []Account `mapstructure:"users"`
}

type Account struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"` // bcrypt
}

var defaults = map[string]any{
	"node_id": 1,

	"http.addr":             ":3000",
	"http.allowed_origins":  []string{},
	"http.shutdown_timeout": "10s",
	"grpc.addr":             "",

	"log.level":       "info",
	"log.file":        "",
	"log.max_size_mb": 100,
	"log.max_backups": 5,
	"log.colour":      true,

	"jwt.secret": "",
	"jwt.issuer": "jircord",
	"jwt.ttl":    "2h",

	"relay.event_queue":     1024,
	"relay.send_queue":      256,
	"relay.store_shards":    8,
	"relay.store_queue":     1024,
	"relay.store_timeout":   "5s",
	"relay.auth_timeout":    "5s",
	"relay.ping_interval":   "25s",
	"relay.pong_wait":       "60s",
	"relay.write_wait":      "10s",
	"relay.max_frame_bytes": 64 << 10,

	"store.driver":              StoreMemory,
	"store.max_len":             100000,
	"store.redis.addr":          "127.0.0.1:6379",
	"store.redis.password":      "",
	"store.redis.db":            0,
	"store.redis.pool_size":     0,
	"store.mongo.uri":           "",
	"store.mongo.address":       []string{},
	"store.mongo.database":      "jircord",
	"store.mongo.username":      "",
	"store.mongo.password":      "",
	"store.mongo.auth_source":   "",
	"store.mongo.max_pool_size": 0,
	"store.mongo.max_retry":     0,
	"store.postgres.dsn":        "",
	"store.presence.mirror":     false,
	"store.presence.ttl":        "24h",

	"publish.driver":                   PublishNone,
	"publish.nats.servers":             []string{},
	"publish.nats.name":                "jircord",
	"publish.nats.user":                "",
	"publish.nats.password":            "",
	"publish.nats.subject_prefix":      "jircord.chat",
	"publish.nats.jetstream":           false,
	"publish.nats.reconnect_wait":      "500ms",
	"publish.nats.timeout":             "3s",
	"publish.kafka.brokers":            []string{},
	"publish.kafka.topic":              "jircord.chat",
	"publish.kafka.version":            "2.1.0",
	"publish.kafka.retries":            5,
	"publish.kafka.compression":        "none",
	"publish.kafka.ensure_topic":       false,
	"publish.kafka.partitions":         8,
	"publish.kafka.replication_factor": 1,
}

// Load reads path (optional) and JIRCORD_ prefixed environment variables,
// e.g. JIRCORD_JWT_SECRET or JIRCORD_STORE_REDIS_ADDR.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JIRCORD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("jwt.secret is required")
	}
	if c.JWT.TTL <= 0 {
		return errors.Errorf("jwt.ttl must be positive, got %s", c.JWT.TTL)
	}
	switch c.Store.Driver {
	case StoreMemory, StoreRedis, StoreMongo:
	case StorePostgres:
		if c.Store.Postgres.DSN == "" {
			return errors.New("store.postgres.dsn is required for the postgres driver")
		}
	default:
		return errors.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if c.Store.Presence.Mirror && c.Store.Driver != StoreRedis {
		return errors.New("store.presence.mirror needs the redis driver")
	}
	switch c.Publish.Driver {
	case PublishNone, "":
	case PublishNats:
		if len(c.Publish.Nats.Servers) == 0 {
			return errors.New("publish.nats.servers is required for the nats driver")
		}
	case PublishKafka:
		if len(c.Publish.Kafka.Brokers) == 0 {
			return errors.New("publish.kafka.brokers is required for the kafka driver")
		}
	default:
		return errors.Errorf("unknown publish.driver %q", c.Publish.Driver)
	}
	for name, n := range map[string]int{
		"relay.event_queue":  c.Relay.EventQueue,
		"relay.send_queue":   c.Relay.SendQueue,
		"relay.store_queue":  c.Relay.StoreQueue,
		"relay.store_shards": c.Relay.StoreShards,
	} {
		if n <= 0 {
			return errors.Errorf("%s must be positive, got %d", name, n)
		}
	}
	for i, a := range c.Accounts.Users {
		if a.Username == "" || a.PasswordHash == "" {
			return errors.Errorf("accounts.users[%d] needs username and password_hash", i)
		}
	}
	if c.Relay.PongWait <= c.Relay.PingInterval {
		return errors.Errorf("relay.pong_wait (%s) must exceed relay.ping_interval (%s)",
			c.Relay.PongWait, c.Relay.PingInterval)
	}
	return nil
}
