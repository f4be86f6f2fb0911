package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JIRCORD_JWT_SECRET", "s3cret")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":3000", cfg.HTTP.Addr)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, 2*time.Hour, cfg.JWT.TTL)
	require.Equal(t, StoreMemory, cfg.Store.Driver)
	require.Equal(t, PublishNone, cfg.Publish.Driver)
	require.Equal(t, 25*time.Second, cfg.Relay.PingInterval)
	require.Equal(t, 60*time.Second, cfg.Relay.PongWait)
	require.Equal(t, int64(64<<10), cfg.Relay.MaxFrameBytes)
	require.Equal(t, 256, cfg.Relay.SendQueue)
	require.Empty(t, cfg.Accounts.Users)
}

func TestLoadRequiresSecret(t *testing.T) {
	_, err := Load("")
	require.ErrorContains(t, err, "jwt.secret")
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jircord.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: "127.0.0.1:8080"
jwt:
  secret: "from-file"
  ttl: "30m"
relay:
  send_queue: 16
store:
  driver: redis
  redis:
    addr: "10.0.0.1:6379"
  presence:
    mirror: true
publish:
  driver: nats
accounts:
  users:
    - username: Alice
      password_hash: "$2a$10$abcdefghijklmnopqrstuv"
`), 0o644))

	t.Setenv("JIRCORD_HTTP_ADDR", ":9000")
	t.Setenv("JIRCORD_PUBLISH_NATS_SERVERS", "nats://a:4222,nats://b:4222")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.HTTP.Addr)
	require.Equal(t, "from-file", cfg.JWT.Secret)
	require.Equal(t, 30*time.Minute, cfg.JWT.TTL)
	require.Equal(t, 16, cfg.Relay.SendQueue)
	require.Equal(t, "10.0.0.1:6379", cfg.Store.Redis.Addr)
	require.True(t, cfg.Store.Presence.Mirror)
	require.Equal(t, []string{"nats://a:4222", "nats://b:4222"}, cfg.Publish.Nats.Servers)
	require.Equal(t, "jircord.chat", cfg.Publish.Nats.SubjectPrefix)
	require.Len(t, cfg.Accounts.Users, 1)
	require.Equal(t, "Alice", cfg.Accounts.Users[0].Username)
}

func TestValidate(t *testing.T) {
	t.Setenv("JIRCORD_JWT_SECRET", "s3cret")
	base, err := Load("")
	require.NoError(t, err)

	cases := map[string]func(*Config){
		"unknown store":    func(c *Config) { c.Store.Driver = "sqlite" },
		"postgres no dsn":  func(c *Config) { c.Store.Driver = StorePostgres },
		"mirror not redis": func(c *Config) { c.Store.Presence.Mirror = true },
		"unknown publish":  func(c *Config) { c.Publish.Driver = "amqp" },
		"kafka no brokers": func(c *Config) { c.Publish.Driver = PublishKafka },
		"zero send queue":  func(c *Config) { c.Relay.SendQueue = 0 },
		"pong before ping": func(c *Config) { c.Relay.PongWait = time.Second },
		"account no hash":  func(c *Config) { c.Accounts.Users = []Account{{Username: "bob"}} },
		"blank secret":     func(c *Config) { c.JWT.Secret = "  " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base
			mutate(&c)
			require.Error(t, c.Validate())
		})
	}
	require.NoError(t, base.Validate())
}
