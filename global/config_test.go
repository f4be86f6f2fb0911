package global

import (
	"context"
	"testing"
	"time"

	"jircord/global/config"
	"jircord/service/storage"

	"github.com/stretchr/testify/require"
)

func TestConfigMemoryStack(t *testing.T) {
	ctx := context.Background()
	b, err := ConfigStore(ctx, config.StoreConfig{Driver: config.StoreMemory, MaxLen: 10})
	require.NoError(t, err)
	require.IsType(t, &storage.MemoryLog{}, b.Log)
	require.Nil(t, b.Redis)
	t.Cleanup(func() { require.NoError(t, b.Close(ctx)) })

	dir, err := ConfigDirectory(ctx, b)
	require.NoError(t, err)
	require.NoError(t, dir.Add(ctx, "alice"))

	require.Nil(t, ConfigPresenceMirror(b, config.StoreConfig{Presence: config.PresenceConfig{Mirror: true}}, 1))

	sink, closeSink, err := ConfigPublisher(config.PublishConfig{Driver: config.PublishNone})
	require.NoError(t, err)
	require.Nil(t, sink)
	require.NoError(t, closeSink())
}

func TestConfigRejectsUnknownDrivers(t *testing.T) {
	_, err := ConfigStore(context.Background(), config.StoreConfig{Driver: "cassandra"})
	require.Error(t, err)

	_, closeSink, err := ConfigPublisher(config.PublishConfig{Driver: "carrier-pigeon"})
	require.Error(t, err)
	require.NotNil(t, closeSink)
}

func TestConfigJWT(t *testing.T) {
	opts := ConfigJWT(config.JWTConfig{Secret: "s", TTL: time.Minute, Issuer: "me"})
	require.Equal(t, []byte("s"), opts.Secret)
	require.Equal(t, time.Minute, opts.TTL)
	require.Equal(t, "me", opts.Issuer)

	opts = ConfigJWT(config.JWTConfig{Secret: "s"})
	require.Equal(t, 2*time.Hour, opts.TTL)
}

func TestBackendsCloseOrder(t *testing.T) {
	var order []int
	b := &Backends{}
	for i := 0; i < 3; i++ {
		i := i
		b.onClose(func(context.Context) error { order = append(order, i); return nil })
	}
	require.NoError(t, b.Close(context.Background()))
	require.Equal(t, []int{2, 1, 0}, order)
}

func TestConfigAccounts(t *testing.T) {
	require.True(t, ConfigAccounts(config.AccountsConfig{}).Open())
	a := ConfigAccounts(config.AccountsConfig{Users: []config.Account{{Username: "Alice", PasswordHash: "x"}}})
	require.False(t, a.Open())
}
