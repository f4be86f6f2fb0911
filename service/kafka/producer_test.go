package kafka

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"jircord/service/storage"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/stretchr/testify/require"
)

func TestBuildBaseConfig(t *testing.T) {
	cfg, err := BuildBaseConfig(Config{Version: "2.1.0", Retries: 3, Compression: "LZ4"})
	require.NoError(t, err)
	require.Equal(t, sarama.V2_1_0_0, cfg.Version)
	require.Equal(t, sarama.CompressionLZ4, cfg.Producer.Compression)
	require.Equal(t, 3, cfg.Producer.Retry.Max)
	require.True(t, cfg.Producer.Return.Successes)
	require.NoError(t, cfg.Validate())

	_, err = BuildBaseConfig(Config{Version: "not-a-version"})
	require.Error(t, err)
}

func TestPublishKeysByChannel(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	defer sp.Close()

	var keys []string
	check := func(key string) mocks.MessageChecker {
		return func(msg *sarama.ProducerMessage) error {
			k, _ := msg.Key.Encode()
			keys = append(keys, string(k))
			v, _ := msg.Value.Encode()
			var got map[string]any
			if err := json.Unmarshal(v, &got); err != nil {
				return err
			}
			if got["channel"] != key {
				return sarama.ConfigurationError("unexpected channel " + key)
			}
			return nil
		}
	}
	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(check("im:global"))
	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(check("im:dm:5:alice:bob"))
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewPublisherWith(sp, "chat")
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, p.Publish(ctx, storage.Entry{From: "alice", Text: "hi", CreatedAt: now}))
	require.NoError(t, p.Publish(ctx, storage.Entry{From: "bob", To: "alice", Text: "hey", CreatedAt: now}))
	require.Error(t, p.Publish(ctx, storage.Entry{From: "bob", Text: "lost", CreatedAt: now}))
	require.Equal(t, []string{"im:global", "im:dm:5:alice:bob"}, keys)
}

// Needs a broker, e.g. JIRCORD_TEST_KAFKA=127.0.0.1:9092.
func TestPublishLive(t *testing.T) {
	brokers := os.Getenv("JIRCORD_TEST_KAFKA")
	if brokers == "" {
		t.Skip("JIRCORD_TEST_KAFKA not set")
	}
	p, err := NewPublisher(Config{
		Brokers:     strings.Split(brokers, ","),
		Topic:       "jircord-test",
		EnsureTopic: true,
		Partitions:  1,
	})
	require.NoError(t, err)
	defer p.Close()
	require.NoError(t, p.Publish(context.Background(), storage.Entry{From: "alice", Text: "hi", CreatedAt: time.Now()}))
}
