package kafka

import (
	"context"
	"errors"

	"jircord/service/storage"
	"jircord/tools/errs"

	"github.com/Shopify/sarama"
)

// Publisher writes appended entries to one topic keyed by channel key.
type Publisher struct {
	client   sarama.Client
	producer sarama.SyncProducer
	topic    string
}

func NewPublisher(c Config) (*Publisher, error) {
	if err := c.norm(); err != nil {
		return nil, err
	}
	cfg, err := BuildBaseConfig(c)
	if err != nil {
		return nil, err
	}
	client, err := sarama.NewClient(c.Brokers, cfg)
	if err != nil {
		return nil, errs.WrapMsg(err, "kafka client", "brokers", c.Brokers)
	}
	if c.EnsureTopic {
		admin, err := sarama.NewClusterAdminFromClient(client)
		if err != nil {
			_ = client.Close()
			return nil, errs.WrapMsg(err, "kafka admin")
		}
		if err := EnsureTopic(admin, c.Topic, c); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, errs.WrapMsg(err, "kafka producer")
	}
	return &Publisher{client: client, producer: producer, topic: c.Topic}, nil
}

// NewPublisherWith wraps an existing producer.
func NewPublisherWith(p sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{producer: p, topic: topic}
}

func (p *Publisher) Publish(ctx context.Context, e storage.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := storage.EncodeEvent(e)
	if err != nil {
		return errs.WrapMsg(err, "encode entry")
	}
	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(e.Channel().Key()),
		Value:     sarama.ByteEncoder(body),
		Timestamp: e.CreatedAt,
	})
	if err != nil {
		return errs.WrapMsg(err, "kafka send", "topic", p.topic)
	}
	return nil
}

func (p *Publisher) Close() error {
	err := p.producer.Close()
	if p.client != nil && !p.client.Closed() {
		err = errors.Join(err, p.client.Close())
	}
	return err
}
