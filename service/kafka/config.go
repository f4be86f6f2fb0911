package kafka

import (
	"errors"
	"strings"
	"time"

	"github.com/Shopify/sarama"
)

// Config is the `publish.kafka` section.
type Config struct {
	Brokers           []string `mapstructure:"brokers"`
	Topic             string   `mapstructure:"topic"`
	Version           string   `mapstructure:"version"`
	Retries           int      `mapstructure:"retries"`
	Compression       string   `mapstructure:"compression"` // none/snappy/lz4/zstd
	EnsureTopic       bool     `mapstructure:"ensure_topic"`
	Partitions        int32    `mapstructure:"partitions"`
	ReplicationFactor int16    `mapstructure:"replication_factor"`
}

func (c *Config) norm() error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka brokers missing")
	}
	if c.Topic == "" {
		c.Topic = "jircord.chat"
	}
	if c.Version == "" {
		c.Version = "2.1.0"
	}
	if c.Retries <= 0 {
		c.Retries = 5
	}
	if c.Partitions <= 0 {
		c.Partitions = 8
	}
	if c.ReplicationFactor <= 0 {
		c.ReplicationFactor = 1
	}
	return nil
}

// BuildBaseConfig returns a sync-producer config that hashes the message
// key onto a partition, so one channel always lands on one partition.
func BuildBaseConfig(c Config) (*sarama.Config, error) {
	version, err := sarama.ParseKafkaVersion(c.Version)
	if err != nil {
		return nil, err
	}
	cfg := sarama.NewConfig()
	cfg.Version = version
	cfg.ClientID = "jircord"

	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = c.Retries
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	switch strings.ToLower(c.Compression) {
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
	default:
		cfg.Producer.Compression = sarama.CompressionNone
	}

	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg, nil
}
