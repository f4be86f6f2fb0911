package kafka

import (
	"errors"
	"fmt"

	"jircord/logger"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"
)

// EnsureTopic creates topic when it is missing and grows its partition
// count up to c.Partitions. Kafka never shrinks partitions.
func EnsureTopic(admin sarama.ClusterAdmin, topic string, c Config) error {
	descs, err := admin.DescribeTopics([]string{topic})
	if err != nil {
		return fmt.Errorf("describe topic %s: %w", topic, err)
	}
	exists := len(descs) == 1 && descs[0].Err == sarama.ErrNoError

	if !exists {
		td := &sarama.TopicDetail{
			NumPartitions:     c.Partitions,
			ReplicationFactor: c.ReplicationFactor,
			ConfigEntries: map[string]*string{
				"cleanup.policy":   strPtr("delete"),
				"compression.type": strPtr("producer"),
			},
		}
		if err := admin.CreateTopic(topic, td, false); err != nil {
			var te *sarama.TopicError
			if (errors.As(err, &te) && te.Err == sarama.ErrTopicAlreadyExists) ||
				errors.Is(err, sarama.ErrTopicAlreadyExists) {
				logger.Info("[kafka] topic exists (race)", zap.String("topic", topic))
				return nil
			}
			return fmt.Errorf("create topic %s: %w", topic, err)
		}
		logger.Info("[kafka] topic created", zap.String("topic", topic),
			zap.Int32("partitions", c.Partitions), zap.Int16("rf", c.ReplicationFactor))
		return nil
	}

	cur := int32(len(descs[0].Partitions))
	if c.Partitions > cur {
		if err := admin.CreatePartitions(topic, c.Partitions, nil, false); err != nil {
			return fmt.Errorf("expand partitions %s from %d to %d: %w", topic, cur, c.Partitions, err)
		}
		logger.Info("[kafka] partitions expanded", zap.String("topic", topic),
			zap.Int32("from", cur), zap.Int32("to", c.Partitions))
	}
	return nil
}

func strPtr(s string) *string { return &s }
