package mq

import (
	"context"
	"fmt"

	"cryptowallet/internal/config"
)

// Publisher 事件投递能力，OutboxSender 只依赖这个接口
type Publisher interface {
	Publish(ctx context.Context, topic, key, value string) error
	Close() error
}

// NewPublisher 按 mq.driver 创建 kafka 或 nats 生产者
func NewPublisher(cfg *config.MQConfig) (Publisher, error) {
	switch cfg.Driver {
	case "kafka":
		return NewKafkaPublisher(cfg.Kafka.Brokers)
	case "nats":
		return NewNatsPublisher(cfg.Nats.URL)
	}
	return nil, fmt.Errorf("不支持的消息队列: %s", cfg.Driver)
}
