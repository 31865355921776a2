package mq

import (
	"context"
	"fmt"
	"time"

	"cryptowallet/internal/logger"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NatsPublisher topic 直接作为 subject，key 放在消息头 Wallet-Key 里
type NatsPublisher struct {
	conn *nats.Conn
}

func NewNatsPublisher(url string) (*NatsPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("wallet-outbox"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Log.Warn("NATS 连接断开", zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("连接 NATS 失败: %w", err)
	}
	logger.Log.Info("NATS 连接成功", zap.String("url", url))
	return &NatsPublisher{conn: conn}, nil
}

func (p *NatsPublisher) Publish(ctx context.Context, topic, key, value string) error {
	msg := nats.NewMsg(topic)
	msg.Header.Set("Wallet-Key", key)
	msg.Data = []byte(value)

	if err := p.conn.PublishMsg(msg); err != nil {
		return err
	}
	// 等服务端确认收到，否则发送失败会被当成成功；FlushWithContext 要求 ctx 带超时
	flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.conn.FlushWithContext(flushCtx)
}

func (p *NatsPublisher) Close() error {
	return p.conn.Drain()
}
