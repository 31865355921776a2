package job

import (
	"context"
	"time"

	"cryptowallet/internal/config"
	"cryptowallet/internal/infrastructure/mq"
	"cryptowallet/internal/logger"
	"cryptowallet/internal/metrics"
	"cryptowallet/internal/model"
	"cryptowallet/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OutboxSender 把账本事务里写下的事件投递到消息队列
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	publisher  mq.Publisher
	cfg        *config.Config
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewOutboxSender(db *gorm.DB, publisher mq.Publisher, cfg *config.Config) *OutboxSender {
	interval := time.Duration(cfg.Business.OutboxIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		publisher:  publisher,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		interval:   interval,
		batchSize:  100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	logger.Log.Info("[OutboxSender] 消息发送任务启动", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("[OutboxSender] 收到停止信号，任务退出")
			return
		case <-s.stopCh:
			logger.Log.Info("[OutboxSender] 任务停止")
			return
		case <-ticker.C:
			s.RelayOnce(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// RelayOnce 投递一批待发送消息，返回成功条数
func (s *OutboxSender) RelayOnce(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		logger.Log.Error("[OutboxSender] 查询消息失败", zap.Error(err))
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	err := s.publisher.Publish(ctx, msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		metrics.OutboxRelayed.WithLabelValues(metrics.ResultSuccess).Inc()
		if updateErr := s.outboxRepo.MarkAsSent(ctx, msg.ID); updateErr != nil {
			logger.Log.Error("[OutboxSender] 更新消息状态失败", zap.Int64("id", msg.ID), zap.Error(updateErr))
			return false
		}
		logger.Log.Debug("[OutboxSender] 消息发送成功",
			zap.Int64("id", msg.ID),
			zap.String("topic", msg.Topic),
			zap.String("key", msg.MessageKey),
			zap.String("event_type", msg.EventType))
		return true
	}

	metrics.OutboxRelayed.WithLabelValues(metrics.ResultFailure).Inc()
	logger.Log.Warn("[OutboxSender] 消息发送失败", zap.Int64("id", msg.ID), zap.Int("retry", msg.RetryCount), zap.Error(err))

	if err := s.outboxRepo.RecordFailure(ctx, msg.ID, err.Error()); err != nil {
		logger.Log.Error("[OutboxSender] 增加重试次数失败", zap.Int64("id", msg.ID), zap.Error(err))
	}

	if msg.RetryCount+1 >= s.cfg.Business.MaxRetryCount {
		if err := s.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			logger.Log.Error("[OutboxSender] 标记消息失败状态失败", zap.Int64("id", msg.ID), zap.Error(err))
		} else {
			logger.Log.Error("[OutboxSender] 消息超过最大重试次数，标记为失败",
				zap.Int64("id", msg.ID),
				zap.String("event_type", msg.EventType))
		}
	}
	return false
}
