package job

import (
	"context"
	"errors"
	"sync"

	"cryptowallet/internal/config"
	"cryptowallet/internal/infrastructure/oracle"
	"cryptowallet/internal/logger"
	"cryptowallet/internal/metrics"
	"cryptowallet/internal/model"
	"cryptowallet/internal/repository"
	"cryptowallet/internal/service"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	sweepSettled     = "settled"
	sweepUnconfirmed = "unconfirmed"
	sweepSkipped     = "skipped"
	sweepFailed      = "failed"
)

// DepositSweeper 定时扫描待确认充值，链上确认后结算入账
type DepositSweeper struct {
	transactionRepo *repository.TransactionRepository
	depositService  *service.DepositService
	confirmer       oracle.Confirmer
	spec            string
	batchSize       int

	cron    *cron.Cron
	running sync.Mutex
}

func NewDepositSweeper(db *gorm.DB, depositService *service.DepositService, confirmer oracle.Confirmer, cfg *config.Config) *DepositSweeper {
	batchSize := cfg.Business.SweepBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &DepositSweeper{
		transactionRepo: repository.NewTransactionRepository(db),
		depositService:  depositService,
		confirmer:       confirmer,
		spec:            cfg.Business.DepositSweepSpec,
		batchSize:       batchSize,
	}
}

// SweepStats 一轮扫描的结果
type SweepStats struct {
	Scanned     int
	Settled     int
	Unconfirmed int
	Failed      int
}

// Start 按 cron 表达式周期执行，ctx 取消时停止
func (j *DepositSweeper) Start(ctx context.Context) error {
	j.cron = cron.New()
	_, err := j.cron.AddFunc(j.spec, func() {
		// 上一轮还没跑完就跳过这一轮
		if !j.running.TryLock() {
			logger.Log.Warn("[DepositSweeper] 上一轮扫描未结束，跳过")
			return
		}
		defer j.running.Unlock()
		j.SweepOnce(ctx)
	})
	if err != nil {
		return err
	}

	j.cron.Start()
	logger.Log.Info("[DepositSweeper] 充值确认任务启动", zap.String("spec", j.spec))

	go func() {
		<-ctx.Done()
		j.Stop()
	}()
	return nil
}

func (j *DepositSweeper) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
	logger.Log.Info("[DepositSweeper] 任务停止")
}

// SweepOnce 按 id 游标分页扫完全部待确认充值；未确认的保持 pending，等下一轮
func (j *DepositSweeper) SweepOnce(ctx context.Context) SweepStats {
	var stats SweepStats
	var cursor int64

	for ctx.Err() == nil {
		deposits, err := j.transactionRepo.ListPendingDeposits(ctx, cursor, j.batchSize)
		if err != nil {
			logger.Log.Error("[DepositSweeper] 查询待确认充值失败", zap.Int64("cursor", cursor), zap.Error(err))
			break
		}

		for _, deposit := range deposits {
			if ctx.Err() != nil {
				break
			}
			stats.Scanned++
			j.sweep(ctx, deposit, &stats)
		}

		if len(deposits) < j.batchSize {
			break
		}
		cursor = deposits[len(deposits)-1].ID
	}

	if stats.Scanned > 0 {
		logger.Log.Info("[DepositSweeper] 本轮扫描完成",
			zap.Int("scanned", stats.Scanned),
			zap.Int("settled", stats.Settled),
			zap.Int("unconfirmed", stats.Unconfirmed),
			zap.Int("failed", stats.Failed))
	}
	return stats
}

func (j *DepositSweeper) sweep(ctx context.Context, deposit *model.Transaction, stats *SweepStats) {
	confirmed, err := j.confirmer.IsConfirmed(ctx, deposit)
	if err != nil {
		stats.Failed++
		metrics.DepositsSwept.WithLabelValues(sweepFailed).Inc()
		logger.Log.Warn("[DepositSweeper] 查询确认状态失败", zap.Int64("deposit_id", deposit.ID), zap.Error(err))
		return
	}
	if !confirmed {
		stats.Unconfirmed++
		metrics.DepositsSwept.WithLabelValues(sweepUnconfirmed).Inc()
		return
	}

	result, err := j.depositService.SettleDeposit(ctx, deposit)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyProcessed) {
			metrics.DepositsSwept.WithLabelValues(sweepSkipped).Inc()
			return
		}
		stats.Failed++
		metrics.DepositsSwept.WithLabelValues(sweepFailed).Inc()
		logger.Log.Error("[DepositSweeper] 充值结算失败", zap.Int64("deposit_id", deposit.ID), zap.Error(err))
		return
	}

	stats.Settled++
	metrics.DepositsSwept.WithLabelValues(sweepSettled).Inc()
	logger.Log.Info("[DepositSweeper] 充值已入账",
		zap.Int64("deposit_id", result.DepositID),
		zap.Int64("account_id", result.AccountID),
		zap.String("total_credited", result.TotalCredited.String()))
}
