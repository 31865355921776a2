package oracle

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"cryptowallet/internal/config"
	"cryptowallet/internal/model"
)

// Confirmer 判断一笔待确认充值是否已在链上到账
type Confirmer interface {
	IsConfirmed(ctx context.Context, deposit *model.Transaction) (bool, error)
}

// NewConfirmer 按 oracle.mode 选择实现
func NewConfirmer(cfg *config.OracleConfig) (Confirmer, error) {
	switch cfg.Mode {
	case "random":
		return NewRandomConfirmer(cfg.ConfirmProbability), nil
	case "indexer":
		if cfg.IndexerURL == "" {
			return nil, fmt.Errorf("oracle.indexer_url 不能为空")
		}
		return NewIndexerConfirmer(cfg.IndexerURL, time.Duration(cfg.TimeoutSeconds)*time.Second), nil
	}
	return nil, fmt.Errorf("不支持的 oracle.mode: %s", cfg.Mode)
}

// RandomConfirmer 模拟确认，按概率返回 true，仅用于演示环境
type RandomConfirmer struct {
	probability float64
}

func NewRandomConfirmer(probability float64) *RandomConfirmer {
	return &RandomConfirmer{probability: probability}
}

func (c *RandomConfirmer) IsConfirmed(_ context.Context, _ *model.Transaction) (bool, error) {
	return rand.Float64() < c.probability, nil
}
