package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cryptowallet/internal/logger"
	"cryptowallet/internal/model"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const defaultIndexerTimeout = 5 * time.Second

type indexerResponse struct {
	Confirmed     bool   `json:"confirmed"`
	Confirmations int    `json:"confirmations"`
	TxHash        string `json:"tx_hash"`
}

// IndexerConfirmer 调用链上索引服务确认充值
//
//	GET {base}/v1/deposits/{reference}?token=usdt&amount=60
//	200 {"confirmed": true, "confirmations": 12, "tx_hash": "0x..."}
//	404 视为尚未到账
type IndexerConfirmer struct {
	baseURL        string
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker
}

func NewIndexerConfirmer(baseURL string, timeout time.Duration) *IndexerConfirmer {
	if timeout <= 0 {
		timeout = defaultIndexerTimeout
	}

	cbSettings := gobreaker.Settings{
		Name:        "DepositIndexer",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Log.Warn("索引服务熔断状态变化",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &IndexerConfirmer{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{Timeout: timeout},
		circuitBreaker: gobreaker.NewCircuitBreaker(cbSettings),
	}
}

func (c *IndexerConfirmer) IsConfirmed(ctx context.Context, deposit *model.Transaction) (bool, error) {
	reference := deposit.Hash
	if meta := deposit.Meta.Data().Deposit; meta != nil && meta.Reference != "" {
		reference = meta.Reference
	}

	result, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return c.query(ctx, reference, deposit)
	})
	if err != nil {
		return false, fmt.Errorf("查询充值确认状态失败: %w", err)
	}
	return result.(bool), nil
}

func (c *IndexerConfirmer) query(ctx context.Context, reference string, deposit *model.Transaction) (bool, error) {
	q := url.Values{}
	q.Set("token", deposit.Token)
	q.Set("amount", deposit.Amount.String())
	endpoint := fmt.Sprintf("%s/v1/deposits/%s?%s", c.baseURL, url.PathEscape(reference), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("索引服务返回 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out indexerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("解析索引服务响应失败: %w", err)
	}
	return out.Confirmed, nil
}
