package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	LedgerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wallet",
		Name:      "ledger_operations_total",
		Help:      "账本操作次数，按操作和结果划分",
	}, []string{"operation", "result"})

	LedgerOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wallet",
		Name:      "ledger_operation_duration_seconds",
		Help:      "账本操作耗时",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	DepositsSwept = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wallet",
		Name:      "deposits_swept_total",
		Help:      "充值确认任务处理的充值记录数，按结果划分",
	}, []string{"result"})

	OutboxRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wallet",
		Name:      "outbox_messages_total",
		Help:      "事件投递次数，按结果划分",
	}, []string{"result"})
)

// Observe 记录一次账本操作的结果与耗时，用法：defer metrics.Observe("swap", time.Now(), &err)
func Observe(operation string, start time.Time, errp *error) {
	result := ResultSuccess
	if errp != nil && *errp != nil {
		result = ResultFailure
	}
	LedgerOperations.WithLabelValues(operation, result).Inc()
	LedgerOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Handler 暴露 /metrics
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
