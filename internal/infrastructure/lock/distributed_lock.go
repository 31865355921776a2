package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cryptowallet/internal/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ============================================================================
// 分布式锁
// ============================================================================
//
// 同一账户的账本操作串行执行：
//   加锁：SET key owner NX PX ttl
//   解锁：Lua 脚本比较 owner 后再 DEL，避免删掉别人的锁
//
// 余额写回本身还有 version 条件兜底，锁只负责减少冲突
//
// ============================================================================

var (
	ErrLockFailed = errors.New("获取分布式锁失败")
)

var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// DistributedLock 单个 key 上的锁
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string // 持有者标识
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 非阻塞尝试获取锁
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock 阻塞式获取锁，最多重试 maxRetries 次
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁，锁已过期或被他人持有时不做任何事
func (l *DistributedLock) Unlock(ctx context.Context) error {
	return unlockScript.Run(ctx, l.client, []string{l.key}, l.value).Err()
}

// Locker 服务层依赖的加锁能力，返回的 release 可以安全地 defer
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// RedisLocker 基于 DistributedLock 的 Locker 实现
type RedisLocker struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
	maxRetries    int
}

func NewRedisLocker(client *redis.Client, ttl, retryInterval time.Duration, maxRetries int) *RedisLocker {
	return &RedisLocker{
		client:        client,
		ttl:           ttl,
		retryInterval: retryInterval,
		maxRetries:    maxRetries,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	dl := NewDistributedLock(l.client, key, uuid.NewString(), l.ttl)
	if err := dl.Lock(ctx, l.retryInterval, l.maxRetries); err != nil {
		return nil, fmt.Errorf("%w: key=%s: %v", ErrLockFailed, key, err)
	}
	return func() {
		// 请求 ctx 可能已取消，解锁用独立的 ctx
		unlockCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := dl.Unlock(unlockCtx); err != nil {
			logger.Log.Warn("释放分布式锁失败", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

// AccountKey 按账户维度加锁，不同账户可以并发
func AccountKey(accountID int64) string {
	return fmt.Sprintf("wallet:lock:account:%d", accountID)
}

// WithdrawalKey 审核同一笔提现时加锁
func WithdrawalKey(requestID int64) string {
	return fmt.Sprintf("wallet:lock:withdrawal:%d", requestID)
}

// DepositKey 结算同一笔充值时加锁
func DepositKey(transactionID int64) string {
	return fmt.Sprintf("wallet:lock:deposit:%d", transactionID)
}
