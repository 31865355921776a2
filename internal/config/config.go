package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MQ       MQConfig       `mapstructure:"mq"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Business BusinessConfig `mapstructure:"business"`
	Oracle   OracleConfig   `mapstructure:"oracle"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig Driver 取值 mysql / postgres / sqlite
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"ssl_mode"`
	Path         string `mapstructure:"path"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogLevel     string `mapstructure:"log_level"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MQConfig Driver 取值 kafka / nats
type MQConfig struct {
	Driver string        `mapstructure:"driver"`
	Kafka  KafkaConfig   `mapstructure:"kafka"`
	Nats   NatsConfig    `mapstructure:"nats"`
	Topic  MQTopicConfig `mapstructure:"topic"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

type NatsConfig struct {
	URL string `mapstructure:"url"`
}

type MQTopicConfig struct {
	LedgerEvent string `mapstructure:"ledger_event"`
}

type JWTConfig struct {
	Secret   string `mapstructure:"secret"`
	TTLHours int    `mapstructure:"ttl_hours"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	File    string `mapstructure:"file"`
	Console bool   `mapstructure:"console"`
}

type BusinessConfig struct {
	MinWithdrawal        string `mapstructure:"min_withdrawal"`
	LockTTLSeconds       int    `mapstructure:"lock_ttl_seconds"`
	LockRetryIntervalMs  int    `mapstructure:"lock_retry_interval_ms"`
	LockMaxRetries       int    `mapstructure:"lock_max_retries"`
	DepositSweepSpec     string `mapstructure:"deposit_sweep_spec"`
	SweepBatchSize       int    `mapstructure:"sweep_batch_size"`
	OutboxIntervalMs     int    `mapstructure:"outbox_interval_ms"`
	MaxRetryCount        int    `mapstructure:"max_retry_count"`
	TransactionListLimit int    `mapstructure:"transaction_list_limit"`
}

// OracleConfig Mode 取值 random（模拟）/ indexer（链上索引服务）
type OracleConfig struct {
	Mode               string  `mapstructure:"mode"`
	ConfirmProbability float64 `mapstructure:"confirm_probability"`
	IndexerURL         string  `mapstructure:"indexer_url"`
	TimeoutSeconds     int     `mapstructure:"timeout_seconds"`
}

// MinWithdrawalAmount 最小提现金额，LoadConfig 已校验过格式
func (b BusinessConfig) MinWithdrawalAmount() decimal.Decimal {
	d, err := decimal.NewFromString(b.MinWithdrawal)
	if err != nil {
		return decimal.NewFromInt(10)
	}
	return d
}

func (b BusinessConfig) LockTTL() time.Duration {
	return time.Duration(b.LockTTLSeconds) * time.Second
}

func (b BusinessConfig) LockRetryInterval() time.Duration {
	return time.Duration(b.LockRetryIntervalMs) * time.Millisecond
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("mq.driver", "kafka")
	v.SetDefault("mq.topic.ledger_event", "wallet.ledger.events")
	v.SetDefault("jwt.ttl_hours", 168)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "logs/wallet.log")
	v.SetDefault("log.console", true)
	v.SetDefault("business.min_withdrawal", "10")
	v.SetDefault("business.lock_ttl_seconds", 30)
	v.SetDefault("business.lock_retry_interval_ms", 100)
	v.SetDefault("business.lock_max_retries", 30)
	v.SetDefault("business.deposit_sweep_spec", "@every 1m")
	v.SetDefault("business.sweep_batch_size", 100)
	v.SetDefault("business.outbox_interval_ms", 100)
	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.transaction_list_limit", 100)
	v.SetDefault("oracle.mode", "random")
	v.SetDefault("oracle.confirm_probability", 0.5)
	v.SetDefault("oracle.timeout_seconds", 5)
}

// LoadConfig 加载配置文件
//
// 同目录或工作目录下存在 .env 时先加载，环境变量以 WALLET_ 为前缀覆盖配置项，
// 例如 WALLET_DATABASE_DRIVER=postgres
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("加载 .env 失败: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("wallet")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("不支持的数据库驱动: %s", c.Database.Driver)
	}

	switch c.MQ.Driver {
	case "kafka", "nats":
	default:
		return fmt.Errorf("不支持的消息队列: %s", c.MQ.Driver)
	}

	minWithdrawal, err := decimal.NewFromString(c.Business.MinWithdrawal)
	if err != nil || !minWithdrawal.IsPositive() {
		return fmt.Errorf("business.min_withdrawal 必须是正数: %q", c.Business.MinWithdrawal)
	}

	if c.JWT.Secret == "" {
		return errors.New("jwt.secret 不能为空")
	}
	return nil
}
