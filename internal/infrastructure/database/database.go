package database

import (
	"fmt"
	"strings"
	"time"

	"cryptowallet/internal/config"
	"cryptowallet/internal/logger"
	"cryptowallet/internal/model"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/migrator"
	"gorm.io/gorm/schema"
)

var DB *gorm.DB

// Init 按配置连接数据库并迁移表结构，失败直接退出
func Init(cfg *config.DatabaseConfig) *gorm.DB {
	db, err := Open(cfg)
	if err != nil {
		logger.Log.Fatal("连接数据库失败", zap.String("driver", cfg.Driver), zap.Error(err))
	}
	if err := Migrate(db); err != nil {
		logger.Log.Fatal("自动迁移表结构失败", zap.Error(err))
	}

	DB = db
	logger.Log.Info("数据库连接成功", zap.String("driver", cfg.Driver))
	return db
}

func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 DB 失败: %w", err)
	}

	// sqlite 只允许单连接，内存库多连接会各自拿到一份空库
	if cfg.Driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(model.All()...)
}

func dialectorFor(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.Name,
		)
		return mysql.Open(dsn), nil
	case "postgres":
		sslMode := cfg.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			cfg.Host,
			cfg.Port,
			cfg.User,
			cfg.Password,
			cfg.Name,
			sslMode,
		)
		return postgres.Open(dsn), nil
	case "sqlite":
		path := cfg.Path
		if path == "" {
			path = "file::memory:"
		}
		return exactSQLite{Dialector: &sqlite.Dialector{DSN: path}}, nil
	}
	return nil, fmt.Errorf("不支持的数据库驱动: %s", cfg.Driver)
}

// exactSQLite 把 decimal 列建成 TEXT
//
// sqlite 里 decimal(36,18) 是 NUMERIC 亲和性，写进去会变成 REAL；
// TEXT 列原样保存 decimal 的字符串，读回来不丢精度
type exactSQLite struct {
	*sqlite.Dialector
}

func (d exactSQLite) Migrator(db *gorm.DB) gorm.Migrator {
	return sqlite.Migrator{Migrator: migrator.Migrator{Config: migrator.Config{
		DB:                          db,
		Dialector:                   d,
		CreateIndexAfterCreateTable: true,
	}}}
}

func (d exactSQLite) DataTypeOf(field *schema.Field) string {
	if strings.HasPrefix(strings.ToLower(string(field.DataType)), "decimal") {
		return "text"
	}
	return d.Dialector.DataTypeOf(field)
}

func gormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
