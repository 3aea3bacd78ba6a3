package db

import (
	"time"

	"bookstore/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。
func Connect(cfg config.Config) (*gorm.DB, error) {
	logLevel := gormlogger.Warn
	if cfg.GoEnv == "dev" {
		logLevel = gormlogger.Info
	}

	// DATABASE_URL があれば最優先（PostgresURL内で判定）
	gdb, err := gorm.Open(postgres.Open(cfg.PostgresURL()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
		// 時刻はUTCで保存
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return gdb, nil
}
