// Package database 负责初始化关系型数据库与 Redis 连接。
package database

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vyapar-go/internal/model"
	"vyapar-go/pkg/log"
)

var DB *gorm.DB

// Open 按驱动名打开数据库连接。driver 取值 sqlite | mysql | postgres。
// TranslateError 打开后，唯一约束冲突会被翻译为 gorm.ErrDuplicatedKey。
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "", "sqlite":
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if driver == "" || driver == "sqlite" {
		// sqlite 单文件只允许一个写连接
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	return db, nil
}

// Migrate 幂等地创建或更新所有表结构。
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.User{}, &model.PasswordResetToken{}, &model.ChatMessage{}); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}

// InitDB 初始化全局数据库连接并执行迁移，失败时直接退出。
func InitDB(driver, dsn string) {
	db, err := Open(driver, dsn)
	if err != nil {
		log.Fatal("failed to connect database", err)
	}
	if err := Migrate(db); err != nil {
		log.Fatal("failed to migrate database", err)
	}
	DB = db
	log.Infof("database connected successfully, driver=%s", driver)
}
