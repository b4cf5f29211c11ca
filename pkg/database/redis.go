package database

import (
	"context"

	"github.com/go-redis/redis/v8"

	"vyapar-go/pkg/log"
)

// RDB 为 nil 表示未配置 Redis，会话存放在进程内存中。
var RDB *redis.Client

// InitRedis 初始化 Redis 客户端连接，addr 为空时跳过。
func InitRedis(addr, password string, db int) {
	if addr == "" {
		log.Info("Redis address not configured, sessions will be kept in memory")
		return
	}
	RDB = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// 测试连接
	if err := RDB.Ping(context.Background()).Err(); err != nil {
		log.Fatal("failed to connect to redis", err)
	}

	log.Info("Redis client connected successfully")
}
