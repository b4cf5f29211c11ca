// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"

	"vyapar-go/internal/config"
	"vyapar-go/pkg/log"
	"vyapar-go/pkg/tasks"
)

// maxAttempts 次处理失败后提交 offset，放弃该消息。
const maxAttempts = 3

// TaskProcessor defines the interface for any service that can process a task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.PasswordResetTask) error
}

func brokers(cfg config.KafkaConfig) []string {
	var out []string
	for _, b := range strings.Split(cfg.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Producer 把任务写入 Kafka 主题。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	p := &Producer{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers(cfg)...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}}
	log.Info("Kafka 生产者初始化成功")
	return p
}

// Dispatch 发送一个重置任务到 Kafka，以用户 ID 作为消息 key。
func (p *Producer) Dispatch(ctx context.Context, task tasks.PasswordResetTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(fmt.Sprintf("%d", task.UserID)),
		Value: taskBytes,
	})
	if err != nil {
		return fmt.Errorf("写入 Kafka 失败: %w", err)
	}
	return nil
}

// Close 关闭生产者并刷新缓冲区。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// attemptCounter 记录每条消息的失败次数。配置了 Redis 时跨进程共享，否则只在本进程内计数。
type attemptCounter struct {
	rdb   *redis.Client
	mu    sync.Mutex
	local map[string]int64
}

func (c *attemptCounter) incr(ctx context.Context, key string) (int64, error) {
	if c.rdb != nil {
		n, err := c.rdb.Incr(ctx, key).Result()
		if err == nil {
			_ = c.rdb.Expire(ctx, key, 24*time.Hour).Err()
		}
		return n, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local[key]++
	return c.local[key], nil
}

func (c *attemptCounter) reset(ctx context.Context, key string) {
	if c.rdb != nil {
		_ = c.rdb.Del(ctx, key).Err()
		return
	}
	c.mu.Lock()
	delete(c.local, key)
	c.mu.Unlock()
}

// 失败后的等待时间。处理失败按次数线性退避。
var (
	fetchBackoff = 2 * time.Second
	retryBackoff = time.Second
)

// StartConsumer 启动一个 Kafka 消费者来处理重置任务，ctx 取消时退出。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, rdb *redis.Client, processor TaskProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	counter := &attemptCounter{rdb: rdb, local: make(map[string]int64)}
	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)
	consume(ctx, r, counter, processor)
}

// messageReader 抽象了 kafka.Reader 的拉取与提交，便于测试。
type messageReader interface {
	committer
	FetchMessage(ctx context.Context) (kafka.Message, error)
}

// consume 循环拉取消息。拉取失败只记录日志并退避，ctx 取消时才退出。
func consume(ctx context.Context, r messageReader, counter *attemptCounter, processor TaskProcessor) {
	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				log.Info("Kafka 消费者已停止")
				return
			}
			log.Errorf("从 Kafka 读取消息失败，%s 后重试: %v", fetchBackoff, err)
			if !wait(ctx, fetchBackoff) {
				log.Info("Kafka 消费者已停止")
				return
			}
			continue
		}
		handleMessage(ctx, r, counter, processor, m)
	}
}

// wait 等待 d，ctx 先结束时返回 false。
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// committer 抽象了 offset 提交，便于测试。
type committer interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// handleMessage 处理一条消息，失败时在本地退避重试，直到成功或累计失败 maxAttempts 次后提交 offset。
// 同一消费组会话内未提交的消息不会被重新投递，所以重试必须在这里完成。
// 计数存放在 Redis 中，进程在重试途中退出后，重启拉到的同一条消息会接着之前的次数计算。
func handleMessage(ctx context.Context, r committer, counter *attemptCounter, processor TaskProcessor, m kafka.Message) {
	var task tasks.PasswordResetTask
	if err := json.Unmarshal(m.Value, &task); err != nil {
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
		// 消息格式错误，直接提交，避免阻塞队列
		commit(ctx, r, m)
		return
	}

	attemptsKey := fmt.Sprintf("kafka:attempts:%s:%d", m.Topic, m.Offset)
	for local := int64(1); ; local++ {
		err := processor.Process(ctx, task)
		if err == nil {
			log.Infof("重置任务处理成功: user=%s", task.Username)
			counter.reset(ctx, attemptsKey)
			commit(ctx, r, m)
			return
		}
		log.Errorf("处理重置任务失败: user=%s, error: %v", task.Username, err)

		attempts, incErr := counter.incr(ctx, attemptsKey)
		if incErr != nil {
			log.Warnf("记录重试次数失败，改用本地计数: %v", incErr)
			attempts = local
		}
		if attempts >= maxAttempts {
			log.Errorf("重置任务多次失败(>=%d)，提交 offset 终止重试: user=%s", maxAttempts, task.Username)
			commit(ctx, r, m)
			return
		}
		if !wait(ctx, retryBackoff*time.Duration(attempts)) {
			// 停机时不提交，重启后重新投递
			return
		}
	}
}

func commit(ctx context.Context, r committer, m kafka.Message) {
	if err := r.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}
