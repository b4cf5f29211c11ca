// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

import (
	"context"
	"time"
)

// PasswordResetTask 是一次找回密码请求，消费者据此发送重置邮件。
type PasswordResetTask struct {
	UserID    uint      `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Dispatcher 投递一个重置任务。Kafka 生产者与同步处理器都实现了它。
type Dispatcher interface {
	Dispatch(ctx context.Context, task PasswordResetTask) error
}
