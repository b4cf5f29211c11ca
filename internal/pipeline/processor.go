// Package pipeline 定义了通知任务的处理流程。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"vyapar-go/pkg/log"
	"vyapar-go/pkg/mail"
	"vyapar-go/pkg/tasks"
)

// ErrNoRecipient 表示任务缺少收件地址。
var ErrNoRecipient = errors.New("reset task has no email address")

// Processor 把重置任务渲染为邮件并发送。
// 它既是 Kafka 消费者的 TaskProcessor，也在未配置 Kafka 时作为同步 Dispatcher 使用。
type Processor struct {
	sender   mail.Sender
	resetURL string
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(sender mail.Sender, resetURL string) *Processor {
	return &Processor{sender: sender, resetURL: resetURL}
}

// Process 是任务处理的主函数。
func (p *Processor) Process(ctx context.Context, task tasks.PasswordResetTask) error {
	if task.Email == "" {
		return ErrNoRecipient
	}
	log.Infof("[Processor] 发送重置邮件, user=%s", task.Username)

	if err := p.sender.Send(ctx, p.buildMessage(task)); err != nil {
		return fmt.Errorf("发送重置邮件失败: %w", err)
	}
	return nil
}

// Dispatch 同步处理任务。
func (p *Processor) Dispatch(ctx context.Context, task tasks.PasswordResetTask) error {
	return p.Process(ctx, task)
}

func (p *Processor) buildMessage(task tasks.PasswordResetTask) mail.Message {
	link := p.resetLink(task.Token)
	expires := task.ExpiresAt.Format("02 Jan 2006 15:04 MST")

	plain := fmt.Sprintf(
		"Hello %s,\n\nUse the link below to reset your VyaparGPT password:\n%s\n\nReset token: %s\nThe link expires at %s. If you did not request a reset, ignore this email.",
		task.Username, link, task.Token, expires)
	html := fmt.Sprintf(
		"<p>Hello %s,</p><p><a href=\"%s\">Reset your VyaparGPT password</a></p><p>Reset token: <code>%s</code></p><p>The link expires at %s.</p>",
		task.Username, link, task.Token, expires)

	return mail.Message{
		ToName:    task.Username,
		ToAddr:    task.Email,
		Subject:   "Reset your VyaparGPT password",
		PlainText: plain,
		HTML:      html,
	}
}

// resetLink 把令牌作为 token 查询参数附加到配置的重置地址上。
func (p *Processor) resetLink(token string) string {
	u, err := url.Parse(p.resetURL)
	if err != nil || p.resetURL == "" {
		return token
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
