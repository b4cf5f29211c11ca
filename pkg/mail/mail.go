// Package mail 负责发送通知邮件。
package mail

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"vyapar-go/internal/config"
	"vyapar-go/pkg/log"
)

// Message 是一封待发送的邮件。
type Message struct {
	ToName    string
	ToAddr    string
	Subject   string
	PlainText string
	HTML      string
}

// Sender 发送邮件。
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender 根据配置创建 Sender，未配置 API Key 时只记录日志。
func NewSender(cfg config.MailConfig) Sender {
	if cfg.APIKey == "" {
		return LogSender{}
	}
	return NewSendGridSender(cfg)
}

type sendClient interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

// SendGridSender 通过 SendGrid API 发送邮件。
type SendGridSender struct {
	client sendClient
	from   *sgmail.Email
}

// NewSendGridSender 创建一个 SendGrid 发送器。
func NewSendGridSender(cfg config.MailConfig) *SendGridSender {
	return &SendGridSender{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   sgmail.NewEmail(cfg.SenderName, cfg.SenderAddr),
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	to := sgmail.NewEmail(msg.ToName, msg.ToAddr)
	message := sgmail.NewSingleEmail(s.from, msg.Subject, to, msg.PlainText, msg.HTML)

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	log.Infof("邮件已发送: to=%s, status=%d", msg.ToAddr, resp.StatusCode)
	return nil
}

// LogSender 只把邮件写入日志，用于本地开发。
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	log.Infow("mock email", "to", msg.ToAddr, "subject", msg.Subject, "body", msg.PlainText)
	return nil
}
