// Package mailer 通过 SMTP 发送密码重置邮件。
package mailer

import (
	"fmt"

	"sorvx-chat-go/internal/config"

	"gopkg.in/gomail.v2"
)

// Mailer 持有 SMTP 连接配置并负责构造重置邮件。
type Mailer struct {
	dialer  *gomail.Dialer
	from    string
	appName string
}

// NewMailer 创建一个新的 Mailer 实例。
func NewMailer(cfg config.SMTPConfig, appName string) *Mailer {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &Mailer{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    from,
		appName: appName,
	}
}

// SendPasswordReset 发送一封包含重置链接的邮件。链接 1 小时内有效。
func (m *Mailer) SendPasswordReset(email, resetLink string) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, m.appName)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", fmt.Sprintf("Reset Your %s Password", m.appName))
	msg.SetBody("text/plain", m.textBody(resetLink))
	msg.AddAlternative("text/html", m.htmlBody(resetLink))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}
	return nil
}

func (m *Mailer) textBody(resetLink string) string {
	return fmt.Sprintf(`Hello,

You requested to reset your password for %s.

Please click the link below to reset your password:
%s

This link will expire in 1 hour.

If you didn't request this, please ignore this email.

Regards,
The %s Team
`, m.appName, resetLink, m.appName)
}

func (m *Mailer) htmlBody(resetLink string) string {
	return fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Reset Your Password</h2>
  <p>Hello,</p>
  <p>You requested to reset your password for <strong>%s</strong>.</p>
  <p><a href="%s">Reset Password</a></p>
  <p>Or copy and paste this link in your browser:</p>
  <p>%s</p>
  <p><strong>This link will expire in 1 hour.</strong></p>
  <p>If you didn't request this, please ignore this email.</p>
  <p>Regards,<br>The %s Team</p>
</div>`, m.appName, resetLink, resetLink, m.appName)
}
