// Package mailer 通过 SMTP 发送邮件。
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"

	"resumeCraft/internal/config"
	"resumeCraft/internal/errcode"
)

// Attachment 是一个内存中的附件。
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

type Message struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Sender 由 *SMTP 和 Disabled 实现。
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type SMTP struct {
	cfg    config.SMTPConfig
	logger *slog.Logger
}

// New 在未配置 SMTP 时返回 Disabled。
func New(cfg config.SMTPConfig, logger *slog.Logger) Sender {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled() {
		return Disabled{}
	}
	return &SMTP{cfg: cfg, logger: logger}
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	m, err := build(s.cfg.From, msg)
	if err != nil {
		return fmt.Errorf("%w: %w", errcode.ErrEmailFailed, err)
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("%w: smtp client: %w", errcode.ErrEmailFailed, err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		s.logger.Error("mailer: send failed", slog.String("to", msg.To), slog.Any("error", err))
		return fmt.Errorf("%w: %w", errcode.ErrEmailFailed, err)
	}
	s.logger.Info("mailer: sent", slog.String("to", msg.To), slog.Int("attachments", len(msg.Attachments)))
	return nil
}

func build(from string, msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	for _, a := range msg.Attachments {
		ct := a.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		if err := m.AttachReader(a.Name, bytes.NewReader(a.Data), mail.WithFileContentType(mail.ContentType(ct))); err != nil {
			return nil, fmt.Errorf("attach %s: %w", a.Name, err)
		}
	}
	return m, nil
}

// Disabled 拒绝所有发送。
type Disabled struct{}

func (Disabled) Send(context.Context, Message) error {
	return fmt.Errorf("%w: smtp not configured", errcode.ErrEmailFailed)
}
