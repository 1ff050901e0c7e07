// Package email implements a notifier.Notifier that delivers session
// verdicts over SMTP. It is meant for teams that watch a shared inbox
// rather than a chat channel.
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/Strob0t/TestForge/internal/port/notifier"
)

const providerName = "email"

// Config holds the SMTP connection settings and recipient list.
type Config struct {
	Host     string
	Port     string
	From     string
	Password string
	To       []string
}

// Notifier sends notifications as plain-text email via SMTP.
type Notifier struct {
	cfg  Config
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewNotifier creates an email notifier. Port defaults to 587 when empty.
func NewNotifier(cfg Config) *Notifier {
	if cfg.Port == "" {
		cfg.Port = "587"
	}
	return &Notifier{cfg: cfg, send: smtp.SendMail}
}

func (n *Notifier) Name() string { return providerName }

func (n *Notifier) Capabilities() notifier.Capabilities {
	return notifier.Capabilities{
		RichFormatting: false,
		Threads:        false,
	}
}

// Send delivers one message per configured recipient. smtp.SendMail has no
// context support; cancellation is checked between recipients.
func (n *Notifier) Send(ctx context.Context, notification notifier.Notification) error {
	if n.cfg.Host == "" || n.cfg.From == "" || len(n.cfg.To) == 0 {
		return notifier.ErrNotConfigured
	}

	addr := n.cfg.Host + ":" + n.cfg.Port
	var auth smtp.Auth
	if n.cfg.Password != "" {
		auth = smtp.PlainAuth("", n.cfg.From, n.cfg.Password, n.cfg.Host)
	}

	subject := notification.Title
	if notification.Level != "" {
		subject = fmt.Sprintf("[%s] %s", strings.ToUpper(notification.Level), notification.Title)
	}
	body := notification.Message
	for _, f := range notification.Fields {
		body += "\r\n" + f.Name + ": " + f.Value
	}
	if notification.Source != "" {
		body += "\r\n\r\nSource: " + notification.Source
	}

	for _, to := range n.cfg.To {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
			n.cfg.From, to, subject, body)
		if err := n.send(addr, auth, n.cfg.From, []string{to}, []byte(msg)); err != nil {
			return fmt.Errorf("send email to %s: %w", to, err)
		}
	}
	return nil
}

// splitRecipients parses a comma-separated recipient list, dropping empty
// entries.
func splitRecipients(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
