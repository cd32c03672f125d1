package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/yamdb/yamdb-api/pkg/logger"
	"go.uber.org/zap"
)

// SMTPConfig addresses the outgoing mail relay.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
}

// SMTPNotifier sends messages through an SMTP relay.
type SMTPNotifier struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, send: smtp.SendMail}
}

// Send blocks until the relay accepts the message or ctx is done.
func (n *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	start := time.Now()
	addr := net.JoinHostPort(n.cfg.Host, n.cfg.Port)

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	done := make(chan error, 1)
	go func() {
		done <- n.send(addr, auth, msg.From, []string{msg.To}, formatMessage(msg))
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Log.Error("SMTP delivery failed",
				zap.String("to", msg.To),
				zap.String("relay", addr),
				zap.Error(err),
			)
			return fmt.Errorf("smtp send: %w", err)
		}
		logger.Log.Info("SMTP message sent",
			zap.String("to", msg.To),
			zap.Duration("duration", time.Since(start)),
		)
		return nil
	case <-ctx.Done():
		logger.Log.Warn("SMTP delivery timed out",
			zap.String("to", msg.To),
			zap.Duration("waited", time.Since(start)),
		)
		return ctx.Err()
	}
}

func formatMessage(msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + msg.From + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}
