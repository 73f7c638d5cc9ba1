package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/healthreport/internal/domain"
)

type SMTPConfig struct {
	Host        string
	Port        int
	User        string
	Password    string // empty: plain session, no STARTTLS and no AUTH
	DialTimeout time.Duration
	SendTimeout time.Duration // bounds the session after the dial
}

// SMTPDispatcher mails the report straight to its recipients.
type SMTPDispatcher struct {
	Logger *zap.Logger
	Config SMTPConfig
}

func NewSMTP(logger *zap.Logger, cfg SMTPConfig) *SMTPDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 15 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = time.Minute
	}
	return &SMTPDispatcher{Logger: logger, Config: cfg}
}

func (d *SMTPDispatcher) Dispatch(ctx context.Context, r *domain.Report) error {
	if len(r.Recipients) == 0 {
		return errors.New("smtp: no recipients")
	}
	cfg := d.Config
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	dialer := net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	deadline := time.Now().Add(cfg.SendTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer c.Close()

	if err := c.Hello(localName()); err != nil {
		return fmt.Errorf("smtp hello: %w", err)
	}
	if cfg.Password != "" {
		if err := c.StartTLS(&tls.Config{ServerName: cfg.Host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
		if err := c.Auth(smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := c.Mail(cfg.User); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range r.Recipients {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(buildMessage(cfg.User, r.Recipients, r.Subject, r.HTML, r.GeneratedAt)); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data end: %w", err)
	}

	d.Logger.Info("smtp_sent",
		zap.String("server", addr),
		zap.Int("recipients", len(r.Recipients)),
	)
	return c.Quit()
}

func localName() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "localhost"
}
