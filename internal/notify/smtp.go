package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"

	"github.com/Sukhmangill977/data-couch/internal/domain"
	"github.com/Sukhmangill977/data-couch/internal/util"
)

type SMTPConfig struct {
	Addr     string // host:port of the submission endpoint, e.g. smtp.gmail.com:587
	Username string
	Password string
	From     string // defaults to Username
}

// SMTPSender submits mail over STARTTLS with PLAIN auth.
type SMTPSender struct {
	addr    string
	host    string
	from    string
	auth    smtp.Auth
	tls     *tls.Config
	limiter *util.HostLimiter
	log     *slog.Logger

	// send is swapped out in tests.
	send func(e *email.Email, addr string, a smtp.Auth, t *tls.Config) error
}

func NewSMTPSender(cfg SMTPConfig, limiter *util.HostLimiter, log *slog.Logger) (*SMTPSender, error) {
	host, _, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("smtp addr %q: %w", cfg.Addr, err)
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("smtp username/password is required")
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	if log == nil {
		log = slog.Default()
	}
	return &SMTPSender{
		addr:    cfg.Addr,
		host:    host,
		from:    from,
		auth:    smtp.PlainAuth("", cfg.Username, cfg.Password, host),
		tls:     &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host},
		limiter: limiter,
		log:     log,
		send: func(e *email.Email, addr string, a smtp.Auth, t *tls.Config) error {
			return e.SendWithStartTLS(addr, a, t)
		},
	}, nil
}

func (s *SMTPSender) Send(ctx context.Context, n domain.Notification) error {
	if strings.TrimSpace(n.Recipient) == "" {
		return errors.New("notify: no recipient")
	}
	if err := s.limiter.Wait(ctx, s.host); err != nil {
		return fmt.Errorf("smtp rate limit: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e := email.NewEmail()
	e.From = s.from
	e.To = []string{n.Recipient}
	e.Subject = n.Subject
	e.Text = []byte(n.Body)

	if err := s.send(e, s.addr, s.auth, s.tls); err != nil {
		return fmt.Errorf("smtp send to %s: %w", n.Recipient, err)
	}
	s.log.Info("[notify] email sent", "to", n.Recipient, "subject", n.Subject)
	return nil
}
