// ABOUTME: SMTP email delivery using go-mail. Dial-per-send — invitation and
// ABOUTME: role-change traffic is sporadic, so no persistent connection is kept.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"
)

// SMTPConfig holds SMTP connection parameters sourced from global env vars.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
	TLS      bool
}

// SendEmail sends a plaintext email to a single recipient.
func SendEmail(ctx context.Context, cfg SMTPConfig, to, subject, body string) error {
	if to == "" {
		return errors.New("send email: no recipient")
	}

	// Strip CR/LF from the subject to prevent header injection.
	subject = strings.NewReplacer("\r", "", "\n", "").Replace(subject)

	m := mail.NewMsg()
	if err := m.FromFormat("TeamPulse", cfg.From); err != nil {
		return fmt.Errorf("send email: set from: %w", err)
	}
	if err := m.To(to); err != nil {
		return fmt.Errorf("send email: set to: %w", err)
	}
	m.Subject(subject)
	m.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.TLS {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	}

	c, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("send email: create client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
